package evaluation

import (
	"math"
	"testing"
)

func TestRecallAtK(t *testing.T) {
	retrieved := []string{"a", "b", "c", "d", "e"}

	tests := []struct {
		name     string
		expected []string
		k        int
		want     float64
	}{
		{"all found in window", []string{"a", "b"}, 5, 1.0},
		{"half found", []string{"a", "z"}, 5, 0.5},
		{"outside window", []string{"e"}, 3, 0.0},
		{"at window boundary", []string{"c"}, 3, 1.0},
		{"k larger than retrieved", []string{"e"}, 100, 1.0},
		{"nothing retrieved", []string{"a"}, 0, 0.0},
		{"two of three", []string{"a", "c", "z"}, 5, 2.0 / 3.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RecallAtK(retrieved, tt.expected, tt.k)
			if !ok {
				t.Fatal("non-empty expected must be defined")
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("got %f, want %f", got, tt.want)
			}
		})
	}
}

func TestRecallAtK_EmptyExpectedUndefined(t *testing.T) {
	if _, ok := RecallAtK([]string{"a"}, nil, 5); ok {
		t.Error("empty expected set must be reported undefined, not zero")
	}
}

func TestRecallAtK_Monotonic(t *testing.T) {
	retrieved := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	expected := []string{"b", "e", "g", "z"}

	prev := 0.0
	for k := 1; k <= len(retrieved); k++ {
		got, ok := RecallAtK(retrieved, expected, k)
		if !ok {
			t.Fatal("expected defined recall")
		}
		if got < prev {
			t.Fatalf("recall@%d = %f dropped below recall@%d = %f", k, got, k-1, prev)
		}
		prev = got
	}
}

func TestReciprocalRank(t *testing.T) {
	tests := []struct {
		name      string
		retrieved []string
		expected  []string
		want      float64
	}{
		{"first hit", []string{"a", "b"}, []string{"a"}, 1.0},
		{"second hit", []string{"a", "b"}, []string{"b"}, 0.5},
		{"third hit", []string{"a", "b", "c"}, []string{"c", "z"}, 1.0 / 3.0},
		{"no hit", []string{"a", "b"}, []string{"z"}, 0.0},
		{"empty retrieved", nil, []string{"a"}, 0.0},
		{"empty expected", []string{"a"}, nil, 0.0},
		{"first hit wins over later", []string{"a", "b", "c"}, []string{"b", "c"}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReciprocalRank(tt.retrieved, tt.expected)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("got %f, want %f", got, tt.want)
			}
		})
	}
}
