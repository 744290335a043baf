package document

import (
	"reflect"
	"testing"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		title   string
		attrs   Attrs
		wantErr bool
	}{
		{"valid", "KB-0001", "Title", Attrs{Category: "billing"}, false},
		{"empty id", "", "Title", Attrs{Category: "billing"}, true},
		{"invalid id chars", "KB 0001", "Title", Attrs{Category: "billing"}, true},
		{"empty title", "KB-0001", "", Attrs{Category: "billing"}, true},
		{"unknown category", "KB-0001", "Title", Attrs{Category: "cooking"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.id, tt.title, "body", tt.attrs)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_NormalizesErrorCodes(t *testing.T) {
	d, err := New("KB-0001", "Title", "body", Attrs{
		Category:   "networking",
		ErrorCodes: []string{"E-4012", "E-1001", "E-4012", ""},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	want := []string{"E-1001", "E-4012"}
	if !reflect.DeepEqual(d.ErrorCodes(), want) {
		t.Errorf("ErrorCodes = %v, want %v", d.ErrorCodes(), want)
	}

	if !d.HasErrorCode("E-4012") {
		t.Error("HasErrorCode(E-4012) = false, want true")
	}
	if d.HasErrorCode("E-9999") {
		t.Error("HasErrorCode(E-9999) = true, want false")
	}
}

func TestText(t *testing.T) {
	d, err := New("KB-0001", "VPN drops", "Check the gateway.", Attrs{Category: "networking"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.Text() != "VPN drops Check the gateway." {
		t.Errorf("Text = %q", d.Text())
	}
}

func TestParseCategory(t *testing.T) {
	for _, valid := range []string{"authentication", "billing", "deployment", "networking"} {
		if _, err := ParseCategory(valid); err != nil {
			t.Errorf("ParseCategory(%s): %v", valid, err)
		}
	}
	if _, err := ParseCategory("support"); err == nil {
		t.Error("ParseCategory(support) should fail")
	}
}
