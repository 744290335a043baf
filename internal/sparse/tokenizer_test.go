package sparse

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "simple words",
			in:   "Reset your password",
			want: []string{"reset", "your", "password"},
		},
		{
			name: "error code keeps hyphen",
			in:   "How do I fix error E-4012 in the EU region?",
			want: []string{"how", "do", "i", "fix", "error", "e-4012", "in", "the", "eu", "region"},
		},
		{
			name: "punctuation stripped",
			in:   "auth: token, expired!",
			want: []string{"auth", "token", "expired"},
		},
		{
			name: "trailing hyphen not captured",
			in:   "pre- and post-deploy",
			want: []string{"pre", "and", "post-deploy"},
		},
		{
			name: "empty",
			in:   "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
