package types

import (
	"errors"
	"testing"
)

func TestParseLoadMode(t *testing.T) {
	tests := []struct {
		in      string
		want    LoadMode
		wantErr error
	}{
		{"", LoadModeCreate, nil},
		{"create", LoadModeCreate, nil},
		{"append", LoadModeAppend, nil},
		{"replace", "", ErrInvalidLoadMode},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLoadMode(tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseLoadMode(%q) error = %v, want %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLoadMode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
