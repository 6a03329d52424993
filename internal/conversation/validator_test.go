package conversation

import (
	"strings"
	"testing"
)

func TestValidateContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"normal message", "hello everyone", false},
		{"empty", "", true},
		{"max chars ok", strings.Repeat("a", MaxContentChars), false},
		{"too many chars", strings.Repeat("a", MaxContentChars+1), true},
		{"too many bytes", strings.Repeat("é", MaxContentBytes), true},
		{"invalid utf8", string([]byte{0xff, 0xfe}), true},
		{"unicode ok", "héllo wörld 👋", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateContent(tt.content)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateContent() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
