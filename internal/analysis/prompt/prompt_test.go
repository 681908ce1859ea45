package prompt_test

import (
	"strings"
	"testing"

	"github.com/licenselens/licenselens-backend/internal/analysis/prompt"
)

func TestCompose_ForwardsInstructionsVerbatim(t *testing.T) {
	instructions := `extract the name, date of birth, and expiration date; also "quotes" & <tags>`

	got := prompt.Compose(instructions)

	if !strings.Contains(got, instructions) {
		t.Errorf("composed prompt does not contain the user instructions verbatim:\n%s", got)
	}
	if !strings.HasPrefix(got, "Please analyze this driver's license image and ") {
		t.Errorf("composed prompt missing the fixed preamble:\n%s", got)
	}
	if !strings.Contains(got, "clear, structured format") {
		t.Errorf("composed prompt missing the fixed trailer:\n%s", got)
	}
}

func TestValidateInstructions(t *testing.T) {
	tests := []struct {
		name         string
		instructions string
		want         bool
	}{
		{"normal text", "extract the name", true},
		{"empty", "", false},
		{"whitespace only", "   \n\t  ", false},
		{"single character", "x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := prompt.ValidateInstructions(tt.instructions); got != tt.want {
				t.Errorf("ValidateInstructions(%q) = %v, want %v", tt.instructions, got, tt.want)
			}
		})
	}
}
