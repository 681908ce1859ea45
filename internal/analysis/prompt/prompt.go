// Package prompt builds the composed prompt sent to the hosted model: a
// fixed instruction template merged with the user's free text. The user text
// is forwarded verbatim - no escaping, no length limits.
package prompt

import (
	"fmt"
	"strings"
)

const template = `Please analyze this driver's license image and %s

Please provide the information in a clear, structured format.
If any information is unclear or cannot be read, please indicate that.`

// Compose merges the fixed template with the user's instructions.
func Compose(userInstructions string) string {
	return fmt.Sprintf(template, userInstructions)
}

// ValidateInstructions reports whether the instructions allow an analysis:
// they must contain something other than whitespace.
func ValidateInstructions(userInstructions string) bool {
	return strings.TrimSpace(userInstructions) != ""
}
