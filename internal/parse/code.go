package parse

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	codeRe  = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{0,15}$`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// MachineTypeCode normalizes a user-entered machine type code: trimmed,
// uppercased, inner whitespace folded into a single dash.
func MachineTypeCode(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = spaceRe.ReplaceAllString(s, "-")
	if !codeRe.MatchString(s) {
		return "", fmt.Errorf("invalid machine type code: %q", raw)
	}
	return s, nil
}
