package validators

import "strings"

// SanitizeString trims surrounding whitespace. Length limits belong in validate tags
// so oversize input fails instead of being cut.
func SanitizeString(input string) string {
	return strings.TrimSpace(input)
}
