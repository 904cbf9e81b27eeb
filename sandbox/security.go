package sandbox

import (
	"strings"
)

// Violation returns the first deny pattern the source matches, or empty
// string when the source is allowed to run. Empty source is never allowed.
func (p *Profile) Violation(source string) string {
	if strings.TrimSpace(source) == "" {
		return "empty source"
	}
	for _, re := range p.deny {
		if re.MatchString(source) {
			return re.String()
		}
	}
	return ""
}

func (p *Profile) memoryError(output string) bool {
	for _, m := range p.MemoryMarkers {
		if strings.Contains(output, m) {
			return true
		}
	}
	return false
}
