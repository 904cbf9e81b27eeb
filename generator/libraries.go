package generator

import (
	"regexp"
	"strings"
)

const maxLibraries = 5

var (
	importPattern   = regexp.MustCompile(`(?:import|from)\s+(\w+)`)
	ignoredLibraries = map[string]bool{"os": true, "sys": true, "json": true}
)

// DetectLibraries returns up to 5 imported library names in order of
// appearance. The result is only a hint for the generator.
func DetectLibraries(code string) []string {
	var rt []string
	seen := make(map[string]bool)
	for _, m := range importPattern.FindAllStringSubmatch(code, -1) {
		lib := strings.ToLower(m[1])
		if seen[lib] || ignoredLibraries[lib] {
			continue
		}
		seen[lib] = true
		rt = append(rt, lib)
		if len(rt) == maxLibraries {
			break
		}
	}
	return rt
}
