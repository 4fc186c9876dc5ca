package specialist

import (
	"regexp"
	"strings"
)

var httpMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE"}

var endpointRe = regexp.MustCompile(`\b(GET|POST|PUT|PATCH|DELETE)\s+(/[A-Za-z0-9._~:/{}\-]*)`)

// DefaultEndpoints is used when no endpoints can be derived.
var DefaultEndpoints = []string{"/api/items", "/api/users", "/api/auth"}

// CountEndpoints counts HTTP method keywords in text. It is a rough hint only.
func CountEndpoints(text string) int {
	n := 0
	for _, m := range httpMethods {
		n += strings.Count(text, m)
	}
	return n
}

// ExtractEndpoints returns the distinct "METHOD /path" pairs in text in order
// of appearance, or DefaultEndpoints when there are none.
func ExtractEndpoints(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range endpointRe.FindAllStringSubmatch(text, -1) {
		path := strings.TrimRight(m[2], ".:")
		if path == "" || path == "/" {
			continue
		}
		ep := m[1] + " " + path
		if !seen[ep] {
			seen[ep] = true
			out = append(out, ep)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), DefaultEndpoints...)
	}
	return out
}
