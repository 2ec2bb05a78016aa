package extract

import (
	"regexp"
	"sort"
)

var arxivRef = regexp.MustCompile(`(?:arXiv:)?(\d{4}\.\d{4,5})`)

// ExtractReferences returns the sorted, de-duplicated arXiv identifiers
// mentioned in text.
func ExtractReferences(text string) []string {
	seen := map[string]struct{}{}
	for _, m := range arxivRef.FindAllStringSubmatch(text, -1) {
		seen[m[1]] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
