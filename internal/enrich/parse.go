package enrich

import (
	"regexp"
	"strings"
	"unicode"
)

var sectionNames = []string{"ABSTRACT", "INTRODUCTION", "METHODOLOGY", "RESULTS", "CONCLUSION"}

// markerLine matches "SUMMARY: ...", "**Summary** - ...", "## Key Contributions:" etc.
var markerLine = regexp.MustCompile(`(?i)^[\s#*_>\-]*([a-z][a-z ]{2,30}?)[\s*_]*(?::|：|\s-\s|\s–\s)\s*(.*)$`)

// parseMarked splits a response into marker-labelled sections. aliases maps
// a lower-case label to its canonical key. Lines after a marker belong to it
// until the next marker. Values equal to NOT_FOUND are dropped.
func parseMarked(resp string, aliases map[string]string) map[string]string {
	out := map[string]string{}
	current := ""
	for _, raw := range strings.Split(resp, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if m := markerLine.FindStringSubmatch(line); m != nil {
			label := strings.ToLower(strings.TrimSpace(m[1]))
			if key, ok := aliases[label]; ok {
				current = key
				val := strings.Trim(m[2], "*_ \t")
				if val != "" && !isNotFound(val) {
					out[key] = val
				}
				continue
			}
		}
		if current == "" || isNotFound(line) {
			continue
		}
		if prev, ok := out[current]; ok {
			out[current] = prev + " " + line
		} else {
			out[current] = line
		}
	}
	return out
}

func isNotFound(s string) bool {
	s = strings.Trim(strings.TrimSpace(s), "[]().")
	return strings.EqualFold(s, "NOT_FOUND") || strings.EqualFold(s, "not found")
}

var sectionAliases = map[string]string{
	"abstract":     "ABSTRACT",
	"introduction": "INTRODUCTION",
	"methodology":  "METHODOLOGY",
	"method":       "METHODOLOGY",
	"methods":      "METHODOLOGY",
	"results":      "RESULTS",
	"experiments":  "RESULTS",
	"conclusion":   "CONCLUSION",
	"conclusions":  "CONCLUSION",
}

// ParseSections reads the section-extraction stage output.
func ParseSections(resp string) map[string]string {
	return parseMarked(resp, sectionAliases)
}

// ParseContributions keeps numbered or bulleted lines longer than ten
// characters, at most four.
func ParseContributions(resp string) []string {
	out := make([]string, 0, 4)
	for _, raw := range strings.Split(resp, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		first := []rune(line)[0]
		bullet := first == '-' || first == '•' || strings.HasPrefix(line, "* ")
		if !unicode.IsDigit(first) && !bullet {
			continue
		}
		cleaned := strings.TrimSpace(strings.TrimLeft(line, "0123456789.-•*) "))
		cleaned = strings.Trim(cleaned, "*")
		if len(cleaned) > 10 {
			out = append(out, strings.TrimSpace(cleaned))
		}
		if len(out) == 4 {
			break
		}
	}
	return out
}

var singleShotAliases = map[string]string{
	"summary":           "SUMMARY",
	"core content":      "SUMMARY",
	"contributions":     "CONTRIBUTIONS",
	"key contributions": "CONTRIBUTIONS",
	"methodology":       "METHODOLOGY",
	"method":            "METHODOLOGY",
}

var (
	blankLines = regexp.MustCompile(`\n\s*\n`)
	newlines   = regexp.MustCompile(`\n+`)
)

// ParseSingleShot reads a SUMMARY/CONTRIBUTIONS/METHODOLOGY response. When no
// summary marker is present the first paragraph longer than 50 characters is
// used, and failing that the whole response flattened to 400 characters.
func ParseSingleShot(resp string) (summary string, contributions []string, methodology string) {
	resp = strings.TrimSpace(resp)
	if resp == "" {
		return "", nil, ""
	}
	parts := parseMarked(resp, singleShotAliases)
	summary = parts["SUMMARY"]
	methodology = parts["METHODOLOGY"]
	contributions = splitContributions(resp, parts["CONTRIBUTIONS"])

	if summary == "" {
		for _, para := range blankLines.Split(resp, -1) {
			para = strings.TrimSpace(para)
			if markerLine.MatchString(para) && len(parseMarked(para, singleShotAliases)) > 0 {
				continue
			}
			if len(para) > 50 {
				summary = head(para, summaryLength)
				break
			}
		}
	}
	if summary == "" {
		summary = head(strings.TrimSpace(newlines.ReplaceAllString(resp, " ")), summaryLength)
	}
	return summary, contributions, methodology
}

func splitContributions(resp, marked string) []string {
	if strings.Contains(marked, "|") {
		out := make([]string, 0, 4)
		for _, c := range strings.Split(marked, "|") {
			if c = strings.TrimSpace(c); c != "" {
				out = append(out, c)
			}
		}
		return out
	}
	if bullets := ParseContributions(resp); len(bullets) > 0 {
		return bullets
	}
	if strings.TrimSpace(marked) != "" {
		return []string{strings.TrimSpace(marked)}
	}
	return []string{}
}
