package enrich

import (
	"regexp"
	"strings"
)

type domainKeywords struct {
	domain   string
	keywords []string
}

// Order matters: the first domain with a matching keyword wins.
var domainTable = []domainKeywords{
	{"Computer Vision", []string{"computer vision", "image", "visual", "object detection", "segmentation", "cnn", "convolution"}},
	{"Natural Language Processing", []string{"nlp", "language", "text", "linguistic", "bert", "transformer", "chatbot", "dialogue"}},
	{"Machine Learning", []string{"machine learning", "neural network", "deep learning", "training", "optimization", "gradient"}},
	{"Reinforcement Learning", []string{"reinforcement", "reward", "policy", "agent", "environment", "q-learning"}},
	{"Robotics", []string{"robot", "robotic", "manipulation", "navigation", "autonomous", "control"}},
	{"Speech Processing", []string{"speech", "audio", "voice", "acoustic", "phoneme", "asr"}},
	{"Information Retrieval", []string{"retrieval", "search", "ranking", "recommendation", "information"}},
	{"Artificial Intelligence", []string{"artificial intelligence", "ai", "intelligent", "reasoning", "knowledge"}},
}

var wordRe = regexp.MustCompile(`[a-z0-9]+`)

// ClassifyDomain scores title+abstract against the keyword table. Keywords of
// three letters or fewer must match a whole word so "ai" does not fire on
// "training".
func ClassifyDomain(title, abstract string) string {
	text := strings.ToLower(title + " " + abstract)
	words := map[string]struct{}{}
	for _, w := range wordRe.FindAllString(text, -1) {
		words[w] = struct{}{}
	}
	for _, d := range domainTable {
		for _, kw := range d.keywords {
			if len(kw) <= 3 {
				if _, ok := words[kw]; ok {
					return d.domain
				}
				continue
			}
			if strings.Contains(text, kw) {
				return d.domain
			}
		}
	}
	return DefaultDomain
}

// KnownDomains is the closed set offered to the domain classification stage.
var KnownDomains = []string{
	"Natural Language Processing",
	"Computer Vision",
	"Machine Learning",
	"Deep Learning",
	"Reinforcement Learning",
	"Robotics",
	"Speech Processing",
	"Information Retrieval",
	"Artificial Intelligence",
	"Data Mining",
	"Human-Computer Interaction",
	"Computer Graphics",
	"Cybersecurity",
	"Computer Systems",
	"Computational Biology",
}

// canonicalDomain maps a free-form answer onto KnownDomains when one of them
// appears in it, otherwise returns the cleaned first line.
func canonicalDomain(resp string) string {
	low := strings.ToLower(resp)
	for _, d := range KnownDomains {
		if strings.Contains(low, strings.ToLower(d)) {
			return d
		}
	}
	line := strings.TrimSpace(strings.SplitN(strings.TrimSpace(resp), "\n", 2)[0])
	if i := strings.Index(line, ":"); i >= 0 && i < 12 {
		line = strings.TrimSpace(line[i+1:])
	}
	line = strings.Trim(line, " .*\"'`")
	if line == "" || isNotFound(line) || len(line) > 60 {
		return ""
	}
	return line
}

type sectionPattern struct {
	key   string
	start *regexp.Regexp
	end   *regexp.Regexp
	max   int
}

var sectionPatterns = []sectionPattern{
	{"ABSTRACT", regexp.MustCompile(`abstract\s*\n`), regexp.MustCompile(`\n\s*(?:introduction|1\.?\s*introduction)`), 0},
	{"INTRODUCTION", regexp.MustCompile(`(?:introduction|1\.?\s*introduction)\s*\n`), regexp.MustCompile(`\n\s*(?:2\.|method|approach|related work)`), 1000},
	{"METHODOLOGY", regexp.MustCompile(`(?:method|approach|methodology|2\.)\s*\n`), regexp.MustCompile(`\n\s*(?:3\.|result|experiment|evaluation)`), 1000},
	{"CONCLUSION", regexp.MustCompile(`(?:conclusion|discussion|summary)\s*\n`), regexp.MustCompile(`\n\s*(?:reference|acknowledgment|appendix)`), 800},
}

// ExtractSections finds common section headings in lower-cased full text.
// Missing sections are absent from the map.
func ExtractSections(fullText string) map[string]string {
	text := strings.ToLower(fullText)
	out := map[string]string{}
	for _, p := range sectionPatterns {
		loc := p.start.FindStringIndex(text)
		if loc == nil {
			continue
		}
		rest := text[loc[1]:]
		endLoc := p.end.FindStringIndex(rest)
		if endLoc == nil {
			continue
		}
		body := strings.TrimSpace(rest[:endLoc[0]])
		if p.max > 0 {
			body = head(body, p.max)
		}
		if body != "" {
			out[p.key] = body
		}
	}
	return out
}
