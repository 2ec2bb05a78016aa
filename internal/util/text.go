package util

import (
	"strings"
	"unicode"
)

const defaultSnippetRunes = 420

var ligatures = strings.NewReplacer(
	"\ufb00", "ff",
	"\ufb01", "fi",
	"\ufb02", "fl",
	"\ufb03", "ffi",
	"\ufb04", "ffl",
)

// CleanText prepares extracted PDF text for storage. NUL and other control
// characters are removed (Postgres text rejects NUL), typographic ligatures are
// expanded and soft hyphens, zero-width spaces and replacement characters are
// dropped. Newlines and tabs survive.
func CleanText(s string) string {
	if s == "" {
		return s
	}
	s = ligatures.Replace(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return r
		case r < 0x20, r == 0x7f:
			return -1
		case r == '\u00ad', r == '\u200b', r == '\ufeff', r == unicode.ReplacementChar:
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// Snippet flattens s onto one line and cuts it to at most max runes, on a word
// boundary when one is close, appending "..." when anything was cut.
func Snippet(s string, max int) string {
	if max <= 0 {
		max = defaultSnippetRunes
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsPrint(r) {
			return r
		}
		return -1
	}, splitGluedWords(CleanText(s)))
	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	cut := string(runes[:max])
	if i := strings.LastIndexByte(cut, ' '); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "..."
}

// EvidenceSnippet picks the (at most two) sentences of text that share the
// most terms with query and returns them in their original order. Without any
// overlap it falls back to the start of text.
func EvidenceSnippet(text, query string, max int) string {
	sentences := splitSentences(Snippet(text, 4000))
	terms := queryTerms(query)
	if len(sentences) == 0 || len(terms) == 0 {
		return Snippet(text, max)
	}

	best, second := -1, -1
	scores := make([]int, len(sentences))
	for i, s := range sentences {
		low := strings.ToLower(s)
		for _, t := range terms {
			if strings.Contains(low, t) {
				scores[i]++
			}
		}
		switch {
		case scores[i] == 0:
		case best < 0 || scores[i] > scores[best]:
			best, second = i, best
		case second < 0 || scores[i] > scores[second]:
			second = i
		}
	}
	if best < 0 {
		return Snippet(text, max)
	}
	picked := sentences[best]
	if second >= 0 {
		if second < best {
			picked = sentences[second] + " " + picked
		} else {
			picked = picked + " " + sentences[second]
		}
	}
	return Snippet(picked, max)
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true, "were": true,
	"what": true, "how": true, "why": true, "which": true, "that": true, "this": true,
	"these": true, "those": true, "with": true, "from": true, "into": true, "using": true,
	"our": true, "their": true, "its": true, "has": true, "have": true, "can": true,
	"paper": true, "we": true,
}

func queryTerms(q string) []string {
	seen := map[string]bool{}
	var out []string
	for _, f := range strings.Fields(strings.ToLower(Snippet(q, 2000))) {
		f = strings.TrimFunc(f, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		if len([]rune(f)) < 3 || stopwords[f] || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// splitSentences splits after '.', '!' or '?' when followed by a space.
func splitSentences(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', '!', '?':
			if i+1 == len(s) || s[i+1] == ' ' {
				if x := strings.TrimSpace(s[start : i+1]); x != "" {
					out = append(out, x)
				}
				start = i + 1
			}
		}
	}
	if x := strings.TrimSpace(s[start:]); x != "" {
		out = append(out, x)
	}
	return out
}

// splitGluedWords restores spaces that PDF text extraction loses at line
// joins, as in "neuralNetworks". A split needs at least three lowercase letters
// before the capital so names like "arXiv" are left alone.
func splitGluedWords(s string) string {
	in := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	lowerRun := 0
	for i, r := range in {
		if i > 0 && unicode.IsUpper(r) && lowerRun >= 3 {
			b.WriteRune(' ')
		}
		if unicode.IsLower(r) {
			lowerRun++
		} else {
			lowerRun = 0
		}
		b.WriteRune(r)
	}
	return b.String()
}
