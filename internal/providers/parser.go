package providers

import "strings"

// ProviderRef is one entry of a provider list such as "groq:openai/gpt-oss-20b".
// The part after the first ':' overrides the provider's default model.
type ProviderRef struct {
	Entry string
	Name  string
	Model string
}

// ParseProviderList splits a '|' separated provider list. Names are lower-cased,
// repeated entries are kept once and an empty list means the mock provider.
func ParseProviderList(raw string) []ProviderRef {
	var out []ProviderRef
	seen := map[string]bool{}
	for _, entry := range strings.Split(raw, "|") {
		entry = strings.TrimSpace(entry)
		if entry == "" || seen[entry] {
			continue
		}
		seen[entry] = true
		name, model, _ := strings.Cut(entry, ":")
		out = append(out, ProviderRef{
			Entry: entry,
			Name:  strings.ToLower(strings.TrimSpace(name)),
			Model: strings.TrimSpace(model),
		})
	}
	if len(out) == 0 {
		return []ProviderRef{{Entry: "mock", Name: "mock"}}
	}
	return out
}
