package providers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseProviderList(t *testing.T) {
	refs := ParseProviderList("mock|Ollama:nomic-embed-text| groq:openai/gpt-oss-20b |mock")
	require.Len(t, refs, 3)
	require.Equal(t, "ollama", refs[1].Name)
	require.Equal(t, "nomic-embed-text", refs[1].Model)
	require.Equal(t, "groq", refs[2].Name)
	require.Equal(t, "openai/gpt-oss-20b", refs[2].Model)
	require.Equal(t, "groq:openai/gpt-oss-20b", refs[2].Entry)
}

func TestParseProviderListEmpty(t *testing.T) {
	refs := ParseProviderList(" | ")
	require.Equal(t, []ProviderRef{{Entry: "mock", Name: "mock"}}, refs)
}
