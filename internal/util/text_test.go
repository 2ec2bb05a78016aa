package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	require.Equal(t, "abcd\n\txy", CleanText("ab\x00cd\x01\x02\n\txy"))
	require.Equal(t, "transformer efficient", CleanText("trans\u00adformer e\ufb03cient\ufffd"))
	require.Equal(t, "", CleanText("\x00 \x01"))
}

func TestSnippet(t *testing.T) {
	require.Equal(t, "Deep residual learning", Snippet("Deep\n  residual\tlearning\x00", 100))
	require.Equal(t, "graph neural Networks on arXiv", Snippet("graph neuralNetworks on arXiv", 100))

	long := strings.Repeat("attention ", 20)
	out := Snippet(long, 25)
	require.True(t, strings.HasSuffix(out, "..."))
	require.Equal(t, "attention attention...", out)
}

func TestEvidenceSnippet(t *testing.T) {
	chunk := "This paper studies edge computing in cloud schedulers. It evaluates latency reduction for edge workloads. Unrelated appendix text."
	out := EvidenceSnippet(chunk, "What are edge workload latency results?", 200)
	require.Equal(t, "This paper studies edge computing in cloud schedulers. It evaluates latency reduction for edge workloads.", out)

	require.Equal(t, "Nothing matches here.", EvidenceSnippet("Nothing matches here.", "transformer", 200))
	require.Equal(t, "Plain text", EvidenceSnippet("Plain text", "", 200))
}
