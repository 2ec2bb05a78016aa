package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractReferences(t *testing.T) {
	got := ExtractReferences("see arXiv:1810.04805 and 1706.03762, also arXiv:1706.03762 again")
	require.Equal(t, []string{"1706.03762", "1810.04805"}, got)
	require.Equal(t, got, ExtractReferences("see arXiv:1810.04805 and 1706.03762, also arXiv:1706.03762 again"))
}

func TestExtractReferencesFiveDigit(t *testing.T) {
	require.Equal(t, []string{"2001.00001", "2310.12345"}, ExtractReferences("[3] arXiv:2310.12345v2; [4] 2001.00001"))
}

func TestExtractReferencesEmpty(t *testing.T) {
	require.Empty(t, ExtractReferences(""))
	require.Empty(t, ExtractReferences("no identifiers, only 2020 and 3.14"))
}
