package util

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSafeName(t *testing.T) {
	require.Equal(t, "1706.03762v2", SafeName("1706.03762v2"))
	require.Equal(t, "hep-th_9901001v1", SafeName("hep-th/9901001v1"))
	require.Equal(t, "_", SafeName(".."))
	require.Equal(t, "_", SafeName(""))
}

func TestPaperDir(t *testing.T) {
	require.Equal(t, filepath.Join("data", "papers", "hep-th_9901001"), PaperDir("data", "hep-th/9901001"))
}

func TestWriteJSONAtomicCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "papers", "1706.03762", "metadata.json")
	require.NoError(t, WriteJSONAtomic(path, map[string]string{"arxiv_id": "1706.03762"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]string
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Equal(t, "1706.03762", got["arxiv_id"])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestWriteJSONAtomicLeavesNoTempOnEncodeError(t *testing.T) {
	dir := t.TempDir()
	err := WriteJSONAtomic(filepath.Join(dir, "bad.json"), map[string]any{"f": func() {}})
	require.Error(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestWriteTextAtomicReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "insight.txt")
	require.NoError(t, WriteTextAtomic(path, "first"))
	require.NoError(t, WriteTextAtomic(path, "second"))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "second", string(raw))
}

func TestHashKey(t *testing.T) {
	require.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", HashKey())
	require.NotEqual(t, HashKey("ab", "c"), HashKey("a", "bc"))
	require.Equal(t, HashKey("m", "1706.03762"), HashKey("m", "1706.03762"))
}
