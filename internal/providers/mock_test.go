package providers

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestMockEmbedDeterministicAndNormalised(t *testing.T) {
	m := NewMockProvider(16)
	a, info, err := m.Embed(context.Background(), EmbedRequest{Inputs: []string{"attention", "attention", "bert"}})
	require.NoError(t, err)
	require.Equal(t, "mock", info.Name)
	require.Len(t, a, 3)
	require.Equal(t, a[0], a[1])
	require.NotEqual(t, a[0], a[2])
	require.Len(t, a[0], 16)
	require.InDelta(t, 1.0, norm(a[0]), 1e-5)
}

func TestNormalizeZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	require.Equal(t, []float32{0, 0, 0}, Normalize(v))
	require.InDelta(t, 1.0, norm(Normalize([]float32{3, 4})), 1e-6)
}
