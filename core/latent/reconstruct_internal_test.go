package latent

import (
	"testing"

	"github.com/adalundhe/lattice/core/model"
	"github.com/adalundhe/lattice/core/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestInsertionPoint_MarkerFallbacks covers the template-surgery policy:
// second role marker plus offset, then first marker, then midpoint.
func TestInsertionPoint_MarkerFallbacks(t *testing.T) {
	profile := model.Profile{RoleStartTokenID: 2, InsertOffset: 2}

	// Two markers: insert after the second plus the offset.
	ids := []int{2, 10, 11, 1, 2, 12, 13, 14, 1}
	assert.Equal(t, 6, insertionPoint(ids, profile))

	// One marker: fall back to the first occurrence.
	ids = []int{2, 10, 11, 12, 1}
	assert.Equal(t, 2, insertionPoint(ids, profile))

	// No markers: sequence midpoint.
	ids = []int{10, 11, 12, 13}
	assert.Equal(t, 2, insertionPoint(ids, profile))

	// Offset past the end clamps to the sequence length.
	ids = []int{10, 2, 11}
	assert.Equal(t, 3, insertionPoint(ids, profile))
}

func TestSpliceRows_OrderAndMask(t *testing.T) {
	p, err := tensor.FromRows([][]float32{{1}, {2}, {3}})
	require.NoError(t, err)
	ins, err := tensor.FromRows([][]float32{{9}, {8}})
	require.NoError(t, err)

	out := spliceRows(p, ins, 1)
	assert.Equal(t, 5, out.Rows)
	assert.Equal(t, []float32{1}, out.Row(0))
	assert.Equal(t, []float32{9}, out.Row(1))
	assert.Equal(t, []float32{8}, out.Row(2))
	assert.Equal(t, []float32{2}, out.Row(3))
	assert.Equal(t, []float32{3}, out.Row(4))
}
