package gateway_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/lattice/core/errors"
	"github.com/adalundhe/lattice/core/gateway"
	"github.com/adalundhe/lattice/core/index"
	"github.com/adalundhe/lattice/core/storage"
	"github.com/adalundhe/lattice/core/tensor"
)

func newRetrieverFixture(t *testing.T) (*gateway.Retriever, *storage.Store) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "store.db"), 1<<20, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	entries := []index.Entry{
		{ModuleID: "skills/security-review", Name: "security-review", ModuleType: "skill", TokenCount: 500, MeanEmbedding: []float32{1, 0, 0, 0}},
		{ModuleID: "rules/no-panics", Name: "no-panics", ModuleType: "rule", TokenCount: 200, MeanEmbedding: []float32{0, 1, 0, 0}},
		{ModuleID: "rules/broken-blobs", Name: "broken-blobs", ModuleType: "rule", TokenCount: 150, MeanEmbedding: []float32{0, 0.9, 0.1, 0}},
	}

	// only the first two modules get tensors persisted
	for _, id := range []string{"skills/security-review", "rules/no-panics"} {
		m, err := tensor.FromRows([][]float32{{1, 2, 3, 4}, {5, 6, 7, 8}})
		require.NoError(t, err)
		require.NoError(t, store.PutTensor(id, storage.TensorLayerStates, m))
		require.NoError(t, store.PutTensor(id, storage.TensorLatentTrajectory, m))
	}

	idx, err := index.New(entries)
	require.NoError(t, err)
	return gateway.NewRetriever(idx, store, nil), store
}

// TestRetriever_Retrieve_SkipsModulesWithMissingBlobs verifies a module
// whose tensors fail to load is dropped while the rest still return.
func TestRetriever_Retrieve_SkipsModulesWithMissingBlobs(t *testing.T) {
	r, _ := newRetrieverFixture(t)

	got := r.Retrieve([]float32{0, 1, 0, 0}, 5, "rule", -1)
	require.Len(t, got, 1)
	assert.Equal(t, "rules/no-panics", got[0].ModuleID)
	require.NotNil(t, got[0].LatentTrajectory)
	assert.Equal(t, 2, got[0].LatentTrajectory.Rows)
}

// TestRetriever_RetrieveByID_ExactAndPrefix verifies direct lookup with the
// full id, the prefix fallback for a bare name, and the fixed 1.0 score.
func TestRetriever_RetrieveByID_ExactAndPrefix(t *testing.T) {
	r, _ := newRetrieverFixture(t)

	full, err := r.RetrieveByID("skills/security-review")
	require.NoError(t, err)
	assert.Equal(t, 1.0, full.Score)

	bare, err := r.RetrieveByID("security-review")
	require.NoError(t, err)
	assert.Equal(t, "skills/security-review", bare.ModuleID)
	assert.Equal(t, 1.0, bare.Score)
	assert.Equal(t, 500, bare.TokenCount)
}

// TestRetriever_RetrieveByID_MissReturnsNotFound verifies an unknown id
// yields a not-found error for the caller to degrade on.
func TestRetriever_RetrieveByID_MissReturnsNotFound(t *testing.T) {
	r, _ := newRetrieverFixture(t)

	_, err := r.RetrieveByID("unknown-module")
	require.Error(t, err)
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))
}

// TestRetriever_RetrieveByID_BlobFailureSurfaces verifies a direct lookup
// whose tensors cannot load returns the blob error rather than a module.
func TestRetriever_RetrieveByID_BlobFailureSurfaces(t *testing.T) {
	r, _ := newRetrieverFixture(t)

	_, err := r.RetrieveByID("rules/broken-blobs")
	require.Error(t, err)
	assert.Equal(t, errors.KindBlobLoad, errors.KindOf(err))
}

// TestRetriever_SwapIndex verifies a swapped index serves subsequent reads.
func TestRetriever_SwapIndex(t *testing.T) {
	r, _ := newRetrieverFixture(t)
	require.Len(t, r.ListModules(""), 3)

	empty, err := index.New(nil)
	require.NoError(t, err)
	r.SwapIndex(empty)

	assert.Empty(t, r.ListModules(""))
	assert.Equal(t, 0, r.Index().Len())
}

// TestRetriever_ListModules_DoesNotTouchBlobs verifies listing works even
// for modules whose tensors are absent.
func TestRetriever_ListModules_DoesNotTouchBlobs(t *testing.T) {
	r, _ := newRetrieverFixture(t)

	rules := r.ListModules("rule")
	assert.Len(t, rules, 2)
}
