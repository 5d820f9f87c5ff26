package errors_test

import (
	stderrors "errors"
	"fmt"
	"io"
	"testing"

	"github.com/adalundhe/lattice/core/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf_ClassifiedAndWrapped(t *testing.T) {
	err := errors.NotFound("module %q not in index", "skills/missing")
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))

	// Classification survives further fmt.Errorf wrapping.
	wrapped := fmt.Errorf("retrieve: %w", err)
	assert.Equal(t, errors.KindNotFound, errors.KindOf(wrapped))
	assert.True(t, errors.IsKind(wrapped, errors.KindNotFound))
}

func TestKindOf_UnclassifiedError(t *testing.T) {
	assert.Equal(t, errors.KindUnknown, errors.KindOf(io.EOF))
	assert.False(t, errors.IsKind(io.EOF, errors.KindBlobLoad))
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := errors.BlobLoad(cause, "load tensors for %s", "agents/architect")
	require.NotNil(t, err)
	assert.True(t, stderrors.Is(err, io.ErrUnexpectedEOF))
	assert.Contains(t, err.Error(), "blob_load")
	assert.Contains(t, err.Error(), "agents/architect")
}

func TestWrap_NilCauseReturnsNil(t *testing.T) {
	assert.Nil(t, errors.ModelEvaluation(nil, "forward pass"))
}

// TestBehaviorFor_RecoveryContract pins the recovery behavior each kind
// promises to callers.
func TestBehaviorFor_RecoveryContract(t *testing.T) {
	assert.True(t, errors.BehaviorFor(errors.KindConfiguration).FatalToStartup)
	assert.True(t, errors.BehaviorFor(errors.KindNumerical).FatalToStartup)
	assert.True(t, errors.BehaviorFor(errors.KindModelEvaluation).FatalToRequest)

	for _, k := range []errors.Kind{errors.KindNotFound, errors.KindBlobLoad, errors.KindEmptyQuery} {
		b := errors.BehaviorFor(k)
		assert.True(t, b.DegradesToEmpty, "kind %s should degrade to empty", k)
		assert.False(t, b.FatalToStartup)
	}
}
