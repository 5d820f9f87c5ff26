package gateway_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/lattice/core/gateway"
)

// TestSessionManager_GetOrCreate_GeneratesIDWhenEmpty verifies an empty id
// produces a new session with a generated identifier.
func TestSessionManager_GetOrCreate_GeneratesIDWhenEmpty(t *testing.T) {
	m := gateway.NewSessionManager(10, time.Hour)

	a := m.GetOrCreate("")
	b := m.GetOrCreate("")
	assert.NotEmpty(t, a.SessionID)
	assert.NotEmpty(t, b.SessionID)
	assert.NotEqual(t, a.SessionID, b.SessionID)
	assert.Equal(t, 2, m.Len())
}

// TestSessionManager_RecordQuery_AccumulatesState verifies history and
// counters accumulate across queries in one session.
func TestSessionManager_RecordQuery_AccumulatesState(t *testing.T) {
	m := gateway.NewSessionManager(10, time.Hour)

	m.RecordQuery("sess-1", "first query", []string{"rules/a", "rules/b"}, 120)
	s := m.RecordQuery("sess-1", "second query", []string{"skills/c"}, 80)

	require.Equal(t, 2, s.QueryCount)
	assert.Equal(t, []string{"first query", "second query"}, s.QueryHistory)
	assert.Equal(t, []string{"rules/a", "rules/b", "skills/c"}, s.RetrievedModuleIDs)
	assert.Equal(t, 200, s.TotalTokensSaved)
}

// TestSessionManager_RecordQuery_CreatesSession verifies recording against
// an unknown id creates the session.
func TestSessionManager_RecordQuery_CreatesSession(t *testing.T) {
	m := gateway.NewSessionManager(10, time.Hour)

	s := m.RecordQuery("", "a query", nil, 0)
	assert.NotEmpty(t, s.SessionID)
	assert.Equal(t, 1, m.Len())
}
