package utilities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDGeneratorUnique(t *testing.T) {
	g, err := NewIDGenerator(1)
	require.NoError(t, err)

	seen := make(map[int64]struct{})
	for i := 0; i < 1000; i++ {
		id := g.Next()
		require.Positive(t, id)
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}

func TestIDGeneratorRejectsBadNode(t *testing.T) {
	_, err := NewIDGenerator(-1)
	assert.Error(t, err)
}

func TestIDGeneratorFromEnvFallsBack(t *testing.T) {
	t.Setenv("SNOWFLAKE_NODE", "not-a-number")
	g, err := IDGeneratorFromEnv()
	require.NoError(t, err)
	assert.Positive(t, g.Next())
}

func TestNewKSUID(t *testing.T) {
	a, b := NewKSUID(), NewKSUID()
	assert.Len(t, a, 27)
	assert.NotEqual(t, a, b)
}
