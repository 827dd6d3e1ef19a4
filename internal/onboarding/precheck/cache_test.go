package precheck

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTakenCache_NilDegradesToMisses(t *testing.T) {
	ctx := context.Background()

	t.Run("nil client yields nil cache", func(t *testing.T) {
		assert.Nil(t, NewTakenCache(nil, testLogger()))
	})

	t.Run("nil cache always misses", func(t *testing.T) {
		var cache *TakenCache
		cache.MarkTaken(ctx, "email", "ana@example.com")
		assert.False(t, cache.Taken(ctx, "email", "ana@example.com"))
	})
}
