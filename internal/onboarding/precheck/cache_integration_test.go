//go:build integration

package precheck

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mesa/internal/onboarding/models"
	"mesa/pkg/testutil/containers"
)

func TestTakenCache_MarkAndRead(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	cache := NewTakenCache(rc.Client, testLogger())

	assert.False(t, cache.Taken(ctx, "email", "ana@example.com"))

	cache.MarkTaken(ctx, "email", "ana@example.com")
	assert.True(t, cache.Taken(ctx, "email", "ana@example.com"))

	// Verdicts are keyed per field, so a value taken as an email says
	// nothing about the same string checked as a phone or name.
	assert.False(t, cache.Taken(ctx, "phone", "ana@example.com"))
}

func TestTakenCache_VerdictExpires(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	cache := NewTakenCache(rc.Client, testLogger())
	cache.ttl = 150 * time.Millisecond

	cache.MarkTaken(ctx, "phone", "+525512345678")
	require.True(t, cache.Taken(ctx, "phone", "+525512345678"))

	require.Eventually(t, func() bool {
		return !cache.Taken(ctx, "phone", "+525512345678")
	}, 2*time.Second, 50*time.Millisecond)
}

func TestChecker_CachedVerdictShortCircuits(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	cache := NewTakenCache(rc.Client, testLogger())
	c := New(cache, testLogger())

	// The first check finds the email taken and records the verdict.
	inv := &fakeInvoker{results: map[string]fakeResult{
		"check_email_availability": {body: json.RawMessage(`false`), fn: "check_email_availability"},
	}}
	err := c.Check(ctx, inv, Request{Email: "dup@example.com", Phone: "+525512345678"})
	require.Error(t, err)
	require.Len(t, inv.calls, 1)
	assert.True(t, cache.Taken(ctx, "email", "dup@example.com"))

	// A repeat attempt is answered from the cache without an RPC.
	repeat := &fakeInvoker{results: map[string]fakeResult{}}
	err = c.Check(ctx, repeat, Request{Email: "dup@example.com", Phone: "+525512345678"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), models.MsgEmailTaken)
	assert.Empty(t, repeat.calls)
}

func TestTakenCache_DefaultTTLIsShort(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	cache := NewTakenCache(rc.Client, testLogger())
	cache.MarkTaken(ctx, "name", "La Taqueria")

	// An identifier released on the backend must stop reading as taken
	// quickly, so the stored verdict carries a bounded expiry.
	ttl, err := rc.Client.TTL(ctx, cache.key("name", "La Taqueria")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, takenTTL)
}
