//go:build integration

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mesa/internal/onboarding/models"
	"mesa/internal/onboarding/store"
	"mesa/pkg/testutil/containers"
)

func agentPayload() models.RegisterDeliveryAgentPayload {
	return models.RegisterDeliveryAgentPayload{
		FirstName: "Luis",
		LastName:  "Hernández",
		Email:     "luis@example.com",
		Phone:     "+525598765432",
		City:      "Guadalajara",
	}
}

func TestStore_EnsureUserProfileIsIdempotent(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	ctx := context.Background()
	require.NoError(t, pc.TruncateAll(ctx))

	st := store.New(pc.DB)

	require.NoError(t, st.EnsureUserProfile(ctx, "user-1", "a@example.com", "+525512345678"))
	require.NoError(t, st.EnsureUserProfile(ctx, "user-1", "a@example.com", "+525512345678"))

	var count int
	require.NoError(t, pc.QueryRow(ctx, `SELECT COUNT(*) FROM user_profiles WHERE user_id = $1`, "user-1").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestStore_UpsertDeliveryAgentProfile(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	ctx := context.Background()
	require.NoError(t, pc.TruncateAll(ctx))

	st := store.New(pc.DB)
	p := agentPayload()

	require.NoError(t, st.EnsureUserProfile(ctx, "user-2", p.Email, p.Phone))
	require.NoError(t, st.UpsertDeliveryAgentProfile(ctx, "user-2", p))

	var status, city string
	require.NoError(t, pc.QueryRow(ctx,
		`SELECT status, city FROM delivery_agent_profiles WHERE user_id = $1`, "user-2").Scan(&status, &city))
	assert.Equal(t, models.StatusPending, status)
	assert.Equal(t, "Guadalajara", city)

	// A retried registration replaces, never duplicates.
	p.City = "Monterrey"
	require.NoError(t, st.UpsertDeliveryAgentProfile(ctx, "user-2", p))

	var count int
	require.NoError(t, pc.QueryRow(ctx,
		`SELECT COUNT(*) FROM delivery_agent_profiles WHERE user_id = $1`, "user-2").Scan(&count))
	assert.Equal(t, 1, count)
	require.NoError(t, pc.QueryRow(ctx,
		`SELECT city FROM delivery_agent_profiles WHERE user_id = $1`, "user-2").Scan(&city))
	assert.Equal(t, "Monterrey", city)
}

func TestStore_UpsertDeliveryAgentProfileRequiresUserProfile(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	ctx := context.Background()
	require.NoError(t, pc.TruncateAll(ctx))

	st := store.New(pc.DB)

	// The FK to user_profiles mirrors the backend's consistency constraint.
	err := st.UpsertDeliveryAgentProfile(ctx, "missing-user", agentPayload())
	assert.Error(t, err)
}

func TestStore_EnsureAccountTwiceIsNoError(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	ctx := context.Background()
	require.NoError(t, pc.TruncateAll(ctx))

	st := store.New(pc.DB)

	require.NoError(t, st.EnsureAccount(ctx, "user-3", models.KindDeliveryAgent))
	require.NoError(t, st.EnsureAccount(ctx, "user-3", models.KindDeliveryAgent))

	var count int
	require.NoError(t, pc.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE user_id = $1`, "user-3").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestStore_NilStoreReturnsNotConfigured(t *testing.T) {
	var st *store.Store
	err := st.EnsureUserProfile(context.Background(), "u", "e@example.com", "+525512345678")
	assert.ErrorIs(t, err, store.ErrNotConfigured)
}
