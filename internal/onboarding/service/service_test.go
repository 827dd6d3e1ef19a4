package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mesa/internal/backend"
	"mesa/internal/onboarding/models"
	"mesa/internal/onboarding/precheck"
	"mesa/internal/platform/config"
)

// fakeBackend simulates the identity API and the SQL RPC surface. Each RPC
// function serves a queue of canned responses; the last response repeats.
// Functions with no configured responses answer "function not found", which
// is exactly how a backend without that function behaves.
type fakeBackend struct {
	mu sync.Mutex

	signupStatus int
	signupBody   string
	signupCalls  int

	rpc      map[string][]rpcResponse
	rpcCalls []string
	params   map[string][]map[string]any
}

type rpcResponse struct {
	status int
	body   string
}

func respOK(body string) rpcResponse { return rpcResponse{status: http.StatusOK, body: body} }

func respFnNotFound() rpcResponse {
	return rpcResponse{
		status: http.StatusNotFound,
		body:   `{"code":"PGRST202","message":"Could not find the function in the schema cache"}`,
	}
}

func respFKViolation() rpcResponse {
	return rpcResponse{
		status: http.StatusConflict,
		body:   `{"code":"23503","message":"insert violates foreign key constraint: key (user_id) is not present in table \"users\""}`,
	}
}

func respServerError() rpcResponse {
	return rpcResponse{status: http.StatusInternalServerError, body: `{"message":"internal error"}`}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		signupStatus: http.StatusOK,
		signupBody:   `{"id":"user-123"}`,
		rpc:          map[string][]rpcResponse{},
		params:       map[string][]map[string]any{},
	}
}

func (f *fakeBackend) on(fn string, responses ...rpcResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rpc[fn] = append(f.rpc[fn], responses...)
}

func (f *fakeBackend) callCount(fn string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.rpcCalls {
		if c == fn {
			n++
		}
	}
	return n
}

func (f *fakeBackend) lastParams(fn string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	ps := f.params[fn]
	if len(ps) == 0 {
		return nil
	}
	return ps[len(ps)-1]
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/signup", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.signupCalls++
		status, body := f.signupStatus, f.signupBody
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
	mux.HandleFunc("/rest/v1/rpc/", func(w http.ResponseWriter, r *http.Request) {
		fn := strings.TrimPrefix(r.URL.Path, "/rest/v1/rpc/")

		var params map[string]any
		_ = json.NewDecoder(r.Body).Decode(&params)

		f.mu.Lock()
		f.rpcCalls = append(f.rpcCalls, fn)
		f.params[fn] = append(f.params[fn], params)
		queue := f.rpc[fn]
		var resp rpcResponse
		if len(queue) == 0 {
			resp = respFnNotFound()
		} else {
			resp = queue[0]
			if len(queue) > 1 {
				f.rpc[fn] = queue[1:]
			}
		}
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.status)
		_, _ = io.WriteString(w, resp.body)
	})
	return mux
}

func newTestService(t *testing.T, fake *fakeBackend, opts ...Option) *Service {
	t.Helper()

	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	factory := backend.NewFactory(config.BackendConfig{
		URL:        srv.URL,
		AnonKey:    "test-anon-key",
		ServiceKey: "test-service-key",
		Timeout:    5 * time.Second,
	}, logger)

	base := []Option{
		WithLogger(logger),
		WithPrechecker(precheck.New(nil, logger)),
		WithRetryTuning(10, time.Millisecond, time.Millisecond),
	}
	return New(factory, append(base, opts...)...)
}

func restaurantPayload() models.RegisterRestaurantPayload {
	return models.RegisterRestaurantPayload{
		OwnerName:      "Ana García",
		Email:          "ana@example.com",
		Phone:          "55 1234 5678",
		Password:       "s3cret-pass",
		RestaurantName: "Tacos El Güero",
		Address:        "Av. Insurgentes Sur 100, CDMX",
		LocationLat:    19.4326,
		LocationLon:    -99.1332,
	}
}

func agentPayload() models.RegisterDeliveryAgentPayload {
	return models.RegisterDeliveryAgentPayload{
		FirstName: "Luis",
		LastName:  "Hernández",
		Email:     "luis@example.com",
		Password:  "s3cret-pass",
		Phone:     "+525598765432",
		City:      "Guadalajara",
	}
}

func TestRegisterRestaurant_HappyPath(t *testing.T) {
	fake := newFakeBackend()
	fake.on("check_email_availability", respOK(`true`))
	fake.on("check_phone_availability", respOK(`true`))
	fake.on("check_restaurant_name_availability", respOK(`true`))
	fake.on("ensure_user_profile_v2", respOK(`{}`))
	fake.on("register_restaurant_v2", respOK(`{}`))

	svc := newTestService(t, fake)
	out := svc.RegisterRestaurant(context.Background(), restaurantPayload())

	assert.True(t, out.OK)
	assert.Equal(t, "user-123", out.UserID)
	assert.Empty(t, out.Error)
	assert.Equal(t, 1, fake.signupCalls)
	assert.Equal(t, 1, fake.callCount("register_restaurant_v2"))

	params := fake.lastParams("register_restaurant_v2")
	require.NotNil(t, params)
	assert.Equal(t, "user-123", params["p_user_id"])
	assert.Equal(t, "Tacos El Güero", params["p_restaurant_name"])
	assert.Equal(t, "+525512345678", params["p_phone"])
}

func TestRegisterRestaurant_DuplicateEmailPrecheck(t *testing.T) {
	fake := newFakeBackend()
	fake.on("check_email_availability", respOK(`false`))

	svc := newTestService(t, fake)
	out := svc.RegisterRestaurant(context.Background(), restaurantPayload())

	assert.False(t, out.OK)
	assert.Equal(t, models.MsgEmailTaken, out.Error)
	assert.Equal(t, 0, fake.signupCalls)
}

func TestRegisterRestaurant_DuplicateEmailRaceAtSignup(t *testing.T) {
	fake := newFakeBackend()
	fake.on("check_email_availability", respOK(`true`))
	fake.on("check_phone_availability", respOK(`true`))
	fake.on("check_restaurant_name_availability", respOK(`true`))
	fake.signupStatus = http.StatusUnprocessableEntity
	fake.signupBody = `{"error_code":"user_already_exists","msg":"User already registered"}`

	svc := newTestService(t, fake)
	out := svc.RegisterRestaurant(context.Background(), restaurantPayload())

	assert.False(t, out.OK)
	assert.Equal(t, models.MsgEmailTaken, out.Error)
}

func TestRegisterRestaurant_StaleBackendFallback(t *testing.T) {
	fake := newFakeBackend()
	fake.on("ensure_user_profile_v2", respOK(`{}`))
	// register_restaurant_v2 is not configured: function not found.
	fake.on("create_restaurant_public", respOK(`{}`))
	fake.on("create_account_public", respServerError())

	svc := newTestService(t, fake)
	out := svc.RegisterRestaurant(context.Background(), restaurantPayload())

	// Financial-account absence is repaired by reconciliation, not reported.
	assert.True(t, out.OK)
	assert.Equal(t, "user-123", out.UserID)
	assert.Empty(t, out.Error)
	assert.Equal(t, 1, fake.callCount("create_restaurant_public"))
	assert.Equal(t, 1, fake.callCount("create_account_public"))
}

func TestRegisterRestaurant_ConsistencyLagThenRecovery(t *testing.T) {
	fake := newFakeBackend()
	fake.on("ensure_user_profile_v2", respFKViolation(), respFKViolation(), respOK(`{}`))
	fake.on("register_restaurant_v2", respOK(`{}`))

	svc := newTestService(t, fake)
	out := svc.RegisterRestaurant(context.Background(), restaurantPayload())

	assert.True(t, out.OK)
	assert.Empty(t, out.Error)
	assert.Equal(t, 3, fake.callCount("ensure_user_profile_v2"))
}

func TestRegisterRestaurant_TotalDomainFailureIsDegraded(t *testing.T) {
	fake := newFakeBackend()
	fake.on("ensure_user_profile_v2", respOK(`{}`))
	// No register RPC at all, and the direct write errors too.
	fake.on("create_restaurant_public", respServerError())

	svc := newTestService(t, fake)
	out := svc.RegisterRestaurant(context.Background(), restaurantPayload())

	assert.True(t, out.OK)
	assert.Equal(t, "user-123", out.UserID)
	assert.Equal(t, models.MsgDegraded, out.Error)
	assert.Equal(t, 0, fake.callCount("create_account_public"))
}

func TestEnsureProfile_RetryBound(t *testing.T) {
	fake := newFakeBackend()
	// Identity never becomes visible: FK violation forever.
	fake.on("ensure_user_profile_v2", respFKViolation())
	fake.on("register_restaurant_v2", respOK(`{}`))

	svc := newTestService(t, fake)
	out := svc.RegisterRestaurant(context.Background(), restaurantPayload())

	// Exactly the ceiling, then graceful fallthrough to the registrar.
	assert.Equal(t, 10, fake.callCount("ensure_user_profile_v2"))
	assert.True(t, out.OK)
	assert.Empty(t, out.Error)
}

func TestEnsureProfile_FallbackOrdering(t *testing.T) {
	fake := newFakeBackend()
	// Only the older ensure function exists.
	fake.on("ensure_user_profile_public", respOK(`{}`))
	fake.on("register_restaurant_v2", respOK(`{}`))

	svc := newTestService(t, fake)
	out := svc.RegisterRestaurant(context.Background(), restaurantPayload())

	assert.True(t, out.OK)
	assert.Equal(t, 1, fake.callCount("ensure_user_profile_v2"))
	assert.Equal(t, 1, fake.callCount("ensure_user_profile_public"))
	// The probe stops at the fallback; the loop does not keep retrying.
	assert.Equal(t, 1, fake.callCount("register_restaurant_v2"))
}

func TestRegisterRestaurant_FKLagAtRegistrarThenRecovery(t *testing.T) {
	fake := newFakeBackend()
	fake.on("ensure_user_profile_v2", respOK(`{}`))
	fake.on("register_restaurant_v2", respFKViolation(), respOK(`{}`))

	svc := newTestService(t, fake)
	out := svc.RegisterRestaurant(context.Background(), restaurantPayload())

	assert.True(t, out.OK)
	assert.Empty(t, out.Error)
	assert.Equal(t, 2, fake.callCount("register_restaurant_v2"))
	// Ensure ran during the loop and once more before the registrar retry.
	assert.Equal(t, 2, fake.callCount("ensure_user_profile_v2"))
}

func TestRegisterRestaurant_FKLagAtRegistrarExhaustedIsDegraded(t *testing.T) {
	fake := newFakeBackend()
	fake.on("ensure_user_profile_v2", respOK(`{}`))
	fake.on("register_restaurant_v2", respFKViolation())

	svc := newTestService(t, fake)
	out := svc.RegisterRestaurant(context.Background(), restaurantPayload())

	assert.True(t, out.OK)
	assert.Equal(t, "user-123", out.UserID)
	assert.Equal(t, models.MsgDegraded, out.Error)
	// Exactly one retry after the first FK violation.
	assert.Equal(t, 2, fake.callCount("register_restaurant_v2"))
}

func TestRegisterRestaurant_MissingUserIDIsFatal(t *testing.T) {
	fake := newFakeBackend()
	fake.signupBody = `{}`

	svc := newTestService(t, fake)
	out := svc.RegisterRestaurant(context.Background(), restaurantPayload())

	assert.False(t, out.OK)
	assert.Equal(t, models.MsgNoUserID, out.Error)
}

func TestRegisterRestaurant_SignupFailureIsFatal(t *testing.T) {
	fake := newFakeBackend()
	fake.signupStatus = http.StatusInternalServerError
	fake.signupBody = `{"msg":"database unavailable"}`

	svc := newTestService(t, fake)
	out := svc.RegisterRestaurant(context.Background(), restaurantPayload())

	assert.False(t, out.OK)
	assert.Equal(t, models.MsgSignupFailed, out.Error)
	// Raw backend details never reach the caller.
	assert.NotContains(t, out.Error, "database")
}

func TestRegisterRestaurant_NestedUserIDShape(t *testing.T) {
	fake := newFakeBackend()
	fake.signupBody = `{"user":{"id":"user-nested"}}`
	fake.on("ensure_user_profile_v2", respOK(`{}`))
	fake.on("register_restaurant_v2", respOK(`{}`))

	svc := newTestService(t, fake)
	out := svc.RegisterRestaurant(context.Background(), restaurantPayload())

	assert.True(t, out.OK)
	assert.Equal(t, "user-nested", out.UserID)
}

func TestRegisterDeliveryAgent_HappyPath(t *testing.T) {
	fake := newFakeBackend()
	fake.on("ensure_user_profile_v2", respOK(`{}`))
	fake.on("register_delivery_agent_v2", respOK(`{}`))

	svc := newTestService(t, fake)
	out := svc.RegisterDeliveryAgent(context.Background(), agentPayload())

	assert.True(t, out.OK)
	assert.Equal(t, "user-123", out.UserID)
	assert.Empty(t, out.Error)

	params := fake.lastParams("register_delivery_agent_v2")
	require.NotNil(t, params)
	assert.Equal(t, "Luis", params["p_first_name"])
	assert.Equal(t, "Guadalajara", params["p_city"])
	assert.Equal(t, "+525598765432", params["p_phone"])
}

func TestRegisterDeliveryAgent_LegacyRegisterFallback(t *testing.T) {
	fake := newFakeBackend()
	fake.on("ensure_user_profile_v2", respOK(`{}`))
	// Only the pre-v2 register function exists.
	fake.on("register_delivery_agent", respOK(`{}`))

	svc := newTestService(t, fake)
	out := svc.RegisterDeliveryAgent(context.Background(), agentPayload())

	assert.True(t, out.OK)
	assert.Empty(t, out.Error)
	assert.Equal(t, 1, fake.callCount("register_delivery_agent_v2"))
	assert.Equal(t, 1, fake.callCount("register_delivery_agent"))
}

func TestRegisterDeliveryAgent_NoRegisterRPCAndNoStoreIsDegraded(t *testing.T) {
	fake := newFakeBackend()
	fake.on("ensure_user_profile_v2", respOK(`{}`))
	// Neither register function exists and no fallback store is wired.

	svc := newTestService(t, fake)
	out := svc.RegisterDeliveryAgent(context.Background(), agentPayload())

	assert.True(t, out.OK)
	assert.Equal(t, "user-123", out.UserID)
	assert.Equal(t, models.MsgDegraded, out.Error)
}

func TestRegisterDeliveryAgent_NoBusinessNamePrecheck(t *testing.T) {
	fake := newFakeBackend()
	fake.on("check_restaurant_name_availability", respOK(`false`))
	fake.on("ensure_user_profile_v2", respOK(`{}`))
	fake.on("register_delivery_agent_v2", respOK(`{}`))

	svc := newTestService(t, fake)
	out := svc.RegisterDeliveryAgent(context.Background(), agentPayload())

	// Agents have no business name; the name check must not run.
	assert.True(t, out.OK)
	assert.Equal(t, 0, fake.callCount("check_restaurant_name_availability"))
}

func TestOutcome_NoOrphanedAccounts(t *testing.T) {
	// For any ok=true outcome the identity must exist, and a missing domain
	// entity must be flagged through a non-empty error.
	cases := []struct {
		name  string
		setup func(f *fakeBackend)
	}{
		{"happy", func(f *fakeBackend) {
			f.on("ensure_user_profile_v2", respOK(`{}`))
			f.on("register_restaurant_v2", respOK(`{}`))
		}},
		{"fallback", func(f *fakeBackend) {
			f.on("ensure_user_profile_v2", respOK(`{}`))
			f.on("create_restaurant_public", respOK(`{}`))
		}},
		{"degraded", func(f *fakeBackend) {
			f.on("ensure_user_profile_v2", respOK(`{}`))
			f.on("create_restaurant_public", respServerError())
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := newFakeBackend()
			tc.setup(fake)

			svc := newTestService(t, fake)
			out := svc.RegisterRestaurant(context.Background(), restaurantPayload())

			require.True(t, out.OK)
			assert.NotEmpty(t, out.UserID)
			if fake.callCount("register_restaurant_v2") == 0 && fake.callCount("create_restaurant_public") != 1 {
				assert.NotEmpty(t, out.Error)
			}
		})
	}
}
