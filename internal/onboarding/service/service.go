// Package service runs the account-provisioning orchestration: availability
// prechecks, identity signup, profile ensure, and domain registration, in
// that order, against a backend whose RPC surface varies by deployment age.
//
// The flow is strictly sequential and synchronous per request. Once signup
// has succeeded the orchestrator always runs to completion: aborting after
// identity creation would orphan an account, so every later failure degrades
// the outcome instead of failing it.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mesa/internal/backend"
	"mesa/internal/onboarding/metrics"
	"mesa/internal/onboarding/models"
	"mesa/internal/onboarding/precheck"
	"mesa/internal/onboarding/store"
	"mesa/internal/reconcile"
	dErrors "mesa/pkg/domain-errors"
)

// Retry tuning defaults. Fixed delays, not exponential: worst-case added
// latency stays small and predictable (~3s).
const (
	defaultProfileRetryLimit   = 10
	defaultProfileRetryDelay   = 300 * time.Millisecond
	defaultRegistrarRetryDelay = 350 * time.Millisecond

	defaultCountryCode = "52"
)

// rpcInvoker is the slice of the backend client the stage closures use.
type rpcInvoker interface {
	Rpc(ctx context.Context, fn string, params map[string]any) (json.RawMessage, error)
	RpcFirstAvailable(ctx context.Context, fns []string, params map[string]any) (json.RawMessage, string, error)
}

// Service is the provisioning orchestrator for both entity kinds.
type Service struct {
	backend    backend.Factory
	prechecker *precheck.Checker
	store      *store.Store
	events     *reconcile.Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer

	countryCode string

	profileRetryLimit   int
	profileRetryDelay   time.Duration
	registrarRetryDelay time.Duration

	sleep func(ctx context.Context, d time.Duration)
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithPrechecker(c *precheck.Checker) Option {
	return func(s *Service) { s.prechecker = c }
}

func WithStore(st *store.Store) Option {
	return func(s *Service) { s.store = st }
}

func WithEvents(p *reconcile.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithDefaultCountryCode sets the country code prepended to national phone
// numbers during canonicalization.
func WithDefaultCountryCode(code string) Option {
	return func(s *Service) { s.countryCode = code }
}

// WithRetryTuning overrides the retry ceilings and delays. Used by tests;
// production keeps the defaults.
func WithRetryTuning(profileLimit int, profileDelay, registrarDelay time.Duration) Option {
	return func(s *Service) {
		s.profileRetryLimit = profileLimit
		s.profileRetryDelay = profileDelay
		s.registrarRetryDelay = registrarDelay
	}
}

// New constructs the orchestrator. The backend factory is the only required
// dependency; everything else is optional and degrades gracefully.
func New(factory backend.Factory, opts ...Option) *Service {
	s := &Service{
		backend:             factory,
		logger:              slog.Default(),
		tracer:              otel.Tracer("mesa/onboarding"),
		countryCode:         defaultCountryCode,
		profileRetryLimit:   defaultProfileRetryLimit,
		profileRetryDelay:   defaultProfileRetryDelay,
		registrarRetryDelay: defaultRegistrarRetryDelay,
		sleep: func(ctx context.Context, d time.Duration) {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
			case <-t.C:
			}
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterRestaurant provisions a restaurant owner end to end.
func (s *Service) RegisterRestaurant(ctx context.Context, p models.RegisterRestaurantPayload) models.Outcome {
	phone := models.CanonicalPhone(p.Phone, s.countryCode)
	return s.run(ctx, s.restaurantPlan(p, phone))
}

// RegisterDeliveryAgent provisions a delivery driver end to end.
func (s *Service) RegisterDeliveryAgent(ctx context.Context, p models.RegisterDeliveryAgentPayload) models.Outcome {
	phone := models.CanonicalPhone(p.Phone, s.countryCode)
	return s.run(ctx, s.agentPlan(p, phone))
}

// run executes the provisioning stages for one registration. A fresh backend
// client is built per call chain.
func (s *Service) run(ctx context.Context, pl plan) models.Outcome {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "onboarding.register",
		trace.WithAttributes(attribute.String("entity.kind", string(pl.kind))))
	defer span.End()

	client := s.backend()

	if outcome, failed := s.runPrecheck(ctx, client, pl); failed {
		s.finish(ctx, pl, outcome, start)
		return outcome
	}

	userID, outcome, failed := s.createIdentity(ctx, client, pl)
	if failed {
		s.finish(ctx, pl, outcome, start)
		return outcome
	}

	// Past this point the identity exists; no failure may produce ok=false.
	ensured := s.ensureProfile(ctx, client, pl, userID)

	outcome = s.registerEntity(ctx, client, pl, userID, ensured)
	s.finish(ctx, pl, outcome, start)
	return outcome
}

// runPrecheck runs the availability checks. Only a definitive "taken"
// verdict fails the registration.
func (s *Service) runPrecheck(ctx context.Context, client rpcInvoker, pl plan) (models.Outcome, bool) {
	if s.prechecker == nil {
		return models.Outcome{}, false
	}
	ctx, span := s.tracer.Start(ctx, "onboarding.precheck")
	defer span.End()

	err := s.prechecker.Check(ctx, client, precheck.Request{
		Email:        pl.email,
		Phone:        pl.phone,
		BusinessName: pl.businessName,
	})
	if err == nil {
		return models.Outcome{}, false
	}

	s.metrics.RecordStageFailure(string(pl.kind), "precheck")

	var dErr *dErrors.Error
	if errors.As(err, &dErr) && dErr.Code == dErrors.CodeValidation {
		return models.Outcome{OK: false, Error: dErr.Message}, true
	}
	return models.Outcome{OK: false, Error: models.MsgSignupFailed}, true
}

// createIdentity performs signup and extracts the user id.
func (s *Service) createIdentity(ctx context.Context, client *backend.Client, pl plan) (string, models.Outcome, bool) {
	ctx, span := s.tracer.Start(ctx, "onboarding.identity")
	defer span.End()

	userID, err := client.Signup(ctx, backend.SignupRequest{
		Email:    pl.email,
		Password: pl.password,
		Data:     pl.signupData,
	})
	if err != nil {
		s.metrics.RecordStageFailure(string(pl.kind), "identity")
		if backend.IsDuplicateUser(err) {
			// The precheck race: another request won the insert.
			return "", models.Outcome{OK: false, Error: models.MsgEmailTaken}, true
		}
		s.logger.ErrorContext(ctx, "identity signup failed",
			"kind", pl.kind,
			"error", err,
		)
		return "", models.Outcome{OK: false, Error: models.MsgSignupFailed}, true
	}
	if userID == "" {
		s.metrics.RecordStageFailure(string(pl.kind), "identity")
		return "", models.Outcome{OK: false, Error: models.MsgNoUserID}, true
	}
	return userID, models.Outcome{}, false
}

// ensureProfile runs the bounded ensure loop. It never fails the request:
// the registrar's own fallback path can create the profile row if this loop
// never succeeded.
func (s *Service) ensureProfile(ctx context.Context, client rpcInvoker, pl plan, userID string) bool {
	ctx, span := s.tracer.Start(ctx, "onboarding.profile")
	defer span.End()

	params := pl.profileParams(userID)

	for attempt := 1; attempt <= s.profileRetryLimit; attempt++ {
		_, fn, err := client.RpcFirstAvailable(ctx, profileEnsureFns, params)
		if err == nil {
			if fn != profileEnsureFns[0] {
				s.metrics.RecordFallback("profile")
			}
			s.metrics.ObserveProfileAttempts(attempt)
			return true
		}

		if backend.IsFunctionNotFound(err) {
			// Neither ensure function exists on this backend.
			s.logger.WarnContext(ctx, "no profile ensure function available",
				"kind", pl.kind,
				"userID", userID,
			)
			s.metrics.RecordStageFailure(string(pl.kind), "profile")
			return false
		}

		if backend.IsForeignKeyViolation(err) && attempt < s.profileRetryLimit {
			// The identity is not yet visible to the profile's FK check.
			s.sleep(ctx, s.profileRetryDelay)
			continue
		}

		s.logger.WarnContext(ctx, "profile ensure abandoned",
			"kind", pl.kind,
			"userID", userID,
			"attempt", attempt,
			"error", err,
		)
		s.metrics.RecordStageFailure(string(pl.kind), "profile")
		return false
	}

	s.metrics.RecordStageFailure(string(pl.kind), "profile")
	return false
}

// registerEntity runs the domain registration: atomic RPC first, one
// FK-lag retry, then the decomposed fallback. The identity already exists,
// so every terminal failure here degrades the outcome instead of failing it.
func (s *Service) registerEntity(ctx context.Context, client rpcInvoker, pl plan, userID string, profileEnsured bool) models.Outcome {
	ctx, span := s.tracer.Start(ctx, "onboarding.registrar")
	defer span.End()

	params := pl.registerParams(userID)

	_, fn, err := client.RpcFirstAvailable(ctx, pl.registerFns, params)
	if err == nil {
		if fn != pl.registerFns[0] {
			s.metrics.RecordFallback("registrar")
		}
		s.events.Publish(ctx, reconcile.NewCompleted(pl.kind, userID, pl.email))
		return models.Outcome{OK: true, UserID: userID}
	}

	if backend.IsForeignKeyViolation(err) {
		// Same consistency-lag class as the profile stage: wait, re-ensure
		// the profile once, then retry the atomic RPC exactly once.
		s.sleep(ctx, s.registrarRetryDelay)
		s.ensureProfileOnce(ctx, client, pl, userID)

		_, _, err = client.RpcFirstAvailable(ctx, pl.registerFns, params)
		if err == nil {
			s.events.Publish(ctx, reconcile.NewCompleted(pl.kind, userID, pl.email))
			return models.Outcome{OK: true, UserID: userID}
		}
	}

	if backend.IsFunctionNotFound(err) {
		s.metrics.RecordFallback("registrar")
		return s.registerDecomposed(ctx, client, pl, userID)
	}

	// Neither FK lag nor a missing function: log the raw cause, degrade.
	s.logger.ErrorContext(ctx, "domain registration failed",
		"kind", pl.kind,
		"userID", userID,
		"profileEnsured", profileEnsured,
		"error", err,
	)
	s.metrics.RecordStageFailure(string(pl.kind), "registrar")
	s.events.Publish(ctx, reconcile.NewDegraded(pl.kind, userID, pl.email,
		[]string{"domain_entity", "financial_account"}, err.Error()))
	return models.Outcome{OK: true, UserID: userID, Error: models.MsgDegraded}
}

// registerDecomposed is the fallback sequence for backends without the
// atomic register RPC: write the entity directly, then create the financial
// account best-effort.
func (s *Service) registerDecomposed(ctx context.Context, client rpcInvoker, pl plan, userID string) models.Outcome {
	if err := pl.fallbackEntity(ctx, client, userID); err != nil {
		s.logger.ErrorContext(ctx, "fallback entity write failed",
			"kind", pl.kind,
			"userID", userID,
			"error", err,
		)
		s.metrics.RecordStageFailure(string(pl.kind), "registrar")
		s.events.Publish(ctx, reconcile.NewDegraded(pl.kind, userID, pl.email,
			[]string{"domain_entity", "financial_account"}, err.Error()))
		return models.Outcome{OK: true, UserID: userID, Error: models.MsgDegraded}
	}

	if _, err := client.Rpc(ctx, accountCreateFn, map[string]any{
		"p_user_id":      userID,
		"p_account_type": string(pl.kind),
	}); err != nil {
		// A missing financial account is repaired by the reconciler, never
		// reported to the caller.
		s.logger.WarnContext(ctx, "financial account creation failed",
			"kind", pl.kind,
			"userID", userID,
			"error", err,
		)
		s.events.Publish(ctx, reconcile.NewDegraded(pl.kind, userID, pl.email,
			[]string{"financial_account"}, err.Error()))
		return models.Outcome{OK: true, UserID: userID}
	}

	s.events.Publish(ctx, reconcile.NewCompleted(pl.kind, userID, pl.email))
	return models.Outcome{OK: true, UserID: userID}
}

// ensureProfileOnce is the single re-ensure the registrar's FK-lag retry
// performs.
func (s *Service) ensureProfileOnce(ctx context.Context, client rpcInvoker, pl plan, userID string) {
	if _, _, err := client.RpcFirstAvailable(ctx, profileEnsureFns, pl.profileParams(userID)); err != nil {
		s.logger.DebugContext(ctx, "re-ensure before registrar retry failed",
			"kind", pl.kind,
			"userID", userID,
			"error", err,
		)
	}
}

func (s *Service) finish(ctx context.Context, pl plan, outcome models.Outcome, start time.Time) {
	s.metrics.ObserveDuration(string(pl.kind), time.Since(start).Seconds())
	s.metrics.RecordOutcome(string(pl.kind), outcomeLabel(outcome))
	s.logger.InfoContext(ctx, "registration finished",
		"kind", pl.kind,
		"ok", outcome.OK,
		"degraded", outcome.OK && outcome.Error != "",
		"duration", time.Since(start),
	)
}

func outcomeLabel(o models.Outcome) string {
	switch {
	case o.OK && o.Error != "":
		return "degraded"
	case o.OK:
		return "success"
	default:
		return "failed"
	}
}
