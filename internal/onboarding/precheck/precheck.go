// Package precheck runs the best-effort availability checks (email, phone,
// business name) before a registration commits to signup.
//
// A definitive "taken" answer fails the registration fast with a
// field-specific message. Anything else - the check RPC not being deployed,
// a backend hiccup - is inconclusive, never fatal: prechecks are a UX
// optimization, the backend's unique constraints remain the correctness
// gate.
package precheck

import (
	"context"
	"encoding/json"
	"log/slog"

	"mesa/internal/backend"
	"mesa/internal/onboarding/models"
	dErrors "mesa/pkg/domain-errors"
)

// Capability tables: ordered candidate RPC names per check. The restaurant
// name check shipped under two names across backend releases.
var (
	EmailCheckFns = []string{"check_email_availability"}
	PhoneCheckFns = []string{"check_phone_availability"}
	NameCheckFns  = []string{"check_restaurant_name_availability", "check_restaurant_name_available"}
)

// Invoker is the slice of the backend client the prechecker needs.
type Invoker interface {
	RpcFirstAvailable(ctx context.Context, fns []string, params map[string]any) (json.RawMessage, string, error)
}

// Checker runs availability prechecks, optionally remembering "taken"
// verdicts in a short-lived cache so repeated wizard submissions don't
// re-hit the backend.
type Checker struct {
	cache  *TakenCache
	logger *slog.Logger
}

// New creates a Checker. cache may be nil to disable caching.
func New(cache *TakenCache, logger *slog.Logger) *Checker {
	return &Checker{cache: cache, logger: logger}
}

// Request is one registration's set of prechecks. BusinessName is empty for
// delivery agents.
type Request struct {
	Email        string
	Phone        string // canonical form
	BusinessName string
}

// Check runs all applicable availability checks in order. The first
// definitive "taken" verdict wins; inconclusive checks pass through.
func (c *Checker) Check(ctx context.Context, inv Invoker, req Request) error {
	if err := c.one(ctx, inv, EmailCheckFns, map[string]any{"p_email": req.Email},
		"email", req.Email, models.MsgEmailTaken); err != nil {
		return err
	}
	if err := c.one(ctx, inv, PhoneCheckFns, map[string]any{"p_phone": req.Phone},
		"phone", req.Phone, models.MsgPhoneTaken); err != nil {
		return err
	}
	if req.BusinessName != "" {
		if err := c.one(ctx, inv, NameCheckFns, map[string]any{"p_name": req.BusinessName},
			"name", req.BusinessName, models.MsgNameTaken); err != nil {
			return err
		}
	}
	return nil
}

func (c *Checker) one(ctx context.Context, inv Invoker, fns []string, params map[string]any, field, value, takenMsg string) error {
	if c.cache.Taken(ctx, field, value) {
		return dErrors.New(dErrors.CodeValidation, takenMsg)
	}

	result, fn, err := inv.RpcFirstAvailable(ctx, fns, params)
	if err != nil {
		if backend.IsFunctionNotFound(err) {
			c.logger.DebugContext(ctx, "availability check not deployed, skipping",
				"field", field,
			)
			return nil
		}
		c.logger.WarnContext(ctx, "availability check inconclusive",
			"field", field,
			"error", err,
		)
		return nil
	}

	var available bool
	if err := json.Unmarshal(result, &available); err != nil {
		c.logger.WarnContext(ctx, "availability check returned unexpected shape",
			"field", field,
			"fn", fn,
			"error", err,
		)
		return nil
	}

	if !available {
		c.cache.MarkTaken(ctx, field, value)
		return dErrors.New(dErrors.CodeValidation, takenMsg)
	}
	return nil
}
