// Package reconcile publishes provisioning outcome events so the back-office
// reconciler can repair accounts that finished onboarding in a degraded
// state. Publishing is strictly best effort: a broker outage must never
// change a registration's outcome.
package reconcile

import (
	"time"

	"github.com/google/uuid"

	"mesa/internal/onboarding/models"
)

// Event kinds emitted on the provisioning topic.
const (
	KindCompleted = "provisioning.completed"
	KindDegraded  = "provisioning.degraded"
)

// Event is one provisioning outcome. Degraded events carry the stages that
// did not complete so the reconciler knows what to repair.
type Event struct {
	ID         string            `json:"id"`
	Kind       string            `json:"kind"`
	EntityKind models.EntityKind `json:"entityKind"`
	UserID     string            `json:"userId"`
	Email      string            `json:"email"`
	Missing    []string          `json:"missing,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// NewCompleted builds a provisioning.completed event.
func NewCompleted(entity models.EntityKind, userID, email string) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       KindCompleted,
		EntityKind: entity,
		UserID:     userID,
		Email:      email,
		OccurredAt: time.Now().UTC(),
	}
}

// NewDegraded builds a provisioning.degraded event naming the stages that
// were not completed and why.
func NewDegraded(entity models.EntityKind, userID, email string, missing []string, reason string) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       KindDegraded,
		EntityKind: entity,
		UserID:     userID,
		Email:      email,
		Missing:    missing,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}
