package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mesa/internal/onboarding/models"
	"mesa/pkg/platform/httputil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mock_provisioner.go -package=mocks

// Provisioner runs the registration orchestration for one entity kind.
// Outcomes are values, not errors: a failed registration is still a normal
// response the portal branches on.
type Provisioner interface {
	RegisterRestaurant(ctx context.Context, p models.RegisterRestaurantPayload) models.Outcome
	RegisterDeliveryAgent(ctx context.Context, p models.RegisterDeliveryAgentPayload) models.Outcome
}

type Handler struct {
	service Provisioner
	logger  *slog.Logger
}

func New(service Provisioner, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/api/onboarding/restaurants", h.HandleRegisterRestaurant)
	r.Post("/api/onboarding/delivery-agents", h.HandleRegisterDeliveryAgent)
}

// HandleRegisterRestaurant runs the restaurant provisioning flow. The
// response is always 200 with the outcome JSON; only a malformed or invalid
// body produces a 400. The UI branches on ok, never on status.
func (h *Handler) HandleRegisterRestaurant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[models.RegisterRestaurantPayload](w, r, h.logger)
	if !ok {
		return
	}

	outcome := h.service.RegisterRestaurant(ctx, *req)
	httputil.WriteJSON(w, http.StatusOK, outcome)
}

// HandleRegisterDeliveryAgent runs the delivery-agent provisioning flow.
func (h *Handler) HandleRegisterDeliveryAgent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[models.RegisterDeliveryAgentPayload](w, r, h.logger)
	if !ok {
		return
	}

	outcome := h.service.RegisterDeliveryAgent(ctx, *req)
	httputil.WriteJSON(w, http.StatusOK, outcome)
}
