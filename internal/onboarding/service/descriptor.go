package service

import (
	"context"
	"fmt"

	"mesa/internal/onboarding/models"
)

// RPC capability tables. Each table lists candidate function names in
// precedence order; older backends only expose the later names. Names and
// parameters are fixed by the deployed SQL surface and must not drift.
var (
	profileEnsureFns = []string{"ensure_user_profile_v2", "ensure_user_profile_public"}

	restaurantRegisterFns = []string{"register_restaurant_v2"}
	agentRegisterFns      = []string{"register_delivery_agent_v2", "register_delivery_agent"}

	accountCreateFn      = "create_account_public"
	restaurantFallbackFn = "create_restaurant_public"
)

// plan is one registration's entity descriptor bound to its payload: the
// capability tables plus the payload-to-parameter mappings each stage needs.
// The orchestrator itself is entity-agnostic and runs only against a plan.
type plan struct {
	kind     models.EntityKind
	email    string
	password string
	phone    string // canonical

	// businessName is checked for availability when non-empty.
	businessName string

	// signupData travels as opaque profile metadata on the identity.
	signupData map[string]any

	profileParams  func(userID string) map[string]any
	registerFns    []string
	registerParams func(userID string) map[string]any

	// fallbackEntity writes the domain entity directly when no register RPC
	// resolves. nil means the entity has no decomposed path.
	fallbackEntity func(ctx context.Context, c rpcInvoker, userID string) error
}

func (s *Service) restaurantPlan(p models.RegisterRestaurantPayload, phone string) plan {
	return plan{
		kind:         models.KindRestaurant,
		email:        p.Email,
		password:     p.Password,
		phone:        phone,
		businessName: p.RestaurantName,
		signupData: map[string]any{
			"name":            p.OwnerName,
			"phone":           phone,
			"address":         p.Address,
			"role":            "restaurant_owner",
			"restaurant_name": p.RestaurantName,
			"location_lat":    p.LocationLat,
			"location_lon":    p.LocationLon,
		},
		profileParams: func(userID string) map[string]any {
			return map[string]any{
				"p_user_id": userID,
				"p_email":   p.Email,
				"p_name":    p.OwnerName,
				"p_role":    "restaurant_owner",
				"p_phone":   phone,
				"p_address": p.Address,
				"p_lat":     p.LocationLat,
				"p_lon":     p.LocationLon,
			}
		},
		registerFns: restaurantRegisterFns,
		registerParams: func(userID string) map[string]any {
			return map[string]any{
				"p_user_id":            userID,
				"p_restaurant_name":    p.RestaurantName,
				"p_phone":              phone,
				"p_address":            p.Address,
				"p_location_lat":       p.LocationLat,
				"p_location_lon":       p.LocationLon,
				"p_location_place_id":  p.LocationPlaceID,
				"p_address_structured": p.AddressStructured,
			}
		},
		fallbackEntity: func(ctx context.Context, c rpcInvoker, userID string) error {
			_, err := c.Rpc(ctx, restaurantFallbackFn, map[string]any{
				"p_user_id":            userID,
				"p_restaurant_name":    p.RestaurantName,
				"p_phone":              phone,
				"p_address":            p.Address,
				"p_location_lat":       p.LocationLat,
				"p_location_lon":       p.LocationLon,
				"p_location_place_id":  p.LocationPlaceID,
				"p_address_structured": p.AddressStructured,
			})
			return err
		},
	}
}

func (s *Service) agentPlan(p models.RegisterDeliveryAgentPayload, phone string) plan {
	return plan{
		kind:     models.KindDeliveryAgent,
		email:    p.Email,
		password: p.Password,
		phone:    phone,
		signupData: map[string]any{
			"first_name": p.FirstName,
			"last_name":  p.LastName,
			"phone":      phone,
			"city":       p.City,
			"role":       "delivery_agent",
		},
		profileParams: func(userID string) map[string]any {
			return map[string]any{
				"p_user_id":    userID,
				"p_email":      p.Email,
				"p_first_name": p.FirstName,
				"p_last_name":  p.LastName,
				"p_user_type":  "delivery_agent",
				"p_phone":      phone,
			}
		},
		registerFns: agentRegisterFns,
		registerParams: func(userID string) map[string]any {
			return map[string]any{
				"p_user_id":    userID,
				"p_email":      p.Email,
				"p_phone":      phone,
				"p_first_name": p.FirstName,
				"p_last_name":  p.LastName,
				"p_city":       p.City,
			}
		},
		fallbackEntity: func(ctx context.Context, _ rpcInvoker, userID string) error {
			if s.store == nil {
				return fmt.Errorf("no register RPC available and no fallback store configured")
			}
			if err := s.store.EnsureUserProfile(ctx, userID, p.Email, phone); err != nil {
				return err
			}
			return s.store.UpsertDeliveryAgentProfile(ctx, userID, p)
		},
	}
}
