package models

import (
	"strings"

	s "mesa/pkg/strings"
	"mesa/pkg/validation"
)

// EntityKind identifies which business entity a registration provisions.
type EntityKind string

const (
	KindRestaurant    EntityKind = "restaurant"
	KindDeliveryAgent EntityKind = "delivery_agent"
)

// StatusPending is the lifecycle status every freshly registered domain
// entity starts in; activation happens after manual review.
const StatusPending = "pending"

// RegisterRestaurantPayload is the wizard's terminal submission for a
// restaurant signup.
type RegisterRestaurantPayload struct {
	OwnerName         string         `json:"owner_name" validate:"required,notblank"`
	Email             string         `json:"email" validate:"required,email"`
	Phone             string         `json:"phone" validate:"required,min=8"`
	Password          string         `json:"password" validate:"required,min=8"`
	RestaurantName    string         `json:"restaurant_name" validate:"required,notblank"`
	Address           string         `json:"address" validate:"required,notblank"`
	LocationLat       float64        `json:"location_lat" validate:"latitude"`
	LocationLon       float64        `json:"location_lon" validate:"longitude"`
	LocationPlaceID   string         `json:"location_place_id,omitempty"`
	AddressStructured map[string]any `json:"address_structured,omitempty"`
}

func (p *RegisterRestaurantPayload) Sanitize() {
	s.TrimStrings(&p.OwnerName, &p.Email, &p.Phone, &p.RestaurantName, &p.Address, &p.LocationPlaceID)
}

func (p *RegisterRestaurantPayload) Normalize() {
	p.Email = strings.ToLower(p.Email)
}

func (p *RegisterRestaurantPayload) Validate() error {
	return validation.Validate(p)
}

// RegisterDeliveryAgentPayload is the wizard's terminal submission for a
// delivery-driver signup. Field names mirror the portal's form model.
type RegisterDeliveryAgentPayload struct {
	FirstName string `json:"firstName" validate:"required,notblank"`
	LastName  string `json:"lastName" validate:"required,notblank"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	Phone     string `json:"phone" validate:"required,min=8"`
	City      string `json:"city" validate:"required,notblank"`
}

func (p *RegisterDeliveryAgentPayload) Sanitize() {
	s.TrimStrings(&p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.City)
}

func (p *RegisterDeliveryAgentPayload) Normalize() {
	p.Email = strings.ToLower(p.Email)
}

func (p *RegisterDeliveryAgentPayload) Validate() error {
	return validation.Validate(p)
}

// Outcome is the terminal provisioning result handed back to the portal.
//
// OK=true with a non-empty Error is a degraded success: the identity (and
// usually the profile) exist but the domain entity needs manual follow-up.
// Callers must treat it as success-with-followup, never as failure.
type Outcome struct {
	OK     bool   `json:"ok"`
	UserID string `json:"userId,omitempty"`
	Error  string `json:"error,omitempty"`
}
