package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "mesa/pkg/domain-errors"
)

func validRestaurantPayload() RegisterRestaurantPayload {
	return RegisterRestaurantPayload{
		OwnerName:      "Ana Torres",
		Email:          "ana@example.com",
		Phone:          "5512345678",
		Password:       "hunter2hunter2",
		RestaurantName: "La Taqueria",
		Address:        "Av. Insurgentes Sur 100, CDMX",
		LocationLat:    19.3906,
		LocationLon:    -99.1711,
	}
}

func TestRegisterRestaurantPayload(t *testing.T) {
	t.Run("valid payload passes", func(t *testing.T) {
		p := validRestaurantPayload()
		require.NoError(t, p.Validate())
	})

	t.Run("sanitize trims and normalize lowers email", func(t *testing.T) {
		p := validRestaurantPayload()
		p.Email = "  Ana@Example.COM "
		p.OwnerName = " Ana Torres "
		p.Sanitize()
		p.Normalize()
		assert.Equal(t, "ana@example.com", p.Email)
		assert.Equal(t, "Ana Torres", p.OwnerName)
	})

	t.Run("rejects malformed email", func(t *testing.T) {
		p := validRestaurantPayload()
		p.Email = "not-an-email"
		err := p.Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects short password", func(t *testing.T) {
		p := validRestaurantPayload()
		p.Password = "short"
		require.Error(t, p.Validate())
	})

	t.Run("rejects blank restaurant name", func(t *testing.T) {
		p := validRestaurantPayload()
		p.RestaurantName = "   "
		require.Error(t, p.Validate())
	})
}

func TestRegisterDeliveryAgentPayload(t *testing.T) {
	valid := RegisterDeliveryAgentPayload{
		FirstName: "Luis",
		LastName:  "Mendoza",
		Email:     "luis@example.com",
		Password:  "hunter2hunter2",
		Phone:     "5587654321",
		City:      "Guadalajara",
	}

	t.Run("valid payload passes", func(t *testing.T) {
		p := valid
		require.NoError(t, p.Validate())
	})

	t.Run("rejects missing city", func(t *testing.T) {
		p := valid
		p.City = ""
		require.Error(t, p.Validate())
	})
}
