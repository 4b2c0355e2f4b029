package dto

import (
	"time"

	"github.com/spec-kit/bazaar-ticketing/internal/domain"
)

// CreateUnitRequest adds a department or market.
type CreateUnitRequest struct {
	Name string `json:"name" validate:"required,max=120"`
	Kind string `json:"kind" validate:"required,oneof=Department Market"`
}

// UnitResponse is a department or market.
type UnitResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Kind      domain.UnitKind `json:"kind"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewUnitResponses maps units to their wire form.
func NewUnitResponses(units []domain.OrganizationalUnit) []UnitResponse {
	out := make([]UnitResponse, 0, len(units))
	for _, unit := range units {
		out = append(out, UnitResponse{ID: unit.ID, Name: unit.Name, Kind: unit.Kind, CreatedAt: unit.CreatedAt})
	}
	return out
}
