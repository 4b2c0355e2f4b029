package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/bazaar-ticketing/internal/api/dto"
	"github.com/spec-kit/bazaar-ticketing/internal/auth"
	"github.com/spec-kit/bazaar-ticketing/internal/domain"
	"github.com/spec-kit/bazaar-ticketing/internal/service"
)

// UnitsHandler lists and creates departments and markets.
type UnitsHandler struct {
	directory *service.DirectoryService
	validator *dto.Validator
}

// NewUnitsHandler constructs handler.
func NewUnitsHandler(directory *service.DirectoryService, validator *dto.Validator) *UnitsHandler {
	return &UnitsHandler{directory: directory, validator: validator}
}

// List handles GET /units?kind=Department|Market.
func (h *UnitsHandler) List(c *fiber.Ctx) error {
	units, err := h.directory.List(c.UserContext(), domain.UnitKind(c.Query("kind", string(domain.UnitKindMarket))))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUnitResponses(units)})
}

// Create handles POST /units.
func (h *UnitsHandler) Create(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateUnitRequest
	if err := bind(c, h.validator, &req); err != nil {
		return err
	}
	unit, err := h.directory.CreateUnit(c.UserContext(), user, req.Name, domain.UnitKind(req.Kind))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewUnitResponses([]domain.OrganizationalUnit{*unit})[0]})
}
