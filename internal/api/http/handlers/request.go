package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/bazaar-ticketing/internal/api/dto"
	apperrors "github.com/spec-kit/bazaar-ticketing/pkg/util/errorutil"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// bind parses the JSON body into req and validates it.
func bind(c *fiber.Ctx, v *dto.Validator, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return v.Struct(req)
}

func attachment(c *fiber.Ctx, filename string, body []byte) error {
	c.Attachment(filename)
	c.Set(fiber.HeaderContentType, xlsxContentType)
	return c.Send(body)
}
