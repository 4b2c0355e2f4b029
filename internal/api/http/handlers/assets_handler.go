package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/bazaar-ticketing/internal/storage"
	apperrors "github.com/spec-kit/bazaar-ticketing/pkg/util/errorutil"
)

// AssetsHandler streams stored ticket images.
type AssetsHandler struct {
	store storage.AssetStore
}

// NewAssetsHandler constructs handler.
func NewAssetsHandler(store storage.AssetStore) *AssetsHandler {
	return &AssetsHandler{store: store}
}

// Get handles GET /assets/:key.
func (h *AssetsHandler) Get(c *fiber.Ctx) error {
	key := c.Params("key")
	if !storage.ValidKey(key) {
		return apperrors.NewValidationError("invalid asset key", map[string]any{"key": key})
	}
	body, err := h.store.Open(c.UserContext(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NewNotFound("asset", map[string]any{"key": key})
		}
		return err
	}
	c.Set(fiber.HeaderContentType, storage.ContentTypeForKey(key))
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
	return c.SendStream(body)
}
