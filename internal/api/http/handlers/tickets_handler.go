package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/bazaar-ticketing/internal/api/dto"
	"github.com/spec-kit/bazaar-ticketing/internal/auth"
	"github.com/spec-kit/bazaar-ticketing/internal/domain"
	"github.com/spec-kit/bazaar-ticketing/internal/export"
	"github.com/spec-kit/bazaar-ticketing/internal/service"
	"github.com/spec-kit/bazaar-ticketing/internal/storage"
	apperrors "github.com/spec-kit/bazaar-ticketing/pkg/util/errorutil"
)

const imagesField = "images"

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service   *service.TicketService
	uploader  *storage.Uploader
	exporter  *export.Exporter
	validator *dto.Validator
	now       func() time.Time
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, uploader *storage.Uploader, exporter *export.Exporter, validator *dto.Validator) *TicketsHandler {
	return &TicketsHandler{
		service:   ticketService,
		uploader:  uploader,
		exporter:  exporter,
		validator: validator,
		now:       time.Now,
	}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := bind(c, h.validator, &req); err != nil {
		return err
	}
	ticket, err := h.service.Create(c.UserContext(), user, service.TicketCreateInput{
		Title:                   req.Title,
		Description:             req.Description,
		AssignedTo:              req.AssignedTo.Ref(),
		Priority:                domain.TicketPriority(req.Priority),
		EstimatedResolutionTime: req.EstimatedResolutionTime,
	})
	if err != nil {
		return err
	}
	return h.respond(c, http.StatusCreated, ticket)
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.Get(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return h.respond(c, http.StatusOK, ticket)
}

// GetByCustomID GET /tickets/custom/:customId.
func (h *TicketsHandler) GetByCustomID(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	customID, err := strconv.ParseInt(c.Params("customId"), 10, 64)
	if err != nil || customID <= 0 {
		return apperrors.NewValidationError("custom id must be a positive integer", map[string]any{"custom_id": c.Params("customId")})
	}
	ticket, err := h.service.GetByCustomID(c.UserContext(), user, customID)
	if err != nil {
		return err
	}
	return h.respond(c, http.StatusOK, ticket)
}

// QueryTickets POST /tickets/query.
func (h *TicketsHandler) QueryTickets(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.TicketQueryRequest
	if err := bind(c, h.validator, &req); err != nil {
		return err
	}
	views, err := h.service.Query(c.UserContext(), user, req.Query())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponses(views)})
}

// ExportTickets POST /tickets/export.
func (h *TicketsHandler) ExportTickets(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.ExportTicketsRequest
	if err := bind(c, h.validator, &req); err != nil {
		return err
	}
	views, err := h.service.Query(c.UserContext(), user, req.Query())
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := h.exporter.WriteTickets(&buf, views); err != nil {
		return apperrors.NewInternalError(err)
	}
	return attachment(c, export.TicketsFilename(h.now()), buf.Bytes())
}

// UpdateStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := bind(c, h.validator, &req); err != nil {
		return err
	}
	ticket, err := h.service.UpdateStatus(c.UserContext(), user, c.Params("id"), domain.TicketStatus(req.Status))
	if err != nil {
		return err
	}
	return h.respond(c, http.StatusOK, ticket)
}

// UpdatePriority PATCH /tickets/:id/priority.
func (h *TicketsHandler) UpdatePriority(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.UpdatePriorityRequest
	if err := bind(c, h.validator, &req); err != nil {
		return err
	}
	ticket, err := h.service.SetPriority(c.UserContext(), user, c.Params("id"), domain.TicketPriority(req.Priority))
	if err != nil {
		return err
	}
	return h.respond(c, http.StatusOK, ticket)
}

// UpdateEstimate PATCH /tickets/:id/estimate.
func (h *TicketsHandler) UpdateEstimate(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.UpdateEstimateRequest
	if err := bind(c, h.validator, &req); err != nil {
		return err
	}
	ticket, err := h.service.SetEstimatedResolution(c.UserContext(), user, c.Params("id"), req.EstimatedResolutionTime)
	if err != nil {
		return err
	}
	return h.respond(c, http.StatusOK, ticket)
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := bind(c, h.validator, &req); err != nil {
		return err
	}
	comment, err := h.service.AppendComment(c.UserContext(), user, c.Params("id"), req.Text)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCommentResponse(comment, user)})
}

// AddImages POST /tickets/:id/images. Expects multipart files under "images".
func (h *TicketsHandler) AddImages(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	ticketID := c.Params("id")
	// check access before anything is written to the store
	if _, err := h.service.Get(c.UserContext(), user, ticketID); err != nil {
		return err
	}

	form, err := c.MultipartForm()
	if err != nil {
		return apperrors.NewValidationError("multipart form required", nil)
	}
	files := form.File[imagesField]
	if len(files) == 0 {
		return apperrors.NewValidationError("no files uploaded", map[string]any{"field": imagesField})
	}

	uploads := make([]storage.Upload, 0, len(files))
	var opened []multipart.File
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return apperrors.NewValidationError("unreadable upload", map[string]any{"file": fh.Filename})
		}
		opened = append(opened, f)
		uploads = append(uploads, storage.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Size:        fh.Size,
			Body:        f,
		})
	}

	keys, err := h.uploader.Save(c.UserContext(), user.ID, uploads)
	if err != nil {
		return err
	}
	ticket, err := h.service.AddImages(c.UserContext(), user, ticketID, keys)
	if err != nil {
		return err
	}
	return h.respond(c, http.StatusOK, ticket)
}

func (h *TicketsHandler) respond(c *fiber.Ctx, status int, ticket *domain.Ticket) error {
	view, err := h.service.View(c.UserContext(), ticket)
	if err != nil {
		return err
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.NewTicketResponse(*view)})
}
