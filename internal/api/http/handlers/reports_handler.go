package handlers

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/bazaar-ticketing/internal/api/dto"
	"github.com/spec-kit/bazaar-ticketing/internal/auth"
	"github.com/spec-kit/bazaar-ticketing/internal/domain"
	"github.com/spec-kit/bazaar-ticketing/internal/export"
	"github.com/spec-kit/bazaar-ticketing/internal/service"
	apperrors "github.com/spec-kit/bazaar-ticketing/pkg/util/errorutil"
)

// ReportsHandler serves the weekly security report.
type ReportsHandler struct {
	service   *service.ReportService
	exporter  *export.Exporter
	validator *dto.Validator
	now       func() time.Time
}

// NewReportsHandler constructs handler.
func NewReportsHandler(reportService *service.ReportService, exporter *export.Exporter, validator *dto.Validator) *ReportsHandler {
	return &ReportsHandler{service: reportService, exporter: exporter, validator: validator, now: time.Now}
}

// SubmitMarketReport POST /reports/markets.
func (h *ReportsHandler) SubmitMarketReport(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.SubmitMarketReportRequest
	if err := bind(c, h.validator, &req); err != nil {
		return err
	}
	entry, err := h.service.SubmitMarketReport(c.UserContext(), user, req.Input())
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": entry})
}

// Clear POST /reports/clear.
func (h *ReportsHandler) Clear(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.ClearReportRequest
	if err := bind(c, h.validator, &req); err != nil {
		return err
	}
	report, err := h.service.Clear(c.UserContext(), user, domain.ReviewerRole(req.Role))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"period":                report.Period,
		"status":                report.Status(),
		"cleared_by_it":         report.ClearedByIT,
		"cleared_by_monitoring": report.ClearedByMonitoring,
		"fully_cleared":         report.FullyCleared(),
	}})
}

// Current GET /reports/current.
func (h *ReportsHandler) Current(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	view, err := h.service.ViewReport(c.UserContext(), user)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": view})
}

// ExportCurrent GET /reports/current/export.
func (h *ReportsHandler) ExportCurrent(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	view, err := h.service.ViewReport(c.UserContext(), user)
	if err != nil {
		return err
	}
	now := h.now()
	var buf bytes.Buffer
	if err := h.exporter.WriteSecurityReport(&buf, view, now); err != nil {
		return apperrors.NewInternalError(err)
	}
	return attachment(c, export.SecurityReportFilename(now), buf.Bytes())
}
