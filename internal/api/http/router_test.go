package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/bazaar-ticketing/internal/api/dto"
	"github.com/spec-kit/bazaar-ticketing/internal/api/http/handlers"
	"github.com/spec-kit/bazaar-ticketing/internal/auth"
	"github.com/spec-kit/bazaar-ticketing/internal/config"
	"github.com/spec-kit/bazaar-ticketing/internal/domain"
	"github.com/spec-kit/bazaar-ticketing/internal/events"
	"github.com/spec-kit/bazaar-ticketing/internal/export"
	"github.com/spec-kit/bazaar-ticketing/internal/observability"
	"github.com/spec-kit/bazaar-ticketing/internal/repository"
	"github.com/spec-kit/bazaar-ticketing/internal/service"
	"github.com/spec-kit/bazaar-ticketing/internal/storage"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type testServer struct {
	app     *fiber.App
	tokens  *auth.TokenManager
	itDept  domain.OrganizationalUnit
	marketA domain.OrganizationalUnit

	marketUser *domain.User
	itUser     *domain.User
	monitor    *domain.User
	superAdmin *domain.User
}

type result struct {
	status int
	header func(string) string
	raw    []byte
	body   map[string]any
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	units := repository.NewMemoryUnitRepository()
	users := repository.NewMemoryUserRepository()
	s := &testServer{tokens: auth.NewTokenManager("test-secret", 5)}

	unit := func(name string, kind domain.UnitKind) domain.OrganizationalUnit {
		u := domain.OrganizationalUnit{Name: name, Kind: kind}
		require.NoError(t, units.Create(ctx, &u))
		return u
	}
	s.itDept = unit("IT", domain.UnitKindDepartment)
	monitoring := unit("Monitoring", domain.UnitKindDepartment)
	s.marketA = unit("Market A", domain.UnitKindMarket)

	user := func(name string, role domain.Role, unit domain.OrganizationalUnit) *domain.User {
		u := &domain.User{Name: name, Email: name + "@example.com", Role: role, AssignedTo: unit.Ref()}
		require.NoError(t, users.Create(ctx, u))
		return u
	}
	s.marketUser = user("marketer", domain.RoleUser, s.marketA)
	s.itUser = user("it", domain.RoleUser, s.itDept)
	s.monitor = user("monitor", domain.RoleUser, monitoring)
	s.superAdmin = user("root", domain.RoleSuperAdmin, s.itDept)

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	storageCfg := config.StorageConfig{MaxUploadBytes: 1 << 20, AllowedTypes: []string{"image/png"}}

	dispatcher := events.NewInMemoryDispatcher()
	directory := service.NewDirectoryService(units)
	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo: repository.NewMemoryTicketRepository(),
		UserRepo:   users,
		Directory:  directory,
		Dispatcher: dispatcher,
	})
	reports := service.NewReportService(service.ReportDependencies{
		ReportRepo: repository.NewMemoryReportRepository(),
		Directory:  directory,
		Dispatcher: dispatcher,
		Config: config.ReportsConfig{
			ITDepartment:         "IT",
			MonitoringDepartment: "Monitoring",
			OperationsDepartment: "Operations",
		},
	})
	authService := service.NewAuthService(config.AuthConfig{BcryptCost: 4}, service.AuthDependencies{
		UserRepo:     users,
		Directory:    directory,
		TokenManager: s.tokens,
	})

	validator := dto.NewValidator()
	exporter := export.NewExporter(nil)
	metrics := observability.NewMetrics()
	s.app = fiber.New()
	RegisterMiddlewares(s.app, zap.NewNop(), metrics, MiddlewareConfig{Timeout: 5 * time.Second})
	RegisterRoutes(s.app, RouteConfig{
		Health:         handlers.NewHealthHandler("bazaar-ticketing", "test", metrics, nil),
		Auth:           handlers.NewAuthHandler(authService, validator),
		Tickets:        handlers.NewTicketsHandler(tickets, storage.NewUploader(store, storageCfg), exporter, validator),
		Reports:        handlers.NewReportsHandler(reports, exporter, validator),
		Assets:         handlers.NewAssetsHandler(store),
		Units:          handlers.NewUnitsHandler(directory, validator),
		AuthMiddleware: auth.NewAuthMiddleware(s.tokens, users),
	})
	return s
}

func (s *testServer) token(t *testing.T, user *domain.User) string {
	t.Helper()
	token, _, err := s.tokens.GenerateToken(user)
	require.NoError(t, err)
	return token
}

func (s *testServer) send(t *testing.T, method, path string, user *domain.User, contentType string, body io.Reader) result {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set(fiber.HeaderContentType, contentType)
	}
	if user != nil {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+s.token(t, user))
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	res := result{status: resp.StatusCode, header: resp.Header.Get, raw: raw}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &res.body))
	}
	return res
}

func (s *testServer) do(t *testing.T, method, path string, user *domain.User, payload any) result {
	t.Helper()
	if payload == nil {
		return s.send(t, method, path, user, "", nil)
	}
	encoded, err := json.Marshal(payload)
	require.NoError(t, err)
	return s.send(t, method, path, user, fiber.MIMEApplicationJSON, bytes.NewReader(encoded))
}

func (r result) data() map[string]any {
	data, _ := r.body["data"].(map[string]any)
	return data
}

func (r result) errorCode() string {
	errBody, _ := r.body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func (s *testServer) createTicket(t *testing.T, title string) map[string]any {
	t.Helper()
	res := s.do(t, fiber.MethodPost, "/tickets", s.marketUser, fiber.Map{
		"title":       title,
		"description": "camera at gate 2 is offline",
		"assigned_to": fiber.Map{"id": s.itDept.ID, "kind": "Department"},
		"priority":    "high",
	})
	require.Equal(t, fiber.StatusCreated, res.status, string(res.raw))
	return res.data()
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	res := s.do(t, fiber.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, fiber.StatusOK, res.status)
	assert.Equal(t, "alive", res.body["status"])

	res = s.do(t, fiber.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, fiber.StatusOK, res.status)
	assert.Equal(t, "ready", res.body["status"])

	res = s.do(t, fiber.MethodGet, "/health/metrics", nil, nil)
	assert.Equal(t, fiber.StatusOK, res.status)
	requests, _ := res.data()["requests"].(map[string]any)
	assert.NotEmpty(t, requests)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	res := s.do(t, fiber.MethodPost, "/tickets/query", nil, fiber.Map{"ticket_type": "created"})
	assert.Equal(t, fiber.StatusUnauthorized, res.status)
	assert.Equal(t, "UNAUTHORIZED", res.errorCode())

	res = s.send(t, fiber.MethodGet, "/auth/me", nil, "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, res.status)
}

func TestLoginAndCreateUser(t *testing.T) {
	s := newTestServer(t)

	res := s.do(t, fiber.MethodPost, "/users", s.superAdmin, fiber.Map{
		"name":        "Clerk",
		"email":       "clerk@example.com",
		"password":    "clerk-password",
		"assigned_to": fiber.Map{"id": s.marketA.ID, "kind": "Market"},
	})
	require.Equal(t, fiber.StatusCreated, res.status, string(res.raw))
	assert.Equal(t, "clerk@example.com", res.data()["email"])
	assert.NotContains(t, string(res.raw), "password")

	res = s.do(t, fiber.MethodPost, "/users", s.itUser, fiber.Map{
		"name": "x", "email": "x@example.com", "password": "long-enough",
	})
	assert.Equal(t, fiber.StatusForbidden, res.status)

	res = s.do(t, fiber.MethodPost, "/auth/login", nil, fiber.Map{"email": "clerk@example.com", "password": "clerk-password"})
	require.Equal(t, fiber.StatusOK, res.status, string(res.raw))
	authData, _ := res.data()["auth"].(map[string]any)
	assert.NotEmpty(t, authData["token"])

	res = s.do(t, fiber.MethodPost, "/auth/login", nil, fiber.Map{"email": "clerk@example.com", "password": "nope"})
	assert.Equal(t, fiber.StatusUnauthorized, res.status)

	res = s.do(t, fiber.MethodPost, "/auth/login", nil, fiber.Map{"email": "not-an-email"})
	assert.Equal(t, fiber.StatusBadRequest, res.status)
	assert.Equal(t, "VALIDATION_FAILED", res.errorCode())
}

func TestTicketLifecycle(t *testing.T) {
	s := newTestServer(t)

	first := s.createTicket(t, "Broken camera")
	second := s.createTicket(t, "Gate alarm")
	assert.EqualValues(t, 1, first["custom_id"])
	assert.EqualValues(t, 2, second["custom_id"])
	assignedTo, _ := first["assigned_to"].(map[string]any)
	assert.Equal(t, "IT", assignedTo["name"])

	id := first["id"].(string)
	res := s.do(t, fiber.MethodGet, "/tickets/"+id, s.itUser, nil)
	assert.Equal(t, fiber.StatusOK, res.status)

	res = s.do(t, fiber.MethodPatch, "/tickets/"+id+"/status", s.marketUser, fiber.Map{"status": "in-progress"})
	assert.Equal(t, fiber.StatusForbidden, res.status)

	res = s.do(t, fiber.MethodPatch, "/tickets/"+id+"/status", s.itUser, fiber.Map{"status": "closed"})
	assert.Equal(t, fiber.StatusConflict, res.status)
	assert.Equal(t, "INVALID_TRANSITION", res.errorCode())

	for _, status := range []string{"in-progress", "resolved"} {
		res = s.do(t, fiber.MethodPatch, "/tickets/"+id+"/status", s.itUser, fiber.Map{"status": status})
		require.Equal(t, fiber.StatusOK, res.status, string(res.raw))
	}
	assert.Equal(t, "resolved", res.data()["status"])
	assert.NotNil(t, res.data()["resolved_in"])

	res = s.do(t, fiber.MethodPatch, "/tickets/"+id+"/priority", s.itUser, fiber.Map{"priority": "urgent"})
	assert.Equal(t, fiber.StatusBadRequest, res.status)

	res = s.do(t, fiber.MethodPatch, "/tickets/"+id+"/estimate", s.itUser, fiber.Map{"estimated_resolution_time": "2024-02-01T10:00:00Z"})
	require.Equal(t, fiber.StatusOK, res.status, string(res.raw))
	assert.Equal(t, "2024-02-01T10:00:00Z", res.data()["estimated_resolution_time"])

	res = s.do(t, fiber.MethodPost, "/tickets/"+id+"/comments", s.marketUser, fiber.Map{"text": "thanks"})
	require.Equal(t, fiber.StatusCreated, res.status, string(res.raw))
	commentedBy, _ := res.data()["commented_by"].(map[string]any)
	assert.Equal(t, "marketer", commentedBy["name"])

	res = s.do(t, fiber.MethodGet, "/tickets/custom/2", s.itUser, nil)
	assert.Equal(t, fiber.StatusForbidden, res.status)
	res = s.do(t, fiber.MethodGet, "/tickets/custom/2", s.superAdmin, nil)
	require.Equal(t, fiber.StatusOK, res.status)
	assert.Equal(t, "Gate alarm", res.data()["title"])
	res = s.do(t, fiber.MethodGet, "/tickets/custom/abc", s.superAdmin, nil)
	assert.Equal(t, fiber.StatusBadRequest, res.status)
}

func TestCreateTicketValidation(t *testing.T) {
	s := newTestServer(t)

	res := s.do(t, fiber.MethodPost, "/tickets", s.marketUser, fiber.Map{
		"description": "no title",
		"assigned_to": fiber.Map{"id": s.itDept.ID, "kind": "Team"},
	})
	assert.Equal(t, fiber.StatusBadRequest, res.status)
	details, _ := res.body["error"].(map[string]any)["details"].(map[string]any)
	assert.Contains(t, details, "title")
	assert.Contains(t, details, "assigned_to.kind")

	res = s.do(t, fiber.MethodPost, "/tickets", s.marketUser, fiber.Map{
		"title":       "wrong kind",
		"description": "d",
		"assigned_to": fiber.Map{"id": s.itDept.ID, "kind": "Market"},
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, res.status)
	assert.Equal(t, "KIND_MISMATCH", res.errorCode())
}

func TestQueryAndExportTickets(t *testing.T) {
	s := newTestServer(t)
	s.createTicket(t, "Broken camera")

	res := s.do(t, fiber.MethodPost, "/tickets/query", s.itUser, fiber.Map{"ticket_type": "assigned"})
	require.Equal(t, fiber.StatusOK, res.status, string(res.raw))
	items, _ := res.body["data"].([]any)
	assert.Len(t, items, 1)

	res = s.do(t, fiber.MethodPost, "/tickets/query", s.itUser, fiber.Map{"ticket_type": "created"})
	items, _ = res.body["data"].([]any)
	assert.Empty(t, items)

	res = s.do(t, fiber.MethodPost, "/tickets/query", s.marketUser, fiber.Map{
		"ticket_type": "created",
		"start_date":  "2024-03-02",
		"end_date":    "2024-03-01",
	})
	assert.Equal(t, fiber.StatusBadRequest, res.status)
	assert.Equal(t, "INVALID_RANGE", res.errorCode())

	res = s.do(t, fiber.MethodPost, "/tickets/export", s.marketUser, fiber.Map{"ticket_type": "created"})
	require.Equal(t, fiber.StatusOK, res.status, string(res.raw))
	assert.Equal(t, xlsxContentType, res.header(fiber.HeaderContentType))
	assert.Contains(t, res.header(fiber.HeaderContentDisposition), "Tickets_Report_")
	assert.Equal(t, "PK", string(res.raw[:2]))
}

func TestTicketImages(t *testing.T) {
	s := newTestServer(t)
	id := s.createTicket(t, "Broken camera")["id"].(string)

	upload := func(user *domain.User, filename, contentType string) result {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename="%s"`, filename))
		header.Set(fiber.HeaderContentType, contentType)
		part, err := w.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte("\x89PNG fake image"))
		require.NoError(t, err)
		require.NoError(t, w.Close())
		return s.send(t, fiber.MethodPost, "/tickets/"+id+"/images", user, w.FormDataContentType(), &buf)
	}

	res := upload(s.marketUser, "gate.png", "text/plain")
	assert.Equal(t, fiber.StatusBadRequest, res.status)

	res = upload(s.monitor, "gate.png", "image/png")
	assert.Equal(t, fiber.StatusForbidden, res.status)

	res = upload(s.marketUser, "gate.png", "image/png")
	require.Equal(t, fiber.StatusOK, res.status, string(res.raw))
	images, _ := res.data()["images"].([]any)
	require.Len(t, images, 1)
	key := images[0].(string)
	assert.Contains(t, key, "ticket-"+s.marketUser.ID+"-")

	res = s.do(t, fiber.MethodGet, "/assets/"+key, s.itUser, nil)
	require.Equal(t, fiber.StatusOK, res.status)
	assert.Equal(t, "\x89PNG fake image", string(res.raw))
	assert.Equal(t, "image/png", res.header(fiber.HeaderContentType))
	assert.Equal(t, "nosniff", res.header(fiber.HeaderXContentTypeOptions))

	res = upload(s.marketUser, "page.html", "image/png")
	require.Equal(t, fiber.StatusOK, res.status, string(res.raw))
	images, _ = res.data()["images"].([]any)
	require.Len(t, images, 2)
	htmlKey := images[1].(string)
	assert.True(t, strings.HasSuffix(htmlKey, ".png"), "key extension follows the declared image type")

	res = s.do(t, fiber.MethodGet, "/assets/"+htmlKey, s.itUser, nil)
	require.Equal(t, fiber.StatusOK, res.status)
	assert.Equal(t, "image/png", res.header(fiber.HeaderContentType))

	res = s.do(t, fiber.MethodGet, "/assets/missing.png", s.itUser, nil)
	assert.Equal(t, fiber.StatusNotFound, res.status)
}

func TestWeeklyReportFlow(t *testing.T) {
	s := newTestServer(t)

	res := s.do(t, fiber.MethodPost, "/reports/markets", s.itUser, fiber.Map{"total_cctv": 1})
	assert.Equal(t, fiber.StatusForbidden, res.status)

	res = s.do(t, fiber.MethodPost, "/reports/markets", s.marketUser, fiber.Map{"total_cctv": 2, "faulty_cctv": 3})
	assert.Equal(t, fiber.StatusBadRequest, res.status)

	res = s.do(t, fiber.MethodPost, "/reports/markets", s.marketUser, fiber.Map{
		"total_cctv":       10,
		"faulty_cctv":      1,
		"biometric_status": true,
		"comments":         "one camera down",
	})
	require.Equal(t, fiber.StatusOK, res.status, string(res.raw))
	assert.Equal(t, true, res.data()["is_submitted"])

	res = s.do(t, fiber.MethodGet, "/reports/current", s.monitor, nil)
	assert.Equal(t, fiber.StatusForbidden, res.status)

	res = s.do(t, fiber.MethodPost, "/reports/clear", s.monitor, fiber.Map{"role": "IT"})
	assert.Equal(t, fiber.StatusForbidden, res.status)

	res = s.do(t, fiber.MethodPost, "/reports/clear", s.itUser, fiber.Map{"role": "IT"})
	require.Equal(t, fiber.StatusOK, res.status, string(res.raw))
	assert.Equal(t, true, res.data()["cleared_by_it"])

	res = s.do(t, fiber.MethodGet, "/reports/current", s.monitor, nil)
	require.Equal(t, fiber.StatusOK, res.status, string(res.raw))
	markets, _ := res.data()["markets"].([]any)
	require.Len(t, markets, 1)
	assert.Equal(t, "Market A", markets[0].(map[string]any)["market_name"])

	res = s.do(t, fiber.MethodGet, "/reports/current/export", s.itUser, nil)
	require.Equal(t, fiber.StatusOK, res.status)
	assert.Equal(t, xlsxContentType, res.header(fiber.HeaderContentType))
	assert.Contains(t, res.header(fiber.HeaderContentDisposition), "PSBA_Security_Surveillance_Report_")
}

func TestUnits(t *testing.T) {
	s := newTestServer(t)

	res := s.do(t, fiber.MethodPost, "/units", s.superAdmin, fiber.Map{"name": "Market B", "kind": "Market"})
	require.Equal(t, fiber.StatusCreated, res.status, string(res.raw))

	res = s.do(t, fiber.MethodPost, "/units", s.itUser, fiber.Map{"name": "Market C", "kind": "Market"})
	assert.Equal(t, fiber.StatusForbidden, res.status)

	res = s.do(t, fiber.MethodGet, "/units?kind=Market", s.marketUser, nil)
	require.Equal(t, fiber.StatusOK, res.status)
	items, _ := res.body["data"].([]any)
	assert.Len(t, items, 2)
}

func TestRateLimit(t *testing.T) {
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), nil, MiddlewareConfig{RateLimitPerSecond: 0.001, RateLimitBurst: 1})
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ping", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/ping", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}

func TestPanicRecovery(t *testing.T) {
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), observability.NewMetrics(), MiddlewareConfig{})
	app.Get("/boom", func(c *fiber.Ctx) error { panic("boom") })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/boom", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
