package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/bazaar-ticketing/internal/cache"
	"github.com/spec-kit/bazaar-ticketing/internal/config"
	"github.com/spec-kit/bazaar-ticketing/internal/domain"
	"github.com/spec-kit/bazaar-ticketing/internal/events"
	"github.com/spec-kit/bazaar-ticketing/internal/repository"
	"github.com/spec-kit/bazaar-ticketing/pkg/util/errorutil"
)

// ReportService runs the weekly security report workflow.
type ReportService struct {
	reports    repository.ReportRepository
	directory  *DirectoryService
	cache      cache.Cache
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.ReportsConfig
	now        func() time.Time
}

// ReportDependencies bundles collaborators for the report service.
type ReportDependencies struct {
	ReportRepo repository.ReportRepository
	Directory  *DirectoryService
	Cache      cache.Cache
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Config     config.ReportsConfig
	Clock      func() time.Time
}

// MarketReportInput is a market's weekly submission.
type MarketReportInput struct {
	MarketID        string
	Counts          domain.SecurityCounts
	BiometricStatus bool
	Comments        string
}

// MarketReportView is a market slot with the market name resolved.
type MarketReportView struct {
	domain.MarketSecurityReport
	MarketName string `json:"market_name"`
}

// ReportView is the weekly report read model.
type ReportView struct {
	Period              time.Time             `json:"period"`
	Status              domain.ReportStatus   `json:"status"`
	ClearedByIT         bool                  `json:"cleared_by_it"`
	ClearedByMonitoring bool                  `json:"cleared_by_monitoring"`
	FullyCleared        bool                  `json:"fully_cleared"`
	Markets             []MarketReportView    `json:"markets"`
	Totals              domain.SecurityCounts `json:"totals"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

// NewReportService constructs the service.
func NewReportService(deps ReportDependencies) *ReportService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	store := deps.Cache
	if store == nil {
		store = cache.Noop{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		reports:    deps.ReportRepo,
		directory:  deps.Directory,
		cache:      store,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		cfg:        deps.Config,
		now:        clock,
	}
}

// SubmitMarketReport upserts the caller's market slot for the current period.
func (s *ReportService) SubmitMarketReport(ctx context.Context, caller *domain.User, input MarketReportInput) (*domain.MarketSecurityReport, error) {
	if caller == nil {
		return nil, errorutil.NewUnauthorized("authentication required")
	}
	if caller.AssignedTo.Kind != domain.UnitKindMarket {
		return nil, errorutil.NewForbidden("only market users submit security reports")
	}
	marketID := input.MarketID
	if marketID == "" {
		marketID = caller.AssignedTo.ID
	}
	if marketID != caller.AssignedTo.ID {
		return nil, errorutil.NewForbidden("caller is not assigned to this market")
	}
	if problems := input.Counts.Validate(); len(problems) > 0 {
		details := make(map[string]any, len(problems))
		for field, msg := range problems {
			details[field] = msg
		}
		return nil, errorutil.NewValidationError("invalid security counts", details)
	}
	if _, err := s.directory.Resolve(ctx, domain.UnitRef{ID: marketID, Kind: domain.UnitKindMarket}); err != nil {
		return nil, err
	}

	now := s.now()
	period := domain.WeekStart(now)
	var saved domain.MarketSecurityReport
	_, err := s.mutate(ctx, period, func(report *domain.WeeklyReport) error {
		saved = report.Submit(domain.MarketSecurityReport{
			MarketID:        marketID,
			SecurityCounts:  input.Counts,
			BiometricStatus: input.BiometricStatus,
			Comments:        strings.TrimSpace(input.Comments),
		}, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.dispatcher, caller, now, events.Event{
		Type:      events.EventMarketReportSubmitted,
		SubjectID: marketID,
		Payload:   events.MarketReportSubmittedPayload{Period: period, MarketID: marketID},
	})
	return &saved, nil
}

// Clear signs off the current period's report for role.
func (s *ReportService) Clear(ctx context.Context, caller *domain.User, role domain.ReviewerRole) (*domain.WeeklyReport, error) {
	return s.ClearPeriod(ctx, caller, role, s.now())
}

// ClearPeriod signs off the report of the week containing period. Re-clearing is a no-op.
func (s *ReportService) ClearPeriod(ctx context.Context, caller *domain.User, role domain.ReviewerRole, period time.Time) (*domain.WeeklyReport, error) {
	if caller == nil {
		return nil, errorutil.NewUnauthorized("authentication required")
	}
	department, err := s.reviewerDepartment(role)
	if err != nil {
		return nil, err
	}
	member, err := s.directory.InDepartment(ctx, caller, department)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, errorutil.NewForbidden("caller is not a " + department + " department reviewer")
	}

	period = domain.WeekStart(period)
	now := s.now()
	var changed bool
	report, err := s.mutate(ctx, period, func(report *domain.WeeklyReport) error {
		var err error
		changed, err = report.Clear(role, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return report, nil
	}

	publish(ctx, s.dispatcher, caller, now, events.Event{
		Type:      events.EventWeeklyReportCleared,
		SubjectID: period.Format(time.DateOnly),
		Payload: events.WeeklyReportClearedPayload{
			Period:       period,
			Role:         role,
			FullyCleared: report.FullyCleared(),
		},
	})
	return report, nil
}

// GetCurrentReport returns the active period's report with a slot for every market.
func (s *ReportService) GetCurrentReport(ctx context.Context) (*ReportView, error) {
	return s.GetReport(ctx, s.now())
}

// GetReport returns the report of the week containing period.
// Market slots and names are assembled from the directory on every read.
func (s *ReportService) GetReport(ctx context.Context, period time.Time) (*ReportView, error) {
	period = domain.WeekStart(period)
	report, err := s.loadReport(ctx, period)
	if err != nil {
		return nil, err
	}
	markets, err := s.directory.Markets(ctx)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, report.WithPlaceholders(markets), markets)
}

// loadReport reads the stored report through the cache. A miss only fills the
// cache when no writer has stored a newer copy in the meantime.
func (s *ReportService) loadReport(ctx context.Context, period time.Time) (*domain.WeeklyReport, error) {
	key := reportCacheKey(period)
	if cached, err := s.cache.Get(ctx, key); err == nil {
		var report domain.WeeklyReport
		if err := json.Unmarshal(cached, &report); err == nil {
			return &report, nil
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("report cache read failed", zap.Error(err))
	}

	report, err := s.reports.GetByPeriod(ctx, period)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NewWeeklyReport(period), nil
	}
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(report); err == nil {
		if _, err := s.cache.SetNX(ctx, key, payload, s.cfg.CacheTTL()); err != nil {
			s.logger.Warn("report cache fill failed", zap.Error(err))
		}
	}
	return report, nil
}

// mutate applies fn under the period lock and writes the result through to the
// cache while the lock is still held. A failed mutation drops the cached copy.
func (s *ReportService) mutate(ctx context.Context, period time.Time, fn repository.ReportMutation) (*domain.WeeklyReport, error) {
	report, err := s.reports.Mutate(ctx, period, func(report *domain.WeeklyReport) error {
		if err := fn(report); err != nil {
			return err
		}
		s.store(ctx, report)
		return nil
	})
	if err != nil {
		s.invalidate(ctx, period)
		return nil, err
	}
	return report, nil
}

func (s *ReportService) store(ctx context.Context, report *domain.WeeklyReport) {
	payload, err := json.Marshal(report)
	if err == nil {
		err = s.cache.Set(ctx, reportCacheKey(report.Period), payload, s.cfg.CacheTTL())
	}
	if err != nil {
		s.logger.Warn("report cache write failed", zap.Error(err))
		s.invalidate(ctx, report.Period)
	}
}

// ViewReport returns the current report if caller's department may see it yet.
// Monitoring reviewers wait for IT clearance; Operations waits for Monitoring.
func (s *ReportService) ViewReport(ctx context.Context, caller *domain.User) (*ReportView, error) {
	if caller == nil {
		return nil, errorutil.NewUnauthorized("authentication required")
	}
	view, err := s.GetCurrentReport(ctx)
	if err != nil {
		return nil, err
	}

	monitoring, err := s.directory.InDepartment(ctx, caller, s.cfg.MonitoringDepartment)
	if err != nil {
		return nil, err
	}
	if monitoring && !view.ClearedByIT {
		return nil, errorutil.NewForbidden("report awaits IT clearance")
	}
	operations, err := s.directory.InDepartment(ctx, caller, s.cfg.OperationsDepartment)
	if err != nil {
		return nil, err
	}
	if operations && !view.ClearedByMonitoring {
		return nil, errorutil.NewForbidden("report awaits Monitoring clearance")
	}
	return view, nil
}

func (s *ReportService) buildView(ctx context.Context, report *domain.WeeklyReport, markets []domain.OrganizationalUnit) (*ReportView, error) {
	names := make(map[string]string, len(markets))
	for _, market := range markets {
		names[market.ID] = market.Name
	}
	var orphans []string
	for _, entry := range report.MarketsReport {
		if _, ok := names[entry.MarketID]; !ok {
			orphans = append(orphans, entry.MarketID)
		}
	}
	if len(orphans) > 0 {
		extra, err := s.directory.Names(ctx, orphans)
		if err != nil {
			return nil, err
		}
		for id, name := range extra {
			names[id] = name
		}
	}

	view := &ReportView{
		Period:              report.Period,
		Status:              report.Status(),
		ClearedByIT:         report.ClearedByIT,
		ClearedByMonitoring: report.ClearedByMonitoring,
		FullyCleared:        report.FullyCleared(),
		Markets:             make([]MarketReportView, 0, len(report.MarketsReport)),
		Totals:              report.Totals(),
		CreatedAt:           report.CreatedAt,
		UpdatedAt:           report.UpdatedAt,
	}
	for _, entry := range report.MarketsReport {
		view.Markets = append(view.Markets, MarketReportView{
			MarketSecurityReport: entry,
			MarketName:           names[entry.MarketID],
		})
	}
	return view, nil
}

func (s *ReportService) reviewerDepartment(role domain.ReviewerRole) (string, error) {
	switch role {
	case domain.ReviewerIT:
		return s.cfg.ITDepartment, nil
	case domain.ReviewerMonitoring:
		return s.cfg.MonitoringDepartment, nil
	}
	return "", errorutil.NewValidationError("unknown reviewer role", map[string]any{"role": role})
}

func (s *ReportService) invalidate(ctx context.Context, period time.Time) {
	if err := s.cache.Del(ctx, reportCacheKey(period)); err != nil {
		s.logger.Warn("report cache invalidation failed", zap.Error(err))
	}
}

func reportCacheKey(period time.Time) string {
	return "weekly-report:" + period.UTC().Format(time.DateOnly)
}
