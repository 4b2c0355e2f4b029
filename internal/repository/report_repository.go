package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/bazaar-ticketing/internal/domain"
)

// ReportMutation edits a locked weekly report.
type ReportMutation func(report *domain.WeeklyReport) error

// ReportRepository persists one weekly report per period.
type ReportRepository interface {
	GetByPeriod(ctx context.Context, period time.Time) (*domain.WeeklyReport, error)
	// Mutate provisions the period's report when missing, then applies fn under its lock.
	Mutate(ctx context.Context, period time.Time, fn ReportMutation) (*domain.WeeklyReport, error)
}

type reportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository builds the Postgres-backed repository.
func NewReportRepository(pool *pgxpool.Pool) ReportRepository {
	return &reportRepository{pool: pool}
}

const reportSelect = `
        SELECT period, markets_report, cleared_by_it, cleared_by_monitoring, created_at, updated_at
        FROM weekly_reports WHERE period=$1`

func (r *reportRepository) GetByPeriod(ctx context.Context, period time.Time) (*domain.WeeklyReport, error) {
	return scanReport(r.pool.QueryRow(ctx, reportSelect, period))
}

func (r *reportRepository) Mutate(ctx context.Context, period time.Time, fn ReportMutation) (*domain.WeeklyReport, error) {
	var result *domain.WeeklyReport
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		const provision = `
            INSERT INTO weekly_reports (period) VALUES ($1)
            ON CONFLICT (period) DO NOTHING`
		if _, err := tx.Exec(ctx, provision, period); err != nil {
			return err
		}

		report, err := scanReport(tx.QueryRow(ctx, reportSelect+` FOR UPDATE`, period))
		if err != nil {
			return err
		}
		if err := fn(report); err != nil {
			return err
		}

		const update = `
            UPDATE weekly_reports SET markets_report=$1, cleared_by_it=$2, cleared_by_monitoring=$3, updated_at=$4
            WHERE period=$5`
		if _, err := tx.Exec(ctx, update,
			marketsOrEmpty(report.MarketsReport),
			report.ClearedByIT,
			report.ClearedByMonitoring,
			report.UpdatedAt,
			period,
		); err != nil {
			return err
		}
		result = report
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func scanReport(row pgx.Row) (*domain.WeeklyReport, error) {
	var report domain.WeeklyReport
	if err := row.Scan(
		&report.Period,
		&report.MarketsReport,
		&report.ClearedByIT,
		&report.ClearedByMonitoring,
		&report.CreatedAt,
		&report.UpdatedAt,
	); err != nil {
		return nil, err
	}
	report.Period = report.Period.UTC()
	return &report, nil
}

func marketsOrEmpty(entries []domain.MarketSecurityReport) []domain.MarketSecurityReport {
	if entries == nil {
		return []domain.MarketSecurityReport{}
	}
	return entries
}
