package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownReviewerRole is returned for a clearance role other than IT or Monitoring.
var ErrUnknownReviewerRole = errors.New("unknown reviewer role")

// ReviewerRole names a department that signs off a weekly report.
type ReviewerRole string

const (
	ReviewerIT         ReviewerRole = "IT"
	ReviewerMonitoring ReviewerRole = "Monitoring"
)

// ReportStatus is derived from submissions and clearance flags.
type ReportStatus string

const (
	ReportStatusPendingSubmissions  ReportStatus = "pending-submissions"
	ReportStatusSubmissionsComplete ReportStatus = "submissions-complete"
	ReportStatusClearedByIT         ReportStatus = "cleared-by-IT"
	ReportStatusClearedByMonitoring ReportStatus = "cleared-by-monitoring"
	ReportStatusFullyCleared        ReportStatus = "fully-cleared"
)

// SecurityCounts holds the equipment tallies a market reports each week.
type SecurityCounts struct {
	TotalCCTV              int `json:"total_cctv"`
	FaultyCCTV             int `json:"faulty_cctv"`
	WalkthroughGates       int `json:"walkthrough_gates"`
	FaultyWalkthroughGates int `json:"faulty_walkthrough_gates"`
	MetalDetectors         int `json:"metal_detectors"`
	FaultyMetalDetectors   int `json:"faulty_metal_detectors"`
}

// Validate checks counts are non-negative and faulty never exceeds total.
func (c SecurityCounts) Validate() map[string]string {
	problems := map[string]string{}
	pairs := []struct {
		total, faulty         int
		totalName, faultyName string
	}{
		{c.TotalCCTV, c.FaultyCCTV, "total_cctv", "faulty_cctv"},
		{c.WalkthroughGates, c.FaultyWalkthroughGates, "walkthrough_gates", "faulty_walkthrough_gates"},
		{c.MetalDetectors, c.FaultyMetalDetectors, "metal_detectors", "faulty_metal_detectors"},
	}
	for _, p := range pairs {
		if p.total < 0 {
			problems[p.totalName] = "must not be negative"
		}
		if p.faulty < 0 {
			problems[p.faultyName] = "must not be negative"
		} else if p.faulty > p.total {
			problems[p.faultyName] = fmt.Sprintf("must not exceed %s", p.totalName)
		}
	}
	return problems
}

// Add returns the element-wise sum of c and o.
func (c SecurityCounts) Add(o SecurityCounts) SecurityCounts {
	return SecurityCounts{
		TotalCCTV:              c.TotalCCTV + o.TotalCCTV,
		FaultyCCTV:             c.FaultyCCTV + o.FaultyCCTV,
		WalkthroughGates:       c.WalkthroughGates + o.WalkthroughGates,
		FaultyWalkthroughGates: c.FaultyWalkthroughGates + o.FaultyWalkthroughGates,
		MetalDetectors:         c.MetalDetectors + o.MetalDetectors,
		FaultyMetalDetectors:   c.FaultyMetalDetectors + o.FaultyMetalDetectors,
	}
}

// MarketSecurityReport is one market's slot in a weekly report.
type MarketSecurityReport struct {
	MarketID    string     `json:"market_id"`
	IsSubmitted bool       `json:"is_submitted"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	SecurityCounts
	BiometricStatus bool   `json:"biometric_status"`
	Comments        string `json:"comments"`
}

// WeeklyReport aggregates market submissions for one week.
type WeeklyReport struct {
	Period              time.Time
	MarketsReport       []MarketSecurityReport
	ClearedByIT         bool
	ClearedByMonitoring bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// WeekStart returns Monday 00:00 UTC of the week containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -offset)
}

// NewWeeklyReport returns an empty report for the week containing now.
func NewWeeklyReport(now time.Time) *WeeklyReport {
	return &WeeklyReport{
		Period:    WeekStart(now),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Submit upserts the market's slot and marks it submitted.
func (r *WeeklyReport) Submit(entry MarketSecurityReport, now time.Time) MarketSecurityReport {
	submittedAt := now
	entry.IsSubmitted = true
	entry.SubmittedAt = &submittedAt
	replaced := false
	for i := range r.MarketsReport {
		if r.MarketsReport[i].MarketID == entry.MarketID {
			r.MarketsReport[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		r.MarketsReport = append(r.MarketsReport, entry)
	}
	r.touch(now)
	return entry
}

// Clear sets the flag owned by role. It reports whether the flag changed.
func (r *WeeklyReport) Clear(role ReviewerRole, now time.Time) (bool, error) {
	var flag *bool
	switch role {
	case ReviewerIT:
		flag = &r.ClearedByIT
	case ReviewerMonitoring:
		flag = &r.ClearedByMonitoring
	default:
		return false, ErrUnknownReviewerRole
	}
	if *flag {
		return false, nil
	}
	*flag = true
	r.touch(now)
	return true, nil
}

// FullyCleared reports whether both reviewer departments signed off.
func (r *WeeklyReport) FullyCleared() bool {
	return r.ClearedByIT && r.ClearedByMonitoring
}

// Status derives the workflow state. Clearance takes precedence over submissions.
func (r *WeeklyReport) Status() ReportStatus {
	switch {
	case r.FullyCleared():
		return ReportStatusFullyCleared
	case r.ClearedByIT:
		return ReportStatusClearedByIT
	case r.ClearedByMonitoring:
		return ReportStatusClearedByMonitoring
	}
	if len(r.MarketsReport) == 0 {
		return ReportStatusPendingSubmissions
	}
	for _, entry := range r.MarketsReport {
		if !entry.IsSubmitted {
			return ReportStatusPendingSubmissions
		}
	}
	return ReportStatusSubmissionsComplete
}

// WithPlaceholders returns a copy whose slots follow markets order, adding a
// zero-valued unsubmitted slot for every market without an entry.
func (r *WeeklyReport) WithPlaceholders(markets []OrganizationalUnit) *WeeklyReport {
	cp := r.Clone()
	byMarket := make(map[string]MarketSecurityReport, len(cp.MarketsReport))
	for _, entry := range cp.MarketsReport {
		byMarket[entry.MarketID] = entry
	}
	slots := make([]MarketSecurityReport, 0, len(markets))
	for _, market := range markets {
		if entry, ok := byMarket[market.ID]; ok {
			slots = append(slots, entry)
			delete(byMarket, market.ID)
			continue
		}
		slots = append(slots, MarketSecurityReport{MarketID: market.ID})
	}
	// keep submissions from markets no longer listed, in their stored order
	for _, entry := range cp.MarketsReport {
		if _, ok := byMarket[entry.MarketID]; ok {
			slots = append(slots, entry)
		}
	}
	cp.MarketsReport = slots
	return cp
}

// Totals sums the counts across all slots.
func (r *WeeklyReport) Totals() SecurityCounts {
	var total SecurityCounts
	for _, entry := range r.MarketsReport {
		total = total.Add(entry.SecurityCounts)
	}
	return total
}

// Clone returns a deep copy.
func (r *WeeklyReport) Clone() *WeeklyReport {
	if r == nil {
		return nil
	}
	cp := *r
	cp.MarketsReport = make([]MarketSecurityReport, len(r.MarketsReport))
	for i, entry := range r.MarketsReport {
		entry.SubmittedAt = cloneTime(entry.SubmittedAt)
		cp.MarketsReport[i] = entry
	}
	return &cp
}

func (r *WeeklyReport) touch(now time.Time) {
	if now.After(r.UpdatedAt) {
		r.UpdatedAt = now
	}
}
