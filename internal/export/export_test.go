package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/spec-kit/bazaar-ticketing/internal/domain"
	"github.com/spec-kit/bazaar-ticketing/internal/service"
)

func ms(d time.Duration) *int64 {
	v := d.Milliseconds()
	return &v
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		name string
		in   *int64
		want string
	}{
		{"nil", nil, "N/A"},
		{"negative", ms(-time.Hour), "0 seconds"},
		{"one second", ms(time.Second), "1 second"},
		{"seconds", ms(45 * time.Second), "45 seconds"},
		{"one hour", ms(time.Hour), "1 hour"},
		{"minutes floor", ms(119 * time.Second), "1 minute"},
		{"hours", ms(5*time.Hour + 59*time.Minute), "5 hours"},
		{"days", ms(72 * time.Hour), "3 days"},
		{"months", ms(65 * 24 * time.Hour), "2 months"},
		{"years", ms(800 * 24 * time.Hour), "2 years"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatDuration(tc.in))
		})
	}
}

func TestTicketsWorkbook(t *testing.T) {
	created := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	resolved := created.Add(90 * time.Minute)
	views := []service.TicketView{
		{
			ID:             "t-1",
			CustomID:       1,
			Title:          "Broken camera",
			Description:    "Gate 2 camera offline",
			AssignedToName: "IT",
			Priority:       domain.TicketPriorityHigh,
			Status:         domain.TicketStatusResolved,
			CreatedBy:      service.UserSummary{Name: "Market User", AssignedToName: "Market A"},
			CreatedAt:      created,
			ResolvedAt:     &resolved,
			ResolvedIn:     ms(90 * time.Minute),
			Comments: []service.CommentView{
				{Text: "on it", CommentedBy: service.UserSummary{Name: "Tech"}, CreatedAt: created},
				{Text: "done", CreatedAt: resolved},
			},
		},
	}

	f, err := NewExporter(nil).TicketsWorkbook(views)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ticketsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, ticketHeaders, rows[0])

	row := rows[1]
	assert.Equal(t, "t-1", row[0])
	assert.Equal(t, "1", row[1])
	assert.Equal(t, "IT", row[4])
	assert.Equal(t, "Market A", row[8])
	assert.Equal(t, "Jan 10, 2024, 09:00 AM", row[9])
	assert.Equal(t, "N/A", row[10])
	assert.Equal(t, "Jan 10, 2024, 10:30 AM", row[12])
	assert.Equal(t, "1 hour", row[14])
	assert.Equal(t, "Tech: on it (Jan 10, 2024, 09:00 AM) | Unknown: done (Jan 10, 2024, 10:30 AM)", row[15])

	width, err := f.GetColWidth(ticketsSheet, "P")
	require.NoError(t, err)
	assert.LessOrEqual(t, width, float64(maxColumnWidth))
}

func TestTicketsWorkbook_Location(t *testing.T) {
	loc := time.FixedZone("PKT", 5*60*60)
	views := []service.TicketView{{ID: "t-1", CreatedAt: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)}}

	f, err := NewExporter(loc).TicketsWorkbook(views)
	require.NoError(t, err)
	defer f.Close()

	value, err := f.GetCellValue(ticketsSheet, "J2")
	require.NoError(t, err)
	assert.Equal(t, "Jan 10, 2024, 02:00 PM", value)
}

func TestSecurityReportWorkbook(t *testing.T) {
	view := &service.ReportView{
		Markets: []service.MarketReportView{
			{
				MarketName: "Market A",
				MarketSecurityReport: domain.MarketSecurityReport{
					MarketID:        "m-a",
					IsSubmitted:     true,
					SecurityCounts:  domain.SecurityCounts{TotalCCTV: 10, FaultyCCTV: 2, WalkthroughGates: 2, MetalDetectors: 4},
					BiometricStatus: true,
					Comments:        "gate 2 camera down",
				},
			},
			{MarketName: "Market B", MarketSecurityReport: domain.MarketSecurityReport{MarketID: "m-b"}},
		},
		Totals: domain.SecurityCounts{TotalCCTV: 10, FaultyCCTV: 2, WalkthroughGates: 2, MetalDetectors: 4},
	}
	now := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	require.NoError(t, NewExporter(nil).WriteSecurityReport(&buf, view, now))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	cell := func(ref string) string {
		v, err := f.GetCellValue(securitySheet, ref)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, reportTitle, cell("A1"))
	assert.Equal(t, reportSubtitle, cell("A2"))
	assert.Equal(t, "Date: 01/10/2024", cell("A3"))
	assert.Equal(t, "Day: Wednesday", cell("I3"))
	assert.Equal(t, "Bazaar Name", cell("A5"))
	assert.Equal(t, "Market A", cell("A6"))
	assert.Equal(t, "10", cell("B6"))
	assert.Equal(t, "YES", cell("H6"))
	assert.Equal(t, "NO", cell("H7"))
	assert.Equal(t, "Total", cell("A8"))
	assert.Equal(t, "2", cell("C8"))

	merged, err := f.GetMergeCells(securitySheet)
	require.NoError(t, err)
	assert.Len(t, merged, 2)

	width, err := f.GetColWidth(securitySheet, "I")
	require.NoError(t, err)
	assert.Equal(t, float64(35), width)

	positive, err := f.GetCellStyle(securitySheet, "C6")
	require.NoError(t, err)
	zero, err := f.GetCellStyle(securitySheet, "E6")
	require.NoError(t, err)
	assert.NotEqual(t, positive, zero)
}

func TestFilenames(t *testing.T) {
	now := time.Date(2024, 1, 10, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "Tickets_Report_2024-01-10.xlsx", TicketsFilename(now))
	assert.Equal(t, "PSBA_Security_Surveillance_Report_2024-01-10.xlsx", SecurityReportFilename(now))
}
