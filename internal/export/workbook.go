package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/spec-kit/bazaar-ticketing/internal/service"
)

const (
	notAvailable   = "N/A"
	dateTimeLayout = "Jan 2, 2006, 03:04 PM"
	maxColumnWidth = 60

	ticketsSheet  = "Tickets"
	securitySheet = "Security Report"

	reportTitle    = "PUNJAB SAHULAT BAZAARS AUTHORITY"
	reportSubtitle = "Security & Surveillance Report by IT Department"
)

var ticketHeaders = []string{
	"Ticket ID", "Custom ID", "Title", "Description", "Assigned To", "Priority", "Status",
	"Created By", "Created By (Assigned To)", "Created At", "In Progress At",
	"Estimated Resolution Time", "Resolved At", "Closed At", "Resolved In", "Comments",
}

var securityHeaders = []string{
	"Bazaar Name", "CCTV Camera(s)", "Faulty CCTV Camera(s)", "Walkthrough Gates",
	"Faulty Walkthrough Gates", "Metal Detectors", "Faulty Metal Detectors",
	"Biometric Status (Yes/No)", "Comments/Remarks by the IT Department",
}

var securityWidths = []float64{20, 15, 18, 18, 22, 16, 20, 18, 35}

// Exporter renders read models as .xlsx workbooks.
type Exporter struct {
	loc *time.Location
}

// NewExporter formats timestamps in loc. Nil means UTC.
func NewExporter(loc *time.Location) *Exporter {
	if loc == nil {
		loc = time.UTC
	}
	return &Exporter{loc: loc}
}

// TicketsFilename is the download name for a tickets export.
func TicketsFilename(now time.Time) string {
	return fmt.Sprintf("Tickets_Report_%s.xlsx", now.UTC().Format(time.DateOnly))
}

// SecurityReportFilename is the download name for a security report export.
func SecurityReportFilename(now time.Time) string {
	return fmt.Sprintf("PSBA_Security_Surveillance_Report_%s.xlsx", now.UTC().Format(time.DateOnly))
}

// WriteTickets writes one row per ticket with a frozen, filterable header.
func (e *Exporter) WriteTickets(w io.Writer, tickets []service.TicketView) error {
	f, err := e.TicketsWorkbook(tickets)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// TicketsWorkbook builds the tickets workbook.
func (e *Exporter) TicketsWorkbook(tickets []service.TicketView) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", ticketsSheet); err != nil {
		return nil, err
	}

	widths := make([]int, len(ticketHeaders))
	for i, h := range ticketHeaders {
		widths[i] = len(h)
	}
	if err := f.SetSheetRow(ticketsSheet, "A1", &ticketHeaders); err != nil {
		return nil, err
	}

	for i, t := range tickets {
		row := []interface{}{
			t.ID,
			t.CustomID,
			t.Title,
			t.Description,
			t.AssignedToName,
			string(t.Priority),
			string(t.Status),
			t.CreatedBy.Name,
			t.CreatedBy.AssignedToName,
			e.formatTime(&t.CreatedAt),
			e.formatTime(t.InProgressAt),
			e.formatTime(t.EstimatedResolutionTime),
			e.formatTime(t.ResolvedAt),
			e.formatTime(t.ClosedAt),
			FormatDuration(t.ResolvedIn),
			e.formatComments(t.Comments),
		}
		for c, v := range row {
			if n := len(fmt.Sprint(v)); n > widths[c] {
				widths[c] = n
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(ticketsSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	last, err := excelize.ColumnNumberToName(len(ticketHeaders))
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(ticketsSheet, "A1", last+"1", header); err != nil {
		return nil, err
	}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(ticketsSheet, col, col, float64(min(maxColumnWidth, w+2))); err != nil {
			return nil, err
		}
	}
	ref := fmt.Sprintf("A1:%s%d", last, len(tickets)+1)
	if err := f.AutoFilter(ticketsSheet, ref, nil); err != nil {
		return nil, err
	}
	if err := f.SetPanes(ticketsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, err
	}
	return f, nil
}

// WriteSecurityReport writes the weekly security report sheet.
func (e *Exporter) WriteSecurityReport(w io.Writer, report *service.ReportView, now time.Time) error {
	f, err := e.SecurityReportWorkbook(report, now)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// SecurityReportWorkbook lays out title rows, a header, one row per market
// and a totals row. Non-zero equipment counts are shaded red, zeros green.
func (e *Exporter) SecurityReportWorkbook(report *service.ReportView, now time.Time) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := securitySheet
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	local := now.In(e.loc)

	rows := [][]interface{}{
		{reportTitle},
		{reportSubtitle},
		{"Date: " + local.Format("01/02/2006"), "", "", "", "", "", "", "", "Day: " + local.Weekday().String()},
		{},
	}
	headerRow := len(rows) + 1
	for i, row := range rows {
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return nil, err
		}
	}
	if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", headerRow), &securityHeaders); err != nil {
		return nil, err
	}

	firstData := headerRow + 1
	for i, m := range report.Markets {
		row := []interface{}{
			m.MarketName,
			m.TotalCCTV,
			m.FaultyCCTV,
			m.WalkthroughGates,
			m.FaultyWalkthroughGates,
			m.MetalDetectors,
			m.FaultyMetalDetectors,
			yesNo(m.BiometricStatus),
			m.Comments,
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", firstData+i), &row); err != nil {
			return nil, err
		}
	}
	totalRow := firstData + len(report.Markets)
	totals := report.Totals
	totalValues := []interface{}{
		"Total",
		totals.TotalCCTV,
		totals.FaultyCCTV,
		totals.WalkthroughGates,
		totals.FaultyWalkthroughGates,
		totals.MetalDetectors,
		totals.FaultyMetalDetectors,
		"",
		"",
	}
	if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", totalRow), &totalValues); err != nil {
		return nil, err
	}

	if err := e.styleSecurityReport(f, sheet, headerRow, firstData, totalRow, report); err != nil {
		return nil, err
	}
	return f, nil
}

func (e *Exporter) styleSecurityReport(f *excelize.File, sheet string, headerRow, firstData, totalRow int, report *service.ReportView) error {
	thin := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	thick := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 5},
		{Type: "bottom", Color: "000000", Style: 5},
	}
	center := &excelize.Alignment{Horizontal: "center", Vertical: "center"}
	fill := func(color string) excelize.Fill {
		return excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}}
	}

	title, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}, Alignment: center})
	if err != nil {
		return err
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 12}, Alignment: center, Border: thin})
	if err != nil {
		return err
	}
	plain, err := f.NewStyle(&excelize.Style{Border: thin})
	if err != nil {
		return err
	}
	red, err := f.NewStyle(&excelize.Style{Border: thin, Fill: fill("FFCCCC")})
	if err != nil {
		return err
	}
	green, err := f.NewStyle(&excelize.Style{Border: thin, Fill: fill("CCFFCC")})
	if err != nil {
		return err
	}
	totalGray, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, Border: thick, Fill: fill("E6E6E6")})
	if err != nil {
		return err
	}
	totalRed, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, Border: thick, Fill: fill("FFCCCC")})
	if err != nil {
		return err
	}
	totalGreen, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, Border: thick, Fill: fill("CCFFCC")})
	if err != nil {
		return err
	}

	for _, merge := range [][2]string{{"A1", "I1"}, {"A2", "I2"}} {
		if err := f.MergeCell(sheet, merge[0], merge[1]); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sheet, "A1", "I2", title); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, fmt.Sprintf("A%d", headerRow), fmt.Sprintf("I%d", headerRow), header); err != nil {
		return err
	}

	shade := func(row, col, value int, positive, zero int) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		style := zero
		if value > 0 {
			style = positive
		}
		return f.SetCellStyle(sheet, cell, cell, style)
	}

	for i, m := range report.Markets {
		row := firstData + i
		if err := f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("I%d", row), plain); err != nil {
			return err
		}
		for c, v := range countsOf(m.TotalCCTV, m.FaultyCCTV, m.WalkthroughGates, m.FaultyWalkthroughGates, m.MetalDetectors, m.FaultyMetalDetectors) {
			if err := shade(row, c+2, v, red, green); err != nil {
				return err
			}
		}
	}

	if err := f.SetCellStyle(sheet, fmt.Sprintf("A%d", totalRow), fmt.Sprintf("I%d", totalRow), totalGray); err != nil {
		return err
	}
	t := report.Totals
	for c, v := range countsOf(t.TotalCCTV, t.FaultyCCTV, t.WalkthroughGates, t.FaultyWalkthroughGates, t.MetalDetectors, t.FaultyMetalDetectors) {
		if err := shade(totalRow, c+2, v, totalRed, totalGreen); err != nil {
			return err
		}
	}

	for i, w := range securityWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return err
		}
	}
	return nil
}

func (e *Exporter) formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return notAvailable
	}
	return t.In(e.loc).Format(dateTimeLayout)
}

func (e *Exporter) formatComments(comments []service.CommentView) string {
	parts := make([]string, 0, len(comments))
	for _, c := range comments {
		name := c.CommentedBy.Name
		if name == "" {
			name = "Unknown"
		}
		parts = append(parts, fmt.Sprintf("%s: %s (%s)", name, c.Text, e.formatTime(&c.CreatedAt)))
	}
	return strings.Join(parts, " | ")
}

func countsOf(values ...int) []int {
	return values
}

func yesNo(v bool) string {
	if v {
		return "YES"
	}
	return "NO"
}
