package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/bazaar-ticketing/pkg/util/errorutil"
)

func validationDetails(t *testing.T, err error) map[string]any {
	t.Helper()
	require.Error(t, err)
	domainErr := errorutil.ToDomainError(err)
	require.Equal(t, errorutil.CodeValidation, domainErr.Code)
	return domainErr.Details
}

func TestValidator_CreateTicket(t *testing.T) {
	v := NewValidator()

	valid := CreateTicketRequest{
		Title:       "Broken camera",
		Description: "Gate 3 camera is offline",
		AssignedTo:  UnitRefRequest{ID: "unit-1", Kind: "Department"},
	}
	require.NoError(t, v.Struct(valid))

	details := validationDetails(t, v.Struct(CreateTicketRequest{
		Description: "x",
		AssignedTo:  UnitRefRequest{ID: "unit-1", Kind: "Team"},
		Priority:    "urgent",
	}))
	assert.Equal(t, "required", details["title"])
	assert.Equal(t, "oneof=Department Market", details["assigned_to.kind"])
	assert.Equal(t, "oneof=low medium high critical", details["priority"])
	assert.NotContains(t, details, "description")
}

func TestValidator_TicketQuery(t *testing.T) {
	v := NewValidator()

	require.NoError(t, v.Struct(TicketQueryRequest{TicketType: "created", StartDate: "2024-05-01"}))

	details := validationDetails(t, v.Struct(TicketQueryRequest{
		TicketType: "everything",
		StartDate:  "05/01/2024",
		Statuses:   []string{"open", "pending"},
	}))
	assert.Equal(t, "oneof=created assigned", details["ticket_type"])
	assert.Equal(t, "datetime=2006-01-02", details["start_date"])
	assert.Contains(t, details, "statuses[1]")
	assert.NotContains(t, details, "statuses[0]")
}

func TestValidator_MarketReportFaultyBound(t *testing.T) {
	v := NewValidator()

	require.NoError(t, v.Struct(SubmitMarketReportRequest{TotalCCTV: 4, FaultyCCTV: 4}))

	details := validationDetails(t, v.Struct(SubmitMarketReportRequest{
		TotalCCTV:        2,
		FaultyCCTV:       3,
		WalkthroughGates: -1,
	}))
	assert.Equal(t, "ltefield=TotalCCTV", details["faulty_cctv"])
	assert.Equal(t, "min=0", details["walkthrough_gates"])
}

func TestValidator_ClearRole(t *testing.T) {
	v := NewValidator()
	require.NoError(t, v.Struct(ClearReportRequest{Role: "Monitoring"}))

	details := validationDetails(t, v.Struct(ClearReportRequest{Role: "Operations"}))
	assert.Equal(t, "oneof=IT Monitoring", details["role"])
}
