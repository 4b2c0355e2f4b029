package dto

import (
	"github.com/spec-kit/bazaar-ticketing/internal/domain"
	"github.com/spec-kit/bazaar-ticketing/internal/service"
)

// SubmitMarketReportRequest is a market's weekly equipment tally.
// MarketID defaults to the caller's market.
type SubmitMarketReportRequest struct {
	MarketID               string `json:"market_id"`
	TotalCCTV              int    `json:"total_cctv" validate:"min=0"`
	FaultyCCTV             int    `json:"faulty_cctv" validate:"min=0,ltefield=TotalCCTV"`
	WalkthroughGates       int    `json:"walkthrough_gates" validate:"min=0"`
	FaultyWalkthroughGates int    `json:"faulty_walkthrough_gates" validate:"min=0,ltefield=WalkthroughGates"`
	MetalDetectors         int    `json:"metal_detectors" validate:"min=0"`
	FaultyMetalDetectors   int    `json:"faulty_metal_detectors" validate:"min=0,ltefield=MetalDetectors"`
	BiometricStatus        bool   `json:"biometric_status"`
	Comments               string `json:"comments" validate:"max=1000"`
}

// Input converts the payload into a service input.
func (r SubmitMarketReportRequest) Input() service.MarketReportInput {
	return service.MarketReportInput{
		MarketID: r.MarketID,
		Counts: domain.SecurityCounts{
			TotalCCTV:              r.TotalCCTV,
			FaultyCCTV:             r.FaultyCCTV,
			WalkthroughGates:       r.WalkthroughGates,
			FaultyWalkthroughGates: r.FaultyWalkthroughGates,
			MetalDetectors:         r.MetalDetectors,
			FaultyMetalDetectors:   r.FaultyMetalDetectors,
		},
		BiometricStatus: r.BiometricStatus,
		Comments:        r.Comments,
	}
}

// ClearReportRequest signs off the current report for a reviewer department.
type ClearReportRequest struct {
	Role string `json:"role" validate:"required,oneof=IT Monitoring"`
}
