package service

import (
	"math"

	"cred-credit-engine/internal/domain/entity"
)

// Income heuristic constants. The credit-line scale here is independent of
// the transaction-history limit range.
const (
	IncomeFXRate = 83.0

	MinIncomeCreditLine = 3.0
	MaxIncomeCreditLine = 100.0

	incomeLowRiskLine    = 50
	incomeMediumRiskLine = 20

	IncomeHighRiskAPR = 15.0
)

type incomeTier struct {
	minUSD  float64
	percent float64
}

// tiers are checked top-down; below the last tier the starter line applies
var incomeTiers = []incomeTier{
	{minUSD: 100, percent: 10},
	{minUSD: 50, percent: 8},
	{minUSD: 20, percent: 5},
}

// IncomeCreditLine derives a credit line, risk band and APR from a verified
// monthly income expressed in the provider's currency
func IncomeCreditLine(verifiedIncome float64) *entity.IncomeCreditResult {
	if math.IsNaN(verifiedIncome) || math.IsInf(verifiedIncome, 0) {
		verifiedIncome = 0
	}
	usd := verifiedIncome / IncomeFXRate

	line := MinIncomeCreditLine
	for _, tier := range incomeTiers {
		if usd >= tier.minUSD {
			line = math.Floor(usd * tier.percent / 100)
			break
		}
	}
	line = clamp(line, MinIncomeCreditLine, MaxIncomeCreditLine)

	band, apr := incomeRiskBand(line)
	return &entity.IncomeCreditResult{
		VerifiedIncome: verifiedIncome,
		USDEquivalent:  usd,
		CreditLine:     line,
		RiskBand:       band,
		APR:            apr,
	}
}

func incomeRiskBand(line float64) (entity.RiskBand, float64) {
	switch {
	case line >= incomeLowRiskLine:
		return entity.RiskBandLow, LowRiskAPR
	case line >= incomeMediumRiskLine:
		return entity.RiskBandMedium, MediumRiskAPR
	default:
		return entity.RiskBandHigh, IncomeHighRiskAPR
	}
}
