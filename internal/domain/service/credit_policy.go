package service

import (
	"math"
	"time"

	"cred-credit-engine/internal/domain/entity"

	"github.com/shopspring/decimal"
)

const (
	millisPerDay = 86400000.0
	daysPerYear  = 365.0

	severeDelinquencyDays   = 30
	moderateDelinquencyDays = 7

	SevereWithholdRate   = 1.0
	ModerateWithholdRate = 0.8
	DefaultWithholdRate  = 0.3
)

// AccruedInterest returns simple daily interest on the outstanding principal
// since the last borrow, rounded to cents. Interest is recomputed from
// LastBorrowDate on every call rather than accrued per draw.
func AccruedInterest(state *entity.CreditState, now time.Time) float64 {
	if state == nil || state.OutstandingBalance <= 0 || state.LastBorrowDate == nil {
		return 0
	}

	days := float64(now.Sub(*state.LastBorrowDate).Milliseconds()) / millisPerDay
	if days <= 0 {
		return 0
	}

	dailyRate := EffectiveAPR(state) / 100 / daysPerYear
	interest, _ := decimal.NewFromFloat(state.OutstandingBalance * dailyRate * days).Round(2).Float64()
	return interest
}

// EffectiveAPR is the line APR, or the rate locked into the latest draw when
// no line APR has been assigned yet
func EffectiveAPR(state *entity.CreditState) float64 {
	if state.APR > 0 || len(state.Draws) == 0 {
		return state.APR
	}
	return state.Draws[len(state.Draws)-1].InterestRate
}

// SplitRepayment applies amount to interest first and the remainder to
// principal. The remainder is taken in decimal so the two parts sum back to
// amount exactly at the precision amounts are written in.
func SplitRepayment(amount, interest float64) (toInterest, toPrincipal float64) {
	toInterest = math.Min(amount, math.Max(interest, 0))
	toPrincipal, _ = decimal.NewFromFloat(amount).Sub(decimal.NewFromFloat(toInterest)).Float64()
	return toInterest, toPrincipal
}

// Utilization is total owed as a rounded percentage of limit, 0 for a zero limit
func Utilization(total, limit float64) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Round(100 * total / limit))
}

// WithholdRate picks the share of an inflow to withhold for a delinquency level
func WithholdRate(delinquentDays int) float64 {
	switch {
	case delinquentDays > severeDelinquencyDays:
		return SevereWithholdRate
	case delinquentDays > moderateDelinquencyDays:
		return ModerateWithholdRate
	default:
		return DefaultWithholdRate
	}
}

// AutoRepayPolicy recommends how much of an incoming amount to withhold
// toward the balance. It never records anything itself.
func AutoRepayPolicy(state *entity.CreditState, incomingAmount float64, balance *entity.Balance) *entity.AutoRepayDecision {
	if !state.AutoRepayEnabled || state.OutstandingBalance <= 0 || incomingAmount <= 0 {
		return &entity.AutoRepayDecision{}
	}

	rate := WithholdRate(state.DelinquentDays)
	return &entity.AutoRepayDecision{
		ShouldRepay:  true,
		RepayAmount:  math.Min(incomingAmount*rate, balance.Total),
		WithholdRate: rate,
	}
}

// IsPastDue reports whether state carries principal and its last repayment,
// or last borrow if never repaid, is older than grace
func IsPastDue(state *entity.CreditState, now time.Time, grace time.Duration) bool {
	if state.OutstandingBalance <= 0 {
		return false
	}
	reference := state.LastRepayDate
	if reference == nil {
		reference = state.LastBorrowDate
	}
	if reference == nil {
		return false
	}
	return now.Sub(*reference) > grace
}
