package service

import (
	"fmt"
	"testing"
	"time"

	"cred-credit-engine/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	scoredWallet = "0x1111111111111111111111111111111111111111"
	otherWallet  = "0x2222222222222222222222222222222222222222"
	thirdWallet  = "0x3333333333333333333333333333333333333333"
	oneEther     = "1000000000000000000"
)

var scoringNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func transfer(hash, from, to, value string, age time.Duration) *entity.Transaction {
	return &entity.Transaction{
		Hash:      hash,
		From:      from,
		To:        to,
		Value:     value,
		Timestamp: scoringNow.Add(-age),
	}
}

func inflows(n int, value string) []*entity.Transaction {
	txs := make([]*entity.Transaction, 0, n)
	for i := 0; i < n; i++ {
		txs = append(txs, transfer(fmt.Sprintf("0x%02d", i), otherWallet, scoredWallet, value, time.Duration(i+1)*time.Hour))
	}
	return txs
}

func TestScoreEmptyHistory(t *testing.T) {
	result := NewCreditScorer().Score(scoredWallet, nil, scoringNow)

	assert.Equal(t, 0, result.Score)
	assert.Equal(t, MinCreditLimit, result.Limit)
	assert.Equal(t, entity.RiskBandHigh, result.RiskBand)
	assert.Equal(t, HighRiskAPR, result.APR)
	assert.False(t, result.Fallback)
}

func TestScoreTenEqualInflows(t *testing.T) {
	scorer := NewCreditScorer()
	txs := inflows(10, oneEther)

	summary := scorer.Summarize(scoredWallet, txs, scoringNow)
	assert.Equal(t, 10, summary.TransactionCount)
	assert.InDelta(t, 10.0, summary.TotalInflow, 1e-9)
	assert.InDelta(t, 10.0, summary.NetCashflow, 1e-9)
	assert.InDelta(t, 1.0, summary.AvgTransactionSize, 1e-9)
	assert.Len(t, summary.MonthlyInflows, 10)

	// activity 20 + net 30 + inflow 25 + consistency 5
	result := scorer.Score(scoredWallet, txs, scoringNow)
	assert.Equal(t, 80, result.Score)
	assert.Equal(t, 360.0, result.Limit)
	assert.Equal(t, entity.RiskBandLow, result.RiskBand)
	assert.Equal(t, LowRiskAPR, result.APR)
}

func TestScoreTwoUnequalInflows(t *testing.T) {
	txs := []*entity.Transaction{
		transfer("0xa", otherWallet, scoredWallet, oneEther, time.Hour),
		transfer("0xb", otherWallet, scoredWallet, "3000000000000000000", 2*time.Hour),
	}

	result := NewCreditScorer().Score(scoredWallet, txs, scoringNow)
	assert.Equal(t, 55, result.Score)
	assert.Equal(t, 540.0, result.Limit)
	assert.Equal(t, entity.RiskBandMedium, result.RiskBand)
	assert.Equal(t, MediumRiskAPR, result.APR)
}

func TestSummarizeFiltersHistory(t *testing.T) {
	txs := []*entity.Transaction{
		transfer("0xin", otherWallet, "0x1111111111111111111111111111111111111111", "2000000000000000000", time.Hour),
		transfer("0xIN", otherWallet, scoredWallet, "2000000000000000000", time.Hour),
		transfer("0xout", scoredWallet, otherWallet, oneEther, 2*time.Hour),
		transfer("0xold", otherWallet, scoredWallet, oneEther, 31*24*time.Hour),
		transfer("0xunrelated", otherWallet, thirdWallet, oneEther, time.Hour),
		nil,
	}

	summary := NewCreditScorer().Summarize(scoredWallet, txs, scoringNow)
	assert.Equal(t, 2, summary.TransactionCount)
	assert.InDelta(t, 2.0, summary.TotalInflow, 1e-9)
	assert.InDelta(t, 1.0, summary.TotalOutflow, 1e-9)
	assert.InDelta(t, 1.0, summary.NetCashflow, 1e-9)
	assert.InDelta(t, 1.5, summary.AvgTransactionSize, 1e-9)
}

func TestSummarizeMatchesWalletCaseInsensitively(t *testing.T) {
	txs := []*entity.Transaction{
		transfer("0xa", otherWallet, "0xABCDEF0123456789ABCDEF0123456789ABCDEF01", oneEther, time.Hour),
	}

	summary := NewCreditScorer().Summarize("0xabcdef0123456789abcdef0123456789abcdef01", txs, scoringNow)
	assert.Equal(t, 1, summary.TransactionCount)
}

func TestSummarizeNetCashflowNegativeContributesNothing(t *testing.T) {
	txs := []*entity.Transaction{
		transfer("0xout", scoredWallet, otherWallet, "5000000000000000000", time.Hour),
	}

	summary := NewCreditScorer().Summarize(scoredWallet, txs, scoringNow)
	assert.InDelta(t, -5.0, summary.NetCashflow, 1e-9)
	// activity only
	assert.Equal(t, 2, ScoreCashflow(summary))
}

func TestSummarizeKeepsMostRecentHistory(t *testing.T) {
	txs := inflows(MaxHistoryRecords+10, oneEther)

	summary := NewCreditScorer().Summarize(scoredWallet, txs, scoringNow)
	assert.Equal(t, MaxHistoryRecords, summary.TransactionCount)
}

func TestScoreCashflowCapsAtMaximum(t *testing.T) {
	summary := &entity.CashflowSummary{
		TotalInflow:      100,
		NetCashflow:      100,
		TransactionCount: 50,
		MonthlyInflows:   make([]float64, 50),
	}
	assert.Equal(t, 100, ScoreCashflow(summary))
}

func TestCreditLimitFromInflowsClamps(t *testing.T) {
	assert.Equal(t, MinCreditLimit, CreditLimitFromInflows(nil))
	assert.Equal(t, MinCreditLimit, CreditLimitFromInflows([]float64{0.1}))
	assert.Equal(t, MaxCreditLimit, CreditLimitFromInflows([]float64{100}))
}

func TestRiskBandForScoreBoundaries(t *testing.T) {
	tests := []struct {
		score int
		band  entity.RiskBand
		apr   float64
	}{
		{score: 100, band: entity.RiskBandLow, apr: LowRiskAPR},
		{score: 70, band: entity.RiskBandLow, apr: LowRiskAPR},
		{score: 69, band: entity.RiskBandMedium, apr: MediumRiskAPR},
		{score: 40, band: entity.RiskBandMedium, apr: MediumRiskAPR},
		{score: 39, band: entity.RiskBandHigh, apr: HighRiskAPR},
		{score: 0, band: entity.RiskBandHigh, apr: HighRiskAPR},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("score_%d", tt.score), func(t *testing.T) {
			band, apr := RiskBandForScore(tt.score)
			assert.Equal(t, tt.band, band)
			assert.Equal(t, tt.apr, apr)
		})
	}
}

func TestMedianAndStdDev(t *testing.T) {
	assert.Equal(t, 0.0, Median(nil))
	assert.Equal(t, 2.0, Median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))

	assert.Equal(t, 0.0, StdDev(nil))
	assert.Equal(t, 0.0, StdDev([]float64{5, 5, 5}))
	assert.InDelta(t, 2.0, StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-9)
}

func TestWeiToNative(t *testing.T) {
	tests := []struct {
		value string
		want  float64
	}{
		{value: oneEther, want: 1},
		{value: "500000000000000000", want: 0.5},
		{value: "0xde0b6b3a7640000", want: 1},
		{value: "0x0", want: 0},
		{value: "0x", want: 0},
		{value: "", want: 0},
		{value: "not-a-number", want: 0},
		{value: "0xzz", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.InDelta(t, tt.want, WeiToNative(tt.value), 1e-12)
		})
	}
}

func TestDefaultScoreResult(t *testing.T) {
	result := DefaultScoreResult()
	require.NotNil(t, result)
	assert.Equal(t, 50, result.Score)
	assert.Equal(t, 500.0, result.Limit)
	assert.Equal(t, entity.RiskBandMedium, result.RiskBand)
	assert.Equal(t, MediumRiskAPR, result.APR)
	assert.True(t, result.Fallback)
}
