package service

import (
	"math"
	"sort"
	"strings"
	"time"

	"cred-credit-engine/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

// Scoring constants. The limit clamp range is fixed for this deployment.
const (
	ScoringWindow     = 30 * 24 * time.Hour
	MaxHistoryRecords = 50

	// NativeToUSDRate converts native token units into USD-equivalent credit
	NativeToUSDRate = 600.0

	limitAlpha = 0.6
	limitBeta  = 0.3

	MinCreditLimit = 100.0
	MaxCreditLimit = 10000.0

	activityWeight    = 2.0
	activityCap       = 30.0
	netCashflowWeight = 10.0
	netCashflowCap    = 30.0
	inflowWeight      = 5.0
	inflowCap         = 25.0
	consistencyWeight = 15.0
	consistencyDays   = 30.0
	maxScore          = 100.0

	lowRiskScore    = 70
	mediumRiskScore = 40

	LowRiskAPR    = 8.5
	MediumRiskAPR = 12.5
	HighRiskAPR   = 18.5

	weiDecimals = 18
)

// DefaultScoreResult is the conservative result used when history cannot be fetched
func DefaultScoreResult() *entity.CreditScoreResult {
	return &entity.CreditScoreResult{
		Score:    50,
		Limit:    500,
		RiskBand: entity.RiskBandMedium,
		APR:      MediumRiskAPR,
		Fallback: true,
	}
}

// CreditScorer turns a wallet's recent transaction history into a credit assessment.
// It holds no state and is safe for concurrent use.
type CreditScorer struct {
	historyLimit int
}

// NewCreditScorer creates a scorer that considers at most MaxHistoryRecords transactions
func NewCreditScorer() *CreditScorer {
	return &CreditScorer{historyLimit: MaxHistoryRecords}
}

// HistoryLimit returns how many of the most recent transactions are scored
func (s *CreditScorer) HistoryLimit() int {
	return s.historyLimit
}

// Score computes score, limit, risk band and APR for a wallet.
// An empty history is valid input and yields the minimum result.
func (s *CreditScorer) Score(walletAddress string, transactions []*entity.Transaction, now time.Time) *entity.CreditScoreResult {
	summary := s.Summarize(walletAddress, transactions, now)

	score := ScoreCashflow(summary)
	limit := CreditLimitFromInflows(summary.MonthlyInflows)
	band, apr := RiskBandForScore(score)

	return &entity.CreditScoreResult{
		Score:    score,
		Limit:    limit,
		RiskBand: band,
		APR:      apr,
	}
}

// Summarize aggregates inflow and outflow over the trailing scoring window
func (s *CreditScorer) Summarize(walletAddress string, transactions []*entity.Transaction, now time.Time) *entity.CashflowSummary {
	wallet := strings.ToLower(walletAddress)
	cutoff := now.Add(-ScoringWindow)

	summary := &entity.CashflowSummary{
		MonthlyInflows: []float64{},
	}

	for _, tx := range s.normalize(transactions) {
		if tx.Timestamp.Before(cutoff) {
			continue
		}

		inflow := strings.EqualFold(tx.To, wallet)
		outflow := strings.EqualFold(tx.From, wallet)
		if !inflow && !outflow {
			continue
		}

		value := WeiToNative(tx.Value)
		if inflow {
			summary.TotalInflow += value
			summary.MonthlyInflows = append(summary.MonthlyInflows, value)
		}
		if outflow {
			summary.TotalOutflow += value
		}
		summary.TransactionCount++
	}

	summary.NetCashflow = summary.TotalInflow - summary.TotalOutflow
	if summary.TransactionCount > 0 {
		summary.AvgTransactionSize = (summary.TotalInflow + summary.TotalOutflow) / float64(summary.TransactionCount)
	}

	return summary
}

// normalize drops duplicate hashes and keeps the most recent records up to the history limit
func (s *CreditScorer) normalize(transactions []*entity.Transaction) []*entity.Transaction {
	seen := make(map[string]struct{}, len(transactions))
	unique := make([]*entity.Transaction, 0, len(transactions))
	for _, tx := range transactions {
		if tx == nil {
			continue
		}
		key := strings.ToLower(tx.Hash)
		if key != "" {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		unique = append(unique, tx)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Timestamp.After(unique[j].Timestamp)
	})

	if s.historyLimit > 0 && len(unique) > s.historyLimit {
		unique = unique[:s.historyLimit]
	}
	return unique
}

// ScoreCashflow sums the four capped signals, caps the total at 100 and rounds
func ScoreCashflow(summary *entity.CashflowSummary) int {
	activity := math.Min(float64(summary.TransactionCount)*activityWeight, activityCap)

	var net float64
	if summary.NetCashflow > 0 {
		net = math.Min(summary.NetCashflow*netCashflowWeight, netCashflowCap)
	}

	inflow := math.Min(summary.TotalInflow*inflowWeight, inflowCap)
	consistency := float64(len(summary.MonthlyInflows)) / consistencyDays * consistencyWeight

	total := math.Min(activity+net+inflow+consistency, maxScore)
	if total < 0 {
		total = 0
	}
	return int(math.Round(total))
}

// CreditLimitFromInflows applies alpha*median - beta*volatility at the FX rate,
// clamped to [MinCreditLimit, MaxCreditLimit]
func CreditLimitFromInflows(inflows []float64) float64 {
	raw := math.Round(limitAlpha*Median(inflows)*NativeToUSDRate - limitBeta*StdDev(inflows)*NativeToUSDRate)
	return clamp(raw, MinCreditLimit, MaxCreditLimit)
}

// RiskBandForScore maps a score onto its band and APR; lower bounds are inclusive
func RiskBandForScore(score int) (entity.RiskBand, float64) {
	switch {
	case score >= lowRiskScore:
		return entity.RiskBandLow, LowRiskAPR
	case score >= mediumRiskScore:
		return entity.RiskBandMedium, MediumRiskAPR
	default:
		return entity.RiskBandHigh, HighRiskAPR
	}
}

// Median returns the median of values, 0 when empty
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// StdDev returns the population standard deviation of values, 0 when empty
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / float64(len(values)))
}

// WeiToNative converts a decimal or 0x-prefixed wei amount into native units.
// Unparseable values count as zero.
func WeiToNative(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	var amount decimal.Decimal
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		// hexutil rejects leading zeros; an all-zero value decodes to an error and scores as 0
		wei, err := hexutil.DecodeBig("0x" + strings.TrimLeft(value[2:], "0"))
		if err != nil {
			return 0
		}
		amount = decimal.NewFromBigInt(wei, 0)
	} else {
		parsed, err := decimal.NewFromString(value)
		if err != nil {
			return 0
		}
		amount = parsed
	}

	native, _ := amount.Shift(-weiDecimals).Float64()
	return native
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
