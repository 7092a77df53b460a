package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cred-credit-engine/internal/domain/entity"
	"cred-credit-engine/internal/domain/service"
	"cred-credit-engine/internal/infrastructure/blockchain"
	"cred-credit-engine/internal/infrastructure/logger"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// Handler serves the credit read and command API
type Handler struct {
	credit        service.CreditService
	ledger        service.CreditLedger
	checks        map[string]HealthCheck
	healthTimeout time.Duration
	logger        *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(
	credit service.CreditService,
	ledger service.CreditLedger,
	checks map[string]HealthCheck,
	healthTimeout time.Duration,
	logger *logger.Logger,
) *Handler {
	if healthTimeout <= 0 {
		healthTimeout = 5 * time.Second
	}
	return &Handler{
		credit:        credit,
		ledger:        ledger,
		checks:        checks,
		healthTimeout: healthTimeout,
		logger:        logger.WithComponent("http-api"),
	}
}

// Routes returns the API mux
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /wallets/{address}/summary", h.summary)
	mux.HandleFunc("GET /wallets/{address}/history", h.history)
	mux.HandleFunc("GET /wallets/{address}/balance", h.balance)
	mux.HandleFunc("POST /wallets/{address}/assess", h.assess)
	mux.HandleFunc("POST /wallets/{address}/borrow", h.borrow)
	mux.HandleFunc("POST /wallets/{address}/repay", h.repay)
	mux.HandleFunc("POST /wallets/{address}/verify", h.verify)
	mux.HandleFunc("POST /wallets/{address}/auto-repay", h.autoRepay)
	return mux
}

type amountRequest struct {
	Amount float64 `json:"amount"`
	TxHash string  `json:"tx_hash"`
}

type verifyRequest struct {
	VerifiedIncome float64 `json:"verified_income"`
	Currency       string  `json:"currency"`
	Provider       string  `json:"provider"`
}

type autoRepayRequest struct {
	Enabled bool `json:"enabled"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.healthTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	h.writeJSON(w, status, resp)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	wallet, ok := h.walletFromPath(w, r)
	if !ok {
		return
	}
	summary, err := h.ledger.GetCreditSummary(r.Context(), wallet)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	wallet, ok := h.walletFromPath(w, r)
	if !ok {
		return
	}
	entries, err := h.ledger.GetTransactionHistory(r.Context(), wallet)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	wallet, ok := h.walletFromPath(w, r)
	if !ok {
		return
	}
	balance, err := h.ledger.GetCurrentBalance(r.Context(), wallet)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, balance)
}

func (h *Handler) assess(w http.ResponseWriter, r *http.Request) {
	wallet, ok := h.walletFromPath(w, r)
	if !ok {
		return
	}
	result, err := h.credit.AssessWallet(r.Context(), wallet)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) borrow(w http.ResponseWriter, r *http.Request) {
	wallet, ok := h.walletFromPath(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if !h.decode(w, r, &req) {
		return
	}
	state, err := h.credit.Borrow(r.Context(), wallet, req.Amount, req.TxHash)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}

func (h *Handler) repay(w http.ResponseWriter, r *http.Request) {
	wallet, ok := h.walletFromPath(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if !h.decode(w, r, &req) {
		return
	}
	state, err := h.credit.Repay(r.Context(), wallet, req.Amount, req.TxHash)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	wallet, ok := h.walletFromPath(w, r)
	if !ok {
		return
	}
	var req verifyRequest
	if !h.decode(w, r, &req) {
		return
	}
	snapshot, err := h.credit.ApplyVerifiedIncome(r.Context(), &entity.VerificationEvent{
		WalletAddress:  wallet,
		VerifiedIncome: req.VerifiedIncome,
		Currency:       req.Currency,
		Provider:       req.Provider,
		VerifiedAt:     time.Now().UTC(),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) autoRepay(w http.ResponseWriter, r *http.Request) {
	wallet, ok := h.walletFromPath(w, r)
	if !ok {
		return
	}
	var req autoRepayRequest
	if !h.decode(w, r, &req) {
		return
	}
	state, err := h.ledger.SetAutoRepay(r.Context(), wallet, req.Enabled)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}

func (h *Handler) walletFromPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	wallet, ok := blockchain.NormalizeAddress(r.PathValue("address"))
	if !ok || blockchain.IsZeroAddress(wallet) {
		h.writeError(w, service.ErrInvalidWalletAddress)
		return "", false
	}
	return wallet, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.Error(err))
		h.writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidWalletAddress), errors.Is(err, service.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInsufficientCredit):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("Failed to write response", zap.Error(err))
	}
}
