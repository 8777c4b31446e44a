// Package api - HTTP поверхность бота: health, метрики и read-only
// срез состояния для мониторинга.
package api

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"triarb/internal/bot"
	"triarb/internal/market"
	"triarb/internal/repository"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrorResponse стандартный формат ответа об ошибке
type ErrorResponse struct {
	Error string `json:"error"`
}

// OpportunityReader отдаёт возможности последнего прохода оценки.
type OpportunityReader interface {
	GetAll() ([]*repository.OpportunityRecord, error)
}

// StateProvider отдаёт текущее состояние машины исполнения.
type StateProvider interface {
	State() string
}

// Handler обслуживает read-only endpoints состояния бота.
type Handler struct {
	opportunities OpportunityReader
	executor      StateProvider
	account       *market.AccountState
	feedStates    func() map[string]string
	logger        *zap.Logger
}

// NewHandler создаёт обработчики API.
func NewHandler(
	opportunities OpportunityReader,
	executor StateProvider,
	account *market.AccountState,
	feedStates func() map[string]string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		opportunities: opportunities,
		executor:      executor,
		account:       account,
		feedStates:    feedStates,
		logger:        logger,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("write response failed", zap.Error(err))
	}
}

// GetOpportunities возвращает возможности последнего прохода,
// лучшие первыми.
func (h *Handler) GetOpportunities(w http.ResponseWriter, r *http.Request) {
	records, err := h.opportunities.GetAll()
	if err != nil {
		h.logger.Error("load opportunities failed", zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to load opportunities"})
		return
	}
	if records == nil {
		records = []*repository.OpportunityRecord{}
	}
	h.writeJSON(w, http.StatusOK, records)
}

// StatusResponse - сводка состояния бота.
type StatusResponse struct {
	ExecutionState string            `json:"execution_state"`
	ExecutionInfo  string            `json:"execution_info"`
	Feeds          map[string]string `json:"feeds"`
	OpenOrders     int               `json:"open_orders"`
}

// GetStatus возвращает состояние исполнения и фидов.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	state := h.executor.State()
	h.writeJSON(w, http.StatusOK, StatusResponse{
		ExecutionState: state,
		ExecutionInfo:  bot.StateInfo(state),
		Feeds:          h.feedStates(),
		OpenOrders:     len(h.account.OpenOrders()),
	})
}

// BalanceEntry - баланс одной валюты в ответе API.
type BalanceEntry struct {
	Currency  string  `json:"currency"`
	Available float64 `json:"available"`
	Frozen    float64 `json:"frozen"`
}

// GetBalances возвращает балансы, наблюдавшиеся в приватном канале.
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	balances := h.account.Balances()
	entries := make([]BalanceEntry, 0, len(balances))
	for _, b := range balances {
		entries = append(entries, BalanceEntry{
			Currency:  b.Currency,
			Available: b.Available,
			Frozen:    b.Frozen,
		})
	}
	h.writeJSON(w, http.StatusOK, entries)
}
