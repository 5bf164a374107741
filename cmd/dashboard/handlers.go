package main

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"polymarket-copy-sim-go/internal/database"
	"polymarket-copy-sim-go/internal/models"
)

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log   *zap.Logger
	store *database.Store
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, store *database.Store) *APIHandler {
	return &APIHandler{log: log, store: store}
}

// PortfolioHandler returns the latest portfolio snapshot, or an empty object
// when the simulator has not written one yet.
func (h *APIHandler) PortfolioHandler(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.store.GetLatestPortfolioSnapshot()
	if err != nil {
		h.log.Error("Failed to get portfolio snapshot", zap.Error(err))
		http.Error(w, "Failed to get portfolio", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if snapshot == nil {
		w.Write([]byte("{}"))
		return
	}
	json.NewEncoder(w).Encode(snapshot)
}

// PositionsHandler returns all positions, open ones first.
func (h *APIHandler) PositionsHandler(w http.ResponseWriter, r *http.Request) {
	var positions []models.Position
	if err := h.store.DB().Order("is_open desc, updated_at desc").Find(&positions).Error; err != nil {
		h.log.Error("Failed to get positions from database", zap.Error(err))
		http.Error(w, "Failed to get positions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(positions)
}

// TradesHandler returns all copy trades, most recent first.
func (h *APIHandler) TradesHandler(w http.ResponseWriter, r *http.Request) {
	var trades []models.Trade
	if err := h.store.DB().Where("source = ?", models.SourceCopy).Order("timestamp desc").Find(&trades).Error; err != nil {
		h.log.Error("Failed to get trades from database", zap.Error(err))
		http.Error(w, "Failed to get trades", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trades)
}

// StatsDetail holds calculated statistics for a given period.
type StatsDetail struct {
	ClosedPositions int64   `json:"closed_positions"`
	WinningClosed   int64   `json:"winning_closed"`
	WinRate         float64 `json:"win_rate"`
	RealizedPnL     float64 `json:"realized_pnl"`
}

// StatsResponse is the structure for the /api/stats endpoint.
type StatsResponse struct {
	Since24h StatsDetail `json:"since_24h"`
	AllTime  StatsDetail `json:"all_time"`
}

// StatsHandler calculates and returns win statistics over closed positions.
func (h *APIHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	var closed []models.Position
	if err := h.store.DB().Where("is_open = ?", false).Find(&closed).Error; err != nil {
		h.log.Error("Failed to get positions for stats", zap.Error(err))
		http.Error(w, "Failed to calculate stats", http.StatusInternalServerError)
		return
	}

	since24h := time.Now().Add(-24 * time.Hour)
	var stats24h, statsAllTime StatsDetail

	for _, p := range closed {
		statsAllTime.ClosedPositions++
		statsAllTime.RealizedPnL += p.RealizedPnL
		if p.RealizedPnL > 0 {
			statsAllTime.WinningClosed++
		}

		if p.ClosedAt != nil && p.ClosedAt.After(since24h) {
			stats24h.ClosedPositions++
			stats24h.RealizedPnL += p.RealizedPnL
			if p.RealizedPnL > 0 {
				stats24h.WinningClosed++
			}
		}
	}

	if statsAllTime.ClosedPositions > 0 {
		statsAllTime.WinRate = float64(statsAllTime.WinningClosed) / float64(statsAllTime.ClosedPositions) * 100
	}
	if stats24h.ClosedPositions > 0 {
		stats24h.WinRate = float64(stats24h.WinningClosed) / float64(stats24h.ClosedPositions) * 100
	}

	response := StatsResponse{Since24h: stats24h, AllTime: statsAllTime}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
