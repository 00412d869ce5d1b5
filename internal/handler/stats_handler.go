package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/dripman/internal/middleware"
	"github.com/hitoshi/dripman/internal/model"
)

// StatsServiceInterface は統計ハンドラーが必要とするサービスインターフェース。
type StatsServiceInterface interface {
	// Overview はダッシュボード統計を集計して返す。
	Overview(ctx context.Context, userID int64) (*statsResponse, error)
}

// StatsHandler はダッシュボード統計のHTTPハンドラー。
type StatsHandler struct {
	service StatsServiceInterface
}

// NewStatsHandler はStatsHandlerを生成する。
func NewStatsHandler(service StatsServiceInterface) *StatsHandler {
	return &StatsHandler{
		service: service,
	}
}

// statsResponse はダッシュボード統計のAPIレスポンス。
type statsResponse struct {
	ActiveFeeds      int `json:"active_feeds"`
	ConnectedApps    int `json:"connected_apps"`
	ContentDelivered int `json:"content_delivered"`
}

// GetStats はダッシュボード統計を取得する。
// GET /api/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	overview, err := h.service.Overview(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(overview)
}

// SetupStatsRoutes は統計関連のルーティングを設定したchi.Routerを返す。
func SetupStatsRoutes(service StatsServiceInterface) http.Handler {
	r := chi.NewRouter()
	h := NewStatsHandler(service)

	r.Get("/api/stats", h.GetStats)

	return r
}
