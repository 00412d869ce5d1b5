package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/dripman/internal/middleware"
	"github.com/hitoshi/dripman/internal/model"
)

// FeedServiceInterface はフィードハンドラーが必要とするサービスインターフェース。
type FeedServiceInterface interface {
	// ListFeeds はユーザーのフィード一覧を返す。
	ListFeeds(ctx context.Context, userID int64) ([]feedResponse, error)
	// CreateFeed はフィードを登録し、本文を配信アイテムに分割する。
	CreateFeed(ctx context.Context, userID int64, req createFeedRequest) (*feedResponse, error)
	// GetFeed はフィードを取得する。
	GetFeed(ctx context.Context, userID, feedID int64) (*feedResponse, error)
	// UpdateFeed はフィードを部分更新する。
	UpdateFeed(ctx context.Context, userID, feedID int64, req updateFeedRequest) (*feedResponse, error)
	// DeleteFeed はフィードを削除する。
	DeleteFeed(ctx context.Context, userID, feedID int64) error
	// ToggleFeed はフィードの有効・無効を切り替える。
	ToggleFeed(ctx context.Context, userID, feedID int64) (*feedResponse, error)
}

// FeedHandler はドリップフィード管理のHTTPハンドラー。
type FeedHandler struct {
	service FeedServiceInterface
}

// NewFeedHandler はFeedHandlerを生成する。
func NewFeedHandler(service FeedServiceInterface) *FeedHandler {
	return &FeedHandler{
		service: service,
	}
}

// createFeedRequest はフィード登録リクエストのボディ。
type createFeedRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	FullText     string `json:"full_text"`
	Separator    string `json:"separator"`
	ConnectionID int64  `json:"connection_id"`
	Frequency    string `json:"frequency"`
	Active       *bool  `json:"active"`
}

// updateFeedRequest はフィード更新リクエストのボディ。
// nilのフィールドは変更しない。
type updateFeedRequest struct {
	Name         *string `json:"name"`
	Description  *string `json:"description"`
	FullText     *string `json:"full_text"`
	Separator    *string `json:"separator"`
	ConnectionID *int64  `json:"connection_id"`
	NumSent      *int    `json:"num_sent"`
	Frequency    *string `json:"frequency"`
	Active       *bool   `json:"active"`
}

// feedResponse はフィード情報のAPIレスポンス。
type feedResponse struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	FullText          string    `json:"full_text"`
	Separator         string    `json:"separator"`
	Contents          []string  `json:"contents"`
	CompletedContents []string  `json:"completed_contents"`
	ConnectionID      int64     `json:"connection_id"`
	NumSent           int       `json:"num_sent"`
	Total             int       `json:"total"`
	Frequency         string    `json:"frequency"`
	Active            bool      `json:"active"`
	CompletionPercent int       `json:"completion_percent"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// ListFeeds はフィード一覧を取得する。
// GET /api/feeds
func (h *FeedHandler) ListFeeds(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	feeds, err := h.service.ListFeeds(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(feeds)
}

// CreateFeed はフィード登録を処理する。
// POST /api/feeds
func (h *FeedHandler) CreateFeed(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createFeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	if req.Name == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewNameRequiredError())
		return
	}
	if req.FullText == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewFullTextRequiredError())
		return
	}
	if req.Separator == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidSeparatorError())
		return
	}

	feed, err := h.service.CreateFeed(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(feed)
}

// GetFeed はフィード詳細を取得する。
// GET /api/feeds/:id
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	feedID, ok := parseIDParam(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewFeedNotFoundError(0))
		return
	}

	feed, err := h.service.GetFeed(r.Context(), userID, feedID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(feed)
}

// UpdateFeed はフィードを部分更新する。
// PATCH /api/feeds/:id
func (h *FeedHandler) UpdateFeed(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	feedID, ok := parseIDParam(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewFeedNotFoundError(0))
		return
	}

	var req updateFeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	feed, err := h.service.UpdateFeed(r.Context(), userID, feedID, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(feed)
}

// DeleteFeed はフィードを削除する。
// DELETE /api/feeds/:id
func (h *FeedHandler) DeleteFeed(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	feedID, ok := parseIDParam(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewFeedNotFoundError(0))
		return
	}

	if err := h.service.DeleteFeed(r.Context(), userID, feedID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ToggleFeed はフィードの配信有効・無効を切り替える。
// POST /api/feeds/:id/toggle
func (h *FeedHandler) ToggleFeed(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	feedID, ok := parseIDParam(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewFeedNotFoundError(0))
		return
	}

	feed, err := h.service.ToggleFeed(r.Context(), userID, feedID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(feed)
}

// SetupFeedRoutes はフィード管理関連のルーティングを設定したchi.Routerを返す。
func SetupFeedRoutes(service FeedServiceInterface) http.Handler {
	r := chi.NewRouter()
	h := NewFeedHandler(service)

	r.Route("/api/feeds", func(r chi.Router) {
		r.Get("/", h.ListFeeds)
		r.Post("/", h.CreateFeed)

		// /api/feeds/:id 以下のルーティング
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetFeed)
			r.Patch("/", h.UpdateFeed)
			r.Delete("/", h.DeleteFeed)
			r.Post("/toggle", h.ToggleFeed)
		})
	})

	return r
}

// --- ヘルパー関数 ---

// parseIDParam はURLパスの:idパラメータを数値IDとして解釈する。
// 数値として解釈できないIDはどのエンティティも指さないため、
// 呼び出し側は404として扱う。
func parseIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeConnectionNotFound, model.ErrCodeFeedNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidRegistration, model.ErrCodeNameRequired,
		model.ErrCodeFullTextRequired, model.ErrCodeInvalidSeparator,
		model.ErrCodeInvalidURL, model.ErrCodeInvalidFrequency:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodeUsernameTaken:
		return http.StatusConflict
	case model.ErrCodeConnectionLimit, model.ErrCodeFeedLimit:
		return http.StatusConflict
	case model.ErrCodeConnectionTestFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
