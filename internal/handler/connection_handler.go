package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/dripman/internal/middleware"
	"github.com/hitoshi/dripman/internal/model"
)

// ConnectionServiceInterface は接続ハンドラーが必要とするサービスインターフェース。
type ConnectionServiceInterface interface {
	// ListConnections はユーザーの接続一覧を返す。
	ListConnections(ctx context.Context, userID int64) ([]connectionResponse, error)
	// CreateConnection は接続を登録する。
	CreateConnection(ctx context.Context, userID int64, req createConnectionRequest) (*connectionResponse, error)
	// GetConnection は接続を取得する。
	GetConnection(ctx context.Context, userID, connectionID int64) (*connectionResponse, error)
	// UpdateConnection は接続を部分更新する。
	UpdateConnection(ctx context.Context, userID, connectionID int64, req updateConnectionRequest) (*connectionResponse, error)
	// DeleteConnection は接続と紐づくフィードを削除する。
	DeleteConnection(ctx context.Context, userID, connectionID int64) error
	// TestConnection は接続テストを実行し、更新後の接続と判定結果を返す。
	TestConnection(ctx context.Context, userID, connectionID int64) (*connectionTestResponse, error)
}

// ConnectionHandler は外部サービス接続管理のHTTPハンドラー。
type ConnectionHandler struct {
	service ConnectionServiceInterface
}

// NewConnectionHandler はConnectionHandlerを生成する。
func NewConnectionHandler(service ConnectionServiceInterface) *ConnectionHandler {
	return &ConnectionHandler{
		service: service,
	}
}

// createConnectionRequest は接続登録リクエストのボディ。
type createConnectionRequest struct {
	Name     string   `json:"name"`
	URL      string   `json:"url"`
	Token    string   `json:"token"`
	Icon     string   `json:"icon"`
	Projects []string `json:"projects"`
}

// updateConnectionRequest は接続更新リクエストのボディ。
// nilのフィールドは変更しない。
type updateConnectionRequest struct {
	Name     *string   `json:"name"`
	URL      *string   `json:"url"`
	Token    *string   `json:"token"`
	Icon     *string   `json:"icon"`
	Projects *[]string `json:"projects"`
}

// connectionResponse は接続情報のAPIレスポンス。
// トークンは書き込み専用のためレスポンスに含めない。
type connectionResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Status    string    `json:"status"`
	Icon      string    `json:"icon"`
	Projects  []string  `json:"projects"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// connectionTestResultResponse は接続テストの判定結果。
type connectionTestResultResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// connectionTestResponse は接続テストのAPIレスポンス。
// テスト後の接続と判定結果をあわせて返す。
type connectionTestResponse struct {
	Connection connectionResponse           `json:"connection"`
	Result     connectionTestResultResponse `json:"result"`
}

// ListConnections は接続一覧を取得する。
// GET /api/connections
func (h *ConnectionHandler) ListConnections(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	conns, err := h.service.ListConnections(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(conns)
}

// CreateConnection は接続を登録する。
// POST /api/connections
func (h *ConnectionHandler) CreateConnection(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createConnectionRequest
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
	if req.URL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("URLが空です"))
		return
	}

	conn, err := h.service.CreateConnection(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(conn)
}

// GetConnection は接続詳細を取得する。
// GET /api/connections/:id
func (h *ConnectionHandler) GetConnection(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	connectionID, ok := parseIDParam(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewConnectionNotFoundError(0))
		return
	}

	conn, err := h.service.GetConnection(r.Context(), userID, connectionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(conn)
}

// UpdateConnection は接続を部分更新する。
// PATCH /api/connections/:id
func (h *ConnectionHandler) UpdateConnection(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	connectionID, ok := parseIDParam(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewConnectionNotFoundError(0))
		return
	}

	var req updateConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	conn, err := h.service.UpdateConnection(r.Context(), userID, connectionID, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(conn)
}

// DeleteConnection は接続を削除する。紐づくフィードもまとめて削除される。
// DELETE /api/connections/:id
func (h *ConnectionHandler) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	connectionID, ok := parseIDParam(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewConnectionNotFoundError(0))
		return
	}

	if err := h.service.DeleteConnection(r.Context(), userID, connectionID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TestConnection は接続テストを実行する。
// POST /api/connections/:id/test
func (h *ConnectionHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	connectionID, ok := parseIDParam(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewConnectionNotFoundError(0))
		return
	}

	result, err := h.service.TestConnection(r.Context(), userID, connectionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// SetupConnectionRoutes は接続管理関連のルーティングを設定したchi.Routerを返す。
// connTestMiddleware が nil でない場合、POST /api/connections/{id}/test に
// 接続テスト専用レート制限を適用する。
func SetupConnectionRoutes(service ConnectionServiceInterface, connTestMiddleware func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	h := NewConnectionHandler(service)

	r.Route("/api/connections", func(r chi.Router) {
		r.Get("/", h.ListConnections)
		r.Post("/", h.CreateConnection)

		// /api/connections/:id 以下のルーティング
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetConnection)
			r.Patch("/", h.UpdateConnection)
			r.Delete("/", h.DeleteConnection)

			// POST /api/connections/:id/test - 接続テスト（テスト専用レート制限を適用）
			if connTestMiddleware != nil {
				r.With(connTestMiddleware).Post("/test", h.TestConnection)
			} else {
				r.Post("/test", h.TestConnection)
			}
		})
	})

	return r
}
