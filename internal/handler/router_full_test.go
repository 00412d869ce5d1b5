package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/dripman/internal/middleware"
	"github.com/hitoshi/dripman/internal/model"
)

// mockSessionFinderForRouter はRouter統合テスト用のSessionFinderモック。
type mockSessionFinderForRouter struct {
	sessions map[string]*model.Session
}

func (m *mockSessionFinderForRouter) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, nil
}

// createTestRouter はテスト用の完全なルーターを構築するヘルパー。
func createTestRouter() (http.Handler, *mockSessionFinderForRouter) {
	sessionFinder := &mockSessionFinderForRouter{
		sessions: map[string]*model.Session{
			"valid-session": {
				ID:        "valid-session",
				UserID:    1,
				ExpiresAt: time.Now().Add(1 * time.Hour),
			},
		},
	}

	deps := &RouterDeps{
		SessionFinder: sessionFinder,
		CSRFConfig:    middleware.CSRFConfig{CookieSecure: false},
		RateLimiter:   middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig()),
		AuthService: &mockAuthService{
			getCurrentUserFn: func(ctx context.Context, sessionID string) (*model.User, error) {
				return &model.User{ID: 1, Username: "hitoshi", Email: "test@example.com", Name: "Test"}, nil
			},
		},
		AuthConfig: AuthHandlerConfig{SessionMaxAge: 86400},
		ConnectionService: &mockConnectionService{
			listConnectionsFn: func(ctx context.Context, userID int64) ([]connectionResponse, error) {
				return []connectionResponse{}, nil
			},
			createConnectionFn: func(ctx context.Context, userID int64, req createConnectionRequest) (*connectionResponse, error) {
				return &connectionResponse{ID: 1, Name: req.Name, Status: "Disconnected"}, nil
			},
			getConnectionFn: func(ctx context.Context, userID, connectionID int64) (*connectionResponse, error) {
				return &connectionResponse{ID: connectionID, Name: "Work Gmail"}, nil
			},
			updateConnectionFn: func(ctx context.Context, userID, connectionID int64, req updateConnectionRequest) (*connectionResponse, error) {
				return &connectionResponse{ID: connectionID, Name: "Work Gmail"}, nil
			},
			testConnectionFn: func(ctx context.Context, userID, connectionID int64) (*connectionTestResponse, error) {
				return &connectionTestResponse{
					Connection: connectionResponse{ID: connectionID, Status: "Connected"},
					Result:     connectionTestResultResponse{Status: "Connected", Message: "ok"},
				}, nil
			},
		},
		FeedService: &mockFeedService{
			listFeedsFn: func(ctx context.Context, userID int64) ([]feedResponse, error) {
				return []feedResponse{}, nil
			},
			createFeedFn: func(ctx context.Context, userID int64, req createFeedRequest) (*feedResponse, error) {
				return &feedResponse{ID: 1, Name: req.Name}, nil
			},
			getFeedFn: func(ctx context.Context, userID, feedID int64) (*feedResponse, error) {
				return &feedResponse{ID: feedID, Name: "Daily Tips"}, nil
			},
			updateFeedFn: func(ctx context.Context, userID, feedID int64, req updateFeedRequest) (*feedResponse, error) {
				return &feedResponse{ID: feedID, Name: "Daily Tips"}, nil
			},
			toggleFeedFn: func(ctx context.Context, userID, feedID int64) (*feedResponse, error) {
				return &feedResponse{ID: feedID, Active: false}, nil
			},
		},
		StatsService: &mockStatsService{
			overviewFn: func(ctx context.Context, userID int64) (*statsResponse, error) {
				return &statsResponse{}, nil
			},
		},
		UserService: &mockUserService{},
	}

	router := NewRouter(deps)
	return router, sessionFinder
}

// TestNewRouter_HealthEndpoint_NoAuthRequired は
// ヘルスチェックエンドポイントが認証不要であることを検証する。
func TestNewRouter_HealthEndpoint_NoAuthRequired(t *testing.T) {
	router, _ := createTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("GET /health status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var body map[string]string
	json.NewDecoder(w.Result().Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("health status = %q, want %q", body["status"], "ok")
	}
}

// TestNewRouter_CSRFTokenEndpoint_NoAuthRequired は
// CSRFトークン取得エンドポイントが認証不要であることを検証する。
func TestNewRouter_CSRFTokenEndpoint_NoAuthRequired(t *testing.T) {
	router, _ := createTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("GET /api/csrf-token status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var body map[string]string
	json.NewDecoder(w.Result().Body).Decode(&body)
	if body["token"] == "" {
		t.Error("expected non-empty CSRF token")
	}
}

// TestNewRouter_AuthRoutes_MeEndpoint はGET /api/auth/meが正しくルーティングされることを検証する。
func TestNewRouter_AuthRoutes_MeEndpoint(t *testing.T) {
	router, _ := createTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /api/auth/me status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

// TestNewRouter_ProtectedRoute_NoSession_Returns401 は
// 認証保護ルートにセッションなしでアクセスすると401が返ることを検証する。
func TestNewRouter_ProtectedRoute_NoSession_Returns401(t *testing.T) {
	router, _ := createTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/connections", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("GET /api/connections (no session) status = %d, want %d",
			w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// TestNewRouter_ProtectedRoute_WithSession_GET_Succeeds は
// 認証保護ルートにセッション付きGETリクエストが成功することを検証する。
func TestNewRouter_ProtectedRoute_WithSession_GET_Succeeds(t *testing.T) {
	router, _ := createTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/connections", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("GET /api/connections status = %d, want %d",
			w.Result().StatusCode, http.StatusOK)
	}
}

// TestNewRouter_ProtectedRoute_POST_RequiresCSRF は
// POSTリクエストにCSRFトークンが必須であることを検証する。
func TestNewRouter_ProtectedRoute_POST_RequiresCSRF(t *testing.T) {
	router, _ := createTestRouter()

	body := `{"name": "Daily Tips", "full_text": "a. b", "separator": ". ", "connection_id": 1}`
	req := httptest.NewRequest(http.MethodPost, "/api/feeds", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("POST /api/feeds (no CSRF) status = %d, want %d",
			w.Result().StatusCode, http.StatusForbidden)
	}
}

// TestNewRouter_ProtectedRoute_POST_WithCSRF_Succeeds は
// POSTリクエストにCSRFトークン付きでアクセスが成功することを検証する。
func TestNewRouter_ProtectedRoute_POST_WithCSRF_Succeeds(t *testing.T) {
	router, _ := createTestRouter()

	body := `{"name": "Daily Tips", "full_text": "a. b", "separator": ". ", "connection_id": 1}`
	req := httptest.NewRequest(http.MethodPost, "/api/feeds", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "test-token"})
	req.Header.Set("X-CSRF-Token", "test-token")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Errorf("POST /api/feeds (with CSRF) status = %d, want %d",
			w.Result().StatusCode, http.StatusCreated)
	}
}

// TestNewRouter_MiddlewareOrder_SessionBeforeCSRF は
// セッション検証がCSRF検証より先に実行されることを検証する。
func TestNewRouter_MiddlewareOrder_SessionBeforeCSRF(t *testing.T) {
	router, _ := createTestRouter()

	body := `{"name": "Daily Tips"}`
	req := httptest.NewRequest(http.MethodPost, "/api/feeds", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("POST (no session, no CSRF) status = %d, want %d (session check before CSRF)",
			w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// TestNewRouter_ConnectionRoutes_AllEndpoints は接続関連の全エンドポイントが登録されていることを検証する。
func TestNewRouter_ConnectionRoutes_AllEndpoints(t *testing.T) {
	router, _ := createTestRouter()

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/connections", ""},
		{http.MethodPost, "/api/connections", `{"name": "Work Gmail", "url": "https://mail.example.com"}`},
		{http.MethodGet, "/api/connections/1", ""},
		{http.MethodPatch, "/api/connections/1", `{"name": "Renamed"}`},
		{http.MethodDelete, "/api/connections/1", ""},
		{http.MethodPost, "/api/connections/1/test", ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
			req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "test-token"})
			req.Header.Set("X-CSRF-Token", "test-token")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Result().StatusCode == http.StatusNotFound {
				t.Errorf("%s %s returned 404, route not found", tt.method, tt.path)
			}
		})
	}
}

// TestNewRouter_FeedRoutes_AllEndpoints はフィード関連の全エンドポイントが登録されていることを検証する。
func TestNewRouter_FeedRoutes_AllEndpoints(t *testing.T) {
	router, _ := createTestRouter()

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/feeds", ""},
		{http.MethodPost, "/api/feeds", `{"name": "Daily Tips", "full_text": "a. b", "separator": ". ", "connection_id": 1}`},
		{http.MethodGet, "/api/feeds/1", ""},
		{http.MethodPatch, "/api/feeds/1", `{"name": "Renamed"}`},
		{http.MethodDelete, "/api/feeds/1", ""},
		{http.MethodPost, "/api/feeds/1/toggle", ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
			req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "test-token"})
			req.Header.Set("X-CSRF-Token", "test-token")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Result().StatusCode == http.StatusNotFound {
				t.Errorf("%s %s returned 404, route not found", tt.method, tt.path)
			}
		})
	}
}

// TestNewRouter_StatsRoute_Registered は統計エンドポイントが登録されていることを検証する。
func TestNewRouter_StatsRoute_Registered(t *testing.T) {
	router, _ := createTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("GET /api/stats status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

// TestNewRouter_UserRoutes_WithdrawEndpoint は退会エンドポイントが登録されていることを検証する。
func TestNewRouter_UserRoutes_WithdrawEndpoint(t *testing.T) {
	router, _ := createTestRouter()

	req := httptest.NewRequest(http.MethodDelete, "/api/users/me", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "test-token"})
	req.Header.Set("X-CSRF-Token", "test-token")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode == http.StatusNotFound {
		t.Errorf("DELETE /api/users/me returned 404, route not found")
	}
	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("DELETE /api/users/me status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
}

// TestNewRouter_SecurityHeaders_Applied はセキュリティヘッダーが全レスポンスに付与されることを検証する。
func TestNewRouter_SecurityHeaders_Applied(t *testing.T) {
	router, _ := createTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if got := w.Result().Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want %q", got, "nosniff")
	}
	if got := w.Result().Header.Get("X-Frame-Options"); got == "" {
		t.Error("expected X-Frame-Options header")
	}
}

// TestNewRouter_RequestID_Returned はリクエストIDがレスポンスヘッダーに付与されることを検証する。
func TestNewRouter_RequestID_Returned(t *testing.T) {
	router, _ := createTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if got := w.Result().Header.Get("X-Request-ID"); got == "" {
		t.Error("expected X-Request-ID header in response")
	}
}
