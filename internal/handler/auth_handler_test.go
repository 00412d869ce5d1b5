package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/dripman/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	registerFn       func(ctx context.Context, username, password, email, name string) (*model.User, *model.Session, error)
	loginFn          func(ctx context.Context, username, password string) (*model.User, *model.Session, error)
	logoutFn         func(ctx context.Context, sessionID string) error
	getCurrentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) Register(ctx context.Context, username, password, email, name string) (*model.User, *model.Session, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, username, password, email, name)
	}
	return nil, nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, username, password string) (*model.User, *model.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, username, password)
	}
	return nil, nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return nil, nil
}

func newTestAuthHandler(svc AuthServiceInterface) *AuthHandler {
	return NewAuthHandler(svc, AuthHandlerConfig{
		CookieDomain:  "",
		CookieSecure:  false,
		SessionMaxAge: 86400,
	})
}

// findSessionCookie はレスポンスからセッションCookieを探すヘルパー。
func findSessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == "session_id" {
			return c
		}
	}
	return nil
}

// --- POST /api/auth/register テスト ---

func TestAuthHandler_Register_Success_SetsCookieAndReturnsUser(t *testing.T) {
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, username, password, email, name string) (*model.User, *model.Session, error) {
			if username != "hitoshi" {
				t.Errorf("username = %q, want %q", username, "hitoshi")
			}
			if password != "secret-password" {
				t.Errorf("password = %q, want %q", password, "secret-password")
			}
			return &model.User{
					ID:       1,
					Username: "hitoshi",
					Email:    "hitoshi@example.com",
					Name:     "Hitoshi",
				}, &model.Session{
					ID:        "session-id-abc",
					UserID:    1,
					ExpiresAt: time.Now().Add(24 * time.Hour),
				}, nil
		},
	}
	h := newTestAuthHandler(svc)

	body := `{"username": "hitoshi", "password": "secret-password", "email": "hitoshi@example.com", "name": "Hitoshi"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.Register(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	// セッションCookieが設定されること
	sessionCookie := findSessionCookie(resp)
	if sessionCookie == nil {
		t.Fatal("expected session_id cookie to be set")
	}
	if sessionCookie.Value != "session-id-abc" {
		t.Errorf("session cookie value = %q, want %q", sessionCookie.Value, "session-id-abc")
	}
	if !sessionCookie.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}
	if sessionCookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("session cookie SameSite = %v, want %v", sessionCookie.SameSite, http.SameSiteLaxMode)
	}
	if sessionCookie.MaxAge != 86400 {
		t.Errorf("session cookie MaxAge = %d, want 86400", sessionCookie.MaxAge)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if int64(result["id"].(float64)) != 1 {
		t.Errorf("id = %v, want 1", result["id"])
	}
	if result["username"] != "hitoshi" {
		t.Errorf("username = %v, want %q", result["username"], "hitoshi")
	}

	// パスワードがレスポンスに含まれないこと
	if _, ok := result["password"]; ok {
		t.Error("response must not contain password")
	}
}

func TestAuthHandler_Register_InvalidJSON_ReturnsBadRequest(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(`{invalid json`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.Register(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestAuthHandler_Register_UsernameTaken_ReturnsConflict(t *testing.T) {
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, username, password, email, name string) (*model.User, *model.Session, error) {
			return nil, nil, model.NewUsernameTakenError(username)
		},
	}
	h := newTestAuthHandler(svc)

	body := `{"username": "taken", "password": "secret-password"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.Register(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != "USERNAME_TAKEN" {
		t.Errorf("code = %q, want %q", errResp["code"], "USERNAME_TAKEN")
	}
}

func TestAuthHandler_Register_InvalidInput_ReturnsBadRequest(t *testing.T) {
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, username, password, email, name string) (*model.User, *model.Session, error) {
			return nil, nil, model.NewInvalidRegistrationError("ユーザー名が短すぎます")
		},
	}
	h := newTestAuthHandler(svc)

	body := `{"username": "ab", "password": "secret-password"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.Register(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != "INVALID_REGISTRATION" {
		t.Errorf("code = %q, want %q", errResp["code"], "INVALID_REGISTRATION")
	}
}

// --- POST /api/auth/login テスト ---

func TestAuthHandler_Login_Success_SetsCookieAndReturnsUser(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, username, password string) (*model.User, *model.Session, error) {
			if username != "hitoshi" {
				t.Errorf("username = %q, want %q", username, "hitoshi")
			}
			return &model.User{
					ID:       7,
					Username: "hitoshi",
				}, &model.Session{
					ID:        "login-session-id",
					UserID:    7,
					ExpiresAt: time.Now().Add(24 * time.Hour),
				}, nil
		},
	}
	h := newTestAuthHandler(svc)

	body := `{"username": "hitoshi", "password": "secret-password"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	sessionCookie := findSessionCookie(resp)
	if sessionCookie == nil {
		t.Fatal("expected session_id cookie to be set")
	}
	if sessionCookie.Value != "login-session-id" {
		t.Errorf("session cookie value = %q, want %q", sessionCookie.Value, "login-session-id")
	}

	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if int64(result["id"].(float64)) != 7 {
		t.Errorf("id = %v, want 7", result["id"])
	}
}

func TestAuthHandler_Login_InvalidCredentials_ReturnsUnauthorized(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, username, password string) (*model.User, *model.Session, error) {
			return nil, nil, model.NewInvalidCredentialsError()
		},
	}
	h := newTestAuthHandler(svc)

	body := `{"username": "hitoshi", "password": "wrong-password"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != "INVALID_CREDENTIALS" {
		t.Errorf("code = %q, want %q", errResp["code"], "INVALID_CREDENTIALS")
	}

	// 失敗時はCookieを設定しないこと
	if findSessionCookie(resp) != nil {
		t.Error("session cookie must not be set on failed login")
	}
}

func TestAuthHandler_Login_InvalidJSON_ReturnsBadRequest(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(`not json`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

// --- POST /api/auth/logout テスト ---

func TestAuthHandler_Logout_Success_ClearsCookie(t *testing.T) {
	var loggedOutSessionID string
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			loggedOutSessionID = sessionID
			return nil
		},
	}
	h := newTestAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "session-to-logout"})
	w := httptest.NewRecorder()

	h.Logout(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	if loggedOutSessionID != "session-to-logout" {
		t.Errorf("logged out session = %q, want %q", loggedOutSessionID, "session-to-logout")
	}

	// セッションCookieがクリアされること
	sessionCookie := findSessionCookie(resp)
	if sessionCookie == nil {
		t.Fatal("expected session_id cookie to be cleared")
	}
	if sessionCookie.MaxAge != -1 {
		t.Errorf("session cookie MaxAge = %d, want -1 (delete)", sessionCookie.MaxAge)
	}
}

func TestAuthHandler_Logout_NoSession_StillReturnsNoContent(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	w := httptest.NewRecorder()

	h.Logout(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
}

func TestAuthHandler_Logout_ServiceError_StillClearsCookie(t *testing.T) {
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			return errors.New("store unavailable")
		},
	}
	h := newTestAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "session-x"})
	w := httptest.NewRecorder()

	h.Logout(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if findSessionCookie(resp) == nil {
		t.Error("expected session cookie to be cleared even on service error")
	}
}

// --- GET /api/auth/me テスト ---

func TestAuthHandler_Me_Authenticated_ReturnsUserJSON(t *testing.T) {
	svc := &mockAuthService{
		getCurrentUserFn: func(ctx context.Context, sessionID string) (*model.User, error) {
			if sessionID != "valid-session" {
				t.Errorf("sessionID = %q, want %q", sessionID, "valid-session")
			}
			return &model.User{
				ID:       42,
				Username: "hitoshi",
				Email:    "me@example.com",
				Name:     "Me User",
			}, nil
		},
	}
	h := newTestAuthHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()

	h.Me(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Content-Type = %q, want %q", contentType, "application/json")
	}

	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if int64(result["id"].(float64)) != 42 {
		t.Errorf("id = %v, want 42", result["id"])
	}
	if result["username"] != "hitoshi" {
		t.Errorf("username = %v, want %q", result["username"], "hitoshi")
	}
	if result["email"] != "me@example.com" {
		t.Errorf("email = %v, want %q", result["email"], "me@example.com")
	}
}

func TestAuthHandler_Me_NoSession_ReturnsUnauthorized(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	w := httptest.NewRecorder()

	h.Me(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestAuthHandler_Me_InvalidSession_ReturnsUnauthorized(t *testing.T) {
	svc := &mockAuthService{
		getCurrentUserFn: func(ctx context.Context, sessionID string) (*model.User, error) {
			return nil, errors.New("session not found or expired")
		},
	}
	h := newTestAuthHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "expired-session"})
	w := httptest.NewRecorder()

	h.Me(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}
