package connection

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/dripman/internal/model"
)

// --- モック ---

type stubGuard struct {
	validateErr error
}

func (g *stubGuard) ValidateURL(rawURL string) error {
	return g.validateErr
}

func (g *stubGuard) NewSafeClient(timeout time.Duration) *http.Client {
	// テストではhttptestサーバー（ループバック）に到達できる素のクライアントを返す
	return &http.Client{Timeout: timeout}
}

// --- テスト ---

// TestSimulatedChecker_TokenPresent はトークン設定済み接続がConnectedと判定されることを検証する。
func TestSimulatedChecker_TokenPresent(t *testing.T) {
	checker := NewSimulatedChecker(10 * time.Millisecond)
	conn := &model.Connection{ID: 1, Name: "gmail", Token: "token-123"}

	start := time.Now()
	result, err := checker.Check(context.Background(), conn)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if result.Status != model.StatusConnected {
		t.Errorf("Status = %q, want %q", result.Status, model.StatusConnected)
	}
	if elapsed < 10*time.Millisecond {
		t.Errorf("Check returned after %v, want at least 10ms delay", elapsed)
	}
}

// TestSimulatedChecker_NoToken はトークン未設定接続がDisconnectedと判定されることを検証する。
func TestSimulatedChecker_NoToken(t *testing.T) {
	checker := NewSimulatedChecker(time.Millisecond)

	for _, token := range []string{"", "   "} {
		conn := &model.Connection{ID: 1, Name: "gmail", Token: token}
		result, err := checker.Check(context.Background(), conn)
		if err != nil {
			t.Fatalf("Check returned error: %v", err)
		}
		if result.Status != model.StatusDisconnected {
			t.Errorf("Check(token=%q) Status = %q, want %q", token, result.Status, model.StatusDisconnected)
		}
		if result.Message == "" {
			t.Error("expected non-empty message for disconnected verdict")
		}
	}
}

// TestSimulatedChecker_ContextCanceled はキャンセル済みコンテキストで待機が中断されることを検証する。
func TestSimulatedChecker_ContextCanceled(t *testing.T) {
	checker := NewSimulatedChecker(10 * time.Second)
	conn := &model.Connection{ID: 1, Token: "token"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := checker.Check(ctx, conn)
	if err == nil {
		t.Fatal("expected error for canceled context, got nil")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Check took %v after cancel, want immediate return", elapsed)
	}
}

// TestProbeChecker_EmptyURL はURL未設定接続がリクエストなしでDisconnectedになることを検証する。
func TestProbeChecker_EmptyURL(t *testing.T) {
	checker := NewProbeChecker(&stubGuard{}, time.Second)
	conn := &model.Connection{ID: 1, Name: "notion"}

	result, err := checker.Check(context.Background(), conn)
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if result.Status != model.StatusDisconnected {
		t.Errorf("Status = %q, want %q", result.Status, model.StatusDisconnected)
	}
}

// TestProbeChecker_BlockedURL はSSRF検証に失敗したURLがDisconnectedになることを検証する。
func TestProbeChecker_BlockedURL(t *testing.T) {
	guard := &stubGuard{validateErr: context.DeadlineExceeded}
	checker := NewProbeChecker(guard, time.Second)
	conn := &model.Connection{ID: 1, URL: "http://169.254.169.254/"}

	result, err := checker.Check(context.Background(), conn)
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if result.Status != model.StatusDisconnected {
		t.Errorf("Status = %q, want %q", result.Status, model.StatusDisconnected)
	}
}

// TestProbeChecker_HTTPOK は2xx応答がConnectedと判定されることを検証する。
func TestProbeChecker_HTTPOK(t *testing.T) {
	authCh := make(chan string, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCh <- r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	checker := NewProbeChecker(&stubGuard{}, time.Second)
	conn := &model.Connection{ID: 1, URL: ts.URL, Token: "token-123"}

	result, err := checker.Check(context.Background(), conn)
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if result.Status != model.StatusConnected {
		t.Errorf("Status = %q, want %q", result.Status, model.StatusConnected)
	}
	if gotAuth := <-authCh; gotAuth != "Bearer token-123" {
		t.Errorf("Authorization header = %q, want %q", gotAuth, "Bearer token-123")
	}
}

// TestProbeChecker_HTTPServerError は5xx応答がDisconnectedと判定されることを検証する。
func TestProbeChecker_HTTPServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	checker := NewProbeChecker(&stubGuard{}, time.Second)
	conn := &model.Connection{ID: 1, URL: ts.URL}

	result, err := checker.Check(context.Background(), conn)
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if result.Status != model.StatusDisconnected {
		t.Errorf("Status = %q, want %q", result.Status, model.StatusDisconnected)
	}
	if result.Message == "" {
		t.Error("expected non-empty message for error response")
	}
}

// TestProbeChecker_UnreachableHost は到達不能ホストがDisconnectedと判定されることを検証する。
func TestProbeChecker_UnreachableHost(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := ts.URL
	ts.Close() // サーバーを止めてから同じアドレスへ接続させる

	checker := NewProbeChecker(&stubGuard{}, time.Second)
	conn := &model.Connection{ID: 1, URL: addr}

	result, err := checker.Check(context.Background(), conn)
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if result.Status != model.StatusDisconnected {
		t.Errorf("Status = %q, want %q", result.Status, model.StatusDisconnected)
	}
}
