// Package connection は外部サービス接続のドメインロジックを提供する。
package connection

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/dripman/internal/model"
)

// CheckResult は接続テストの判定結果を表す。
type CheckResult struct {
	Status  model.ConnectionStatus
	Message string
}

// Checker は接続先サービスの疎通確認のインターフェース。
// テスト実行後のステータス永続化はサービス層が行う。
type Checker interface {
	// Check は接続の疎通を確認し、判定結果を返す。
	// 判定不能（コンテキストキャンセル等）の場合のみエラーを返す。
	// 「つながらなかった」はエラーではなく Disconnected の結果として返す。
	Check(ctx context.Context, conn *model.Connection) (*CheckResult, error)
}

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// SimulatedChecker は外部サービスへアクセスしない疑似テスト実装。
// 固定の待機時間の後、トークンの有無だけで判定結果を返す。
// 実際のAPI呼び出しを行わないため、開発環境や外部連携未設定の
// デプロイでも接続テストのUIフローを成立させられる。
type SimulatedChecker struct {
	delay time.Duration
}

// NewSimulatedChecker はSimulatedCheckerを生成する。
func NewSimulatedChecker(delay time.Duration) *SimulatedChecker {
	return &SimulatedChecker{delay: delay}
}

// Check は固定の待機時間の後、トークンの有無から判定結果を返す。
func (c *SimulatedChecker) Check(ctx context.Context, conn *model.Connection) (*CheckResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(c.delay):
	}

	if strings.TrimSpace(conn.Token) == "" {
		return &CheckResult{
			Status:  model.StatusDisconnected,
			Message: "トークンが設定されていません。",
		}, nil
	}

	return &CheckResult{
		Status:  model.StatusConnected,
		Message: "接続を確認しました。",
	}, nil
}

// maxProbeBodySize はプローブ応答の読み捨て上限。
const maxProbeBodySize = 64 * 1024

// ProbeChecker は接続先URLへ実際にHTTPリクエストを送信するテスト実装。
// SSRF防止付きクライアントでGETを送り、応答コードで判定する。
type ProbeChecker struct {
	ssrfGuard SSRFValidator
	timeout   time.Duration
}

// NewProbeChecker はProbeCheckerを生成する。
func NewProbeChecker(ssrfGuard SSRFValidator, timeout time.Duration) *ProbeChecker {
	return &ProbeChecker{
		ssrfGuard: ssrfGuard,
		timeout:   timeout,
	}
}

// Check は接続先URLへGETリクエストを送信し、応答コードから判定結果を返す。
// 2xx/3xxをConnected、それ以外およびネットワークエラーをDisconnectedとする。
func (c *ProbeChecker) Check(ctx context.Context, conn *model.Connection) (*CheckResult, error) {
	if conn.URL == "" {
		return &CheckResult{
			Status:  model.StatusDisconnected,
			Message: "接続先URLが設定されていません。",
		}, nil
	}

	if err := c.ssrfGuard.ValidateURL(conn.URL); err != nil {
		return &CheckResult{
			Status:  model.StatusDisconnected,
			Message: "セキュリティポリシーにより接続先URLへのアクセスがブロックされました。",
		}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, conn.URL, nil)
	if err != nil {
		return &CheckResult{
			Status:  model.StatusDisconnected,
			Message: "接続先URLへのリクエストを作成できませんでした。",
		}, nil
	}
	req.Header.Set("User-Agent", "Dripman/1.0 Connection Check")
	if conn.Token != "" {
		req.Header.Set("Authorization", "Bearer "+conn.Token)
	}

	client := c.ssrfGuard.NewSafeClient(c.timeout)
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &CheckResult{
			Status:  model.StatusDisconnected,
			Message: fmt.Sprintf("接続先への到達に失敗しました: %v", err),
		}, nil
	}
	defer resp.Body.Close()

	// コネクション再利用のためボディを読み捨てる
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxProbeBodySize))

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return &CheckResult{
			Status:  model.StatusConnected,
			Message: "接続を確認しました。",
		}, nil
	}

	return &CheckResult{
		Status:  model.StatusDisconnected,
		Message: fmt.Sprintf("接続先がエラーを返しました: HTTP %d", resp.StatusCode),
	}, nil
}

// compile-time interface checks
var (
	_ Checker = (*SimulatedChecker)(nil)
	_ Checker = (*ProbeChecker)(nil)
)
