package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// --- モック定義 ---

// mockSessionDeleter はSessionDeleterインターフェースのモック実装。
type mockSessionDeleter struct {
	callCount    atomic.Int64
	deletedCount int64
	err          error
	lastNow      time.Time
}

func (m *mockSessionDeleter) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.callCount.Add(1)
	m.lastNow = now
	if m.err != nil {
		return 0, m.err
	}
	return m.deletedCount, nil
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// --- テスト ---

func TestNewCleanupJob_ReturnsNonNil(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockSessionDeleter{}
	job := NewCleanupJob(mock, logger)

	if job == nil {
		t.Fatal("NewCleanupJob は nil を返してはならない")
	}
}

func TestCleanupJob_Run_CallsDeleteExpired(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockSessionDeleter{deletedCount: 5}
	job := NewCleanupJob(mock, logger)

	err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	if mock.callCount.Load() != 1 {
		t.Fatalf("DeleteExpired の呼び出し回数 = %d, want 1", mock.callCount.Load())
	}
}

func TestCleanupJob_Run_PassesCurrentTime(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockSessionDeleter{}
	job := NewCleanupJob(mock, logger)

	before := time.Now()
	_ = job.Run(context.Background())
	after := time.Now()

	if mock.lastNow.Before(before) || mock.lastNow.After(after) {
		t.Errorf("DeleteExpired に渡された時刻が現在時刻ではない: %v", mock.lastNow)
	}
}

func TestCleanupJob_Run_LogsDeletedCount(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockSessionDeleter{deletedCount: 42}
	job := NewCleanupJob(mock, logger)

	_ = job.Run(context.Background())

	// ログ出力に削除件数が含まれること
	var entry map[string]interface{}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	found := false
	for _, line := range lines {
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if count, ok := entry["deleted_count"]; ok {
			if count == float64(42) {
				found = true
				break
			}
		}
	}
	if !found {
		t.Errorf("ログに deleted_count=42 が記録されていない。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Run_ReturnsErrorOnStoreFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockSessionDeleter{err: errors.New("store unavailable")}
	job := NewCleanupJob(mock, logger)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("ストアエラー時に Run() は nil でないエラーを返すべき")
	}

	if !strings.Contains(err.Error(), "store unavailable") {
		t.Errorf("エラーメッセージが期待と異なる: %v", err)
	}
}

func TestCleanupJob_Run_LogsErrorOnStoreFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockSessionDeleter{err: errors.New("store unavailable")}
	job := NewCleanupJob(mock, logger)

	_ = job.Run(context.Background())

	// エラーログが出力されていること
	logOutput := buf.String()
	if !strings.Contains(logOutput, "ERROR") {
		t.Errorf("エラー時にERRORレベルのログが記録されていない。ログ出力: %s", logOutput)
	}
}

func TestCleanupJob_Run_Idempotent_ZeroRows(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockSessionDeleter{deletedCount: 0}
	job := NewCleanupJob(mock, logger)

	// 1回目の実行
	err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("1回目の Run() がエラーを返した: %v", err)
	}

	// 2回目の実行（冪等性: 削除対象がなくてもエラーにならない）
	err = job.Run(context.Background())
	if err != nil {
		t.Fatalf("2回目の Run() がエラーを返した: %v", err)
	}
}

func TestCleanupJob_Run_LogsZeroDeletedCount(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockSessionDeleter{deletedCount: 0}
	job := NewCleanupJob(mock, logger)

	_ = job.Run(context.Background())

	// 0件削除でもログが出力されること
	var entry map[string]interface{}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	found := false
	for _, line := range lines {
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if count, ok := entry["deleted_count"]; ok {
			if count == float64(0) {
				found = true
				break
			}
		}
	}
	if !found {
		t.Errorf("0件削除時にもログに deleted_count=0 が記録されるべき。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Run_LogsExecutionTime(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockSessionDeleter{deletedCount: 3}
	job := NewCleanupJob(mock, logger)

	_ = job.Run(context.Background())

	// 処理時間がログに含まれること
	var entry map[string]interface{}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	found := false
	for _, line := range lines {
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if _, ok := entry["duration_ms"]; ok {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("ログに duration_ms が記録されていない。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Start_RunsImmediatelyThenStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockSessionDeleter{deletedCount: 1}
	job := NewCleanupJob(mock, logger)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		// 長いintervalにして、起動直後の1回だけが実行されるようにする
		job.Start(ctx, time.Hour)
		close(done)
	}()

	// 起動直後の1回が実行されるまで待つ
	deadline := time.After(2 * time.Second)
	for mock.callCount.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("起動直後の実行が行われなかった")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}

	cancel()

	select {
	case <-done:
		// Startがキャンセルで停止した
	case <-time.After(2 * time.Second):
		t.Fatal("コンテキストキャンセル後もStartが停止しなかった")
	}

	if mock.callCount.Load() != 1 {
		t.Errorf("DeleteExpired の呼び出し回数 = %d, want 1", mock.callCount.Load())
	}
}

func TestCleanupJob_Start_RunsPeriodically(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockSessionDeleter{deletedCount: 0}
	job := NewCleanupJob(mock, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		job.Start(ctx, 20*time.Millisecond)
		close(done)
	}()

	// 起動直後の1回 + ティッカーによる複数回の実行を待つ
	deadline := time.After(2 * time.Second)
	for mock.callCount.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("周期実行が行われなかった: callCount = %d", mock.callCount.Load())
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}

	cancel()
	<-done
}

func TestCleanupJob_Start_ContinuesAfterRunError(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockSessionDeleter{err: errors.New("store unavailable")}
	job := NewCleanupJob(mock, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		job.Start(ctx, 20*time.Millisecond)
		close(done)
	}()

	// エラーが発生しても周期実行が継続すること
	deadline := time.After(2 * time.Second)
	for mock.callCount.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("エラー後に周期実行が継続しなかった: callCount = %d", mock.callCount.Load())
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}

	cancel()
	<-done
}
