package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/net/netutil"
	"golang.org/x/time/rate"

	"github.com/hitoshi/dripman/internal/auth"
	"github.com/hitoshi/dripman/internal/config"
	"github.com/hitoshi/dripman/internal/connection"
	"github.com/hitoshi/dripman/internal/database"
	"github.com/hitoshi/dripman/internal/feed"
	"github.com/hitoshi/dripman/internal/handler"
	"github.com/hitoshi/dripman/internal/logger"
	"github.com/hitoshi/dripman/internal/metrics"
	"github.com/hitoshi/dripman/internal/middleware"
	"github.com/hitoshi/dripman/internal/repository"
	"github.com/hitoshi/dripman/internal/security"
	"github.com/hitoshi/dripman/internal/stats"
	"github.com/hitoshi/dripman/internal/user"
	"github.com/hitoshi/dripman/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. ストアの初期化
	// DATABASE_URLが設定されていればPostgreSQL、未設定ならインメモリストアで起動する。
	var (
		userRepo    repository.UserRepository
		sessionRepo repository.SessionRepository
		connRepo    repository.ConnectionRepository
		feedRepo    repository.FeedRepository

		healthChecker handler.HealthChecker
	)

	if cfg.DatabaseURL != "" {
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if err := db.Ping(); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}

		slog.Info("database connection established")

		userRepo = repository.NewPostgresUserRepo(db)
		sessionRepo = repository.NewPostgresSessionRepo(db)
		connRepo = repository.NewPostgresConnectionRepo(db)
		feedRepo = repository.NewPostgresFeedRepo(db)
		healthChecker = db
	} else {
		slog.Info("DATABASE_URL not set, using in-memory store")

		mem := repository.NewMemoryDB()
		userRepo = mem.Users()
		sessionRepo = mem.Sessions()
		connRepo = mem.Connections()
		feedRepo = mem.Feeds()
	}

	// 2. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewNameSanitizer()

	// 3. 接続チェッカーの初期化
	// simulateモードは固定遅延の擬似判定、probeモードは実際にHTTPで疎通確認する。
	var checker connection.Checker
	if cfg.ConnectionTestMode == config.ConnectionTestModeProbe {
		checker = connection.NewProbeChecker(ssrfGuard, cfg.ConnectionTestTimeout)
	} else {
		checker = connection.NewSimulatedChecker(cfg.ConnectionTestDelay)
	}

	// 4. ドメインサービスの初期化
	authService := auth.NewService(userRepo, sessionRepo, auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
		BcryptCost:    cfg.BcryptCost,
	})
	connService := connection.NewService(connRepo, ssrfGuard, sanitizer, checker)
	feedService := feed.NewService(feedRepo, connRepo, sanitizer)
	statsService := stats.NewService(feedRepo, connRepo)
	userService := user.NewService(userRepo, sessionRepo, connRepo)

	// 5. メトリクスの初期化
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	// 6. レートリミッターの構築（configはreq/min単位なのでreq/secに変換する）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.ConnTestRate = rate.Limit(float64(cfg.RateLimitConnTest) / 60.0)
	rateLimiterCfg.ConnTestBurst = cfg.RateLimitConnTest
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 7. ルーターの構築
	deps := &handler.RouterDeps{
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter: rateLimiter,

		HealthChecker:   healthChecker,
		MetricsHandler:  metrics.Handler(reg),
		MetricsRecorder: collector,

		AuthService: handler.NewAuthServiceAdapter(authService),
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		ConnectionService: handler.NewConnectionServiceAdapter(connService, collector),
		FeedService:       handler.NewFeedServiceAdapter(feedService, collector),
		StatsService:      handler.NewStatsServiceAdapter(statsService),
		UserService:       handler.NewUserServiceAdapter(userService),
	}

	router := handler.NewRouter(deps)

	// 8. セッションクリーンアップジョブの起動
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cleanupJob := cleanup.NewCleanupJob(sessionRepo, slog.Default())
	go cleanupJob.Start(ctx, cfg.SessionCleanupInterval)

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", server.Addr, err)
	}
	// 同時接続数を制限する
	ln = netutil.LimitListener(ln, cfg.MaxConcurrentConns)

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.Int("max_concurrent_conns", cfg.MaxConcurrentConns),
		)
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	// クリーンアップジョブを停止してからHTTPサーバーを閉じる
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for migrate")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
