package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/countdown/internal/cache"
	"github.com/hitoshi/countdown/internal/config"
	"github.com/hitoshi/countdown/internal/database"
	"github.com/hitoshi/countdown/internal/handler"
	"github.com/hitoshi/countdown/internal/logger"
	"github.com/hitoshi/countdown/internal/metrics"
	"github.com/hitoshi/countdown/internal/middleware"
	"github.com/hitoshi/countdown/internal/repository"
	"github.com/hitoshi/countdown/internal/timer"
	"github.com/hitoshi/countdown/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ったJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたレベルでロガーを差し替える
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。ログはlogWに、クライアントコマンドの表示はoutに書き出す。
func Run(logW, out io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		return runHealthcheck(config.ServerPort())
	}

	if cmd.IsClient() {
		var rest []string
		if len(args) > 0 {
			rest = args[1:]
		}
		return runClient(logW, out, cmd, rest)
	}

	cfg, err := Init(logW)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// store はタイマーストアへの接続とその上に構築したサービスをまとめる。
type store struct {
	db      *sql.DB
	redis   *redis.Client
	service *timer.Service
}

// Close は開いた接続をすべて閉じる。
func (s *store) Close() {
	if s.redis != nil {
		s.redis.Close()
	}
	s.db.Close()
}

// openStore はDATABASE_URLのドライバでDBに接続し、タイマーサービスを構築する。
// REDIS_URLが設定されている場合は一覧キャッシュを有効にする。
func openStore(cfg *config.Config, collector metrics.MetricsCollector) (*store, error) {
	driver, err := database.DriverFor(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established", slog.String("driver", string(driver)))

	repo, err := repository.NewTimerRepository(db, driver)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &store{db: db}

	var listCache timer.ListCache
	if cfg.RedisURL != "" {
		rdb, err := cache.NewClient(cfg.RedisURL)
		if err != nil {
			db.Close()
			return nil, err
		}
		s.redis = rdb
		listCache = cache.NewTimerCache(rdb, cfg.CacheTTL)
		slog.Info("timer list cache enabled", slog.Duration("ttl", cfg.CacheTTL))
	}

	s.service = timer.NewService(repo, listCache, collector, slog.Default())
	return s, nil
}

// newHandler はタイマーサービスとPrometheusレジストリからHTTPハンドラーを構築する。
func newHandler(cfg *config.Config, st *store, reg *prometheus.Registry, collector metrics.MetricsCollector, rl *middleware.RateLimiter) http.Handler {
	return handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rl,
		Metrics:           collector,
		TimerService:      st.service,
		HealthChecker:     st.db,
		MetricsHandler:    metrics.Handler(reg),
	})
}

// newRegistry はプロセス・ランタイムのメトリクスを含むレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	reg := newRegistry()
	collector := metrics.NewCollector(reg)

	st, err := openStore(cfg, collector)
	if err != nil {
		return err
	}
	defer st.Close()

	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitPerMinute))
	defer rateLimiter.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      newHandler(cfg, st, reg, collector, rateLimiter),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れタイマーのクリーンアップを起動直後とCLEANUP_INTERVALごとに実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	st, err := openStore(cfg, metrics.Nop{})
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	job := cleanup.NewCleanupJob(st.service, slog.Default())
	job.RetentionDays = cfg.ExpiredRetentionDays

	job.Start(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
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
// SQLiteのファイルパスは秘匿情報を含まないためそのまま返す。
func maskDatabaseURL(url string) string {
	if driver, err := database.DriverFor(url); err == nil && driver == database.DriverSQLite {
		return url
	}
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
