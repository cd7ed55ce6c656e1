package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/petitions/internal/auth"
	"github.com/hitoshi/petitions/internal/config"
	"github.com/hitoshi/petitions/internal/database"
	"github.com/hitoshi/petitions/internal/handler"
	"github.com/hitoshi/petitions/internal/logger"
	"github.com/hitoshi/petitions/internal/metrics"
	"github.com/hitoshi/petitions/internal/middleware"
	"github.com/hitoshi/petitions/internal/petition"
	"github.com/hitoshi/petitions/internal/security"
	"github.com/hitoshi/petitions/internal/share"
	"github.com/hitoshi/petitions/internal/signature"
	"github.com/hitoshi/petitions/internal/web"
	"github.com/hitoshi/petitions/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

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
	cmd, known := ParseCommand(args)

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

	if !known {
		slog.Warn("unknown subcommand, falling back to serve", slog.String("arg", args[0]))
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("backend", string(cfg.Backend)),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// newServer は依存関係をワイヤリングしてHTTPハンドラーを構築する。
// 返却されるcleanup関数で接続とレートリミッタを解放する。
func newServer(ctx context.Context, cfg *config.Config) (http.Handler, func(), error) {
	// 1. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 2. 永続化先と認証プロバイダー
	st, err := openStores(ctx, cfg, collector)
	if err != nil {
		return nil, nil, err
	}

	// 3. ドメインサービス
	authService := auth.NewService(st.provider, st.sessions, auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
	})
	authService.Subscribe(func(ev auth.Event) {
		collector.RecordAuthEvent(string(ev.Type))
		slog.Info("auth state changed",
			slog.String("event", string(ev.Type)),
			slog.String("user_id", ev.Identity.ID),
			slog.Time("at", ev.At),
		)
	})

	petitionService := petition.NewService(st.petitions, collector)
	signatureService := signature.NewService(st.petitions, st.signatures, signature.Options{
		RejectDuplicates: cfg.DuplicateSignatures == config.DuplicateReject,
	}, collector)

	// 4. 画面
	renderer, err := web.NewRenderer()
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	// 5. ルーター
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitAuth, cfg.RateLimitSign),
	)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		SessionFinder:     authService,
		CSRFConfig:        middleware.CSRFConfig{CookieSecure: cfg.CookieSecure, CookieDomain: cfg.CookieDomain},
		CORSAllowedOrigin: cfg.BaseURL,
		RateLimiter:       rateLimiter,
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(registry),
		HealthChecks:      st.healthChecks,
		Renderer:          renderer,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		PetitionService:  petitionService,
		SignatureService: signatureService,
		StoryRenderer:    security.NewStoryRenderer(),
		ShareConfig: handler.ShareHandlerConfig{
			BaseURL: cfg.BaseURL,
			Notices: share.Notices{
				Duration: cfg.CopyNoticeDuration,
				Secure:   cfg.CookieSecure,
			},
		},
	})

	release := func() {
		rateLimiter.Stop()
		st.Close()
	}
	return router, release, nil
}

// runServe はWebサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	router, release, err := newServer(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer release()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("web server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down web server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションのクリーンアップを起動直後と一定間隔で実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	if cfg.SessionStore != config.SessionStorePostgres {
		slog.Info("session store expires entries by itself; worker has nothing to do",
			slog.String("session_store", string(cfg.SessionStore)),
		)
		return nil
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	registry := prometheus.NewRegistry()
	cleanupJob := cleanup.NewCleanupJob(db, slog.Default(), metrics.NewCollector(registry))

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.SessionCleanupInterval),
	)

	runCleanupLoop(ctx, cleanupJob, cfg.SessionCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// job はrunCleanupLoopで定期実行するジョブ。
type job interface {
	Run(ctx context.Context) error
}

// runCleanupLoop は起動直後に1回、以降はintervalごとにジョブを実行する。
// ctxがキャンセルされるまでブロックする。ジョブの失敗はログに残して次回に持ち越す。
func runCleanupLoop(ctx context.Context, j job, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		slog.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				slog.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("migrate requires DATABASE_URL")
	}

	latest, err := database.LatestVersion()
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.Uint64("target_version", uint64(latest)),
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
