package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/petitions/internal/auth"
	"github.com/hitoshi/petitions/internal/config"
	"github.com/hitoshi/petitions/internal/database"
	"github.com/hitoshi/petitions/internal/handler"
	"github.com/hitoshi/petitions/internal/metrics"
	"github.com/hitoshi/petitions/internal/remote"
	"github.com/hitoshi/petitions/internal/repository"
)

// pingFunc は関数をhandler.HealthCheckerとして扱うアダプタ。
type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// stores は設定に応じて選択した永続化先と認証プロバイダーをまとめたもの。
type stores struct {
	db         *sql.DB
	petitions  repository.PetitionRepository
	signatures repository.SignatureRepository
	sessions   repository.SessionRepository
	provider   auth.Provider

	healthChecks map[string]handler.HealthChecker
	closers      []func() error
}

// openStores はBACKENDとSESSION_STOREの組み合わせから依存先を組み立てる。
// 失敗した場合はそれまでに開いた接続を閉じてからエラーを返す。
func openStores(ctx context.Context, cfg *config.Config, mc metrics.MetricsCollector) (*stores, error) {
	if mc == nil {
		mc = metrics.Nop{}
	}
	s := &stores{healthChecks: make(map[string]handler.HealthChecker)}

	if cfg.NeedsDatabase() {
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established")

		s.db = db
		s.closers = append(s.closers, db.Close)
		s.healthChecks["database"] = db
	}

	switch cfg.Backend {
	case config.BackendSupabase:
		client := remote.NewClient(
			&http.Client{Timeout: cfg.RemoteTimeout},
			slog.Default(),
			cfg.SupabaseURL, cfg.SupabaseAnonKey,
		)
		client.SetObserver(mc.RecordRemoteRequest)

		s.petitions = repository.NewRemotePetitionRepo(client)
		s.signatures = repository.NewRemoteSignatureRepo(client)
		s.provider = auth.NewRemoteProvider(client.Auth())
	default:
		s.petitions = repository.NewPostgresPetitionRepo(s.db)
		s.signatures = repository.NewPostgresSignatureRepo(s.db)
		s.provider = auth.NewPasswordProvider(repository.NewPostgresAccountRepo(s.db))
	}

	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		redisRepo, err := repository.NewRedisSessionRepo(ctx, cfg.RedisURL)
		if err != nil {
			s.Close()
			return nil, err
		}
		slog.Info("redis connection established")

		s.sessions = redisRepo
		s.closers = append(s.closers, redisRepo.Close)
		s.healthChecks["redis"] = pingFunc(redisRepo.Ping)
	default:
		s.sessions = repository.NewPostgresSessionRepo(s.db)
	}

	slog.Info("stores configured",
		slog.String("backend", string(cfg.Backend)),
		slog.String("session_store", string(cfg.SessionStore)),
	)
	return s, nil
}

// Close は開いた接続を逆順に閉じる。
func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			slog.Warn("failed to close connection", slog.String("error", err.Error()))
		}
	}
	s.closers = nil
}
