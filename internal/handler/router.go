package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/petitions/internal/metrics"
	"github.com/hitoshi/petitions/internal/middleware"
	"github.com/hitoshi/petitions/internal/web"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CSRFConfig        middleware.CSRFConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler
	HealthChecks      map[string]HealthChecker

	Renderer PageRenderer

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ペティション・署名
	PetitionService  PetitionServiceInterface
	SignatureService SignatureServiceInterface
	StoryRenderer    StoryRenderer
	ShareConfig      ShareHandlerConfig
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Recovery → Logging → Metrics → SecurityHeaders → CSRF → Identity
//
// /health と /metrics は画面用のミドルウェアチェーンの外に配置する。
// 未定義のパスはchiのデフォルト404のまま。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mc := deps.Metrics
	if mc == nil {
		mc = metrics.Nop{}
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(logger))

	r.Get("/health", NewHealthHandler(deps.HealthChecks, logger).ServeHTTP)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	landing := NewLandingHandler(deps.Renderer, logger)
	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, deps.Renderer, mc, logger)
	dashboard := NewDashboardHandler(deps.PetitionService, deps.Renderer, logger)
	create := NewCreateHandler(deps.PetitionService, deps.Renderer, logger)
	shareHandler := NewShareHandler(
		deps.PetitionService, deps.SignatureService, deps.StoryRenderer,
		deps.ShareConfig, deps.Renderer, logger,
	)
	api := NewPetitionAPIHandler(deps.PetitionService, logger)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewLoggingMiddleware(logger))
		r.Use(middleware.NewMetricsMiddleware(mc))

		// 読み取り専用のJSON API
		r.Route("/api", func(r chi.Router) {
			r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
			r.Get("/petitions/{id}", api.Get)
		})

		// 画面
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSecurityHeadersMiddleware())
			r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
			r.Use(middleware.NewIdentityMiddleware(deps.SessionFinder, logger))

			r.Get("/", landing.Show)
			r.Get("/sign-petition", landing.Gone)

			r.Route("/auth", func(r chi.Router) {
				r.With(deps.RateLimiter.AuthMiddleware(authHandler.RateLimited(web.AuthModeSignIn))).Post("/signin", authHandler.SignIn)
				r.With(deps.RateLimiter.AuthMiddleware(authHandler.RateLimited(web.AuthModeSignUp))).Post("/signup", authHandler.SignUp)
				r.Post("/signout", authHandler.SignOut)
			})

			// ログイン必須
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireIdentity)
				r.Get("/dashboard", dashboard.Show)
				r.Get("/create-petition", create.Form)
				r.Post("/create-petition", create.Submit)
			})

			r.Route("/share/{id}", func(r chi.Router) {
				r.Get("/", shareHandler.Show)
				r.With(deps.RateLimiter.SignMiddleware(shareHandler.SignRateLimited)).Post("/sign", shareHandler.Sign)
				r.Post("/copy-link", shareHandler.CopyLink)
			})
		})
	})

	return r
}
