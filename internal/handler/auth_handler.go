package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/petitions/internal/metrics"
	"github.com/hitoshi/petitions/internal/middleware"
	"github.com/hitoshi/petitions/internal/model"
	"github.com/hitoshi/petitions/internal/web"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignIn(ctx context.Context, email, password string) (*model.Session, error)
	SignUp(ctx context.Context, email, password string) (*model.Session, error)
	SignOut(ctx context.Context, sessionID string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間の上限（秒）
}

// AuthHandler はサインイン・サインアップ・サインアウトのHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	config   AuthHandlerConfig
	renderer PageRenderer
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
	now      func() time.Time
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(
	service AuthServiceInterface,
	config AuthHandlerConfig,
	renderer PageRenderer,
	mc metrics.MetricsCollector,
	logger *slog.Logger,
) *AuthHandler {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &AuthHandler{
		service:  service,
		config:   config,
		renderer: renderer,
		metrics:  mc,
		logger:   logger,
		now:      time.Now,
	}
}

// SignIn はメールアドレスとパスワードでサインインする。
// POST /auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, web.AuthModeSignIn, h.service.SignIn)
}

// SignUp はアカウントを作成してサインインする。
// POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, web.AuthModeSignUp, h.service.SignUp)
}

func (h *AuthHandler) authenticate(
	w http.ResponseWriter,
	r *http.Request,
	mode string,
	fn func(ctx context.Context, email, password string) (*model.Session, error),
) {
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")

	session, err := fn(r.Context(), email, password)
	if err != nil {
		apiErr, ok := model.AsAPIError(err)
		if !ok {
			h.logger.Error("authentication failed unexpectedly",
				slog.String("mode", mode),
				slog.String("error", err.Error()),
			)
			apiErr = model.NewBackendUnavailableError()
		}
		h.renderAuthError(w, r, mode, email, apiErr)
		return
	}

	h.setSessionCookie(w, session)
	http.Redirect(w, r, "/create-petition", http.StatusSeeOther)
}

// RateLimited はレート制限で拒否したフォーム送信に、モーダルを開いたままのトップページを返す。
func (h *AuthHandler) RateLimited(mode string) middleware.RejectFunc {
	return func(w http.ResponseWriter, r *http.Request, apiErr *model.APIError) {
		h.renderAuthError(w, r, mode, strings.TrimSpace(r.PostFormValue("email")), apiErr)
	}
}

// renderAuthError はモーダルを開いたままエラーを表示する。パスワードは再表示しない。
func (h *AuthHandler) renderAuthError(w http.ResponseWriter, r *http.Request, mode, email string, apiErr *model.APIError) {
	h.metrics.RecordAuthFailure(apiErr.Code)
	page := web.LandingPage{
		Page:      pageBase(r, ""),
		AuthMode:  mode,
		AuthError: apiErr,
		Email:     email,
	}
	renderPage(w, r, h.renderer, h.logger, statusForAPIError(apiErr), web.PageLanding, page)
}

// SignOut はセッションを破棄してトップページへ戻る。
// POST /auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if err := h.service.SignOut(r.Context(), cookie.Value); err != nil {
			// サインアウトに失敗してもCookieはクリアする
			h.logger.Error("failed to sign out", slog.String("error", err.Error()))
		}
	}

	h.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// setSessionCookie はセッションCookie（HTTP Only）を設定する。
// 有効期間はセッションの失効時刻と設定上限の短い方。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, session *model.Session) {
	maxAge := h.config.SessionMaxAge
	if !session.ExpiresAt.IsZero() {
		if remaining := int(session.ExpiresAt.Sub(h.now()) / time.Second); remaining < maxAge || maxAge <= 0 {
			maxAge = remaining
		}
	}
	if maxAge < 1 {
		maxAge = 1
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
