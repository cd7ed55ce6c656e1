package handler

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/petitions/internal/web"
)

// LandingHandler はトップページのハンドラー。
type LandingHandler struct {
	renderer PageRenderer
	logger   *slog.Logger
}

// NewLandingHandler はLandingHandlerを生成する。
func NewLandingHandler(renderer PageRenderer, logger *slog.Logger) *LandingHandler {
	return &LandingHandler{renderer: renderer, logger: logger}
}

// Show はトップページを描画する。
// GET /
// 未ログインで ?auth=signin または ?auth=signup が指定された場合は認証モーダルを開く。
func (h *LandingHandler) Show(w http.ResponseWriter, r *http.Request) {
	page := web.LandingPage{Page: pageBase(r, "")}
	if !page.SignedIn() {
		switch mode := r.URL.Query().Get("auth"); mode {
		case web.AuthModeSignIn, web.AuthModeSignUp:
			page.AuthMode = mode
		}
	}
	renderPage(w, r, h.renderer, h.logger, http.StatusOK, web.PageLanding, page)
}

// Gone は廃止済みの署名ルートに410を返す。
// GET /sign-petition
func (h *LandingHandler) Gone(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, h.renderer, h.logger, http.StatusGone, web.PageGone, web.GonePage{Page: pageBase(r, "Sign the Petition")})
}
