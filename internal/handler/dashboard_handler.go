package handler

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/petitions/internal/middleware"
	"github.com/hitoshi/petitions/internal/model"
	"github.com/hitoshi/petitions/internal/web"
)

// DashboardHandler は自分のペティション一覧画面のハンドラー。
type DashboardHandler struct {
	petitions PetitionServiceInterface
	renderer  PageRenderer
	logger    *slog.Logger
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(petitions PetitionServiceInterface, renderer PageRenderer, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{petitions: petitions, renderer: renderer, logger: logger}
}

// Show はログイン中の利用者のペティションを新しい順に表示する。
// GET /dashboard
// 取得に失敗した場合は空状態ではなくエラー状態を503で描画する。
func (h *DashboardHandler) Show(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	page := web.DashboardPage{Page: pageBase(r, "My Petitions")}

	petitions, err := h.petitions.ListMine(r.Context(), identity)
	if err != nil {
		h.logger.Error("failed to list petitions",
			slog.String("user_id", identity.ID),
			slog.String("error", err.Error()),
		)
		page.LoadError = model.NewBackendUnavailableError()
		renderPage(w, r, h.renderer, h.logger, http.StatusServiceUnavailable, web.PageDashboard, page)
		return
	}

	page.Petitions = petitions
	renderPage(w, r, h.renderer, h.logger, http.StatusOK, web.PageDashboard, page)
}
