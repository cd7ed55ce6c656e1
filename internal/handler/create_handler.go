package handler

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/petitions/internal/middleware"
	"github.com/hitoshi/petitions/internal/model"
	"github.com/hitoshi/petitions/internal/petition"
	"github.com/hitoshi/petitions/internal/web"
)

const createPageTitle = "Create Timeshare Petition"

// CreateHandler はペティション作成画面のハンドラー。
type CreateHandler struct {
	petitions PetitionServiceInterface
	renderer  PageRenderer
	logger    *slog.Logger
}

// NewCreateHandler はCreateHandlerを生成する。
func NewCreateHandler(petitions PetitionServiceInterface, renderer PageRenderer, logger *slog.Logger) *CreateHandler {
	return &CreateHandler{petitions: petitions, renderer: renderer, logger: logger}
}

// Form は空の作成フォームを表示する。
// GET /create-petition
func (h *CreateHandler) Form(w http.ResponseWriter, r *http.Request) {
	if middleware.IdentityFromContext(r.Context()) == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	renderPage(w, r, h.renderer, h.logger, http.StatusOK, web.PageCreate, web.CreatePage{Page: pageBase(r, createPageTitle)})
}

// Submit はペティションを作成し、共有ページへリダイレクトする。
// POST /create-petition
// 入力エラーはバックエンドを呼ばずに入力値を保持したままフォームを再表示する。
func (h *CreateHandler) Submit(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	form := web.PetitionForm{
		Title:         r.PostFormValue("title"),
		Story:         r.PostFormValue("story"),
		AssessedValue: r.PostFormValue("assessed_value"),
	}

	created, err := h.petitions.Create(r.Context(), identity, petition.Input{
		Title:         form.Title,
		Story:         form.Story,
		AssessedValue: form.AssessedValue,
	})
	if err != nil {
		apiErr, ok := model.AsAPIError(err)
		if ok && apiErr.Code == model.ErrCodeUnauthorized {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		if !ok {
			h.logger.Error("failed to create petition",
				slog.String("user_id", identity.ID),
				slog.String("error", err.Error()),
			)
			apiErr = model.NewBackendUnavailableError()
		}

		page := web.CreatePage{Page: pageBase(r, createPageTitle), Form: form, Error: apiErr}
		renderPage(w, r, h.renderer, h.logger, statusForAPIError(apiErr), web.PageCreate, page)
		return
	}

	http.Redirect(w, r, "/share/"+url.PathEscape(created.ID), http.StatusSeeOther)
}
