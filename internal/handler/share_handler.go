package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/petitions/internal/model"
	"github.com/hitoshi/petitions/internal/petition"
	"github.com/hitoshi/petitions/internal/share"
	"github.com/hitoshi/petitions/internal/signature"
	"github.com/hitoshi/petitions/internal/web"
)

// ShareHandlerConfig は共有ページの設定。
type ShareHandlerConfig struct {
	BaseURL string
	Notices share.Notices
}

// ShareHandler は共有・署名画面のハンドラー。
type ShareHandler struct {
	petitions  PetitionServiceInterface
	signatures SignatureServiceInterface
	stories    StoryRenderer
	config     ShareHandlerConfig
	renderer   PageRenderer
	logger     *slog.Logger
}

// NewShareHandler はShareHandlerを生成する。
func NewShareHandler(
	petitions PetitionServiceInterface,
	signatures SignatureServiceInterface,
	stories StoryRenderer,
	config ShareHandlerConfig,
	renderer PageRenderer,
	logger *slog.Logger,
) *ShareHandler {
	return &ShareHandler{
		petitions:  petitions,
		signatures: signatures,
		stories:    stories,
		config:     config,
		renderer:   renderer,
		logger:     logger,
	}
}

// Show は共有ページを表示する。
// GET /share/{id}
func (h *ShareHandler) Show(w http.ResponseWriter, r *http.Request) {
	page, status := h.load(r)
	if page.IsLoaded() && h.config.Notices.Consume(w, r, page.Petition.ID) {
		page.CopyNotice = true
		page.CopyNoticeMessage = share.CopyNoticeMessage
		page.CopyNoticeMillis = h.config.Notices.DismissAfterMillis()
	}
	renderPage(w, r, h.renderer, h.logger, status, web.PageShare, page)
}

// Sign は署名を受け付け、再取得した署名数で共有ページを表示する。
// POST /share/{id}/sign
func (h *ShareHandler) Sign(w http.ResponseWriter, r *http.Request) {
	page, status := h.load(r)
	if !page.IsLoaded() {
		renderPage(w, r, h.renderer, h.logger, status, web.PageShare, page)
		return
	}

	signer := web.SignerForm{
		FirstName: r.PostFormValue("first_name"),
		LastName:  r.PostFormValue("last_name"),
		Email:     r.PostFormValue("email"),
	}

	refreshed, err := h.signatures.Sign(r.Context(), page.Petition.ID, signature.Input{
		FirstName: signer.FirstName,
		LastName:  signer.LastName,
		Email:     signer.Email,
	})
	switch {
	case err == nil:
		h.setPetition(&page, refreshed)
		page.Signed = true
		renderPage(w, r, h.renderer, h.logger, http.StatusOK, web.PageShare, page)

	case errors.Is(err, signature.ErrRefreshFailed):
		// 署名は保存済み。署名数は古いままお礼を表示する。
		h.logger.Warn("signature recorded but refresh failed",
			slog.String("petition_id", page.Petition.ID),
			slog.String("error", err.Error()),
		)
		page.Signed = true
		renderPage(w, r, h.renderer, h.logger, http.StatusOK, web.PageShare, page)

	default:
		apiErr, ok := model.AsAPIError(err)
		if !ok {
			h.logger.Error("failed to sign petition",
				slog.String("petition_id", page.Petition.ID),
				slog.String("error", err.Error()),
			)
			apiErr = model.NewBackendUnavailableError()
		}
		page.Signer = signer
		page.SignError = apiErr
		renderPage(w, r, h.renderer, h.logger, statusForAPIError(apiErr), web.PageShare, page)
	}
}

// SignRateLimited はレート制限で拒否した署名に、入力を残した共有ページを返す。
func (h *ShareHandler) SignRateLimited(w http.ResponseWriter, r *http.Request, apiErr *model.APIError) {
	page, status := h.load(r)
	if page.IsLoaded() {
		page.Signer = web.SignerForm{
			FirstName: r.PostFormValue("first_name"),
			LastName:  r.PostFormValue("last_name"),
			Email:     r.PostFormValue("email"),
		}
		page.SignError = apiErr
		status = statusForAPIError(apiErr)
	}
	renderPage(w, r, h.renderer, h.logger, status, web.PageShare, page)
}

// CopyLink はリンクコピー通知を有効にして共有ページへ戻る。
// POST /share/{id}/copy-link
// 何度実行しても通知が再表示されるだけで副作用はない。
func (h *ShareHandler) CopyLink(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.config.Notices.Arm(w, id)
	http.Redirect(w, r, "/share/"+url.PathEscape(id), http.StatusSeeOther)
}

// load はURLのIDでペティションを取得し、画面の状態と応答ステータスを決める。
func (h *ShareHandler) load(r *http.Request) (web.SharePage, int) {
	page := web.SharePage{Page: pageBase(r, ""), State: web.ShareLoading}
	id := chi.URLParam(r, "id")

	p, err := h.petitions.Get(r.Context(), id)
	switch {
	case err == nil:
		h.setPetition(&page, p)
		return page, http.StatusOK
	case petition.IsNotFound(err):
		page.State = web.ShareNotFound
		page.Title = "Petition not found"
		return page, http.StatusNotFound
	default:
		h.logger.Error("failed to load petition",
			slog.String("petition_id", id),
			slog.String("error", err.Error()),
		)
		page.State = web.ShareError
		page.LoadError = model.NewBackendUnavailableError()
		return page, http.StatusServiceUnavailable
	}
}

func (h *ShareHandler) setPetition(page *web.SharePage, p *model.Petition) {
	page.State = web.ShareLoaded
	page.Petition = p
	page.Title = p.Title
	page.Story = h.stories.Render(p.Story)
	page.PageURL = share.PageURL(h.config.BaseURL, p.ID)
	page.Links = share.Links(page.PageURL, p.Title)
}
