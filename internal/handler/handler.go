// Package handler はHTTPハンドラーを提供する。
// 各画面はサーバー側で状態を解決し、html/templateで描画する。
package handler

import (
	"context"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/hitoshi/petitions/internal/middleware"
	"github.com/hitoshi/petitions/internal/model"
	"github.com/hitoshi/petitions/internal/petition"
	"github.com/hitoshi/petitions/internal/signature"
	"github.com/hitoshi/petitions/internal/web"
)

// PageRenderer は画面描画のインターフェース。web.Rendererが満たす。
type PageRenderer interface {
	Render(w http.ResponseWriter, status int, page string, data any) error
}

// PetitionServiceInterface はペティション関連ハンドラーが必要とするサービスインターフェース。
type PetitionServiceInterface interface {
	Create(ctx context.Context, identity *model.Identity, in petition.Input) (*model.Petition, error)
	ListMine(ctx context.Context, identity *model.Identity) ([]*model.Petition, error)
	Get(ctx context.Context, id string) (*model.Petition, error)
}

// SignatureServiceInterface は署名ハンドラーが必要とするサービスインターフェース。
type SignatureServiceInterface interface {
	Sign(ctx context.Context, petitionID string, in signature.Input) (*model.Petition, error)
}

// StoryRenderer はストーリー本文を表示用HTMLに変換する。
type StoryRenderer interface {
	Render(story string) template.HTML
}

// pageBase はリクエストコンテキストから画面共通の値を組み立てる。
func pageBase(r *http.Request, title string) web.Page {
	return web.Page{
		Title:     title,
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
		Identity:  middleware.IdentityFromContext(r.Context()),
	}
}

// renderPage は画面を描画する。テンプレートの実行に失敗した場合はログに記録して500を返す。
func renderPage(w http.ResponseWriter, r *http.Request, renderer PageRenderer, logger *slog.Logger, status int, page string, data any) {
	if err := renderer.Render(w, status, page, data); err != nil {
		logger.Error("failed to render page",
			slog.String("page", page),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusForAPIError はエラーコードに応じたHTTPステータスを返す。
func statusForAPIError(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidCredentials, model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeAccountExists, model.ErrCodeDuplicateSignature:
		return http.StatusConflict
	case model.ErrCodePetitionNotFound:
		return http.StatusNotFound
	case model.ErrCodeBackendUnavailable:
		return http.StatusServiceUnavailable
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case model.ErrCodeMissingCredentials, model.ErrCodeWeakPassword:
		return http.StatusUnprocessableEntity
	}
	if apiErr.Category == model.CategoryValidation {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadRequest
}
