package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/petitions/internal/middleware"
	"github.com/hitoshi/petitions/internal/model"
	"github.com/hitoshi/petitions/internal/petition"
)

// petitionResponse は公開用のペティション情報。作成者のIDは含めない。
type petitionResponse struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Story          string    `json:"story"`
	AssessedValue  float64   `json:"assessed_value"`
	SignatureCount int       `json:"signature_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// PetitionAPIHandler はペティションのJSON APIハンドラー。
// 共有ページが署名数の更新に使う。
type PetitionAPIHandler struct {
	petitions PetitionServiceInterface
	logger    *slog.Logger
}

// NewPetitionAPIHandler はPetitionAPIHandlerを生成する。
func NewPetitionAPIHandler(petitions PetitionServiceInterface, logger *slog.Logger) *PetitionAPIHandler {
	return &PetitionAPIHandler{petitions: petitions, logger: logger}
}

// Get はペティションをJSONで返す。
// GET /api/petitions/{id}
func (h *PetitionAPIHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.petitions.Get(r.Context(), id)
	if err != nil {
		if petition.IsNotFound(err) {
			middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewPetitionNotFoundError(id))
			return
		}
		h.logger.Error("failed to load petition",
			slog.String("petition_id", id),
			slog.String("error", err.Error()),
		)
		middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewBackendUnavailableError())
		return
	}

	writeJSON(w, http.StatusOK, petitionResponse{
		ID:             p.ID,
		Title:          p.Title,
		Story:          p.Story,
		AssessedValue:  p.AssessedValue,
		SignatureCount: p.SignatureCount,
		CreatedAt:      p.CreatedAt,
	})
}
