// Package petition はペティションの作成・一覧・取得のドメインロジックを提供する。
package petition

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/petitions/internal/metrics"
	"github.com/hitoshi/petitions/internal/model"
	"github.com/hitoshi/petitions/internal/repository"
)

// Input はペティション作成フォームの入力値。
// AssessedValueはフォームの文字列のまま受け取り、Validateで数値に変換する。
type Input struct {
	Title         string
	Story         string
	AssessedValue string
}

// Draft は検証済みのペティション作成内容。
type Draft struct {
	Title         string
	Story         string
	AssessedValue float64
}

// MaxTitleLength はタイトルの最大文字数（petitions.titleの列長）。
const MaxTitleLength = 500

// Validate はフォーム入力を検証する。
// 1. タイトル・ストーリー・評価額のいずれかが（前後の空白を除いて）空なら未入力エラー
// 2. タイトルがMaxTitleLength文字を超えれば文字数エラー
// 3. 評価額が有限の正の数でなければ評価額エラー
func Validate(in Input) (*Draft, error) {
	title := strings.TrimSpace(in.Title)
	story := strings.TrimSpace(in.Story)
	rawValue := strings.TrimSpace(in.AssessedValue)

	if title == "" || story == "" || rawValue == "" {
		return nil, model.NewMissingFieldsError()
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, model.NewFieldTooLongError("Title", MaxTitleLength)
	}

	value, err := strconv.ParseFloat(rawValue, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return nil, model.NewInvalidAssessedValueError()
	}

	return &Draft{Title: title, Story: story, AssessedValue: value}, nil
}

// Service はペティションのサービス層。
type Service struct {
	repo    repository.PetitionRepository
	metrics metrics.MetricsCollector
}

// NewService はServiceを生成する。
func NewService(repo repository.PetitionRepository, mc metrics.MetricsCollector) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{repo: repo, metrics: mc}
}

// Create は入力を検証してペティションを作成する。
// 検証エラーの場合はバックエンドを呼び出さない。
func (s *Service) Create(ctx context.Context, identity *model.Identity, in Input) (*model.Petition, error) {
	if identity == nil {
		return nil, model.NewUnauthorizedError()
	}

	draft, err := Validate(in)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, &model.Petition{
		UserID:        identity.ID,
		Title:         draft.Title,
		Story:         draft.Story,
		AssessedValue: draft.AssessedValue,
	})
	if err != nil {
		return nil, fmt.Errorf("ペティションの作成に失敗しました: %w", err)
	}

	slog.Info("petition created",
		slog.String("petition_id", created.ID),
		slog.String("user_id", identity.ID),
	)
	s.metrics.RecordPetitionCreated()
	return created, nil
}

// ListMine は利用者が作成したペティションを新しい順に返す。
// 1件もない場合は空スライスを返す。
func (s *Service) ListMine(ctx context.Context, identity *model.Identity) ([]*model.Petition, error) {
	if identity == nil {
		return nil, model.NewUnauthorizedError()
	}

	petitions, err := s.repo.ListByUserID(ctx, identity.ID)
	if err != nil {
		return nil, fmt.Errorf("ペティション一覧の取得に失敗しました: %w", err)
	}
	if petitions == nil {
		petitions = []*model.Petition{}
	}
	return petitions, nil
}

// Get は指定IDのペティションを返す。
// 存在しない場合はPETITION_NOT_FOUNDの*model.APIErrorを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Petition, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, model.NewPetitionNotFoundError(id)
	}

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ペティションの取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewPetitionNotFoundError(id)
	}
	return p, nil
}

// IsNotFound はエラーがペティション未検出を表すかどうかを判定する。
func IsNotFound(err error) bool {
	apiErr, ok := model.AsAPIError(err)
	return ok && apiErr.Code == model.ErrCodePetitionNotFound
}
