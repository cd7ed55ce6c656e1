package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/petitions/internal/model"
	"github.com/hitoshi/petitions/internal/remote"
)

const (
	petitionsTable  = "petitions"
	signaturesTable = "signatures"
)

// RemotePetitionRepo はホスト型バックエンドのpetitionsテーブルを使用するリポジトリ。
// 行レベルのアクセス制御はバックエンド側で行われるため、
// 呼び出し側はremote.WithAccessTokenでトークンを渡す必要がある。
type RemotePetitionRepo struct {
	client *remote.Client
}

// NewRemotePetitionRepo はRemotePetitionRepoを生成する。
func NewRemotePetitionRepo(client *remote.Client) *RemotePetitionRepo {
	return &RemotePetitionRepo{client: client}
}

// petitionInsert はpetitionsテーブルへの挿入行。
// id・created_at・signature_countはバックエンドが設定する。
type petitionInsert struct {
	UserID        string  `json:"user_id"`
	Title         string  `json:"title"`
	Story         string  `json:"story"`
	AssessedValue float64 `json:"assessed_value"`
}

// Create はペティションを作成し、挿入された行を返す。
func (r *RemotePetitionRepo) Create(ctx context.Context, petition *model.Petition) (*model.Petition, error) {
	var created model.Petition
	err := r.client.From(petitionsTable).Insert(ctx, petitionInsert{
		UserID:        petition.UserID,
		Title:         petition.Title,
		Story:         petition.Story,
		AssessedValue: petition.AssessedValue,
	}, &created)
	if err != nil {
		return nil, fmt.Errorf("failed to insert petition: %w", err)
	}
	if created.ID == "" {
		return nil, errors.New("failed to insert petition: backend returned no row")
	}
	return &created, nil
}

// FindByID は指定IDのペティションを取得する。見つからない場合はnilを返す。
func (r *RemotePetitionRepo) FindByID(ctx context.Context, id string) (*model.Petition, error) {
	var petition model.Petition
	err := r.client.From(petitionsTable).Eq("id", id).Single(ctx, &petition)
	if errors.Is(err, remote.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find petition: %w", err)
	}
	return &petition, nil
}

// ListByUserID はユーザーのペティション一覧を作成日時の降順で返す。
func (r *RemotePetitionRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Petition, error) {
	petitions := []*model.Petition{}
	err := r.client.From(petitionsTable).
		Eq("user_id", userID).
		Order("created_at", false).
		Select(ctx, &petitions)
	if err != nil {
		return nil, fmt.Errorf("failed to list petitions: %w", err)
	}
	return petitions, nil
}

// compile-time interface check
var _ PetitionRepository = (*RemotePetitionRepo)(nil)
