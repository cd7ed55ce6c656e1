package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/petitions/internal/model"
	"github.com/hitoshi/petitions/internal/remote"
)

// RemoteSignatureRepo はホスト型バックエンドのsignaturesテーブルを使用するリポジトリ。
type RemoteSignatureRepo struct {
	client *remote.Client
}

// NewRemoteSignatureRepo はRemoteSignatureRepoを生成する。
func NewRemoteSignatureRepo(client *remote.Client) *RemoteSignatureRepo {
	return &RemoteSignatureRepo{client: client}
}

type signatureInsert struct {
	PetitionID string `json:"petition_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
}

// Create は署名を作成する。署名数の更新はバックエンドのトリガーに任せる。
func (r *RemoteSignatureRepo) Create(ctx context.Context, signature *model.Signature) error {
	err := r.client.From(signaturesTable).Insert(ctx, signatureInsert{
		PetitionID: signature.PetitionID,
		FirstName:  signature.FirstName,
		LastName:   signature.LastName,
		Email:      signature.Email,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to insert signature: %w", err)
	}
	return nil
}

// ExistsByPetitionAndEmail は指定ペティションに同じメールアドレスの署名が存在するかを返す。
// メールアドレスは入力されたまま保存されているため、大文字小文字を区別せずに比較する。
func (r *RemoteSignatureRepo) ExistsByPetitionAndEmail(ctx context.Context, petitionID, email string) (bool, error) {
	var found []model.Signature
	err := r.client.From(signaturesTable).
		Eq("petition_id", petitionID).
		ILikeExact("email", email).
		Limit(1).
		Select(ctx, &found)
	if err != nil {
		return false, fmt.Errorf("failed to check signature: %w", err)
	}
	return len(found) > 0, nil
}

// compile-time interface check
var _ SignatureRepository = (*RemoteSignatureRepo)(nil)
