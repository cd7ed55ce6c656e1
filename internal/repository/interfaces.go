// Package repository はデータ永続化のインターフェースと実装を提供する。
// 実装はPostgreSQL直結、ホスト型バックエンド（remote）、Redis（セッションのみ）の3種類。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/petitions/internal/model"
)

// ErrDuplicateEmail はメールアドレスが登録済みの場合に返される。
var ErrDuplicateEmail = errors.New("email already registered")

// PetitionRepository はペティションの永続化インターフェース。
type PetitionRepository interface {
	// Create はペティションを作成し、バックエンドが採番したID・作成日時・署名数を含む行を返す。
	Create(ctx context.Context, petition *model.Petition) (*model.Petition, error)

	// FindByID は指定IDのペティションを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Petition, error)

	// ListByUserID はユーザーのペティション一覧を作成日時の降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Petition, error)
}

// SignatureRepository は署名の永続化インターフェース。
// 署名数の集計はバックエンド側で行われる。
type SignatureRepository interface {
	// Create は署名を作成する。
	Create(ctx context.Context, signature *model.Signature) error

	// ExistsByPetitionAndEmail は指定ペティションに同じメールアドレスの署名が存在するかを返す。
	ExistsByPetitionAndEmail(ctx context.Context, petitionID, email string) (bool, error)
}

// AccountRepository はパスワード認証アカウントの永続化インターフェース。
// セルフホスト構成でのみ使用する。
type AccountRepository interface {
	// FindByEmail はメールアドレスでアカウントを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// Create はアカウントを作成する。登録済みの場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, account *model.Account) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}
