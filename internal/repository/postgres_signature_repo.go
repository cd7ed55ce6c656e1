package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/petitions/internal/model"
)

// PostgresSignatureRepo はPostgreSQLを使用した署名リポジトリ。
// petitions.signature_countはsignaturesへのINSERTトリガーで加算される。
type PostgresSignatureRepo struct {
	db *sql.DB
}

// NewPostgresSignatureRepo はPostgresSignatureRepoを生成する。
func NewPostgresSignatureRepo(db *sql.DB) *PostgresSignatureRepo {
	return &PostgresSignatureRepo{db: db}
}

// Create は署名を作成する。
func (r *PostgresSignatureRepo) Create(ctx context.Context, signature *model.Signature) error {
	if signature.ID == "" {
		signature.ID = uuid.New().String()
	}
	if signature.CreatedAt.IsZero() {
		signature.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO signatures (id, petition_id, first_name, last_name, email, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		signature.ID, signature.PetitionID, signature.FirstName, signature.LastName, signature.Email, signature.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert signature: %w", err)
	}
	return nil
}

// ExistsByPetitionAndEmail は指定ペティションに同じメールアドレスの署名が存在するかを返す。
// メールアドレスの大文字小文字は区別しない。
func (r *PostgresSignatureRepo) ExistsByPetitionAndEmail(ctx context.Context, petitionID, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM signatures WHERE petition_id = $1 AND lower(email) = $2
		 )`,
		petitionID, strings.ToLower(email),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check signature: %w", err)
	}
	return exists, nil
}

// compile-time interface check
var _ SignatureRepository = (*PostgresSignatureRepo)(nil)
