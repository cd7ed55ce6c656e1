package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hitoshi/petitions/internal/model"
)

const petitionColumns = `id, user_id, title, story, assessed_value, signature_count, created_at`

// PostgresPetitionRepo はPostgreSQLを使用したペティションリポジトリ。
type PostgresPetitionRepo struct {
	db *sql.DB
}

// NewPostgresPetitionRepo はPostgresPetitionRepoを生成する。
func NewPostgresPetitionRepo(db *sql.DB) *PostgresPetitionRepo {
	return &PostgresPetitionRepo{db: db}
}

// Create はペティションを作成する。
// IDはここで採番し、created_atとsignature_countはDBのデフォルト値に任せる。
func (r *PostgresPetitionRepo) Create(ctx context.Context, petition *model.Petition) (*model.Petition, error) {
	created := &model.Petition{}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO petitions (id, user_id, title, story, assessed_value)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+petitionColumns,
		uuid.New().String(), petition.UserID, petition.Title, petition.Story, petition.AssessedValue,
	).Scan(scanPetitionDest(created)...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert petition: %w", err)
	}
	return created, nil
}

// FindByID は指定IDのペティションを取得する。見つからない場合はnilを返す。
// UUIDとして不正なIDも「見つからない」として扱う。
func (r *PostgresPetitionRepo) FindByID(ctx context.Context, id string) (*model.Petition, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	petition := &model.Petition{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+petitionColumns+` FROM petitions WHERE id = $1`,
		id,
	).Scan(scanPetitionDest(petition)...)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find petition: %w", err)
	}
	return petition, nil
}

// ListByUserID はユーザーのペティション一覧を作成日時の降順で返す。
func (r *PostgresPetitionRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Petition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+petitionColumns+`
		 FROM petitions
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list petitions: %w", err)
	}
	defer rows.Close()

	petitions := []*model.Petition{}
	for rows.Next() {
		p := &model.Petition{}
		if err := rows.Scan(scanPetitionDest(p)...); err != nil {
			return nil, fmt.Errorf("failed to scan petition: %w", err)
		}
		petitions = append(petitions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate petitions: %w", err)
	}
	return petitions, nil
}

// scanPetitionDest はpetitionColumnsの並びに対応するScan先を返す。
func scanPetitionDest(p *model.Petition) []any {
	return []any{&p.ID, &p.UserID, &p.Title, &p.Story, &p.AssessedValue, &p.SignatureCount, &p.CreatedAt}
}

// compile-time interface check
var _ PetitionRepository = (*PostgresPetitionRepo)(nil)
