// Package signature はペティションへの署名のドメインロジックを提供する。
package signature

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/petitions/internal/metrics"
	"github.com/hitoshi/petitions/internal/model"
	"github.com/hitoshi/petitions/internal/repository"
)

// ErrRefreshFailed は署名は保存されたが、その後のペティション再取得に失敗したことを表す。
var ErrRefreshFailed = errors.New("signature recorded but petition refresh failed")

// Input は署名フォームの入力値。
type Input struct {
	FirstName string
	LastName  string
	Email     string
}

// 保存先の列の最大文字数。
const (
	MaxNameLength  = 255
	MaxEmailLength = 320
)

// Normalize は前後の空白を除去した入力を返す。
// メールアドレスは入力されたまま保存し、重複判定のときだけ大文字小文字を区別しない。
func (in Input) Normalize() Input {
	return Input{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     strings.TrimSpace(in.Email),
	}
}

// Validate は3項目すべてが入力され、保存できる長さに収まっていることを検証する。
func (in Input) Validate() error {
	n := in.Normalize()
	if n.FirstName == "" || n.LastName == "" || n.Email == "" {
		return model.NewMissingSignerFieldsError()
	}
	switch {
	case utf8.RuneCountInString(n.FirstName) > MaxNameLength:
		return model.NewFieldTooLongError("First name", MaxNameLength)
	case utf8.RuneCountInString(n.LastName) > MaxNameLength:
		return model.NewFieldTooLongError("Last name", MaxNameLength)
	case utf8.RuneCountInString(n.Email) > MaxEmailLength:
		return model.NewFieldTooLongError("Email", MaxEmailLength)
	}
	return nil
}

// Options は署名サービスの設定。
type Options struct {
	// RejectDuplicates がtrueの場合、同じペティションへの同じメールアドレスでの再署名を拒否する。
	RejectDuplicates bool
}

// Service は署名のサービス層。
type Service struct {
	petitions  repository.PetitionRepository
	signatures repository.SignatureRepository
	opts       Options
	metrics    metrics.MetricsCollector
}

// NewService はServiceを生成する。
func NewService(
	petitions repository.PetitionRepository,
	signatures repository.SignatureRepository,
	opts Options,
	mc metrics.MetricsCollector,
) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		petitions:  petitions,
		signatures: signatures,
		opts:       opts,
		metrics:    mc,
	}
}

// Sign は署名を保存し、署名数が更新されたペティションを返す。
// 署名数はバックエンドが加算するため、ここでは保存後に再取得するだけにする。
// 再取得に失敗した場合はErrRefreshFailedをラップして返す（署名自体は保存済み）。
func (s *Service) Sign(ctx context.Context, petitionID string, in Input) (*model.Petition, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	in = in.Normalize()

	if s.opts.RejectDuplicates {
		exists, err := s.signatures.ExistsByPetitionAndEmail(ctx, petitionID, in.Email)
		if err != nil {
			s.metrics.RecordSignature(metrics.SignatureFailed)
			return nil, fmt.Errorf("署名の重複確認に失敗しました: %w", err)
		}
		if exists {
			s.metrics.RecordSignature(metrics.SignatureDuplicate)
			return nil, model.NewDuplicateSignatureError()
		}
	}

	err := s.signatures.Create(ctx, &model.Signature{
		PetitionID: petitionID,
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		Email:      in.Email,
	})
	if err != nil {
		s.metrics.RecordSignature(metrics.SignatureFailed)
		return nil, fmt.Errorf("署名の保存に失敗しました: %w", err)
	}
	s.metrics.RecordSignature(metrics.SignatureAccepted)
	slog.Info("petition signed", slog.String("petition_id", petitionID))

	refreshed, err := s.petitions.FindByID(ctx, petitionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	if refreshed == nil {
		return nil, fmt.Errorf("%w: petition %s disappeared", ErrRefreshFailed, petitionID)
	}
	return refreshed, nil
}
