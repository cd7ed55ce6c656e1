package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/petitions/internal/model"
	"github.com/hitoshi/petitions/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// DefaultMinPasswordLength はローカル認証で受け付けるパスワードの最小文字数。
const DefaultMinPasswordLength = 6

// PasswordProvider はaccountsテーブルとbcryptによるローカル認証プロバイダー。
type PasswordProvider struct {
	accounts          repository.AccountRepository
	minPasswordLength int
	cost              int
}

// NewPasswordProvider はPasswordProviderを生成する。
func NewPasswordProvider(accounts repository.AccountRepository) *PasswordProvider {
	return &PasswordProvider{
		accounts:          accounts,
		minPasswordLength: DefaultMinPasswordLength,
		cost:              bcrypt.DefaultCost,
	}
}

// SignIn はメールアドレスとパスワードを照合する。
// アカウントが存在しない場合とパスワード不一致は区別せず同じエラーを返す。
func (p *PasswordProvider) SignIn(ctx context.Context, email, password string) (*Credentials, error) {
	account, err := p.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	return &Credentials{
		Identity: model.Identity{ID: account.ID, Email: account.Email},
	}, nil
}

// SignUp はアカウントを作成する。作成後はそのままサインイン済みとなる。
func (p *PasswordProvider) SignUp(ctx context.Context, email, password string) (*Credentials, error) {
	if len([]rune(password)) < p.minPasswordLength {
		return nil, model.NewWeakPasswordError(p.minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, model.NewAuthFailedError("Password is too long")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &model.Account{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(email),
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := p.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewAccountExistsError()
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return &Credentials{
		Identity: model.Identity{ID: account.ID, Email: account.Email},
	}, nil
}

// SignOut はローカル認証ではトークンを持たないため何もしない。
func (p *PasswordProvider) SignOut(_ context.Context, _ string) error {
	return nil
}

// compile-time interface check
var _ Provider = (*PasswordProvider)(nil)
