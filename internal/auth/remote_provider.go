package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hitoshi/petitions/internal/model"
	"github.com/hitoshi/petitions/internal/remote"
)

// RemoteAuthClient はホスト型バックエンドの認証APIのインターフェース。
type RemoteAuthClient interface {
	SignInWithPassword(ctx context.Context, email, password string) (*remote.AuthSession, error)
	SignUp(ctx context.Context, email, password string) (*remote.AuthSession, error)
	SignOut(ctx context.Context, accessToken string) error
}

// RemoteProvider はホスト型バックエンドの認証APIに委譲する認証プロバイダー。
type RemoteProvider struct {
	client RemoteAuthClient
	now    func() time.Time
}

// NewRemoteProvider はRemoteProviderを生成する。
func NewRemoteProvider(client RemoteAuthClient) *RemoteProvider {
	return &RemoteProvider{client: client, now: time.Now}
}

// SignIn はバックエンドでパスワード認証を行う。
func (p *RemoteProvider) SignIn(ctx context.Context, email, password string) (*Credentials, error) {
	session, err := p.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, mapRemoteAuthError(err)
	}
	return p.credentials(session), nil
}

// SignUp はバックエンドでアカウントを作成する。
// メール確認が必要な設定ではセッションが返らないため、確認を促すエラーを返す。
func (p *RemoteProvider) SignUp(ctx context.Context, email, password string) (*Credentials, error) {
	session, err := p.client.SignUp(ctx, email, password)
	if err != nil {
		return nil, mapRemoteAuthError(err)
	}
	if session.AccessToken == "" {
		return nil, model.NewAuthFailedError("Check your email to confirm your account, then sign in")
	}
	return p.credentials(session), nil
}

// SignOut はバックエンドのトークンを失効させる。
func (p *RemoteProvider) SignOut(ctx context.Context, accessToken string) error {
	if err := p.client.SignOut(ctx, accessToken); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (p *RemoteProvider) credentials(session *remote.AuthSession) *Credentials {
	return &Credentials{
		Identity:    model.Identity{ID: session.User.ID, Email: session.User.Email},
		AccessToken: session.AccessToken,
		ExpiresAt:   session.ExpiresAt(p.now()),
	}
}

// mapRemoteAuthError はバックエンドのエラーを利用者向けエラーに変換する。
// 5xxと通信エラーはラップしてそのまま返す。
func mapRemoteAuthError(err error) error {
	var remoteErr *remote.Error
	if !errors.As(err, &remoteErr) || remoteErr.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("auth backend request failed: %w", err)
	}

	switch remoteErr.Code {
	case "invalid_credentials", "invalid_grant":
		return model.NewInvalidCredentialsError()
	case "user_already_exists", "email_exists":
		return model.NewAccountExistsError()
	}
	return model.NewAuthFailedError(remoteErr.Message)
}

// compile-time interface checks
var (
	_ Provider         = (*RemoteProvider)(nil)
	_ RemoteAuthClient = (*remote.AuthClient)(nil)
)
