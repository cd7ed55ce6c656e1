// Package auth はメールアドレス/パスワード認証とブラウザセッションの管理を提供する。
package auth

import (
	"context"
	"time"

	"github.com/hitoshi/petitions/internal/model"
)

// Credentials は認証プロバイダーがサインイン・サインアップ成功時に返す情報。
type Credentials struct {
	Identity model.Identity
	// AccessToken はホスト型バックエンドのトークン。ローカル認証では空。
	AccessToken string
	// ExpiresAt はAccessTokenの有効期限。ゼロ値の場合はセッション有効期間のみで管理する。
	ExpiresAt time.Time
}

// Provider は認証プロバイダーのインターフェース。
// 利用者に表示すべき失敗は*model.APIErrorで返し、それ以外はラップしたエラーを返す。
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*Credentials, error)
	SignUp(ctx context.Context, email, password string) (*Credentials, error)
	// SignOut はプロバイダー側のトークンを失効させる。
	SignOut(ctx context.Context, accessToken string) error
}
