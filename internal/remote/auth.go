package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// AuthUser は認証APIが返す利用者情報。
type AuthUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// AuthSession は認証APIが返すセッション。
// メール確認が必要な設定のサインアップではAccessTokenが空になる。
type AuthSession struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int      `json:"expires_in"`
	User         AuthUser `json:"user"`
}

// ExpiresAt はアクセストークンの有効期限を返す。ExpiresInが0の場合はゼロ値。
func (s *AuthSession) ExpiresAt(now time.Time) time.Time {
	if s.ExpiresIn <= 0 {
		return time.Time{}
	}
	return now.Add(time.Duration(s.ExpiresIn) * time.Second)
}

// AuthClient は認証APIのクライアント。
type AuthClient struct {
	client *Client
}

// Auth は認証APIのクライアントを返す。
func (c *Client) Auth() *AuthClient {
	return &AuthClient{client: c}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInWithPassword はメールアドレスとパスワードでサインインする。
func (a *AuthClient) SignInWithPassword(ctx context.Context, email, password string) (*AuthSession, error) {
	_, body, err := a.client.do(ctx, request{
		operation: "auth:signin",
		method:    http.MethodPost,
		path:      authPrefix + "token",
		query:     url.Values{"grant_type": []string{"password"}},
		body:      credentials{Email: email, Password: password},
	})
	if err != nil {
		return nil, err
	}

	var session AuthSession
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("サインイン結果のパースに失敗しました: %w", err)
	}
	return &session, nil
}

// SignUp はアカウントを作成する。
// 自動確認が有効な場合はセッションが、メール確認が必要な場合は利用者情報のみが返る。
func (a *AuthClient) SignUp(ctx context.Context, email, password string) (*AuthSession, error) {
	_, body, err := a.client.do(ctx, request{
		operation: "auth:signup",
		method:    http.MethodPost,
		path:      authPrefix + "signup",
		body:      credentials{Email: email, Password: password},
	})
	if err != nil {
		return nil, err
	}

	var session AuthSession
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("サインアップ結果のパースに失敗しました: %w", err)
	}
	if session.AccessToken == "" {
		// メール確認待ちの場合はトップレベルが利用者オブジェクトになる
		var user AuthUser
		if err := json.Unmarshal(body, &user); err == nil {
			session.User = user
		}
	}
	return &session, nil
}

// SignOut はアクセストークンを失効させる。
func (a *AuthClient) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	_, _, err := a.client.do(ctx, request{
		operation: "auth:signout",
		method:    http.MethodPost,
		path:      authPrefix + "logout",
		bearer:    accessToken,
	})
	return err
}
