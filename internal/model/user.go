// Package model はドメインモデルを定義する。
package model

import "time"

// Identity はログイン中の利用者（認証プロバイダーが発行した主体）を表す。
// アプリケーションからは読み取り専用。
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Account はセルフホスト構成でのパスワード認証アカウントを表す。
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Session はブラウザのログインセッションを表す。
// AccessTokenはホスト型バックエンド利用時にテーブル操作へ引き渡すトークン。
type Session struct {
	ID          string
	UserID      string
	Email       string
	AccessToken string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Identity はセッションに紐づく利用者を返す。
func (s *Session) Identity() *Identity {
	return &Identity{ID: s.UserID, Email: s.Email}
}
