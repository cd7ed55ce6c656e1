package model

import "time"

// Petition はペティション（署名を集める主張）を表す。
// ID・CreatedAt・SignatureCountはバックエンドが採番・管理する。
// SignatureCountをクライアント側で加算してはならない。
type Petition struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Title          string    `json:"title"`
	Story          string    `json:"story"`
	AssessedValue  float64   `json:"assessed_value"`
	CreatedAt      time.Time `json:"created_at"`
	SignatureCount int       `json:"signature_count"`
}

// Signature はペティションへの1件の署名を表す。
// 作成後に更新・削除されることはない。
type Signature struct {
	ID         string    `json:"id"`
	PetitionID string    `json:"petition_id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Email      string    `json:"email"`
	CreatedAt  time.Time `json:"created_at"`
}
