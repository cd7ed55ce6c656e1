package web

import (
	"html/template"

	"github.com/hitoshi/petitions/internal/model"
	"github.com/hitoshi/petitions/internal/share"
)

// Page は全画面に共通する値。
type Page struct {
	Title     string
	CSRFToken string
	Identity  *model.Identity
}

// SignedIn はログイン中かどうかを返す。
func (p Page) SignedIn() bool {
	return p.Identity != nil
}

// 認証モーダルのモード
const (
	AuthModeSignIn = "signin"
	AuthModeSignUp = "signup"
)

// LandingPage はトップページ。AuthModeが空でなければ認証モーダルを開いた状態で描画する。
type LandingPage struct {
	Page
	AuthMode  string
	AuthError *model.APIError
	Email     string
}

// ModalOpen は認証モーダルを表示するかどうかを返す。
func (p LandingPage) ModalOpen() bool {
	return p.AuthMode == AuthModeSignIn || p.AuthMode == AuthModeSignUp
}

// IsSignUp はモーダルがアカウント作成モードかどうかを返す。
func (p LandingPage) IsSignUp() bool {
	return p.AuthMode == AuthModeSignUp
}

// DashboardPage は自分のペティション一覧画面。
// LoadErrorがある場合は空状態ではなくエラー状態を描画する。
type DashboardPage struct {
	Page
	Petitions []*model.Petition
	LoadError *model.APIError
}

// Empty は一覧が空（取得失敗ではない）かどうかを返す。
func (p DashboardPage) Empty() bool {
	return p.LoadError == nil && len(p.Petitions) == 0
}

// PetitionForm は作成フォームの入力値。エラー時の再描画で入力を保持する。
type PetitionForm struct {
	Title         string
	Story         string
	AssessedValue string
}

// CreatePage はペティション作成画面。
type CreatePage struct {
	Page
	Form  PetitionForm
	Error *model.APIError
}

// ShareState は共有ページの状態。
type ShareState int

const (
	ShareLoading ShareState = iota
	ShareLoaded
	ShareNotFound
	ShareError
)

// SignerForm は署名フォームの入力値。
type SignerForm struct {
	FirstName string
	LastName  string
	Email     string
}

// SharePage は共有・署名画面。
type SharePage struct {
	Page
	State     ShareState
	Petition  *model.Petition
	Story     template.HTML
	PageURL   string
	Links     []share.Link
	Signer    SignerForm
	SignError *model.APIError
	Signed    bool
	LoadError *model.APIError

	CopyNotice        bool
	CopyNoticeMessage string
	CopyNoticeMillis  int64
}

func (p SharePage) IsLoading() bool  { return p.State == ShareLoading }
func (p SharePage) IsLoaded() bool   { return p.State == ShareLoaded && p.Petition != nil }
func (p SharePage) IsNotFound() bool { return p.State == ShareNotFound }
func (p SharePage) IsError() bool    { return p.State == ShareError }

// GonePage は廃止済みの署名ルート用の案内画面。
type GonePage struct {
	Page
}
