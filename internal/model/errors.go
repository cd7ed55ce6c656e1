// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// 画面に表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // ユーザー向けメッセージ
	Category string // カテゴリ: auth, validation, petition, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMissingFields      = "MISSING_FIELDS"
	ErrCodeInvalidAssessed    = "INVALID_ASSESSED_VALUE"
	ErrCodeMissingSigner      = "MISSING_SIGNER_FIELDS"
	ErrCodeFieldTooLong       = "FIELD_TOO_LONG"
	ErrCodeDuplicateSignature = "DUPLICATE_SIGNATURE"
	ErrCodePetitionNotFound   = "PETITION_NOT_FOUND"
	ErrCodeMissingCredentials = "MISSING_CREDENTIALS"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeAccountExists      = "ACCOUNT_EXISTS"
	ErrCodeWeakPassword       = "WEAK_PASSWORD"
	ErrCodeAuthFailed         = "AUTH_FAILED"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeCSRF               = "CSRF_FAILED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// カテゴリ
const (
	CategoryValidation = "validation"
	CategoryAuth       = "auth"
	CategoryPetition   = "petition"
	CategorySystem     = "system"
)

// AsAPIError はエラーチェーンから*APIErrorを取り出す。
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsValidationError はエラーが入力検証エラーかどうかを判定する。
func IsValidationError(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Category == CategoryValidation
}

// NewMissingFieldsError はペティション作成フォームの未入力エラーを生成する。
// 3項目のどれが欠けていても同じ1件のエラーにまとめる。
func NewMissingFieldsError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingFields,
		Message:  "Please fill in all fields",
		Category: CategoryValidation,
		Action:   "Enter a title, your story and the assessed value.",
	}
}

// NewInvalidAssessedValueError は評価額が正の数値でない場合のエラーを生成する。
func NewInvalidAssessedValueError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAssessed,
		Message:  "Please enter a valid assessed value",
		Category: CategoryValidation,
		Action:   "Enter a number greater than zero.",
	}
}

// NewFieldTooLongError は入力が保存できる文字数を超えている場合のエラーを生成する。
func NewFieldTooLongError(field string, maxLength int) *APIError {
	return &APIError{
		Code:     ErrCodeFieldTooLong,
		Message:  fmt.Sprintf("%s must be %d characters or fewer", field, maxLength),
		Category: CategoryValidation,
		Action:   "Shorten the text and try again.",
	}
}

// NewMissingSignerFieldsError は署名フォームの未入力エラーを生成する。
func NewMissingSignerFieldsError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingSigner,
		Message:  "Please enter your first name, last name and email",
		Category: CategoryValidation,
		Action:   "All three fields are required to sign.",
	}
}

// NewDuplicateSignatureError は同じメールアドレスで再署名しようとした場合のエラーを生成する。
func NewDuplicateSignatureError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateSignature,
		Message:  "This email address has already signed this petition",
		Category: CategoryValidation,
		Action:   "Each person can sign a petition once.",
	}
}

// NewPetitionNotFoundError はペティション未検出エラーを生成する。
func NewPetitionNotFoundError(petitionID string) *APIError {
	return &APIError{
		Code:     ErrCodePetitionNotFound,
		Message:  fmt.Sprintf("Petition not found: %s", petitionID),
		Category: CategoryPetition,
		Action:   "Check the link you were given.",
	}
}

// NewMissingCredentialsError はメールアドレスまたはパスワードが未入力の場合のエラーを生成する。
func NewMissingCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingCredentials,
		Message:  "Email and password are required",
		Category: CategoryAuth,
		Action:   "Enter your email address and password.",
	}
}

// NewInvalidCredentialsError は認証情報が一致しない場合のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid login credentials",
		Category: CategoryAuth,
		Action:   "Check your email address and password, or create an account.",
	}
}

// NewAccountExistsError はメールアドレスが登録済みの場合のエラーを生成する。
func NewAccountExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountExists,
		Message:  "User already registered",
		Category: CategoryAuth,
		Action:   "Sign in with this email address instead.",
	}
}

// NewWeakPasswordError はパスワードが短すぎる場合のエラーを生成する。
func NewWeakPasswordError(minLength int) *APIError {
	return &APIError{
		Code:     ErrCodeWeakPassword,
		Message:  fmt.Sprintf("Password should be at least %d characters", minLength),
		Category: CategoryAuth,
		Action:   "Choose a longer password.",
	}
}

// NewAuthFailedError は認証プロバイダーが返したメッセージをそのまま表示するエラーを生成する。
func NewAuthFailedError(message string) *APIError {
	if message == "" {
		message = "An error occurred"
	}
	return &APIError{
		Code:     ErrCodeAuthFailed,
		Message:  message,
		Category: CategoryAuth,
		Action:   "Please try again.",
	}
}

// NewUnauthorizedError は未ログインでの操作エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "You need to sign in first",
		Category: CategoryAuth,
		Action:   "Sign in and try again.",
	}
}

// NewBackendUnavailableError はバックエンド呼び出し失敗時のエラーを生成する。
// 詳細はログにのみ記録し、ユーザーには一般的なメッセージを返す。
func NewBackendUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeBackendUnavailable,
		Message:  "Something went wrong while talking to the server",
		Category: CategorySystem,
		Action:   "Please wait a moment and try again.",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: CategorySystem,
		Action:   "Please wait and retry after the specified time.",
	}
}

// NewCSRFError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRF,
		Message:  "Your form has expired",
		Category: CategorySystem,
		Action:   "Reload the page and submit the form again.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "An internal error occurred",
		Category: CategorySystem,
		Action:   "Please wait a moment and try again.",
	}
}
