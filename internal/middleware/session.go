// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/petitions/internal/model"
	"github.com/hitoshi/petitions/internal/remote"
)

// SessionCookieName はセッションIDを保持するHTTP Only Cookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストにセッションを格納するためのキー。
var sessionContextKey = contextKey("session")

// SessionFinder はセッションの検索に必要なインターフェース。
// auth.Serviceが満たす。期限切れ・不明なIDの場合は(nil, nil)を返す。
type SessionFinder interface {
	FindSession(ctx context.Context, id string) (*model.Session, error)
}

// NewIdentityMiddleware はHTTP Only Cookieからセッションを読み取り、
// 有効なセッションをリクエストコンテキストに注入するミドルウェアを返す。
// 未認証のリクエストも拒否せずに通す。ログイン必須のルートはRequireIdentityで保護する。
// セッションにアクセストークンがある場合はリモートクライアント用にコンテキストへ引き渡す。
func NewIdentityMiddleware(finder SessionFinder, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, err := finder.FindSession(r.Context(), cookie.Value)
			if err != nil {
				// セッションストア障害時は匿名として扱う
				logger.Warn("failed to find session",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if session == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := ContextWithSession(r.Context(), session)
			if session.AccessToken != "" {
				ctx = remote.WithAccessToken(ctx, session.AccessToken)
			}
			recordUserID(ctx, session.UserID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireIdentity はログインしていないリクエストをトップページへリダイレクトする。
// GETでもPOSTでも、フォームを描画・処理する前に判定する。
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IdentityFromContext(r.Context()) == nil {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionFromContext はリクエストコンテキストからセッションを取得する。
func SessionFromContext(ctx context.Context) *model.Session {
	session, _ := ctx.Value(sessionContextKey).(*model.Session)
	return session
}

// IdentityFromContext はログイン中の利用者を返す。未ログインならnil。
func IdentityFromContext(ctx context.Context) *model.Identity {
	session := SessionFromContext(ctx)
	if session == nil {
		return nil
	}
	return session.Identity()
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// IdentityMiddlewareを通過したログイン済みリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	session := SessionFromContext(ctx)
	if session == nil || session.UserID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return session.UserID, nil
}

// ContextWithSession はコンテキストにセッションを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, session *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}
