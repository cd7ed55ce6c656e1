package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/petitions/internal/metrics"
	"github.com/hitoshi/petitions/internal/middleware"
	"github.com/hitoshi/petitions/internal/model"
	"github.com/hitoshi/petitions/internal/petition"
	"github.com/hitoshi/petitions/internal/signature"
	"github.com/hitoshi/petitions/internal/web"
	"golang.org/x/net/html"
)

// --- モック定義 ---

type mockAuthService struct {
	signInFn  func(ctx context.Context, email, password string) (*model.Session, error)
	signUpFn  func(ctx context.Context, email, password string) (*model.Session, error)
	signOutFn func(ctx context.Context, sessionID string) error
}

func (m *mockAuthService) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) SignUp(ctx context.Context, email, password string) (*model.Session, error) {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) SignOut(ctx context.Context, sessionID string) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, sessionID)
	}
	return nil
}

type mockPetitionService struct {
	createFn   func(ctx context.Context, identity *model.Identity, in petition.Input) (*model.Petition, error)
	listMineFn func(ctx context.Context, identity *model.Identity) ([]*model.Petition, error)
	getFn      func(ctx context.Context, id string) (*model.Petition, error)
}

func (m *mockPetitionService) Create(ctx context.Context, identity *model.Identity, in petition.Input) (*model.Petition, error) {
	if m.createFn != nil {
		return m.createFn(ctx, identity, in)
	}
	return nil, nil
}

func (m *mockPetitionService) ListMine(ctx context.Context, identity *model.Identity) ([]*model.Petition, error) {
	if m.listMineFn != nil {
		return m.listMineFn(ctx, identity)
	}
	return []*model.Petition{}, nil
}

func (m *mockPetitionService) Get(ctx context.Context, id string) (*model.Petition, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewPetitionNotFoundError(id)
}

type mockSignatureService struct {
	signFn func(ctx context.Context, petitionID string, in signature.Input) (*model.Petition, error)
	calls  int
}

func (m *mockSignatureService) Sign(ctx context.Context, petitionID string, in signature.Input) (*model.Petition, error) {
	m.calls++
	if m.signFn != nil {
		return m.signFn(ctx, petitionID, in)
	}
	return nil, nil
}

// fakeCollector は認証失敗の記録だけを保持する。
type fakeCollector struct {
	metrics.Nop
	authFailures []string
}

func (f *fakeCollector) RecordAuthFailure(code string) {
	f.authFailures = append(f.authFailures, code)
}

// --- テストヘルパー ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestRenderer(t *testing.T) *web.Renderer {
	t.Helper()
	r, err := web.NewRenderer()
	if err != nil {
		t.Fatalf("web.NewRenderer() error: %v", err)
	}
	return r
}

// withIdentity はテスト用にリクエストコンテキストへログイン中のセッションを注入する。
func withIdentity(r *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithSession(r.Context(), &model.Session{
		ID:     "session-" + userID,
		UserID: userID,
		Email:  userID + "@example.com",
	})
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// formRequest はフォーム送信のリクエストを生成する。
func formRequest(method, target string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func parseHTML(t *testing.T, w *httptest.ResponseRecorder) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(w.Body.String()))
	if err != nil {
		t.Fatalf("failed to parse HTML: %v", err)
	}
	return doc
}

// findByID はid属性が一致する最初の要素を返す。
func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode && attr(n, "id") == id {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
