package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/petitions/internal/middleware"
	"github.com/hitoshi/petitions/internal/model"
)

func newTestAuthHandler(t *testing.T, svc AuthServiceInterface, mc *fakeCollector) *AuthHandler {
	t.Helper()
	h := NewAuthHandler(svc, AuthHandlerConfig{SessionMaxAge: 86400}, newTestRenderer(t), mc, discardLogger())
	h.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return h
}

func TestAuthHandler_SignIn_Success_SetsCookieAndRedirects(t *testing.T) {
	var gotEmail, gotPassword string
	svc := &mockAuthService{
		signInFn: func(ctx context.Context, email, password string) (*model.Session, error) {
			gotEmail, gotPassword = email, password
			return &model.Session{
				ID:        "session-123",
				UserID:    "user-123",
				ExpiresAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	h := newTestAuthHandler(t, svc, &fakeCollector{})

	req := formRequest(http.MethodPost, "/auth/signin", url.Values{
		"email":    {"  user@example.com "},
		"password": {"secret123"},
	})
	w := httptest.NewRecorder()
	h.SignIn(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != "/create-petition" {
		t.Errorf("Location = %q, want /create-petition", loc)
	}
	if gotEmail != "user@example.com" || gotPassword != "secret123" {
		t.Errorf("credentials = %q/%q", gotEmail, gotPassword)
	}

	cookie := findCookie(w, middleware.SessionCookieName)
	if cookie == nil {
		t.Fatal("session cookie not set")
	}
	if cookie.Value != "session-123" {
		t.Errorf("cookie value = %q", cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}
	if cookie.MaxAge != 86400 {
		t.Errorf("MaxAge = %d, want 86400", cookie.MaxAge)
	}
}

func TestAuthHandler_SessionCookie_CappedByExpiry(t *testing.T) {
	svc := &mockAuthService{
		signUpFn: func(ctx context.Context, email, password string) (*model.Session, error) {
			return &model.Session{ID: "s", ExpiresAt: time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)}, nil
		},
	}
	h := newTestAuthHandler(t, svc, &fakeCollector{})

	w := httptest.NewRecorder()
	h.SignUp(w, formRequest(http.MethodPost, "/auth/signup", url.Values{"email": {"a@example.com"}, "password": {"secret1"}}))

	cookie := findCookie(w, middleware.SessionCookieName)
	if cookie == nil || cookie.MaxAge != 3600 {
		t.Fatalf("cookie = %+v, want MaxAge 3600", cookie)
	}
}

func TestAuthHandler_Failures_RenderModalWithError(t *testing.T) {
	tests := []struct {
		name       string
		signUp     bool
		err        error
		wantStatus int
		wantCode   string
		wantSwitch string
	}{
		{
			name:       "認証情報の誤り",
			err:        model.NewInvalidCredentialsError(),
			wantStatus: http.StatusUnauthorized,
			wantCode:   model.ErrCodeInvalidCredentials,
			wantSwitch: "Switch to Sign Up",
		},
		{
			name:       "未入力",
			err:        model.NewMissingCredentialsError(),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   model.ErrCodeMissingCredentials,
			wantSwitch: "Switch to Sign Up",
		},
		{
			name:       "登録済みアカウント",
			signUp:     true,
			err:        model.NewAccountExistsError(),
			wantStatus: http.StatusConflict,
			wantCode:   model.ErrCodeAccountExists,
			wantSwitch: "Switch to Login",
		},
		{
			name:       "想定外のエラー",
			signUp:     true,
			err:        errors.New("dial tcp: connection refused"),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   model.ErrCodeBackendUnavailable,
			wantSwitch: "Switch to Login",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fail := func(ctx context.Context, email, password string) (*model.Session, error) {
				return nil, tt.err
			}
			mc := &fakeCollector{}
			h := newTestAuthHandler(t, &mockAuthService{signInFn: fail, signUpFn: fail}, mc)

			target, handle := "/auth/signin", h.SignIn
			if tt.signUp {
				target, handle = "/auth/signup", h.SignUp
			}
			w := httptest.NewRecorder()
			handle(w, formRequest(http.MethodPost, target, url.Values{"email": {"a@example.com"}, "password": {"pw"}}))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if findCookie(w, middleware.SessionCookieName) != nil {
				t.Error("session cookie must not be set on failure")
			}

			doc := parseHTML(t, w)
			if findByID(doc, "auth-modal") == nil {
				t.Fatal("modal should stay open")
			}
			if textContent(findByID(doc, "auth-error")) == "" {
				t.Error("error message should be shown")
			}
			if got := textContent(findByID(doc, "auth-switch")); got != tt.wantSwitch {
				t.Errorf("switch = %q, want %q", got, tt.wantSwitch)
			}
			if got := attr(findByID(doc, "email"), "value"); got != "a@example.com" {
				t.Errorf("email should be preserved, got %q", got)
			}
			if strings.Contains(w.Body.String(), `value="pw"`) {
				t.Error("password must not be echoed back")
			}
			if len(mc.authFailures) != 1 || mc.authFailures[0] != tt.wantCode {
				t.Errorf("auth failures = %v, want [%s]", mc.authFailures, tt.wantCode)
			}
		})
	}
}

func TestAuthHandler_SignOut_ClearsCookieAndRedirects(t *testing.T) {
	var signedOut string
	svc := &mockAuthService{
		signOutFn: func(ctx context.Context, sessionID string) error {
			signedOut = sessionID
			return nil
		},
	}
	h := newTestAuthHandler(t, svc, &fakeCollector{})

	req := httptest.NewRequest(http.MethodPost, "/auth/signout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "session-123"})
	w := httptest.NewRecorder()
	h.SignOut(w, req)

	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/" {
		t.Errorf("got %d %q, want 303 /", w.Code, w.Header().Get("Location"))
	}
	if signedOut != "session-123" {
		t.Errorf("signed out session = %q", signedOut)
	}
	cookie := findCookie(w, middleware.SessionCookieName)
	if cookie == nil || cookie.MaxAge != -1 {
		t.Errorf("cookie should be cleared, got %+v", cookie)
	}
}

func TestAuthHandler_SignOut_ServiceError_StillClearsCookie(t *testing.T) {
	svc := &mockAuthService{
		signOutFn: func(ctx context.Context, sessionID string) error {
			return errors.New("store unavailable")
		},
	}
	h := newTestAuthHandler(t, svc, &fakeCollector{})

	req := httptest.NewRequest(http.MethodPost, "/auth/signout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "session-123"})
	w := httptest.NewRecorder()
	h.SignOut(w, req)

	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if cookie := findCookie(w, middleware.SessionCookieName); cookie == nil || cookie.MaxAge != -1 {
		t.Errorf("cookie should be cleared, got %+v", cookie)
	}
}

func TestAuthHandler_SignOut_NoCookie_SkipsService(t *testing.T) {
	called := false
	svc := &mockAuthService{
		signOutFn: func(ctx context.Context, sessionID string) error {
			called = true
			return nil
		},
	}
	h := newTestAuthHandler(t, svc, &fakeCollector{})

	w := httptest.NewRecorder()
	h.SignOut(w, httptest.NewRequest(http.MethodPost, "/auth/signout", nil))

	if called {
		t.Error("service should not be called without a session cookie")
	}
	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
}
