package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/petitions/internal/model"
	"github.com/hitoshi/petitions/internal/repository"
)

// --- モック定義 ---

type mockSessionRepo struct {
	createFn     func(ctx context.Context, session *model.Session) error
	findByIDFn   func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn func(ctx context.Context, id string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

type mockProvider struct {
	signInFn  func(ctx context.Context, email, password string) (*Credentials, error)
	signUpFn  func(ctx context.Context, email, password string) (*Credentials, error)
	signOutFn func(ctx context.Context, accessToken string) error
}

func (m *mockProvider) SignIn(ctx context.Context, email, password string) (*Credentials, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockProvider) SignUp(ctx context.Context, email, password string) (*Credentials, error) {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockProvider) SignOut(ctx context.Context, accessToken string) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, accessToken)
	}
	return nil
}

// --- compile-time interface checks ---
var _ repository.SessionRepository = (*mockSessionRepo)(nil)
var _ Provider = (*mockProvider)(nil)

func okCredentials(id, email string) func(ctx context.Context, email, password string) (*Credentials, error) {
	return func(ctx context.Context, _, _ string) (*Credentials, error) {
		return &Credentials{Identity: model.Identity{ID: id, Email: email}}, nil
	}
}

// --- テスト ---

func TestSignIn_Success_CreatesSessionAndNotifies(t *testing.T) {
	ctx := context.Background()

	var createdSession *model.Session
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			createdSession = session
			return nil
		},
	}
	provider := &mockProvider{signInFn: okCredentials("user-1", "ada@example.com")}

	svc := NewService(provider, sessionRepo, ServiceConfig{SessionMaxAge: 86400})

	var events []Event
	svc.Subscribe(func(ev Event) { events = append(events, ev) })

	session, err := svc.SignIn(ctx, " ada@example.com ", "secret1")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if session.ID == "" || len(session.ID) != 64 {
		t.Errorf("session ID = %q, want 64 hex chars", session.ID)
	}
	if session.UserID != "user-1" || session.Email != "ada@example.com" {
		t.Errorf("session = %+v", session)
	}
	if createdSession == nil || createdSession.ID != session.ID {
		t.Error("session should be persisted")
	}
	if d := time.Until(session.ExpiresAt); d < 23*time.Hour || d > 24*time.Hour {
		t.Errorf("session expires in %v, want ~24h", d)
	}
	if len(events) != 1 || events[0].Type != EventSignedIn || events[0].Identity.ID != "user-1" {
		t.Errorf("events = %+v", events)
	}
}

func TestSignIn_TrimsEmailBeforeProvider(t *testing.T) {
	var gotEmail string
	provider := &mockProvider{
		signInFn: func(ctx context.Context, email, password string) (*Credentials, error) {
			gotEmail = email
			return &Credentials{Identity: model.Identity{ID: "u"}}, nil
		},
	}
	svc := NewService(provider, &mockSessionRepo{}, ServiceConfig{SessionMaxAge: 60})

	if _, err := svc.SignIn(context.Background(), "  ada@example.com\t", "pw"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if gotEmail != "ada@example.com" {
		t.Errorf("provider email = %q, want trimmed", gotEmail)
	}
}

func TestSignIn_MissingCredentials_DoesNotCallProvider(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "メールアドレス未入力", email: "", password: "secret"},
		{name: "空白のみのメールアドレス", email: "   ", password: "secret"},
		{name: "パスワード未入力", email: "ada@example.com", password: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			provider := &mockProvider{
				signInFn: func(ctx context.Context, email, password string) (*Credentials, error) {
					called = true
					return nil, nil
				},
			}
			svc := NewService(provider, &mockSessionRepo{}, ServiceConfig{SessionMaxAge: 60})

			_, err := svc.SignIn(context.Background(), tt.email, tt.password)
			apiErr, ok := model.AsAPIError(err)
			if !ok || apiErr.Code != model.ErrCodeMissingCredentials {
				t.Errorf("error = %v, want MISSING_CREDENTIALS", err)
			}
			if called {
				t.Error("provider should not be called")
			}
		})
	}
}

func TestSignIn_ProviderAPIError_ReturnedAsIs(t *testing.T) {
	provider := &mockProvider{
		signInFn: func(ctx context.Context, email, password string) (*Credentials, error) {
			return nil, model.NewInvalidCredentialsError()
		},
	}
	created := false
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			created = true
			return nil
		},
	}
	svc := NewService(provider, sessionRepo, ServiceConfig{SessionMaxAge: 60})

	notified := false
	svc.Subscribe(func(Event) { notified = true })

	_, err := svc.SignIn(context.Background(), "ada@example.com", "wrong")
	apiErr, ok := model.AsAPIError(err)
	if !ok || apiErr.Message != "Invalid login credentials" {
		t.Errorf("error = %v, want invalid credentials", err)
	}
	if created {
		t.Error("session should not be created")
	}
	if notified {
		t.Error("listeners should not be notified on failure")
	}
}

func TestSignIn_ProviderInfraError_ReturnsBackendUnavailable(t *testing.T) {
	provider := &mockProvider{
		signInFn: func(ctx context.Context, email, password string) (*Credentials, error) {
			return nil, errors.New("dial tcp: connection refused")
		},
	}
	svc := NewService(provider, &mockSessionRepo{}, ServiceConfig{SessionMaxAge: 60})

	_, err := svc.SignIn(context.Background(), "ada@example.com", "pw")
	apiErr, ok := model.AsAPIError(err)
	if !ok || apiErr.Code != model.ErrCodeBackendUnavailable {
		t.Errorf("error = %v, want BACKEND_UNAVAILABLE", err)
	}
}

func TestSignIn_SessionSaveError_ReturnsError(t *testing.T) {
	provider := &mockProvider{signInFn: okCredentials("user-1", "ada@example.com")}
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			return errors.New("db error")
		},
	}
	svc := NewService(provider, sessionRepo, ServiceConfig{SessionMaxAge: 60})

	if _, err := svc.SignIn(context.Background(), "ada@example.com", "pw"); err == nil {
		t.Fatal("expected error")
	}
}

func TestSignIn_TokenExpiry_CapsSession(t *testing.T) {
	tokenExpiry := time.Now().Add(time.Hour)
	provider := &mockProvider{
		signInFn: func(ctx context.Context, email, password string) (*Credentials, error) {
			return &Credentials{
				Identity:    model.Identity{ID: "user-1"},
				AccessToken: "jwt",
				ExpiresAt:   tokenExpiry,
			}, nil
		},
	}
	svc := NewService(provider, &mockSessionRepo{}, ServiceConfig{SessionMaxAge: 86400})

	session, err := svc.SignIn(context.Background(), "ada@example.com", "pw")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if !session.ExpiresAt.Equal(tokenExpiry) {
		t.Errorf("ExpiresAt = %v, want %v", session.ExpiresAt, tokenExpiry)
	}
	if session.AccessToken != "jwt" {
		t.Errorf("AccessToken = %q, want jwt", session.AccessToken)
	}
}

func TestSignUp_Success_NotifiesSignedUp(t *testing.T) {
	provider := &mockProvider{signUpFn: okCredentials("user-2", "new@example.com")}
	svc := NewService(provider, &mockSessionRepo{}, ServiceConfig{SessionMaxAge: 60})

	var got []EventType
	svc.Subscribe(func(ev Event) { got = append(got, ev.Type) })

	session, err := svc.SignUp(context.Background(), "new@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if session.UserID != "user-2" {
		t.Errorf("UserID = %q, want user-2", session.UserID)
	}
	if len(got) != 1 || got[0] != EventSignedUp {
		t.Errorf("events = %v, want [signed_up]", got)
	}
}

func TestSignOut_RevokesTokenDeletesSessionAndNotifies(t *testing.T) {
	var revoked, deleted string
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, UserID: "user-1", Email: "ada@example.com", AccessToken: "jwt"}, nil
		},
		deleteByIDFn: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	provider := &mockProvider{
		signOutFn: func(ctx context.Context, accessToken string) error {
			revoked = accessToken
			return nil
		},
	}
	svc := NewService(provider, sessionRepo, ServiceConfig{SessionMaxAge: 60})

	var events []Event
	svc.Subscribe(func(ev Event) { events = append(events, ev) })

	if err := svc.SignOut(context.Background(), "session-1"); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if revoked != "jwt" {
		t.Errorf("revoked token = %q, want jwt", revoked)
	}
	if deleted != "session-1" {
		t.Errorf("deleted session = %q, want session-1", deleted)
	}
	if len(events) != 1 || events[0].Type != EventSignedOut || events[0].Identity.Email != "ada@example.com" {
		t.Errorf("events = %+v", events)
	}
}

func TestSignOut_RevokeFailure_StillDeletesSession(t *testing.T) {
	deleted := false
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, UserID: "user-1", AccessToken: "jwt"}, nil
		},
		deleteByIDFn: func(ctx context.Context, id string) error {
			deleted = true
			return nil
		},
	}
	provider := &mockProvider{
		signOutFn: func(ctx context.Context, accessToken string) error {
			return errors.New("backend down")
		},
	}
	svc := NewService(provider, sessionRepo, ServiceConfig{SessionMaxAge: 60})

	if err := svc.SignOut(context.Background(), "session-1"); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if !deleted {
		t.Error("session should be deleted even when revoke fails")
	}
}

func TestSignOut_EmptySessionID_IsNoop(t *testing.T) {
	svc := NewService(&mockProvider{}, nil, ServiceConfig{SessionMaxAge: 60})

	if err := svc.SignOut(context.Background(), ""); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
}

func TestSignOut_UnknownSession_NoEvent(t *testing.T) {
	svc := NewService(&mockProvider{}, &mockSessionRepo{}, ServiceConfig{SessionMaxAge: 60})

	notified := false
	svc.Subscribe(func(Event) { notified = true })

	if err := svc.SignOut(context.Background(), "gone"); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if notified {
		t.Error("no event expected for unknown session")
	}
}

func TestCurrentIdentity(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id == "valid" {
				return &model.Session{ID: id, UserID: "user-1", Email: "ada@example.com", ExpiresAt: time.Now().Add(time.Hour)}, nil
			}
			// 期限切れセッション -> リポジトリはnilを返す
			return nil, nil
		},
	}
	svc := NewService(&mockProvider{}, sessionRepo, ServiceConfig{SessionMaxAge: 60})

	tests := []struct {
		name      string
		sessionID string
		wantID    string
	}{
		{name: "有効なセッション", sessionID: "valid", wantID: "user-1"},
		{name: "期限切れのセッション", sessionID: "expired", wantID: ""},
		{name: "セッションなし", sessionID: "", wantID: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, err := svc.CurrentIdentity(context.Background(), tt.sessionID)
			if err != nil {
				t.Fatalf("CurrentIdentity() error = %v", err)
			}
			if tt.wantID == "" {
				if identity != nil {
					t.Errorf("identity = %+v, want nil", identity)
				}
				return
			}
			if identity == nil || identity.ID != tt.wantID {
				t.Errorf("identity = %+v, want id %q", identity, tt.wantID)
			}
		})
	}
}

func TestSubscribe_ConcurrentWithNotify(t *testing.T) {
	provider := &mockProvider{signInFn: okCredentials("user-1", "ada@example.com")}
	svc := NewService(provider, &mockSessionRepo{}, ServiceConfig{SessionMaxAge: 60})

	var mu sync.Mutex
	count := 0

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			svc.Subscribe(func(Event) {
				mu.Lock()
				count++
				mu.Unlock()
			})
		}()
		go func() {
			defer wg.Done()
			svc.SignIn(context.Background(), "ada@example.com", "pw")
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if count > 100 {
		t.Errorf("count = %d, want at most 100", count)
	}
}
