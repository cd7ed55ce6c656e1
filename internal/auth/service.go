package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/petitions/internal/model"
	"github.com/hitoshi/petitions/internal/repository"
)

// EventType は認証状態の変化の種類。
type EventType string

const (
	EventSignedIn  EventType = "signed_in"
	EventSignedUp  EventType = "signed_up"
	EventSignedOut EventType = "signed_out"
)

// Event は認証状態の変化を表す。
type Event struct {
	Type     EventType
	Identity model.Identity
	At       time.Time
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	provider    Provider
	sessionRepo repository.SessionRepository
	config      ServiceConfig

	mu        sync.RWMutex
	listeners []func(Event)
}

// NewService はServiceを生成する。
func NewService(provider Provider, sessionRepo repository.SessionRepository, config ServiceConfig) *Service {
	return &Service{
		provider:    provider,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// Subscribe は認証状態の変化を受け取るリスナーを登録する。
// リスナーはサインイン・サインアップ・サインアウトの成功後に同期的に呼ばれる。
func (s *Service) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// SignIn は認証を行い、セッションを発行する。
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	return s.authenticate(ctx, EventSignedIn, email, password, s.provider.SignIn)
}

// SignUp はアカウントを作成し、セッションを発行する。
func (s *Service) SignUp(ctx context.Context, email, password string) (*model.Session, error) {
	return s.authenticate(ctx, EventSignedUp, email, password, s.provider.SignUp)
}

func (s *Service) authenticate(
	ctx context.Context,
	eventType EventType,
	email, password string,
	call func(ctx context.Context, email, password string) (*Credentials, error),
) (*model.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, model.NewMissingCredentialsError()
	}

	creds, err := call(ctx, email, password)
	if err != nil {
		if _, ok := model.AsAPIError(err); ok {
			return nil, err
		}
		slog.Error("auth provider failed",
			slog.String("event", string(eventType)),
			slog.String("error", err.Error()),
		)
		return nil, model.NewBackendUnavailableError()
	}

	session, err := s.createSession(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user authenticated",
		slog.String("event", string(eventType)),
		slog.String("user_id", session.UserID),
	)
	s.notify(Event{Type: eventType, Identity: creds.Identity, At: session.CreatedAt})
	return session, nil
}

// SignOut はセッションを破棄し、プロバイダー側のトークンを失効させる。
// セッションが存在しない場合は何もしない。
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to find session: %w", err)
	}

	if session != nil && session.AccessToken != "" {
		// トークン失効に失敗してもローカルのセッションは破棄する
		if err := s.provider.SignOut(ctx, session.AccessToken); err != nil {
			slog.Warn("failed to revoke provider token",
				slog.String("user_id", session.UserID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if session != nil {
		slog.Info("user signed out", slog.String("user_id", session.UserID))
		s.notify(Event{Type: EventSignedOut, Identity: *session.Identity(), At: time.Now()})
	}
	return nil
}

// FindSession は有効なセッションを返す。未ログインまたは期限切れの場合はnilを返す。
func (s *Service) FindSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return session, nil
}

// CurrentIdentity はセッションに紐づく利用者を返す。未ログインの場合はnilを返す。
func (s *Service) CurrentIdentity(ctx context.Context, sessionID string) (*model.Identity, error) {
	session, err := s.FindSession(ctx, sessionID)
	if err != nil || session == nil {
		return nil, err
	}
	return session.Identity(), nil
}

// createSession はセッションを作成し永続化する。
// プロバイダーのトークンの方が先に失効する場合はそちらに合わせる。
func (s *Service) createSession(ctx context.Context, creds *Credentials) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	expiresAt := now.Add(time.Duration(s.config.SessionMaxAge) * time.Second)
	if !creds.ExpiresAt.IsZero() && creds.ExpiresAt.Before(expiresAt) {
		expiresAt = creds.ExpiresAt
	}

	session := &model.Session{
		ID:          sessionID,
		UserID:      creds.Identity.ID,
		Email:       creds.Identity.Email,
		AccessToken: creds.AccessToken,
		ExpiresAt:   expiresAt,
		CreatedAt:   now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

func (s *Service) notify(ev Event) {
	s.mu.RLock()
	listeners := make([]func(Event), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
