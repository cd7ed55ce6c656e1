package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hitoshi/petitions/internal/model"
	"github.com/redis/go-redis/v9"
)

func newTestRedisRepo(t *testing.T) (*RedisSessionRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisSessionRepoWithClient(client), mr
}

func TestRedisSessionRepo_CreateAndFind(t *testing.T) {
	repo, mr := newTestRedisRepo(t)
	ctx := context.Background()
	now := time.Now()

	session := &model.Session{
		ID:          "sess-1",
		UserID:      "user-1",
		Email:       "ada@example.com",
		AccessToken: "token",
		ExpiresAt:   now.Add(time.Hour),
		CreatedAt:   now,
	}
	if err := repo.Create(ctx, session); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if ttl := mr.TTL("session:sess-1"); ttl <= 0 || ttl > time.Hour {
		t.Errorf("TTL = %v, want (0, 1h]", ttl)
	}

	got, err := repo.FindByID(ctx, "sess-1")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got == nil {
		t.Fatal("FindByID() = nil, want session")
	}
	if got.UserID != "user-1" || got.Email != "ada@example.com" || got.AccessToken != "token" {
		t.Errorf("FindByID() = %+v", got)
	}
}

func TestRedisSessionRepo_Create_AlreadyExpired(t *testing.T) {
	repo, _ := newTestRedisRepo(t)

	err := repo.Create(context.Background(), &model.Session{
		ID:        "sess-old",
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	if err == nil {
		t.Fatal("expected error for expired session")
	}
}

func TestRedisSessionRepo_FindByID_ExpiredByTTL(t *testing.T) {
	repo, mr := newTestRedisRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, &model.Session{
		ID:        "sess-1",
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(time.Minute),
		CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	mr.FastForward(2 * time.Minute)

	got, err := repo.FindByID(ctx, "sess-1")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got != nil {
		t.Errorf("FindByID() = %+v, want nil", got)
	}
}

func TestRedisSessionRepo_FindByID_Missing(t *testing.T) {
	repo, _ := newTestRedisRepo(t)

	got, err := repo.FindByID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got != nil {
		t.Errorf("FindByID() = %+v, want nil", got)
	}
}

func TestRedisSessionRepo_DeleteByID(t *testing.T) {
	repo, mr := newTestRedisRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, &model.Session{
		ID:        "sess-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.DeleteByID(ctx, "sess-1"); err != nil {
		t.Fatalf("DeleteByID() error = %v", err)
	}
	if mr.Exists("session:sess-1") {
		t.Error("key should be removed")
	}
}

func TestNewRedisSessionRepo_PingsServer(t *testing.T) {
	mr := miniredis.RunT(t)

	repo, err := NewRedisSessionRepo(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisSessionRepo() error = %v", err)
	}
	defer repo.Close()

	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestNewRedisSessionRepo_InvalidURL(t *testing.T) {
	if _, err := NewRedisSessionRepo(context.Background(), "://bad"); err == nil {
		t.Fatal("expected error for invalid url")
	}
}
