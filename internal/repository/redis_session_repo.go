package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/petitions/internal/model"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

// RedisSessionRepo はRedisを使用したセッションリポジトリ。
// 有効期限はキーのTTLで管理するため、クリーンアップジョブは不要。
type RedisSessionRepo struct {
	client *redis.Client
}

// NewRedisSessionRepo はRedis URLからRedisSessionRepoを生成し、接続を確認する。
func NewRedisSessionRepo(ctx context.Context, redisURL string) (*RedisSessionRepo, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisSessionRepo{client: client}, nil
}

// NewRedisSessionRepoWithClient は既存のクライアントからRedisSessionRepoを生成する。
func NewRedisSessionRepoWithClient(client *redis.Client) *RedisSessionRepo {
	return &RedisSessionRepo{client: client}
}

// sessionData はRedisに保存するセッションのJSON表現。
type sessionData struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	AccessToken string    `json:"access_token,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

func (r *RedisSessionRepo) key(id string) string {
	return sessionKeyPrefix + id
}

// Create はセッションを保存する。既に期限切れのセッションはエラーとする。
func (r *RedisSessionRepo) Create(ctx context.Context, session *model.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("failed to create session: already expired at %s", session.ExpiresAt.Format(time.RFC3339))
	}

	payload, err := json.Marshal(sessionData{
		UserID:      session.UserID,
		Email:       session.Email,
		AccessToken: session.AccessToken,
		ExpiresAt:   session.ExpiresAt,
		CreatedAt:   session.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := r.client.Set(ctx, r.key(session.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。存在しないか期限切れの場合はnilを返す。
func (r *RedisSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	raw, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	var data sessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if !data.ExpiresAt.After(time.Now()) {
		return nil, nil
	}

	return &model.Session{
		ID:          id,
		UserID:      data.UserID,
		Email:       data.Email,
		AccessToken: data.AccessToken,
		ExpiresAt:   data.ExpiresAt,
		CreatedAt:   data.CreatedAt,
	}, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *RedisSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Ping はRedisへの疎通を確認する。ヘルスチェックで使用する。
func (r *RedisSessionRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close はRedis接続を閉じる。
func (r *RedisSessionRepo) Close() error {
	return r.client.Close()
}

// compile-time interface check
var _ SessionRepository = (*RedisSessionRepo)(nil)
