package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hitoshi/petitions/internal/model"
	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	AuthRate        rate.Limit    // サインイン・サインアップのレート（req/sec）
	AuthBurst       int           // サインイン・サインアップのバーストサイズ
	SignRate        rate.Limit    // 署名投稿のレート（req/sec）
	SignBurst       int           // 署名投稿のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// 認証 10 req/min/IP、署名 20 req/min/IP。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return NewRateLimiterConfig(10, 20)
}

// NewRateLimiterConfig は1分あたりのリクエスト数から設定を組み立てる。
// バーストサイズは1分あたりの上限と同じにする。
func NewRateLimiterConfig(authPerMin, signPerMin int) RateLimiterConfig {
	return RateLimiterConfig{
		AuthRate:        rate.Limit(float64(authPerMin) / 60.0),
		AuthBurst:       authPerMin,
		SignRate:        rate.Limit(float64(signPerMin) / 60.0),
		SignBurst:       signPerMin,
		CleanupInterval: 5 * time.Minute,
	}
}

// clientLimiter はクライアントごとのレートリミッターとアクセス時刻を保持する。
type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterSet はキー（クライアントIP）ごとのリミッター集合。
type limiterSet struct {
	mu       sync.RWMutex
	limit    rate.Limit
	burst    int
	limiters map[string]*clientLimiter
}

func newLimiterSet(limit rate.Limit, burst int) *limiterSet {
	return &limiterSet{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*clientLimiter),
	}
}

// get はキーのリミッターを取得または作成する。
func (s *limiterSet) get(key string) *rate.Limiter {
	s.mu.RLock()
	cl, exists := s.limiters[key]
	s.mu.RUnlock()

	if exists {
		s.mu.Lock()
		cl.lastAccess = time.Now()
		s.mu.Unlock()
		return cl.limiter
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// ダブルチェック
	if cl, exists := s.limiters[key]; exists {
		cl.lastAccess = time.Now()
		return cl.limiter
	}

	limiter := rate.NewLimiter(s.limit, s.burst)
	s.limiters[key] = &clientLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}
	return limiter
}

func (s *limiterSet) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.limiters)
}

// evict は最終アクセスからttlを超えたエントリを削除する。
func (s *limiterSet) evict(now time.Time, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, cl := range s.limiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(s.limiters, key)
		}
	}
}

// RateLimiter はクライアントIPごとのレート制限を管理する。
// 認証フォームと署名フォームの2種類を独立に制限する。
type RateLimiter struct {
	config RateLimiterConfig
	auth   *limiterSet
	sign   *limiterSet

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config: config,
		auth:   newLimiterSet(config.AuthRate, config.AuthBurst),
		sign:   newLimiterSet(config.SignRate, config.SignBurst),
		stopCh: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。複数回呼んでもよい。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// RejectFunc はレート制限で拒否したリクエストへの応答を書き込む。
// Retry-Afterヘッダーは呼び出し前に設定済み。
type RejectFunc func(w http.ResponseWriter, r *http.Request, apiErr *model.APIError)

// AuthMiddleware はサインイン・サインアップ用のレート制限ミドルウェアを返す。
// rejectがnilの場合はJSONの429レスポンスを返す。
func (rl *RateLimiter) AuthMiddleware(reject RejectFunc) func(next http.Handler) http.Handler {
	return rl.middleware(rl.auth, "auth", reject)
}

// SignMiddleware は署名投稿用のレート制限ミドルウェアを返す。
// 認証用のレート制限とは独立に動作する。
func (rl *RateLimiter) SignMiddleware(reject RejectFunc) func(next http.Handler) http.Handler {
	return rl.middleware(rl.sign, "sign", reject)
}

func (rl *RateLimiter) middleware(set *limiterSet, limitType string, reject RejectFunc) func(next http.Handler) http.Handler {
	if reject == nil {
		reject = writeJSONRejection
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			if !set.get(key).Allow() {
				slog.Warn("rate limit exceeded",
					slog.String("client_ip", key),
					slog.String("limit_type", limitType),
				)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(set.limit)))
				reject(w, r, model.NewRateLimitedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthLimiterCount は現在管理されている認証リミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) AuthLimiterCount() int {
	return rl.auth.count()
}

// SignLimiterCount は現在管理されている署名リミッターのエントリ数を返す。
func (rl *RateLimiter) SignLimiterCount() int {
	return rl.sign.count()
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2
	now := time.Now()
	rl.auth.evict(now, ttl)
	rl.sign.evict(now, ttl)
}

// clientIP はレート制限のキーとなるクライアントIPを返す。
// chiのRealIPミドルウェアがRemoteAddrを書き換えている前提で、ポートがあれば取り除く。
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// retryAfterSeconds はトークンが補充されるまでの推定秒数を返す。
func retryAfterSeconds(r rate.Limit) int {
	retryAfterSec := 1
	if r > 0 {
		retryAfterSec = int(math.Ceil(1.0 / float64(r)))
	}
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}
	return retryAfterSec
}

// writeJSONRejection は429 Too Many RequestsのJSONレスポンスを書き込む。
func writeJSONRejection(w http.ResponseWriter, _ *http.Request, apiErr *model.APIError) {
	WriteErrorResponse(w, http.StatusTooManyRequests, apiErr)
}
