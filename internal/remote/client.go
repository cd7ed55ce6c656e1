// Package remote はホスト型データバックエンド（PostgREST + GoTrue互換API）のクライアントを提供する。
// テーブル単位のCRUDとメールアドレス/パスワードによるセッション認証のみを扱う。
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	restPrefix = "/rest/v1/"
	authPrefix = "/auth/v1/"

	// maxResponseSize はレスポンスボディの最大読み取りサイズ。
	maxResponseSize = 4 << 20
)

// ErrNotFound は単一行取得で該当行が存在しない場合に返される。
var ErrNotFound = errors.New("remote: row not found")

// Error はバックエンドが返したエラーレスポンスを表す。
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("remote: status %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("remote: status %d: %s", e.StatusCode, e.Message)
}

// Observer はリクエスト1件ごとに呼び出されるフック。メトリクス収集に使う。
// statusCodeは通信エラー時に0となる。
type Observer func(operation string, statusCode int, duration time.Duration)

// Client はホスト型バックエンドのクライアント。
// 複数goroutineから同時に利用できる。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	apiKey     string
	observer   Observer
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLはプロジェクトURL（例: https://xyz.supabase.co）、apiKeyは匿名キー。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL, apiKey string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// SetObserver はリクエスト観測フックを設定する。起動時に1回だけ呼ぶこと。
func (c *Client) SetObserver(o Observer) {
	c.observer = o
}

type accessTokenKey struct{}

// WithAccessToken はテーブル操作をログイン利用者として実行するためのトークンをコンテキストに格納する。
// トークンがない場合は匿名キーで実行される。
func WithAccessToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, accessTokenKey{}, token)
}

func accessTokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(accessTokenKey{}).(string)
	return token
}

// request はバックエンドへの1リクエストを表す。
type request struct {
	operation string
	method    string
	path      string
	query     url.Values
	body      any
	header    http.Header
	bearer    string
}

// do はリクエストを送信し、ステータスコードとレスポンスボディを返す。
// 2xx以外のステータスは*Errorとして返す。
func (c *Client) do(ctx context.Context, req request) (int, []byte, error) {
	start := time.Now()
	status, body, err := c.send(ctx, req)
	if c.observer != nil {
		c.observer(req.operation, status, time.Since(start))
	}
	return status, body, err
}

func (c *Client) send(ctx context.Context, req request) (int, []byte, error) {
	reqURL := c.baseURL + req.path
	if len(req.query) > 0 {
		reqURL += "?" + req.query.Encode()
	}

	var bodyReader io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return 0, nil, fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, reqURL, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	for k, vs := range req.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	httpReq.Header.Set("apikey", c.apiKey)
	bearer := req.bearer
	if bearer == "" {
		bearer = c.apiKey
	}
	httpReq.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("バックエンドの呼び出しに失敗しました",
			slog.String("operation", req.operation),
			slog.String("error", err.Error()),
		)
		return 0, nil, fmt.Errorf("%s: %w", req.operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := parseError(resp.StatusCode, body)
		c.logger.Warn("バックエンドがエラーステータスを返しました",
			slog.String("operation", req.operation),
			slog.Int("http_status", resp.StatusCode),
			slog.String("code", apiErr.Code),
		)
		return resp.StatusCode, body, apiErr
	}

	return resp.StatusCode, body, nil
}

// errorBody はPostgREST・GoTrue双方のエラーレスポンス形式を受け付ける。
type errorBody struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Message          string          `json:"message"`
	Msg              string          `json:"msg"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

// parseError はエラーレスポンスを*Errorに変換する。
// GoTrueはcodeに数値を返すことがあるため、文字列の場合のみコードとして採用する。
func parseError(status int, body []byte) *Error {
	e := &Error{StatusCode: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		e.Message = strings.TrimSpace(string(body))
		if e.Message == "" {
			e.Message = http.StatusText(status)
		}
		return e
	}

	var code string
	if err := json.Unmarshal(eb.Code, &code); err == nil {
		e.Code = code
	}
	if e.Code == "" {
		e.Code = eb.ErrorCode
	}
	if e.Code == "" {
		e.Code = eb.Error
	}

	switch {
	case eb.ErrorDescription != "":
		e.Message = eb.ErrorDescription
	case eb.Msg != "":
		e.Message = eb.Msg
	case eb.Message != "":
		e.Message = eb.Message
	case eb.Error != "":
		e.Message = eb.Error
	default:
		e.Message = http.StatusText(status)
	}
	return e
}
