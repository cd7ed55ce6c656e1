package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const singleObjectMediaType = "application/vnd.pgrst.object+json"

// PostgRESTが単一行取得で0件（または複数件）だった場合に返すコード。
const codeSingularity = "PGRST116"

// PostgreSQLの入力構文エラー。不正な形式のIDで検索した場合に返る。
const codeInvalidTextRepresentation = "22P02"

// Query はテーブルに対する1回分のリクエストを組み立てる。
// メソッドチェーンで条件を追加し、Select/Single/Insertのいずれかで実行する。
// 実行後のQueryを再利用してはならない。
type Query struct {
	client *Client
	table  string
	params url.Values
}

// From は指定テーブルに対するQueryを生成する。
func (c *Client) From(table string) *Query {
	return &Query{
		client: c,
		table:  table,
		params: url.Values{},
	}
}

// Eq は完全一致フィルタを追加する。
func (q *Query) Eq(column, value string) *Query {
	q.params.Add(column, "eq."+value)
	return q
}

// ILikeExact は大文字小文字を区別しない完全一致フィルタを追加する。
// LIKEのワイルドカード（%と_）とエスケープ文字はエスケープする。
// PostgRESTは*も%として扱い、エスケープできないため、*を含む値は完全一致（eq）で比較する。
func (q *Query) ILikeExact(column, value string) *Query {
	if strings.Contains(value, "*") {
		return q.Eq(column, value)
	}
	q.params.Add(column, "ilike."+likeEscaper.Replace(value))
	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Order は並び順を指定する。
func (q *Query) Order(column string, ascending bool) *Query {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.params.Set("order", column+"."+dir)
	return q
}

// Limit は取得件数の上限を指定する。
func (q *Query) Limit(n int) *Query {
	q.params.Set("limit", strconv.Itoa(n))
	return q
}

// Select は条件に一致する全行を取得し、destのスライスにデコードする。
func (q *Query) Select(ctx context.Context, dest any) error {
	q.params.Set("select", "*")
	_, body, err := q.client.do(ctx, request{
		operation: "select:" + q.table,
		method:    http.MethodGet,
		path:      restPrefix + q.table,
		query:     q.params,
		bearer:    accessTokenFrom(ctx),
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("%sのレスポンスのパースに失敗しました: %w", q.table, err)
	}
	return nil
}

// Single は条件に完全一致する1行を取得する。
// 該当行がない場合はErrNotFoundを返す。
func (q *Query) Single(ctx context.Context, dest any) error {
	q.params.Set("select", "*")
	_, body, err := q.client.do(ctx, request{
		operation: "single:" + q.table,
		method:    http.MethodGet,
		path:      restPrefix + q.table,
		query:     q.params,
		header:    http.Header{"Accept": []string{singleObjectMediaType}},
		bearer:    accessTokenFrom(ctx),
	})
	if err != nil {
		if isNoRows(err) {
			return ErrNotFound
		}
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("%sのレスポンスのパースに失敗しました: %w", q.table, err)
	}
	return nil
}

// Insert は1行を挿入し、バックエンドが採番した値を含む行をdestにデコードする。
func (q *Query) Insert(ctx context.Context, row any, dest any) error {
	q.params.Set("select", "*")
	_, body, err := q.client.do(ctx, request{
		operation: "insert:" + q.table,
		method:    http.MethodPost,
		path:      restPrefix + q.table,
		query:     q.params,
		body:      []any{row},
		header: http.Header{
			"Accept": []string{singleObjectMediaType},
			"Prefer": []string{"return=representation"},
		},
		bearer: accessTokenFrom(ctx),
	})
	if err != nil {
		return err
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("%sの挿入結果のパースに失敗しました: %w", q.table, err)
	}
	return nil
}

// isNoRows は単一行取得で行が見つからなかったことを示すエラーかどうかを判定する。
func isNoRows(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code == codeSingularity || apiErr.Code == codeInvalidTextRepresentation {
		return true
	}
	return apiErr.StatusCode == http.StatusNotAcceptable
}
