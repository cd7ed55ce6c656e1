// Package security はアプリケーションのセキュリティ機能を提供する。
//
// StoryRenderer はペティションのストーリー（利用者が入力したプレーンテキスト）を
// 表示用のHTMLに変換する。入力はエスケープした上で段落・改行・リンクのみを組み立て、
// 最後にbluemondayの許可リストポリシーを通して安全なタグ以外を除去する。
package security

import (
	"html"
	"html/template"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// StoryRendererService はストーリー表示用HTML生成のインターフェース。
type StoryRendererService interface {
	// Render はプレーンテキストを安全なHTMLに変換する。
	// 空行で段落（p）を区切り、段落内の改行はbrにする。
	// http/httpsのURLはtarget="_blank"付きのリンクになる。
	Render(story string) template.HTML
}

var (
	paragraphSeparator = regexp.MustCompile(`\n\s*\n`)
	urlPattern         = regexp.MustCompile(`https?://[^\s<>"]+`)
)

// StoryRenderer はStoryRendererServiceの実装。
// 生成後は読み取り専用のため複数goroutineから利用できる。
type StoryRenderer struct {
	policy *bluemonday.Policy
}

// NewStoryRenderer はStoryRendererを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, a
//   - aタグ: http/httpsのhrefのみ。target="_blank"とrel="nofollow noreferrer noopener"を付与
func NewStoryRenderer() *StoryRenderer {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https")
	p.AllowRelativeURLs(false)
	p.RequireNoFollowOnLinks(true)
	p.RequireNoReferrerOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)

	return &StoryRenderer{policy: p}
}

// Render はプレーンテキストを安全なHTMLに変換する。
func (r *StoryRenderer) Render(story string) template.HTML {
	story = strings.ReplaceAll(strings.TrimSpace(story), "\r\n", "\n")
	if story == "" {
		return ""
	}

	var b strings.Builder
	for _, para := range paragraphSeparator.Split(story, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		lines := strings.Split(para, "\n")
		for i, line := range lines {
			lines[i] = linkify(html.EscapeString(strings.TrimSpace(line)))
		}
		b.WriteString("<p>")
		b.WriteString(strings.Join(lines, "<br>"))
		b.WriteString("</p>")
	}

	return template.HTML(r.policy.Sanitize(b.String()))
}

// linkify はエスケープ済みテキスト中のURLをaタグに置き換える。
// 末尾の句読点と閉じ括弧はリンクに含めない。
func linkify(escaped string) string {
	return urlPattern.ReplaceAllStringFunc(escaped, func(u string) string {
		trimmed := strings.TrimRight(u, ".,;:!?)")
		rest := u[len(trimmed):]
		return `<a href="` + trimmed + `">` + trimmed + `</a>` + rest
	})
}

// compile-time interface check
var _ StoryRendererService = (*StoryRenderer)(nil)
