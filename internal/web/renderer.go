// Package web はサーバーサイドレンダリングのHTMLテンプレートと画面モデルを提供する。
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

// ページテンプレート名
const (
	PageLanding   = "landing.html"
	PageDashboard = "dashboard.html"
	PageCreate    = "create.html"
	PageShare     = "share.html"
	PageGone      = "gone.html"
)

const layoutFile = "templates/layout.html"

var funcMap = template.FuncMap{
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
	"formatMoney": FormatMoney,
}

// Renderer はページごとにレイアウトと合成済みのテンプレートを保持する。
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer は埋め込みテンプレートを読み込んでRendererを生成する。
// テンプレートの構文エラーは起動時に検出する。
func NewRenderer() (*Renderer, error) {
	entries, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	pages := make(map[string]*template.Template)
	for _, path := range entries {
		if path == layoutFile {
			continue
		}
		name := strings.TrimPrefix(path, "templates/")
		tmpl, err := template.New(name).Funcs(funcMap).ParseFS(templateFS, layoutFile, path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = tmpl
	}
	return &Renderer{pages: pages}, nil
}

// Render はページを描画してステータスコードとともに書き込む。
// 描画はバッファに対して行い、途中で失敗した場合は何も書き込まずにエラーを返す。
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data any) error {
	tmpl, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page template: %s", page)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("failed to render %s: %w", page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// FormatMoney は評価額を "$150,000" や "$1,234.50" の形式に整形する。
func FormatMoney(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	b.WriteByte('$')
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if frac != "00" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}
