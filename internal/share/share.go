// Package share はペティションのSNS共有リンクとリンクコピー通知を提供する。
package share

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Platform は共有先のSNS。
type Platform string

const (
	Facebook Platform = "facebook"
	Twitter  Platform = "twitter"
	LinkedIn Platform = "linkedin"
)

// Link は1件の共有リンク。
type Link struct {
	Platform Platform
	Label    string
	URL      string
}

// ShareText は共有時に添える文面を返す。
func ShareText(title string) string {
	return "Support our petition: " + title
}

// Links は共有ページのURLとタイトルから各SNSの共有リンクを生成する。
// 順序はFacebook、Twitter、LinkedInで固定。
func Links(pageURL, title string) []Link {
	u := url.QueryEscape(pageURL)
	text := url.QueryEscape(ShareText(title))

	return []Link{
		{
			Platform: Facebook,
			Label:    "Facebook",
			URL:      "https://www.facebook.com/sharer/sharer.php?u=" + u,
		},
		{
			Platform: Twitter,
			Label:    "Twitter",
			URL:      "https://twitter.com/intent/tweet?text=" + text + "&url=" + u,
		},
		{
			Platform: LinkedIn,
			Label:    "LinkedIn",
			URL:      "https://www.linkedin.com/sharing/share-offsite/?url=" + u,
		},
	}
}

// PageURL はペティションの共有ページの絶対URLを返す。
func PageURL(baseURL, petitionID string) string {
	return strings.TrimRight(baseURL, "/") + "/share/" + url.PathEscape(petitionID)
}

// CopyNoticeCookie はリンクコピー通知のフラッシュCookie名。
const CopyNoticeCookie = "copy_notice"

// CopyNoticeMessage はリンクコピー後に表示するメッセージ。
const CopyNoticeMessage = "Link copied to clipboard"

// Notices はリンクコピー通知のフラッシュCookieを管理する。
type Notices struct {
	// Duration は通知の表示時間。Cookieの有効期間と自動非表示の両方に使う。
	Duration time.Duration
	Secure   bool
}

// Arm はペティションのリンクコピー通知を有効にする。
// 何度呼んでも同じ状態になり、呼ぶたびに表示時間がリセットされる。
func (n Notices) Arm(w http.ResponseWriter, petitionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CopyNoticeCookie,
		Value:    petitionID,
		Path:     "/share/",
		MaxAge:   n.maxAge(),
		HttpOnly: true,
		Secure:   n.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Consume は指定ペティションの通知が有効かどうかを返し、有効ならCookieを削除する。
func (n Notices) Consume(w http.ResponseWriter, r *http.Request, petitionID string) bool {
	c, err := r.Cookie(CopyNoticeCookie)
	if err != nil || c.Value != petitionID {
		return false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CopyNoticeCookie,
		Value:    "",
		Path:     "/share/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   n.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return true
}

// DismissAfterMillis は通知を自動で閉じるまでのミリ秒数を返す。
func (n Notices) DismissAfterMillis() int64 {
	return n.Duration.Milliseconds()
}

func (n Notices) maxAge() int {
	// ブラウザの往復に余裕を持たせ、最低でも数秒は残す
	secs := int(n.Duration/time.Second) + 5
	return secs
}
