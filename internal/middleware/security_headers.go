package middleware

import (
	"net/http"
	"strings"
)

// apiContentSecurityPolicy はJSONのみを返すAPI向けのCSP。
// レスポンスがブラウザでドキュメントとして解釈されても何も読み込ませない。
const apiContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"

// NewSecurityHeadersMiddleware はJSON APIのレスポンスにセキュリティヘッダーを付与するミドルウェアを返す。
// /api/ 配下はタイマーの残り時間が刻々と変わるため、キャッシュさせない。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Content-Security-Policy", apiContentSecurityPolicy)
			h.Set("Referrer-Policy", "no-referrer")
			if strings.HasPrefix(r.URL.Path, "/api/") {
				h.Set("Cache-Control", "no-store")
			}
			next.ServeHTTP(w, r)
		})
	}
}
