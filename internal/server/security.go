package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/vidnote/vidnote/internal/httputil"
)

// DefaultEmbedOrigins are the hosted players the web client may frame.
var DefaultEmbedOrigins = []string{
	"https://www.youtube.com",
	"https://www.youtube-nocookie.com",
}

type SecurityConfig struct {
	BaseURL         string
	StorageEndpoint string
	EmbedOrigins    []string
}

func securityHeaders(cfg SecurityConfig) func(http.Handler) http.Handler {
	strictTransport := strings.HasPrefix(cfg.BaseURL, "https://")

	storageSuffix := ""
	if cfg.StorageEndpoint != "" {
		storageSuffix = " " + cfg.StorageEndpoint
	}

	embeds := cfg.EmbedOrigins
	if embeds == nil {
		embeds = DefaultEmbedOrigins
	}
	frameSrc := "'self'"
	if len(embeds) > 0 {
		frameSrc += " " + strings.Join(embeds, " ")
	}

	wsSuffix := ""
	if origin := websocketOrigin(cfg.BaseURL); origin != "" {
		wsSuffix = " " + origin
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nonce := httputil.GenerateNonce()
			ctx := httputil.ContextWithNonce(r.Context(), nonce)

			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "SAMEORIGIN")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), autoplay=(self), fullscreen=(self), display-capture=(self)")

			csp := fmt.Sprintf(
				"default-src 'self'; img-src 'self' data: blob:%s; media-src 'self' blob:; frame-src %s; script-src 'self' 'nonce-%s'; style-src 'self' 'nonce-%s'; connect-src 'self'%s%s; frame-ancestors 'self';",
				storageSuffix, frameSrc, nonce, nonce, storageSuffix, wsSuffix,
			)
			w.Header().Set("Content-Security-Policy", csp)

			if strictTransport {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// websocketOrigin maps an http(s) base URL to its ws(s) origin.
func websocketOrigin(baseURL string) string {
	base := strings.TrimSuffix(baseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return ""
}
