package docs

import (
	"bytes"
	_ "embed"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vidnote/vidnote/internal/httputil"
)

//go:embed openapi.yaml
var openapiYAML []byte

const serversLine = "servers:\n  - url: /\n"

const documentPath = "/api/docs/openapi.yaml"

// Handler serves the OpenAPI document and a reference page for it.
type Handler struct {
	document []byte
}

// New renders the document for baseURL. The embedded document targets the
// relative root; a configured base URL replaces it so "try it" requests from
// the reference page reach the right host.
func New(baseURL string) *Handler {
	doc := openapiYAML
	if base := strings.TrimRight(baseURL, "/"); base != "" {
		doc = bytes.Replace(openapiYAML, []byte(serversLine), []byte("servers:\n  - url: "+base+"\n"), 1)
	}
	return &Handler{document: doc}
}

func (h *Handler) HandleSpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(h.document)
}

type pageData struct {
	DocumentURL string
	Nonce       string
}

// HandleDocs loads its viewer from a CDN, so it replaces the API CSP. The
// page scripts carry the request nonce set by the security middleware.
func (h *Handler) HandleDocs(w http.ResponseWriter, r *http.Request) {
	nonce := httputil.NonceFromContext(r.Context())
	if nonce == "" {
		nonce = httputil.GenerateNonce()
	}
	w.Header().Set("Content-Security-Policy",
		"default-src 'self'; "+
			"script-src 'self' https://cdn.jsdelivr.net 'nonce-"+nonce+"'; "+
			"style-src 'self' https://cdn.jsdelivr.net 'unsafe-inline'; "+
			"font-src 'self' https://cdn.jsdelivr.net data:; "+
			"img-src 'self' data: blob:; connect-src 'self'; frame-ancestors 'self';")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, pageData{DocumentURL: documentPath, Nonce: nonce}); err != nil {
		slog.Error("render docs page", "error", err)
	}
}

var pageTemplate = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html><head>
  <title>vidnote API Reference</title>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
</head><body>
  <script id="api-reference" nonce="{{.Nonce}}" data-url="{{.DocumentURL}}"></script>
  <script nonce="{{.Nonce}}" src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
</body></html>`))
