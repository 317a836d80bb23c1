package server

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vidnote/vidnote/internal/archive"
	"github.com/vidnote/vidnote/internal/auth"
	"github.com/vidnote/vidnote/internal/capture"
	"github.com/vidnote/vidnote/internal/docs"
	"github.com/vidnote/vidnote/internal/httputil"
	"github.com/vidnote/vidnote/internal/notify"
	"github.com/vidnote/vidnote/internal/ratelimit"
	"github.com/vidnote/vidnote/internal/session"
	"github.com/vidnote/vidnote/internal/validate"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// CaptureArchive keeps captured frames per user.
type CaptureArchive interface {
	Save(ctx context.Context, userID, source string, c capture.Capture) (archive.Record, error)
	List(ctx context.Context, userID string, limit int) ([]archive.Record, error)
	Delete(ctx context.Context, userID, id string) error
}

type Config struct {
	Pinger          Pinger
	Sessions        *session.Manager
	Archive         CaptureArchive
	Notifier        notify.CaptureNotifier
	EnableDocs      bool
	WebFS           fs.FS
	JWTSecret       string
	BaseURL         string
	StorageEndpoint string
	EmbedOrigins    []string
	Logger          *slog.Logger
}

type Server struct {
	router         chi.Router
	pinger         Pinger
	sessions       *session.Manager
	archive        CaptureArchive
	notifier       notify.CaptureNotifier
	enableDocs     bool
	webFS          fs.FS
	jwtSecret      string
	baseURL        string
	logger         *slog.Logger
	apiLimiter     *ratelimit.Limiter
	captureLimiter *ratelimit.Limiter
}

func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(slogMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders(SecurityConfig{
		BaseURL:         cfg.BaseURL,
		StorageEndpoint: cfg.StorageEndpoint,
		EmbedOrigins:    cfg.EmbedOrigins,
	}))

	s := &Server{
		router:     r,
		pinger:     cfg.Pinger,
		sessions:   cfg.Sessions,
		archive:    cfg.Archive,
		notifier:   cfg.Notifier,
		enableDocs: cfg.EnableDocs,
		webFS:      cfg.WebFS,
		jwtSecret:  cfg.JWTSecret,
		baseURL:    cfg.BaseURL,
		logger:     logger,
	}
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set; API runs unauthenticated as the local user")
	}

	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	if s.apiLimiter != nil {
		s.apiLimiter.Stop()
	}
	if s.captureLimiter != nil {
		s.captureLimiter.Stop()
	}
}

func userOrIP(r *http.Request) string {
	if user := auth.UserIDFromContext(r.Context()); user != "" {
		return "user:" + user
	}
	return "ip:" + ratelimit.ClientIP(r)
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/limits", s.handleLimits)

	if s.enableDocs {
		d := docs.New(s.baseURL)
		s.router.Get("/api/docs", d.HandleDocs)
		s.router.Get("/api/docs/openapi.yaml", d.HandleSpec)
	}

	authenticate := auth.Middleware(s.jwtSecret)

	if s.sessions != nil {
		s.apiLimiter = ratelimit.NewLimiter(20, 40, userOrIP)
		s.captureLimiter = ratelimit.NewLimiter(1, 5, userOrIP)

		s.router.Route("/api/player", func(r chi.Router) {
			r.Use(authenticate)
			r.Use(s.apiLimiter.Middleware)
			r.Get("/", s.handleCurrent)
			r.Post("/mount", s.handleMount)
			r.Delete("/", s.handleUnmount)
			r.Post("/ready", s.handleReady)
			r.Post("/report", s.handleReport)
			r.Put("/container", s.handleContainer)
			r.Post("/seek", s.handleSeek)
			r.Post("/play", s.handlePlay)
			r.Post("/pause", s.handlePause)
			r.Get("/time", s.handleTime)
			r.With(s.captureLimiter.Middleware).Post("/capture", s.handleCapture)
		})
		s.router.Route("/api/playback", func(r chi.Router) {
			r.Use(authenticate)
			r.Get("/", s.handlePlaybackState)
			r.Get("/ws", s.handlePlaybackStream)
		})
	}

	if s.archive != nil {
		s.router.Route("/api/captures", func(r chi.Router) {
			r.Use(authenticate)
			r.Get("/", s.handleListCaptures)
			r.Delete("/{id}", s.handleDeleteCapture)
		})
	}

	if s.webFS != nil {
		spa := newSPAFileServer(s.webFS)
		s.router.NotFound(spa.ServeHTTP)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			s.logger.Error("health check failed", "error", err)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  "database unreachable",
			})
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLimits(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, validate.FieldLimits())
}
