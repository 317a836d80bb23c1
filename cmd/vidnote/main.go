package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/vidnote/vidnote/internal/archive"
	"github.com/vidnote/vidnote/internal/auth"
	"github.com/vidnote/vidnote/internal/capture"
	"github.com/vidnote/vidnote/internal/database"
	"github.com/vidnote/vidnote/internal/media"
	"github.com/vidnote/vidnote/internal/media/cv"
	"github.com/vidnote/vidnote/internal/notify"
	"github.com/vidnote/vidnote/internal/player"
	"github.com/vidnote/vidnote/internal/progress"
	"github.com/vidnote/vidnote/internal/server"
	"github.com/vidnote/vidnote/internal/session"
	"github.com/vidnote/vidnote/internal/slack"
	"github.com/vidnote/vidnote/internal/storage"
	"github.com/vidnote/vidnote/internal/webhook"
)

func main() {
	logger := newLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	slog.SetDefault(logger)

	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := issueToken(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// issueToken prints an access token for the given user, for use as a bearer
// token against a server started with the same JWT_SECRET.
func issueToken(args []string) error {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return errors.New("usage: vidnote token <user-id>")
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return errors.New("JWT_SECRET is required to issue tokens")
	}
	token, err := auth.GenerateToken(secret, args[0], getEnvDuration("TOKEN_DURATION", auth.DefaultTokenDuration))
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func run(logger *slog.Logger) error {
	port := getEnv("PORT", "8080")
	baseURL := getEnv("BASE_URL", "http://localhost:"+port)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := server.Config{
		JWTSecret:  os.Getenv("JWT_SECRET"),
		BaseURL:    baseURL,
		EnableDocs: getEnv("API_DOCS_ENABLED", "false") == "true",
		Logger:     logger,
	}
	if origins := os.Getenv("EMBED_ORIGINS"); origins != "" {
		cfg.EmbedOrigins = strings.Fields(origins)
	}

	var (
		progressStore session.ProgressStore
		deliveryLog   *database.DB
	)
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		db, err := database.Connect(ctx, databaseURL)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(databaseURL); err != nil {
			return fmt.Errorf("database migration failed: %w", err)
		}
		logger.Info("database migrations applied")
		cfg.Pinger = db
		deliveryLog = db
		progressStore = progress.New(db.Pool)

		if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
			store, err := storage.New(ctx, storage.Config{
				Endpoint:       getEnv("S3_ENDPOINT", "http://localhost:3900"),
				PublicEndpoint: os.Getenv("S3_PUBLIC_ENDPOINT"),
				Bucket:         bucket,
				AccessKey:      os.Getenv("S3_ACCESS_KEY"),
				SecretKey:      os.Getenv("S3_SECRET_KEY"),
				Region:         getEnv("S3_REGION", "eu-central-1"),
				MaxObjectBytes: getEnvInt64("MAX_CAPTURE_BYTES", 20*1024*1024),
			})
			if err != nil {
				return fmt.Errorf("storage initialization failed: %w", err)
			}
			if err := store.EnsureBucket(ctx); err != nil {
				return fmt.Errorf("storage bucket check failed: %w", err)
			}
			logger.Info("capture archive enabled", "bucket", bucket)
			cfg.Archive = archive.New(db.Pool, store, logger)
			cfg.StorageEndpoint = getEnv("S3_PUBLIC_ENDPOINT", os.Getenv("S3_ENDPOINT"))
		}
	} else {
		logger.Info("DATABASE_URL not set; progress and capture archive disabled")
	}

	if cfg.Archive != nil {
		var notifiers []notify.CaptureNotifier
		if hookURL := os.Getenv("CAPTURE_WEBHOOK_URL"); hookURL != "" {
			hook := webhook.Config{URL: hookURL, Secret: os.Getenv("CAPTURE_WEBHOOK_SECRET"), Logger: logger}
			if deliveryLog != nil {
				hook.DB = deliveryLog.Pool
			}
			notifiers = append(notifiers, webhook.New(hook))
		}
		if slackURL := os.Getenv("SLACK_WEBHOOK_URL"); slackURL != "" {
			notifiers = append(notifiers, slack.New(slackURL, logger))
		}
		if len(notifiers) > 0 {
			cfg.Notifier = notify.NewMulti(logger, notifiers...)
			logger.Info("capture notifications enabled", "targets", len(notifiers))
		}
	}

	ffmpeg := media.FFmpeg{
		Path:    os.Getenv("FFMPEG_PATH"),
		Timeout: getEnvDuration("FFMPEG_TIMEOUT", 15*time.Second),
	}
	orchestrator := capture.NewOrchestrator(logger,
		capture.DirectSurface(),
		capture.DeepSearch(capture.DeepSearchOptions{
			Resolver:     capture.Resolvers{capture.DataURLResolver{}, ffmpeg},
			ReadyTimeout: getEnvDuration("SURFACE_READY_TIMEOUT", capture.DefaultReadyTimeout),
		}),
		capture.ContainerRaster(media.Screen{}),
		capture.RemoteThumbnail(&http.Client{Timeout: getEnvDuration("THUMBNAIL_TIMEOUT", 10*time.Second)}),
		capture.Placeholder(),
	)
	logger.Info("capture chain", "strategies", orchestrator.Strategies())

	mediaDir := os.Getenv("MEDIA_DIR")
	if mediaDir == "" {
		logger.Info("MEDIA_DIR not set; local file playback disabled")
	}
	cfg.Sessions = session.NewManager(session.Config{
		Capturer:      orchestrator,
		Widgets:       session.NewWidgetFactory(mediaDir, openMedia),
		Progress:      progressStore,
		Logger:        logger,
		SyncInterval:  getEnvDuration("SYNC_INTERVAL", 0),
		SyncThreshold: getEnvFloat("SYNC_THRESHOLD_SECONDS", 0),
		ReadyTimeout:  getEnvDuration("WIDGET_READY_TIMEOUT", 0),
	})
	defer cfg.Sessions.Unmount()

	if dir := os.Getenv("WEB_DIR"); dir != "" {
		if _, err := fs.Stat(os.DirFS(dir), "index.html"); err == nil {
			cfg.WebFS = os.DirFS(dir)
			logger.Info("serving web client", "dir", dir)
		} else {
			logger.Warn("WEB_DIR has no index.html, SPA serving disabled", "dir", dir)
		}
	}

	srv := server.New(cfg)
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("vidnote listening", "port", port, "base_url", baseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return err
	case <-shutdownCh:
	}
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

func openMedia(path string) (player.Media, error) {
	f, err := cv.Open(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
