package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vidnote/vidnote/internal/capture"
	"github.com/vidnote/vidnote/internal/control"
	"github.com/vidnote/vidnote/internal/player"
	"github.com/vidnote/vidnote/internal/timesync"
)

var (
	ErrNotMounted = errors.New("no player mounted")
	ErrNotEmbed   = errors.New("mounted player is not an embed")
)

// ProgressStore persists the last known position per user and source.
type ProgressStore interface {
	Load(ctx context.Context, userID, source string) (float64, bool, error)
	Follow(ctx context.Context, userID, source string, states <-chan timesync.PlaybackState)
}

type Config struct {
	Registry      *control.Registry
	Capturer      control.Capturer
	Widgets       WidgetFactory
	Progress      ProgressStore
	Logger        *slog.Logger
	SyncInterval  time.Duration
	SyncThreshold float64
	ReadyTimeout  time.Duration
	ReadyPoll     time.Duration
}

type MountRequest struct {
	UserID string
	Source string
	Title  string
}

type Info struct {
	ID          string  `json:"id"`
	Source      string  `json:"source"`
	Title       string  `json:"title"`
	Kind        string  `json:"kind"`
	Ready       bool    `json:"ready"`
	ResumedFrom float64 `json:"resumedFrom,omitempty"`
}

type session struct {
	id        string
	req       MountRequest
	widget    player.Widget
	adapter   *player.Adapter
	policy    *timesync.Policy
	container *container
	ctx       context.Context
	cancel    context.CancelFunc
	activated sync.Once
	handle    atomic.Pointer[control.Handle]
	resumed   atomic.Value
}

func (s *session) info() Info {
	kind := "file"
	if _, ok := s.widget.(*player.EmbedWidget); ok {
		kind = "embed"
	}
	resumed, _ := s.resumed.Load().(float64)
	return Info{
		ID:          s.id,
		Source:      s.req.Source,
		Title:       s.req.Title,
		Kind:        kind,
		Ready:       s.handle.Load() != nil,
		ResumedFrom: resumed,
	}
}

// Manager owns the single mounted player. Mounting replaces whatever was
// mounted before. One Store outlives mounts so playback subscribers keep
// their stream across them.
type Manager struct {
	cfg    Config
	logger *slog.Logger
	store  *timesync.Store

	mu      sync.Mutex
	current *session
}

func NewManager(cfg Config) *Manager {
	if cfg.Registry == nil {
		cfg.Registry = control.NewRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Capturer == nil {
		cfg.Capturer = capture.NewOrchestrator(cfg.Logger)
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = timesync.DefaultInterval
	}
	if cfg.SyncThreshold <= 0 {
		cfg.SyncThreshold = timesync.DefaultThreshold
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 10 * time.Second
	}
	if cfg.ReadyPoll <= 0 {
		cfg.ReadyPoll = 100 * time.Millisecond
	}
	return &Manager{cfg: cfg, logger: cfg.Logger, store: timesync.NewStore()}
}

func (m *Manager) Registry() *control.Registry { return m.cfg.Registry }

// Mount opens a widget for req.Source and makes it current. The control
// handle is published once the widget is ready, which for file playback is
// immediately and for embeds when the browser calls MarkReady.
func (m *Manager) Mount(ctx context.Context, req MountRequest) (Info, error) {
	if m.cfg.Widgets == nil {
		return Info{}, errors.New("no widget factory configured")
	}
	widget, err := m.cfg.Widgets(ctx, req.Source)
	if err != nil {
		return Info{}, fmt.Errorf("mount %s: %w", req.Source, err)
	}

	id := uuid.NewString()
	logger := m.logger.With("session", id)
	policy := timesync.NewPolicy(m.store, m.cfg.SyncThreshold)
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &session{
		id:        id,
		req:       req,
		widget:    widget,
		adapter:   player.NewAdapter(widget, policy, logger),
		policy:    policy,
		container: &container{},
		ctx:       runCtx,
		cancel:    cancel,
	}

	m.mu.Lock()
	prev := m.current
	m.current = s
	m.mu.Unlock()
	if prev != nil {
		m.teardown(prev)
	}

	logger.Info("player mounted", "source", req.Source, "kind", s.info().Kind)

	if widget.Ready() {
		m.activate(s)
	} else {
		go m.awaitReady(s)
	}
	return s.info(), nil
}

// Unmount tears down the current player. It reports false when nothing was
// mounted.
func (m *Manager) Unmount() bool {
	m.mu.Lock()
	s := m.current
	m.current = nil
	m.mu.Unlock()
	if s == nil {
		return false
	}
	m.teardown(s)
	return true
}

// Current describes the mounted player.
func (m *Manager) Current() (Info, bool) {
	s := m.session()
	if s == nil {
		return Info{}, false
	}
	return s.info(), true
}

// MarkReady is the browser signalling that the embed finished loading.
func (m *Manager) MarkReady() (Info, error) {
	s := m.session()
	if s == nil {
		return Info{}, ErrNotMounted
	}
	embed, ok := s.widget.(*player.EmbedWidget)
	if !ok {
		return Info{}, ErrNotEmbed
	}
	embed.MarkReady()
	m.activate(s)
	return s.info(), nil
}

// Report feeds a position observed by the browser into the embed and the
// sync policy. Play state changes count as play and pause events.
func (m *Manager) Report(seconds float64, playing bool) error {
	s := m.session()
	if s == nil {
		return ErrNotMounted
	}
	embed, ok := s.widget.(*player.EmbedWidget)
	if !ok {
		return ErrNotEmbed
	}
	if !embed.Ready() {
		return player.ErrNotReady
	}

	was := embed.Playing()
	embed.Report(seconds, playing)
	switch {
	case playing && !was:
		s.policy.Handle(timesync.Play(seconds))
	case !playing && was:
		s.policy.Handle(timesync.Pause(seconds))
	default:
		s.policy.Handle(timesync.Tick(seconds))
	}
	return nil
}

// UpdateContainer replaces the browser's snapshot of the player subtree.
func (m *Manager) UpdateContainer(markup string, bounds image.Rectangle, isolated bool) error {
	s := m.session()
	if s == nil {
		return ErrNotMounted
	}
	s.container.update(markup, bounds, isolated)
	return nil
}

func (m *Manager) State() timesync.PlaybackState {
	return m.store.Get()
}

func (m *Manager) Subscribe() (<-chan timesync.PlaybackState, func()) {
	return m.store.Subscribe()
}

func (m *Manager) session() *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Manager) awaitReady(s *session) {
	deadline := time.NewTimer(m.cfg.ReadyTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(m.cfg.ReadyPoll)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-deadline.C:
			if s.handle.Load() == nil {
				m.logger.Warn("player not ready in time", "session", s.id, "timeout", m.cfg.ReadyTimeout)
			}
			return
		case <-ticker.C:
			if s.handle.Load() != nil {
				return
			}
			if s.widget.Ready() {
				m.activate(s)
				return
			}
		}
	}
}

func (m *Manager) activate(s *session) {
	s.activated.Do(func() {
		m.resume(s)

		h := control.NewHandle(s.adapter, m.cfg.Capturer, target{widget: s.widget, container: s.container}, s.req.Title, s.req.Source)

		m.mu.Lock()
		if m.current != s {
			m.mu.Unlock()
			return
		}
		s.handle.Store(h)
		m.cfg.Registry.Set(h)
		m.mu.Unlock()

		m.logger.Info("player ready", "session", s.id)

		go timesync.NewSampler(s.adapter, s.policy, m.cfg.SyncInterval).Run(s.ctx)
		if m.cfg.Progress != nil && s.req.UserID != "" {
			states, cancel := m.store.Subscribe()
			<-states
			go func() {
				defer cancel()
				m.cfg.Progress.Follow(s.ctx, s.req.UserID, s.req.Source, states)
			}()
		}
	})
}

func (m *Manager) resume(s *session) {
	if m.cfg.Progress == nil || s.req.UserID == "" {
		return
	}
	pos, ok, err := m.cfg.Progress.Load(s.ctx, s.req.UserID, s.req.Source)
	if err != nil {
		m.logger.Warn("loading progress failed", "session", s.id, "error", err)
		return
	}
	if ok && pos > 0 {
		s.adapter.SeekTo(s.ctx, pos)
		s.resumed.Store(pos)
	}
}

func (m *Manager) teardown(s *session) {
	s.cancel()
	if h := s.handle.Load(); h != nil {
		m.cfg.Registry.Clear(h)
	}
	if err := s.widget.Close(); err != nil {
		m.logger.Warn("closing widget failed", "session", s.id, "error", err)
	}
	m.logger.Info("player unmounted", "session", s.id)
}
