// Package collect implements the per-chat "collect items, then render a
// report" conversation.
//
// A chat is Idle until the start command arrives. While Collecting, photos
// and plain text are appended as items in arrival order; the finalize
// command clears the session at once and hands the items to the renderer
// in the background. Sessions live in process memory only, so a restart
// drops any collection in progress.
package collect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"transrelay/pkg/logger"
	"transrelay/pkg/metrics"
	"transrelay/pkg/notice"
)

// Phase is the state of one chat's session.
type Phase int

const (
	Idle Phase = iota
	Collecting
)

func (p Phase) String() string {
	if p == Collecting {
		return "collecting"
	}
	return "idle"
}

// ItemKind distinguishes collected items.
type ItemKind int

const (
	Image ItemKind = iota
	Text
)

func (k ItemKind) String() string {
	if k == Image {
		return "image"
	}
	return "text"
}

// Item is one collected entry. Payload holds image bytes or UTF-8 text.
type Item struct {
	Kind    ItemKind
	Payload []byte
	Caption string
}

// ErrPayloadUnavailable is returned by fetchers when the asset is gone.
var ErrPayloadUnavailable = errors.New("payload unavailable")

// Fetcher downloads a referenced asset.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// Renderer turns collected items into a document.
type Renderer interface {
	Render(ctx context.Context, name string, items []Item) ([]byte, error)
}

// Outbox delivers the machine's replies. threadID is 0 outside forum topics.
type Outbox interface {
	Notify(ctx context.Context, chatID, threadID int64, text string) error
	Deliver(ctx context.Context, chatID, threadID int64, filename string, data []byte, caption string) error
}

// Event is an inbound message as far as collection is concerned.
type Event struct {
	ChatID   int64
	ThreadID int64
	// Text is the message text, or the caption of a photo.
	Text string
	// ImageRef names the photo to fetch; empty for text messages.
	ImageRef string
}

// Config holds command names and limits.
type Config struct {
	StartCommand    string
	FinalizeCommand string
	CancelCommand   string
	DefaultName     string
	MaxItems        int
	FetchTimeout    time.Duration
	RenderTimeout   time.Duration
	// Extension is appended to the artifact name when delivering.
	Extension string
}

type session struct {
	mu       sync.Mutex
	dead     bool
	items    []Item
	threadID int64
	lastSeen time.Time
}

// Machine owns every chat's session.
type Machine struct {
	cfg      Config
	fetcher  Fetcher
	renderer Renderer
	out      Outbox
	now      func() time.Time

	mu       sync.Mutex
	sessions map[int64]*session

	renders sync.WaitGroup
}

// New returns a Machine with every chat Idle.
func New(cfg Config, fetcher Fetcher, renderer Renderer, out Outbox) *Machine {
	if cfg.StartCommand == "" {
		cfg.StartCommand = "/report_start"
	}
	if cfg.FinalizeCommand == "" {
		cfg.FinalizeCommand = "/report_done"
	}
	if cfg.CancelCommand == "" {
		cfg.CancelCommand = "/report_cancel"
	}
	if cfg.DefaultName == "" {
		cfg.DefaultName = "report"
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = time.Minute
	}
	return &Machine{
		cfg:      cfg,
		fetcher:  fetcher,
		renderer: renderer,
		out:      out,
		now:      time.Now,
		sessions: make(map[int64]*session),
	}
}

// Handle feeds ev to the chat's session. consumed is false when the chat is
// Idle and ev is not a collection command, in which case the caller should
// process the message normally.
func (m *Machine) Handle(ctx context.Context, ev Event) (consumed bool) {
	cmd, arg := ParseCommand(ev.Text)
	if ev.ImageRef != "" {
		cmd, arg = "", ""
	}

	if cmd == m.cfg.StartCommand {
		m.Start(ctx, ev.ChatID, ev.ThreadID)
		return true
	}

	s := m.lock(ev.ChatID, false)
	if s == nil {
		switch cmd {
		case m.cfg.FinalizeCommand:
			m.notify(ctx, ev.ChatID, ev.ThreadID, notice.T("Nothing to render: no items were collected."))
			return true
		case m.cfg.CancelCommand:
			m.notify(ctx, ev.ChatID, ev.ThreadID, notice.T("No collection in progress."))
			return true
		}
		return false
	}
	defer s.mu.Unlock()
	s.lastSeen = m.now()

	switch {
	case cmd == m.cfg.FinalizeCommand:
		m.finalizeLocked(ctx, ev.ChatID, s, arg)
	case cmd == m.cfg.CancelCommand:
		n := len(s.items)
		m.dropLocked(ev.ChatID, s)
		m.notify(ctx, ev.ChatID, s.threadID, notice.T("Collection cancelled, %d items discarded.", n))
	case cmd != "":
		m.notify(ctx, ev.ChatID, s.threadID, notice.T("Collecting: send photos or text, %s [name] to finish or %s to cancel.",
			m.cfg.FinalizeCommand, m.cfg.CancelCommand))
	case ev.ImageRef != "":
		m.submitImageLocked(ctx, ev.ChatID, s, ev.ImageRef, ev.Text)
	default:
		m.submitTextLocked(ctx, ev.ChatID, s, ev.Text)
	}
	return true
}

// Start resets the chat's session to Collecting with no items. Items of a
// session already in progress are discarded and the user is warned.
func (m *Machine) Start(ctx context.Context, chatID, threadID int64) {
	s := m.lock(chatID, true)
	defer s.mu.Unlock()
	if n := len(s.items); n > 0 {
		logger.Warn("collect_restart_discarded", "chat", chatID, "items", n)
		m.notify(ctx, chatID, threadID, notice.N("⚠️ The previous collection was discarded (%d item).",
			"⚠️ The previous collection was discarded (%d items).", n, n))
	}
	s.items = nil
	s.threadID = threadID
	s.lastSeen = m.now()
	logger.Info("collect_started", "chat", chatID)
	m.notify(ctx, chatID, threadID, notice.T("📥 Collecting a report. Send photos or text, then %s [name].", m.cfg.FinalizeCommand))
}

// Submit appends an item directly, bypassing command parsing. It returns
// the running count, or an error when the chat is not collecting.
func (m *Machine) Submit(chatID int64, it Item) (int, error) {
	s := m.lock(chatID, false)
	if s == nil {
		return 0, fmt.Errorf("chat %d is not collecting", chatID)
	}
	defer s.mu.Unlock()
	if m.cfg.MaxItems > 0 && len(s.items) >= m.cfg.MaxItems {
		return len(s.items), fmt.Errorf("collection full (%d items)", len(s.items))
	}
	s.items = append(s.items, it)
	s.lastSeen = m.now()
	metrics.CollectItems.WithLabelValues(it.Kind.String()).Inc()
	return len(s.items), nil
}

// Finalize ends the chat's session and renders its items in the
// background. name falls back to the configured default.
func (m *Machine) Finalize(ctx context.Context, chatID int64, name string) {
	s := m.lock(chatID, false)
	if s == nil {
		m.notify(ctx, chatID, 0, notice.T("Nothing to render: no items were collected."))
		return
	}
	defer s.mu.Unlock()
	m.finalizeLocked(ctx, chatID, s, name)
}

// State returns a chat's phase and item count.
func (m *Machine) State(chatID int64) (Phase, int) {
	s := m.lock(chatID, false)
	if s == nil {
		return Idle, 0
	}
	defer s.mu.Unlock()
	return Collecting, len(s.items)
}

// Expired describes a session dropped by Expire.
type Expired struct {
	ChatID   int64
	ThreadID int64
	Items    int
}

// Expire drops sessions idle for longer than ttl and tells their chats.
func (m *Machine) Expire(ctx context.Context, ttl time.Duration) []Expired {
	cutoff := m.now().Add(-ttl)
	m.mu.Lock()
	candidates := make(map[int64]*session, len(m.sessions))
	for id, s := range m.sessions {
		candidates[id] = s
	}
	m.mu.Unlock()

	var out []Expired
	for id, s := range candidates {
		s.mu.Lock()
		if !s.dead && s.lastSeen.Before(cutoff) {
			out = append(out, Expired{ChatID: id, ThreadID: s.threadID, Items: len(s.items)})
			m.dropLocked(id, s)
		}
		s.mu.Unlock()
	}
	for _, e := range out {
		logger.Info("collect_session_expired", "chat", e.ChatID, "items", e.Items)
		m.notify(ctx, e.ChatID, e.ThreadID, notice.T("⌛ The collection expired after inactivity and was discarded."))
	}
	return out
}

// Wait blocks until background renders finish or ctx ends.
func (m *Machine) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.renders.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Machine) submitImageLocked(ctx context.Context, chatID int64, s *session, ref, caption string) {
	if m.full(ctx, chatID, s) {
		return
	}
	fctx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
	data, err := m.fetcher.Fetch(fctx, ref)
	cancel()
	if err != nil || len(data) == 0 {
		logger.Warn("collect_fetch_failed", "chat", chatID, "ref", ref, "error", err)
		m.notify(ctx, chatID, s.threadID, notice.T("❌ Could not download the photo, it was not added."))
		return
	}
	m.appendLocked(ctx, chatID, s, Item{Kind: Image, Payload: data, Caption: strings.TrimSpace(caption)})
}

func (m *Machine) submitTextLocked(ctx context.Context, chatID int64, s *session, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		m.notify(ctx, chatID, s.threadID, notice.T("Empty item ignored: send a photo or some text."))
		return
	}
	if m.full(ctx, chatID, s) {
		return
	}
	m.appendLocked(ctx, chatID, s, Item{Kind: Text, Payload: []byte(text)})
}

func (m *Machine) full(ctx context.Context, chatID int64, s *session) bool {
	if m.cfg.MaxItems <= 0 || len(s.items) < m.cfg.MaxItems {
		return false
	}
	m.notify(ctx, chatID, s.threadID, notice.T("The collection is full (%d items). Send %s to finish.", len(s.items), m.cfg.FinalizeCommand))
	return true
}

func (m *Machine) appendLocked(ctx context.Context, chatID int64, s *session, it Item) {
	s.items = append(s.items, it)
	metrics.CollectItems.WithLabelValues(it.Kind.String()).Inc()
	n := len(s.items)
	logger.Debug("collect_item_added", "chat", chatID, "kind", it.Kind.String(), "count", n)
	m.notify(ctx, chatID, s.threadID, notice.N("✅ Added. %d item collected.", "✅ Added. %d items collected.", n, n))
}

func (m *Machine) finalizeLocked(ctx context.Context, chatID int64, s *session, name string) {
	items := s.items
	threadID := s.threadID
	m.dropLocked(chatID, s)

	if len(items) == 0 {
		m.notify(ctx, chatID, threadID, notice.T("Nothing to render: no items were collected."))
		return
	}
	name = SanitizeName(name, m.cfg.DefaultName)
	job := uuid.NewString()
	logger.Info("collect_finalize_dispatched", "chat", chatID, "job", job, "name", name, "items", len(items))
	m.notify(ctx, chatID, threadID, notice.T("⏳ Rendering %s with %d items...", name, len(items)))

	m.renders.Add(1)
	go m.render(context.WithoutCancel(ctx), job, chatID, threadID, name, items)
}

func (m *Machine) render(ctx context.Context, job string, chatID, threadID int64, name string, items []Item) {
	defer m.renders.Done()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("collect_render_panic", "job", job, "panic", r)
			metrics.Artifacts.WithLabelValues("error").Inc()
			m.notify(ctx, chatID, threadID, notice.T("❌ Could not render the report."))
		}
	}()

	rctx, cancel := context.WithTimeout(ctx, m.cfg.RenderTimeout)
	defer cancel()
	doc, err := m.renderer.Render(rctx, name, items)
	if err != nil {
		logger.Error("collect_render_failed", "job", job, "chat", chatID, "error", err)
		metrics.Artifacts.WithLabelValues("error").Inc()
		m.notify(ctx, chatID, threadID, notice.T("❌ Could not render the report."))
		return
	}
	if err := m.out.Deliver(rctx, chatID, threadID, name+m.cfg.Extension, doc, name); err != nil {
		logger.Error("collect_deliver_failed", "job", job, "chat", chatID, "error", err)
		metrics.Artifacts.WithLabelValues("error").Inc()
		m.notify(ctx, chatID, threadID, notice.T("❌ Could not send the report."))
		return
	}
	metrics.Artifacts.WithLabelValues("ok").Inc()
	logger.Info("collect_render_delivered", "job", job, "chat", chatID, "bytes", len(doc))
}

// lock returns the chat's session with its mutex held. When create is
// false and the chat is Idle it returns nil.
func (m *Machine) lock(chatID int64, create bool) *session {
	for {
		m.mu.Lock()
		s, ok := m.sessions[chatID]
		if !ok {
			if !create {
				m.mu.Unlock()
				return nil
			}
			s = &session{}
			m.sessions[chatID] = s
		}
		m.mu.Unlock()

		s.mu.Lock()
		if !s.dead {
			return s
		}
		// dropped while we waited; look again
		s.mu.Unlock()
	}
}

// dropLocked returns the chat to Idle. s.mu must be held.
func (m *Machine) dropLocked(chatID int64, s *session) {
	s.dead = true
	s.items = nil
	m.mu.Lock()
	if m.sessions[chatID] == s {
		delete(m.sessions, chatID)
	}
	m.mu.Unlock()
}

func (m *Machine) notify(ctx context.Context, chatID, threadID int64, text string) {
	if m.out == nil {
		return
	}
	if err := m.out.Notify(ctx, chatID, threadID, text); err != nil {
		logger.Warn("collect_notify_failed", "chat", chatID, "error", err)
	}
}

// ParseCommand splits "/cmd@bot arg..." into the lower-cased command and
// the trimmed argument. Text not starting with '/' yields empty strings.
func ParseCommand(text string) (cmd, arg string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	head, rest, _ := strings.Cut(text, " ")
	if at := strings.IndexByte(head, '@'); at > 0 {
		head = head[:at]
	}
	return strings.ToLower(head), strings.TrimSpace(rest)
}

// SanitizeName turns a user-supplied artifact name into a safe file stem.
func SanitizeName(name, fallback string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '.':
			b.WriteRune('_')
		}
		if b.Len() >= 64 {
			break
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return fallback
	}
	return out
}
