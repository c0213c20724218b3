// Package chatlog keeps the bounded, ordered chat history replayed to joiners.
package chatlog

import (
	"sync"
	"time"
	"unicode/utf8"

	"github.com/weiawesome/live-relay/internal/domain"
	"github.com/weiawesome/live-relay/internal/idgen"
)

const (
	DefaultCapacity      = 50
	DefaultMaxTextLength = 500
	DefaultAdminLabel    = "🔴 ADMIN"
	AnonymousName        = "Anonymous"
)

// Config tunes the log. Zero values take the defaults.
type Config struct {
	Capacity      int
	MaxTextLength int // in runes, measured after escaping
	AdminLabel    string
}

// Author describes who is posting. DirectoryName is the presence record name,
// empty when the connection never joined.
type Author struct {
	Role          domain.Role
	DirectoryName string
	ClientName    string
}

// Log is a fixed-capacity ring of chat messages; the oldest entry is evicted
// once it is full.
type Log struct {
	cfg Config
	ids idgen.Generator
	now func() time.Time

	mu    sync.RWMutex
	buf   []domain.ChatMessage
	start int // index of the oldest entry
	size  int
}

// New creates an empty log.
func New(cfg Config, ids idgen.Generator) *Log {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = DefaultMaxTextLength
	}
	if cfg.AdminLabel == "" {
		cfg.AdminLabel = DefaultAdminLabel
	}
	if ids == nil {
		ids = idgen.NewULIDGenerator()
	}
	return &Log{
		cfg: cfg,
		ids: ids,
		now: time.Now,
		buf: make([]domain.ChatMessage, cfg.Capacity),
	}
}

// Append stores msg, evicting the oldest entry when the log is full.
func (l *Log) Append(msg domain.ChatMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.size < len(l.buf) {
		l.buf[(l.start+l.size)%len(l.buf)] = msg
		l.size++
		return
	}
	l.buf[l.start] = msg
	l.start = (l.start + 1) % len(l.buf)
}

// History returns the stored messages, oldest first.
func (l *Log) History() []domain.ChatMessage {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.ChatMessage, l.size)
	for i := 0; i < l.size; i++ {
		out[i] = l.buf[(l.start+i)%len(l.buf)]
	}
	return out
}

// Len returns the number of stored messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Post validates and appends a user or admin message. ok is false when the
// text is empty or too long after sanitizing; nothing is stored then.
func (l *Log) Post(raw string, a Author) (domain.ChatMessage, bool) {
	text := Sanitize(raw)
	if text == "" || utf8.RuneCountInString(text) > l.cfg.MaxTextLength {
		return domain.ChatMessage{}, false
	}

	msg := domain.ChatMessage{
		ID:        idgen.MustGenerate(l.ids),
		Kind:      domain.KindUser,
		Text:      text,
		Timestamp: l.now().UTC(),
	}

	switch {
	case a.Role == domain.RoleAdmin:
		msg.Kind = domain.KindAdmin
		msg.DisplayName = l.cfg.AdminLabel
	case a.DirectoryName != "":
		msg.DisplayName = a.DirectoryName
	case a.ClientName != "":
		msg.DisplayName = a.ClientName
	default:
		msg.DisplayName = AnonymousName
	}

	l.Append(msg)
	return msg, true
}

// System builds and appends a system message.
func (l *Log) System(text string) domain.ChatMessage {
	msg := domain.ChatMessage{
		ID:        idgen.MustGenerate(l.ids),
		Kind:      domain.KindSystem,
		Text:      text,
		Timestamp: l.now().UTC(),
	}
	l.Append(msg)
	return msg
}
