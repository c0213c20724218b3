// Package registry holds the single broadcast session.
package registry

import (
	"sync"
	"time"

	"github.com/weiawesome/live-relay/internal/domain"
)

// DefaultTitle is used when a stream starts without a title and after every stop.
const DefaultTitle = "Live Stream"

// Registry is the authoritative live/offline state of the one broadcast.
// Last writer wins on start; stop is idempotent.
type Registry struct {
	defaultTitle string
	now          func() time.Time

	mu            sync.RWMutex
	isLive        bool
	peerID        string
	title         string
	startedAt     time.Time
	publisherConn string
}

// New creates an offline registry. An empty defaultTitle means DefaultTitle.
func New(defaultTitle string) *Registry {
	if defaultTitle == "" {
		defaultTitle = DefaultTitle
	}
	return &Registry{
		defaultTitle: defaultTitle,
		title:        defaultTitle,
		now:          time.Now,
	}
}

// SetClock overrides the time source.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// StartStream marks the session live, overwriting any previous publisher.
func (r *Registry) StartStream(peerID, title, connID string) domain.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if title == "" {
		title = r.defaultTitle
	}
	r.isLive = true
	r.peerID = peerID
	r.title = title
	r.startedAt = r.now().UTC()
	r.publisherConn = connID

	return r.snapshotLocked()
}

// StopStream resets the session to its offline defaults.
func (r *Registry) StopStream() domain.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.isLive = false
	r.peerID = ""
	r.title = r.defaultTitle
	r.startedAt = time.Time{}
	r.publisherConn = ""

	return r.snapshotLocked()
}

// UpdateTitle sets the title and reports whether it was applied.
// Allowed while offline; the next stop resets it.
func (r *Registry) UpdateTitle(title string) bool {
	if title == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.title = title
	return true
}

// Snapshot returns a copy of the current state.
func (r *Registry) Snapshot() domain.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// PublisherConn returns the connection that last started the stream, or ""
// when offline.
func (r *Registry) PublisherConn() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.publisherConn
}

func (r *Registry) snapshotLocked() domain.Snapshot {
	s := domain.Snapshot{
		IsLive: r.isLive,
		Title:  r.title,
	}
	if r.isLive {
		peerID := r.peerID
		startedAt := r.startedAt
		s.PublisherPeerID = &peerID
		s.StartedAt = &startedAt
	}
	return s
}
