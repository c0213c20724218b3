// Package presence tracks which connections have joined the audience.
package presence

import (
	"sync"
	"time"
	"unicode/utf8"

	"github.com/weiawesome/live-relay/internal/domain"
)

// Directory maps connection ids to viewer records.
type Directory struct {
	mu      sync.RWMutex
	viewers map[string]domain.Viewer
	now     func() time.Time
}

// New creates an empty directory.
func New() *Directory {
	return &Directory{
		viewers: make(map[string]domain.Viewer),
		now:     time.Now,
	}
}

// PlaceholderName is the name given to a joiner that supplied none.
func PlaceholderName(connID string) string {
	prefix := connID
	if utf8.RuneCountInString(prefix) > 5 {
		prefix = string([]rune(prefix)[:5])
	}
	return "Viewer_" + prefix
}

// Join inserts or overwrites the record for connID and returns the new count.
func (d *Directory) Join(connID, displayName string) (domain.Viewer, int) {
	if displayName == "" {
		displayName = PlaceholderName(connID)
	}
	v := domain.Viewer{
		ConnID:      connID,
		DisplayName: displayName,
		JoinedAt:    d.now().UTC(),
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.viewers[connID] = v
	return v, len(d.viewers)
}

// Leave removes connID. removed is false when the connection never joined.
func (d *Directory) Leave(connID string) (v domain.Viewer, count int, removed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, removed = d.viewers[connID]
	if removed {
		delete(d.viewers, connID)
	}
	return v, len(d.viewers), removed
}

// Count returns the number of joined connections.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.viewers)
}

// Get returns the record for connID.
func (d *Directory) Get(connID string) (domain.Viewer, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.viewers[connID]
	return v, ok
}
