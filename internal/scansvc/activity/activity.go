package activity

import (
	"sync"
	"time"

	"github.com/gpellegrino/scanner-services/internal/scansvc/models"
)

const maxEntries = 200

// Log is the bounded most-recent-first feed of scan attempts backing the
// /recent endpoint and the dashboard.
type Log struct {
	mu      sync.Mutex
	entries []models.ScanEvent
	now     func() time.Time
}

func NewLog() *Log {
	return &Log{now: time.Now}
}

// Append inserts the event at the front and truncates to the newest 200.
func (l *Log) Append(code, title string) models.ScanEvent {
	ev := models.ScanEvent{
		Code:  code,
		Title: title,
		When:  l.now().Format("2006-01-02 15:04:05"),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append([]models.ScanEvent{ev}, l.entries...)
	if len(l.entries) > maxEntries {
		l.entries = l.entries[:maxEntries]
	}
	return ev
}

// Snapshot returns a copy of the current feed, newest first.
func (l *Log) Snapshot() []models.ScanEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.ScanEvent, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
