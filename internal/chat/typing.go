package chat

import (
	"sync"
	"time"

	"voyago/backend/internal/models"
)

// IsTyping applies the reader-side staleness rule: a flag older than
// staleAfter reads as false whatever its stored value.
func IsTyping(p *models.TypingPresence, now time.Time, staleAfter time.Duration) bool {
	if p == nil || !p.IsTyping {
		return false
	}
	return now.Sub(p.UpdatedAt) < staleAfter
}

// PresenceFunc writes a typing flag for one user in one conversation.
type PresenceFunc func(conversationKey, userID string, typing bool)

// TypingTracker is the writer side of typing presence. The first keystroke
// sets the flag immediately; it is cleared after idle has passed with no
// further keystrokes, or at once by Stop. While keystrokes keep coming the
// flag is re-published every refresh so readers never see it go stale.
type TypingTracker struct {
	idle    time.Duration
	refresh time.Duration
	publish PresenceFunc

	mu      sync.Mutex
	entries map[string]*typingEntry
}

type typingEntry struct {
	timer     *time.Timer
	published time.Time
}

// NewTypingTracker creates a tracker that reports changes through publish.
// A refresh of zero or less never re-publishes.
func NewTypingTracker(idle, refresh time.Duration, publish PresenceFunc) *TypingTracker {
	return &TypingTracker{
		idle:    idle,
		refresh: refresh,
		publish: publish,
		entries: make(map[string]*typingEntry),
	}
}

func trackerKey(conversationKey, userID string) string {
	return conversationKey + "_" + userID
}

// Keystroke records activity and (re)arms the idle timer.
func (t *TypingTracker) Keystroke(conversationKey, userID string) {
	key := trackerKey(conversationKey, userID)
	now := time.Now()

	t.mu.Lock()
	entry, active := t.entries[key]
	if active {
		entry.timer.Stop()
	} else {
		entry = &typingEntry{}
		t.entries[key] = entry
	}
	var fired *time.Timer
	fired = time.AfterFunc(t.idle, func() {
		t.mu.Lock()
		if e, ok := t.entries[key]; !ok || e.timer != fired {
			t.mu.Unlock()
			return
		}
		delete(t.entries, key)
		t.mu.Unlock()
		t.publish(conversationKey, userID, false)
	})
	entry.timer = fired

	due := !active || (t.refresh > 0 && now.Sub(entry.published) >= t.refresh)
	if due {
		entry.published = now
	}
	t.mu.Unlock()

	if due {
		t.publish(conversationKey, userID, true)
	}
}

// Stop clears the flag immediately, as on send.
func (t *TypingTracker) Stop(conversationKey, userID string) {
	key := trackerKey(conversationKey, userID)

	t.mu.Lock()
	entry, active := t.entries[key]
	if active {
		entry.timer.Stop()
		delete(t.entries, key)
	}
	t.mu.Unlock()

	if active {
		t.publish(conversationKey, userID, false)
	}
}

// Active reports whether the tracker currently holds the flag set.
func (t *TypingTracker) Active(conversationKey, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[trackerKey(conversationKey, userID)]
	return ok
}
