package eventbus

import (
	"sync"

	"github.com/aurabot/aura-core/core/events"
)

// history keeps the most recent events seen by the bus, bounded by limit.
type history struct {
	mu    sync.Mutex
	buf   []*events.Event
	limit int
}

func newHistory(limit int) *history {
	return &history{limit: limit}
}

func (h *history) add(e *events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf = append(h.buf, e)
	if len(h.buf) > h.limit {
		h.buf = h.buf[len(h.buf)-h.limit:]
	}
}

// snapshot returns a copy of the retained events, oldest first.
func (h *history) snapshot() []*events.Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*events.Event, len(h.buf))
	copy(out, h.buf)
	return out
}

func (h *history) clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buf = nil
}
