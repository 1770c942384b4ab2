package sessions

import (
	"sync"
	"time"

	"github.com/PabloGalante/farum-studio/internal/domain"
)

// Clock hands out strictly increasing millisecond timestamps. Session ids and
// message keys both come from it, so two calls never collide even within the
// same millisecond.
type Clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last domain.Timestamp
}

func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

func (c *Clock) Next() domain.Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := c.now().UnixMilli()
	if ts <= c.last {
		ts = c.last + 1
	}
	c.last = ts
	return ts
}
