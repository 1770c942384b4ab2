package sessions

import (
	"sort"

	"github.com/PabloGalante/farum-studio/internal/domain"
)

// ContextSelector is the set of sessions merged into the active session's
// upstream history. It lives only in memory and is guarded by its Manager.
// Keeping the active session out of it is up to the caller.
type ContextSelector struct {
	ids      map[domain.SessionID]struct{}
	revision uint64
}

func NewContextSelector() *ContextSelector {
	return &ContextSelector{ids: make(map[domain.SessionID]struct{})}
}

// Toggle adds id when absent and removes it when present. It reports whether
// id is selected afterwards.
func (c *ContextSelector) Toggle(id domain.SessionID) bool {
	c.revision++
	if _, ok := c.ids[id]; ok {
		delete(c.ids, id)
		return false
	}
	c.ids[id] = struct{}{}
	return true
}

func (c *ContextSelector) Contains(id domain.SessionID) bool {
	_, ok := c.ids[id]
	return ok
}

func (c *ContextSelector) Remove(id domain.SessionID) {
	if _, ok := c.ids[id]; ok {
		delete(c.ids, id)
		c.revision++
	}
}

func (c *ContextSelector) Reset() {
	if len(c.ids) > 0 {
		c.ids = make(map[domain.SessionID]struct{})
		c.revision++
	}
}

// IDs returns the selection sorted for stable output.
func (c *ContextSelector) IDs() []domain.SessionID {
	out := make([]domain.SessionID, 0, len(c.ids))
	for id := range c.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c *ContextSelector) Revision() uint64 {
	return c.revision
}
