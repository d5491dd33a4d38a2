package registry

import (
	"sync"
	"time"
)

// CooldownPeriod is the quiet window after a successful start or stop dispatch
// during which further actions on the same instance are skipped.
const CooldownPeriod = 10 * time.Second

// CooldownTracker remembers the last action time per instance. Entries are
// never evicted; the instance universe is small and bounded.
type CooldownTracker struct {
	mu   sync.Mutex
	last map[string]time.Time
	now  func() time.Time
}

func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{
		last: make(map[string]time.Time),
		now:  time.Now,
	}
}

// IsCoolingDown reports whether the instance acted within the cooldown period.
// An instance with no recorded action is never cooling down.
func (t *CooldownTracker) IsCoolingDown(instanceID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.last[instanceID]
	if !ok {
		return false
	}
	return t.now().Sub(last) < CooldownPeriod
}

// MarkActed records a successful dispatch for the instance.
func (t *CooldownTracker) MarkActed(instanceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[instanceID] = t.now()
}
