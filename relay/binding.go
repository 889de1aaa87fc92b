package relay

import "sync"

// ReplyBindingTable holds at most one pending reply target per moderator.
// It lives in process memory only; a restart drops pending bindings and the
// moderator has to press Reply again.
type ReplyBindingTable struct {
	mu       sync.Mutex
	bindings map[int64]int64
}

// NewReplyBindingTable returns an empty table.
func NewReplyBindingTable() *ReplyBindingTable {
	return &ReplyBindingTable{bindings: make(map[int64]int64)}
}

// Open binds moderatorID to targetUserID, replacing any pending binding.
// It returns the replaced target, if any.
func (t *ReplyBindingTable) Open(moderatorID, targetUserID int64) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev, had := t.bindings[moderatorID]
	t.bindings[moderatorID] = targetUserID
	return prev, had
}

// Take removes and returns the binding for moderatorID.
func (t *ReplyBindingTable) Take(moderatorID int64) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	target, ok := t.bindings[moderatorID]
	if ok {
		delete(t.bindings, moderatorID)
	}
	return target, ok
}

// Has reports whether moderatorID holds a binding without consuming it.
func (t *ReplyBindingTable) Has(moderatorID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.bindings[moderatorID]
	return ok
}

// Pending reports the number of open bindings.
func (t *ReplyBindingTable) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.bindings)
}
