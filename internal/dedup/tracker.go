package dedup

// Tracker is the set of identities seen during one scrape session. It is
// owned by a single sequential flow and does no locking.
type Tracker struct {
	seen map[string]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{seen: make(map[string]struct{})}
}

func (t *Tracker) IsDuplicate(key string) bool {
	_, ok := t.seen[key]
	return ok
}

// Add records key and reports whether it was new.
func (t *Tracker) Add(key string) bool {
	if t.IsDuplicate(key) {
		return false
	}
	t.seen[key] = struct{}{}
	return true
}

func (t *Tracker) Len() int {
	return len(t.seen)
}
