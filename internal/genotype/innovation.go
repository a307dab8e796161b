package genotype

import "sync"

// SplitPair holds the innovation numbers of the two legs created when a
// connection is split: In enters the new node, Out leaves it.
type SplitPair struct {
	In  uint64
	Out uint64
}

// InnovationTracker hands out innovation numbers for one population and
// remembers, for the current generation, which connections have been split.
// All methods are safe for concurrent use.
type InnovationTracker struct {
	mu     sync.Mutex
	next   uint64
	splits map[uint64]SplitPair
}

// NewInnovationTracker starts numbering after the ids New assigns to the
// initial fully connected topology.
func NewInnovationTracker(inputs, outputs int) *InnovationTracker {
	return &InnovationTracker{
		next:   uint64((inputs + 1) * outputs),
		splits: make(map[uint64]SplitPair),
	}
}

func (t *InnovationTracker) NextID() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nextLocked()
}

func (t *InnovationTracker) RecordSplit(old uint64, pair SplitPair) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.splits[old] = pair
}

func (t *InnovationTracker) LookupSplit(old uint64) (SplitPair, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pair, ok := t.splits[old]
	return pair, ok
}

// SplitIDs returns the pair recorded for old in this generation, allocating
// and recording a fresh pair when none exists.
func (t *InnovationTracker) SplitIDs(old uint64) SplitPair {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pair, ok := t.splits[old]; ok {
		return pair
	}
	pair := SplitPair{In: t.nextLocked(), Out: t.nextLocked()}
	t.splits[old] = pair
	return pair
}

// Clear forgets this generation's splits. The counter keeps advancing.
func (t *InnovationTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.splits = make(map[uint64]SplitPair)
}

// Peek returns the next id without consuming it.
func (t *InnovationTracker) Peek() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.next
}

// Restore moves the counter forward to next; it never moves backwards.
func (t *InnovationTracker) Restore(next uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if next > t.next {
		t.next = next
	}
}

func (t *InnovationTracker) PendingSplits() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.splits)
}

func (t *InnovationTracker) nextLocked() uint64 {
	id := t.next
	t.next++
	return id
}
