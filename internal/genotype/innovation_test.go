package genotype

import (
	"math/rand"
	"sync"
	"testing"
)

func TestInnovationTrackerStartsAfterInitialTopology(t *testing.T) {
	tracker := NewInnovationTracker(2, 3)
	if got := tracker.Peek(); got != 9 {
		t.Fatalf("next id got=%d want=9", got)
	}
	if got := tracker.NextID(); got != 9 {
		t.Fatalf("first id got=%d want=9", got)
	}
	if got := tracker.Peek(); got != 10 {
		t.Fatalf("next id after draw got=%d want=10", got)
	}
}

func TestInnovationTrackerSplitIDsStableWithinGeneration(t *testing.T) {
	tracker := NewInnovationTracker(2, 1)
	first := tracker.SplitIDs(1)
	second := tracker.SplitIDs(1)
	if first != second {
		t.Fatalf("expected same split ids within a generation: got=%+v and %+v", first, second)
	}
	if first.In == first.Out {
		t.Fatalf("expected distinct leg ids, got=%+v", first)
	}
	if pair, ok := tracker.LookupSplit(1); !ok || pair != first {
		t.Fatalf("lookup got=%+v ok=%t want=%+v", pair, ok, first)
	}

	tracker.Clear()
	if tracker.PendingSplits() != 0 {
		t.Fatalf("expected no pending splits after clear, got=%d", tracker.PendingSplits())
	}
	third := tracker.SplitIDs(1)
	if third == first || third.In <= first.Out {
		t.Fatalf("expected fresh ids after clear: before=%+v after=%+v", first, third)
	}
}

func TestInnovationTrackerRecordSplit(t *testing.T) {
	tracker := NewInnovationTracker(1, 1)
	tracker.RecordSplit(0, SplitPair{In: 40, Out: 41})
	if got := tracker.SplitIDs(0); got != (SplitPair{In: 40, Out: 41}) {
		t.Fatalf("expected recorded split, got=%+v", got)
	}
	if got := tracker.Peek(); got != 2 {
		t.Fatalf("recorded split must not consume ids, next got=%d want=2", got)
	}
}

func TestInnovationTrackerRestoreNeverMovesBackwards(t *testing.T) {
	tracker := NewInnovationTracker(2, 2)
	tracker.Restore(50)
	tracker.Restore(10)
	if got := tracker.Peek(); got != 50 {
		t.Fatalf("next id got=%d want=50", got)
	}
}

func TestInnovationTrackerConcurrentDraws(t *testing.T) {
	tracker := NewInnovationTracker(0, 1)
	const workers, draws = 8, 200

	var (
		mu   sync.Mutex
		seen = make(map[uint64]struct{}, workers*draws)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < draws; i++ {
				id := tracker.NextID()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != workers*draws {
		t.Fatalf("expected unique ids, got=%d want=%d", len(seen), workers*draws)
	}
}

func TestSameSplitInSameGenerationSharesInnovations(t *testing.T) {
	// a bias-only genome has a single connection, so every split hits it
	tracker := NewInnovationTracker(0, 1)
	a := newTestGenome(t, 0, 1, 1)
	b := a.Clone()

	if !a.AddNode(rand.New(rand.NewSource(1)), tracker) || !b.AddNode(rand.New(rand.NewSource(2)), tracker) {
		t.Fatal("expected both splits to succeed")
	}
	legsA, legsB := a.Connections()[1:], b.Connections()[1:]
	for i := range legsA {
		if legsA[i].Innovation != legsB[i].Innovation {
			t.Fatalf("leg %d innovation differs: got=%d and %d", i, legsA[i].Innovation, legsB[i].Innovation)
		}
	}
	if legsA[0].Innovation != 1 || legsA[1].Innovation != 2 {
		t.Fatalf("unexpected leg innovations: %d %d", legsA[0].Innovation, legsA[1].Innovation)
	}

	tracker.Clear()
	c := newTestGenome(t, 0, 1, 1)
	if !c.AddNode(rand.New(rand.NewSource(3)), tracker) {
		t.Fatal("expected split to succeed")
	}
	legsC := c.Connections()[1:]
	if legsC[0].Innovation != 3 || legsC[1].Innovation != 4 {
		t.Fatalf("expected fresh innovations after clear, got=%d %d", legsC[0].Innovation, legsC[1].Innovation)
	}
}
