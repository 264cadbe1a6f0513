package engine_test

import (
	"testing"
	"time"

	"docsync-go/internal/engine"
	"docsync-go/internal/testutil"
)

func ms(v int64) time.Time { return time.UnixMilli(v) }

func TestEquivalenceRegistry(t *testing.T) {
	t.Run("marked pair reports equivalent", func(t *testing.T) {
		r := engine.NewEquivalenceRegistry(testutil.NewMemoryKV())
		if err := r.Mark("notes/a.md", ms(100), ms(205)); err != nil {
			t.Fatalf("Mark() error = %v", err)
		}
		if !r.IsEquivalent("notes/a.md", []time.Time{ms(100), ms(205)}) {
			t.Error("IsEquivalent() = false, want true")
		}
	})

	t.Run("transitive merge extends the set", func(t *testing.T) {
		r := engine.NewEquivalenceRegistry(testutil.NewMemoryKV())
		if err := r.Mark("notes/a.md", ms(100), ms(205)); err != nil {
			t.Fatalf("Mark() error = %v", err)
		}
		if err := r.Mark("notes/a.md", ms(205), ms(9999)); err != nil {
			t.Fatalf("Mark() error = %v", err)
		}
		if !r.IsEquivalent("notes/a.md", []time.Time{ms(100), ms(9999)}) {
			t.Error("IsEquivalent(100, 9999) = false, want true after transitive merge")
		}
		if !r.IsEquivalent("notes/a.md", []time.Time{ms(100), ms(205), ms(9999)}) {
			t.Error("IsEquivalent(all) = false, want true")
		}
	})

	t.Run("disjoint pair replaces the prior set", func(t *testing.T) {
		r := engine.NewEquivalenceRegistry(testutil.NewMemoryKV())
		if err := r.Mark("notes/a.md", ms(100), ms(205)); err != nil {
			t.Fatalf("Mark() error = %v", err)
		}
		if err := r.Mark("notes/a.md", ms(5000), ms(5100)); err != nil {
			t.Fatalf("Mark() error = %v", err)
		}
		if r.IsEquivalent("notes/a.md", []time.Time{ms(100), ms(205)}) {
			t.Error("old pair survived an unrelated replacement")
		}
		if !r.IsEquivalent("notes/a.md", []time.Time{ms(5000), ms(5100)}) {
			t.Error("new pair not registered")
		}
	})

	t.Run("single unregistered value forces re-evaluation", func(t *testing.T) {
		r := engine.NewEquivalenceRegistry(testutil.NewMemoryKV())
		if err := r.Mark("notes/a.md", ms(100), ms(205)); err != nil {
			t.Fatalf("Mark() error = %v", err)
		}
		if r.IsEquivalent("notes/a.md", []time.Time{ms(100), ms(206)}) {
			t.Error("IsEquivalent() = true for unregistered value")
		}
	})

	t.Run("equal timestamps are a no-op", func(t *testing.T) {
		kv := testutil.NewMemoryKV()
		r := engine.NewEquivalenceRegistry(kv)
		if err := r.Mark("notes/a.md", ms(100), ms(100)); err != nil {
			t.Fatalf("Mark() error = %v", err)
		}
		if kv.Len() != 0 {
			t.Errorf("kv.Len() = %d, want 0 for equal timestamps", kv.Len())
		}
	})

	t.Run("unmark clears the set", func(t *testing.T) {
		r := engine.NewEquivalenceRegistry(testutil.NewMemoryKV())
		if err := r.Mark("notes/a.md", ms(100), ms(205)); err != nil {
			t.Fatalf("Mark() error = %v", err)
		}
		if err := r.Unmark("notes/a.md"); err != nil {
			t.Fatalf("Unmark() error = %v", err)
		}
		if r.IsEquivalent("notes/a.md", []time.Time{ms(100), ms(205)}) {
			t.Error("IsEquivalent() = true after Unmark")
		}
		if err := r.Mark("notes/a.md", ms(100), ms(205)); err != nil {
			t.Fatalf("re-Mark() error = %v", err)
		}
		if !r.IsEquivalent("notes/a.md", []time.Time{ms(100), ms(205)}) {
			t.Error("IsEquivalent() = false after re-registration")
		}
	})

	t.Run("sets are partitioned per path", func(t *testing.T) {
		r := engine.NewEquivalenceRegistry(testutil.NewMemoryKV())
		if err := r.Mark("notes/a.md", ms(100), ms(205)); err != nil {
			t.Fatalf("Mark() error = %v", err)
		}
		if r.IsEquivalent("notes/b.md", []time.Time{ms(100), ms(205)}) {
			t.Error("equivalence leaked across paths")
		}
	})

	t.Run("marks survive a registry reload from the same store", func(t *testing.T) {
		kv := testutil.NewMemoryKV()
		r := engine.NewEquivalenceRegistry(kv)
		if err := r.Mark("notes/a.md", ms(100), ms(205)); err != nil {
			t.Fatalf("Mark() error = %v", err)
		}
		reloaded := engine.NewEquivalenceRegistry(kv)
		if !reloaded.IsEquivalent("notes/a.md", []time.Time{ms(100), ms(205)}) {
			t.Error("IsEquivalent() = false after reload")
		}
	})
}
