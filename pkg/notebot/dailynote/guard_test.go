package dailynote

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestSendGuard_OncePerDate(t *testing.T) {
	t.Parallel()
	g := NewSendGuard()

	if !g.ShouldAutoExport("2025-07-25") {
		t.Fatal("first call should reserve the date")
	}
	for i := 0; i < 3; i++ {
		if g.ShouldAutoExport("2025-07-25") {
			t.Fatalf("call %d returned true again", i+2)
		}
	}
	if !g.ShouldAutoExport("2025-07-26") {
		t.Error("dates are independent")
	}

	g.ClearExported("2025-07-25")
	if g.Exported("2025-07-25") {
		t.Error("cleared date still marked")
	}
	if !g.ShouldAutoExport("2025-07-25") {
		t.Error("cleared date should be exportable again")
	}
}

func TestSendGuard_MarkExported(t *testing.T) {
	t.Parallel()
	g := NewSendGuard()
	g.MarkExported("2025-07-25")
	if g.ShouldAutoExport("2025-07-25") {
		t.Error("marked date must not auto-export")
	}
}

func TestSendGuard_Concurrent(t *testing.T) {
	t.Parallel()
	g := NewSendGuard()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.ShouldAutoExport("2025-07-25") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Errorf("winners = %d, want 1", wins.Load())
	}
}
