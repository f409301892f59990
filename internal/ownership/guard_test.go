package ownership

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestGuard_ReleaseOnce(t *testing.T) {
	var calls []int
	g := NewGuard(42, func(h int) { calls = append(calls, h) })

	if !g.Armed() {
		t.Fatal("new guard should be armed")
	}
	if g.Handle() != 42 {
		t.Fatalf("Handle() = %d, want 42", g.Handle())
	}
	if !g.Release() {
		t.Fatal("first Release should report true")
	}
	if g.Release() {
		t.Fatal("second Release should report false")
	}
	if len(calls) != 1 || calls[0] != 42 {
		t.Fatalf("release calls = %v, want [42]", calls)
	}
	if g.Armed() {
		t.Fatal("released guard should not be armed")
	}
}

func TestGuard_Take(t *testing.T) {
	released := 0
	g := NewGuard("mod", func(string) { released++ })

	h, ok := g.Take()
	if !ok || h != "mod" {
		t.Fatalf("Take() = %q, %v", h, ok)
	}
	if g.Release() {
		t.Fatal("Release after Take should not run")
	}
	if released != 0 {
		t.Fatalf("release ran %d times after Take", released)
	}
	if _, ok := g.Take(); ok {
		t.Fatal("second Take should fail")
	}
}

func TestGuard_TakeAfterRelease(t *testing.T) {
	g := NewGuard(1, nil)
	g.Release()
	if _, ok := g.Take(); ok {
		t.Fatal("Take after Release should fail")
	}
}

func TestGuard_ConcurrentRelease(t *testing.T) {
	var calls atomic.Int32
	g := NewGuard(7, func(int) { calls.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Release()
		}()
	}
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Fatalf("release ran %d times, want 1", n)
	}
}
