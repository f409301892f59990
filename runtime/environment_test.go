package runtime

import (
	"context"
	"math/rand"
	goruntime "runtime"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/wasm3-go/engine"
	"github.com/wippyai/wasm3-go/errors"
)

func TestNewEnvironment_Default(t *testing.T) {
	env, err := NewEnvironment(context.Background())
	if err != nil {
		t.Fatalf("NewEnvironment: %v", err)
	}
	defer env.Close()

	if h := mustHandle(t, env); h == 0 {
		t.Fatal("native handle is null")
	}
}

func TestNewEnvironment_NilLibrary(t *testing.T) {
	_, err := NewEnvironmentWithLibrary(context.Background(), nil)
	if !errors.IsKind(err, errors.KindInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestNewEnvironment_AllocationFailure(t *testing.T) {
	lib := newCountingLibrary(t)
	lib.FailEnvironment.Store(true)

	env, err := NewEnvironmentWithLibrary(context.Background(), lib)
	if err == nil {
		t.Fatal("expected allocation failure")
	}
	if env != nil {
		t.Fatal("no environment may be returned on failure")
	}
	if !errors.IsAllocation(err) {
		t.Fatalf("expected allocation error, got %v", err)
	}
	if !errors.Is(err, &errors.Error{Phase: errors.PhaseEnvironment, Kind: errors.KindAllocation}) {
		t.Fatalf("expected environment phase, got %v", err)
	}
	if n := lib.TotalEnvironmentFrees(); n != 0 {
		t.Fatalf("free called %d times without a handle", n)
	}
}

func TestEnvironment_SingleFreeAnyOrder(t *testing.T) {
	ctx := context.Background()

	for n := 1; n <= 6; n++ {
		lib := newCountingLibrary(t)
		env, err := NewEnvironmentWithLibrary(ctx, lib)
		if err != nil {
			t.Fatalf("NewEnvironment: %v", err)
		}
		h := mustHandle(t, env)

		holders := []*Environment{env}
		for i := 1; i < n; i++ {
			c, err := env.Clone()
			if err != nil {
				t.Fatalf("Clone: %v", err)
			}
			holders = append(holders, c)
		}
		if env.Refs() != int64(n) {
			t.Fatalf("Refs() = %d, want %d", env.Refs(), n)
		}

		rand.Shuffle(len(holders), func(i, j int) { holders[i], holders[j] = holders[j], holders[i] })
		for i, holder := range holders {
			if err := holder.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			want := 0
			if i == len(holders)-1 {
				want = 1
			}
			if got := lib.EnvironmentFrees(h); got != want {
				t.Fatalf("n=%d after %d closes: frees = %d, want %d", n, i+1, got, want)
			}
		}
	}
}

func TestEnvironment_DoubleCloseIsNoop(t *testing.T) {
	lib := newCountingLibrary(t)
	env, _ := NewEnvironmentWithLibrary(context.Background(), lib)
	clone, _ := env.Clone()

	env.Close()
	env.Close()

	if lib.TotalEnvironmentFrees() != 0 {
		t.Fatal("double close of one holder freed the environment")
	}
	clone.Close()
	if lib.TotalEnvironmentFrees() != 1 {
		t.Fatalf("frees = %d, want 1", lib.TotalEnvironmentFrees())
	}
}

func TestEnvironment_IdentityEquality(t *testing.T) {
	lib := newCountingLibrary(t)
	ctx := context.Background()

	a, _ := NewEnvironmentWithLibrary(ctx, lib)
	defer a.Close()
	b, _ := NewEnvironmentWithLibrary(ctx, lib)
	defer b.Close()
	a2, _ := a.Clone()
	defer a2.Close()
	a3, _ := a2.Clone()
	defer a3.Close()

	if a.Equal(b) || b.Equal(a) {
		t.Error("independent environments must not be equal")
	}
	if !a.Equal(a) {
		t.Error("environment must equal itself")
	}
	if !a.Equal(a2) || !a2.Equal(a) || !a.Equal(a3) || !a3.Equal(a2) {
		t.Error("clones must be equal to each other")
	}
	if a.Equal(nil) {
		t.Error("environment must not equal nil")
	}
	var nilEnv *Environment
	if !nilEnv.Equal(nil) {
		t.Error("nil equals nil")
	}
}

func TestEnvironment_UseAfterClose(t *testing.T) {
	lib := newCountingLibrary(t)
	ctx := context.Background()
	env, _ := NewEnvironmentWithLibrary(ctx, lib)
	env.Close()

	if _, err := env.Clone(); !errors.IsReleased(err) {
		t.Fatalf("Clone after Close: expected released error, got %v", err)
	}
	if _, err := env.CreateStore(ctx, 1024, nil); !errors.IsReleased(err) {
		t.Fatalf("CreateStore after Close: expected released error, got %v", err)
	}
	if _, err := env.ParseModule(ctx, minimalWASM); !errors.IsReleased(err) {
		t.Fatalf("ParseModule after Close: expected released error, got %v", err)
	}
	if lib.DoubleFrees() != 0 {
		t.Fatal("use after close caused a double free")
	}
}

func TestEnvironment_ConcurrentCloneClose(t *testing.T) {
	lib := newCountingLibrary(t)
	env, err := NewEnvironmentWithLibrary(context.Background(), lib)
	if err != nil {
		t.Fatalf("NewEnvironment: %v", err)
	}
	h := mustHandle(t, env)

	clones := make([]*Environment, 16)
	for i := range clones {
		clones[i], _ = env.Clone()
	}

	var wg sync.WaitGroup
	for _, c := range clones {
		wg.Add(1)
		go func(c *Environment) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				tmp, err := c.Clone()
				if err != nil {
					t.Errorf("Clone: %v", err)
					return
				}
				tmp.Close()
			}
			c.Close()
		}(c)
	}
	wg.Wait()

	if lib.EnvironmentFrees(h) != 0 {
		t.Fatal("freed while the original holder is open")
	}
	env.Close()
	if lib.EnvironmentFrees(h) != 1 {
		t.Fatalf("frees = %d, want 1", lib.EnvironmentFrees(h))
	}
}

func TestEnvironment_EndToEnd(t *testing.T) {
	lib := newCountingLibrary(t)
	ctx := context.Background()

	e1, err := NewEnvironmentWithLibrary(ctx, lib)
	if err != nil {
		t.Fatalf("NewEnvironment: %v", err)
	}
	e2, err := e1.Clone()
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	e1.Close()

	if lib.TotalEnvironmentFrees() != 0 {
		t.Fatal("environment freed while e2 is open")
	}

	// e2 must still be usable for downstream construction
	store, err := e2.CreateStore(ctx, 1024, "payload")
	if err != nil {
		t.Fatalf("CreateStore on e2: %v", err)
	}
	store.Close()

	e2.Close()
	if n := lib.TotalEnvironmentFrees(); n != 1 {
		t.Fatalf("frees = %d, want 1", n)
	}
	if lib.DoubleFrees() != 0 {
		t.Fatalf("double frees: %d", lib.DoubleFrees())
	}
}

func TestEnvironment_LeakedHolderIsReleased(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	engine.SetLogger(zap.New(core))
	defer engine.SetLogger(nil)

	lib := newCountingLibrary(t)
	func() {
		env, err := NewEnvironmentWithLibrary(context.Background(), lib)
		if err != nil {
			t.Fatalf("NewEnvironment: %v", err)
		}
		_ = env
	}()

	deadline := time.Now().Add(2 * time.Second)
	leakLogged := func() bool {
		return logs.FilterMessage("native handle holder collected without Close").Len() > 0
	}
	for (lib.TotalEnvironmentFrees() == 0 || !leakLogged()) && time.Now().Before(deadline) {
		goruntime.GC()
		time.Sleep(10 * time.Millisecond)
	}

	if n := lib.TotalEnvironmentFrees(); n != 1 {
		t.Fatalf("leaked environment freed %d times, want 1", n)
	}
	if !leakLogged() {
		t.Fatal("expected a leak warning")
	}
}

func TestModule_LeakedModuleAndStoreAreReleased(t *testing.T) {
	lib := newCountingLibrary(t)
	ctx := context.Background()

	env, err := NewEnvironmentWithLibrary(ctx, lib)
	if err != nil {
		t.Fatalf("NewEnvironment: %v", err)
	}
	defer env.Close()

	func() {
		if _, err := env.ParseModule(ctx, addWASM); err != nil {
			t.Fatalf("ParseModule: %v", err)
		}
		if _, err := env.CreateStore(ctx, 1024, nil); err != nil {
			t.Fatalf("CreateStore: %v", err)
		}
	}()

	deadline := time.Now().Add(2 * time.Second)
	for (lib.TotalModuleFrees() == 0 || lib.TotalRuntimeFrees() == 0 || env.Refs() != 1) &&
		time.Now().Before(deadline) {
		goruntime.GC()
		time.Sleep(10 * time.Millisecond)
	}

	if n := lib.TotalModuleFrees(); n != 1 {
		t.Fatalf("module frees = %d, want 1", n)
	}
	if n := lib.TotalRuntimeFrees(); n != 1 {
		t.Fatalf("runtime frees = %d, want 1", n)
	}
	if n := env.Refs(); n != 1 {
		t.Fatalf("env.Refs() = %d, want 1 after leaked holders are collected", n)
	}
	if lib.TotalEnvironmentFrees() != 0 {
		t.Fatal("environment freed while a holder is open")
	}
	if n := lib.DoubleFrees(); n != 0 {
		t.Fatalf("double frees = %d, want 0", n)
	}
}
