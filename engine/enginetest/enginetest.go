// Package enginetest provides an instrumented engine.Library for lifetime tests.
package enginetest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/wippyai/wasm3-go/engine"
)

var _ engine.Library = (*Library)(nil)

// Library wraps an engine.Library and records every free. It can be told to
// return null handles to simulate allocation failure.
//
// Handles are tracked per issue: the wrapped library may hand out a freed
// handle number again, and that starts a fresh count.
type Library struct {
	engine.Library

	envs     *ledger
	runtimes *ledger
	modules  *ledger
	order    []string
	mu       sync.Mutex

	FailEnvironment atomic.Bool
	FailRuntime     atomic.Bool
}

// ledger tracks the live handles of one kind.
type ledger struct {
	live    map[uint32]bool
	frees   map[uint32]int
	total   int
	doubles int
}

func newLedger() *ledger {
	return &ledger{live: make(map[uint32]bool), frees: make(map[uint32]int)}
}

func (g *ledger) issue(h uint32) {
	if h == 0 {
		return
	}
	g.live[h] = true
	g.frees[h] = 0
}

// consume drops h from the live set without counting a free.
func (g *ledger) consume(h uint32) {
	delete(g.live, h)
}

func (g *ledger) free(h uint32) {
	g.total++
	g.frees[h]++
	if !g.live[h] {
		g.doubles++
		return
	}
	delete(g.live, h)
}

// New wraps inner. A nil inner uses a fresh engine.WazeroLibrary that is
// closed by Close.
func New(inner engine.Library) *Library {
	if inner == nil {
		inner = engine.NewWazeroLibrary(nil)
	}
	return &Library{
		Library:  inner,
		envs:     newLedger(),
		runtimes: newLedger(),
		modules:  newLedger(),
	}
}

// NewEnvironment returns null while FailEnvironment is set.
func (l *Library) NewEnvironment(ctx context.Context) engine.EnvironmentHandle {
	if l.FailEnvironment.Load() {
		return 0
	}
	h := l.Library.NewEnvironment(ctx)
	l.mu.Lock()
	l.envs.issue(uint32(h))
	l.mu.Unlock()
	return h
}

// FreeEnvironment records the free and forwards it.
func (l *Library) FreeEnvironment(env engine.EnvironmentHandle) {
	l.mu.Lock()
	l.envs.free(uint32(env))
	l.order = append(l.order, "environment")
	l.mu.Unlock()
	l.Library.FreeEnvironment(env)
}

// NewRuntime returns null while FailRuntime is set.
func (l *Library) NewRuntime(ctx context.Context, env engine.EnvironmentHandle, stackSlots uint32, userdata any) engine.RuntimeHandle {
	if l.FailRuntime.Load() {
		return 0
	}
	h := l.Library.NewRuntime(ctx, env, stackSlots, userdata)
	l.mu.Lock()
	l.runtimes.issue(uint32(h))
	l.mu.Unlock()
	return h
}

// FreeRuntime records the free and forwards it.
func (l *Library) FreeRuntime(rt engine.RuntimeHandle) {
	l.mu.Lock()
	l.runtimes.free(uint32(rt))
	l.order = append(l.order, "runtime")
	l.mu.Unlock()
	l.Library.FreeRuntime(rt)
}

// ParseModule records the issued module handle.
func (l *Library) ParseModule(ctx context.Context, env engine.EnvironmentHandle, wasm []byte) (engine.ModuleHandle, error) {
	h, err := l.Library.ParseModule(ctx, env, wasm)
	if err != nil {
		return h, err
	}
	l.mu.Lock()
	l.modules.issue(uint32(h))
	l.mu.Unlock()
	return h, nil
}

// LoadModule forwards the load. A loaded module is owned by the runtime and
// leaves the live set. The lock is held across the load so a parse cannot
// reissue the module's handle number before it is dropped here.
func (l *Library) LoadModule(ctx context.Context, rt engine.RuntimeHandle, mod engine.ModuleHandle) (engine.InstanceHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	inst, err := l.Library.LoadModule(ctx, rt, mod)
	if err != nil {
		return inst, err
	}
	l.modules.consume(uint32(mod))
	return inst, nil
}

// FreeModule records the free and forwards it.
func (l *Library) FreeModule(mod engine.ModuleHandle) {
	l.mu.Lock()
	l.modules.free(uint32(mod))
	l.order = append(l.order, "module")
	l.mu.Unlock()
	l.Library.FreeModule(mod)
}

// EnvironmentFrees returns how often env was freed since it was last issued.
func (l *Library) EnvironmentFrees(env engine.EnvironmentHandle) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.envs.frees[uint32(env)]
}

// TotalEnvironmentFrees returns the number of environment frees.
func (l *Library) TotalEnvironmentFrees() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.envs.total
}

// TotalRuntimeFrees returns the number of runtime frees.
func (l *Library) TotalRuntimeFrees() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.runtimes.total
}

// TotalModuleFrees returns the number of module frees.
func (l *Library) TotalModuleFrees() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.modules.total
}

// DoubleFrees returns the number of frees of handles that were not live.
func (l *Library) DoubleFrees() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.envs.doubles + l.runtimes.doubles + l.modules.doubles
}

// FreeOrder returns the kinds of freed handles in call order.
func (l *Library) FreeOrder() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// Close closes the wrapped library if it supports closing.
func (l *Library) Close() error {
	if c, ok := l.Library.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
