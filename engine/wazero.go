package engine

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/wasm3-go/errors"
	"github.com/wippyai/wasm3-go/resource"
)

// Handle kinds in the library's table.
const (
	kindEnvironment uint32 = iota + 1
	kindRuntime
	kindModule
	kindInstance
)

func kindName(kind uint32) string {
	switch kind {
	case kindEnvironment:
		return "environment"
	case kindRuntime:
		return "runtime"
	case kindModule:
		return "module"
	case kindInstance:
		return "instance"
	default:
		return "unknown"
	}
}

var _ Library = (*WazeroLibrary)(nil)

// WazeroLibrary implements Library on top of wazero.
//
// An environment owns a compilation cache and a parsing runtime. Runtimes
// created from it share the cache, so modules parsed once are compiled once.
// Native objects live in a handle table; freeing a handle removes it.
type WazeroLibrary struct {
	table       *resource.UnifiedTable
	unsubscribe func()
	cfg         Config
}

// NewWazeroLibrary creates a library. A nil cfg uses DefaultConfig.
func NewWazeroLibrary(cfg *Config) *WazeroLibrary {
	l := &WazeroLibrary{
		table: resource.NewTable(),
		cfg:   cfg.normalize(),
	}
	l.unsubscribe = l.table.Subscribe(resource.ObserverFunc(l.onEvent))
	return l
}

func (l *WazeroLibrary) onEvent(e resource.Event) {
	switch e.Type {
	case resource.EventInvalidFree:
		Logger().Warn("free of unknown native handle", zap.Uint32("handle", uint32(e.Handle)))
	default:
		if ce := Logger().Check(zap.DebugLevel, "native handle "+e.Type.String()); ce != nil {
			ce.Write(zap.Uint32("handle", uint32(e.Handle)), zap.String("kind", kindName(e.Kind)))
		}
	}
}

type wazeroEnvironment struct {
	cache  wazero.CompilationCache
	config wazero.RuntimeConfig
	parser wazero.Runtime
	deps   atomic.Int32
}

func (e *wazeroEnvironment) Drop() {
	ctx := context.Background()
	if err := multierr.Append(e.parser.Close(ctx), e.cache.Close(ctx)); err != nil {
		Logger().Warn("close environment", zap.Error(err))
	}
}

type wazeroRuntime struct {
	env       *wazeroEnvironment
	rt        wazero.Runtime
	userdata  any
	instances []InstanceHandle
	mu        sync.Mutex
}

func (r *wazeroRuntime) Drop() {
	if err := r.rt.Close(context.Background()); err != nil {
		Logger().Warn("close runtime", zap.Error(err))
	}
	r.env.deps.Add(-1)
}

type wazeroModule struct {
	env      *wazeroEnvironment
	compiled wazero.CompiledModule
	name     string
	wasm     []byte
	loaded   bool
}

func (m *wazeroModule) Drop() {
	if err := m.compiled.Close(context.Background()); err != nil {
		Logger().Warn("close module", zap.Error(err))
	}
	if !m.loaded {
		m.env.deps.Add(-1)
	}
}

type wazeroInstance struct {
	runtime  *wazeroRuntime
	module   api.Module
	compiled wazero.CompiledModule
	exports  []string
}

func (i *wazeroInstance) Drop() {
	ctx := context.Background()
	if err := multierr.Append(i.module.Close(ctx), i.compiled.Close(ctx)); err != nil {
		Logger().Warn("close instance", zap.Error(err))
	}
}

type userDataKey struct{}

// UserData returns the userdata of the runtime executing a call. Host
// functions receive it through their context.
func UserData(ctx context.Context) any {
	return ctx.Value(userDataKey{})
}

// NewEnvironment allocates an environment, or returns 0 on failure.
func (l *WazeroLibrary) NewEnvironment(ctx context.Context) EnvironmentHandle {
	cache, err := l.cfg.newCache()
	if err != nil {
		Logger().Debug("create compilation cache", zap.String("dir", l.cfg.CacheDir), zap.Error(err))
		return 0
	}

	config := l.cfg.runtimeConfig(cache)
	env := &wazeroEnvironment{
		cache:  cache,
		config: config,
		parser: wazero.NewRuntimeWithConfig(ctx, config),
	}

	h := l.table.Insert(kindEnvironment, env)
	if h == 0 {
		env.Drop()
		return 0
	}
	return EnvironmentHandle(h)
}

// FreeEnvironment frees env. Freeing with live dependents is reported.
func (l *WazeroLibrary) FreeEnvironment(env EnvironmentHandle) {
	if e, ok := l.environment(env); ok {
		if n := e.deps.Load(); n > 0 {
			Logger().Error("environment freed with live dependents",
				zap.Uint32("handle", uint32(env)), zap.Int32("dependents", n))
		}
	}
	l.free(resource.Handle(env), kindEnvironment)
}

// NewRuntime allocates a runtime, or returns 0 on failure.
func (l *WazeroLibrary) NewRuntime(ctx context.Context, env EnvironmentHandle, stackSlots uint32, userdata any) RuntimeHandle {
	if stackSlots == 0 || stackSlots > l.cfg.MaxStackSlots {
		Logger().Debug("stack size rejected",
			zap.Uint32("slots", stackSlots), zap.Uint32("max", l.cfg.MaxStackSlots))
		return 0
	}

	e, ok := l.environment(env)
	if !ok {
		return 0
	}

	r := &wazeroRuntime{
		env:      e,
		rt:       wazero.NewRuntimeWithConfig(ctx, e.config),
		userdata: userdata,
	}
	e.deps.Add(1)

	h := l.table.Insert(kindRuntime, r)
	if h == 0 {
		r.Drop()
		return 0
	}
	return RuntimeHandle(h)
}

// FreeRuntime frees rt and every instance loaded into it.
func (l *WazeroLibrary) FreeRuntime(rt RuntimeHandle) {
	if r, ok := l.runtime(rt); ok {
		r.mu.Lock()
		instances := r.instances
		r.instances = nil
		r.mu.Unlock()

		for _, inst := range instances {
			l.free(resource.Handle(inst), kindInstance)
		}
	}
	l.free(resource.Handle(rt), kindRuntime)
}

// ParseModule validates wasm using the environment's parsing runtime.
func (l *WazeroLibrary) ParseModule(ctx context.Context, env EnvironmentHandle, wasm []byte) (ModuleHandle, error) {
	e, ok := l.environment(env)
	if !ok {
		return 0, unknownHandle("environment", resource.Handle(env))
	}

	compiled, err := e.parser.CompileModule(ctx, wasm)
	if err != nil {
		return 0, err
	}

	m := &wazeroModule{
		env:      e,
		compiled: compiled,
		name:     compiled.Name(),
		wasm:     wasm,
	}
	e.deps.Add(1)

	h := l.table.Insert(kindModule, m)
	if h == 0 {
		m.Drop()
		return 0, nil
	}
	return ModuleHandle(h), nil
}

// FreeModule frees a module that was never loaded.
func (l *WazeroLibrary) FreeModule(mod ModuleHandle) {
	l.free(resource.Handle(mod), kindModule)
}

// ModuleName returns the name from the module's name section, if any.
func (l *WazeroLibrary) ModuleName(mod ModuleHandle) string {
	m, ok := l.module(mod)
	if !ok {
		return ""
	}
	return m.name
}

// LoadModule instantiates mod in rt and consumes mod on success.
func (l *WazeroLibrary) LoadModule(ctx context.Context, rt RuntimeHandle, mod ModuleHandle) (InstanceHandle, error) {
	r, ok := l.runtime(rt)
	if !ok {
		return 0, unknownHandle("runtime", resource.Handle(rt))
	}
	m, ok := l.module(mod)
	if !ok {
		return 0, unknownHandle("module", resource.Handle(mod))
	}
	if m.env != r.env {
		return 0, errors.EnvironmentMismatch(errors.PhaseNative, "module")
	}

	// Compiling again hits the environment's cache.
	compiled, err := r.rt.CompileModule(ctx, m.wasm)
	if err != nil {
		return 0, err
	}

	instance, err := r.rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(m.name))
	if err != nil {
		return 0, multierr.Append(err, compiled.Close(ctx))
	}

	exports := make([]string, 0, len(compiled.ExportedFunctions()))
	for name := range compiled.ExportedFunctions() {
		exports = append(exports, name)
	}
	sort.Strings(exports)

	inst := &wazeroInstance{
		runtime:  r,
		module:   instance,
		compiled: compiled,
		exports:  exports,
	}
	h := l.table.Insert(kindInstance, inst)
	if h == 0 {
		inst.Drop()
		return 0, errors.AllocationFailed(errors.PhaseNative, "instance")
	}

	r.mu.Lock()
	r.instances = append(r.instances, InstanceHandle(h))
	r.mu.Unlock()

	// The runtime now owns the module. Its dependency on the environment
	// is carried by the runtime from here on.
	m.loaded = true
	m.env.deps.Add(-1)
	l.table.Remove(resource.Handle(mod))

	return InstanceHandle(h), nil
}

// Call invokes an exported function of inst.
func (l *WazeroLibrary) Call(ctx context.Context, inst InstanceHandle, function string, params ...uint64) ([]uint64, error) {
	i, ok := l.instance(inst)
	if !ok {
		return nil, unknownHandle("instance", resource.Handle(inst))
	}

	fn := i.module.ExportedFunction(function)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseRuntime, "function", function)
	}

	if i.runtime.userdata != nil {
		ctx = context.WithValue(ctx, userDataKey{}, i.runtime.userdata)
	}
	return fn.Call(ctx, params...)
}

// Exports returns the sorted names of the functions inst exports.
func (l *WazeroLibrary) Exports(inst InstanceHandle) []string {
	i, ok := l.instance(inst)
	if !ok {
		return nil
	}
	out := make([]string, len(i.exports))
	copy(out, i.exports)
	return out
}

// LiveHandles returns the number of native objects not yet freed.
func (l *WazeroLibrary) LiveHandles() int {
	return l.table.Len()
}

// Close frees every remaining native object, dependents first, and stops
// accepting new ones.
func (l *WazeroLibrary) Close() error {
	for _, rt := range l.table.Handles(kindRuntime) {
		l.FreeRuntime(RuntimeHandle(rt))
	}
	for _, kind := range []uint32{kindModule, kindEnvironment} {
		for _, h := range l.table.Handles(kind) {
			l.table.Remove(h)
		}
	}
	err := l.table.Close()
	l.unsubscribe()
	return err
}

func (l *WazeroLibrary) free(h resource.Handle, kind uint32) {
	if _, ok := l.table.GetTyped(h, kind); !ok {
		Logger().Warn("free of unknown native handle",
			zap.Uint32("handle", uint32(h)), zap.String("kind", kindName(kind)))
		return
	}
	l.table.Remove(h)
}

func (l *WazeroLibrary) environment(h EnvironmentHandle) (*wazeroEnvironment, bool) {
	v, ok := l.table.GetTyped(resource.Handle(h), kindEnvironment)
	if !ok {
		return nil, false
	}
	return v.(*wazeroEnvironment), true
}

func (l *WazeroLibrary) runtime(h RuntimeHandle) (*wazeroRuntime, bool) {
	v, ok := l.table.GetTyped(resource.Handle(h), kindRuntime)
	if !ok {
		return nil, false
	}
	return v.(*wazeroRuntime), true
}

func (l *WazeroLibrary) module(h ModuleHandle) (*wazeroModule, bool) {
	v, ok := l.table.GetTyped(resource.Handle(h), kindModule)
	if !ok {
		return nil, false
	}
	return v.(*wazeroModule), true
}

func (l *WazeroLibrary) instance(h InstanceHandle) (*wazeroInstance, bool) {
	v, ok := l.table.GetTyped(resource.Handle(h), kindInstance)
	if !ok {
		return nil, false
	}
	return v.(*wazeroInstance), true
}

func unknownHandle(resourceName string, h resource.Handle) error {
	return errors.New(errors.PhaseNative, errors.KindNotFound).
		Resource(resourceName).
		Handle(uint32(h)).
		Detail("unknown native handle").
		Build()
}
