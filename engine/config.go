package engine

import (
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
)

// DefaultMaxStackSlots bounds runtime stacks when Config.MaxStackSlots is 0.
const DefaultMaxStackSlots = 1 << 20

// Config holds configuration for the wazero-backed library
type Config struct {
	// CacheDir enables a file-backed compilation cache shared by every
	// environment of the library. Empty means in-memory per environment.
	CacheDir string

	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	MemoryLimitPages uint32

	// MaxStackSlots is the largest stack a runtime may request.
	// 0 means DefaultMaxStackSlots.
	MaxStackSlots uint32

	// EnableThreads enables the WebAssembly threads proposal (experimental).
	EnableThreads bool

	// CloseOnContextDone aborts running calls when their context is done.
	CloseOnContextDone bool
}

// DefaultConfig returns the configuration used by Default.
func DefaultConfig() Config {
	return Config{MaxStackSlots: DefaultMaxStackSlots}
}

func (c *Config) normalize() Config {
	if c == nil {
		return DefaultConfig()
	}
	out := *c
	if out.MaxStackSlots == 0 {
		out.MaxStackSlots = DefaultMaxStackSlots
	}
	return out
}

func (c Config) runtimeConfig(cache wazero.CompilationCache) wazero.RuntimeConfig {
	rc := wazero.NewRuntimeConfig().WithCompilationCache(cache)
	if c.MemoryLimitPages > 0 {
		rc = rc.WithMemoryLimitPages(c.MemoryLimitPages)
	}
	if c.EnableThreads {
		rc = rc.WithCoreFeatures(api.CoreFeaturesV2 | experimental.CoreFeaturesThreads)
	}
	if c.CloseOnContextDone {
		rc = rc.WithCloseOnContextDone(true)
	}
	return rc
}

func (c Config) newCache() (wazero.CompilationCache, error) {
	if c.CacheDir != "" {
		return wazero.NewCompilationCacheWithDir(c.CacheDir)
	}
	return wazero.NewCompilationCache(), nil
}
