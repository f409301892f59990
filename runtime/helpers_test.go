package runtime

import (
	"testing"

	"github.com/wippyai/wasm3-go/engine"
	"github.com/wippyai/wasm3-go/engine/enginetest"
)

// addWASM exports add(i32, i32) -> i32.
var addWASM = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x07, 0x01, 0x03, 'a', 'd', 'd', 0x00, 0x00,
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b,
}

var minimalWASM = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func newCountingLibrary(t *testing.T) *enginetest.Library {
	t.Helper()
	lib := enginetest.New(engine.NewWazeroLibrary(&engine.Config{MaxStackSlots: 64 * 1024}))
	t.Cleanup(func() { lib.Close() })
	return lib
}

func mustHandle(t *testing.T, env *Environment) engine.EnvironmentHandle {
	t.Helper()
	h, err := env.handle()
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	return h
}
