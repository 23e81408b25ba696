package lua

import (
	"context"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/clipai/internal/plugin"
)

// State wraps a gopher-lua state shared by the plugins of one module.
//
// gopher-lua's LState is not goroutine-safe. Every entry point takes mu,
// so plugin calls on the same module are serialized.
type State struct {
	L *lua.LState

	mu     sync.Mutex
	closed bool

	// caller is the plugin whose callback is running, nil while the module
	// body executes.
	caller *scriptPlugin
}

// NewState creates a sandboxed Lua state with only the safe standard
// libraries opened.
func NewState() *State {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)
	NewSandbox(L).Install()
	return &State{L: L}
}

// openSafeLibraries opens the libraries a text plugin needs. io, os and
// debug are not opened.
func openSafeLibraries(L *lua.LState) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage},
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
}

// DoFile runs a script under ctx.
func (s *State) DoFile(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	return s.protect(ctx, func() error {
		return s.L.DoFile(path)
	})
}

// Call invokes fn on behalf of caller and returns its results.
// Returns an empty slice (not nil) if the function returns no values.
func (s *State) Call(ctx context.Context, caller *scriptPlugin, fn *lua.LFunction, args ...lua.LValue) ([]lua.LValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStateClosed
	}

	s.caller = caller
	defer func() { s.caller = nil }()

	top := s.L.GetTop()
	err := s.protect(ctx, func() error {
		s.L.Push(fn)
		for _, arg := range args {
			s.L.Push(arg)
		}
		return s.L.PCall(len(args), lua.MultRet, nil)
	})
	if err != nil {
		s.L.SetTop(top)
		return nil, err
	}

	n := s.L.GetTop() - top
	if n <= 0 {
		return []lua.LValue{}, nil
	}
	results := make([]lua.LValue, n)
	for i := 0; i < n; i++ {
		results[i] = s.L.Get(top + i + 1)
	}
	s.L.Pop(n)
	return results, nil
}

// protect runs fn with ctx attached to the VM and panics recovered.
func (s *State) protect(ctx context.Context, fn func() error) (err error) {
	if ctx != nil {
		s.L.SetContext(ctx)
		defer s.L.RemoveContext()
	}
	defer func() {
		if r := recover(); r != nil {
			err = &plugin.PanicError{Value: r}
		}
	}()
	if err := fn(); err != nil {
		if ctx != nil && ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		return err
	}
	return nil
}

// currentCaller returns the plugin whose callback is running. Only valid
// from Go functions invoked by Lua while mu is held.
func (s *State) currentCaller() *scriptPlugin {
	return s.caller
}

// Close releases the Lua state. It is safe to call more than once.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}
