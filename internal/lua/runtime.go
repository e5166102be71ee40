package lua

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/ledd/internal/engine"
	"github.com/dokzlo13/ledd/internal/eventbus"
	"github.com/dokzlo13/ledd/internal/lua/modules"
)

// ErrRuntimeClosed is returned when the Lua runtime is closed
var ErrRuntimeClosed = fmt.Errorf("lua runtime closed")

// LuaWork represents work to be executed on the Lua VM
// All Lua execution MUST go through this to ensure thread safety
type LuaWork func(ctx context.Context)

// Runtime manages the Lua VM with single-threaded execution. The effect
// engine is only ever touched from the worker goroutine, so scripts and the
// poll loop are serialized without locks.
type Runtime struct {
	L      *lua.LState
	engine *engine.Engine

	ledModule *modules.LedModule

	// Work queue for thread-safe Lua execution
	workQueue chan LuaWork

	// Shutdown signaling - closing this channel signals senders to stop
	// Using a channel in select is race-free (unlike mutex + bool)
	closing   chan struct{}
	closeOnce sync.Once
}

// NewRuntime creates a new Lua runtime
func NewRuntime(eng *engine.Engine, bus *eventbus.Bus) *Runtime {
	L := lua.NewState()

	r := &Runtime{
		L:         L,
		engine:    eng,
		workQueue: make(chan LuaWork, 100),
		closing:   make(chan struct{}),
	}

	logModule := modules.NewLogModule()
	L.PreloadModule("log", logModule.Loader)

	r.ledModule = modules.NewLedModule(eng, bus)
	L.PreloadModule("led", r.ledModule.Loader)

	return r
}

// Close signals the runtime to stop accepting new work and closes the Lua state.
// This is safe to call concurrently with Do/DoSync - they will see the closing signal.
func (r *Runtime) Close() {
	r.closeOnce.Do(func() {
		close(r.closing)
	})
	// Note: We don't close workQueue to avoid send-on-closed-channel panics.
	// The channel will be garbage collected when no longer referenced.
	// Run() will exit when it sees the closing signal.
	r.L.Close()
}

// Do queues work to be executed on the Lua VM (thread-safe, non-blocking)
// Returns false if the runtime is closing, queue is full, or context is cancelled.
func (r *Runtime) Do(ctx context.Context, work LuaWork) bool {
	select {
	case <-r.closing:
		log.Warn().Msg("Lua runtime closing, dropping work")
		return false
	case <-ctx.Done():
		log.Warn().Msg("Context cancelled, dropping Lua work")
		return false
	case r.workQueue <- work:
		return true
	default:
		log.Warn().Msg("Lua work queue full, dropping work")
		return false
	}
}

// DoSync queues work and blocks until there's space (thread-safe, blocking)
// Returns error if the runtime is closing or context is cancelled.
func (r *Runtime) DoSync(ctx context.Context, work LuaWork) error {
	select {
	case <-r.closing:
		return ErrRuntimeClosed
	case <-ctx.Done():
		return ctx.Err()
	case r.workQueue <- work:
		return nil
	}
}

// DoSyncWithResult queues work, waits for space, and waits for the result.
// Used to read engine state from other goroutines through the Lua worker.
func (r *Runtime) DoSyncWithResult(ctx context.Context, work func(context.Context) error) error {
	done := make(chan error, 1)
	wrappedWork := LuaWork(func(c context.Context) {
		done <- work(c)
	})

	select {
	case <-r.closing:
		return ErrRuntimeClosed
	case <-ctx.Done():
		return ctx.Err()
	case r.workQueue <- wrappedWork:
	}

	select {
	case <-r.closing:
		return ErrRuntimeClosed
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Run starts the Lua worker goroutine - this is the ONLY goroutine that
// touches Lua or the engine. It includes panic recovery to prevent crashes
// from killing the worker. Exits when context is cancelled or runtime is closed.
func (r *Runtime) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.drainQueue(ctx)
			return
		case <-r.closing:
			r.drainQueue(ctx)
			return
		case work := <-r.workQueue:
			r.executeWork(ctx, work)
		}
	}
}

// drainQueue processes any remaining work in the queue before exiting
func (r *Runtime) drainQueue(ctx context.Context) {
	for {
		select {
		case work := <-r.workQueue:
			r.executeWork(ctx, work)
		default:
			return
		}
	}
}

// executeWork runs a single work item with panic recovery
func (r *Runtime) executeWork(ctx context.Context, work LuaWork) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Interface("panic", rec).
				Msg("Lua work panicked - worker continuing")
		}
	}()
	// Set context on LState so modules can access it via L.Context()
	r.L.SetContext(ctx)
	work(ctx)
}

// LoadScript loads and executes a Lua script (must be called before Run)
func (r *Runtime) LoadScript(path string) error {
	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("lua script not found: %w", err)
	}

	log.Info().Str("path", path).Msg("Loading Lua script")

	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("failed to execute Lua script: %w", err)
	}

	log.Info().Msg("Lua script loaded successfully")
	return nil
}

// State returns the Lua state. Only touch it from the worker goroutine.
func (r *Runtime) State() *lua.LState {
	return r.L
}

// LedModule returns the led module for expiry handler dispatch
func (r *Runtime) LedModule() *modules.LedModule {
	return r.ledModule
}

// Engine returns the effect engine. Only touch it from the worker goroutine.
func (r *Runtime) Engine() *engine.Engine {
	return r.engine
}
