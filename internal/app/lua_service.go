package app

import (
	"context"

	"github.com/dokzlo13/ledd/internal/config"
	"github.com/dokzlo13/ledd/internal/engine"
	"github.com/dokzlo13/ledd/internal/eventbus"
	luart "github.com/dokzlo13/ledd/internal/lua"
)

// LuaService wraps the Lua runtime and provides thread-safe execution.
type LuaService struct {
	cfg     *config.Config
	Runtime *luart.Runtime
}

// NewLuaService creates a new LuaService.
func NewLuaService(cfg *config.Config, eng *engine.Engine, bus *eventbus.Bus) *LuaService {
	return &LuaService{
		cfg:     cfg,
		Runtime: luart.NewRuntime(eng, bus),
	}
}

// LoadScript loads and executes the Lua script.
// Must be called before Start().
func (s *LuaService) LoadScript() error {
	return s.Runtime.LoadScript(s.cfg.Script)
}

// Start begins the Lua worker goroutine.
func (s *LuaService) Start(ctx context.Context) {
	// This is the ONLY goroutine that touches Lua or the engine
	go s.Runtime.Run(ctx)
}

// Do queues work to be executed on the Lua VM.
func (s *LuaService) Do(ctx context.Context, work luart.LuaWork) bool {
	return s.Runtime.Do(ctx, work)
}

// ReadStatus fetches a status snapshot through the Lua worker so the read
// never races the poll loop.
func (s *LuaService) ReadStatus(ctx context.Context, id int) (engine.Status, error) {
	var st engine.Status
	err := s.Runtime.DoSyncWithResult(ctx, func(context.Context) error {
		var readErr error
		st, readErr = s.Runtime.Engine().Read(id)
		return readErr
	})
	return st, err
}

// Close closes the Lua runtime.
func (s *LuaService) Close() {
	if s.Runtime != nil {
		s.Runtime.Close()
	}
}
