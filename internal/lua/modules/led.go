package modules

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/ledd/internal/engine"
	"github.com/dokzlo13/ledd/internal/eventbus"
)

// LedModule exposes the effect engine to Lua scripts. All of its functions
// must run on the Lua worker goroutine, which is also the goroutine that
// polls the engine - so scripts never race the dispatcher.
type LedModule struct {
	engine *engine.Engine
	bus    *eventbus.Bus

	expireHandlers map[int]*lua.LFunction
}

// NewLedModule creates a new led module. The bus may be nil; effect writes
// are then not announced.
func NewLedModule(eng *engine.Engine, bus *eventbus.Bus) *LedModule {
	return &LedModule{
		engine:         eng,
		bus:            bus,
		expireHandlers: make(map[int]*lua.LFunction),
	}
}

// Loader is the module loader for Lua
func (m *LedModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "write", L.NewFunction(m.write))
	L.SetField(mod, "on", L.NewFunction(m.on))
	L.SetField(mod, "off", L.NewFunction(m.off))
	L.SetField(mod, "blink", L.NewFunction(m.blink))
	L.SetField(mod, "breath", L.NewFunction(m.breath))
	L.SetField(mod, "fade_in", L.NewFunction(m.fadeIn))
	L.SetField(mod, "fade_out", L.NewFunction(m.fadeOut))
	L.SetField(mod, "alternate", L.NewFunction(m.alternate))
	L.SetField(mod, "read", L.NewFunction(m.read))
	L.SetField(mod, "on_expire", L.NewFunction(m.onExpire))

	L.Push(mod)
	return 1
}

// write(id, { mode = "...", partner, on_ms, off_ms, fade_ms, alternate_ms, duration_ms }) -> ok [, err]
func (m *LedModule) write(L *lua.LState) int {
	id := L.CheckInt(1)
	tbl := L.CheckTable(2)

	eff, err := effectFromTable(L, tbl)
	if err != nil {
		return m.fail(L, id, err)
	}
	return m.apply(L, id, eff)
}

// on(id [, { duration_ms }]) -> ok [, err]
func (m *LedModule) on(L *lua.LState) int {
	id := L.CheckInt(1)
	opts := L.OptTable(2, L.NewTable())

	return m.apply(L, id, engine.Effect{
		Mode:     engine.ModeOn,
		Duration: msField(L, opts, "duration_ms"),
	})
}

// off(id) -> ok [, err]
func (m *LedModule) off(L *lua.LState) int {
	id := L.CheckInt(1)
	return m.apply(L, id, engine.Effect{Mode: engine.ModeOff})
}

// blink(id, { on_ms, off_ms, duration_ms }) -> ok [, err]
func (m *LedModule) blink(L *lua.LState) int {
	id := L.CheckInt(1)
	opts := L.CheckTable(2)

	return m.apply(L, id, engine.Effect{
		Mode:     engine.ModeBlink,
		On:       msField(L, opts, "on_ms"),
		Off:      msField(L, opts, "off_ms"),
		Duration: msField(L, opts, "duration_ms"),
	})
}

// breath(id, { fade_ms, duration_ms }) -> ok [, err]
func (m *LedModule) breath(L *lua.LState) int {
	id := L.CheckInt(1)
	opts := L.CheckTable(2)

	return m.apply(L, id, engine.Effect{
		Mode:     engine.ModeBreath,
		Fade:     msField(L, opts, "fade_ms"),
		Duration: msField(L, opts, "duration_ms"),
	})
}

// fade_in(id, { fade_ms, duration_ms }) -> ok [, err]
func (m *LedModule) fadeIn(L *lua.LState) int {
	id := L.CheckInt(1)
	opts := L.CheckTable(2)

	return m.apply(L, id, engine.Effect{
		Mode:     engine.ModeFadeIn,
		Fade:     msField(L, opts, "fade_ms"),
		Duration: msField(L, opts, "duration_ms"),
	})
}

// fade_out(id, { fade_ms, duration_ms }) -> ok [, err]
func (m *LedModule) fadeOut(L *lua.LState) int {
	id := L.CheckInt(1)
	opts := L.CheckTable(2)

	return m.apply(L, id, engine.Effect{
		Mode:     engine.ModeFadeOut,
		Fade:     msField(L, opts, "fade_ms"),
		Duration: msField(L, opts, "duration_ms"),
	})
}

// alternate(id, partner, { alternate_ms, duration_ms }) -> ok [, err]
func (m *LedModule) alternate(L *lua.LState) int {
	id := L.CheckInt(1)
	partner := L.CheckInt(2)
	opts := L.CheckTable(3)

	return m.apply(L, id, engine.Effect{
		Mode:      engine.ModeAlternate,
		Partner:   partner,
		Alternate: msField(L, opts, "alternate_ms"),
		Duration:  msField(L, opts, "duration_ms"),
	})
}

// read(id) -> { percent, on, remain_tick, phase, expired, latched [, next_tick] } | nil, err
func (m *LedModule) read(L *lua.LState) int {
	id := L.CheckInt(1)

	st, err := m.engine.Read(id)
	if err != nil {
		log.Warn().Err(err).Int("led", id).Msg("Failed to read led status")
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	tbl := L.NewTable()
	L.SetField(tbl, "percent", lua.LNumber(st.Percent))
	L.SetField(tbl, "on", lua.LBool(st.On))
	L.SetField(tbl, "remain_tick", lua.LNumber(st.RemainTick))
	L.SetField(tbl, "phase", lua.LNumber(st.Phase))
	L.SetField(tbl, "expired", lua.LBool(st.Expired))
	if st.NextTick == engine.Forever {
		L.SetField(tbl, "latched", lua.LTrue)
	} else {
		L.SetField(tbl, "latched", lua.LFalse)
		L.SetField(tbl, "next_tick", lua.LNumber(st.NextTick))
	}

	L.Push(tbl)
	return 1
}

// on_expire(id, fn) - Register a handler for the LED's duration expiry
func (m *LedModule) onExpire(L *lua.LState) int {
	id := L.CheckInt(1)
	fn := L.CheckFunction(2)

	m.expireHandlers[id] = fn
	return 0
}

// HandleExpiry runs the registered expiry handler for the LED, if any. Must
// be called on the Lua worker goroutine.
func (m *LedModule) HandleExpiry(L *lua.LState, id int) {
	fn, ok := m.expireHandlers[id]
	if !ok {
		return
	}

	if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, lua.LNumber(id)); err != nil {
		log.Error().Err(err).Int("led", id).Msg("Expiry handler failed")
	}
}

func (m *LedModule) apply(L *lua.LState, id int, eff engine.Effect) int {
	if err := m.engine.Write(id, eff); err != nil {
		return m.fail(L, id, err)
	}

	if m.bus != nil {
		m.bus.Publish(eventbus.Event{
			Type: eventbus.EventTypeEffectWritten,
			Data: map[string]interface{}{
				"led_id":      id,
				"mode":        eff.Mode.String(),
				"duration_ms": eff.Duration.Milliseconds(),
			},
		})
	}

	L.Push(lua.LTrue)
	return 1
}

func (m *LedModule) fail(L *lua.LState, id int, err error) int {
	log.Warn().Err(err).Int("led", id).Msg("Failed to write effect")
	L.Push(lua.LFalse)
	L.Push(lua.LString(err.Error()))
	return 2
}

func effectFromTable(L *lua.LState, tbl *lua.LTable) (engine.Effect, error) {
	var eff engine.Effect

	modeStr, ok := L.GetField(tbl, "mode").(lua.LString)
	if !ok {
		return eff, fmt.Errorf("%w: mode is required", engine.ErrInvalidParameter)
	}
	mode, err := engine.ParseMode(string(modeStr))
	if err != nil {
		return eff, err
	}

	eff.Mode = mode
	if partner, ok := L.GetField(tbl, "partner").(lua.LNumber); ok {
		eff.Partner = int(partner)
	}
	eff.On = msField(L, tbl, "on_ms")
	eff.Off = msField(L, tbl, "off_ms")
	eff.Fade = msField(L, tbl, "fade_ms")
	eff.Alternate = msField(L, tbl, "alternate_ms")
	eff.Duration = msField(L, tbl, "duration_ms")

	return eff, nil
}

func msField(L *lua.LState, tbl *lua.LTable, key string) time.Duration {
	if n, ok := L.GetField(tbl, key).(lua.LNumber); ok {
		return time.Duration(n) * time.Millisecond
	}
	return 0
}
