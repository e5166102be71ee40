package modules

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/ledd/internal/engine"
	"github.com/dokzlo13/ledd/internal/eventbus"
)

func newLedState(t *testing.T, bus *eventbus.Bus) (*lua.LState, *LedModule, *engine.Engine) {
	t.Helper()

	eng, err := engine.New(4, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	for id := 0; id < 4; id++ {
		if err := eng.Init(id, func(uint8) {}); err != nil {
			t.Fatalf("Init(%d): %v", id, err)
		}
	}

	mod := NewLedModule(eng, bus)
	L := lua.NewState()
	t.Cleanup(L.Close)
	L.PreloadModule("led", mod.Loader)

	return L, mod, eng
}

func TestLedWriteAndRead(t *testing.T) {
	L, _, eng := newLedState(t, nil)

	script := `
		local led = require("led")
		ok = led.write(0, { mode = "blink", on_ms = 200, off_ms = 800, duration_ms = 5000 })
	`
	if err := L.DoString(script); err != nil {
		t.Fatalf("DoString: %v", err)
	}
	if L.GetGlobal("ok") != lua.LTrue {
		t.Fatalf("write returned %v, want true", L.GetGlobal("ok"))
	}

	eng.Poll()

	if err := L.DoString(`st = require("led").read(0)`); err != nil {
		t.Fatalf("DoString: %v", err)
	}
	st, ok := L.GetGlobal("st").(*lua.LTable)
	if !ok {
		t.Fatalf("read returned %v, want table", L.GetGlobal("st"))
	}
	if got := L.GetField(st, "percent"); got != lua.LNumber(100) {
		t.Errorf("percent = %v, want 100", got)
	}
	if got := L.GetField(st, "on"); got != lua.LTrue {
		t.Errorf("on = %v, want true", got)
	}
	if got := L.GetField(st, "remain_tick"); got != lua.LNumber(49) {
		t.Errorf("remain_tick = %v, want 49", got)
	}
	if got := L.GetField(st, "latched"); got != lua.LFalse {
		t.Errorf("latched = %v, want false", got)
	}
}

func TestLedWriteRejectsUnknownMode(t *testing.T) {
	L, _, _ := newLedState(t, nil)

	script := `
		local led = require("led")
		ok, err = led.write(0, { mode = "strobe" })
	`
	if err := L.DoString(script); err != nil {
		t.Fatalf("DoString: %v", err)
	}
	if L.GetGlobal("ok") != lua.LFalse {
		t.Fatalf("write returned %v, want false", L.GetGlobal("ok"))
	}
	msg, ok := L.GetGlobal("err").(lua.LString)
	if !ok || msg == "" {
		t.Fatalf("err = %v, want non-empty string", L.GetGlobal("err"))
	}
}

func TestLedWriteRequiresMode(t *testing.T) {
	L, _, _ := newLedState(t, nil)

	if err := L.DoString(`ok, err = require("led").write(0, {})`); err != nil {
		t.Fatalf("DoString: %v", err)
	}
	if L.GetGlobal("ok") != lua.LFalse {
		t.Fatalf("write returned %v, want false", L.GetGlobal("ok"))
	}
	msg, _ := L.GetGlobal("err").(lua.LString)
	if !strings.Contains(string(msg), "mode") {
		t.Fatalf("err = %q, want mention of mode", msg)
	}
}

func TestLedShortcutsLatch(t *testing.T) {
	L, _, eng := newLedState(t, nil)

	if err := L.DoString(`ok = require("led").on(1)`); err != nil {
		t.Fatalf("DoString: %v", err)
	}
	if L.GetGlobal("ok") != lua.LTrue {
		t.Fatalf("on returned %v, want true", L.GetGlobal("ok"))
	}

	eng.Poll()

	if err := L.DoString(`st = require("led").read(1)`); err != nil {
		t.Fatalf("DoString: %v", err)
	}
	st := L.GetGlobal("st").(*lua.LTable)
	if got := L.GetField(st, "percent"); got != lua.LNumber(100) {
		t.Errorf("percent = %v, want 100", got)
	}
	if got := L.GetField(st, "latched"); got != lua.LTrue {
		t.Errorf("latched = %v, want true", got)
	}
	if got := L.GetField(st, "next_tick"); got != lua.LNil {
		t.Errorf("next_tick = %v, want nil when latched", got)
	}
}

func TestLedAlternateShortcut(t *testing.T) {
	L, _, eng := newLedState(t, nil)

	script := `
		local led = require("led")
		ok1 = led.alternate(0, 2, { alternate_ms = 500 })
		ok2 = led.alternate(2, 0, { alternate_ms = 500 })
	`
	if err := L.DoString(script); err != nil {
		t.Fatalf("DoString: %v", err)
	}
	if L.GetGlobal("ok1") != lua.LTrue || L.GetGlobal("ok2") != lua.LTrue {
		t.Fatalf("alternate writes failed: %v, %v", L.GetGlobal("ok1"), L.GetGlobal("ok2"))
	}

	eng.Poll()

	if err := L.DoString(`a = require("led").read(0); b = require("led").read(2)`); err != nil {
		t.Fatalf("DoString: %v", err)
	}
	a := L.GetGlobal("a").(*lua.LTable)
	b := L.GetGlobal("b").(*lua.LTable)
	if L.GetField(a, "on") != lua.LTrue || L.GetField(b, "on") != lua.LFalse {
		t.Errorf("pair out of lockstep: a.on=%v b.on=%v",
			L.GetField(a, "on"), L.GetField(b, "on"))
	}
}

func TestLedReadUnknownID(t *testing.T) {
	L, _, _ := newLedState(t, nil)

	if err := L.DoString(`st, err = require("led").read(99)`); err != nil {
		t.Fatalf("DoString: %v", err)
	}
	if L.GetGlobal("st") != lua.LNil {
		t.Fatalf("read returned %v, want nil", L.GetGlobal("st"))
	}
	if _, ok := L.GetGlobal("err").(lua.LString); !ok {
		t.Fatalf("err = %v, want string", L.GetGlobal("err"))
	}
}

func TestLedExpiryHandlerDispatch(t *testing.T) {
	L, mod, _ := newLedState(t, nil)

	script := `
		expired_id = nil
		require("led").on_expire(3, function(id) expired_id = id end)
	`
	if err := L.DoString(script); err != nil {
		t.Fatalf("DoString: %v", err)
	}

	mod.HandleExpiry(L, 3)
	if got := L.GetGlobal("expired_id"); got != lua.LNumber(3) {
		t.Errorf("expired_id = %v, want 3", got)
	}

	// No handler registered for this id; must be a no-op.
	mod.HandleExpiry(L, 0)
}

func TestLedWritePublishesEvent(t *testing.T) {
	bus := eventbus.NewWithConfig(1, 8)
	defer bus.Close(context.Background())

	var (
		mu     sync.Mutex
		events []eventbus.Event
		done   = make(chan struct{})
	)
	bus.Subscribe(eventbus.EventTypeEffectWritten, func(ev eventbus.Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
		close(done)
	})

	L, _, _ := newLedState(t, bus)
	if err := L.DoString(`require("led").breath(0, { fade_ms = 1000 })`); err != nil {
		t.Fatalf("DoString: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for effect_written event")
	}

	mu.Lock()
	defer mu.Unlock()
	data := events[0].Data
	if data["led_id"] != 0 || data["mode"] != "breath" {
		t.Errorf("unexpected event data: %#v", data)
	}
}
