package ledger

import (
	"testing"
	"time"

	"github.com/dokzlo13/ledd/internal/db"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return New(database.DB)
}

func TestAppendAndGetByType(t *testing.T) {
	l := newTestLedger(t)

	if err := l.Append(EventEffectWritten, "", 0, "blink", map[string]any{"duration_ms": 5000}); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if err := l.Append(EventEffectExpired, "", 0, "blink", nil); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if err := l.Append(EventEffectWritten, "", 1, "breath", nil); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	written, err := l.GetByType(EventEffectWritten, 10)
	if err != nil {
		t.Fatalf("GetByType() failed: %v", err)
	}
	if len(written) != 2 {
		t.Fatalf("GetByType(written) = %d entries, want 2", len(written))
	}

	// Newest first.
	if written[0].LedID != 1 || written[0].Mode != "breath" {
		t.Errorf("newest entry = led %d mode %q, want led 1 breath", written[0].LedID, written[0].Mode)
	}
	if written[1].Payload["duration_ms"] != float64(5000) {
		t.Errorf("payload = %v, want duration_ms 5000", written[1].Payload)
	}

	for _, e := range written {
		if e.EventID == "" {
			t.Error("entry missing event_id")
		}
		if e.SessionID != l.SessionID() {
			t.Errorf("entry session = %q, want %q", e.SessionID, l.SessionID())
		}
	}
}

func TestAppendKeepsCallerEventID(t *testing.T) {
	l := newTestLedger(t)

	if err := l.Append(EventEffectExpired, "evt-42", 3, "on", nil); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	entries, err := l.GetByLed(3, 10)
	if err != nil {
		t.Fatalf("GetByLed() failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("GetByLed() = %d entries, want 1", len(entries))
	}
	if entries[0].EventID != "evt-42" {
		t.Errorf("event_id = %q, want evt-42", entries[0].EventID)
	}
}

func TestGetByLedFilters(t *testing.T) {
	l := newTestLedger(t)

	for i := 0; i < 3; i++ {
		if err := l.Append(EventEffectWritten, "", i, "on", nil); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}

	entries, err := l.GetByLed(1, 10)
	if err != nil {
		t.Fatalf("GetByLed() failed: %v", err)
	}
	if len(entries) != 1 || entries[0].LedID != 1 {
		t.Errorf("GetByLed(1) = %+v, want a single entry for led 1", entries)
	}
}

func TestDeleteOlderThan(t *testing.T) {
	l := newTestLedger(t)

	if err := l.Append(EventEffectWritten, "", 0, "on", nil); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	// Nothing is older than a day yet.
	deleted, err := l.DeleteOlderThan(24 * time.Hour)
	if err != nil {
		t.Fatalf("DeleteOlderThan() failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted %d entries, want 0", deleted)
	}

	// A zero retention cuts everything written before "now".
	time.Sleep(1100 * time.Millisecond)
	deleted, err = l.DeleteOlderThan(0)
	if err != nil {
		t.Fatalf("DeleteOlderThan() failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted %d entries, want 1", deleted)
	}
}
