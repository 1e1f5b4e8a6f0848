package laserlog

import (
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2018, time.October, 17, 7, 0, 0, 0, time.UTC)

func evt(offset time.Duration, channel, message string) Event {
	return Event{Timestamp: t0.Add(offset), Channel: channel, Message: message}
}

func identity(offset time.Duration, id, name string) Event {
	return evt(offset, ChannelIdentity, "Got MMP event: { userId: "+id+", username: '"+name+"' }")
}

// feedAll runs events through a fresh machine and collects emitted sessions.
func feedAll(t *testing.T, r *Reconstructor, events []Event) []Session {
	t.Helper()
	var sessions []Session
	for _, ev := range events {
		err := r.Feed(ev, func(s Session) error {
			sessions = append(sessions, s)
			return nil
		})
		if err != nil {
			t.Fatalf("Feed(%+v) error = %v", ev, err)
		}
	}
	return sessions
}

func TestCompletePair(t *testing.T) {
	r := NewReconstructor(nil)
	sessions := feedAll(t, r, []Event{
		identity(0, "7", "bob"),
		evt(1*time.Minute, ChannelControl, "Laser started"),
		evt(6*time.Minute, ChannelControl, "Laser shutdown"),
	})

	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	s := sessions[0]
	if s.UserID != "7" || s.UserName != "bob" {
		t.Errorf("session user = %q/%q, want 7/bob", s.UserID, s.UserName)
	}
	if s.Duration() != 5*time.Minute {
		t.Errorf("duration = %v, want 5m", s.Duration())
	}
}

func TestStartWithoutIdentityProducesNoSession(t *testing.T) {
	r := NewReconstructor(nil)
	sessions := feedAll(t, r, []Event{
		evt(0, ChannelControl, "Laser started"),
		evt(5*time.Minute, ChannelControl, "Laser shutdown"),
	})
	if len(sessions) != 0 {
		t.Fatalf("got %d sessions, want 0", len(sessions))
	}

	// The machine stays clean: a subsequent valid pair still works.
	sessions = feedAll(t, r, []Event{
		identity(10*time.Minute, "7", "bob"),
		evt(11*time.Minute, ChannelControl, "Laser started"),
		evt(12*time.Minute, ChannelControl, "Laser shutdown"),
	})
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions after recovery, want 1", len(sessions))
	}
}

func TestDuplicateStartLastWins(t *testing.T) {
	r := NewReconstructor(nil)
	sessions := feedAll(t, r, []Event{
		identity(0, "7", "bob"),
		evt(1*time.Minute, ChannelControl, "Laser started"),
		evt(3*time.Minute, ChannelControl, "Laser started"),
		evt(8*time.Minute, ChannelControl, "Laser shutdown"),
	})

	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	if got := sessions[0].Start; !got.Equal(t0.Add(3 * time.Minute)) {
		t.Errorf("session start = %v, want the second start %v", got, t0.Add(3*time.Minute))
	}
	if sessions[0].Duration() != 5*time.Minute {
		t.Errorf("duration = %v, want 5m", sessions[0].Duration())
	}
}

func TestOrphanedShutdownIsNoOp(t *testing.T) {
	r := NewReconstructor(nil)
	sessions := feedAll(t, r, []Event{
		evt(0, ChannelControl, "Laser shutdown"),
		identity(1*time.Minute, "7", "bob"),
		evt(2*time.Minute, ChannelControl, "Laser shutdown"), // identity but no start
		evt(3*time.Minute, ChannelControl, "Laser started"),
		evt(4*time.Minute, ChannelControl, "Laser shutdown"),
	})

	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	if sessions[0].Duration() != 1*time.Minute {
		t.Errorf("duration = %v, want 1m", sessions[0].Duration())
	}
}

func TestSlotsClearAfterEmission(t *testing.T) {
	r := NewReconstructor(nil)
	sessions := feedAll(t, r, []Event{
		identity(0, "7", "bob"),
		evt(1*time.Minute, ChannelControl, "Laser started"),
		evt(2*time.Minute, ChannelControl, "Laser shutdown"),
		// Both slots are spent; this one must be discarded.
		evt(3*time.Minute, ChannelControl, "Laser shutdown"),
	})
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
}

func TestIdentityMapLastWriteWins(t *testing.T) {
	r := NewReconstructor(nil)
	feedAll(t, r, []Event{
		identity(0, "42", "alice"),
		identity(1*time.Minute, "42", "alice2"),
	})

	if got := r.Names()["42"]; got != "alice2" {
		t.Errorf("Names()[42] = %q, want %q", got, "alice2")
	}
}

func TestIdentityWithoutFieldsLeavesStateAlone(t *testing.T) {
	r := NewReconstructor(nil)
	sessions := feedAll(t, r, []Event{
		identity(0, "7", "bob"),
		evt(1*time.Minute, ChannelIdentity, "heartbeat"), // no user fields
		evt(2*time.Minute, ChannelControl, "Laser started"),
		evt(3*time.Minute, ChannelControl, "Laser shutdown"),
	})

	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	if sessions[0].UserID != "7" {
		t.Errorf("session user = %q, want 7", sessions[0].UserID)
	}
}

func TestUnknownChannelsIgnored(t *testing.T) {
	r := NewReconstructor(nil)
	sessions := feedAll(t, r, []Event{
		identity(0, "7", "bob"),
		evt(1*time.Minute, "laser:web", "Laser started"), // wrong channel
		evt(2*time.Minute, ChannelControl, "Laser warming up"),
		evt(3*time.Minute, ChannelControl, "Laser shutdown"),
	})
	if len(sessions) != 0 {
		t.Fatalf("got %d sessions, want 0", len(sessions))
	}
}

func TestOutOfOrderPairFails(t *testing.T) {
	r := NewReconstructor(nil)
	feedAll(t, r, []Event{
		identity(0, "7", "bob"),
		evt(10*time.Minute, ChannelControl, "Laser started"),
	})

	err := r.Feed(evt(5*time.Minute, ChannelControl, "Laser shutdown"), func(Session) error {
		t.Fatal("session emitted for negative duration")
		return nil
	})
	if !errors.Is(err, ErrNegativeDuration) {
		t.Errorf("Feed() error = %v, want ErrNegativeDuration", err)
	}
}
