package laserlog

import (
	"fmt"
	"log/slog"
	"time"
)

// Reconstructor replays an ordered event stream and pairs identity events
// with start/shutdown control events into completed sessions.
//
// The state is deliberately two slots, no queue and no timeout: there is one
// laser and one person at its panel at a time. A repeated start overwrites
// the pending one, and a shutdown with either slot empty is discarded (the
// controller emits one at power-up, before anyone has badged in).
type Reconstructor struct {
	logger *slog.Logger

	lastUserID   string
	pendingStart time.Time

	names map[string]string
}

// NewReconstructor returns a machine with both slots empty.
func NewReconstructor(logger *slog.Logger) *Reconstructor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconstructor{
		logger: logger,
		names:  make(map[string]string),
	}
}

// Names returns the userId -> username map built from identity events.
// Last write wins; entries accumulate independently of session pairing.
func (r *Reconstructor) Names() map[string]string {
	return r.names
}

// Feed advances the machine by one event. Events must arrive in
// chronological order. When an event completes a session, the session is
// handed to emit before Feed returns.
func (r *Reconstructor) Feed(ev Event, emit func(Session) error) error {
	switch ev.Channel {
	case ChannelIdentity:
		id, name, ok := ExtractIdentity(ev.Message)
		if !ok {
			r.logger.Debug("identity event without user fields", "message", ev.Message)
			return nil
		}
		r.lastUserID = id
		r.names[id] = name

	case ChannelControl:
		switch ev.Message {
		case msgStarted:
			// Last start wins; duplicate starts happen when the
			// controller reboots mid-job.
			r.pendingStart = ev.Timestamp

		case msgShutdown:
			if r.lastUserID == "" || r.pendingStart.IsZero() {
				r.logger.Debug("discarding orphaned shutdown", "timestamp", ev.Timestamp)
				return nil
			}
			s := Session{
				UserID:   r.lastUserID,
				UserName: r.names[r.lastUserID],
				Start:    r.pendingStart,
				End:      ev.Timestamp,
			}
			r.lastUserID = ""
			r.pendingStart = time.Time{}
			if s.End.Before(s.Start) {
				return fmt.Errorf("%w: user %s, start %s, end %s",
					ErrNegativeDuration, s.UserID,
					s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339))
			}
			return emit(s)
		}
	}
	return nil
}
