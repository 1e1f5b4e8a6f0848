// Package laserlog reconstructs laser-cutter usage sessions from the
// machine's text logs. A single forward pass pairs identity events from the
// control panel with the laser's start/stop transitions and emits one
// Session per completed pair.
package laserlog

import "time"

// Channel tokens as they appear in the logs.
const (
	// ChannelIdentity carries MMP control-panel telemetry, including which
	// user is currently badged in.
	ChannelIdentity = "laser:mmp"
	// ChannelControl carries the laser's physical start/stop transitions.
	ChannelControl = "laser:control"
)

// Control messages that bound a session. Matched exactly.
const (
	msgStarted  = "Laser started"
	msgShutdown = "Laser shutdown"
)

// Event is one parsed log line.
type Event struct {
	Timestamp time.Time
	Channel   string
	Message   string
}

// Session is one continuous interval during which a single identified user
// operated the laser, bounded by a start and a shutdown control event.
type Session struct {
	UserID   string
	UserName string
	Start    time.Time
	End      time.Time

	// Energy is the normalized mean energy level over the session,
	// filled in during aggregation. Zero when the store had no points.
	Energy float64
}

// Duration is the session length. Never negative for an emitted session.
func (s Session) Duration() time.Duration {
	return s.End.Sub(s.Start)
}
