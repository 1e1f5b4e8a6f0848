package laserlog

import (
	"fmt"
	"regexp"
	"time"
)

// Log lines look like:
//
//	Wed, 17 Oct 2018 07:33:03 GMT laser:web New event from laser laserShutdown
var lineRE = regexp.MustCompile(`^(.*) GMT (\S+) (.*)$`)

// The MMP payload is not valid JSON, so the identity has to be fished out
// with a regexp rather than decoded.
var identityRE = regexp.MustCompile(`userId: (\d+), username: '(\S+)'`)

// timestampLayout covers the RFC-1123-ish prefix before the " GMT" marker,
// which the shape match consumes. Second resolution.
const timestampLayout = "Mon, 02 Jan 2006 15:04:05"

// Parse turns one raw log line into an Event. Lines that do not match the
// expected shape (blank lines, continuation lines, stack traces) yield
// ok=false and are skipped. A line that matches the shape but carries an
// invalid timestamp returns ErrBadTimestamp.
func Parse(raw string) (ev Event, ok bool, err error) {
	m := lineRE.FindStringSubmatch(raw)
	if m == nil {
		return Event{}, false, nil
	}

	ts, err := time.Parse(timestampLayout, m[1])
	if err != nil {
		return Event{}, false, fmt.Errorf("%w: %q", ErrBadTimestamp, m[1])
	}

	return Event{Timestamp: ts.UTC(), Channel: m[2], Message: m[3]}, true, nil
}

// ExtractIdentity pulls the (userId, username) pair out of an identity
// channel payload. ok is false when the payload has no identity fields;
// that is not an error, some MMP messages simply carry no user.
func ExtractIdentity(message string) (id, name string, ok bool) {
	m := identityRE.FindStringSubmatch(message)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
