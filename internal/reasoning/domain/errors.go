package domain

import (
	"errors"
	"fmt"
)

// Sentinel roots for the error taxonomy in §7. Every error returned from
// the reasoning path wraps one of these so callers can classify it with
// errors.Is without string matching.
var (
	// ErrInputInvalid: malformed/out-of-range detection record, or a
	// track id conflict within a frame. Dropped silently with a counter;
	// never aborts the pipeline.
	ErrInputInvalid = errors.New("input invalid")

	// ErrStateCorrupted: a per-track invariant could not be restored.
	// The track's state is destroyed and recreated lazily.
	ErrStateCorrupted = errors.New("state corrupted")

	// ErrZoneConfig: malformed polygon, unknown zone type, or a weight
	// table that fails to normalize. Fatal at configuration load.
	ErrZoneConfig = errors.New("zone configuration error")

	// ErrStoreUnavailable: the event store is not ready to serve reads
	// (startup/shutdown). Surfaced as HTTP 503.
	ErrStoreUnavailable = errors.New("event store unavailable")

	// ErrSubscriberSlow: a WS subscriber's buffer was full; oldest
	// pending messages were dropped for that subscriber only. Recovered,
	// never propagated to the publisher.
	ErrSubscriberSlow = errors.New("subscriber slow")
)

func newInputInvalid(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrInputInvalid)...)
}

func newStateCorrupted(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrStateCorrupted)...)
}

func newZoneConfigError(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrZoneConfig)...)
}

// NewInputInvalid builds an error rooted in ErrInputInvalid. Exported for
// use by packages outside domain that need to raise the same taxonomy.
func NewInputInvalid(format string, args ...interface{}) error {
	return newInputInvalid(format, args...)
}

// NewStateCorrupted builds an error rooted in ErrStateCorrupted.
func NewStateCorrupted(format string, args ...interface{}) error {
	return newStateCorrupted(format, args...)
}

// NewZoneConfigError builds an error rooted in ErrZoneConfig.
func NewZoneConfigError(format string, args ...interface{}) error {
	return newZoneConfigError(format, args...)
}
