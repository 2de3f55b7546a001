package internal

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ErrInvalidProfile marks profile decode failures; match with errors.Is.
var ErrInvalidProfile = errors.New("loom: invalid profile")

// maxTimeout is far enough in the future that idle tasks never expire
// under normal operation, while still being safe to add to a time.Time.
const maxTimeout = (1<<31 - 1) * time.Millisecond

// Profile holds the timing policy of a scheduler: the frame budget and the
// per-priority expiration timeouts. These are tuning parameters, not
// structural constants, so they can be overridden per instance or loaded
// from a TOML profile.
type Profile struct {
	FrameInterval       time.Duration
	UserBlockingTimeout time.Duration
	NormalTimeout       time.Duration
	LowTimeout          time.Duration
}

func DefaultProfile() Profile {
	return Profile{
		FrameInterval:       5 * time.Millisecond,
		UserBlockingTimeout: 250 * time.Millisecond,
		NormalTimeout:       5 * time.Second,
		LowTimeout:          10 * time.Second,
	}
}

// Timeout maps a priority level to its expiration timeout.
// Immediate is already expired on arrival, idle effectively never expires.
func (p Profile) Timeout(prio Priority) time.Duration {
	switch prio {
	case PriorityImmediate:
		return -1 * time.Millisecond
	case PriorityUserBlocking:
		return p.UserBlockingTimeout
	case PriorityLow:
		return p.LowTimeout
	case PriorityIdle:
		return maxTimeout
	default:
		return p.NormalTimeout
	}
}

// profileTOML is the wire form of a Profile. Durations are plain
// milliseconds so profiles stay trivial to write by hand.
type profileTOML struct {
	FrameIntervalMillis       int64 `toml:"frame_interval_ms"`
	UserBlockingTimeoutMillis int64 `toml:"user_blocking_timeout_ms"`
	NormalTimeoutMillis       int64 `toml:"normal_timeout_ms"`
	LowTimeoutMillis          int64 `toml:"low_timeout_ms"`
}

// LoadProfile decodes a TOML timing profile. Missing keys keep their
// default values.
func LoadProfile(r io.Reader) (Profile, error) {
	p := DefaultProfile()

	var raw profileTOML
	if err := toml.NewDecoder(r).Decode(&raw); err != nil {
		return p, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}

	if raw.FrameIntervalMillis > 0 {
		p.FrameInterval = time.Duration(raw.FrameIntervalMillis) * time.Millisecond
	}
	if raw.UserBlockingTimeoutMillis > 0 {
		p.UserBlockingTimeout = time.Duration(raw.UserBlockingTimeoutMillis) * time.Millisecond
	}
	if raw.NormalTimeoutMillis > 0 {
		p.NormalTimeout = time.Duration(raw.NormalTimeoutMillis) * time.Millisecond
	}
	if raw.LowTimeoutMillis > 0 {
		p.LowTimeout = time.Duration(raw.LowTimeoutMillis) * time.Millisecond
	}

	return p, nil
}
