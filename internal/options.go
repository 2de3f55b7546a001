package internal

import (
	"time"

	"github.com/joeycumines/logiface"
)

// schedulerOptions holds resolved configuration for Scheduler creation.
type schedulerOptions struct {
	profile Profile
	host    Host
	logger  *logiface.Logger[logiface.Event]
}

// Option configures a Scheduler instance.
type Option interface {
	apply(*schedulerOptions)
}

type optionImpl struct {
	fn func(*schedulerOptions)
}

func (o *optionImpl) apply(opts *schedulerOptions) {
	o.fn(opts)
}

// WithProfile sets the timing policy (frame budget and priority timeouts).
func WithProfile(p Profile) Option {
	return &optionImpl{func(opts *schedulerOptions) {
		opts.profile = p
	}}
}

// WithFrameInterval overrides just the time-slice budget of the profile.
func WithFrameInterval(d time.Duration) Option {
	return &optionImpl{func(opts *schedulerOptions) {
		opts.profile.FrameInterval = d
	}}
}

// WithHost sets the host driving the scheduler. Defaults to a real-time
// host running callbacks on a dedicated goroutine; tests usually pass a
// ManualHost instead.
func WithHost(h Host) Option {
	return &optionImpl{func(opts *schedulerOptions) {
		opts.host = h
	}}
}

// WithLogger attaches a structured logger. A nil logger disables logging.
func WithLogger(l *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *schedulerOptions) {
		opts.logger = l
	}}
}

func resolveOptions(opts []Option) *schedulerOptions {
	cfg := &schedulerOptions{
		profile: DefaultProfile(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(cfg)
	}
	if cfg.host == nil {
		cfg.host = NewHost()
	}
	return cfg
}
