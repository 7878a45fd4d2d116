// Package pacer spaces outbound calls to stay within a service's usage
// policy: a minimum delay between consecutive call starts, plus an extra
// pause when the caller moves on to the next group of work.
package pacer

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Pacer is not safe for concurrent use; callers issue calls sequentially.
type Pacer struct {
	clock      clockwork.Clock
	minDelay   time.Duration
	groupPause time.Duration

	last      time.Time
	started   bool
	pauseNext bool
	waited    time.Duration
}

// Option configures a Pacer.
type Option func(*Pacer)

// WithClock swaps the time source, mainly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pacer) {
		if c != nil {
			p.clock = c
		}
	}
}

// New returns a pacer that keeps call starts at least minDelay apart and adds
// groupPause before the first call after NextGroup.
func New(minDelay, groupPause time.Duration, opts ...Option) *Pacer {
	p := &Pacer{
		clock:      clockwork.NewRealClock(),
		minDelay:   max(minDelay, 0),
		groupPause: max(groupPause, 0),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// MinDelay returns the configured inter-call delay.
func (p *Pacer) MinDelay() time.Duration { return p.minDelay }

// Wait blocks until the next call may start and marks that start. The first
// call never waits. It returns ctx.Err() if ctx ends first, in which case no
// start is recorded.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if p.started {
		gap := p.minDelay
		if p.pauseNext {
			gap += p.groupPause
		}
		if d := p.last.Add(gap).Sub(p.clock.Now()); d > 0 {
			timer := p.clock.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.Chan():
			}
			p.waited += d
		}
	}

	p.last = p.clock.Now()
	p.started = true
	p.pauseNext = false
	return nil
}

// NextGroup schedules the group pause before the next call. It has no effect
// until at least one call has been made.
func (p *Pacer) NextGroup() {
	if p.started {
		p.pauseNext = true
	}
}

// Waited returns the total time spent blocked in Wait.
func (p *Pacer) Waited() time.Duration { return p.waited }
