// timer/timer.go
package timer

import (
	"context"
	"time"

	"github.com/wfunc/serra/logger"
)

// DefaultInterval bounds how late an expired turn can be noticed.
const DefaultInterval = 250 * time.Millisecond

// Tickable is driven by the clock. Tick reports whether it acted.
type Tickable interface {
	Tick(now time.Time) bool
}

// Clock polls every Tickable the source returns, once per interval. One
// clock serves all rooms.
type Clock struct {
	interval time.Duration
	source   func() []Tickable
	now      func() time.Time
	onTick   func(acted int)
}

// Option configures a Clock.
type Option func(*Clock)

// WithNow replaces time.Now.
func WithNow(now func() time.Time) Option {
	return func(c *Clock) { c.now = now }
}

// WithTickHook is called after each tick with the number of targets that
// acted.
func WithTickHook(hook func(acted int)) Option {
	return func(c *Clock) { c.onTick = hook }
}

func NewClock(interval time.Duration, source func() []Tickable, opts ...Option) *Clock {
	if interval <= 0 {
		interval = DefaultInterval
	}
	c := &Clock{
		interval: interval,
		source:   source,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Interval returns the tick period.
func (c *Clock) Interval() time.Duration {
	return c.interval
}

// Run ticks until ctx is done.
func (c *Clock) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	logger.Log.Infof("Turn clock started, interval %s", c.interval)
	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("Turn clock stopped")
			return
		case <-ticker.C:
			c.TickOnce()
		}
	}
}

// TickOnce runs one pass over all targets and returns how many acted.
// A panicking target is logged and skipped.
func (c *Clock) TickOnce() int {
	now := c.now()
	acted := 0
	for _, t := range c.source() {
		if c.tick(t, now) {
			acted++
		}
	}
	if c.onTick != nil {
		c.onTick(acted)
	}
	return acted
}

func (c *Clock) tick(t Tickable, now time.Time) (acted bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("Turn clock: tick panicked: %v", r)
			acted = false
		}
	}()
	return t.Tick(now)
}
