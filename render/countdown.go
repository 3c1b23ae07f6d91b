package render

import (
	"sync"
	"time"
)

// Countdown ticks once per second toward a scheduled deletion time,
// reporting the remaining display text each tick and firing an expiry
// callback once when the deadline passes. Stop is idempotent and safe
// to call concurrently with ticks; after Stop returns no further
// callback fires.
type Countdown struct {
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewCountdown starts a countdown toward until. onTick receives the
// display text each second, onExpire fires once at the deadline. Either
// callback may be nil.
func NewCountdown(until time.Time, onTick func(text string), onExpire func()) *Countdown {
	c := &Countdown{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(c.done)

		if onTick != nil {
			onTick(CountdownText(until, time.Now()))
		}
		// An already-passed deadline expires without waiting for a tick.
		if !time.Now().Before(until) {
			if onExpire != nil {
				onExpire()
			}
			return
		}

		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-c.stop:
				return
			case now := <-ticker.C:
				if !now.Before(until) {
					if onExpire != nil {
						onExpire()
					}
					return
				}
				if onTick != nil {
					onTick(CountdownText(until, now))
				}
			}
		}
	}()

	return c
}

// Stop halts the countdown without firing the expiry callback. It
// blocks until the ticking goroutine has exited.
func (c *Countdown) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	<-c.done
}
