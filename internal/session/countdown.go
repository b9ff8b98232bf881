package session

import (
	"context"
	"time"

	"github.com/neuroboost/study-core/internal/events"
	"github.com/neuroboost/study-core/internal/model"
)

// startCountdownLocked launches a 1-second countdown for the current session.
func (c *Controller) startCountdownLocked() {
	if c.closed {
		return
	}
	c.stopCountdownLocked()
	c.gen++
	gen := c.gen

	ctx, cancel := context.WithCancel(context.Background())
	c.stopTimer = cancel
	go c.runCountdown(ctx, gen, c.clock.NewTicker(time.Second))
}

// resumeCountdown starts the countdown if session id is still the active one.
// An expired session waits for a manual retry instead.
func (c *Controller) resumeCountdown(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != model.StateActive || c.sess == nil || c.sess.ID != id || c.expired {
		return
	}
	c.startCountdownLocked()
}

func (c *Controller) stopCountdownLocked() {
	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}
}

func (c *Controller) runCountdown(ctx context.Context, gen uint64, ticker Ticker) {
	defer ticker.Stop()

	// A zero-length test is already over.
	if c.expireIfDue(gen) {
		c.forceSubmit(gen)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if c.tick(gen) {
				c.forceSubmit(gen)
				return
			}
		}
	}
}

func (c *Controller) expireIfDue(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.sess == nil || c.sess.RemainingSeconds > 0 {
		return false
	}
	c.expired = true
	return true
}

// tick decrements the remaining time and reports whether it reached zero.
func (c *Controller) tick(gen uint64) bool {
	c.mu.Lock()
	if gen != c.gen || c.state != model.StateActive || c.sess == nil {
		c.mu.Unlock()
		return false
	}
	if c.sess.RemainingSeconds > 0 {
		c.sess.RemainingSeconds--
	}
	remaining := c.sess.RemainingSeconds
	id := c.sess.ID
	if remaining == 0 {
		c.expired = true
	}
	c.mu.Unlock()

	c.pub.Publish(events.Event{
		Type: events.TypeCountdown,
		Data: events.Countdown{SessionID: id, RemainingSeconds: remaining},
	})
	return remaining == 0
}

func (c *Controller) forceSubmit(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), c.submitTimeout)
	defer cancel()

	if _, err := c.submit(ctx, true, gen); err != nil {
		c.log.Error().Err(err).Msg("Forced submit failed, waiting for retry")
	}
}
