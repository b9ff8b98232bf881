package session

import "time"

// Ticker delivers countdown ticks.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates tickers. Tests swap in a manual clock.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

// SystemClock is backed by time.Ticker.
type SystemClock struct{}

// NewTicker wraps time.NewTicker.
func (SystemClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }
