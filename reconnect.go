package circl

import "time"

// reconnectPolicy decides how long to wait before each reconnect attempt.
// The delay doubles from initial up to max; with initial == max (the default)
// every attempt waits the same fixed delay. maxAttempts 0 means unlimited.
type reconnectPolicy struct {
	initial     time.Duration
	max         time.Duration
	maxAttempts int

	current  time.Duration
	attempts int
}

func newReconnectPolicy(initial, max time.Duration, maxAttempts int) *reconnectPolicy {
	if max < initial {
		max = initial
	}
	return &reconnectPolicy{
		initial:     initial,
		max:         max,
		maxAttempts: maxAttempts,
		current:     initial,
	}
}

// next returns the delay for the next attempt, or false when the attempt
// budget is spent.
func (p *reconnectPolicy) next() (time.Duration, bool) {
	if p.maxAttempts > 0 && p.attempts >= p.maxAttempts {
		return 0, false
	}
	p.attempts++

	d := p.current
	p.current *= 2
	if p.current > p.max {
		p.current = p.max
	}
	if d > p.max {
		d = p.max
	}
	return d, true
}

// reset is called after a successful connect.
func (p *reconnectPolicy) reset() {
	p.current = p.initial
	p.attempts = 0
}
