// SPDX-License-Identifier: MIT

package resilience

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// MaxJitter bounds the additive jitter: [0, MaxJitter).
const MaxJitter = time.Second

// Policy bounds reconnection.
type Policy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// DefaultPolicy is 1s base, 30s cap, 10 attempts.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		MaxAttempts: 10,
	}
}

// Validate rejects policies that cannot make progress.
func (p Policy) Validate() error {
	if p.BaseDelay <= 0 {
		return fmt.Errorf("base delay must be positive, got %s", p.BaseDelay)
	}
	if p.MaxDelay < p.BaseDelay {
		return fmt.Errorf("max delay %s is below base delay %s", p.MaxDelay, p.BaseDelay)
	}
	if p.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive, got %d", p.MaxAttempts)
	}
	return nil
}

// Backoff is min(BaseDelay * 2^attempt + jitter, MaxDelay).
func Backoff(p Policy, attempt int, jitter time.Duration) time.Duration {
	exp := p.BaseDelay
	for i := 0; i < attempt && exp < p.MaxDelay; i++ {
		exp *= 2
	}
	delay := exp + jitter
	if delay > p.MaxDelay || delay < 0 {
		delay = p.MaxDelay
	}
	return delay
}

func randomJitter() time.Duration {
	return time.Duration(rand.Int64N(int64(MaxJitter)))
}
