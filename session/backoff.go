package session

import (
	"math/rand"
	"time"
)

// RetryPolicy is the single reconnect policy every code path consumes.
// MaxAttempts and WipeOnLimit are deliberately configuration knobs rather
// than hardcoded values: zero MaxAttempts retries forever.
type RetryPolicy struct {
	Base        time.Duration
	Ceiling     time.Duration
	Jitter      bool
	WipeDelay   time.Duration // fixed delay before reconnecting after a credential wipe
	MaxAttempts int
	WipeOnLimit bool
}

// Delay computes min(Ceiling, Base*2^attempt), plus up to 25% jitter when
// enabled. The result never exceeds Ceiling.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	d := p.Ceiling
	if attempt < 62 {
		if shifted := p.Base << uint(attempt); shifted > 0 && shifted < p.Ceiling {
			d = shifted
		}
	}

	if p.Jitter {
		d += time.Duration(rand.Int63n(int64(d)/4 + 1))
		if d > p.Ceiling {
			d = p.Ceiling
		}
	}
	return d
}

// limitReached reports whether attempt has hit the configured ceiling for
// consecutive failures. Never true when MaxAttempts is zero.
func (p RetryPolicy) limitReached(attempt int) bool {
	return p.MaxAttempts > 0 && attempt >= p.MaxAttempts
}
