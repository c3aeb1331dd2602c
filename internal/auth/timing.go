package auth

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"
)

// TimingDelay pads failed authentication attempts to a common duration so
// an unknown email and a wrong password take the same time to answer.
type TimingDelay struct {
	base   time.Duration
	jitter time.Duration
}

// NewTimingDelay pads to base plus a random amount below jitter.
func NewTimingDelay(base, jitter time.Duration) *TimingDelay {
	return &TimingDelay{base: base, jitter: jitter}
}

// target returns base plus crypto-random jitter.
func (td *TimingDelay) target() time.Duration {
	if td.jitter <= 0 {
		return td.base
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(td.jitter)))
	if err != nil {
		return td.base
	}
	return td.base + time.Duration(n.Int64())
}

// PadFrom blocks until the target duration has elapsed since start or ctx is
// done. A nil TimingDelay does nothing.
func (td *TimingDelay) PadFrom(ctx context.Context, start time.Time) {
	if td == nil {
		return
	}

	remaining := td.target() - time.Since(start)
	if remaining <= 0 {
		return
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
