package internal

import (
	"math/rand"
	"sync"
	"time"
)

// lockedRand is a math/rand source safe for use from reconnect timers.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) int63n(n int64) int64 {
	if n <= 0 {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Int63n(n)
}

// reseed swaps the source and returns a func restoring the previous one.
func (l *lockedRand) reseed(seed int64) (restore func()) {
	l.mu.Lock()
	prev := l.r
	l.r = rand.New(rand.NewSource(seed))
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		l.r = prev
		l.mu.Unlock()
	}
}

var reconnectRand = &lockedRand{r: rand.New(rand.NewSource(time.Now().UnixNano()))}

// applyJitter moves d by a uniform offset in [-jitter, +jitter]. An offset
// that would leave the delay at or below zero is discarded.
func applyJitter(d, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return d
	}
	span := int64(2*jitter) + 1
	shifted := d + time.Duration(reconnectRand.int63n(span)) - jitter
	if shifted <= 0 {
		return d
	}
	return shifted
}
