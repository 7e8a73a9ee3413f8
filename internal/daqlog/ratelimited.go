package daqlog

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limited wraps a *rate.Limiter around one log call site so a single
// misbehaving POM cannot flood stderr with "malformed datagram" or
// "sequence gap" lines. Each call site keeps its own Limited instance;
// once the token bucket is empty, lines are dropped and a running
// suppressed count is folded into the next line that does get through.
type Limited struct {
	mu         sync.Mutex
	limiter    *rate.Limiter
	suppressed int
}

// NewLimited allows burst log lines immediately, then at most
// ratePerSec afterwards.
func NewLimited(ratePerSec float64, burst int) *Limited {
	return &Limited{limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst)}
}

func (l *Limited) Warnf(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.limiter.Allow() {
		l.suppressed++
		return
	}
	if l.suppressed > 0 {
		Warnf(format+" (%d similar suppressed)", append(v, l.suppressed)...)
		l.suppressed = 0
		return
	}
	Warnf(format, v...)
}

func (l *Limited) Errorf(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.limiter.Allow() {
		l.suppressed++
		return
	}
	if l.suppressed > 0 {
		Errorf(format+" (%d similar suppressed)", append(v, l.suppressed)...)
		l.suppressed = 0
		return
	}
	Errorf(format, v...)
}
