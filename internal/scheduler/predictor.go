package scheduler

import (
	"sync"

	"github.com/chipsneutrino/daqonite/internal/util"
)

// TriggerPredictor maintains a ring buffer of the last N observed
// intervals between external trigger signals and predicts the next
// trigger's spacing as their median, grounded directly on
// trigger_predictor.h's median-filter design.
type TriggerPredictor struct {
	mu sync.Mutex

	observed       []float64 // ring buffer of interval seconds
	next           int       // next slot to overwrite
	lastTimestamp  float64
	haveLast       bool
	learnedInterval float64
}

// NewTriggerPredictor returns a predictor holding up to nLast
// intervals, seeded with an initial interval guess (seconds) used
// before any trigger has been observed.
func NewTriggerPredictor(nLast int, initInterval float64) *TriggerPredictor {
	return &TriggerPredictor{
		observed:        make([]float64, 0, nLast),
		learnedInterval: initInterval,
	}
}

// AddTrigger records a newly observed trigger timestamp (seconds) and
// updates the learned interval from the median of recent gaps.
func (p *TriggerPredictor) AddTrigger(timestamp float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.haveLast {
		interval := timestamp - p.lastTimestamp
		if cap(p.observed) > 0 {
			if len(p.observed) < cap(p.observed) {
				p.observed = append(p.observed, interval)
			} else {
				p.observed[p.next] = interval
				p.next = (p.next + 1) % cap(p.observed)
			}
		}
	}
	p.lastTimestamp = timestamp
	p.haveLast = true

	if len(p.observed) > 0 {
		if m, err := util.Median(p.observed); err == nil {
			p.learnedInterval = m
		}
	}
}

// LearnedInterval returns the predictor's current best estimate of
// the trigger period, in seconds.
func (p *TriggerPredictor) LearnedInterval() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.learnedInterval
}
