// Package analytics aggregates lightweight operational metrics (counters and
// timings) in a background goroutine and flushes count/avg/max snapshots to
// the structured log on an interval.
package analytics

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type sample struct {
	metric string
	value  float64
	timed  bool
}

type aggregate struct {
	count float64
	total float64
	max   float64
}

// Tracker collects samples until Stop. The zero value is not usable; use New.
// Stop is idempotent and samples submitted after Stop are dropped.
type Tracker struct {
	log      zerolog.Logger
	interval time.Duration
	samples  chan sample
	done     chan struct{}

	mu      sync.RWMutex
	started bool
	stopped bool
}

// New returns a tracker flushing every interval once started.
func New(log zerolog.Logger, interval time.Duration) *Tracker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Tracker{
		log:      log,
		interval: interval,
		samples:  make(chan sample, 256),
		done:     make(chan struct{}),
	}
}

// Start launches the aggregation goroutine. Starting twice or after Stop is
// a no-op.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started || t.stopped {
		return
	}
	t.started = true
	go t.run()
}

// Stop drains pending samples, flushes a final snapshot and waits for the
// goroutine to exit. Safe to call more than once, and without a prior Start.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	started := t.started
	close(t.samples)
	t.mu.Unlock()

	if started {
		<-t.done
	}
}

// Record counts one occurrence of metric.
func (t *Tracker) Record(metric string) {
	t.submit(sample{metric: metric})
}

// Observe records a measured value (seconds, bytes, ...) for metric.
func (t *Tracker) Observe(metric string, value float64) {
	t.submit(sample{metric: metric, value: value, timed: true})
}

// TrackTime returns a func that, when called, records the elapsed time for
// metric. Intended for defer at the top of an operation.
func (t *Tracker) TrackTime(metric string) func() {
	start := time.Now()
	return func() { t.Observe(metric, time.Since(start).Seconds()) }
}

// submit drops samples instead of blocking when the tracker is saturated or
// already stopped. The read lock keeps the send from racing Stop's close.
func (t *Tracker) submit(s sample) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.stopped {
		return
	}
	select {
	case t.samples <- s:
	default:
	}
}

func (t *Tracker) run() {
	defer close(t.done)

	metrics := make(map[string]*aggregate)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case s, ok := <-t.samples:
			if !ok {
				t.flush(metrics)
				return
			}
			bucket, exists := metrics[s.metric]
			if !exists {
				bucket = &aggregate{}
				metrics[s.metric] = bucket
			}
			bucket.count++
			if s.timed {
				bucket.total += s.value
				if s.value > bucket.max {
					bucket.max = s.value
				}
			}
		case <-ticker.C:
			t.flush(metrics)
			metrics = make(map[string]*aggregate)
		}
	}
}

func (t *Tracker) flush(metrics map[string]*aggregate) {
	if len(metrics) == 0 {
		return
	}
	snapshot := make(map[string]map[string]float64, len(metrics))
	for metric, agg := range metrics {
		avg := 0.0
		if agg.count > 0 {
			avg = agg.total / agg.count
		}
		snapshot[metric] = map[string]float64{
			"count": agg.count,
			"avg":   avg,
			"max":   agg.max,
		}
	}
	t.log.Info().Interface("metrics", snapshot).Msg("analytics_snapshot")
}
