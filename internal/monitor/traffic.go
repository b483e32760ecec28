package monitor

import (
	"sync"
	"time"
)

type trafficSample struct {
	recv uint64
	sent uint64
	at   time.Time
}

// trafficWindow keeps recent interface counter samples and derives transfer
// rates from the span between the oldest and newest sample still inside the
// window. Aggregated counters per poll are enough; the health endpoint does
// not expose per-interface detail.
type trafficWindow struct {
	mu      sync.Mutex
	span    time.Duration
	cap     int
	samples []trafficSample
}

func newTrafficWindow(capacity int, span time.Duration) *trafficWindow {
	if capacity <= 0 {
		capacity = 10
	}
	if span <= 0 {
		span = 6 * time.Second
	}
	return &trafficWindow{cap: capacity, span: span}
}

func (w *trafficWindow) observe(recv, sent uint64, at time.Time) {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.samples = append(w.samples, trafficSample{recv: recv, sent: sent, at: at})
	if len(w.samples) > w.cap {
		w.samples = w.samples[len(w.samples)-w.cap:]
	}
}

// rate returns received and sent bytes per second, or zeros until two samples
// fall inside the window. A counter reset makes the newest sample smaller
// than the oldest; treat that as no data.
func (w *trafficWindow) rate(now time.Time) (recvPerSec, sentPerSec float64) {
	if w == nil {
		return 0, 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	first := -1
	for i, s := range w.samples {
		if now.Sub(s.at) <= w.span {
			first = i
			break
		}
	}
	if first < 0 || first == len(w.samples)-1 {
		return 0, 0
	}

	oldest := w.samples[first]
	newest := w.samples[len(w.samples)-1]
	dt := newest.at.Sub(oldest.at).Seconds()
	if dt <= 0 || newest.recv < oldest.recv || newest.sent < oldest.sent {
		return 0, 0
	}
	return float64(newest.recv-oldest.recv) / dt, float64(newest.sent-oldest.sent) / dt
}
