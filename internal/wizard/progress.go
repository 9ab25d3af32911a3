package wizard

import (
	"sync"
	"time"
)

// progressCap is the ceiling the simulation holds until the real result
// arrives.
const progressCap = 95

// researchMessages rotate under the progress bar while research runs.
var researchMessages = []string{
	"Studying your market...",
	"Analyzing what works on your platform...",
	"Drafting content angles...",
	"Ranking post ideas...",
	"Polishing your strategy...",
}

// ProgressSink receives simulated progress updates.
type ProgressSink interface {
	Progress(percent int, message string)
}

// simulator drives a fake progress animation decoupled from the real
// network call. It is cancellable and must be torn down in the same handler
// that processes the real result; a ticking leak after the step moved on is
// a defect.
type simulator struct {
	mu      sync.Mutex
	sink    ProgressSink
	ticker  *time.Ticker
	done    chan struct{}
	percent int
	msgIdx  int
	stopped bool
}

// startSimulator begins emitting monotonically increasing progress, capped
// at progressCap, at the given cadence.
func startSimulator(sink ProgressSink, interval time.Duration) *simulator {
	s := &simulator{
		sink:   sink,
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}
	s.emit(5)
	go s.run()
	return s
}

func (s *simulator) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.ticker.C:
			s.mu.Lock()
			if s.stopped {
				s.mu.Unlock()
				return
			}
			s.percent += 3
			if s.percent > progressCap {
				s.percent = progressCap
			}
			msg := researchMessages[s.msgIdx%len(researchMessages)]
			s.msgIdx++
			if s.sink != nil {
				s.sink.Progress(s.percent, msg)
			}
			s.mu.Unlock()
		}
	}
}

// finish forces the value to 100 and clears the ticker (success path).
func (s *simulator) finish() {
	if s.stop() {
		s.emit(100)
	}
}

// abort clears the ticker without touching the value (failure path).
func (s *simulator) abort() {
	s.stop()
}

// stop tears the ticker down exactly once.
func (s *simulator) stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.stopped = true
	s.ticker.Stop()
	close(s.done)
	return true
}

// emit reports an exact value. Serialized with the ticker goroutine so a
// stale tick can never land after the final 100.
func (s *simulator) emit(pct int) {
	s.mu.Lock()
	s.percent = pct
	if s.sink != nil {
		s.sink.Progress(pct, "")
	}
	s.mu.Unlock()
}
