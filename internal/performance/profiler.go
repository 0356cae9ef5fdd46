package performance

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"
)

// Profiler aggregates timings and counters for stream operations
// (refresh passes, chunk generation, payload encoding). Disabled
// profilers record nothing and cost almost nothing on the refresh path.
type Profiler struct {
	mu        sync.RWMutex
	enabled   bool
	startTime time.Time
	timings   map[string]*Timing
	counters  map[string]int64
}

// Timing holds aggregate statistics for one named operation.
type Timing struct {
	Count int64         `json:"count"`
	Total time.Duration `json:"total_ns"`
	Min   time.Duration `json:"min_ns"`
	Max   time.Duration `json:"max_ns"`
	Last  time.Duration `json:"last_ns"`
}

// Average returns the mean duration over all recorded calls.
func (t *Timing) Average() time.Duration {
	if t.Count == 0 {
		return 0
	}
	return t.Total / time.Duration(t.Count)
}

// Operation is one in-flight timed operation.
type Operation struct {
	profiler *Profiler
	name     string
	start    time.Time
}

// NewProfiler creates a profiler.
func NewProfiler(enabled bool) *Profiler {
	return &Profiler{
		enabled:   enabled,
		startTime: time.Now(),
		timings:   make(map[string]*Timing),
		counters:  make(map[string]int64),
	}
}

// Start begins timing an operation. Returns nil when disabled; End is
// safe to call on a nil Operation.
func (p *Profiler) Start(name string) *Operation {
	if !p.enabled {
		return nil
	}
	return &Operation{profiler: p, name: name, start: time.Now()}
}

// End completes the operation and records its duration.
func (o *Operation) End() {
	if o == nil {
		return
	}
	o.profiler.Record(o.name, time.Since(o.start))
}

// Record adds one duration sample for the named operation.
func (p *Profiler) Record(name string, d time.Duration) {
	if !p.enabled {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.timings[name]
	if !ok {
		t = &Timing{Min: d, Max: d}
		p.timings[name] = t
	}
	t.Count++
	t.Total += d
	t.Last = d
	if d < t.Min {
		t.Min = d
	}
	if d > t.Max {
		t.Max = d
	}
}

// Add increments a named counter (chunks created, chunks evicted,
// payloads sent).
func (p *Profiler) Add(name string, delta int64) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	p.counters[name] += delta
	p.mu.Unlock()
}

// Snapshot copies all metrics for JSON serialization in the health
// endpoint.
func (p *Profiler) Snapshot() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	timings := make(map[string]*Timing, len(p.timings))
	for name, t := range p.timings {
		copied := *t
		timings[name] = &copied
	}
	counters := make(map[string]int64, len(p.counters))
	for name, v := range p.counters {
		counters[name] = v
	}

	return map[string]interface{}{
		"enabled":   p.enabled,
		"uptime_ns": time.Since(p.startTime),
		"timings":   timings,
		"counters":  counters,
	}
}

// Report renders a human-readable summary, one line per operation.
func (p *Profiler) Report() string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.timings) == 0 && len(p.counters) == 0 {
		return "no metrics recorded"
	}

	names := make([]string, 0, len(p.timings))
	for name := range p.timings {
		names = append(names, name)
	}
	sort.Strings(names)

	report := fmt.Sprintf("uptime=%s", time.Since(p.startTime).Round(time.Second))
	for _, name := range names {
		t := p.timings[name]
		report += fmt.Sprintf(" | %s: n=%d avg=%s max=%s",
			name, t.Count, t.Average().Round(time.Microsecond), t.Max.Round(time.Microsecond))
	}

	counterNames := make([]string, 0, len(p.counters))
	for name := range p.counters {
		counterNames = append(counterNames, name)
	}
	sort.Strings(counterNames)
	for _, name := range counterNames {
		report += fmt.Sprintf(" | %s=%d", name, p.counters[name])
	}
	return report
}

// LogEvery emits the report on the given interval until stop is closed.
// A non-positive interval disables periodic logging.
func (p *Profiler) LogEvery(interval time.Duration, stop <-chan struct{}) {
	if !p.enabled || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				log.Printf("[Perf] %s", p.Report())
			case <-stop:
				return
			}
		}
	}()
}

// Reset clears all recorded metrics.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timings = make(map[string]*Timing)
	p.counters = make(map[string]int64)
	p.startTime = time.Now()
}

// IsEnabled reports whether the profiler records metrics.
func (p *Profiler) IsEnabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled
}
