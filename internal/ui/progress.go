package ui

import (
	"sync"
	"time"
)

const (
	// rateSampleInterval spaces throughput samples far enough apart to
	// keep the displayed rate from flickering.
	rateSampleInterval = 500 * time.Millisecond

	// rateSmoothing weights new samples in the rolling average.
	rateSmoothing = 0.2

	// etaSmoothing weights new estimates; batch-to-batch variance makes
	// the raw ETA jump around.
	etaSmoothing = 0.3
)

// ProgressTracker accumulates progress state for the TUI. It is safe
// for concurrent use.
type ProgressTracker struct {
	mu         sync.RWMutex
	stage      Stage
	current    int
	total      int
	message    string
	startTime  time.Time
	stageStart time.Time
	errors     int
	warnings   int

	lastETA time.Duration

	lastCurrent int
	lastSample  time.Time
	rate        float64
	avgRate     float64
	peakRate    float64
	rateSamples int
	spark       *Sparkline
}

// Snapshot is a point-in-time view of tracker state.
type Snapshot struct {
	Stage    Stage
	Current  int
	Total    int
	Fraction float64
	ETA      time.Duration
	Message  string
	Errors   int
	Warnings int

	// Rate is the latest items-per-second sample; AvgRate and PeakRate
	// summarize the stage so far.
	Rate     float64
	AvgRate  float64
	PeakRate float64
}

// NewProgressTracker creates a tracker starting at the scanning stage.
func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		stage:      StageScanning,
		startTime:  now,
		stageStart: now,
		lastSample: now,
		spark:      NewSparkline(60),
	}
}

// SetStage transitions to a new stage, resetting per-stage state.
// Setting the current stage again is a no-op.
func (p *ProgressTracker) SetStage(stage Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stage == stage {
		return
	}

	now := time.Now()
	p.stage = stage
	p.current = 0
	p.total = 0
	p.message = ""
	p.stageStart = now
	p.lastETA = 0

	p.lastCurrent = 0
	p.lastSample = now
	p.rate = 0
	p.avgRate = 0
	p.peakRate = 0
	p.rateSamples = 0
	p.spark.Clear()
}

// Update records progress within the current stage. A zero total keeps
// the previous one; totals may grow as a stage discovers more work.
func (p *ProgressTracker) Update(current, total int, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = current
	if total > 0 {
		p.total = total
	}
	if message != "" {
		p.message = message
	}

	now := time.Now()
	elapsed := now.Sub(p.lastSample)
	if elapsed < rateSampleInterval {
		return
	}
	if delta := current - p.lastCurrent; delta > 0 {
		rate := float64(delta) / elapsed.Seconds()
		p.rate = rate
		p.rateSamples++
		if p.rateSamples == 1 {
			p.avgRate = rate
		} else {
			p.avgRate = rateSmoothing*rate + (1-rateSmoothing)*p.avgRate
		}
		if rate > p.peakRate {
			p.peakRate = rate
		}
		p.spark.Add(rate)
	}
	p.lastCurrent = current
	p.lastSample = now
}

// AddError counts an error or warning.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.IsWarn {
		p.warnings++
	} else {
		p.errors++
	}
}

// Stats returns a snapshot of the current state. It takes the write
// lock because ETA smoothing updates the previous estimate.
func (p *ProgressTracker) Stats() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	fraction := 0.0
	if p.total > 0 {
		fraction = float64(p.current) / float64(p.total)
		if fraction > 1 {
			fraction = 1
		}
	}

	return Snapshot{
		Stage:    p.stage,
		Current:  p.current,
		Total:    p.total,
		Fraction: fraction,
		ETA:      p.eta(),
		Message:  p.message,
		Errors:   p.errors,
		Warnings: p.warnings,
		Rate:     p.rate,
		AvgRate:  p.avgRate,
		PeakRate: p.peakRate,
	}
}

// Elapsed returns time since the tracker was created.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return time.Since(p.startTime)
}

// RenderSparkline renders the throughput sparkline at the given width.
func (p *ProgressTracker) RenderSparkline(width int) string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.spark.Render(width)
}

// eta estimates remaining stage time with exponential smoothing.
// Callers must hold the write lock.
func (p *ProgressTracker) eta() time.Duration {
	if p.current == 0 || p.total == 0 {
		return 0
	}

	fraction := float64(p.current) / float64(p.total)
	if fraction >= 1 {
		return 0
	}

	elapsed := time.Since(p.stageStart)
	remaining := time.Duration(float64(elapsed)/fraction) - elapsed
	if remaining < 0 {
		return 0
	}

	if p.lastETA == 0 {
		p.lastETA = remaining
		return remaining
	}
	smoothed := time.Duration(etaSmoothing*float64(remaining) + (1-etaSmoothing)*float64(p.lastETA))
	p.lastETA = smoothed
	return smoothed
}
