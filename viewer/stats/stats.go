// Package stats aggregates per-frame render statistics and feeds the debug
// overlay's rolling averages.
package stats

import (
	"log"
	"runtime"
	"time"
)

// RenderStats accumulates the raw counters one or more GPU submissions
// produce in a single frame.
type RenderStats struct {
	// PathCount is the number of scene paths rendered.
	PathCount int

	// SolidTileCount and MaskTileCount break down the tiles the backend
	// emitted for the frame.
	SolidTileCount int
	MaskTileCount  int

	// FillCount is the number of fill primitives rasterized.
	FillCount int
}

// Add combines two samples, e.g. the per-eye submissions of a stereo frame.
//
// Parameters:
//   - other: the sample to fold in
//
// Returns:
//   - RenderStats: the combined sample
func (s RenderStats) Add(other RenderStats) RenderStats {
	return RenderStats{
		PathCount:      s.PathCount + other.PathCount,
		SolidTileCount: s.SolidTileCount + other.SolidTileCount,
		MaskTileCount:  s.MaskTileCount + other.MaskTileCount,
		FillCount:      s.FillCount + other.FillCount,
	}
}

// sampleWindow is how many frames the rolling averages span.
const sampleWindow = 60

type sample struct {
	stats     RenderStats
	buildTime time.Duration
	gpuTime   time.Duration
}

// Sampler keeps a rolling window of frame samples and produces the averages
// shown in the debug overlay.
type Sampler struct {
	samples []sample
	next    int
	filled  bool
}

// NewSampler creates an empty sampler.
//
// Returns:
//   - *Sampler: the newly created sampler
func NewSampler() *Sampler {
	return &Sampler{
		samples: make([]sample, sampleWindow),
	}
}

// Push records one frame's statistics, evicting the oldest sample once the
// window is full.
//
// Parameters:
//   - stats: the frame's render counters
//   - buildTime: CPU time spent building the command stream
//   - gpuTime: measured GPU time for the frame's submissions
func (s *Sampler) Push(stats RenderStats, buildTime, gpuTime time.Duration) {
	s.samples[s.next] = sample{stats: stats, buildTime: buildTime, gpuTime: gpuTime}
	s.next++
	if s.next == len(s.samples) {
		s.next = 0
		s.filled = true
	}
}

// MeanBuildTime returns the average CPU build time over the window.
func (s *Sampler) MeanBuildTime() time.Duration {
	n := s.count()
	if n == 0 {
		return 0
	}
	var total time.Duration
	for _, smp := range s.samples[:n] {
		total += smp.buildTime
	}
	return total / time.Duration(n)
}

// MeanGPUTime returns the average GPU time over the window.
func (s *Sampler) MeanGPUTime() time.Duration {
	n := s.count()
	if n == 0 {
		return 0
	}
	var total time.Duration
	for _, smp := range s.samples[:n] {
		total += smp.gpuTime
	}
	return total / time.Duration(n)
}

// MeanStats returns the average render counters over the window.
func (s *Sampler) MeanStats() RenderStats {
	n := s.count()
	if n == 0 {
		return RenderStats{}
	}
	var total RenderStats
	for _, smp := range s.samples[:n] {
		total = total.Add(smp.stats)
	}
	return RenderStats{
		PathCount:      total.PathCount / n,
		SolidTileCount: total.SolidTileCount / n,
		MaskTileCount:  total.MaskTileCount / n,
		FillCount:      total.FillCount / n,
	}
}

func (s *Sampler) count() int {
	if s.filled {
		return len(s.samples)
	}
	return s.next
}

// Profiler tracks frame rate and memory statistics for performance monitoring.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
}

// NewProfiler creates a new Profiler with a 1 second update interval.
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler() *Profiler {
	return &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Second,
	}
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()
	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024

	log.Printf("[Profiler] FPS: %.2f | Heap: %.2f MB | GC: %d",
		fps, allocMB, p.memStats.NumGC)

	p.frameCount = 0
	p.lastTime = currentTime
	return true
}
