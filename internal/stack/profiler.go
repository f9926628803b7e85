package stack

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// tickStatWindow is how many tick samples go into one timing summary.
const tickStatWindow = 1024

// tickProfiler watches tick execution time. Every execution is checked
// against the warn threshold; with stats enabled a window of samples is
// summarized to the log once full. Consumer goroutine only.
type tickProfiler struct {
	log   zerolog.Logger
	warn  time.Duration
	stats bool
	win   []float64 // milliseconds
}

func newTickProfiler(log zerolog.Logger, warn time.Duration, stats bool) *tickProfiler {
	p := &tickProfiler{log: log, warn: warn, stats: stats}
	if stats {
		p.win = make([]float64, 0, tickStatWindow)
	}
	return p
}

func (p *tickProfiler) observe(tick TickPoint, d time.Duration) {
	if p.warn > 0 && d > p.warn {
		p.log.Warn().Uint32("tick", uint32(tick)).Dur("took", d).Msg("long tick processing")
	}
	if !p.stats {
		return
	}
	p.win = append(p.win, float64(d.Nanoseconds())/1e6)
	if len(p.win) < tickStatWindow {
		return
	}
	mean := stat.Mean(p.win, nil)
	sort.Float64s(p.win)
	p95 := stat.Quantile(0.95, stat.Empirical, p.win, nil)
	p.log.Info().
		Float64("mean_ms", mean).
		Float64("p95_ms", p95).
		Float64("max_ms", p.win[len(p.win)-1]).
		Int("samples", len(p.win)).
		Msg("tick timing window")
	p.win = p.win[:0]
}
