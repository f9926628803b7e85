package stack

import "time"

// runTick processes one timing update on the consumer goroutine. When the
// radio coalesced several subframes into one update, the per-subframe
// layers and the timer registry run once per missed subframe, oldest
// first; the slower control layers get a single pass at the final tick.
func (s *Stack) runTick(tick TickPoint, elapsed uint32) {
	start := time.Now()
	s.currentTick.Store(uint32(tick))

	for i := range elapsed {
		sub := tick.Sub(elapsed - i - 1)
		s.mac.RunTTI(sub)
		s.macNR.RunTTI(sub)
		s.sched.Timers().Tick()
	}
	s.rrc.RunTTI(tick)
	s.rrcNR.RunTTI(tick)
	s.nas.RunTTI(tick)

	s.prof.observe(tick, time.Since(start))

	// A sync queue that stays deep means the radio pushes timing updates
	// faster than they are processed. Warn once per crossing, not per tick.
	if depth := s.syncQ.Len(); depth > s.cfg.Timing.SyncWatermark {
		if !s.syncWarned {
			s.syncWarned = true
			s.log.Warn().
				Int("depth", depth).
				Int("watermark", s.cfg.Timing.SyncWatermark).
				Msg("slow task processing, sync queue backing up")
		}
	} else {
		s.syncWarned = false
	}
}
