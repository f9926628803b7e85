package stack

import "github.com/banshee-data/uestack/internal/pool"

// Boundary adapters. Every call in this file arrives on a foreign
// goroutine (the radio's or the gateway's) and turns into a queued task
// before it touches a protocol layer. Calls against a stack that is not
// running drop silently; the caller keeps going regardless.

var (
	_ PHYHandler = (*Stack)(nil)
	_ GWHandler  = (*Stack)(nil)
)

// OnTick queues one timing update on the sync queue. elapsed counts the
// subframes covered by this update, at least 1; a zero from a confused
// radio is treated as 1 so the tick still advances.
func (s *Stack) OnTick(tick TickPoint, elapsed uint32) {
	if s.state.Load() != stateRunning {
		return
	}
	if elapsed == 0 {
		s.zeroElapsedOnce.Do(func() {
			s.log.Warn().Uint32("tick", uint32(tick)).Msg("timing update with zero elapsed subframes, treating as one")
		})
		elapsed = 1
	}
	s.syncQ.Push(func() { s.runTick(tick, elapsed) })
}

// InSync reports the radio regained downlink sync. Ordered with timing
// updates: it travels on the same queue.
func (s *Stack) InSync() {
	if s.state.Load() != stateRunning {
		return
	}
	s.syncQ.Push(func() { s.rrc.InSync() })
}

// OutOfSync reports the radio lost downlink sync.
func (s *Stack) OutOfSync() {
	if s.state.Load() != stateRunning {
		return
	}
	s.syncQ.Push(func() { s.rrc.OutOfSync() })
}

// CellSearchComplete delivers a cell search outcome to RRC.
func (s *Stack) CellSearchComplete(ret CellSearchResult, cell PhyCell) {
	if s.state.Load() != stateRunning {
		return
	}
	s.cfgQ.Push(func() { s.rrc.CellSearchComplete(ret, cell) })
}

// CellSelectComplete delivers a cell selection outcome to RRC.
func (s *Stack) CellSelectComplete(ok bool) {
	if s.state.Load() != stateRunning {
		return
	}
	s.cfgQ.Push(func() { s.rrc.CellSelectComplete(ok) })
}

// SetConfigComplete delivers a radio reconfiguration outcome to RRC.
func (s *Stack) SetConfigComplete(ok bool) {
	if s.state.Load() != stateRunning {
		return
	}
	s.cfgQ.Push(func() { s.rrc.SetConfigComplete(ok) })
}

// SetScellComplete delivers a secondary-cell activation outcome to RRC.
func (s *Stack) SetScellComplete(ok bool) {
	if s.state.Load() != stateRunning {
		return
	}
	s.cfgQ.Push(func() { s.rrc.SetScellComplete(ok) })
}

// WriteUplinkSDU is the gateway ingress. Best effort: when the data queue
// is full the SDU is dropped, counted, and its buffer released; the
// gateway is never blocked. A nil buf means the caller could not get a
// buffer from the pool, which counts as a drop too.
func (s *Stack) WriteUplinkSDU(lcid uint32, buf *pool.Buffer) {
	if buf == nil {
		s.ulDropped.Add(1)
		s.log.Info().Uint32("lcid", lcid).Msg("uplink SDU discarded, buffer pool exhausted")
		return
	}
	if s.state.Load() != stateRunning {
		buf.Release()
		return
	}
	if !s.dataQ.TryPush(func() { s.pdcp.WriteSDU(lcid, buf) }) {
		s.ulDropped.Add(1)
		s.log.Info().Uint32("lcid", lcid).Msg("uplink SDU discarded, data queue full")
		buf.Release()
	}
}
