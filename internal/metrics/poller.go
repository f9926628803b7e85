// Package metrics periodically snapshots the stack and fans the snapshots
// out to recorders: the log always, the history database when configured.
package metrics

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/banshee-data/uestack/internal/db"
	"github.com/banshee-data/uestack/internal/stack"
)

// Source is where snapshots come from. Satisfied by *stack.Stack.
type Source interface {
	GetMetrics() (stack.Metrics, bool)
}

// Recorder consumes one snapshot per poll.
type Recorder interface {
	Record(m stack.Metrics, ready bool)
}

// Poller drives the snapshot loop.
type Poller struct {
	log       zerolog.Logger
	source    Source
	period    time.Duration
	recorders []Recorder
}

func NewPoller(log zerolog.Logger, source Source, period time.Duration, recorders ...Recorder) *Poller {
	return &Poller{log: log, source: source, period: period, recorders: recorders}
}

// RunOnce takes one snapshot and hands it to every recorder.
func (p *Poller) RunOnce() {
	m, ready := p.source.GetMetrics()
	for _, r := range p.recorders {
		r.Record(m, ready)
	}
}

// Run polls every period until ctx is cancelled. A period of zero or less
// disables polling; Run then just waits for cancellation. Always returns
// nil: stopping the poller is not an error.
func (p *Poller) Run(ctx context.Context) error {
	if p.period <= 0 || len(p.recorders) == 0 {
		p.log.Info().Msg("metrics polling disabled")
		<-ctx.Done()
		return nil
	}
	p.log.Info().Dur("period", p.period).Msg("metrics polling started")
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.RunOnce()
		}
	}
}

// LogRecorder writes one info line per snapshot.
type LogRecorder struct {
	log zerolog.Logger
}

func NewLogRecorder(log zerolog.Logger) *LogRecorder { return &LogRecorder{log: log} }

func (r *LogRecorder) Record(m stack.Metrics, ready bool) {
	r.log.Info().
		Uint32("tick", uint32(m.Tick)).
		Bool("ready", ready).
		Stringer("emm", m.NAS.State).
		Stringer("rrc", m.RRC.State).
		Uint32("mac_ttis", m.MAC.NofTTIs).
		Uint64("mac_tx_bytes", m.MAC.TxBytes).
		Uint64("mac_rx_bytes", m.MAC.RxBytes).
		Uint64("rlc_tx_bytes", m.RLC.TxBytes).
		Uint64("ul_dropped_sdus", m.ULDroppedSDUs).
		Msg("metrics")
}

// DBRecorder appends snapshots to the history database under one session
// id, so runs can be told apart afterwards.
type DBRecorder struct {
	log     zerolog.Logger
	db      *db.DB
	session string
}

func NewDBRecorder(log zerolog.Logger, database *db.DB, session string) *DBRecorder {
	return &DBRecorder{log: log, db: database, session: session}
}

func (r *DBRecorder) Record(m stack.Metrics, ready bool) {
	if err := r.db.RecordSnapshot(r.session, m, ready); err != nil {
		r.log.Warn().Err(err).Msg("metrics history write failed")
	}
}
