// Package stack is the orchestration core of the UE: it owns the task
// scheduler, the single consumer goroutine that runs every protocol layer,
// and the boundary adapters that turn calls from the radio and the gateway
// into queued tasks.
//
// Concurrency contract: protocol layers execute only on the consumer
// goroutine. Producers (radio, gateway, control surface) enqueue tasks and
// nothing else. The few calls allowed to cross that line are named in the
// collaborator interfaces.
package stack

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/banshee-data/uestack/internal/config"
	"github.com/banshee-data/uestack/internal/observability"
	"github.com/banshee-data/uestack/internal/pool"
	"github.com/banshee-data/uestack/internal/task"
	"github.com/banshee-data/uestack/internal/trace"
)

const (
	stateUninitialized uint32 = iota
	stateRunning
	stateStopped
)

// Stack wires the protocol layers to the task scheduler and runs them in
// lockstep with radio timing. States move one way: Uninitialized to
// Running (Init) to Stopped (Stop); a stopped stack is not reusable.
type Stack struct {
	log zerolog.Logger
	cfg config.Config

	sched *task.Scheduler
	mainQ *task.Queue
	dataQ *task.Queue
	cfgQ  *task.Queue
	syncQ *task.Queue

	bufs   *pool.Pool
	traces *trace.Registry

	state        atomic.Uint32
	stopMu       sync.Mutex
	consumerDone chan struct{}

	phy   PHY
	phyNR PHY
	gw    GW
	usim  USIM
	mac   MAC
	macNR MACNR
	rlc   RLC
	pdcp  PDCP
	rrc   RRC
	rrcNR RRCNR
	nas   NAS

	// currentTick is written by the tick handler only; the status surface
	// reads it from other goroutines.
	currentTick atomic.Uint32
	ulDropped   atomic.Uint64

	prof            *tickProfiler
	syncWarned      bool
	zeroElapsedOnce sync.Once
}

// New builds an initialized-but-idle stack: queues, timers, and workers
// exist, no goroutine runs until Init.
func New(cfg config.Config, root zerolog.Logger, bufs *pool.Pool) *Stack {
	s := &Stack{
		log:          observability.LayerLogger(root, "STACK", cfg.Log.Level),
		cfg:          cfg,
		bufs:         bufs,
		consumerDone: make(chan struct{}),
	}
	s.sched = task.NewScheduler(cfg.Workers)
	s.mainQ = s.sched.NewQueue("main", cfg.Queues.Main, task.Waiting)
	s.dataQ = s.sched.NewQueue("data", cfg.Queues.Data, task.BestEffort)
	s.cfgQ = s.sched.NewQueue("config", cfg.Queues.Config, task.Waiting)
	s.syncQ = s.sched.NewQueue("sync", cfg.Queues.Sync, task.Waiting)
	s.traces = trace.NewRegistry(s.log, s.sched.Workers())
	s.prof = newTickProfiler(s.log,
		time.Duration(cfg.Timing.WarnThresholdMs)*time.Millisecond, cfg.Timing.Stats)
	return s
}

// Init validates and wires the collaborators, opens the configured trace
// files, initializes the identity provider, and starts the consumer
// goroutine. Only an identity provider failure (or a wiring mistake) makes
// Init fail; a trace file that cannot be opened is logged and skipped.
func (s *Stack) Init(deps Dependencies) error {
	if s.state.Load() != stateUninitialized {
		return fmt.Errorf("stack already initialized")
	}
	if err := checkDeps(deps); err != nil {
		return err
	}
	s.phy, s.phyNR, s.gw, s.usim = deps.PHY, deps.PHYNR, deps.GW, deps.USIM
	s.mac, s.macNR, s.rlc, s.pdcp = deps.MAC, deps.MACNR, deps.RLC, deps.PDCP
	s.rrc, s.rrcNR, s.nas = deps.RRC, deps.RRCNR, deps.NAS

	s.initTraces()

	if err := s.usim.Init(&s.cfg.USIM); err != nil {
		s.traces.CloseAll()
		return fmt.Errorf("identity provider init: %w", err)
	}

	timers := s.sched.Timers()
	s.mac.Init(s.phy, s.rlc, s.rrc)
	s.rlc.Init(s.pdcp, s.rrc, s.rrcNR, timers)
	s.pdcp.Init(s.rlc, s.rrc, s.rrcNR, s.gw)
	s.nas.Init(s.usim, s.rrc, s.gw, timers)
	s.macNR.Init(s.phyNR, s.rlc, s.rrcNR)
	s.rrcNR.Init(s.phyNR, s.macNR, s.rlc, s.pdcp, s.gw, s.rrc, s.usim, timers)
	s.rrc.Init(s.phy, s.mac, s.rlc, s.pdcp, s.nas, s.usim, s.gw, s.rrcNR)

	s.state.Store(stateRunning)
	go s.run()
	s.log.Info().Msg("stack started")
	return nil
}

func checkDeps(deps Dependencies) error {
	missing := ""
	switch {
	case deps.PHY == nil:
		missing = "PHY"
	case deps.GW == nil:
		missing = "GW"
	case deps.USIM == nil:
		missing = "USIM"
	case deps.MAC == nil:
		missing = "MAC"
	case deps.MACNR == nil:
		missing = "MAC-NR"
	case deps.RLC == nil:
		missing = "RLC"
	case deps.PDCP == nil:
		missing = "PDCP"
	case deps.RRC == nil:
		missing = "RRC"
	case deps.RRCNR == nil:
		missing = "RRC-NR"
	case deps.NAS == nil:
		missing = "NAS"
	}
	if missing != "" {
		return fmt.Errorf("missing collaborator: %s", missing)
	}
	return nil
}

// initTraces parses the trace enable list and opens the sinks. The list is
// processed in order, so "none" late in the list wins over earlier tokens.
func (s *Stack) initTraces() {
	var mac, macNR, nas bool

	list := strings.TrimSpace(s.cfg.Trace.Enable)
	if list == "" {
		s.log.Error().Msg("packet trace enable list empty, disabling all traces")
		return
	}
	for _, tok := range strings.Split(list, ",") {
		tok = strings.TrimSpace(tok)
		switch strings.ToLower(tok) {
		case "mac":
			mac = true
		case "mac_nr":
			macNR = true
		case "nas":
			nas = true
		case "none":
			mac, macNR, nas = false, false, false
		default:
			s.log.Error().Str("option", tok).Msg("unknown packet trace option")
		}
	}

	if mac && macNR && s.cfg.Trace.MACFilename == s.cfg.Trace.MACNRFilename {
		s.log.Info().Str("file", s.cfg.Trace.MACFilename).Msg("sharing MAC trace file for LTE and NR")
		if sink, err := s.traces.Open(s.cfg.Trace.MACFilename, trace.LinkTypeMAC); err == nil {
			s.mac.StartTrace(sink)
			s.macNR.StartTrace(sink)
		} else {
			s.log.Error().Err(err).Msg("cannot open trace file")
		}
	} else {
		if mac {
			if sink, err := s.traces.Open(s.cfg.Trace.MACFilename, trace.LinkTypeMAC); err == nil {
				s.mac.StartTrace(sink)
				s.log.Info().Str("file", s.cfg.Trace.MACFilename).Msg("opened MAC trace")
			} else {
				s.log.Error().Err(err).Msg("cannot open trace file")
			}
		}
		if macNR {
			if sink, err := s.traces.Open(s.cfg.Trace.MACNRFilename, trace.LinkTypeMACNR); err == nil {
				s.macNR.StartTrace(sink)
				s.log.Info().Str("file", s.cfg.Trace.MACNRFilename).Msg("opened MAC-NR trace")
			} else {
				s.log.Error().Err(err).Msg("cannot open trace file")
			}
		}
	}
	if nas {
		if sink, err := s.traces.Open(s.cfg.Trace.NASFilename, trace.LinkTypeNAS); err == nil {
			s.nas.StartTrace(sink)
			s.log.Info().Str("file", s.cfg.Trace.NASFilename).Msg("opened NAS trace")
		} else {
			s.log.Error().Err(err).Msg("cannot open trace file")
		}
	}
}

// run is the consumer loop. It exits when the scheduler stops, which
// happens at the end of stopImpl.
func (s *Stack) run() {
	for s.sched.RunNextTask() {
	}
	close(s.consumerDone)
}

// Stop shuts the stack down by queuing the shutdown on the main queue and
// waiting for the consumer goroutine to exit. Idempotent. Must not be
// called from a stack task: the consumer cannot wait for itself.
func (s *Stack) Stop() {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()
	if s.state.Load() != stateRunning {
		return
	}
	s.mainQ.Push(func() { s.stopImpl() })
	<-s.consumerDone
}

// stopImpl runs on the consumer. Adapters stop accepting work first, then
// layers stop in dependency order, traces flush, and the scheduler shuts
// down (which ends the consumer loop after this task returns).
func (s *Stack) stopImpl() {
	s.state.Store(stateStopped)

	s.usim.Stop()
	s.nas.Stop()
	s.rrc.Stop()
	s.rrcNR.Stop()
	s.rlc.Stop()
	s.pdcp.Stop()
	s.mac.Stop()
	s.macNR.Stop()

	s.traces.CloseAll()
	s.sched.Stop()
	s.log.Info().Msg("stack stopped")
}

// SwitchOn asks NAS to attach. The request is queued; false means the
// stack is not running or shut down while queuing.
func (s *Stack) SwitchOn() bool {
	if s.state.Load() != stateRunning {
		return false
	}
	return s.mainQ.Push(func() { s.nas.SwitchOn() })
}

// SwitchOff asks NAS to detach, then waits for the radio bearers to flush
// the detach message: polling at the configured interval, bounded by the
// configured deadline. False means the detach could not be confirmed in
// time.
func (s *Stack) SwitchOff() bool {
	if s.state.Load() != stateRunning {
		return false
	}
	if !s.mainQ.Push(func() { s.nas.SwitchOff() }) {
		return false
	}

	deadline := time.NewTimer(s.cfg.Detach.Deadline())
	defer deadline.Stop()
	poll := time.NewTicker(s.cfg.Detach.Poll())
	defer poll.Stop()

	for {
		if s.rrc.SRBsFlushed() {
			return true
		}
		select {
		case <-poll.C:
		case <-deadline.C:
			s.log.Warn().Dur("deadline", s.cfg.Detach.Deadline()).Msg("detach could not be sent before deadline")
			return false
		case <-s.consumerDone:
			return false
		}
	}
}

// EnableData asks NAS to re-attach for data service ("airplane mode off").
func (s *Stack) EnableData() bool {
	if s.state.Load() != stateRunning {
		return false
	}
	return s.mainQ.Push(func() { s.nas.EnableData() })
}

// DisableData asks NAS to detach from data service ("airplane mode on").
func (s *Stack) DisableData() bool {
	if s.state.Load() != stateRunning {
		return false
	}
	return s.mainQ.Push(func() { s.nas.DisableData() })
}

// StartServiceRequest asks NAS to leave idle for mobile-originated data.
func (s *Stack) StartServiceRequest() bool {
	if s.state.Load() != stateRunning {
		return false
	}
	return s.mainQ.Push(func() { s.nas.StartServiceRequest(CauseMOData) })
}

// GetMetrics gathers one consistent snapshot on the consumer goroutine and
// blocks until it arrives. Each call gets its own result slot, so
// concurrent callers each receive a snapshot taken after their own
// request. The bool reports readiness: NAS registered and RRC connected.
// A stack that is not running returns a zero snapshot immediately.
func (s *Stack) GetMetrics() (Metrics, bool) {
	if s.state.Load() != stateRunning {
		return Metrics{}, false
	}
	res := make(chan Metrics, 1)
	ok := s.mainQ.Push(func() {
		var m Metrics
		m.Tick = TickPoint(s.currentTick.Load())
		m.ULDroppedSDUs = s.ulDropped.Load()
		s.mac.Metrics(&m.MAC)
		s.macNR.Metrics(&m.MACNR)
		s.rlc.Metrics(&m.RLC)
		s.nas.Metrics(&m.NAS)
		s.rrc.Metrics(&m.RRC)
		res <- m
	})
	if !ok {
		return Metrics{}, false
	}
	select {
	case m := <-res:
		return m, m.Ready()
	case <-s.consumerDone:
		// Stack stopped with the gather task still queued.
		return Metrics{}, false
	}
}

// IsRegistered reports NAS attachment. Callable from any goroutine per the
// NAS contract.
func (s *Stack) IsRegistered() bool {
	if s.state.Load() == stateUninitialized {
		return false
	}
	return s.nas.IsRegistered()
}

// Running reports whether the consumer loop is live.
func (s *Stack) Running() bool { return s.state.Load() == stateRunning }

// Buffers returns the uplink buffer pool the stack owns. Boundary drivers
// draw from it and hand filled buffers to WriteUplinkSDU.
func (s *Stack) Buffers() *pool.Pool { return s.bufs }

// State returns the lifecycle state for the status surface.
func (s *Stack) State() string {
	switch s.state.Load() {
	case stateRunning:
		return "running"
	case stateStopped:
		return "stopped"
	}
	return "uninitialized"
}

// CurrentTick returns the tick of the last timing update processed.
func (s *Stack) CurrentTick() TickPoint { return TickPoint(s.currentTick.Load()) }

// DroppedSDUs returns the uplink drop count.
func (s *Stack) DroppedSDUs() uint64 { return s.ulDropped.Load() }
