// Package layers provides reference implementations of the stack
// collaborators: enough behavior to bring a stack up, watch it attach, and
// push data through it without a real radio behind it. The demo binary and
// the integration tests run on these.
//
// Like real layers, every object here is single-goroutine (the stack's
// consumer) except where the collaborator contract demands otherwise:
// NullNAS.IsRegistered and NullRRC.SRBsFlushed are atomic.
package layers

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/banshee-data/uestack/internal/config"
	"github.com/banshee-data/uestack/internal/observability"
	"github.com/banshee-data/uestack/internal/pool"
	"github.com/banshee-data/uestack/internal/stack"
	"github.com/banshee-data/uestack/internal/task"
	"github.com/banshee-data/uestack/internal/trace"
)

const (
	// attachDelayTicks is how long the simulated attach procedure takes.
	attachDelayTicks = 50
	// detachFlushTicks is how long the simulated bearers take to flush a
	// detach request.
	detachFlushTicks = 20
	// heartbeatTTIs spaces the synthetic trace PDUs the MAC layers emit.
	heartbeatTTIs = 1024
)

// NullPHY satisfies the radio side of the stack. Procedures complete
// immediately through the handler. SetHandler must be called before the
// radio is used.
type NullPHY struct {
	log     zerolog.Logger
	handler stack.PHYHandler
	cell    stack.PhyCell
}

func NewNullPHY(log zerolog.Logger) *NullPHY {
	return &NullPHY{log: log, cell: stack.PhyCell{PCI: 1, EARFCN: 3400}}
}

func (p *NullPHY) SetHandler(h stack.PHYHandler) { p.handler = h }

func (p *NullPHY) CellSearch() bool {
	if p.handler == nil {
		return false
	}
	p.log.Debug().Uint16("pci", p.cell.PCI).Msg("cell search")
	p.handler.CellSearchComplete(stack.CellFound, p.cell)
	return true
}

func (p *NullPHY) CellSelect(cell stack.PhyCell) bool {
	if p.handler == nil {
		return false
	}
	p.log.Debug().Uint16("pci", cell.PCI).Msg("cell select")
	p.handler.CellSelectComplete(true)
	return true
}

// NullGW terminates the downlink: it counts what arrives and releases the
// buffers. The counters are atomic so the demo can read them live.
type NullGW struct {
	log       zerolog.Logger
	rxPackets atomic.Uint64
	rxBytes   atomic.Uint64
}

func NewNullGW(log zerolog.Logger) *NullGW { return &NullGW{log: log} }

func (g *NullGW) WritePDU(lcid uint32, buf *pool.Buffer) {
	g.rxPackets.Add(1)
	g.rxBytes.Add(uint64(buf.Len()))
	g.log.Debug().Uint32("lcid", lcid).Int("len", buf.Len()).Msg("downlink PDU")
	buf.Release()
}

// Received returns the downlink totals.
func (g *NullGW) Received() (packets, bytes uint64) {
	return g.rxPackets.Load(), g.rxBytes.Load()
}

// NullUSIM accepts any well-formed soft-SIM configuration.
type NullUSIM struct {
	log zerolog.Logger
	cfg config.USIM
}

func NewNullUSIM(log zerolog.Logger) *NullUSIM { return &NullUSIM{log: log} }

func (u *NullUSIM) Init(cfg *config.USIM) error {
	if cfg.Mode != "soft" {
		return fmt.Errorf("unsupported usim mode %q", cfg.Mode)
	}
	if len(cfg.IMSI) != 15 {
		return fmt.Errorf("imsi must be 15 digits, got %d", len(cfg.IMSI))
	}
	for _, r := range cfg.IMSI {
		if r < '0' || r > '9' {
			return fmt.Errorf("imsi contains non-digit %q", r)
		}
	}
	u.cfg = *cfg
	u.log.Debug().Str("imsi", cfg.IMSI).Msg("identity loaded")
	return nil
}

func (u *NullUSIM) Stop() {}

// NullMAC counts subframes and PDU traffic for the LTE carrier. With a
// trace sink attached it emits a synthetic padding PDU every heartbeatTTIs
// subframes so trace files have content to look at.
type NullMAC struct {
	log  zerolog.Logger
	sink *trace.Sink
	m    stack.MACMetrics
}

func NewNullMAC(log zerolog.Logger) *NullMAC { return &NullMAC{log: log} }

func (m *NullMAC) Init(stack.PHY, stack.RLC, stack.RRC) {}

func (m *NullMAC) Stop() {}

func (m *NullMAC) RunTTI(t stack.TickPoint) {
	m.m.NofTTIs++
	if m.sink != nil && m.m.NofTTIs%heartbeatTTIs == 0 {
		m.sink.WritePDU(time.Now(), []byte{0x1f, byte(t >> 8), byte(t)})
	}
}

func (m *NullMAC) StartTrace(sink *trace.Sink) { m.sink = sink }

func (m *NullMAC) Metrics(out *stack.MACMetrics) { *out = m.m }

func (m *NullMAC) addTx(bytes uint64) {
	m.m.TxPackets++
	m.m.TxBytes += bytes
}

// NullMACNR is the NR twin of NullMAC.
type NullMACNR struct {
	log  zerolog.Logger
	sink *trace.Sink
	m    stack.MACMetrics
}

func NewNullMACNR(log zerolog.Logger) *NullMACNR { return &NullMACNR{log: log} }

func (m *NullMACNR) Init(stack.PHY, stack.RLC, stack.RRCNR) {}

func (m *NullMACNR) Stop() {}

func (m *NullMACNR) RunTTI(t stack.TickPoint) {
	m.m.NofTTIs++
	if m.sink != nil && m.m.NofTTIs%heartbeatTTIs == 0 {
		m.sink.WritePDU(time.Now(), []byte{0x3f, byte(t >> 8), byte(t)})
	}
}

func (m *NullMACNR) StartTrace(sink *trace.Sink) { m.sink = sink }

func (m *NullMACNR) Metrics(out *stack.MACMetrics) { *out = m.m }

// NullRLC keeps the link-layer byte counters.
type NullRLC struct {
	log zerolog.Logger
	m   stack.RLCMetrics
}

func NewNullRLC(log zerolog.Logger) *NullRLC { return &NullRLC{log: log} }

func (r *NullRLC) Init(stack.PDCP, stack.RRC, stack.RRCNR, *task.TimerRegistry) {}

func (r *NullRLC) Stop() {}

func (r *NullRLC) Metrics(out *stack.RLCMetrics) { *out = r.m }

func (r *NullRLC) addTx(bytes uint64) { r.m.TxBytes += bytes }

func (r *NullRLC) addRx(bytes uint64) { r.m.RxBytes += bytes }

// NullPDCP loops every uplink SDU straight back to the gateway, so the
// whole data path is observable end to end: gateway in, counters up,
// gateway out. The buffer travels with the SDU and the gateway releases it.
type NullPDCP struct {
	log zerolog.Logger
	rlc *NullRLC
	mac *NullMAC
	gw  stack.GW
}

func NewNullPDCP(log zerolog.Logger, rlc *NullRLC, mac *NullMAC) *NullPDCP {
	return &NullPDCP{log: log, rlc: rlc, mac: mac}
}

func (p *NullPDCP) Init(_ stack.RLC, _ stack.RRC, _ stack.RRCNR, gw stack.GW) { p.gw = gw }

func (p *NullPDCP) Stop() {}

func (p *NullPDCP) WriteSDU(lcid uint32, buf *pool.Buffer) {
	n := uint64(buf.Len())
	p.rlc.addTx(n)
	p.rlc.addRx(n)
	p.mac.addTx(n)
	if p.gw == nil {
		buf.Release()
		return
	}
	p.gw.WritePDU(lcid, buf)
}

// NullRRC tracks a simulated connection. NAS drives it: attach connects,
// detach starts a bearer flush that completes detachFlushTicks later.
type NullRRC struct {
	log zerolog.Logger

	connected      bool
	flushCountdown int

	srbsFlushed atomic.Bool
}

func NewNullRRC(log zerolog.Logger) *NullRRC {
	r := &NullRRC{log: log}
	r.srbsFlushed.Store(true)
	return r
}

func (r *NullRRC) Init(stack.PHY, stack.MAC, stack.RLC, stack.PDCP, stack.NAS, stack.USIM, stack.GW, stack.RRCNR) {
}
func (r *NullRRC) Stop() {}

func (r *NullRRC) RunTTI(stack.TickPoint) {
	if r.flushCountdown > 0 {
		r.flushCountdown--
		if r.flushCountdown == 0 {
			r.connected = false
			r.srbsFlushed.Store(true)
			r.log.Info().Msg("signalling bearers flushed")
		}
	}
}

func (r *NullRRC) SRBsFlushed() bool { return r.srbsFlushed.Load() }

func (r *NullRRC) CellSearchComplete(ret stack.CellSearchResult, cell stack.PhyCell) {
	r.log.Debug().Stringer("result", ret).Uint16("pci", cell.PCI).Msg("cell search complete")
}
func (r *NullRRC) CellSelectComplete(ok bool) {
	r.log.Debug().Bool("ok", ok).Msg("cell select complete")
}
func (r *NullRRC) SetConfigComplete(ok bool) {
	r.log.Debug().Bool("ok", ok).Msg("set config complete")
}
func (r *NullRRC) SetScellComplete(ok bool) {
	r.log.Debug().Bool("ok", ok).Msg("set scell complete")
}
func (r *NullRRC) InSync() { r.log.Debug().Msg("in sync") }

func (r *NullRRC) OutOfSync() { r.log.Debug().Msg("out of sync") }

func (r *NullRRC) Metrics(out *stack.RRCMetrics) {
	out.State = stack.RRCIdle
	if r.connected {
		out.State = stack.RRCConnected
	}
}

func (r *NullRRC) setConnected() { r.connected = true }

func (r *NullRRC) startDetach() {
	r.srbsFlushed.Store(false)
	r.flushCountdown = detachFlushTicks
}

// NullRRCNR is a placeholder NR control plane.
type NullRRCNR struct {
	log zerolog.Logger
}

func NewNullRRCNR(log zerolog.Logger) *NullRRCNR { return &NullRRCNR{log: log} }

func (r *NullRRCNR) Init(stack.PHY, stack.MACNR, stack.RLC, stack.PDCP, stack.GW, stack.RRC, stack.USIM, *task.TimerRegistry) {
}
func (r *NullRRCNR) Stop() {}

func (r *NullRRCNR) RunTTI(stack.TickPoint) {}

// NullNAS simulates registration in tick time: SwitchOn arms a timer and
// the UE is registered when it fires, attachDelayTicks later. SwitchOff
// deregisters immediately and asks RRC to flush.
type NullNAS struct {
	log    zerolog.Logger
	rrc    *NullRRC
	timers *task.TimerRegistry
	attach *task.Timer
	sink   *trace.Sink

	state   stack.EMMState
	bearers uint32

	registered atomic.Bool
}

func NewNullNAS(log zerolog.Logger, rrc *NullRRC) *NullNAS {
	return &NullNAS{log: log, rrc: rrc}
}

func (n *NullNAS) Init(_ stack.USIM, _ stack.RRC, _ stack.GW, timers *task.TimerRegistry) {
	n.timers = timers
	n.attach = timers.NewTimer()
}

func (n *NullNAS) Stop() {}

func (n *NullNAS) RunTTI(stack.TickPoint) {}

func (n *NullNAS) SwitchOn() {
	if n.state != stack.EMMDeregistered {
		n.log.Debug().Stringer("state", n.state).Msg("switch on ignored")
		return
	}
	n.state = stack.EMMRegisteredInitiated
	n.attach.Set(attachDelayTicks, n.attachComplete)
	n.attach.Run()
	n.log.Info().Msg("attach started")
	if n.sink != nil {
		// EMM attach request.
		n.sink.WritePDU(time.Now(), []byte{0x07, 0x41})
	}
}

func (n *NullNAS) attachComplete() {
	n.state = stack.EMMRegistered
	n.bearers = 1
	n.registered.Store(true)
	n.rrc.setConnected()
	n.log.Info().Msg("attach complete, registered")
	if n.sink != nil {
		// EMM attach accept.
		n.sink.WritePDU(time.Now(), []byte{0x07, 0x42})
	}
}

func (n *NullNAS) SwitchOff() {
	if n.state == stack.EMMDeregistered {
		return
	}
	n.attach.Stop()
	n.state = stack.EMMDeregistered
	n.bearers = 0
	n.registered.Store(false)
	n.rrc.startDetach()
	n.log.Info().Msg("detach requested")
	if n.sink != nil {
		// EMM detach request.
		n.sink.WritePDU(time.Now(), []byte{0x07, 0x45})
	}
}

func (n *NullNAS) EnableData() bool {
	if n.state == stack.EMMDeregistered {
		n.SwitchOn()
	}
	return true
}

func (n *NullNAS) DisableData() bool {
	n.SwitchOff()
	return true
}

func (n *NullNAS) StartServiceRequest(cause stack.EstablishmentCause) {
	n.log.Debug().Stringer("cause", cause).Msg("service request")
	if n.state == stack.EMMRegistered {
		n.rrc.setConnected()
	}
}

func (n *NullNAS) IsRegistered() bool { return n.registered.Load() }

func (n *NullNAS) StartTrace(sink *trace.Sink) { n.sink = sink }

func (n *NullNAS) Metrics(out *stack.NASMetrics) {
	out.State = n.state
	out.ActiveEPSBearers = n.bearers
}

// Set bundles one of every reference layer, wired to each other.
type Set struct {
	PHY   *NullPHY
	GW    *NullGW
	USIM  *NullUSIM
	MAC   *NullMAC
	MACNR *NullMACNR
	RLC   *NullRLC
	PDCP  *NullPDCP
	RRC   *NullRRC
	RRCNR *NullRRCNR
	NAS   *NullNAS
}

// NewSet builds the full layer set with per-layer log levels applied.
func NewSet(root zerolog.Logger, levels config.Log) *Set {
	mac := NewNullMAC(observability.LayerLogger(root, "MAC", levels.LevelFor("mac")))
	rlc := NewNullRLC(observability.LayerLogger(root, "RLC", levels.LevelFor("rlc")))
	rrc := NewNullRRC(observability.LayerLogger(root, "RRC", levels.LevelFor("rrc")))
	return &Set{
		PHY:   NewNullPHY(root.With().Str("layer", "PHY").Logger()),
		GW:    NewNullGW(root.With().Str("layer", "GW").Logger()),
		USIM:  NewNullUSIM(observability.LayerLogger(root, "USIM", levels.LevelFor("usim"))),
		MAC:   mac,
		MACNR: NewNullMACNR(observability.LayerLogger(root, "MAC-NR", levels.LevelFor("mac_nr"))),
		RLC:   rlc,
		PDCP:  NewNullPDCP(observability.LayerLogger(root, "PDCP", levels.LevelFor("pdcp")), rlc, mac),
		RRC:   rrc,
		RRCNR: NewNullRRCNR(observability.LayerLogger(root, "RRC-NR", levels.LevelFor("rrc_nr"))),
		NAS:   NewNullNAS(observability.LayerLogger(root, "NAS", levels.LevelFor("nas")), rrc),
	}
}

// Dependencies returns the set shaped for Stack.Init. The NR carrier runs
// without its own radio.
func (s *Set) Dependencies() stack.Dependencies {
	return stack.Dependencies{
		PHY:   s.PHY,
		PHYNR: nil,
		GW:    s.GW,
		USIM:  s.USIM,
		MAC:   s.MAC,
		MACNR: s.MACNR,
		RLC:   s.RLC,
		PDCP:  s.PDCP,
		RRC:   s.RRC,
		RRCNR: s.RRCNR,
		NAS:   s.NAS,
	}
}
