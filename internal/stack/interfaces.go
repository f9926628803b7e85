package stack

import (
	"github.com/banshee-data/uestack/internal/config"
	"github.com/banshee-data/uestack/internal/pool"
	"github.com/banshee-data/uestack/internal/task"
	"github.com/banshee-data/uestack/internal/trace"
)

// PhyCell identifies a cell reported by the radio.
type PhyCell struct {
	PCI    uint16 `json:"pci"`
	EARFCN uint32 `json:"earfcn"`
}

// CellSearchResult is the outcome of a radio cell search.
type CellSearchResult uint8

const (
	CellFound CellSearchResult = iota
	CellNotFound
	CellSearchError
)

func (r CellSearchResult) String() string {
	switch r {
	case CellFound:
		return "found"
	case CellNotFound:
		return "not_found"
	default:
		return "error"
	}
}

// EstablishmentCause qualifies a connection establishment request.
type EstablishmentCause uint8

const (
	CauseEmergency EstablishmentCause = iota
	CauseHighPriorityAccess
	CauseMTAccess
	CauseMOSignalling
	CauseMOData
)

func (c EstablishmentCause) String() string {
	switch c {
	case CauseEmergency:
		return "emergency"
	case CauseHighPriorityAccess:
		return "high_priority_access"
	case CauseMTAccess:
		return "mt_access"
	case CauseMOSignalling:
		return "mo_signalling"
	default:
		return "mo_data"
	}
}

// PHY is the radio collaborator handed to the access-stratum layers. The
// stack core never calls it; layers command the radio through it and the
// radio answers through PHYHandler.
type PHY interface {
	// CellSearch asks the radio to scan; the outcome arrives through
	// PHYHandler.CellSearchComplete.
	CellSearch() bool
	// CellSelect asks the radio to camp on a cell; the outcome arrives
	// through PHYHandler.CellSelectComplete.
	CellSelect(cell PhyCell) bool
}

// GW is the IP gateway collaborator. Downlink SDUs leave the stack through
// it; the buffer passes to the gateway, which releases it.
type GW interface {
	WritePDU(lcid uint32, buf *pool.Buffer)
}

// USIM is the subscriber identity provider. Its Init is the only
// collaborator call allowed to abort stack initialization.
type USIM interface {
	Init(cfg *config.USIM) error
	Stop()
}

// MAC is the LTE medium access layer. RunTTI executes once per subframe on
// the consumer goroutine.
type MAC interface {
	Init(phy PHY, rlc RLC, rrc RRC)
	Stop()
	RunTTI(tick TickPoint)
	StartTrace(sink *trace.Sink)
	Metrics(m *MACMetrics)
}

// MACNR is the NR medium access layer. Its radio reference may be nil when
// no NR carrier is configured.
type MACNR interface {
	Init(phy PHY, rlc RLC, rrcNR RRCNR)
	Stop()
	RunTTI(tick TickPoint)
	StartTrace(sink *trace.Sink)
	Metrics(m *MACMetrics)
}

// RLC is the radio link control layer.
type RLC interface {
	Init(pdcp PDCP, rrc RRC, rrcNR RRCNR, timers *task.TimerRegistry)
	Stop()
	Metrics(m *RLCMetrics)
}

// PDCP is the packet data convergence layer. WriteSDU is the uplink entry
// the data-path queue feeds; it runs on the consumer goroutine and takes
// ownership of the buffer.
type PDCP interface {
	Init(rlc RLC, rrc RRC, rrcNR RRCNR, gw GW)
	Stop()
	WriteSDU(lcid uint32, buf *pool.Buffer)
}

// RRC is the LTE radio resource control layer. The completion receivers
// run on the consumer goroutine, fed by the config and sync queues.
//
// SRBsFlushed must be safe from any goroutine: the switch-off wait polls
// it from outside the consumer.
type RRC interface {
	Init(phy PHY, mac MAC, rlc RLC, pdcp PDCP, nas NAS, usim USIM, gw GW, rrcNR RRCNR)
	Stop()
	RunTTI(tick TickPoint)
	SRBsFlushed() bool
	CellSearchComplete(ret CellSearchResult, cell PhyCell)
	CellSelectComplete(ok bool)
	SetConfigComplete(ok bool)
	SetScellComplete(ok bool)
	InSync()
	OutOfSync()
	Metrics(m *RRCMetrics)
}

// RRCNR is the NR radio resource control layer.
type RRCNR interface {
	Init(phy PHY, macNR MACNR, rlc RLC, pdcp PDCP, gw GW, rrc RRC, usim USIM, timers *task.TimerRegistry)
	Stop()
	RunTTI(tick TickPoint)
}

// NAS is the non-access stratum. IsRegistered must be safe from any
// goroutine; everything else runs on the consumer.
type NAS interface {
	Init(usim USIM, rrc RRC, gw GW, timers *task.TimerRegistry)
	Stop()
	RunTTI(tick TickPoint)
	SwitchOn()
	SwitchOff()
	EnableData() bool
	DisableData() bool
	StartServiceRequest(cause EstablishmentCause)
	IsRegistered() bool
	StartTrace(sink *trace.Sink)
	Metrics(m *NASMetrics)
}

// Dependencies carries every collaborator the stack wires at Init. PHYNR
// may be nil when no NR radio exists; everything else is required.
type Dependencies struct {
	PHY   PHY
	PHYNR PHY
	GW    GW
	USIM  USIM
	MAC   MAC
	MACNR MACNR
	RLC   RLC
	PDCP  PDCP
	RRC   RRC
	RRCNR RRCNR
	NAS   NAS
}

// PHYHandler is the capability the radio is given: timing, sync state, and
// procedure completions. Implemented by the Stack; every call turns into a
// queued task.
type PHYHandler interface {
	OnTick(tick TickPoint, elapsed uint32)
	InSync()
	OutOfSync()
	CellSearchComplete(ret CellSearchResult, cell PhyCell)
	CellSelectComplete(ok bool)
	SetConfigComplete(ok bool)
	SetScellComplete(ok bool)
}

// GWHandler is the capability the gateway is given: uplink ingress plus
// the two calls a gateway makes to decide whether to send at all.
type GWHandler interface {
	WriteUplinkSDU(lcid uint32, buf *pool.Buffer)
	IsRegistered() bool
	StartServiceRequest() bool
}
