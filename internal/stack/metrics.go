package stack

// EMMState is the NAS mobility management state.
type EMMState uint8

const (
	EMMDeregistered EMMState = iota
	EMMRegisteredInitiated
	EMMRegistered
	EMMServiceRequestInitiated
	EMMDeregisteredInitiated
	EMMTAUInitiated
)

func (s EMMState) String() string {
	switch s {
	case EMMDeregistered:
		return "DEREGISTERED"
	case EMMRegisteredInitiated:
		return "REGISTERED-INITIATED"
	case EMMRegistered:
		return "REGISTERED"
	case EMMServiceRequestInitiated:
		return "SERVICE-REQUEST-INITIATED"
	case EMMDeregisteredInitiated:
		return "DEREGISTERED-INITIATED"
	case EMMTAUInitiated:
		return "TAU-INITIATED"
	}
	return "UNKNOWN"
}

// RRCState is the radio connection state.
type RRCState uint8

const (
	RRCIdle RRCState = iota
	RRCConnected
)

func (s RRCState) String() string {
	if s == RRCConnected {
		return "CONNECTED"
	}
	return "IDLE"
}

// MACMetrics counts MAC activity as running totals.
type MACMetrics struct {
	NofTTIs   uint32 `json:"nof_ttis"`
	TxPackets uint32 `json:"tx_packets"`
	TxErrors  uint32 `json:"tx_errors"`
	TxBytes   uint64 `json:"tx_bytes"`
	RxPackets uint32 `json:"rx_packets"`
	RxErrors  uint32 `json:"rx_errors"`
	RxBytes   uint64 `json:"rx_bytes"`
}

// RLCMetrics counts RLC PDU traffic.
type RLCMetrics struct {
	TxBytes uint64 `json:"tx_bytes"`
	RxBytes uint64 `json:"rx_bytes"`
}

// NASMetrics reports registration state.
type NASMetrics struct {
	State            EMMState `json:"state"`
	ActiveEPSBearers uint32   `json:"active_eps_bearers"`
}

// RRCMetrics reports connection state.
type RRCMetrics struct {
	State RRCState `json:"state"`
}

// Metrics is one consistent snapshot of the whole stack, gathered in a
// single task on the consumer goroutine.
type Metrics struct {
	Tick          TickPoint  `json:"tick"`
	ULDroppedSDUs uint64     `json:"ul_dropped_sdus"`
	MAC           MACMetrics `json:"mac"`
	MACNR         MACMetrics `json:"mac_nr"`
	RLC           RLCMetrics `json:"rlc"`
	NAS           NASMetrics `json:"nas"`
	RRC           RRCMetrics `json:"rrc"`
}

// Ready reports whether the UE is attached and connected: NAS registered
// with an RRC connection up.
func (m Metrics) Ready() bool {
	return m.NAS.State == EMMRegistered && m.RRC.State == RRCConnected
}
