package stack

// tickWrap is the size of the radio tick space: 1024 frames of 10
// subframes, one tick per subframe.
const tickWrap = 10240

// TickPoint identifies one subframe in the wrapping radio tick space.
// Arithmetic wraps at tickWrap, so "tick 3 minus 5" lands near the top of
// the space rather than underflowing.
type TickPoint uint32

// Add returns the tick n subframes later.
func (t TickPoint) Add(n uint32) TickPoint {
	return TickPoint((uint32(t) + n) % tickWrap)
}

// Sub returns the tick n subframes earlier.
func (t TickPoint) Sub(n uint32) TickPoint {
	n %= tickWrap
	return TickPoint((uint32(t) + tickWrap - n) % tickWrap)
}
