// Package trace writes per-layer packet traces to pcap files. Layers hand
// PDUs to a Sink from the stack's consumer goroutine; the disk write is
// offloaded to the worker pool so a slow disk never stalls tick processing.
package trace

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/rs/zerolog"
)

// Link types for the trace files, in the user-defined DLT range understood
// by protocol dissectors.
const (
	LinkTypeMAC   = layers.LinkType(147)
	LinkTypeNAS   = layers.LinkType(148)
	LinkTypeMACNR = layers.LinkType(149)
)

const snapLen = 65535

// Async runs a function in the background, best-effort. Satisfied by
// task.WorkerPool.
type Async interface {
	Go(fn func()) bool
}

// Sink is one open pcap file. WritePDU may be called from any goroutine;
// writes are serialized internally. Close is idempotent, so sinks shared
// between layers survive both layers shutting down.
type Sink struct {
	dest string
	log  zerolog.Logger

	async Async

	mu     sync.Mutex
	f      *os.File
	buf    *bufio.Writer
	w      *pcapgo.Writer
	closed bool
	errs   uint64
}

func openSink(dest string, lt layers.LinkType, async Async, log zerolog.Logger) (*Sink, error) {
	f, err := os.Create(dest)
	if err != nil {
		return nil, fmt.Errorf("open trace %s: %w", dest, err)
	}
	buf := bufio.NewWriter(f)
	w := pcapgo.NewWriter(buf)
	if err := w.WriteFileHeader(snapLen, lt); err != nil {
		f.Close()
		return nil, fmt.Errorf("trace header %s: %w", dest, err)
	}
	return &Sink{dest: dest, log: log, async: async, f: f, buf: buf, w: w}, nil
}

// Dest returns the file the sink writes to.
func (s *Sink) Dest() string { return s.dest }

// WritePDU appends one record. The payload is copied before the write is
// offloaded, so the caller may recycle its buffer immediately. When the
// worker pool refuses the chore the record is written inline instead of
// dropped.
func (s *Sink) WritePDU(ts time.Time, payload []byte) {
	data := make([]byte, len(payload))
	copy(data, payload)
	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(data),
		Length:        len(data),
	}
	write := func() { s.write(ci, data) }
	if s.async == nil || !s.async.Go(write) {
		write()
	}
}

func (s *Sink) write(ci gopacket.CaptureInfo, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if err := s.w.WritePacket(ci, data); err != nil {
		s.errs++
		if s.errs == 1 {
			s.log.Warn().Str("file", s.dest).Err(err).Msg("trace write failed")
		}
	}
}

// Close flushes and closes the file. Records offloaded but not yet written
// become no-ops.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	ferr := s.buf.Flush()
	if err := s.f.Close(); ferr == nil {
		ferr = err
	}
	if s.errs > 0 {
		s.log.Warn().Str("file", s.dest).Uint64("failed_writes", s.errs).Msg("trace closed with write failures")
	}
	return ferr
}
