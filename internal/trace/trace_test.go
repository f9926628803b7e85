package trace

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket/pcapgo"
	"github.com/rs/zerolog"

	"github.com/banshee-data/uestack/internal/task"
)

// inline forces the synchronous write path.
type inline struct{}

func (inline) Go(func()) bool { return false }

func readRecords(t *testing.T, path string) [][]byte {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	r, err := pcapgo.NewReader(f)
	if err != nil {
		t.Fatalf("pcap reader: %v", err)
	}
	var out [][]byte
	for {
		data, _, err := r.ReadPacketData()
		if err != nil {
			return out
		}
		cp := make([]byte, len(data))
		copy(cp, data)
		out = append(out, cp)
	}
}

// TestSink_WriteReadBack verifies records survive a write/close/read cycle.
func TestSink_WriteReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mac.pcap")
	reg := NewRegistry(zerolog.Nop(), inline{})

	s, err := reg.Open(path, LinkTypeMAC)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	now := time.Now()
	s.WritePDU(now, []byte{0x01, 0x02, 0x03})
	s.WritePDU(now, []byte{0xAA})
	reg.CloseAll()

	recs := readRecords(t, path)
	if len(recs) != 2 {
		t.Fatalf("read %d records, want 2", len(recs))
	}
	if !bytes.Equal(recs[0], []byte{0x01, 0x02, 0x03}) {
		t.Errorf("record 0 = %x", recs[0])
	}
	if !bytes.Equal(recs[1], []byte{0xAA}) {
		t.Errorf("record 1 = %x", recs[1])
	}
}

// TestRegistry_SharedDestination verifies two opens of one filename return
// the same sink and both writers land in one file.
func TestRegistry_SharedDestination(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.pcap")
	reg := NewRegistry(zerolog.Nop(), inline{})

	a, err := reg.Open(path, LinkTypeMAC)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	b, err := reg.Open(path, LinkTypeMACNR)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	if a != b {
		t.Fatal("same destination produced two sinks")
	}

	now := time.Now()
	a.WritePDU(now, []byte{0x10})
	b.WritePDU(now, []byte{0x20})
	reg.CloseAll()

	recs := readRecords(t, path)
	if len(recs) != 2 {
		t.Fatalf("read %d records from shared file, want 2", len(recs))
	}
}

// TestRegistry_DistinctDestinations verifies different filenames stay
// separate files.
func TestRegistry_DistinctDestinations(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(zerolog.Nop(), inline{})

	a, _ := reg.Open(filepath.Join(dir, "a.pcap"), LinkTypeMAC)
	b, _ := reg.Open(filepath.Join(dir, "b.pcap"), LinkTypeNAS)
	if a == b {
		t.Fatal("distinct destinations shared a sink")
	}
	a.WritePDU(time.Now(), []byte{1})
	reg.CloseAll()

	if recs := readRecords(t, filepath.Join(dir, "b.pcap")); len(recs) != 0 {
		t.Errorf("file b has %d records, want 0", len(recs))
	}
}

// TestSink_AsyncWritesDrainBeforeClose verifies offloaded writes land once
// the worker pool is stopped.
func TestSink_AsyncWritesDrainBeforeClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "async.pcap")
	workers := task.NewWorkerPool(1)
	reg := NewRegistry(zerolog.Nop(), workers)

	s, err := reg.Open(path, LinkTypeNAS)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := byte(0); i < 10; i++ {
		s.WritePDU(time.Now(), []byte{i})
	}
	workers.Stop()
	reg.CloseAll()

	recs := readRecords(t, path)
	if len(recs) != 10 {
		t.Fatalf("read %d records, want 10", len(recs))
	}
}

// TestSink_WriteAfterCloseIsNoop verifies a late write cannot touch a
// closed file.
func TestSink_WriteAfterCloseIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "late.pcap")
	reg := NewRegistry(zerolog.Nop(), inline{})
	s, _ := reg.Open(path, LinkTypeMAC)
	reg.CloseAll()

	s.WritePDU(time.Now(), []byte{0xFF})

	if recs := readRecords(t, path); len(recs) != 0 {
		t.Errorf("closed sink wrote %d records", len(recs))
	}
}

// TestRegistry_OpenFailure verifies a bad destination surfaces an error.
func TestRegistry_OpenFailure(t *testing.T) {
	reg := NewRegistry(zerolog.Nop(), inline{})
	if _, err := reg.Open(filepath.Join(t.TempDir(), "missing", "x.pcap"), LinkTypeMAC); err == nil {
		t.Error("Open succeeded in a missing directory")
	}
}
