package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/banshee-data/uestack/internal/trace"
)

type inlineAsync struct{}

func (inlineAsync) Go(func()) bool { return false }

func writeTracePcap(t *testing.T, pdus ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mac.pcap")
	reg := trace.NewRegistry(zerolog.Nop(), inlineAsync{})
	sink, err := reg.Open(path, trace.LinkTypeMAC)
	if err != nil {
		t.Fatalf("open sink: %v", err)
	}
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, p := range pdus {
		sink.WritePDU(ts.Add(time.Duration(i)*time.Millisecond), p)
	}
	reg.CloseAll()
	return path
}

func TestDump_TextOutput(t *testing.T) {
	path := writeTracePcap(t, []byte{0x1f, 0x00, 0x01}, []byte{0x1f, 0x00, 0x02}, []byte{0x1f, 0x00, 0x03})

	var out bytes.Buffer
	if err := dump(&out, path, false, 0); err != nil {
		t.Fatalf("dump: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "MAC") {
		t.Errorf("output missing link name: %q", got)
	}
	if !strings.Contains(got, "3 PDUs, 9 bytes") {
		t.Errorf("output missing summary: %q", got)
	}
	if lines := strings.Count(got, "\n"); lines != 4 {
		t.Errorf("got %d lines, want 3 records plus summary", lines)
	}
}

func TestDump_MaxLimitsRecords(t *testing.T) {
	path := writeTracePcap(t, []byte{0x01}, []byte{0x02}, []byte{0x03})

	var out bytes.Buffer
	if err := dump(&out, path, false, 2); err != nil {
		t.Fatalf("dump: %v", err)
	}
	if !strings.Contains(out.String(), "2 PDUs") {
		t.Errorf("expected summary for 2 records, got %q", out.String())
	}
}

func TestDump_JSONOutput(t *testing.T) {
	path := writeTracePcap(t, []byte{0x07, 0x41})

	var out bytes.Buffer
	if err := dump(&out, path, true, 0); err != nil {
		t.Fatalf("dump: %v", err)
	}

	var rec record
	if err := json.Unmarshal(out.Bytes(), &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec.Index != 1 || rec.Link != "MAC" || rec.Length != 2 || rec.Data != "0741" {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestDump_MissingFile(t *testing.T) {
	var out bytes.Buffer
	if err := dump(&out, filepath.Join(t.TempDir(), "absent.pcap"), false, 0); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLinkName(t *testing.T) {
	if got := linkName(trace.LinkTypeNAS); got != "NAS" {
		t.Errorf("linkName(NAS) = %q", got)
	}
	if got := linkName(trace.LinkTypeMACNR); got != "MAC-NR" {
		t.Errorf("linkName(MACNR) = %q", got)
	}
	if got := linkName(1); got != "DLT1" {
		t.Errorf("linkName(1) = %q", got)
	}
}
