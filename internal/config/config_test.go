package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLoad_EmptyPathReturnsDefaults verifies defaults survive untouched
// when no file is given.
func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}
	def := Default()
	if cfg.Queues != def.Queues {
		t.Errorf("queues = %+v, want defaults %+v", cfg.Queues, def.Queues)
	}
	if cfg.Trace.Enable != "none" {
		t.Errorf("trace.enable = %q, want none", cfg.Trace.Enable)
	}
	if cfg.Workers != 2 {
		t.Errorf("workers = %d, want 2", cfg.Workers)
	}
}

// TestLoad_PartialFileOverlaysDefaults verifies a file only overrides what
// it sets.
func TestLoad_PartialFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stack.toml")
	body := `
workers = 4

[queues]
sync = 32

[trace]
enable = "mac,nas"
mac_filename = "/tmp/custom_mac.pcap"

[log]
mac = "debug"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Queues.Sync != 32 {
		t.Errorf("queues.sync = %d, want 32", cfg.Queues.Sync)
	}
	if cfg.Queues.Main != 512 {
		t.Errorf("queues.main = %d, want default 512", cfg.Queues.Main)
	}
	if cfg.Trace.Enable != "mac,nas" {
		t.Errorf("trace.enable = %q", cfg.Trace.Enable)
	}
	if cfg.Trace.MACFilename != "/tmp/custom_mac.pcap" {
		t.Errorf("trace.mac_filename = %q", cfg.Trace.MACFilename)
	}
	if cfg.Trace.NASFilename != "/tmp/ue_nas.pcap" {
		t.Errorf("trace.nas_filename = %q, want default", cfg.Trace.NASFilename)
	}
	if cfg.Log.MAC != "debug" {
		t.Errorf("log.mac = %q, want debug", cfg.Log.MAC)
	}
	if cfg.Workers != 4 {
		t.Errorf("workers = %d, want 4", cfg.Workers)
	}
}

// TestLoad_RejectsInvalidValues verifies validation failures surface as
// load errors.
func TestLoad_RejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	body := `
[queues]
main = 1
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load accepted queues.main = 1")
	}
}

// TestLoad_RejectsMalformedTOML verifies parse errors surface.
func TestLoad_RejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	if err := os.WriteFile(path, []byte("queues = {"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load accepted malformed TOML")
	}
}

// TestDetach_Durations verifies the millisecond fields convert cleanly.
func TestDetach_Durations(t *testing.T) {
	d := Detach{DeadlineMs: 5000, PollMs: 10}
	if d.Deadline().Milliseconds() != 5000 {
		t.Errorf("Deadline() = %v", d.Deadline())
	}
	if d.Poll().Milliseconds() != 10 {
		t.Errorf("Poll() = %v", d.Poll())
	}
}

func TestLog_LevelFor(t *testing.T) {
	l := Log{Level: "warn", MAC: "debug"}

	if got := l.LevelFor("mac"); got != "debug" {
		t.Errorf("LevelFor(mac) = %q, want debug", got)
	}
	if got := l.LevelFor("rlc"); got != "warn" {
		t.Errorf("LevelFor(rlc) = %q, want the global level", got)
	}
	if got := l.LevelFor("nonsense"); got != "warn" {
		t.Errorf("LevelFor(nonsense) = %q, want the global level", got)
	}
}
