// Package config holds the stack configuration, loaded from TOML.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration. Load starts from Default and overlays
// whatever the file sets, so a partial file is fine.
type Config struct {
	Log     Log     `toml:"log"`
	Trace   Trace   `toml:"trace"`
	Queues  Queues  `toml:"queues"`
	Timing  Timing  `toml:"timing"`
	Detach  Detach  `toml:"detach"`
	Metrics Metrics `toml:"metrics"`
	API     API     `toml:"api"`
	USIM    USIM    `toml:"usim"`
	Pool    Pool    `toml:"pool"`

	// Workers sets the size of the background worker pool used for trace
	// writes and similar chores.
	Workers int `toml:"workers"`
}

// Log holds the stack logger level plus one level per protocol layer.
type Log struct {
	Level string `toml:"level"`
	MAC   string `toml:"mac"`
	MACNR string `toml:"mac_nr"`
	RLC   string `toml:"rlc"`
	PDCP  string `toml:"pdcp"`
	RRC   string `toml:"rrc"`
	RRCNR string `toml:"rrc_nr"`
	NAS   string `toml:"nas"`
	USIM  string `toml:"usim"`
}

// LevelFor returns the level configured for a protocol layer, falling back
// to the global level when the layer has none of its own.
func (l Log) LevelFor(layer string) string {
	var v string
	switch layer {
	case "mac":
		v = l.MAC
	case "mac_nr":
		v = l.MACNR
	case "rlc":
		v = l.RLC
	case "pdcp":
		v = l.PDCP
	case "rrc":
		v = l.RRC
	case "rrc_nr":
		v = l.RRCNR
	case "nas":
		v = l.NAS
	case "usim":
		v = l.USIM
	}
	if v == "" {
		return l.Level
	}
	return v
}

// Trace selects which layers write packet trace files and where. Enable is
// a comma-separated list ("mac,mac_nr,nas"); "none" disables everything.
// Two layers configured with the same filename share one file.
type Trace struct {
	Enable        string `toml:"enable"`
	MACFilename   string `toml:"mac_filename"`
	MACNRFilename string `toml:"mac_nr_filename"`
	NASFilename   string `toml:"nas_filename"`
}

// Queues sets the capacity of each task queue.
type Queues struct {
	Main   int `toml:"main"`
	Data   int `toml:"data"`
	Config int `toml:"config"`
	Sync   int `toml:"sync"`
}

// Timing controls tick execution diagnostics.
type Timing struct {
	// Stats enables the tick duration window and its periodic summary.
	Stats bool `toml:"stats"`
	// WarnThresholdMs flags any single tick execution slower than this.
	WarnThresholdMs int `toml:"warn_threshold_ms"`
	// SyncWatermark flags a sync queue deeper than this after a tick.
	SyncWatermark int `toml:"sync_watermark"`
}

// Detach bounds the wait for radio bearers to flush during switch-off.
type Detach struct {
	DeadlineMs int `toml:"deadline_ms"`
	PollMs     int `toml:"poll_ms"`
}

// Deadline returns the configured detach deadline as a duration.
func (d Detach) Deadline() time.Duration { return time.Duration(d.DeadlineMs) * time.Millisecond }

// Poll returns the configured detach poll interval as a duration.
func (d Detach) Poll() time.Duration { return time.Duration(d.PollMs) * time.Millisecond }

// Metrics controls the periodic snapshot poller. An empty DBPath disables
// history persistence; PeriodMs <= 0 disables polling entirely.
type Metrics struct {
	PeriodMs int    `toml:"period_ms"`
	DBPath   string `toml:"db_path"`
}

// Period returns the poll period as a duration.
func (m Metrics) Period() time.Duration { return time.Duration(m.PeriodMs) * time.Millisecond }

// API configures the HTTP control surface. An empty Listen disables it.
type API struct {
	Listen string `toml:"listen"`
}

// USIM configures the identity provider. Mode "soft" reads the identity
// from this file; the field strings are opaque to the stack core.
type USIM struct {
	Mode string `toml:"mode"`
	IMSI string `toml:"imsi"`
	K    string `toml:"k"`
	OPc  string `toml:"opc"`
	Algo string `toml:"algo"`
}

// Pool sizes the data-path buffer pool.
type Pool struct {
	Buffers int `toml:"buffers"`
	BufSize int `toml:"buf_size"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		Log: Log{Level: "info"},
		Trace: Trace{
			Enable:        "none",
			MACFilename:   "/tmp/ue_mac.pcap",
			MACNRFilename: "/tmp/ue_mac_nr.pcap",
			NASFilename:   "/tmp/ue_nas.pcap",
		},
		Queues: Queues{Main: 512, Data: 512, Config: 512, Sync: 16},
		Timing: Timing{Stats: true, WarnThresholdMs: 5, SyncWatermark: 5},
		Detach: Detach{DeadlineMs: 5000, PollMs: 10},
		Metrics: Metrics{
			PeriodMs: 1000,
		},
		API: API{Listen: "127.0.0.1:8080"},
		USIM: USIM{
			Mode: "soft",
			IMSI: "001010123456789",
			Algo: "mil",
		},
		Pool:    Pool{Buffers: 1024, BufSize: 1600},
		Workers: 2,
	}
}

// Load reads a TOML file over the defaults. A missing path returns plain
// defaults; a malformed file is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the stack cannot run with.
func (c Config) Validate() error {
	for name, capL := range map[string]int{
		"queues.main":   c.Queues.Main,
		"queues.data":   c.Queues.Data,
		"queues.config": c.Queues.Config,
		"queues.sync":   c.Queues.Sync,
	} {
		if capL < 2 {
			return fmt.Errorf("%s must be at least 2, got %d", name, capL)
		}
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Pool.Buffers < 2 {
		return fmt.Errorf("pool.buffers must be at least 2, got %d", c.Pool.Buffers)
	}
	if c.Pool.BufSize < 1 {
		return fmt.Errorf("pool.buf_size must be positive, got %d", c.Pool.BufSize)
	}
	if c.Detach.DeadlineMs < 0 || c.Detach.PollMs < 1 {
		return fmt.Errorf("detach timing invalid: deadline_ms=%d poll_ms=%d",
			c.Detach.DeadlineMs, c.Detach.PollMs)
	}
	return nil
}
