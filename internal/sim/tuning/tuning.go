package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz int `yaml:"tick_rate_hz"`
	// CommandQueue bounds pending commands accepted between ticks.
	CommandQueue int `yaml:"command_queue"`

	Observer   Observer   `yaml:"observer"`
	Logs       Logs       `yaml:"logs"`
	RateLimits RateLimits `yaml:"rate_limits"`
}

// RateLimits bound commands per actor. Zero values disable the limit.
type RateLimits struct {
	CommandWindowTicks uint64 `yaml:"command_window_ticks"`
	CommandMax         int    `yaml:"command_max"`
}

type Observer struct {
	// EveryTicks throttles the inspection stream; 1 sends every tick.
	EveryTicks int `yaml:"every_ticks"`
	MaxNodes   int `yaml:"max_nodes"`
}

type Logs struct {
	Dir           string `yaml:"dir"`
	AuditEnabled  bool   `yaml:"audit_enabled"`
	IndexDB       string `yaml:"index_db"`
	RotateMinutes int    `yaml:"rotate_minutes"`
	FlushEvery    int    `yaml:"flush_every"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		TickRateHz:      20,
		CommandQueue:    1024,
		Observer: Observer{
			EveryTicks: 1,
			MaxNodes:   4096,
		},
		Logs: Logs{
			Dir:           "data/logs",
			AuditEnabled:  true,
			RotateMinutes: 60,
			FlushEvery:    1,
		},
	}
}

// Load reads a tuning file on top of Defaults. Missing or zero fields keep their default.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	var in Tuning
	if err := yaml.Unmarshal(raw, &in); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if in.ProtocolVersion != "" {
		t.ProtocolVersion = in.ProtocolVersion
	}
	if in.TickRateHz > 0 {
		t.TickRateHz = in.TickRateHz
	}
	if in.CommandQueue > 0 {
		t.CommandQueue = in.CommandQueue
	}
	if in.Observer.EveryTicks > 0 {
		t.Observer.EveryTicks = in.Observer.EveryTicks
	}
	if in.Observer.MaxNodes > 0 {
		t.Observer.MaxNodes = in.Observer.MaxNodes
	}
	if in.Logs.Dir != "" {
		t.Logs.Dir = in.Logs.Dir
	}
	t.Logs.AuditEnabled = in.Logs.AuditEnabled
	t.Logs.IndexDB = in.Logs.IndexDB
	if in.Logs.RotateMinutes > 0 {
		t.Logs.RotateMinutes = in.Logs.RotateMinutes
	}
	if in.Logs.FlushEvery > 0 {
		t.Logs.FlushEvery = in.Logs.FlushEvery
	}
	t.RateLimits = in.RateLimits
	if t.TickRateHz > 1000 {
		return t, fmt.Errorf("tuning.yaml: tick_rate_hz %d out of range", t.TickRateHz)
	}
	return t, nil
}
