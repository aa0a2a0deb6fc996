// Package auditconfig loads the audit pipeline's own recognized
// environment variables (spec.md §6: "Environment"). General
// application configuration loading is out of scope (spec.md §1); this
// package only reads the knobs the pipeline itself defines, the same
// way cmd/rigd/main.go reads its own flags with hardcoded defaults
// rather than pulling in a config-file framework.
package auditconfig

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/wolfe-services/tachikoma-audit/internal/auditerr"
)

// OverflowPolicy selects how the capture queue behaves when full
// (spec.md §4.B).
type OverflowPolicy string

const (
	DropNewest OverflowPolicy = "drop_newest"
	DropOldest OverflowPolicy = "drop_oldest"
	BlockUpTo  OverflowPolicy = "block_up_to"
)

// Compression selects the archive compression codec (spec.md §4.I).
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// Config holds every environment-derived knob the audit pipeline reads.
type Config struct {
	QueueCapacity           int
	QueueOverflowPolicy     OverflowPolicy
	QueueBlockDeadline      time.Duration
	SegmentMaxEvents        int
	SegmentMaxAge           time.Duration
	HeadAttestationInterval time.Duration
	MonitorInterval         time.Duration
	Compression             Compression
	ArchiveTarget           string
	KeyStorePath            string
	GenesisDigestHex        string
}

// Default returns the baseline configuration used when no environment
// overrides are present.
func Default() Config {
	return Config{
		QueueCapacity:           4096,
		QueueOverflowPolicy:     DropOldest,
		QueueBlockDeadline:      5 * time.Second,
		SegmentMaxEvents:        50_000,
		SegmentMaxAge:           10 * time.Minute,
		HeadAttestationInterval: 30 * time.Second,
		MonitorInterval:         15 * time.Second,
		Compression:             CompressionZstd,
		ArchiveTarget:           "",
		KeyStorePath:            "",
		GenesisDigestHex:        "",
	}
}

// Load reads recognized environment variables over Default(), returning
// a configuration_invalid error (auditerr.ErrConfigurationInvalid) if
// any value fails to parse or is out of range.
func Load() (Config, error) {
	c := Default()

	if v, ok := os.LookupEnv("queue_capacity"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("queue_capacity=%q: %w", v, auditerr.ErrConfigurationInvalid)
		}
		c.QueueCapacity = n
	}

	if v, ok := os.LookupEnv("queue_overflow_policy"); ok {
		switch OverflowPolicy(v) {
		case DropNewest, DropOldest, BlockUpTo:
			c.QueueOverflowPolicy = OverflowPolicy(v)
		default:
			return Config{}, fmt.Errorf("queue_overflow_policy=%q: %w", v, auditerr.ErrConfigurationInvalid)
		}
	}

	if v, ok := os.LookupEnv("segment_max_events"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("segment_max_events=%q: %w", v, auditerr.ErrConfigurationInvalid)
		}
		c.SegmentMaxEvents = n
	}

	if v, ok := os.LookupEnv("segment_max_age"); ok {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("segment_max_age=%q: %w", v, auditerr.ErrConfigurationInvalid)
		}
		c.SegmentMaxAge = d
	}

	if v, ok := os.LookupEnv("head_attestation_interval"); ok {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("head_attestation_interval=%q: %w", v, auditerr.ErrConfigurationInvalid)
		}
		c.HeadAttestationInterval = d
	}

	if v, ok := os.LookupEnv("monitor_interval"); ok {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("monitor_interval=%q: %w", v, auditerr.ErrConfigurationInvalid)
		}
		c.MonitorInterval = d
	}

	if v, ok := os.LookupEnv("compression"); ok {
		switch Compression(v) {
		case CompressionNone, CompressionGzip, CompressionZstd, CompressionLZ4:
			c.Compression = Compression(v)
		default:
			return Config{}, fmt.Errorf("compression=%q: %w", v, auditerr.ErrConfigurationInvalid)
		}
	}

	if v, ok := os.LookupEnv("archive_target"); ok {
		c.ArchiveTarget = v
	}
	if v, ok := os.LookupEnv("key_store_path"); ok {
		c.KeyStorePath = v
	}
	if v, ok := os.LookupEnv("genesis_digest"); ok {
		if _, err := hex.DecodeString(v); len(v) != 64 || err != nil {
			return Config{}, fmt.Errorf("genesis_digest=%q: expected 64 hex chars: %w", v, auditerr.ErrConfigurationInvalid)
		}
		c.GenesisDigestHex = v
	}

	return c, nil
}
