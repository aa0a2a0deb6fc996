package auditconfig

import (
	"errors"
	"testing"

	"github.com/wolfe-services/tachikoma-audit/internal/auditerr"
)

func TestLoad_DefaultsWhenUnset(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if c.QueueCapacity != Default().QueueCapacity {
		t.Fatalf("expected default queue capacity, got %d", c.QueueCapacity)
	}
}

func TestLoad_RejectsInvalidOverflowPolicy(t *testing.T) {
	t.Setenv("queue_overflow_policy", "drop_everything")
	_, err := Load()
	if !errors.Is(err, auditerr.ErrConfigurationInvalid) {
		t.Fatalf("expected configuration_invalid, got %v", err)
	}
}

func TestLoad_RejectsNonPositiveQueueCapacity(t *testing.T) {
	t.Setenv("queue_capacity", "0")
	_, err := Load()
	if !errors.Is(err, auditerr.ErrConfigurationInvalid) {
		t.Fatalf("expected configuration_invalid, got %v", err)
	}
}

func TestLoad_AcceptsValidOverrides(t *testing.T) {
	t.Setenv("queue_capacity", "1024")
	t.Setenv("queue_overflow_policy", "block_up_to")
	t.Setenv("compression", "lz4")
	t.Setenv("segment_max_age", "5m")

	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if c.QueueCapacity != 1024 || c.QueueOverflowPolicy != BlockUpTo || c.Compression != CompressionLZ4 {
		t.Fatalf("unexpected config: %+v", c)
	}
}

func TestLoad_RejectsMalformedGenesisDigest(t *testing.T) {
	t.Setenv("genesis_digest", "not-hex")
	_, err := Load()
	if !errors.Is(err, auditerr.ErrConfigurationInvalid) {
		t.Fatalf("expected configuration_invalid, got %v", err)
	}
}
