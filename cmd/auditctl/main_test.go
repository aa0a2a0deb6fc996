package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/wolfe-services/tachikoma-audit/audit"
	"github.com/wolfe-services/tachikoma-audit/internal/auditerr"
	"github.com/wolfe-services/tachikoma-audit/internal/chain"
	"github.com/wolfe-services/tachikoma-audit/internal/signer"
)

// buildSealedChain writes n sealed events under dir and persists the
// signing keyring to keyStorePath, mirroring the on-disk state a real
// daemon run would leave behind for auditctl to operate on.
func buildSealedChain(t *testing.T, dir, keyStorePath string, n int) {
	t.Helper()
	kr, err := signer.NewKeyring()
	if err != nil {
		t.Fatal(err)
	}
	cfg := chain.Config{
		Dir:              dir,
		HeadPath:         filepath.Join(dir, "head"),
		SegmentMaxEvents: 2,
	}
	seq, err := chain.Open(context.Background(), cfg, kr, nil, nil, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		e, err := audit.NewEvent(audit.Authentication, audit.Login).
			Actor(audit.UserActor("u")).
			Build()
		if err != nil {
			t.Fatal(err)
		}
		if _, err := seq.Append(context.Background(), e); err != nil {
			t.Fatal(err)
		}
	}
	if err := seq.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := kr.Save(keyStorePath); err != nil {
		t.Fatal(err)
	}
}

func TestRunVerify_CleanChainSucceeds(t *testing.T) {
	dir := t.TempDir()
	keyStore := filepath.Join(dir, "keys.json")
	buildSealedChain(t, dir, keyStore, 4)

	if err := runVerify([]string{"--dir", dir, "--key-store", keyStore}); err != nil {
		t.Fatalf("runVerify: %v", err)
	}
}

func TestRunVerify_MissingDirIsValidationError(t *testing.T) {
	err := runVerify([]string{"--key-store", "/tmp/whatever"})
	if !errors.Is(err, errFlagValidation) {
		t.Fatalf("expected errFlagValidation, got %v", err)
	}
	if exitCodeFor(err) != exitValidationError {
		t.Fatalf("exit code = %d, want %d", exitCodeFor(err), exitValidationError)
	}
}

func TestRunVerify_MissingKeyStoreFailsIO(t *testing.T) {
	err := runVerify([]string{"--dir", t.TempDir(), "--key-store", "/nonexistent/keys.json"})
	if !errors.Is(err, auditerr.ErrIOFailed) {
		t.Fatalf("expected ErrIOFailed, got %v", err)
	}
	if exitCodeFor(err) != exitIOError {
		t.Fatalf("exit code = %d, want %d", exitCodeFor(err), exitIOError)
	}
}

func TestParseSegmentRange(t *testing.T) {
	from, to, err := parseSegmentRange("0:10")
	if err != nil {
		t.Fatal(err)
	}
	if from != 0 || to != 10 {
		t.Fatalf("got %d:%d, want 0:10", from, to)
	}

	if _, _, err := parseSegmentRange("bad"); err == nil {
		t.Fatal("expected error for malformed range")
	}
	if _, _, err := parseSegmentRange("10:5"); err == nil {
		t.Fatal("expected error when TO precedes FROM")
	}
}

func TestExitCodeFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{auditerr.ErrIntegrityIssue, exitIntegrityFailure},
		{auditerr.ErrConfigurationInvalid, exitConfigurationError},
		{auditerr.ErrIOFailed, exitIOError},
		{errFlagValidation, exitValidationError},
	}
	for _, c := range cases {
		if got := exitCodeFor(c.err); got != c.want {
			t.Errorf("exitCodeFor(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}
