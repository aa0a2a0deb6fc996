package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/wolfe-services/tachikoma-audit/internal/archive"
	archstore "github.com/wolfe-services/tachikoma-audit/internal/archive/store"
	"github.com/wolfe-services/tachikoma-audit/internal/auditerr"
	"github.com/wolfe-services/tachikoma-audit/internal/chain"
	"github.com/wolfe-services/tachikoma-audit/internal/signer"
)

func runArchive(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: archive requires a subcommand (create|verify)", errFlagValidation)
	}
	switch args[0] {
	case "create":
		return runArchiveCreate(args[1:])
	case "verify":
		return runArchiveVerify(args[1:])
	default:
		return fmt.Errorf("%w: unknown archive subcommand %q", errFlagValidation, args[0])
	}
}

func runArchiveCreate(args []string) error {
	fs := flag.NewFlagSet("archive create", flag.ContinueOnError)
	dir := fs.String("dir", "", "segment directory")
	segments := fs.String("segments", "", "inclusive n range to archive, FROM:TO")
	to := fs.String("to", "", "archive_target URI (local path, s3://, azureblob://, gcs://)")
	id := fs.String("id", "", "archive id (default: derived from the segment range)")
	compression := fs.String("compression", string(archive.CompressionGzip), "none|gzip|zstd|lz4")
	withIndex := fs.Bool("index", true, "build a per-event index")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errFlagValidation, err)
	}
	if *dir == "" {
		return fmt.Errorf("%w: --dir is required", errFlagValidation)
	}
	if *to == "" {
		return fmt.Errorf("%w: --to is required", errFlagValidation)
	}
	from, until, err := parseSegmentRange(*segments)
	if err != nil {
		return fmt.Errorf("%w: --segments: %v", errFlagValidation, err)
	}

	recs, err := sealedSegmentsInRange(*dir, from, until)
	if err != nil {
		return fmt.Errorf("%w: %v", auditerr.ErrIOFailed, err)
	}
	if len(recs) == 0 {
		return fmt.Errorf("%w: no sealed segments in range %d:%d", auditerr.ErrNotFound, from, until)
	}

	archiveID := *id
	if archiveID == "" {
		archiveID = fmt.Sprintf("%d-%d", from, until)
	}

	loc, err := archstore.ParseLocation(*to)
	if err != nil {
		return fmt.Errorf("%w: %v", errFlagValidation, err)
	}
	backend, err := backendFor(loc)
	if err != nil {
		return fmt.Errorf("%w: %v", auditerr.ErrConfigurationInvalid, err)
	}

	req := archive.CreateRequest{
		ID:          archiveID,
		Segments:    recs,
		Compression: archive.CompressionType(*compression),
		WithIndex:   *withIndex,
	}
	meta, err := archive.Create(context.Background(), req, backend, loc)
	if err != nil {
		return fmt.Errorf("%w: %v", auditerr.ErrIOFailed, err)
	}

	fmt.Fprintf(os.Stdout, "archived %d events into %q (%d bytes compressed from %d)\n",
		meta.EventCount, meta.ID, meta.CompressedSize, meta.OriginalSize)
	return nil
}

func runArchiveVerify(args []string) error {
	fs := flag.NewFlagSet("archive verify", flag.ContinueOnError)
	at := fs.String("at", "", "archive_target URI the archive lives at")
	keyStore := fs.String("key-store", "", "key store path")
	fs.String("id", "", "archive id (informational; --at already names the object)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errFlagValidation, err)
	}
	if *at == "" {
		return fmt.Errorf("%w: --at is required", errFlagValidation)
	}
	if *keyStore == "" {
		return fmt.Errorf("%w: --key-store is required", errFlagValidation)
	}

	kr, err := signer.LoadKeyring(*keyStore)
	if err != nil {
		return fmt.Errorf("%w: load keyring: %v", auditerr.ErrIOFailed, err)
	}

	loc, err := archstore.ParseLocation(*at)
	if err != nil {
		return fmt.Errorf("%w: %v", errFlagValidation, err)
	}
	backend, err := backendFor(loc)
	if err != nil {
		return fmt.Errorf("%w: %v", auditerr.ErrConfigurationInvalid, err)
	}

	opened, err := archive.Open(context.Background(), backend, loc)
	if err != nil {
		return fmt.Errorf("%w: %v", auditerr.ErrIOFailed, err)
	}
	if err := opened.Verify(kr); err != nil {
		return fmt.Errorf("%w: %v", auditerr.ErrVerificationFailed, err)
	}

	fmt.Fprintf(os.Stdout, "archive %q verified: %d events, %d segments\n",
		opened.Metadata.ID, opened.Metadata.EventCount, len(opened.Metadata.Segments))
	return nil
}

// parseSegmentRange parses a "FROM:TO" n-range, inclusive on both ends.
func parseSegmentRange(s string) (from, until uint64, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want FROM:TO, got %q", s)
	}
	from, err = strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid FROM: %v", err)
	}
	until, err = strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid TO: %v", err)
	}
	if until < from {
		return 0, 0, fmt.Errorf("TO (%d) precedes FROM (%d)", until, from)
	}
	return from, until, nil
}

// sealedSegmentsInRange loads every sealed segment under dir whose whole
// range [n_lo, n_hi] lies within [from, until], in ascending order
// (archive.Create
// requires whole segments, never a sub-range of one).
func sealedSegmentsInRange(dir string, from, until uint64) ([]chain.SegmentRecord, error) {
	paths, err := chain.ListSegmentPaths(dir)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	var out []chain.SegmentRecord
	for _, p := range paths {
		rec, err := chain.ReadSegmentFile(p)
		if err != nil {
			return nil, fmt.Errorf("read segment %s: %w", p, err)
		}
		if !rec.Sealed {
			continue
		}
		if rec.Header.NLo < from || rec.Trailer.NHi > until {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// backendFor returns the store.Backend that addresses loc's kind, using
// the same environment-variable conventions as the running daemon
// (spec.md §4.I names local, S3, Azure Blob, and GCS targets).
func backendFor(loc archstore.Location) (archstore.Backend, error) {
	switch loc.Kind {
	case archstore.Local:
		return archstore.NewLocalBackend(), nil
	case archstore.S3:
		region := os.Getenv("AWS_REGION")
		return archstore.NewS3Backend(region, os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")), nil
	case archstore.AzureBlob:
		return archstore.NewAzureBlobBackend(os.Getenv("AZURE_STORAGE_CONNECTION_STRING"))
	case archstore.GCS:
		return archstore.NewGCSBackend(context.Background())
	default:
		return nil, fmt.Errorf("auditctl: unrecognized archive target kind %q", loc.Kind)
	}
}
