package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/wolfe-services/tachikoma-audit/internal/auditerr"
	"github.com/wolfe-services/tachikoma-audit/internal/export"
	"github.com/wolfe-services/tachikoma-audit/internal/store"
)

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	dir := fs.String("dir", "", "segment directory")
	format := fs.String("format", string(export.FormatJSONLines), "output format: jsonl|json_pretty|csv|cef|leef")
	out := fs.String("out", "", "output file path (default: stdout)")
	from := fs.Uint64("from", 0, "starting n (inclusive)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errFlagValidation, err)
	}
	if *dir == "" {
		return fmt.Errorf("%w: --dir is required", errFlagValidation)
	}

	sink := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return fmt.Errorf("%w: create output file: %v", auditerr.ErrIOFailed, err)
		}
		defer f.Close()
		sink = f
	}

	cursor := store.NewCursor(*dir, *from)
	cfg := export.Config{Format: export.Format(*format), FromN: *from}

	res, err := export.Run(context.Background(), sink, cursor, cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", auditerr.ErrIOFailed, err)
	}

	fmt.Fprintf(os.Stderr, "exported %d events (last n=%d, %d bytes) in %s\n",
		res.ExportedEvents, res.LastN, res.BytesWritten, res.Duration)
	return nil
}
