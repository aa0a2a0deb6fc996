// Command auditctl is the thin CLI wrapper around the audit pipeline's
// core operations (spec.md §6: "CLI surface (thin wrapper; core only
// defines the operations it implements)"), grounded on cmd/rig/main.go's
// subcommand-dispatch style.
package main

import (
	"fmt"
	"os"
)

// Exit codes (spec.md §6).
const (
	exitOK                 = 0
	exitIntegrityFailure   = 2
	exitConfigurationError = 3
	exitIOError            = 4
	exitValidationError    = 5
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitValidationError)
	}

	var err error
	switch os.Args[1] {
	case "verify":
		err = runVerify(os.Args[2:])
	case "export":
		err = runExport(os.Args[2:])
	case "archive":
		err = runArchive(os.Args[2:])
	case "keys":
		err = runKeys(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "auditctl: unknown command %q\n", os.Args[1])
		printUsage()
		os.Exit(exitValidationError)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "auditctl: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: auditctl <command> [flags]

Commands:
  verify  --dir=DIR --key-store=PATH [--from=N] [--to=M]
  export  --dir=DIR [--format=FMT] [--out=PATH] [--from=N]
  archive create --dir=DIR --segments=FROM:TO --to=URI [--id=ID] [--compression=C] [--index]
  archive verify --at=URI --key-store=PATH [--id=ID]
  keys rotate --key-store=PATH

Run 'auditctl <command> --help' for command-specific flags.
`)
}
