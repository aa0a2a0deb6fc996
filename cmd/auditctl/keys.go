package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/wolfe-services/tachikoma-audit/internal/auditerr"
	"github.com/wolfe-services/tachikoma-audit/internal/signer"
)

func runKeys(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: keys requires a subcommand (rotate)", errFlagValidation)
	}
	switch args[0] {
	case "rotate":
		return runKeysRotate(args[1:])
	default:
		return fmt.Errorf("%w: unknown keys subcommand %q", errFlagValidation, args[0])
	}
}

// runKeysRotate generates a new signing key, makes it the keyring's
// active key, and persists the updated keyring (spec.md §4.F: "Key
// rotation: a new key becomes active for future seals; prior keys stay
// resident to verify history").
func runKeysRotate(args []string) error {
	fs := flag.NewFlagSet("keys rotate", flag.ContinueOnError)
	keyStore := fs.String("key-store", "", "key store path")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errFlagValidation, err)
	}
	if *keyStore == "" {
		return fmt.Errorf("%w: --key-store is required", errFlagValidation)
	}

	kr, err := signer.LoadOrNewKeyring(*keyStore)
	if err != nil {
		return fmt.Errorf("%w: load keyring: %v", auditerr.ErrIOFailed, err)
	}

	newID, err := kr.Rotate()
	if err != nil {
		return fmt.Errorf("%w: rotate: %v", auditerr.ErrSignatureFailed, err)
	}
	if err := kr.Save(*keyStore); err != nil {
		return fmt.Errorf("%w: save keyring: %v", auditerr.ErrIOFailed, err)
	}

	fmt.Fprintf(os.Stdout, "rotated to key id %d\n", newID)
	return nil
}
