package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// sign/verify/pack/unpack are documented CLI verbs that don't carry
// their own distinct wire format here: a detached signature is just an
// Ed25519 signature over a file's hash (see internal/primitives'
// Sign/Verify), and pack/unpack are an encrypt/decrypt pair
// with multiple inputs concatenated through internal/tlv records
// rather than a single stream. They're stubbed as their own
// subcommands so every verb in the documented CLI surface has a
// command, even though today each only reports that it isn't wired up
// yet.
func notImplemented(verb string) *cobra.Command {
	return &cobra.Command{
		Use: verb,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("%s: not yet implemented", verb)
		},
	}
}

func signCmd() *cobra.Command {
	cmd := notImplemented("sign <file>")
	cmd.Short = "Produce a detached signature over a file (not yet implemented)"
	cmd.Args = cobra.ExactArgs(1)
	return cmd
}

func verifyCmd() *cobra.Command {
	cmd := notImplemented("verify <file> <signature>")
	cmd.Short = "Verify a detached signature over a file (not yet implemented)"
	cmd.Args = cobra.ExactArgs(2)
	return cmd
}

func packCmd() *cobra.Command {
	cmd := notImplemented("pack <output> <input>...")
	cmd.Short = "Encrypt multiple files into one archive (not yet implemented)"
	cmd.Args = cobra.MinimumNArgs(2)
	return cmd
}

func unpackCmd() *cobra.Command {
	cmd := notImplemented("unpack <archive> <dir>")
	cmd.Short = "Extract an encrypted multi-file archive (not yet implemented)"
	cmd.Args = cobra.ExactArgs(2)
	return cmd
}
