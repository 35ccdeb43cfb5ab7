package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bernedogit/amber-sub001/internal/header"
	"github.com/bernedogit/amber-sub001/internal/hide"
	"github.com/bernedogit/amber-sub001/internal/primitives"
)

func revealCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reveal <carrier> <output>",
		Short: "Recover a file previously hidden in a carrier's padding",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			out, err := os.Create(args[1])
			if err != nil {
				return err
			}
			defer out.Close()

			outerPassword, err := promptPassword("Carrier (outer) password for "+args[0], false)
			if err != nil {
				return err
			}
			innerPassword, err := promptPassword("Hidden file (inner) password", false)
			if err != nil {
				return err
			}

			outerKey, outerNonce64, blockSize, blockFiller, shifts, err := header.ReadPasswordHeader(in, outerPassword, primitives.DefaultShiftsMax)
			if err != nil {
				return fmt.Errorf("reading carrier header: %w", err)
			}

			innerKey, err := header.InnerKeyFromPassword(outerKey, outerNonce64, innerPassword, shifts)
			if err != nil {
				return fmt.Errorf("deriving inner key: %w", err)
			}

			if err := hide.Read(in, outerKey, outerKey, 1, 0, outerNonce64, int(blockSize), int(blockFiller), innerKey, out); err != nil {
				return fmt.Errorf("revealing: %w", err)
			}

			theApp.met.RecordReveal()
			fmt.Fprintln(os.Stderr, "revealed")
			return nil
		},
	}
	return cmd
}
