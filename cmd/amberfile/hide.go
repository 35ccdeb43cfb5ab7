package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bernedogit/amber-sub001/internal/header"
	"github.com/bernedogit/amber-sub001/internal/hide"
	"github.com/bernedogit/amber-sub001/internal/primitives"
)

func hideCmd() *cobra.Command {
	var carrierPath string

	cmd := &cobra.Command{
		Use:   "hide <real-file> <output>",
		Short: "Hide a file's contents in the filler padding of an encrypted carrier",
		Long: `hide produces a file that decrypts, under the carrier (outer) password,
to the bogus carrier's contents; only someone who additionally knows
the second (inner) password can recover the hidden file from the
carrier's padding.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if carrierPath == "" {
				return fmt.Errorf("--carrier is required")
			}

			bogus, err := os.Open(carrierPath)
			if err != nil {
				return err
			}
			defer bogus.Close()

			real, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer real.Close()

			out, err := os.Create(args[1])
			if err != nil {
				return err
			}
			defer out.Close()

			outerPassword, err := promptPassword("Carrier (outer) password for "+args[1], true)
			if err != nil {
				return err
			}
			innerPassword, err := promptPassword("Hidden file (inner) password", true)
			if err != nil {
				return err
			}

			rng, err := primitives.NewKeyedRandom(outerPassword, innerPassword)
			if err != nil {
				return err
			}

			blockSize := theApp.cfg.Crypto.BlockSize
			blockFiller := theApp.cfg.Crypto.BlockFiller

			outerKey, outerNonce64, err := header.WritePasswordHeader(out, outerPassword, blockSize, blockFiller, theApp.cfg.Crypto.Shifts, rng)
			if err != nil {
				return fmt.Errorf("writing carrier header: %w", err)
			}

			innerKey, err := header.InnerKeyFromPassword(outerKey, outerNonce64, innerPassword, theApp.cfg.Crypto.Shifts)
			if err != nil {
				return fmt.Errorf("deriving inner key: %w", err)
			}

			if err := hide.Write(out, outerKey, nil, outerNonce64, int(blockSize), int(blockFiller), bogus, real, innerKey, rng); err != nil {
				return fmt.Errorf("hiding: %w", err)
			}

			capacity := int64(0)
			if st, err := bogus.Stat(); err == nil {
				capacity = st.Size() / int64(blockSize-blockFiller) * (int64(blockFiller) - primitives.TagSize)
			}
			theApp.met.RecordHide(int(capacity))
			fmt.Fprintln(os.Stderr, "hidden")
			return nil
		},
	}

	cmd.Flags().StringVar(&carrierPath, "carrier", "", "bogus carrier file whose encrypted form will visibly hold the hidden file (required)")
	return cmd
}
