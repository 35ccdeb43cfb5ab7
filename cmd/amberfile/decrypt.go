package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bernedogit/amber-sub001/internal/blockstream"
	"github.com/bernedogit/amber-sub001/internal/header"
	"github.com/bernedogit/amber-sub001/internal/noise"
	"github.com/bernedogit/amber-sub001/internal/primitives"
)

func decryptCmd() *cobra.Command {
	var identity string

	cmd := &cobra.Command{
		Use:   "decrypt <input> <output>",
		Short: "Decrypt a file written by encrypt",
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

			var stream *blockstream.Stream

			if identity == "" {
				password, err := promptPassword("Password for "+args[0], false)
				if err != nil {
					return err
				}
				key, nonce64, blockSize, blockFiller, _, err := header.ReadPasswordHeader(in, password, primitives.DefaultShiftsMax)
				if err != nil {
					return fmt.Errorf("reading password header: %w", err)
				}
				stream, err = blockstream.NewReader(in, blockstream.Params{
					Key:         key,
					BaseNonce64: nonce64,
					BlockSize:   int(blockSize),
					BlockFiller: int(blockFiller),
					AuthKeyR:    key,
					NAuth:       1,
				})
				if err != nil {
					return fmt.Errorf("opening block-stream reader: %w", err)
				}
			} else {
				ring, _, err := openRing()
				if err != nil {
					return err
				}
				recipient, err := resolveIdentity(ring, identity)
				if err != nil {
					return err
				}
				recipientDH := &noise.KeyPair{Sec: dhSecOf(recipient.Sec), Pub: recipient.DHPub}

				key, nonce64, sender, blockSize, blockFiller, _, position, authKey, nAuth, err := header.ReadPublicHeader(in, recipientDH)
				if err != nil {
					return fmt.Errorf("reading public header: %w", err)
				}
				theApp.log.Info("decrypting", "sender", fmt.Sprintf("%x", sender))
				stream, err = blockstream.NewReader(in, blockstream.Params{
					Key:         key,
					BaseNonce64: nonce64,
					BlockSize:   int(blockSize),
					BlockFiller: int(blockFiller),
					AuthKeyR:    authKey,
					NAuth:       nAuth,
					AuthIndex:   position,
				})
				if err != nil {
					return fmt.Errorf("opening block-stream reader: %w", err)
				}
			}

			n, err := io.Copy(out, stream)
			if err != nil {
				return fmt.Errorf("decrypting: %w", err)
			}

			theApp.met.RecordBytesRead("decrypt", int(n))
			reportTransfer("decrypted", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&identity, "identity", "", "identity key selector to decrypt as (public-key mode); password mode is used if omitted")
	return cmd
}
