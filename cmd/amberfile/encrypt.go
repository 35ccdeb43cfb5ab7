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

func encryptCmd() *cobra.Command {
	var recipients []string
	var identity string
	var spoofAs string
	var spoofDummies int

	cmd := &cobra.Command{
		Use:   "encrypt <input> <output>",
		Short: "Encrypt a file, addressed by password or by recipient public keys",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if spoofAs != "" && len(recipients) != 0 {
				return fmt.Errorf("--spoof-as cannot be combined with -r/--recipient")
			}

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

			rng, err := primitives.NewKeyedRandom()
			if err != nil {
				return err
			}

			var stream *blockstream.Stream

			if spoofAs != "" {
				ring, _, err := openRing()
				if err != nil {
					return err
				}
				self, err := resolveIdentity(ring, identity)
				if err != nil {
					return err
				}
				selfDH := &noise.KeyPair{Sec: dhSecOf(self.Sec), Pub: self.DHPub}

				target, err := ring.SelectOne(spoofAs)
				if err != nil {
					return fmt.Errorf("resolving --spoof-as identity: %w", err)
				}

				rng, err = primitives.NewKeyedRandom(self.Sec[:])
				if err != nil {
					return err
				}
				key, nonce64, authKeyW, err := header.WriteSpoofHeader(out, selfDH, target.DHPub, spoofDummies, theApp.cfg.Crypto.BlockSize, theApp.cfg.Crypto.BlockFiller, rng)
				if err != nil {
					return fmt.Errorf("writing spoof header: %w", err)
				}
				stream, err = blockstream.NewWriter(out, blockstream.Params{
					Key:         key,
					BaseNonce64: nonce64,
					BlockSize:   int(theApp.cfg.Crypto.BlockSize),
					BlockFiller: int(theApp.cfg.Crypto.BlockFiller),
					AuthKeysW:   []primitives.Key{authKeyW},
					RNG:         rng,
				})
				if err != nil {
					return fmt.Errorf("opening block-stream writer: %w", err)
				}
			} else if len(recipients) == 0 {
				password, err := promptPassword("Password for "+args[1], true)
				if err != nil {
					return err
				}
				key, nonce64, err := header.WritePasswordHeader(out, password, theApp.cfg.Crypto.BlockSize, theApp.cfg.Crypto.BlockFiller, theApp.cfg.Crypto.Shifts, rng)
				if err != nil {
					return fmt.Errorf("writing password header: %w", err)
				}
				stream, err = blockstream.NewWriter(out, blockstream.Params{
					Key:         key,
					BaseNonce64: nonce64,
					BlockSize:   int(theApp.cfg.Crypto.BlockSize),
					BlockFiller: int(theApp.cfg.Crypto.BlockFiller),
					RNG:         rng,
				})
				if err != nil {
					return fmt.Errorf("opening block-stream writer: %w", err)
				}
			} else {
				ring, _, err := openRing()
				if err != nil {
					return err
				}
				sender, err := resolveIdentity(ring, identity)
				if err != nil {
					return err
				}
				senderDH := &noise.KeyPair{Sec: dhSecOf(sender.Sec), Pub: sender.DHPub}

				rxKeys, err := resolveRecipients(ring, recipients)
				if err != nil {
					return err
				}

				key, nonce64, authKeys, err := header.WritePublicHeader(out, senderDH, rxKeys, theApp.cfg.Crypto.BlockSize, theApp.cfg.Crypto.BlockFiller, 0, rng)
				if err != nil {
					return fmt.Errorf("writing public header: %w", err)
				}
				theApp.met.RecordRecipients(len(rxKeys))
				stream, err = blockstream.NewWriter(out, blockstream.Params{
					Key:         key,
					BaseNonce64: nonce64,
					BlockSize:   int(theApp.cfg.Crypto.BlockSize),
					BlockFiller: int(theApp.cfg.Crypto.BlockFiller),
					AuthKeysW:   authKeys,
					RNG:         rng,
				})
				if err != nil {
					return fmt.Errorf("opening block-stream writer: %w", err)
				}
			}

			n, err := io.Copy(stream, in)
			if err != nil {
				return fmt.Errorf("encrypting: %w", err)
			}
			if err := stream.Close(); err != nil {
				return fmt.Errorf("closing block-stream: %w", err)
			}

			theApp.met.RecordBytesWritten("encrypt", int(n))
			reportTransfer("encrypted", n)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&recipients, "recipient", "r", nil, "recipient selector (name, alias, or hex prefix); repeatable. Password mode is used if omitted")
	cmd.Flags().StringVar(&identity, "identity", "", "identity key selector to encrypt as (required with -r or --spoof-as)")
	cmd.Flags().StringVar(&spoofAs, "spoof-as", "", "build a deniable header addressed so that it appears, to anyone who later holds --identity's secret, to have come from this selector instead")
	cmd.Flags().IntVar(&spoofDummies, "spoof-dummies", 2, "number of random decoy entries to pad a --spoof-as header with")
	return cmd
}

// dhSecOf derives the X25519 secret matching a keystore identity's
// Ed25519 secret: both are generated from the same 32-byte seed, and
// primitives.SignKeygen's secret output is literally that seed.
func dhSecOf(ed25519Sec primitives.Key) primitives.Key {
	sec, _ := primitives.DHKeygen(ed25519Sec)
	return sec
}
