package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bernedogit/amber-sub001/internal/keystore"
	"github.com/bernedogit/amber-sub001/internal/primitives"
)

func genkeyCmd() *cobra.Command {
	var name, workOf string

	cmd := &cobra.Command{
		Use:   "genkey",
		Short: "Generate a new identity key and add it to the key ring",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			ring, password, err := openRing()
			if err != nil {
				return err
			}

			var seed primitives.Key
			if err := primitives.RandomBytes(seed[:]); err != nil {
				return err
			}

			var k keystore.Key
			if workOf != "" {
				master, err := resolveIdentity(ring, workOf)
				if err != nil {
					return err
				}
				k, err = keystore.GenerateWorkKey(seed, name, master)
				if err != nil {
					return fmt.Errorf("generating work key: %w", err)
				}
			} else {
				k, err = keystore.GenerateMasterKey(seed, name)
				if err != nil {
					return fmt.Errorf("generating master key: %w", err)
				}
			}
			seed.Zero()

			if !ring.Insert(k, false) {
				return fmt.Errorf("a key with this public key already exists in the ring")
			}
			if err := saveRing(ring, password); err != nil {
				return err
			}

			theApp.log.Info("generated key", "name", name, "pub", k.EncodedPub(), "master", k.IsMaster)
			fmt.Printf("generated %s key %q: %s\n", map[bool]string{true: "master", false: "work"}[k.IsMaster], name, k.EncodedPub())
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "name for the new key (required)")
	cmd.Flags().StringVar(&workOf, "work-of", "", "generate a work key certified by this master key selector instead of a new master key")
	return cmd
}
