package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bernedogit/amber-sub001/internal/keystore"
)

// ringOpCmd groups the key-ring maintenance verbs (list/sign/unsign/
// rename/alias/delete/merge) under one parent command.
func ringOpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ring-op",
		Short: "Inspect and maintain the key ring (list, sign, rename, alias, delete, merge)",
	}
	cmd.AddCommand(
		ringListCmd(),
		ringSignCmd(),
		ringUnsignCmd(),
		ringRenameCmd(),
		ringAliasCmd(),
		ringDeleteCmd(),
		ringMergeCmd(),
	)
	return cmd
}

func ringListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every key in the ring",
		RunE: func(cmd *cobra.Command, args []string) error {
			ring, _, err := openRing()
			if err != nil {
				return err
			}
			printKeyList(ring.Keys)
			return nil
		},
	}
}

func ringSignCmd() *cobra.Command {
	var signer string
	cmd := &cobra.Command{
		Use:   "sign <selector>...",
		Short: "Certify the matching keys with a master key you hold",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ring, password, err := openRing()
			if err != nil {
				return err
			}
			signerKey, err := resolveIdentity(ring, signer)
			if err != nil {
				return err
			}
			n, err := ring.Sign(signerKey, args)
			if err != nil {
				return fmt.Errorf("signing: %w", err)
			}
			if err := saveRing(ring, password); err != nil {
				return err
			}
			fmt.Printf("certified %d key(s)\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&signer, "signer", "", "master key selector to sign with (required)")
	return cmd
}

func ringUnsignCmd() *cobra.Command {
	var signer string
	cmd := &cobra.Command{
		Use:   "unsign <selector>...",
		Short: "Remove a signer's certification from the matching keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ring, password, err := openRing()
			if err != nil {
				return err
			}
			signerKey, err := resolveIdentity(ring, signer)
			if err != nil {
				return err
			}
			n := ring.RemoveSignature(signerKey.Pub, args)
			if err := saveRing(ring, password); err != nil {
				return err
			}
			fmt.Printf("removed %d certification(s)\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&signer, "signer", "", "signer whose certification should be removed (required)")
	return cmd
}

func ringRenameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rename <new-name> <selector>...",
		Short: "Rename the matching keys",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ring, password, err := openRing()
			if err != nil {
				return err
			}
			ring.Rename(args[1:], args[0])
			return saveRing(ring, password)
		},
	}
	return cmd
}

func ringAliasCmd() *cobra.Command {
	var appendAlias bool
	cmd := &cobra.Command{
		Use:   "alias <new-alias> <selector>...",
		Short: "Set (or append to) the matching keys' alias",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ring, password, err := openRing()
			if err != nil {
				return err
			}
			if appendAlias {
				ring.AppendAlias(args[1:], args[0])
			} else {
				ring.SetAlias(args[1:], args[0])
			}
			return saveRing(ring, password)
		},
	}
	cmd.Flags().BoolVar(&appendAlias, "append", false, "append to the existing alias instead of replacing it")
	return cmd
}

func ringDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <selector>...",
		Short: "Delete the matching keys from the ring",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ring, password, err := openRing()
			if err != nil {
				return err
			}
			selected := ring.Select(args)
			if len(selected) == 0 {
				return fmt.Errorf("no key matches %v", args)
			}
			ring.Delete(selected)
			return saveRing(ring, password)
		},
	}
	return cmd
}

func ringMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge <other-ring-file>",
		Short: "Import keys and certifications from another ring file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ring, password, err := openRing()
			if err != nil {
				return err
			}
			other, _, err := keystore.Load(args[0], nil)
			if err != nil {
				return fmt.Errorf("loading %s: %w", args[0], err)
			}
			ring.Merge(other)
			return saveRing(ring, password)
		},
	}
	return cmd
}
