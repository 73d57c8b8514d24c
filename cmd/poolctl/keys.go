package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"pooledger/cmd/internal/passphrase"
	"pooledger/core/executor"
	"pooledger/crypto"
	"pooledger/native/poollend"
)

func newKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a secp256k1 key and write it to an encrypted keystore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			force, _ := cmd.Flags().GetBool("force")
			if strings.TrimSpace(out) == "" {
				return errors.New("--out is required")
			}
			if _, err := os.Stat(out); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", out)
			}
			pass, err := passphrase.NewSource(passEnv, passphrase.WithLabel(out)).Get()
			if err != nil {
				return err
			}
			key, err := crypto.GeneratePrivateKey()
			if err != nil {
				return err
			}
			if err := crypto.SaveToKeystore(out, key, pass); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key.Key().String())
			return nil
		},
	}
	cmd.Flags().String("out", "", "Keystore file to write")
	cmd.Flags().Bool("force", false, "Overwrite an existing keystore")
	return cmd
}

func newProgramsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "programs",
		Short: "Print program ids and lending vault signers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lending := lendingProgram(cmd)
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "system         %s\n", executor.SystemProgramID)
			fmt.Fprintf(w, "token          %s\n", executor.TokenProgramID)
			fmt.Fprintf(w, "lending        %s\n", lending)
			fmt.Fprintf(w, "vault          %s\n", crypto.DeriveVaultSigner(poollend.VaultSeed, lending).Key())
			fmt.Fprintf(w, "airdrop-vault  %s\n", crypto.DeriveVaultSigner(poollend.AirdropVaultSeed, lending).Key())
			return nil
		},
	}
}

func newAddressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Derive record addresses",
	}

	derive := &cobra.Command{
		Use:   "derive <base> <seed> <program>",
		Short: "Derive the address of a seeded record",
		Long:  "Derive the address of a record created from base with seed and owned by program. program may be system, token, lending or a key.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := crypto.DecodeKey(args[0])
			if err != nil {
				return fmt.Errorf("base: %w", err)
			}
			program, err := resolveProgram(cmd, args[2])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), crypto.DeriveAddress(base, args[1], program).String())
			return nil
		},
	}

	records := &cobra.Command{
		Use:   "records <party>",
		Short: "Print the borrower, guarantor and airdrop counter addresses of a party",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			party, err := crypto.DecodeKey(args[0])
			if err != nil {
				return fmt.Errorf("party: %w", err)
			}
			lending := lendingProgram(cmd)
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "borrower         %s\n", poollend.BorrowerRecordAddress(party, lending))
			fmt.Fprintf(w, "guarantor        %s\n", poollend.GuarantorRecordAddress(party, lending))
			fmt.Fprintf(w, "airdrop-counter  %s\n", poollend.AirdropCounterAddress(party, lending))
			return nil
		},
	}

	cmd.AddCommand(derive, records)
	return cmd
}

func lendingProgram(cmd *cobra.Command) crypto.Key {
	seed, _ := cmd.Flags().GetString("lending-seed")
	if strings.TrimSpace(seed) == "" {
		return executor.DefaultLendingProgramID
	}
	return crypto.NamedKey(seed)
}

// resolveProgram accepts a program alias or an encoded key.
func resolveProgram(cmd *cobra.Command, ref string) (crypto.Key, error) {
	switch strings.ToLower(strings.TrimSpace(ref)) {
	case "system":
		return executor.SystemProgramID, nil
	case "token":
		return executor.TokenProgramID, nil
	case "lending", "poollend":
		return lendingProgram(cmd), nil
	}
	key, err := crypto.DecodeKey(ref)
	if err != nil {
		return crypto.Key{}, fmt.Errorf("program %q: %w", ref, err)
	}
	return key, nil
}

func loadKey(path string) (*crypto.PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("--keystore is required")
	}
	pass, err := passphrase.NewSource(passEnv, passphrase.WithLabel(path), passphrase.AllowEmpty()).Get()
	if err != nil {
		return nil, err
	}
	return crypto.LoadFromKeystore(path, pass)
}
