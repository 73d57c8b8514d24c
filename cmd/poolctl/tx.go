package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"pooledger/core/executor"
	"pooledger/core/tx"
	"pooledger/crypto"
	"pooledger/native/poollend"
	"pooledger/native/system"
	"pooledger/native/token"
)

func newTxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Build, sign and submit transactions",
	}
	cmd.AddCommand(newTxBuildCmd(), newTxSendCmd())
	return cmd
}

func newTxBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Print a single instruction as JSON",
		Long:  "Build one instruction. Collect several into a JSON array and pass it to 'tx send'.",
	}

	lend := &cobra.Command{
		Use:   "lend <operation>",
		Short: "Build a lending program instruction",
		Long:  "Build a lending program instruction. operation is one of: " + strings.Join(lendingOperations(), ", "),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, ok := poollend.ParseTag(args[0])
			if !ok {
				return fmt.Errorf("unknown operation %q", args[0])
			}
			accounts, err := accountsFlag(cmd, "accounts")
			if err != nil {
				return err
			}
			ins := poollend.Instruction{Tag: tag}
			ins.Amount, _ = cmd.Flags().GetUint64("amount")
			ins.LenderID, _ = cmd.Flags().GetUint32("lender-id")
			ins.TargetAmount, _ = cmd.Flags().GetUint64("target")
			ins.InstallmentCount, _ = cmd.Flags().GetUint16("installments")
			ins.FundraisingDays, _ = cmd.Flags().GetUint16("fundraising-days")
			ins.FirstRepaymentDays, _ = cmd.Flags().GetUint16("first-repayment-days")
			ins.Count, _ = cmd.Flags().GetUint16("count")
			return printInstruction(cmd, tx.Instruction{
				Program:  lendingProgram(cmd),
				Accounts: accounts,
				Data:     ins.Encode(),
			})
		},
	}
	lend.Flags().String("accounts", "", "Comma-separated account keys in instruction order")
	lend.Flags().Uint64("amount", 0, "Amount for Contribute and PayInstallment")
	lend.Flags().Uint32("lender-id", 0, "Lender slot for Contribute and WithdrawLenderBalance")
	lend.Flags().Uint64("target", 0, "Target amount for InitializeLoan")
	lend.Flags().Uint16("installments", 0, "Installment count for InitializeLoan")
	lend.Flags().Uint16("fundraising-days", 0, "Fundraising window for InitializeLoan")
	lend.Flags().Uint16("first-repayment-days", 0, "Days from approval to first repayment for InitializeLoan")
	lend.Flags().Uint16("count", 0, "Contributions to settle for ReturnFundsToLenders")

	createRecord := &cobra.Command{
		Use:   "create-record",
		Short: "Build a system CreateRecord instruction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			payer, err := keyFlag(cmd, "payer")
			if err != nil {
				return err
			}
			ownerRef, _ := cmd.Flags().GetString("owner")
			owner, err := resolveProgram(cmd, ownerRef)
			if err != nil {
				return err
			}
			seed, _ := cmd.Flags().GetString("seed")
			size, _ := cmd.Flags().GetUint64("size")
			kind, _ := cmd.Flags().GetString("kind")
			if kind != "" {
				if size, err = recordSize(kind); err != nil {
					return err
				}
			}
			if size == 0 {
				return errors.New("--size or --kind is required")
			}
			deposit, _ := cmd.Flags().GetUint64("deposit")
			return printInstruction(cmd, tx.Instruction{
				Program:  executor.SystemProgramID,
				Accounts: []crypto.Key{payer, crypto.DeriveAddress(payer, seed, owner)},
				Data:     system.EncodeCreateRecord(size, deposit, owner, seed),
			})
		},
	}
	createRecord.Flags().String("payer", "", "Signing key funding the record")
	createRecord.Flags().String("seed", "", "Derivation seed")
	createRecord.Flags().String("owner", "lending", "Owning program: system, token, lending or a key")
	createRecord.Flags().Uint64("size", 0, "Record size in bytes")
	createRecord.Flags().String("kind", "", "Size preset: token, ledger, loan, borrower, guarantor, airdrop-counter")
	createRecord.Flags().Uint64("deposit", 0, "Deposit; zero charges the rent minimum")

	tokenInit := &cobra.Command{
		Use:   "token-init",
		Short: "Build a token InitializeAccount instruction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := keyFlags(cmd, "payer", "account", "custodian")
			if err != nil {
				return err
			}
			return printInstruction(cmd, tx.Instruction{
				Program:  executor.TokenProgramID,
				Accounts: keys[:2],
				Data:     token.EncodeInitializeAccount(keys[2]),
			})
		},
	}
	tokenInit.Flags().String("payer", "", "Signing key")
	tokenInit.Flags().String("account", "", "Token account record")
	tokenInit.Flags().String("custodian", "", "Custodian of the new account")

	tokenMint := &cobra.Command{
		Use:   "token-mint",
		Short: "Build a token Mint instruction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := keyFlags(cmd, "authority", "account")
			if err != nil {
				return err
			}
			amount, _ := cmd.Flags().GetUint64("amount")
			return printInstruction(cmd, tx.Instruction{
				Program:  executor.TokenProgramID,
				Accounts: keys,
				Data:     token.EncodeMint(amount),
			})
		},
	}
	tokenMint.Flags().String("authority", "", "Mint authority key")
	tokenMint.Flags().String("account", "", "Token account to credit")
	tokenMint.Flags().Uint64("amount", 0, "Amount to mint")

	tokenTransfer := &cobra.Command{
		Use:   "token-transfer",
		Short: "Build a token Transfer instruction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := keyFlags(cmd, "custodian", "from", "to")
			if err != nil {
				return err
			}
			amount, _ := cmd.Flags().GetUint64("amount")
			return printInstruction(cmd, tx.Instruction{
				Program:  executor.TokenProgramID,
				Accounts: keys,
				Data:     token.EncodeTransfer(amount),
			})
		},
	}
	tokenTransfer.Flags().String("custodian", "", "Custodian of the source account")
	tokenTransfer.Flags().String("from", "", "Source token account")
	tokenTransfer.Flags().String("to", "", "Destination token account")
	tokenTransfer.Flags().Uint64("amount", 0, "Amount to transfer")

	tokenCustodian := &cobra.Command{
		Use:   "token-set-custodian",
		Short: "Build a token SetCustodian instruction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := keyFlags(cmd, "custodian", "account", "next")
			if err != nil {
				return err
			}
			return printInstruction(cmd, tx.Instruction{
				Program:  executor.TokenProgramID,
				Accounts: keys[:2],
				Data:     token.EncodeSetCustodian(keys[2]),
			})
		},
	}
	tokenCustodian.Flags().String("custodian", "", "Current custodian")
	tokenCustodian.Flags().String("account", "", "Token account")
	tokenCustodian.Flags().String("next", "", "New custodian")

	cmd.AddCommand(lend, createRecord, tokenInit, tokenMint, tokenTransfer, tokenCustodian)
	return cmd
}

func newTxSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send [instructions.json]",
		Short: "Sign a list of instructions and submit it to the node",
		Long:  "Read a JSON array of instructions (or a single instruction) from the file argument or stdin, sign it with the keystore key and submit it.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				raw []byte
				err error
			)
			if len(args) == 1 && args[0] != "-" {
				raw, err = os.ReadFile(args[0])
			} else {
				raw, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return err
			}
			instructions, err := parseInstructions(raw)
			if err != nil {
				return err
			}
			keystore, _ := cmd.Flags().GetString("keystore")
			key, err := loadKey(keystore)
			if err != nil {
				return err
			}
			nonce, _ := cmd.Flags().GetUint64("nonce")
			transaction := &tx.Transaction{Instructions: instructions, Nonce: nonce}
			if err := transaction.Sign(key); err != nil {
				return err
			}
			if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
				return printJSON(cmd.OutOrStdout(), transaction)
			}
			status, body, err := clientFor(cmd).post(cmd.Context(), "/v1/transactions", transaction)
			if err != nil {
				return err
			}
			if err := printRaw(cmd.OutOrStdout(), body); err != nil {
				return err
			}
			if status >= 300 {
				return fmt.Errorf("node rejected transaction (HTTP %d)", status)
			}
			return nil
		},
	}
	cmd.Flags().String("keystore", "", "Keystore of the signing key")
	cmd.Flags().Uint64("nonce", 0, "Transaction nonce; vary it to resubmit identical instructions")
	cmd.Flags().String("token", envOr(tokenEnv, ""), "Bearer token for authenticated nodes")
	cmd.Flags().Bool("dry-run", false, "Print the signed transaction instead of submitting it")
	return cmd
}

func parseInstructions(raw []byte) ([]tx.Instruction, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, errors.New("no instructions supplied")
	}
	if strings.HasPrefix(trimmed, "{") {
		var single tx.Instruction
		if err := json.Unmarshal([]byte(trimmed), &single); err != nil {
			return nil, fmt.Errorf("decode instruction: %w", err)
		}
		return []tx.Instruction{single}, nil
	}
	var list []tx.Instruction
	if err := json.Unmarshal([]byte(trimmed), &list); err != nil {
		return nil, fmt.Errorf("decode instructions: %w", err)
	}
	if len(list) == 0 {
		return nil, errors.New("no instructions supplied")
	}
	return list, nil
}

func lendingOperations() []string {
	var names []string
	for tag := poollend.TagContribute; tag <= poollend.TagCloseLoanRecord; tag++ {
		names = append(names, tag.String())
	}
	return names
}

func recordSize(kind string) (uint64, error) {
	switch kind {
	case "token":
		return token.AccountSize, nil
	case "ledger":
		return poollend.LenderLedgerSize, nil
	case "loan":
		return poollend.LoanRecordSize, nil
	case "borrower":
		return poollend.BorrowerRecordSize, nil
	case "guarantor":
		return poollend.GuarantorRecordSize, nil
	case "airdrop-counter":
		return poollend.AirdropCounterSize, nil
	}
	return 0, fmt.Errorf("unknown record kind %q", kind)
}

func keyFlag(cmd *cobra.Command, name string) (crypto.Key, error) {
	value, _ := cmd.Flags().GetString(name)
	if strings.TrimSpace(value) == "" {
		return crypto.Key{}, fmt.Errorf("--%s is required", name)
	}
	key, err := crypto.DecodeKey(value)
	if err != nil {
		return crypto.Key{}, fmt.Errorf("--%s: %w", name, err)
	}
	return key, nil
}

func keyFlags(cmd *cobra.Command, names ...string) ([]crypto.Key, error) {
	keys := make([]crypto.Key, len(names))
	for i, name := range names {
		key, err := keyFlag(cmd, name)
		if err != nil {
			return nil, err
		}
		keys[i] = key
	}
	return keys, nil
}

func accountsFlag(cmd *cobra.Command, name string) ([]crypto.Key, error) {
	value, _ := cmd.Flags().GetString(name)
	var keys []crypto.Key
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, err := crypto.DecodeKey(part)
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", name, err)
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("--%s is required", name)
	}
	return keys, nil
}

func printInstruction(cmd *cobra.Command, ins tx.Instruction) error {
	return printJSON(cmd.OutOrStdout(), ins)
}
