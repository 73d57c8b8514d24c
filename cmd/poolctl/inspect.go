package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"pooledger/core/tx"
	"pooledger/crypto"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Query ledger state from the node",
	}

	byAddress := func(use, short, route string) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <address>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				addr, err := crypto.DecodeKey(args[0])
				if err != nil {
					return fmt.Errorf("address: %w", err)
				}
				return fetch(cmd, route+"/"+url.PathEscape(addr.String()))
			},
		}
	}

	lender := &cobra.Command{
		Use:   "lender <ledger> <lender-id>",
		Short: "Show one lender slot of a lender ledger",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := crypto.DecodeKey(args[0])
			if err != nil {
				return fmt.Errorf("ledger: %w", err)
			}
			id, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("lender id: %w", err)
			}
			return fetch(cmd, fmt.Sprintf("/v1/ledgers/%s/lenders/%d", url.PathEscape(addr.String()), id))
		},
	}

	transaction := &cobra.Command{
		Use:   "tx <hash>",
		Short: "Show the receipt of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := tx.ParseHash(args[0])
			if err != nil {
				return err
			}
			return fetch(cmd, "/v1/transactions/"+tx.FormatHash(hash))
		},
	}

	events := &cobra.Command{
		Use:   "events",
		Short: "List journaled events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			if v, _ := cmd.Flags().GetString("type"); v != "" {
				query.Set("type", v)
			}
			if v, _ := cmd.Flags().GetString("tx"); v != "" {
				query.Set("tx", v)
			}
			if v, _ := cmd.Flags().GetInt("limit"); v > 0 {
				query.Set("limit", strconv.Itoa(v))
			}
			path := "/v1/events"
			if len(query) > 0 {
				path += "?" + query.Encode()
			}
			return fetch(cmd, path)
		},
	}
	events.Flags().String("type", "", "Event type filter")
	events.Flags().String("tx", "", "Transaction hash filter")
	events.Flags().Int("limit", 0, "Maximum events to return")

	cmd.AddCommand(
		byAddress("record", "Show a raw record", "/v1/records"),
		byAddress("token", "Show a token account", "/v1/tokens"),
		byAddress("loan", "Show a loan record", "/v1/loans"),
		byAddress("borrower", "Show a borrower record", "/v1/borrowers"),
		byAddress("guarantor", "Show a guarantor record", "/v1/guarantors"),
		lender,
		transaction,
		events,
	)
	return cmd
}

func fetch(cmd *cobra.Command, path string) error {
	status, body, err := clientFor(cmd).get(cmd.Context(), path)
	if err != nil {
		return err
	}
	if err := printRaw(cmd.OutOrStdout(), body); err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("node returned HTTP %d", status)
	}
	return nil
}
