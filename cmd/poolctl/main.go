package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

const (
	passEnv    = "POOLCTL_PASS"
	nodeEnv    = "POOLCTL_NODE"
	tokenEnv   = "POOLCTL_TOKEN"
	defaultURL = "http://127.0.0.1:8645"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "poolctl",
		Short:         "Operate a pooledger node",
		Long:          `Generate keys, derive record addresses, build and sign instructions, and inspect ledger state.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().String("lending-seed", "pooledger/poollend", "Seed of the lending program id")
	root.PersistentFlags().String("node", envOr(nodeEnv, defaultURL), "Base URL of the poold API")

	root.AddCommand(
		newKeygenCmd(),
		newAddressCmd(),
		newProgramsCmd(),
		newTxCmd(),
		newInspectCmd(),
	)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w\nrun '%s --help' for usage", err, cmd.CommandPath())
	})
	return root
}

func envOr(name, fallback string) string {
	if value, ok := os.LookupEnv(name); ok && value != "" {
		return value
	}
	return fallback
}
