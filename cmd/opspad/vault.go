package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dustingolding/OpsPad/internal/vault"
)

// Vault commands talk to the OS keychain directly rather than going through
// the daemon, so secrets work even when opspad serve is not running.
func newVaultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Manage secrets in the OS keychain",
	}

	cmd.AddCommand(newVaultSetCmd())
	cmd.AddCommand(newVaultGetCmd())
	cmd.AddCommand(newVaultRemoveCmd())

	return cmd
}

func newVaultSetCmd() *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "set <key> [value]",
		Short: "Store a secret",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var secret []byte
			switch {
			case fromStdin:
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("failed to read secret from stdin: %w", err)
				}
				secret = []byte(strings.TrimRight(string(data), "\r\n"))
			case len(args) == 2:
				secret = []byte(args[1])
			default:
				return fmt.Errorf("provide a value argument or --stdin")
			}

			if err := vault.NewKeyring().Set(args[0], secret); err != nil {
				return err
			}
			fmt.Printf("Stored secret %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "Read the secret from standard input")
	return cmd
}

func newVaultGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := vault.NewKeyring().Get(args[0])
			if err != nil {
				return err
			}
			if secret == nil {
				return fmt.Errorf("no secret stored under %q", args[0])
			}
			fmt.Println(string(secret))
			return nil
		},
	}
}

func newVaultRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <key>",
		Short: "Remove a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := vault.NewKeyring().Delete(args[0]); err != nil {
				return err
			}
			fmt.Printf("Removed secret %s\n", args[0])
			return nil
		},
	}
}
