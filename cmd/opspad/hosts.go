package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/dustingolding/OpsPad/internal/config"
	"github.com/dustingolding/OpsPad/internal/host"
)

func newHostsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hosts",
		Short: "Manage saved ssh hosts",
	}

	cmd.AddCommand(newHostsListCmd())
	cmd.AddCommand(newHostsAddCmd())
	cmd.AddCommand(newHostsRemoveCmd())

	return cmd
}

func newHostsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved hosts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			var hosts []host.Host
			if err := newAPIClient(cfg).do(http.MethodGet, "/api/hosts", nil, &hosts); err != nil {
				return err
			}

			if len(hosts) == 0 {
				fmt.Println("No hosts saved.")
				return nil
			}

			for _, h := range hosts {
				target := h.Hostname
				if h.Username != "" {
					target = h.Username + "@" + h.Hostname
				}
				fmt.Printf("%s  %-20s [%s] %s:%d\n", h.ID, h.Label, h.EnvironmentTag, target, h.Port)
			}
			return nil
		},
	}
}

func newHostsAddCmd() *cobra.Command {
	var hostname string
	var username string
	var environmentTag string
	var identityFile string
	var port uint16

	cmd := &cobra.Command{
		Use:   "add <label>",
		Short: "Save a new host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			in := host.Create{
				Label:          args[0],
				Hostname:       hostname,
				Username:       username,
				EnvironmentTag: environmentTag,
			}
			if port != 0 {
				in.Port = &port
			}
			if identityFile != "" {
				in.IdentityFile = &identityFile
			}

			var created host.Host
			if err := newAPIClient(cfg).do(http.MethodPost, "/api/hosts", in, &created); err != nil {
				return err
			}

			fmt.Printf("Added host %s (%s)\n", created.Label, created.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&hostname, "hostname", "", "Host to connect to (required)")
	cmd.Flags().StringVar(&username, "user", "", "Login user")
	cmd.Flags().Uint16Var(&port, "port", 0, "SSH port (default 22)")
	cmd.Flags().StringVar(&environmentTag, "env", "UNKNOWN", "Environment tag (DEV, STAGE, PROD, ...)")
	cmd.Flags().StringVar(&identityFile, "identity", "", "Identity file passed to ssh -i")
	cmd.MarkFlagRequired("hostname")

	return cmd
}

func newHostsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a saved host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			if err := newAPIClient(cfg).do(http.MethodDelete, "/api/hosts/"+args[0], nil, nil); err != nil {
				return err
			}

			fmt.Printf("Removed host %s\n", args[0])
			return nil
		},
	}
}
