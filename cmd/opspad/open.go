package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dustingolding/OpsPad/internal/config"
)

func newOpenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open a terminal session on the daemon",
	}

	cmd.AddCommand(newOpenLocalCmd())
	cmd.AddCommand(newOpenSSHCmd())

	return cmd
}

func newOpenLocalCmd() *cobra.Command {
	var environmentTag string

	cmd := &cobra.Command{
		Use:   "local",
		Short: "Open a local shell session and print its id",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			body := map[string]string{}
			if environmentTag != "" {
				body["environmentTag"] = environmentTag
			}

			var resp struct {
				SessionID string `json:"sessionId"`
			}
			if err := newAPIClient(cfg).do(http.MethodPost, "/api/terminal/local", body, &resp); err != nil {
				return err
			}

			fmt.Println(resp.SessionID)
			return nil
		},
	}

	cmd.Flags().StringVar(&environmentTag, "env", "", "Environment tag (default LOCAL)")
	return cmd
}

func newOpenSSHCmd() *cobra.Command {
	var hostID string
	var identityFile string
	var environmentTag string
	var port uint16

	cmd := &cobra.Command{
		Use:   "ssh [user@host]",
		Short: "Open an ssh session and print its id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			body := map[string]interface{}{}
			switch {
			case hostID != "":
				body["hostId"] = hostID
			case len(args) == 1:
				user, target := splitTarget(args[0])
				body["user"] = user
				body["host"] = target
				if port != 0 {
					body["port"] = port
				}
				if identityFile != "" {
					body["identityFile"] = identityFile
				}
			default:
				return fmt.Errorf("either a user@host target or --host-id is required")
			}
			if environmentTag != "" {
				body["environmentTag"] = environmentTag
			}

			var resp struct {
				SessionID string `json:"sessionId"`
			}
			if err := newAPIClient(cfg).do(http.MethodPost, "/api/terminal/ssh", body, &resp); err != nil {
				return err
			}

			fmt.Println(resp.SessionID)
			return nil
		},
	}

	cmd.Flags().StringVar(&hostID, "host-id", "", "Open a saved host by id")
	cmd.Flags().Uint16Var(&port, "port", 0, "SSH port (default 22)")
	cmd.Flags().StringVar(&identityFile, "identity", "", "Identity file passed to ssh -i")
	cmd.Flags().StringVar(&environmentTag, "env", "", "Environment tag (default UNKNOWN)")
	return cmd
}

// splitTarget splits "user@host" into its parts; a bare host means the
// daemon lets ssh pick the current user.
func splitTarget(target string) (user, host string) {
	if i := strings.LastIndex(target, "@"); i >= 0 {
		return target[:i], target[i+1:]
	}
	return "", target
}
