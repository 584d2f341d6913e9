package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/biomarker-assessment-engine/internal/setup"
)

func newSetupCmd() *cobra.Command {
	var clientConfig string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register the MCP server with a desktop MCP client",
	}
	cmd.PersistentFlags().StringVar(&clientConfig, "client-config", "", "client configuration file (default: the desktop client's per-OS location)")

	var binary, dataDir string
	register := &cobra.Command{
		Use:   "register",
		Short: "Add or replace the engine entry in the client configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := setup.Register(setup.Options{
				ConfigPath: clientConfig,
				BinaryPath: binary,
				DataDir:    dataDir,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s in %s\n", setup.ServerName, path)
			return nil
		},
	}
	register.Flags().StringVar(&binary, "binary", "", "path to the mcp-server binary (default: next to this executable or on PATH)")
	register.Flags().StringVar(&dataDir, "server-data-dir", "", "data directory passed to the server")

	unregister := &cobra.Command{
		Use:   "unregister",
		Short: "Remove the engine entry from the client configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := setup.Unregister(clientConfig)
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to remove")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", setup.ServerName)
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the current registration",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := setup.GetStatus(clientConfig)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}

	cmd.AddCommand(register, unregister, status)
	return cmd
}
