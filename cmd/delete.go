package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteServerCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove an MCP server from the registry",
	Long:  "Remove an MCP server and all of its tools from the registry.",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteServer,
	Annotations: map[string]string{
		"group": string(subCommandGroupAdvanced),
		"order": "2",
	},
}

func init() {
	rootCmd.AddCommand(deleteServerCmd)
}

func runDeleteServer(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	if err := apiClient.DeleteServer(ids[0]); err != nil {
		return fmt.Errorf("failed to delete server %d: %w", ids[0], err)
	}
	cmd.Printf("Server %d deleted\n", ids[0])
	return nil
}
