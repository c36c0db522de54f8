package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var getServersCmd = &cobra.Command{
	Use:   "get <id>...",
	Short: "Show one or more MCP servers and their tools",
	Long: "Show the MCP servers with the given ids along with the tools they advertise.\n" +
		"The command fails if any of the ids does not exist.",
	Args: cobra.MinimumNArgs(1),
	RunE: runGetServers,
	Annotations: map[string]string{
		"group": string(subCommandGroupBasic),
		"order": "4",
	},
}

func init() {
	rootCmd.AddCommand(getServersCmd)
}

func runGetServers(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	servers, err := apiClient.GetServers(ids)
	if err != nil {
		return fmt.Errorf("failed to get servers: %w", err)
	}

	for _, s := range servers {
		cmd.Printf("[%d] %s\n", s.ID, s.Name)
		cmd.Printf("url:       %s\n", s.URL)
		cmd.Printf("transport: %s\n", s.Transport)
		if s.Description != "" {
			cmd.Printf("about:     %s\n", s.Description)
		}
		if s.Logo != "" {
			cmd.Printf("logo:      %s\n", s.Logo)
		}
		cmd.Println("tools:")
		if len(s.Tools) == 0 {
			cmd.Println("  (none)")
		}
		for _, t := range s.Tools {
			cmd.Printf("  - %s: %s\n", t.Name, t.Description)
		}
		cmd.Println()
	}

	return nil
}
