package cmd

import (
	"fmt"

	"github.com/darp-registry/darp/pkg/types"
	"github.com/spf13/cobra"
)

var (
	listCmdPage int
	listCmdSize int
)

var listServersCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered MCP servers",
	Long:  "List the MCP servers in the catalog, one page at a time, ordered by id.",
	Args:  cobra.NoArgs,
	RunE:  runListServers,
	Annotations: map[string]string{
		"group": string(subCommandGroupBasic),
		"order": "3",
	},
}

func init() {
	listServersCmd.Flags().IntVar(&listCmdPage, "page", 1, "Page number, starting at 1")
	listServersCmd.Flags().IntVar(&listCmdSize, "size", 50, "Number of servers per page (max 100)")

	rootCmd.AddCommand(listServersCmd)
}

func runListServers(cmd *cobra.Command, args []string) error {
	page, err := apiClient.ListServers(listCmdPage, listCmdSize)
	if err != nil {
		return fmt.Errorf("failed to list servers: %w", err)
	}

	if len(page.Items) == 0 {
		if page.Total == 0 {
			cmd.Println("There are no MCP servers in the registry")
		} else {
			cmd.Printf("Page %d is empty, there are %d page(s)\n", page.Page, page.Pages)
		}
		return nil
	}

	for i, s := range page.Items {
		printServer(cmd, i+1, s)
	}
	cmd.Printf("Page %d of %d (%d servers in total)\n", page.Page, page.Pages, page.Total)

	return nil
}

func printServer(cmd *cobra.Command, n int, s *types.ServerWithTools) {
	cmd.Printf("%d. [%d] %s\n", n, s.ID, s.Name)
	cmd.Printf("   %s (%s)\n", s.URL, s.Transport)
	if s.Description != "" {
		cmd.Println("   " + s.Description)
	}
	cmd.Printf("   %d tool(s)\n", len(s.Tools))
	cmd.Println()
}
