package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

const (
	searchFormatNames    = "names"
	searchFormatFulltext = "fulltext"
	searchFormatJSON     = "json"
)

var searchCmdFormat string

var searchServersCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find the MCP servers that can help with a request",
	Long: "Ask the registry which MCP servers can help with a free-text request.\n" +
		"Servers are printed most relevant first.\n\n" +
		"Output formats:\n" +
		"  names     one server name per line\n" +
		"  fulltext  every server with its url and tools\n" +
		"  json      the raw response of the registry",
	Args: cobra.ExactArgs(1),
	RunE: runSearchServers,
	Annotations: map[string]string{
		"group": string(subCommandGroupBasic),
		"order": "5",
	},
}

func init() {
	searchServersCmd.Flags().StringVar(
		&searchCmdFormat,
		"format",
		searchFormatNames,
		fmt.Sprintf("Output format: %s, %s or %s", searchFormatNames, searchFormatFulltext, searchFormatJSON),
	)

	rootCmd.AddCommand(searchServersCmd)
}

func runSearchServers(cmd *cobra.Command, args []string) error {
	switch searchCmdFormat {
	case searchFormatNames, searchFormatFulltext, searchFormatJSON:
	default:
		return fmt.Errorf("unsupported format '%s'", searchCmdFormat)
	}

	servers, err := apiClient.SearchServers(args[0])
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	switch searchCmdFormat {
	case searchFormatJSON:
		b, err := json.MarshalIndent(servers, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode servers: %w", err)
		}
		cmd.Println(string(b))
	case searchFormatFulltext:
		if len(servers) == 0 {
			cmd.Println("No registered server can help with this request")
		}
		for i, s := range servers {
			printServer(cmd, i+1, s)
			for _, t := range s.Tools {
				cmd.Printf("   - %s: %s\n", t.Name, t.Description)
			}
			if len(s.Tools) > 0 {
				cmd.Println()
			}
		}
	default:
		for _, s := range servers {
			cmd.Println(s.Name)
		}
	}
	return nil
}
