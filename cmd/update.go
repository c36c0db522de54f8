package cmd

import (
	"fmt"

	"github.com/darp-registry/darp/pkg/types"
	"github.com/spf13/cobra"
)

var updateServerCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a registered MCP server",
	Long: "Update an existing MCP server.\n" +
		"Only the fields passed as flags are changed.\n" +
		"The registry re-discovers the server's tools and replaces the stored ones.\n" +
		"If the server cannot be reached, nothing is changed.",
	Args: cobra.ExactArgs(1),
	RunE: runUpdateServer,
	Annotations: map[string]string{
		"group": string(subCommandGroupAdvanced),
		"order": "1",
	},
}

var (
	updateCmdServerName        string
	updateCmdServerURL         string
	updateCmdServerDescription string
	updateCmdServerLogo        string
	updateCmdServerTransport   string
)

func init() {
	updateServerCmd.Flags().StringVar(&updateCmdServerName, "name", "", "New name of the server")
	updateServerCmd.Flags().StringVar(&updateCmdServerURL, "url", "", "New URL of the server")
	updateServerCmd.Flags().StringVar(&updateCmdServerDescription, "description", "", "New description of the server")
	updateServerCmd.Flags().StringVar(&updateCmdServerLogo, "logo", "", "New logo URL of the server")
	updateServerCmd.Flags().StringVar(
		&updateCmdServerTransport,
		"transport",
		"",
		fmt.Sprintf("New transport of the server ('%s' or '%s')", types.TransportSSE, types.TransportStreamableHTTP),
	)

	rootCmd.AddCommand(updateServerCmd)
}

func runUpdateServer(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	input := &types.UpdateServerInput{
		Name:        updateCmdServerName,
		URL:         updateCmdServerURL,
		Description: updateCmdServerDescription,
		Logo:        updateCmdServerLogo,
		Transport:   updateCmdServerTransport,
	}
	if input.IsEmpty() {
		return fmt.Errorf("nothing to update, pass at least one of --name, --url, --description, --logo, --transport")
	}

	s, err := apiClient.UpdateServer(ids[0], input)
	if err != nil {
		return fmt.Errorf("failed to update server %d: %w", ids[0], err)
	}

	cmd.Printf("Server %s (id %d) updated successfully\n", s.Name, s.ID)
	cmd.Printf("It now advertises %d tool(s)\n", len(s.Tools))
	return nil
}
