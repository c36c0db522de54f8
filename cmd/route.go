package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/darp-registry/darp/pkg/types"
	"github.com/spf13/cobra"
)

const (
	routeFormatText = "text"
	routeFormatJSON = "json"
)

var (
	routeCmdFormat  string
	routeCmdVerbose bool
)

var routeCmd = &cobra.Command{
	Use:   "route <request>",
	Short: "Fulfil a request with the tools of the registered servers",
	Long: "Hand a free-text request to the registry's routing tool.\n" +
		"The registry lets an LLM call the tools of every registered server until it can answer.\n" +
		"By default only the final answer is printed, use --verbose to see every tool call.",
	Args: cobra.ExactArgs(1),
	RunE: runRoute,
	Annotations: map[string]string{
		"group": string(subCommandGroupBasic),
		"order": "6",
	},
}

func init() {
	routeCmd.Flags().StringVar(
		&routeCmdFormat,
		"format",
		routeFormatText,
		fmt.Sprintf("Output format: %s or %s", routeFormatText, routeFormatJSON),
	)
	routeCmd.Flags().BoolVarP(&routeCmdVerbose, "verbose", "v", false, "Print the whole conversation")

	rootCmd.AddCommand(routeCmd)
}

func runRoute(cmd *cobra.Command, args []string) error {
	if routeCmdFormat != routeFormatText && routeCmdFormat != routeFormatJSON {
		return fmt.Errorf("unsupported format '%s'", routeCmdFormat)
	}

	conversation, routeErr := apiClient.RouteViaMCP(cmd.Context(), args[0])
	if len(conversation) == 0 {
		if routeErr != nil {
			return routeErr
		}
		return fmt.Errorf("the registry returned an empty conversation")
	}

	if routeCmdFormat == routeFormatJSON {
		b, err := json.MarshalIndent(&types.RouteResponse{Conversation: conversation}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode conversation: %w", err)
		}
		cmd.Println(string(b))
		return routeErr
	}

	if routeCmdVerbose {
		printConversation(cmd, conversation)
	} else if last := conversation[len(conversation)-1]; last.Role == types.RoleAssistant {
		cmd.Println(last.Content)
	}
	return routeErr
}

func printConversation(cmd *cobra.Command, conversation []types.Message) {
	for _, m := range conversation {
		switch m.Role {
		case types.RoleUser:
			cmd.Printf("user> %s\n", m.Content)
		case types.RoleAssistant:
			if m.Content != "" {
				cmd.Printf("assistant> %s\n", m.Content)
			}
			for _, tc := range m.ToolCalls {
				cmd.Printf("assistant> call %s %s\n", tc.Name, string(tc.Arguments))
			}
		case types.RoleTool:
			status := "ok"
			if m.IsError {
				status = "error"
			}
			cmd.Printf("tool %s (%s)> %s\n", m.ToolName, status, strings.TrimSpace(m.Content))
		}
	}
}
