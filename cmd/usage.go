package cmd

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/darp-registry/darp/pkg/types"
	"github.com/spf13/cobra"
)

var usageCmd = &cobra.Command{
	Use:   "usage <server-id> <tool>",
	Short: "Get usage information for a MCP tool",
	Args:  cobra.ExactArgs(2),
	RunE:  runGetToolUsage,
	Annotations: map[string]string{
		"group": string(subCommandGroupAdvanced),
		"order": "3",
	},
}

func init() {
	rootCmd.AddCommand(usageCmd)
}

// toolInputSchema is the part of a tool's JSON schema the usage command prints.
type toolInputSchema struct {
	Properties map[string]any `json:"properties"`
	Required   []string       `json:"required"`
}

func runGetToolUsage(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args[:1])
	if err != nil {
		return err
	}
	s, err := apiClient.GetServer(ids[0])
	if err != nil {
		return fmt.Errorf("failed to get server %d: %w", ids[0], err)
	}

	idx := slices.IndexFunc(s.Tools, func(t types.Tool) bool { return t.Name == args[1] })
	if idx < 0 {
		return fmt.Errorf("server %s has no tool named '%s'", s.Name, args[1])
	}
	t := s.Tools[idx]

	cmd.Println(t.Name)
	cmd.Println(t.Description)

	var schema toolInputSchema
	if len(t.InputSchema) > 0 {
		if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
			return fmt.Errorf("tool '%s' has an unreadable input schema: %w", t.Name, err)
		}
	}
	if len(schema.Properties) == 0 {
		cmd.Println("This tool does not require any input parameters.")
		return nil
	}

	names := make([]string, 0, len(schema.Properties))
	for k := range schema.Properties {
		names = append(names, k)
	}
	sort.Strings(names)

	cmd.Println()
	cmd.Println("Input Parameters:")
	for _, k := range names {
		requiredOrOptional := "optional"
		if slices.Contains(schema.Required, k) {
			requiredOrOptional = "required"
		}

		boundary := strings.Repeat("=", len(k)+len(requiredOrOptional)+20)

		cmd.Println(boundary)
		cmd.Printf("%s (%s)\n", k, requiredOrOptional)

		j, err := json.MarshalIndent(schema.Properties[k], "", "  ")
		if err != nil {
			// Simply print the raw object if we fail to marshal it
			cmd.Println(schema.Properties[k])
		} else {
			cmd.Println(string(j))
		}
		cmd.Println(boundary)

		cmd.Println()
	}

	return nil
}
