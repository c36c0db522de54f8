// Package cmd implements the darp command line: the registry server and a client for its API.
package cmd

import (
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/darp-registry/darp/client"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

type subCommandGroup string

const (
	subCommandGroupBasic    subCommandGroup = "basic"
	subCommandGroupAdvanced subCommandGroup = "advanced"
)

const (
	RegistryURLEnvVar  = "DARP_REGISTRY_URL"
	RegistryURLDefault = "http://127.0.0.1:8080"

	AccessTokenEnvVar = "DARP_ACCESS_TOKEN"
)

var (
	registryServerURL string
	accessToken       string

	// apiClient is the registry client shared by the client subcommands
	apiClient *client.Client

	// fs is the filesystem config files are read from, replaced in tests
	fs = afero.NewOsFs()
)

var rootCmd = &cobra.Command{
	Use:   "darp",
	Short: "darp is a registry and router for MCP servers",
	Long: "darp keeps a catalog of MCP servers and the tools they expose.\n" +
		"It finds the servers relevant to a request and can fulfil requests end-to-end " +
		"by letting an LLM call the tools of the whole catalog.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		apiClient = client.NewClient(registryServerURL, accessToken, &http.Client{Timeout: 5 * time.Minute})
	},
}

func init() {
	defaultURL := os.Getenv(RegistryURLEnvVar)
	if defaultURL == "" {
		defaultURL = RegistryURLDefault
	}
	rootCmd.PersistentFlags().StringVar(
		&registryServerURL,
		"registry",
		defaultURL,
		"Base URL of the darp registry server (env "+RegistryURLEnvVar+")",
	)
	rootCmd.PersistentFlags().StringVar(
		&accessToken,
		"access-token",
		os.Getenv(AccessTokenEnvVar),
		"Bearer token sent to the registry, when it sits behind an authenticating proxy (env "+AccessTokenEnvVar+")",
	)

	rootCmd.SetUsageTemplate(usageTemplate)
	cobra.AddTemplateFunc("groupedCommands", groupedCommands)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// groupedCommands returns the available subcommands of group, sorted by their "order" annotation.
func groupedCommands(cmd *cobra.Command, group string) []*cobra.Command {
	var out []*cobra.Command
	for _, c := range cmd.Commands() {
		if c.IsAvailableCommand() && c.Annotations["group"] == group {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		oi, _ := strconv.Atoi(out[i].Annotations["order"])
		oj, _ := strconv.Atoi(out[j].Annotations["order"])
		return oi < oj
	})
	return out
}

const usageTemplate = `Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if and .HasAvailableSubCommands (not .HasParent)}}

Basic Commands:{{range groupedCommands . "basic"}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}

Advanced Commands:{{range groupedCommands . "advanced"}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{else if .HasAvailableSubCommands}}

Available Commands:{{range .Commands}}{{if .IsAvailableCommand}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableSubCommands}}

Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`

// parseIDs converts command arguments into server ids.
func parseIDs(args []string) ([]uint, error) {
	ids := make([]uint, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseUint(strings.TrimSpace(a), 10, 0)
		if err != nil || id == 0 {
			return nil, &invalidIDError{raw: a}
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

type invalidIDError struct {
	raw string
}

func (e *invalidIDError) Error() string {
	return "invalid server id '" + e.raw + "', must be a positive integer"
}
