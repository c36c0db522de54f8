package cmd

import (
	"fmt"

	"github.com/darp-registry/darp/pkg/types"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	registerCmdServerName        string
	registerCmdServerURL         string
	registerCmdServerDescription string
	registerCmdServerLogo        string
	registerCmdServerTransport   string

	registerCmdServerConfigFilePath string
)

var registerMCPServerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register an MCP Server",
	Long: "Register an MCP server with the registry.\n" +
		"The registry connects to the server, discovers its tools and stores them.\n" +
		"Registration fails if the server is unreachable or if a server with the same name or url already exists.\n\n" +
		"The server can be described with flags or with a YAML configuration file:\n\n" +
		"    name: calculator\n" +
		"    description: basic arithmetic\n" +
		"    url: http://127.0.0.1:9000/sse\n" +
		"    transport: sse\n",
	RunE: runRegisterMCPServer,
	Annotations: map[string]string{
		"group": string(subCommandGroupBasic),
		"order": "2",
	},
}

func init() {
	registerMCPServerCmd.Flags().StringVar(&registerCmdServerName, "name", "", "MCP server name")
	registerMCPServerCmd.Flags().StringVar(&registerCmdServerURL, "url", "", "URL of the MCP server")
	registerMCPServerCmd.Flags().StringVar(
		&registerCmdServerDescription,
		"description",
		"",
		"Description of what the MCP server can do. Search relies on it, so be specific.",
	)
	registerMCPServerCmd.Flags().StringVar(&registerCmdServerLogo, "logo", "", "URL of the server's logo")
	registerMCPServerCmd.Flags().StringVar(
		&registerCmdServerTransport,
		"transport",
		string(types.TransportSSE),
		fmt.Sprintf("Transport of the MCP server ('%s' or '%s')", types.TransportSSE, types.TransportStreamableHTTP),
	)
	registerMCPServerCmd.Flags().StringVarP(
		&registerCmdServerConfigFilePath,
		"conf",
		"c",
		"",
		"Path to a YAML configuration file describing the MCP server.\n"+
			"If supplied, the other flags are ignored.",
	)

	rootCmd.AddCommand(registerMCPServerCmd)
}

// readServerConfig reads a server definition from a YAML (or JSON) file.
func readServerConfig(filePath string) (*types.CreateServerInput, error) {
	var input types.CreateServerInput

	data, err := afero.ReadFile(fs, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}
	if err := yaml.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &input, nil
}

func runRegisterMCPServer(cmd *cobra.Command, args []string) error {
	var input *types.CreateServerInput

	if registerCmdServerConfigFilePath != "" {
		var err error
		input, err = readServerConfig(registerCmdServerConfigFilePath)
		if err != nil {
			return err
		}
	} else {
		if registerCmdServerName == "" {
			return fmt.Errorf("either supply a configuration file or set --name")
		}
		if registerCmdServerURL == "" {
			return fmt.Errorf("--url is required")
		}
		input = &types.CreateServerInput{
			Name:        registerCmdServerName,
			URL:         registerCmdServerURL,
			Description: registerCmdServerDescription,
			Logo:        registerCmdServerLogo,
			Transport:   registerCmdServerTransport,
		}
	}

	s, err := apiClient.RegisterServer(input)
	if err != nil {
		return fmt.Errorf("failed to register server: %w", err)
	}

	cmd.Printf("Server %s registered successfully with id %d\n", s.Name, s.ID)
	if len(s.Tools) == 0 {
		cmd.Println("The server did not advertise any tools.")
		return nil
	}
	cmd.Println()
	cmd.Println("The following tools are now available from this server:")
	for i, t := range s.Tools {
		cmd.Printf("%d. %s: %s\n", i+1, t.Name, t.Description)
	}
	cmd.Println()

	return nil
}
