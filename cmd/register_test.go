package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/darp-registry/darp/client"
	"github.com/darp-registry/darp/pkg/testhelpers"
	"github.com/darp-registry/darp/pkg/types"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterCommandStructure(t *testing.T) {
	testhelpers.AssertEqual(t, "register", registerMCPServerCmd.Use)
	testhelpers.AssertNotNil(t, registerMCPServerCmd.RunE)
	testhelpers.TestCommandAnnotations(t, registerMCPServerCmd.Annotations, []testhelpers.CommandAnnotationTest{
		{Key: "group", Expected: string(subCommandGroupBasic)},
		{Key: "order", Expected: "2"},
	})

	for _, name := range []string{"name", "url", "description", "logo", "transport", "conf"} {
		f := registerMCPServerCmd.Flags().Lookup(name)
		testhelpers.AssertNotNil(t, f)
		testhelpers.AssertTrue(t, len(f.Usage) > 0, "flag "+name+" should have usage description")
	}
	testhelpers.AssertEqual(t, "c", registerMCPServerCmd.Flags().Lookup("conf").Shorthand)
	testhelpers.AssertEqual(t, "sse", registerMCPServerCmd.Flags().Lookup("transport").DefValue)
}

func TestReadServerConfig(t *testing.T) {
	orig := fs
	t.Cleanup(func() { fs = orig })
	fs = afero.NewMemMapFs()

	yamlConf := "name: calculator\n" +
		"description: basic arithmetic\n" +
		"url: http://127.0.0.1:9000/mcp\n" +
		"transport: streamable_http\n"
	require.NoError(t, afero.WriteFile(fs, "/conf/calc.yaml", []byte(yamlConf), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/conf/calc.json", []byte(`{"name":"calc","url":"http://x/sse"}`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/conf/broken.yaml", []byte("name: [unclosed"), 0o644))

	t.Run("yaml", func(t *testing.T) {
		in, err := readServerConfig("/conf/calc.yaml")
		require.NoError(t, err)
		assert.Equal(t, &types.CreateServerInput{
			Name:        "calculator",
			Description: "basic arithmetic",
			URL:         "http://127.0.0.1:9000/mcp",
			Transport:   "streamable_http",
		}, in)
	})

	t.Run("json is valid yaml", func(t *testing.T) {
		in, err := readServerConfig("/conf/calc.json")
		require.NoError(t, err)
		assert.Equal(t, "calc", in.Name)
		assert.Equal(t, "http://x/sse", in.URL)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := readServerConfig("/conf/nope.yaml")
		assert.ErrorContains(t, err, "failed to read config file /conf/nope.yaml")
	})

	t.Run("malformed file", func(t *testing.T) {
		_, err := readServerConfig("/conf/broken.yaml")
		assert.ErrorContains(t, err, "failed to parse config file")
	})
}

func TestRunRegisterFromConfigFile(t *testing.T) {
	origFs, origClient, origPath := fs, apiClient, registerCmdServerConfigFilePath
	t.Cleanup(func() { fs, apiClient, registerCmdServerConfigFilePath = origFs, origClient, origPath })

	fs = afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "calc.yaml", []byte("name: calc\nurl: http://x/sse\n"), 0o644))
	registerCmdServerConfigFilePath = "calc.yaml"

	var received types.CreateServerInput
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(types.ServerWithTools{
			Server: types.Server{ID: 4, Name: received.Name, URL: received.URL},
			Tools:  []types.Tool{{Name: "add", Description: "Add two numbers"}},
		})
	}))
	defer srv.Close()
	apiClient = client.NewClient(srv.URL, "", srv.Client())

	var out bytes.Buffer
	registerMCPServerCmd.SetOut(&out)
	t.Cleanup(func() { registerMCPServerCmd.SetOut(nil) })

	require.NoError(t, runRegisterMCPServer(registerMCPServerCmd, nil))
	assert.Equal(t, "calc", received.Name)
	assert.Contains(t, out.String(), "Server calc registered successfully with id 4")
	assert.Contains(t, out.String(), "1. add: Add two numbers")
}

func TestRunRegisterRequiresNameAndURL(t *testing.T) {
	origPath, origName, origURL := registerCmdServerConfigFilePath, registerCmdServerName, registerCmdServerURL
	t.Cleanup(func() {
		registerCmdServerConfigFilePath, registerCmdServerName, registerCmdServerURL = origPath, origName, origURL
	})
	registerCmdServerConfigFilePath = ""

	registerCmdServerName, registerCmdServerURL = "", ""
	testhelpers.AssertError(t, runRegisterMCPServer(registerMCPServerCmd, nil))

	registerCmdServerName = "calc"
	err := runRegisterMCPServer(registerMCPServerCmd, nil)
	assert.EqualError(t, err, "--url is required")
}
