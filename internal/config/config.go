// Package config loads the process settings of the darp server from the environment.
package config

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
)

const (
	BindPortEnvVar  = "PORT"
	BindPortDefault = "8080"

	DBUrlEnvVar            = "DATABASE_URL"
	DBPoolSizeEnvVar       = "DB_POOL_SIZE"
	DBMaxOverflowEnvVar    = "DB_MAX_OVERFLOW"
	TelemetryEnabledEnvVar = "OTEL_ENABLED"
)

const (
	PostgresHostEnvVar     = "POSTGRES_HOST"
	PostgresPortEnvVar     = "POSTGRES_PORT"
	PostgresUserEnvVar     = "POSTGRES_USER"
	PostgresPasswordEnvVar = "POSTGRES_PASSWORD"
	PostgresDBEnvVar       = "POSTGRES_DB"
)

const (
	LogDirEnvVar    = "LOG_DIR"
	LogLevelEnvVar  = "LOG_LEVEL"
	LogFormatEnvVar = "LOG_FORMAT"
)

const (
	LLMProviderEnvVar   = "LLM_PROVIDER"
	LLMModelEnvVar      = "LLM_MODEL"
	LLMProxyEnvVar      = "LLM_PROXY"
	LLMTimeoutSecEnvVar = "LLM_TIMEOUT_SEC"
	LLMMaxTokensEnvVar  = "LLM_MAX_TOKENS"

	OpenAIAPIKeyEnvVar     = "OPENAI_API_KEY"
	OpenAIAPIBaseEnvVar    = "OPENAI_API_BASE"
	AnthropicAPIKeyEnvVar  = "ANTHROPIC_API_KEY"
	AnthropicAPIBaseEnvVar = "ANTHROPIC_API_BASE"
)

const (
	// McpServerInitReqTimeoutSecEnvVar bounds the handshake with an upstream MCP server.
	McpServerInitReqTimeoutSecEnvVar = "MCP_SERVER_INIT_REQ_TIMEOUT_SEC"

	// ToolCallTimeoutSecEnvVar bounds a single tool listing or invocation after the handshake.
	ToolCallTimeoutSecEnvVar = "TOOL_CALL_TIMEOUT_SEC"

	RouterMaxTurnsEnvVar            = "ROUTER_MAX_TURNS"
	RouterDispatchConcurrencyEnvVar = "ROUTER_DISPATCH_CONCURRENCY"
)

// LLM providers supported by darp.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

const (
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
)

// Settings holds everything the server needs to start.
// It is built once at startup and handed to the components that need it.
type Settings struct {
	BindPort string

	// DatabaseURL is empty when the default SQLite file should be used.
	DatabaseURL   string
	DBPoolSize    int
	DBMaxOverflow int

	LogDir    string
	LogLevel  string
	LogFormat string

	TelemetryEnabled bool

	LLMProvider  string
	LLMModel     string
	LLMProxy     string
	LLMTimeout   time.Duration
	LLMMaxTokens int

	OpenAIAPIKey     string
	OpenAIAPIBase    string
	AnthropicAPIKey  string
	AnthropicAPIBase string

	McpServerInitReqTimeout time.Duration
	ToolCallTimeout         time.Duration

	RouterMaxTurns            int
	RouterDispatchConcurrency int
}

// Loader reads settings from the environment.
// Fs is used to read the files referenced by <VAR>_FILE variables.
type Loader struct {
	Fs     afero.Fs
	Getenv func(string) string
}

// NewLoader returns a Loader backed by the OS environment and filesystem.
func NewLoader() *Loader {
	return &Loader{Fs: afero.NewOsFs(), Getenv: os.Getenv}
}

// Load reads a .env file from the working directory, if any, then the process environment.
func Load() (*Settings, error) {
	_ = godotenv.Load()
	return NewLoader().Load()
}

// Load builds Settings, applying defaults for unset variables.
func (l *Loader) Load() (*Settings, error) {
	var err error
	s := &Settings{
		BindPort:  l.getOr(BindPortEnvVar, BindPortDefault),
		LogDir:    l.getenv(LogDirEnvVar),
		LogLevel:  l.getOr(LogLevelEnvVar, "info"),
		LogFormat: l.getOr(LogFormatEnvVar, "console"),
		LLMProxy:  l.getenv(LLMProxyEnvVar),

		OpenAIAPIBase:    l.getenv(OpenAIAPIBaseEnvVar),
		AnthropicAPIBase: l.getenv(AnthropicAPIBaseEnvVar),
	}

	if s.DatabaseURL, err = l.databaseURL(); err != nil {
		return nil, err
	}
	if s.DBPoolSize, err = l.positiveInt(DBPoolSizeEnvVar, 50); err != nil {
		return nil, err
	}
	if s.DBMaxOverflow, err = l.nonNegativeInt(DBMaxOverflowEnvVar, 25); err != nil {
		return nil, err
	}
	if s.TelemetryEnabled, err = l.boolean(TelemetryEnabledEnvVar, false); err != nil {
		return nil, err
	}

	s.LLMProvider = strings.ToLower(l.getOr(LLMProviderEnvVar, ProviderOpenAI))
	switch s.LLMProvider {
	case ProviderOpenAI:
		s.LLMModel = l.getOr(LLMModelEnvVar, DefaultOpenAIModel)
	case ProviderAnthropic:
		s.LLMModel = l.getOr(LLMModelEnvVar, DefaultAnthropicModel)
	default:
		return nil, fmt.Errorf(
			"invalid value for %s: '%s', valid values are '%s' and '%s'",
			LLMProviderEnvVar, s.LLMProvider, ProviderOpenAI, ProviderAnthropic,
		)
	}
	if s.LLMProxy != "" {
		if _, err := url.Parse(s.LLMProxy); err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", LLMProxyEnvVar, err)
		}
	}
	if s.OpenAIAPIKey, err = l.getEnvOrFile(OpenAIAPIKeyEnvVar); err != nil {
		return nil, err
	}
	if s.AnthropicAPIKey, err = l.getEnvOrFile(AnthropicAPIKeyEnvVar); err != nil {
		return nil, err
	}

	if s.LLMTimeout, err = l.seconds(LLMTimeoutSecEnvVar, 30); err != nil {
		return nil, err
	}
	if s.LLMMaxTokens, err = l.positiveInt(LLMMaxTokensEnvVar, 1024); err != nil {
		return nil, err
	}
	if s.McpServerInitReqTimeout, err = l.seconds(McpServerInitReqTimeoutSecEnvVar, 10); err != nil {
		return nil, err
	}
	if s.ToolCallTimeout, err = l.seconds(ToolCallTimeoutSecEnvVar, 30); err != nil {
		return nil, err
	}
	if s.RouterMaxTurns, err = l.positiveInt(RouterMaxTurnsEnvVar, 10); err != nil {
		return nil, err
	}
	if s.RouterDispatchConcurrency, err = l.positiveInt(RouterDispatchConcurrencyEnvVar, 4); err != nil {
		return nil, err
	}
	return s, nil
}

// NewLLMHTTPClient builds the HTTP client shared by every call to the text-generation provider.
// It carries the configured proxy and the per-request timeout.
func (s *Settings) NewLLMHTTPClient() (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if s.LLMProxy != "" {
		proxyURL, err := url.Parse(s.LLMProxy)
		if err != nil {
			return nil, fmt.Errorf("invalid llm proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	return &http.Client{Transport: transport, Timeout: s.LLMTimeout}, nil
}

// LLMAPIKey returns the key of the selected provider.
func (s *Settings) LLMAPIKey() string {
	if s.LLMProvider == ProviderAnthropic {
		return s.AnthropicAPIKey
	}
	return s.OpenAIAPIKey
}

// LLMAPIBase returns the base url override of the selected provider, if any.
func (s *Settings) LLMAPIBase() string {
	if s.LLMProvider == ProviderAnthropic {
		return s.AnthropicAPIBase
	}
	return s.OpenAIAPIBase
}

func (l *Loader) getenv(key string) string {
	return strings.TrimSpace(l.Getenv(key))
}

func (l *Loader) getOr(key, def string) string {
	if v := l.getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvOrFile returns the value of the given environment variable.
// If the environment variable is not set, it checks for a corresponding
// _FILE environment variable and reads the value from the file if it exists.
// If both are set, the value of the original environment variable takes precedence.
func (l *Loader) getEnvOrFile(envVar string) (string, error) {
	if val := l.getenv(envVar); val != "" {
		return val, nil
	}

	fileEnvVar := envVar + "_FILE"
	filePath := l.getenv(fileEnvVar)
	if filePath != "" {
		data, err := afero.ReadFile(l.Fs, filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", fileEnvVar, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	return "", nil
}

// databaseURL returns DATABASE_URL, or a Postgres DSN built from the POSTGRES_* variables.
// If neither is set, it returns an empty string and the default SQLite file is used.
func (l *Loader) databaseURL() (string, error) {
	if dsn := l.getenv(DBUrlEnvVar); dsn != "" {
		return dsn, nil
	}
	dsn, ok, err := l.postgresDSN()
	if err != nil {
		return "", fmt.Errorf("failed to get postgres DSN: %w", err)
	}
	if !ok {
		return "", nil
	}
	return dsn, nil
}

// postgresDSN constructs a Postgres DSN from individual Postgres-specific environment variables & files.
// If POSTGRES_HOST is not set, it returns ok=false.
func (l *Loader) postgresDSN() (string, bool, error) {
	host := l.getenv(PostgresHostEnvVar)
	if host == "" {
		return "", false, nil
	}
	port := l.getOr(PostgresPortEnvVar, "5432")

	dbName, err := l.getEnvOrFile(PostgresDBEnvVar)
	if err != nil {
		return "", false, fmt.Errorf("failed to get postgres DB name: %w", err)
	}
	if dbName == "" {
		dbName = "postgres"
	}
	pgUser, err := l.getEnvOrFile(PostgresUserEnvVar)
	if err != nil {
		return "", false, fmt.Errorf("failed to get postgres user: %w", err)
	}
	if pgUser == "" {
		pgUser = "postgres"
	}
	password, err := l.getEnvOrFile(PostgresPasswordEnvVar)
	if err != nil {
		return "", false, fmt.Errorf("failed to get postgres password: %w", err)
	}

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		url.QueryEscape(pgUser),
		url.QueryEscape(password),
		host,
		port,
		url.QueryEscape(dbName),
	)
	return dsn, true, nil
}

func (l *Loader) positiveInt(key string, def int) (int, error) {
	v := l.getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid value for %s: '%s', must be a positive integer", key, v)
	}
	return n, nil
}

func (l *Loader) nonNegativeInt(key string, def int) (int, error) {
	v := l.getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid value for %s: '%s', must be a non-negative integer", key, v)
	}
	return n, nil
}

func (l *Loader) seconds(key string, def int) (time.Duration, error) {
	n, err := l.positiveInt(key, def)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func (l *Loader) boolean(key string, def bool) (bool, error) {
	switch strings.ToLower(l.getenv(key)) {
	case "":
		return def, nil
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf(
			"invalid value for %s environment variable: '%s', valid values are 'true' or 'false'",
			key, l.getenv(key),
		)
	}
}
