// Package config loads MemoryConfig the way the server and CLI binaries
// start up: built-in defaults, then an optional YAML file, then a local
// .env file (the Go analogue of the original project's dotenvy::dotenv()
// call) and finally direct environment variables, each layer overriding the
// last. Validation failures are rerr.Configuration errors.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rookmem/rook/pkg/rerr"
)

// MemoryConfig is the full set of knobs a rookd/rookctl/rook-mcp process
// reads at startup, per spec §6's documented environment variables plus the
// YAML-file fields a deployment may want to pin instead.
type MemoryConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	DataDir string `yaml:"data_dir"`

	RequireAuth bool   `yaml:"require_auth"`
	APIKey      string `yaml:"api_key"`

	Telemetry bool `yaml:"telemetry"`

	OpenAIAPIKey string `yaml:"openai_api_key"`

	NeighbourCandidates int `yaml:"neighbour_candidates"`
	MaxIndexRetries     int `yaml:"max_index_retries"`
}

// Default returns the built-in baseline: listening on all interfaces
// (0.0.0.0:8080), auth disabled,
// telemetry on, a sane retry/candidate count matching facade.DefaultConfig.
func Default() MemoryConfig {
	home, _ := os.UserHomeDir()
	return MemoryConfig{
		Host:                "0.0.0.0",
		Port:                8080,
		DataDir:             filepath.Join(home, ".rook"),
		RequireAuth:         false,
		Telemetry:           true,
		NeighbourCandidates: 5,
		MaxIndexRetries:     3,
	}
}

// Load builds a MemoryConfig: Default(), then yamlPath if non-empty, then
// .env (best-effort, a missing file is not an error), then the documented
// ROOK_*/MEM0_*/OPENAI_API_KEY environment variables.
func Load(yamlPath string) (MemoryConfig, error) {
	cfg := Default()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return cfg, rerr.Wrap("config.Load", rerr.Configuration, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, rerr.Wrap("config.Load", rerr.Configuration, err)
		}
	}

	_ = godotenv.Load()

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *MemoryConfig) {
	if v, ok := os.LookupEnv("MEM0_HOST"); ok && v != "" {
		cfg.Host = v
	}
	if v, ok := os.LookupEnv("MEM0_PORT"); ok && v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v, ok := os.LookupEnv("ROOK_DATA_DIR"); ok && v != "" {
		cfg.DataDir = v
	}
	if v, ok := os.LookupEnv("ROOK_REQUIRE_AUTH"); ok {
		cfg.RequireAuth = parseBool(v, cfg.RequireAuth)
	}
	if v, ok := os.LookupEnv("ROOK_API_KEY"); ok && v != "" {
		cfg.APIKey = v
	}
	if v, ok := os.LookupEnv("ROOK_TELEMETRY"); ok {
		cfg.Telemetry = parseBool(v, cfg.Telemetry)
	}
	if v, ok := os.LookupEnv("OPENAI_API_KEY"); ok && v != "" {
		cfg.OpenAIAPIKey = v
	}
}

// parseBool implements the spec's documented truthy/falsy spelling
// ("false|0|no" disables) rather than strconv.ParseBool's stricter set.
func parseBool(v string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "false", "0", "no", "off":
		return false
	case "true", "1", "yes", "on":
		return true
	default:
		return fallback
	}
}

// Validate rejects configurations that would fail at first use rather than
// at startup: auth required with no key to check against, or a nonsensical
// port.
func (c MemoryConfig) Validate() error {
	if c.RequireAuth && c.APIKey == "" {
		return rerr.New("config.Validate", rerr.Configuration, "ROOK_REQUIRE_AUTH is set but ROOK_API_KEY is empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return rerr.New("config.Validate", rerr.Configuration, "port must be in (0, 65535]")
	}
	if c.DataDir == "" {
		return rerr.New("config.Validate", rerr.Configuration, "data_dir must not be empty")
	}
	return nil
}
