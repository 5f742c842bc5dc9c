package cmd

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/tabd/annotate/internal/capture"
	"github.com/tabd/annotate/internal/config"
	"github.com/tabd/annotate/internal/logging"
)

// Setup runs before any command: it loads the env file, installs the logger
// and turns on response capture when asked.
func Setup(c *cli.Context) error {
	if envFile := c.String("env-file"); envFile != "" {
		if err := LoadEnvFile(envFile); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
	}

	level := c.String("log-level")
	pretty := true
	if cfg, err := config.LoadConfig(c.String("config")); err == nil {
		if level == "" {
			level = cfg.Log.Level
		}
		pretty = cfg.Log.Pretty
	}
	if c.Bool("verbose") {
		level = "debug"
	}
	if err := logging.Setup(level, pretty, os.Stderr); err != nil {
		return err
	}

	if c.Bool("capture") {
		capture.Enable()
	}
	return nil
}

// loadConfig loads and validates the configuration named by --config,
// applying the --token override.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if token := c.String("token"); token != "" {
		cfg.Settings.GithubToken = token
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ConfigCheckResult holds the TABD_ variables found in the environment
type ConfigCheckResult struct {
	Present  map[string]string // Variables that are set (masked values)
	Warnings []string          // Non-fatal warnings
}

// secretVars are masked when printed.
var secretVars = map[string]bool{
	config.EnvPrefix + "SETTINGS_GITHUB_TOKEN": true,
}

// CheckEnvConfig lists the TABD_ overrides present in the environment
func CheckEnvConfig(cfg *config.Config) *ConfigCheckResult {
	result := &ConfigCheckResult{
		Present:  make(map[string]string),
		Warnings: []string{},
	}

	for _, kv := range os.Environ() {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, config.EnvPrefix) || key == "TABD_CAPTURE_DIR" {
			continue
		}
		if secretVars[key] {
			val = maskSecret(val)
		}
		result.Present[key] = val
	}

	if cfg.Settings.GithubToken == "" {
		result.Warnings = append(result.Warnings, "no GitHub token: private repositories cannot be resolved and the API rate limit is 60 requests/hour")
	}
	if !cfg.Settings.GithubIntegration {
		result.Warnings = append(result.Warnings, "github_integration is off: pages will not be annotated")
	}

	return result
}

// PrintConfigCheck prints the configuration check results
func PrintConfigCheck(result *ConfigCheckResult) {
	fmt.Println("=== Configuration Check ===")

	if len(result.Present) > 0 {
		fmt.Println("Environment overrides:")
		keys := make([]string, 0, len(result.Present))
		for k := range result.Present {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("   - %s = %s\n", k, result.Present[k])
		}
		fmt.Println("")
	}

	for _, w := range result.Warnings {
		fmt.Printf("Warning: %s\n", w)
	}

	fmt.Println("============================")
}

// maskSecret masks a secret value for display, showing only first and last 2 chars
func maskSecret(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	return value[:2] + "****" + value[len(value)-2:]
}

// LoadEnvFile loads environment variables from a file, overwriting existing ones.
func LoadEnvFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = strings.TrimSpace(value)

		if len(value) >= 2 && ((value[0] == '"' && value[len(value)-1] == '"') || (value[0] == '\'' && value[len(value)-1] == '\'')) {
			value = value[1 : len(value)-1]
		}

		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to set env var %s: %w", key, err)
		}
	}

	return scanner.Err()
}
