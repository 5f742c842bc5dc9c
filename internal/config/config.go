package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

// EnvPrefix is the prefix of environment overrides. TABD_GITHUB_API_URL
// sets github.api_url.
const EnvPrefix = "TABD_"

// Config represents the application configuration
type Config struct {
	Settings Settings `koanf:"settings"`

	GitHub struct {
		APIURL       string        `koanf:"api_url"`
		FetchTimeout time.Duration `koanf:"fetch_timeout"`
		RateLimit    float64       `koanf:"rate_limit"`
		RateBurst    int           `koanf:"rate_burst"`
	} `koanf:"github"`

	Scanner struct {
		Interval     time.Duration `koanf:"interval"`
		WaitAttempts int           `koanf:"wait_attempts"`
		WaitStep     time.Duration `koanf:"wait_step"`
		WaitCap      time.Duration `koanf:"wait_cap"`
	} `koanf:"scanner"`

	Server struct {
		Port int `koanf:"port"`
		// AllowOrigins lists the browser origins allowed to call the API.
		AllowOrigins []string `koanf:"allow_origins"`
	} `koanf:"server"`

	Log struct {
		Level  string `koanf:"level"`
		Pretty bool   `koanf:"pretty"`
	} `koanf:"log"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"settings.clipboard_tracking": TrackingKnown,
		"settings.custom_domains":     "",
		"settings.github_integration": true,
		"settings.github_token":       "",

		"github.api_url":       "https://api.github.com",
		"github.fetch_timeout": "10s",
		"github.rate_limit":    5.0,
		"github.rate_burst":    5,

		"scanner.interval":      "500ms",
		"scanner.wait_attempts": 10,
		"scanner.wait_step":     "100ms",
		"scanner.wait_cap":      "2s",

		"server.port":          8787,
		"server.allow_origins": []string{"https://github.com"},

		"log.level":  "info",
		"log.pretty": true,
	}
}

// envKey maps TABD_SECTION_SOME_KEY to section.some_key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// LoadConfig loads the configuration from a file
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		defaultPaths := []string{"./tabd.toml", "$HOME/.config/tabd/tabd.toml", "$HOME/.tabd.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sampleConfig := `# Tab'd configuration

[settings]
# none | all | known | custom
clipboard_tracking = "known"
# one domain per line, "*.example.com" matches subdomains
custom_domains = ""
github_integration = true
github_token = ""

[github]
api_url = "https://api.github.com"
fetch_timeout = "10s"
rate_limit = 5
rate_burst = 5

[scanner]
interval = "500ms"
wait_attempts = 10
wait_step = "100ms"
wait_cap = "2s"

[server]
port = 8787
# browser origins allowed to call the API
allow_origins = ["https://github.com"]

[log]
level = "info"
pretty = true
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate validates the configuration
func Validate(config *Config) error {
	switch config.Settings.ClipboardTracking {
	case TrackingNone, TrackingAll, TrackingKnown, TrackingCustom:
	default:
		return fmt.Errorf("invalid clipboard_tracking %q (want none, all, known or custom)", config.Settings.ClipboardTracking)
	}

	if config.Settings.ClipboardTracking == TrackingCustom && len(config.Settings.Domains()) == 0 {
		return fmt.Errorf("custom clipboard tracking requires custom_domains")
	}

	if !strings.HasPrefix(config.GitHub.APIURL, "http://") && !strings.HasPrefix(config.GitHub.APIURL, "https://") {
		return fmt.Errorf("github api_url must be an http(s) URL, got %q", config.GitHub.APIURL)
	}

	if config.GitHub.FetchTimeout <= 0 {
		return fmt.Errorf("github fetch_timeout must be positive")
	}

	if config.GitHub.RateLimit < 0 {
		return fmt.Errorf("github rate_limit must not be negative")
	}

	if config.Scanner.Interval <= 0 {
		return fmt.Errorf("scanner interval must be positive")
	}

	if config.Scanner.WaitAttempts < 1 {
		return fmt.Errorf("scanner wait_attempts must be at least 1")
	}

	if config.Scanner.WaitStep <= 0 || config.Scanner.WaitCap < config.Scanner.WaitStep {
		return fmt.Errorf("scanner wait_step must be positive and not exceed wait_cap")
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", config.Server.Port)
	}

	for _, origin := range config.Server.AllowOrigins {
		if origin == "*" {
			return fmt.Errorf("server allow_origins must list explicit origins, not \"*\"")
		}
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(config.Log.Level)); err != nil {
		return fmt.Errorf("invalid log level %q", config.Log.Level)
	}

	return nil
}
