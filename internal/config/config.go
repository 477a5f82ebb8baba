package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Defaults used when neither flags, config file, nor environment say
// otherwise.
var defaultInstances = []string{
	"https://nitter.net",
	"https://nitter.poast.org",
	"https://nitter.privacyredirect.com",
}

// Config is the immutable runtime configuration, constructed once at process
// start and passed into each component. Nothing reads ambient state after
// Load returns.
type Config struct {
	// Mirror instances tried in order by the fetcher.
	Instances []string

	// AI backend selection.
	Provider        string
	Model           string
	AnthropicAPIKey string
	GeminiAPIKey    string

	// Storage layout.
	DataDir       string
	DBPath        string
	SnapshotDir   string
	FailedHTMLDir string

	// Pipeline behavior.
	MaxImages         int
	RetryAttempts     int
	RetryDelay        time.Duration
	RequestsPerMinute int
	SaveFailedHTML    bool
	StrictReport      bool
	DescribeImages    bool

	// Browser behavior.
	Headless bool

	Verbose bool
}

// Load builds the configuration from viper (flags and config file already
// bound by the command layer), the environment, and an optional .env file.
func Load() (*Config, error) {
	// .env is a convenience for API keys; absence is not an error.
	_ = godotenv.Load()

	v := viper.GetViper()
	setDefaults(v)

	dataDir := v.GetString("data-dir")
	cfg := &Config{
		Instances:         v.GetStringSlice("instances"),
		Provider:          v.GetString("provider"),
		Model:             v.GetString("model"),
		AnthropicAPIKey:   firstNonEmpty(v.GetString("anthropic-api-key"), os.Getenv("ANTHROPIC_API_KEY")),
		GeminiAPIKey:      firstNonEmpty(v.GetString("gemini-api-key"), os.Getenv("GEMINI_API_KEY")),
		DataDir:           dataDir,
		DBPath:            filepath.Join(dataDir, "threads.db"),
		SnapshotDir:       filepath.Join(dataDir, "snapshots"),
		FailedHTMLDir:     filepath.Join(dataDir, "failed_html"),
		MaxImages:         v.GetInt("max-images"),
		RetryAttempts:     v.GetInt("retry-attempts"),
		RetryDelay:        v.GetDuration("retry-delay"),
		RequestsPerMinute: v.GetInt("requests-per-minute"),
		SaveFailedHTML:    v.GetBool("save-failed-html"),
		StrictReport:      v.GetBool("strict-report"),
		DescribeImages:    v.GetBool("describe-images"),
		Headless:          v.GetBool("headless"),
		Verbose:           v.GetBool("verbose"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	v.SetDefault("instances", defaultInstances)
	v.SetDefault("provider", "anthropic")
	v.SetDefault("data-dir", filepath.Join(home, ".threadmirror"))
	v.SetDefault("max-images", 10)
	v.SetDefault("retry-attempts", 3)
	v.SetDefault("retry-delay", 2*time.Second)
	v.SetDefault("requests-per-minute", 10)
	v.SetDefault("headless", true)
}

// APIKey returns the key for the selected provider.
func (c *Config) APIKey() string {
	switch c.Provider {
	case "gemini":
		return c.GeminiAPIKey
	default:
		return c.AnthropicAPIKey
	}
}

// Validate rejects configurations no component could run with.
func (c *Config) Validate() error {
	if len(c.Instances) == 0 {
		return fmt.Errorf("config: at least one mirror instance is required")
	}
	if c.Provider == "" {
		return fmt.Errorf("config: provider must be set")
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("config: retry-attempts must be at least 1")
	}
	if c.MaxImages < 0 {
		return fmt.Errorf("config: max-images cannot be negative")
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("config: requests-per-minute cannot be negative")
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
