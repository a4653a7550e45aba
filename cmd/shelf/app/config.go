package app

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/shelf/internal/sources/gutendex"
	"github.com/agentstation/shelf/internal/sources/local"
	"github.com/agentstation/shelf/pkg/constants"
	"github.com/agentstation/shelf/pkg/errors"
)

// envPrefix namespaces every environment variable read through viper.
const envPrefix = "SHELF"

// Config holds the application configuration loaded from config files,
// environment variables and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file actually read, if any
	ConfigFile string

	// Sources
	LocalURL    string
	LocalToken  string
	GutendexURL string
	GutendexRPS float64
	HTTPTimeout time.Duration

	// Overrides
	Store        string
	OverridesKey string

	// Sessions and server
	Debounce time.Duration
	AdminKey string

	// Logging. LogLevel is the --log-level flag; EnvLogLevel comes from the
	// environment and ranks below -v/-q.
	LogLevel    string
	EnvLogLevel string
	LogFormat   string
	LogOutput   string
}

// LoadConfig loads configuration from all sources in order of precedence:
//  1. Command-line flags (applied later by UpdateFromFlags)
//  2. SHELF_* environment variables
//  3. .env and .env.local
//  4. Config file (path, or ~/.shelf.yaml and ./.shelf.yaml)
//  5. Defaults
func LoadConfig(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewConfigError("config", "reading "+path, err)
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".shelf")
		// A missing default config file is not an error.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.NewConfigError("config", "reading .shelf.yaml", err)
			}
		}
	}

	config := &Config{
		Verbose:    v.GetBool("verbose"),
		Quiet:      v.GetBool("quiet"),
		NoColor:    v.GetBool("no_color"),
		Format:     v.GetString("format"),
		ConfigFile: v.ConfigFileUsed(),

		LocalURL:    v.GetString("local_url"),
		LocalToken:  v.GetString("local_token"),
		GutendexURL: v.GetString("gutendex_url"),
		GutendexRPS: v.GetFloat64("gutendex_rps"),
		HTTPTimeout: v.GetDuration("http_timeout"),

		Store:        v.GetString("store"),
		OverridesKey: v.GetString("overrides_key"),

		Debounce: v.GetDuration("debounce"),
		AdminKey: v.GetString("admin_key"),

		EnvLogLevel: firstNonEmpty(v.GetString("log_level"), os.Getenv("LOG_LEVEL")),
		LogFormat:   firstNonEmpty(v.GetString("log_format"), os.Getenv("LOG_FORMAT"), "auto"),
		LogOutput:   firstNonEmpty(v.GetString("log_output"), os.Getenv("LOG_OUTPUT"), "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("local_url", local.DefaultBaseURL)
	v.SetDefault("gutendex_url", gutendex.DefaultBaseURL)
	v.SetDefault("gutendex_rps", constants.DefaultExternalRPS)
	v.SetDefault("http_timeout", constants.DefaultHTTPTimeout)
	v.SetDefault("store", defaultStoreURI())
	v.SetDefault("overrides_key", constants.OverridesKey)
	v.SetDefault("debounce", constants.DefaultDebounce)
}

// defaultStoreURI keeps overrides under ~/.shelf, or in memory without a home directory.
func defaultStoreURI() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "memory://"
	}
	return "file://" + filepath.Join(home, ".shelf", "overrides.json")
}

func (c *Config) validate() error {
	if c.GutendexRPS < 0 {
		return errors.NewValidationError("gutendex_rps", c.GutendexRPS, "must not be negative")
	}
	if c.HTTPTimeout <= 0 {
		return errors.NewValidationError("http_timeout", c.HTTPTimeout, "must be positive")
	}
	if c.Debounce < 0 {
		return errors.NewValidationError("debounce", c.Debounce, "must not be negative")
	}
	return nil
}

// UpdateFromFlags applies parsed persistent flags. Flag values win over the
// config file and environment.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = c.Verbose || verbose
	c.Quiet = c.Quiet || quiet
	c.NoColor = c.NoColor || noColor
	if format != "" {
		c.Format = format
	}
	c.LogLevel = logLevel
}

// loadEnvFiles loads .env then .env.local. godotenv never overrides a
// variable that is already set, so the real environment wins.
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
