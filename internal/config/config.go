package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

// DefaultSecret is the documented fallback salt for fingerprint derivation,
// used when no secret is configured. Fingerprints computed with it are stable
// but not private.
const DefaultSecret = "themecheck/v1"

type Config struct {
	EndpointURL    string `mapstructure:"endpoint_url"`
	Secret         string `mapstructure:"secret"`
	PackageField   string `mapstructure:"package_field"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
	Concurrency    int    `mapstructure:"concurrency"`
	CacheBackend   string `mapstructure:"cache_backend"`
	CachePath      string `mapstructure:"cache_path"`
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	LogFile        string `mapstructure:"log_file"`
}

func Default() *Config {
	return &Config{
		EndpointURL:    "http://localhost/wp-minions/api/themecheck/check",
		PackageField:   "package",
		TimeoutSeconds: 45,
		MaxRetries:     0,
		Concurrency:    1,
		CacheBackend:   "file",
		CachePath:      filepath.Join(DataDir(), "checks.json"),
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Timeout returns the request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// EffectiveSecret returns the configured secret or DefaultSecret.
func (c *Config) EffectiveSecret() string {
	if c.Secret == "" {
		return DefaultSecret
	}
	return c.Secret
}

// Load reads themecheck.yaml (or cfgFile) and THEMECHECK_* environment
// variables on top of Default(). A missing config file is not an error.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("themecheck")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("THEMECHECK")
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// bindEnv registers every key so AutomaticEnv values reach Unmarshal even
// when the key is absent from the config file.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"endpoint_url", "secret", "package_field", "timeout_seconds", "max_retries",
		"concurrency", "cache_backend", "cache_path", "log_level", "log_format", "log_file",
	} {
		_ = v.BindEnv(key)
	}
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "ThemeCheck")
	case "darwin":
		return "/Library/Application Support/ThemeCheck"
	default:
		return "/etc/themecheck"
	}
}

// DataDir returns the platform-specific directory for the check cache.
func DataDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "ThemeCheck", "data")
	case "darwin":
		return "/Library/Application Support/ThemeCheck/data"
	default:
		return "/var/lib/themecheck"
	}
}
