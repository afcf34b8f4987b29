// Package config handles XDG configuration paths and application settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	// AppName is the application directory name.
	AppName = "asanapdf"

	// SettingsFile is the optional settings filename (without extension).
	SettingsFile = "config"

	// TokenFile is the stored OAuth token filename.
	TokenFile = "token.json"

	// EnvPrefix prefixes every environment override (ASANA_CLIENT_ID, ...).
	EnvPrefix = "ASANA"
)

// Defaults for settings that have one.
const (
	DefaultRedirectURL = "http://localhost:8085/callback"
	DefaultAuthURL     = "https://app.asana.com/-/oauth_authorize"
	DefaultTokenURL    = "https://app.asana.com/-/oauth_token"
	DefaultAPIURL      = "https://app.asana.com/api/1.0"
	DefaultListenAddr  = "localhost:8085"
	DefaultBannerTitle = "Your Company Name"
	DefaultLogLevel    = "warn"
)

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string `mapstructure:"-"`

	// Debug enables debug logging.
	Debug bool `mapstructure:"-"`

	// Quiet suppresses informational output.
	Quiet bool `mapstructure:"-"`

	// ClientID is the Asana OAuth application id.
	ClientID string `mapstructure:"client_id"`

	// ClientSecret is only needed where the code is exchanged directly
	// (the proxy server, or the CLI when no proxy is configured).
	ClientSecret string `mapstructure:"client_secret"`

	RedirectURL string `mapstructure:"redirect_url" validate:"required,url"`
	ProxyURL    string `mapstructure:"proxy_url" validate:"omitempty,url"`
	AuthURL     string `mapstructure:"auth_url" validate:"required,url"`
	TokenURL    string `mapstructure:"token_url" validate:"required,url"`
	APIURL      string `mapstructure:"api_url" validate:"required,url"`

	// Workspace optionally scopes the project listing to one workspace gid.
	Workspace string `mapstructure:"workspace"`

	ListenAddr  string `mapstructure:"listen_addr" validate:"required"`
	StateSecret string `mapstructure:"state_secret" validate:"omitempty,min=32"`

	BannerTitle string `mapstructure:"banner_title"`

	// FontFile is an optional UTF-8 TrueType font used instead of Helvetica.
	FontFile string `mapstructure:"font_file"`

	LogLevel string `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// New creates a Config with the default or specified config directory and
// default settings. It does not read the settings file or environment.
// If configDir is empty, uses XDG_CONFIG_HOME/asanapdf or $HOME/.config/asanapdf.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	cfg := &Config{Dir: dir}
	cfg.applyDefaults()
	return cfg, nil
}

// Load creates a Config for configDir and fills its settings from
// config.yaml in that directory and from ASANA_* environment variables.
// Environment variables take precedence over the file.
func Load(configDir string) (*Config, error) {
	cfg, err := New(configDir)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName(SettingsFile)
	v.SetConfigType("yaml")
	v.AddConfigPath(cfg.Dir)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("invalid %s.yaml: %w", SettingsFile, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings against their validation tags.
func (c *Config) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("mapstructure")
	})
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid setting %s: failed %q check", fe.Field(), fe.Tag())
		}
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("client_id", "")
	v.SetDefault("client_secret", "")
	v.SetDefault("redirect_url", DefaultRedirectURL)
	v.SetDefault("proxy_url", "")
	v.SetDefault("auth_url", DefaultAuthURL)
	v.SetDefault("token_url", DefaultTokenURL)
	v.SetDefault("api_url", DefaultAPIURL)
	v.SetDefault("workspace", "")
	v.SetDefault("listen_addr", DefaultListenAddr)
	v.SetDefault("state_secret", "")
	v.SetDefault("banner_title", DefaultBannerTitle)
	v.SetDefault("font_file", "")
	v.SetDefault("log_level", DefaultLogLevel)
}

// applyDefaults fills settings left empty, so a Config built as a literal
// (as tests do) behaves like a loaded one.
func (c *Config) applyDefaults() {
	if c.RedirectURL == "" {
		c.RedirectURL = DefaultRedirectURL
	}
	if c.AuthURL == "" {
		c.AuthURL = DefaultAuthURL
	}
	if c.TokenURL == "" {
		c.TokenURL = DefaultTokenURL
	}
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.BannerTitle == "" {
		c.BannerTitle = DefaultBannerTitle
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// TokenPath returns the path to the stored OAuth token file.
func (c *Config) TokenPath() string {
	return filepath.Join(c.Dir, TokenFile)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// HasClientID reports whether an OAuth client id is configured.
func (c *Config) HasClientID() bool {
	return strings.TrimSpace(c.ClientID) != ""
}
