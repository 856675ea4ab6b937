// Package config loads the learngate settings with Viper: built-in
// defaults, an optional YAML file, LEARNGATE_* environment variables and
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. LEARNGATE_AUTH_URL.
const EnvPrefix = "LEARNGATE"

// Production is the env value that forces Secure cookies.
const Production = "production"

// Config holds the application configuration.
type Config struct {
	Listen         string   `mapstructure:"listen"`
	Env            string   `mapstructure:"env"`
	AuthURL        string   `mapstructure:"auth_url"`
	GatewayURL     string   `mapstructure:"gateway_url"`
	CoursesURL     string   `mapstructure:"courses_url"`
	GroupsURL      string   `mapstructure:"groups_url"`
	DataDir        string   `mapstructure:"data_dir"`
	TLSCert        string   `mapstructure:"tls_cert"`
	TLSKey         string   `mapstructure:"tls_key"`
	TrustedProxies []string `mapstructure:"trusted_proxies"`

	Gate  GateConfig  `mapstructure:"gate"`
	Auth  AuthConfig  `mapstructure:"auth"`
	Audit AuditConfig `mapstructure:"audit"`
}

// GateConfig configures the admin authorization gate.
type GateConfig struct {
	Prefix            string `mapstructure:"prefix"`
	RequiredRole      string `mapstructure:"required_role"`
	LoginPath         string `mapstructure:"login_path"`
	ForbiddenPath     string `mapstructure:"forbidden_path"`
	ClearStaleSession bool   `mapstructure:"clear_stale_session"`
}

// AuthConfig configures the auth service client.
type AuthConfig struct {
	RevokeTimeout time.Duration `mapstructure:"revoke_timeout"`
}

// AuditConfig configures audit persistence and forwarding.
type AuditConfig struct {
	Retention     int    `mapstructure:"retention"`
	WebhookURL    string `mapstructure:"webhook_url"`
	WebhookHeader string `mapstructure:"webhook_header"`
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"listen":      "listen",
	"env":         "env",
	"data-dir":    "data_dir",
	"tls-cert":    "tls_cert",
	"tls-key":     "tls_key",
	"auth-url":    "auth_url",
	"gateway-url": "gateway_url",
	"courses-url": "courses_url",
	"groups-url":  "groups_url",
}

// Load reads configuration from file, environment and flags. An empty
// path skips the config file; flags may be nil. Only flags named in
// flagKeys and present in the set are bound.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8080")
	v.SetDefault("env", "development")
	v.SetDefault("auth_url", "http://localhost:8081/auth")
	v.SetDefault("gateway_url", "http://localhost:8080")
	v.SetDefault("courses_url", "http://localhost:8082")
	v.SetDefault("groups_url", "http://localhost:8083")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("tls_cert", "")
	v.SetDefault("tls_key", "")
	v.SetDefault("trusted_proxies", []string{})

	v.SetDefault("gate.prefix", "/admin")
	v.SetDefault("gate.required_role", "ADMIN")
	v.SetDefault("gate.login_path", "/auth/login")
	v.SetDefault("gate.forbidden_path", "/forbidden")
	v.SetDefault("gate.clear_stale_session", true)

	v.SetDefault("auth.revoke_timeout", 5*time.Second)

	v.SetDefault("audit.retention", 10000)
	v.SetDefault("audit.webhook_url", "")
	v.SetDefault("audit.webhook_header", "")
}

// Validate checks the loaded values.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Listen, validation.Required),
		validation.Field(&c.AuthURL, validation.Required, is.URL),
		validation.Field(&c.GatewayURL, validation.Required, is.URL),
		validation.Field(&c.CoursesURL, validation.Required, is.URL),
		validation.Field(&c.GroupsURL, validation.Required, is.URL),
		validation.Field(&c.DataDir, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := validation.ValidateStruct(&c.Gate,
		validation.Field(&c.Gate.Prefix, validation.Required, validation.By(absolutePath)),
		validation.Field(&c.Gate.RequiredRole, validation.Required),
		validation.Field(&c.Gate.LoginPath, validation.Required, validation.By(absolutePath)),
		validation.Field(&c.Gate.ForbiddenPath, validation.Required, validation.By(absolutePath)),
	); err != nil {
		return fmt.Errorf("invalid gate config: %w", err)
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return errors.New("invalid config: tls_cert and tls_key must be set together")
	}
	if c.Audit.WebhookURL != "" {
		if err := validation.Validate(c.Audit.WebhookURL, is.URL); err != nil {
			return fmt.Errorf("invalid audit.webhook_url: %w", err)
		}
	}
	return nil
}

func absolutePath(v any) error {
	if s, _ := v.(string); !strings.HasPrefix(s, "/") {
		return errors.New("must start with /")
	}
	return nil
}

// Secure reports whether session cookies must carry the Secure attribute
// regardless of how the request arrived.
func (c Config) Secure() bool {
	return strings.EqualFold(c.Env, Production)
}
