// Package config loads fusebox configuration from a YAML file and the
// environment. Environment variables use the FUSEBOX_ prefix with dots
// replaced by underscores, so server.address becomes FUSEBOX_SERVER_ADDRESS.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

// Deployment environments.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Log levels accepted by logging.level.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// ServerConfig holds the admin HTTP server settings.
type ServerConfig struct {
	// Address is the listen address in host:port form.
	// Default: ":8080"
	Address string `mapstructure:"address"`

	// ReadTimeout bounds reading the request, including the body.
	// Default: 15 seconds
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout bounds writing the response.
	// Default: 15 seconds
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// IdleTimeout bounds how long idle keep-alive connections are held.
	// Default: 60 seconds
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown on SIGTERM.
	// Default: 30 seconds
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum level emitted: debug, info, warn, or error.
	// Default: "info"
	Level string `mapstructure:"level"`
}

// RedisConfig holds the shared cache store settings.
type RedisConfig struct {
	// Enabled selects Redis as the cache store. When false the process
	// uses an in-memory store instead.
	// Default: false
	Enabled bool `mapstructure:"enabled"`

	// Addr is the Redis server address in host:port form.
	// Default: "localhost:6379"
	Addr string `mapstructure:"addr"`

	// Password authenticates against the Redis server. Empty means no auth.
	Password string `mapstructure:"password"`

	// DB is the Redis logical database number.
	// Default: 0
	DB int `mapstructure:"db"`

	// KeyPrefix namespaces every key written by this deployment.
	// Default: "fusebox"
	KeyPrefix string `mapstructure:"key_prefix"`
}

// CacheConfig holds cache interceptor settings.
type CacheConfig struct {
	// DefaultTTL applies to cached entries whose route does not set its
	// own TTL. Zero means entries never expire.
	// Default: 300 seconds
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
}

// CircuitConfig holds thresholds for a single circuit.
type CircuitConfig struct {
	// FailureThreshold is the consecutive failure count that opens the
	// circuit.
	FailureThreshold int `mapstructure:"failure_threshold"`

	// ResetTimeout is how long an open circuit waits before admitting a
	// probe request.
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`

	// SuccessThreshold is the consecutive success count that closes a
	// half-open circuit.
	SuccessThreshold int `mapstructure:"success_threshold"`
}

// CircuitsConfig holds circuit defaults plus per-circuit overrides.
type CircuitsConfig struct {
	// Defaults apply to every circuit without an override.
	// Default: 5 failures, 30 second reset, 2 successes
	Defaults CircuitConfig `mapstructure:"defaults"`

	// Overrides replace individual default fields for named circuits.
	Overrides map[string]CircuitConfig `mapstructure:"overrides"`
}

// For returns the effective settings for the named circuit. Override
// fields left at zero keep their default values.
func (c CircuitsConfig) For(name string) CircuitConfig {
	out := c.Defaults
	override, ok := c.Overrides[name]
	if !ok {
		return out
	}
	if override.FailureThreshold > 0 {
		out.FailureThreshold = override.FailureThreshold
	}
	if override.ResetTimeout > 0 {
		out.ResetTimeout = override.ResetTimeout
	}
	if override.SuccessThreshold > 0 {
		out.SuccessThreshold = override.SuccessThreshold
	}
	return out
}

// AuthConfig holds token service settings for the admin API.
type AuthConfig struct {
	// SigningKey is the secret used to sign admin tokens. Required in
	// production.
	SigningKey string `mapstructure:"signing_key"`

	// Issuer is the issuer claim on admin tokens.
	// Default: "fusebox"
	Issuer string `mapstructure:"issuer"`

	// Audience is the audience claim on admin tokens.
	// Default: "fusebox-admin"
	Audience string `mapstructure:"audience"`

	// TokenTTL is how long issued tokens are valid.
	// Default: 1 hour
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// WorkerConfig holds Pub/Sub purge worker settings.
type WorkerConfig struct {
	// ProjectID is the Google Cloud project the purge subscription lives
	// in. Empty disables the worker.
	ProjectID string `mapstructure:"project_id"`

	// Subscription is the Pub/Sub subscription carrying purge requests.
	// Default: "cache-purge"
	Subscription string `mapstructure:"subscription"`
}

// TelemetryConfig holds OpenTelemetry exporter settings.
type TelemetryConfig struct {
	// Enabled turns on trace and metric export.
	// Default: false
	Enabled bool `mapstructure:"enabled"`

	// OTLPEndpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// Config is the root configuration for fusebox processes.
type Config struct {
	Environment string          `mapstructure:"environment"`
	Server      ServerConfig    `mapstructure:"server"`
	Logging     LoggingConfig   `mapstructure:"logging"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Cache       CacheConfig     `mapstructure:"cache"`
	Circuits    CircuitsConfig  `mapstructure:"circuits"`
	Auth        AuthConfig      `mapstructure:"auth"`
	Worker      WorkerConfig    `mapstructure:"worker"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`

	fileUsed string
}

// FileUsed reports the config file the settings were loaded from, or an
// empty string when only defaults and environment variables applied.
func (c *Config) FileUsed() string {
	return c.fileUsed
}

// IsProduction reports whether the deployment environment is production.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Load reads configuration from the given file path. When path is empty
// it searches for config.yaml in the working directory and ./config,
// falling back to defaults if none exists. An explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("environment", EnvDevelopment)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "fusebox")
	v.SetDefault("cache.default_ttl", "300s")
	v.SetDefault("circuits.defaults.failure_threshold", 5)
	v.SetDefault("circuits.defaults.reset_timeout", "30s")
	v.SetDefault("circuits.defaults.success_threshold", 2)
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.issuer", "fusebox")
	v.SetDefault("auth.audience", "fusebox-admin")
	v.SetDefault("auth.token_ttl", "1h")
	v.SetDefault("worker.project_id", "")
	v.SetDefault("worker.subscription", "cache-purge")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("FUSEBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// No file found during search. Defaults and environment
		// variables still apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.fileUsed = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for values that would break the
// process at runtime.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Environment,
			validation.Required,
			validation.In(EnvDevelopment, EnvStaging, EnvProduction),
		),
		validation.Field(&c.Server,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
					validation.Field(&sc.ReadTimeout, validation.Required, validation.Min(time.Duration(1))),
					validation.Field(&sc.WriteTimeout, validation.Required, validation.Min(time.Duration(1))),
					validation.Field(&sc.IdleTimeout, validation.Required, validation.Min(time.Duration(1))),
					validation.Field(&sc.ShutdownTimeout, validation.Required, validation.Min(time.Duration(1))),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.Redis,
			validation.By(func(value interface{}) error {
				rc, ok := value.(RedisConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a RedisConfig")
				}
				if !rc.Enabled {
					return nil
				}
				return validation.ValidateStruct(&rc,
					validation.Field(&rc.Addr,
						validation.Required,
						validation.By(validateHostPort),
					),
					validation.Field(&rc.DB, validation.Min(0)),
				)
			}),
		),
		validation.Field(&c.Cache,
			validation.By(func(value interface{}) error {
				cc, ok := value.(CacheConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a CacheConfig")
				}
				if cc.DefaultTTL < 0 {
					return validation.NewError("validation_negative_ttl", "cache.default_ttl cannot be negative")
				}
				return nil
			}),
		),
		validation.Field(&c.Circuits,
			validation.By(func(value interface{}) error {
				cc, ok := value.(CircuitsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a CircuitsConfig")
				}
				if err := validateCircuit(cc.Defaults); err != nil {
					return err
				}
				for name := range cc.Overrides {
					if name == "" {
						return validation.NewError("validation_empty_circuit_name", "circuit override name cannot be empty")
					}
					if err := validateCircuit(cc.For(name)); err != nil {
						return err
					}
				}
				return nil
			}),
		),
		validation.Field(&c.Auth,
			validation.By(func(value interface{}) error {
				ac, ok := value.(AuthConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be an AuthConfig")
				}
				if c.Environment == EnvProduction && ac.SigningKey == "" {
					return validation.NewError("validation_missing_signing_key", "auth.signing_key is required in production")
				}
				if ac.TokenTTL <= 0 {
					return validation.NewError("validation_invalid_token_ttl", "auth.token_ttl must be positive")
				}
				return nil
			}),
		),
		validation.Field(&c.Telemetry,
			validation.By(func(value interface{}) error {
				tc, ok := value.(TelemetryConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a TelemetryConfig")
				}
				if !tc.Enabled {
					return nil
				}
				return validation.ValidateStruct(&tc,
					validation.Field(&tc.OTLPEndpoint,
						validation.Required,
						validation.By(validateHostPort),
					),
				)
			}),
		),
	)
}

func validateCircuit(cc CircuitConfig) error {
	if cc.FailureThreshold < 1 {
		return validation.NewError("validation_invalid_threshold", "failure_threshold must be at least 1")
	}
	if cc.SuccessThreshold < 1 {
		return validation.NewError("validation_invalid_threshold", "success_threshold must be at least 1")
	}
	if cc.ResetTimeout <= 0 {
		return validation.NewError("validation_invalid_reset_timeout", "reset_timeout must be positive")
	}
	return nil
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}
