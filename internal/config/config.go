package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned by Validate when a required setting is
// missing or malformed. The handler must not run with such a config.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	BackendDynamo   = "dynamodb"
	BackendPostgres = "postgres"
)

// Config holds everything the delete-sync Lambdas need. It is loaded once
// at cold start and passed down explicitly.
type Config struct {
	Queue       QueueConfig       `mapstructure:"queue"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Reconcile   ReconcileConfig   `mapstructure:"reconcile"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`
	Log         LogConfig         `mapstructure:"log"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// QueueConfig selects and addresses the pending-deletion queue store.
type QueueConfig struct {
	Backend     string `mapstructure:"backend" default:"dynamodb"`
	Table       string `mapstructure:"table"`
	DatabaseURL string `mapstructure:"database_url"`
	Migrate     bool   `mapstructure:"migrate" default:"false"`
}

// CatalogConfig addresses the advertising platform's catalog API.
// Exactly one token source is needed: a plain token, an SSM parameter
// name, or a sealed token together with its key.
type CatalogConfig struct {
	BaseURL          string        `mapstructure:"base_url" default:"https://graph.facebook.com/v19.0"`
	AccessToken      string        `mapstructure:"access_token"`
	AccessTokenParam string        `mapstructure:"access_token_param"`
	AccessTokenEnc   string        `mapstructure:"access_token_enc"`
	TokenEncKeyB64   string        `mapstructure:"token_enc_key_b64"`
	Timeout          time.Duration `mapstructure:"timeout" default:"10s"`
	BreakerFailures  int           `mapstructure:"breaker_failures" default:"5"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown" default:"30s"`
}

type ReconcileConfig struct {
	Concurrency int `mapstructure:"concurrency" default:"1"`
}

// DiagnosticsConfig names the optional failure sinks. Both empty means
// failures only go to the structured log.
type DiagnosticsConfig struct {
	DebugLogTable  string `mapstructure:"debug_log_table"`
	AlertsTopicArn string `mapstructure:"alerts_topic_arn"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" default:"info"`
	Format string `mapstructure:"format" default:"json"`
}

type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job" default:"catalog_delete_sync"`
}

// Load reads configuration from the environment, after applying an
// optional .env file found in path.
func Load(path string) (*Config, error) {
	envPath := path + "/.env"
	if path == "." || path == "" {
		envPath = ".env"
	}
	// Lambda has no .env file; a missing one is fine.
	_ = godotenv.Load(envPath)

	v := viper.New()
	if err := bindValues(v, reflect.TypeOf(Config{}), ""); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// malformed values such as CATALOG_TIMEOUT=ten are config errors too
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Queue.Backend = strings.ToLower(strings.TrimSpace(c.Queue.Backend))
	c.Queue.Table = strings.TrimSpace(c.Queue.Table)
	c.Queue.DatabaseURL = strings.TrimSpace(c.Queue.DatabaseURL)
	c.Catalog.BaseURL = strings.TrimRight(strings.TrimSpace(c.Catalog.BaseURL), "/")
	c.Catalog.AccessToken = strings.TrimSpace(c.Catalog.AccessToken)
	c.Catalog.AccessTokenParam = strings.TrimSpace(c.Catalog.AccessTokenParam)
	c.Catalog.AccessTokenEnc = strings.TrimSpace(c.Catalog.AccessTokenEnc)
	c.Catalog.TokenEncKeyB64 = strings.TrimSpace(c.Catalog.TokenEncKeyB64)
	c.Diagnostics.DebugLogTable = strings.TrimSpace(c.Diagnostics.DebugLogTable)
	c.Diagnostics.AlertsTopicArn = strings.TrimSpace(c.Diagnostics.AlertsTopicArn)
	if c.Reconcile.Concurrency < 1 {
		c.Reconcile.Concurrency = 1
	}
}

// Validate reports the first missing or malformed setting, wrapped in
// ErrInvalidConfig.
func (c *Config) Validate() error {
	switch c.Queue.Backend {
	case BackendDynamo:
		if c.Queue.Table == "" {
			return fmt.Errorf("%w: QUEUE_TABLE is required for the dynamodb backend", ErrInvalidConfig)
		}
	case BackendPostgres:
		if c.Queue.DatabaseURL == "" {
			return fmt.Errorf("%w: QUEUE_DATABASE_URL is required for the postgres backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown QUEUE_BACKEND %q", ErrInvalidConfig, c.Queue.Backend)
	}

	if !strings.HasPrefix(c.Catalog.BaseURL, "https://") && !strings.HasPrefix(c.Catalog.BaseURL, "http://") {
		return fmt.Errorf("%w: CATALOG_BASE_URL must be an http(s) URL", ErrInvalidConfig)
	}
	if c.Catalog.AccessToken == "" && c.Catalog.AccessTokenParam == "" && c.Catalog.AccessTokenEnc == "" {
		return fmt.Errorf("%w: one of CATALOG_ACCESS_TOKEN, CATALOG_ACCESS_TOKEN_PARAM, CATALOG_ACCESS_TOKEN_ENC is required", ErrInvalidConfig)
	}
	if c.Catalog.AccessToken == "" && c.Catalog.AccessTokenParam == "" && c.Catalog.TokenEncKeyB64 == "" {
		return fmt.Errorf("%w: CATALOG_TOKEN_ENC_KEY_B64 is required with CATALOG_ACCESS_TOKEN_ENC", ErrInvalidConfig)
	}
	if c.Catalog.Timeout <= 0 {
		return fmt.Errorf("%w: CATALOG_TIMEOUT must be positive", ErrInvalidConfig)
	}
	return nil
}

// EnvName maps a config key to its environment variable: queue.table
// becomes QUEUE_TABLE.
func EnvName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// bindValues walks the tagged struct, binding each leaf key to its
// SECTION_KEY variable and registering its default.
func bindValues(v *viper.Viper, t reflect.Type, prefix string) error {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			if err := bindValues(v, field.Type, key); err != nil {
				return err
			}
			continue
		}

		if err := v.BindEnv(key, EnvName(key)); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
		if def, ok := field.Tag.Lookup("default"); ok {
			v.SetDefault(key, def)
		}
	}
	return nil
}
