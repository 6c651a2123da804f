package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("QUEUE_TABLE", "catalog-delete-queue")
	t.Setenv("CATALOG_ACCESS_TOKEN", "tok")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, BackendDynamo, cfg.Queue.Backend)
	assert.Equal(t, "catalog-delete-queue", cfg.Queue.Table)
	assert.Equal(t, "https://graph.facebook.com/v19.0", cfg.Catalog.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Catalog.Timeout)
	assert.Equal(t, 5, cfg.Catalog.BreakerFailures)
	assert.Equal(t, 30*time.Second, cfg.Catalog.BreakerCooldown)
	assert.Equal(t, 1, cfg.Reconcile.Concurrency)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "catalog_delete_sync", cfg.Metrics.Job)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("QUEUE_BACKEND", "Postgres")
	t.Setenv("QUEUE_DATABASE_URL", "postgres://u:p@localhost:5432/shop")
	t.Setenv("QUEUE_MIGRATE", "true")
	t.Setenv("CATALOG_BASE_URL", "https://ads.example.com/v2/")
	t.Setenv("CATALOG_ACCESS_TOKEN_PARAM", "/storefront/catalog-token")
	t.Setenv("CATALOG_TIMEOUT", "3s")
	t.Setenv("RECONCILE_CONCURRENCY", "4")
	t.Setenv("DIAGNOSTICS_DEBUG_LOG_TABLE", "debug-log")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, BackendPostgres, cfg.Queue.Backend)
	assert.True(t, cfg.Queue.Migrate)
	assert.Equal(t, "https://ads.example.com/v2", cfg.Catalog.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Catalog.Timeout)
	assert.Equal(t, 4, cfg.Reconcile.Concurrency)
	assert.Equal(t, "debug-log", cfg.Diagnostics.DebugLogTable)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	content := "QUEUE_TABLE=from-dotenv\nCATALOG_ACCESS_TOKEN=tok\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("QUEUE_TABLE")
		os.Unsetenv("CATALOG_ACCESS_TOKEN")
	})

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Queue.Table)
}

func TestLoad_MalformedValueIsInvalidConfig(t *testing.T) {
	t.Setenv("QUEUE_TABLE", "catalog-delete-queue")
	t.Setenv("CATALOG_ACCESS_TOKEN", "tok")
	t.Setenv("CATALOG_TIMEOUT", "ten seconds")

	cfg, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "catalog.timeout")
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "QUEUE_TABLE", EnvName("queue.table"))
	assert.Equal(t, "CATALOG_TOKEN_ENC_KEY_B64", EnvName("catalog.token_enc_key_b64"))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Queue:     QueueConfig{Backend: BackendDynamo, Table: "q"},
			Catalog:   CatalogConfig{BaseURL: "https://graph.facebook.com/v19.0", AccessToken: "tok", Timeout: time.Second},
			Reconcile: ReconcileConfig{Concurrency: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid"},
		{name: "missing table", mutate: func(c *Config) { c.Queue.Table = "" }, wantErr: "QUEUE_TABLE"},
		{name: "postgres without url", mutate: func(c *Config) { c.Queue.Backend = BackendPostgres }, wantErr: "QUEUE_DATABASE_URL"},
		{name: "unknown backend", mutate: func(c *Config) { c.Queue.Backend = "redis" }, wantErr: "unknown QUEUE_BACKEND"},
		{name: "bad base url", mutate: func(c *Config) { c.Catalog.BaseURL = "graph.facebook.com" }, wantErr: "CATALOG_BASE_URL"},
		{name: "no token source", mutate: func(c *Config) { c.Catalog.AccessToken = "" }, wantErr: "CATALOG_ACCESS_TOKEN"},
		{
			name: "sealed token without key",
			mutate: func(c *Config) {
				c.Catalog.AccessToken = ""
				c.Catalog.AccessTokenEnc = "sealed"
			},
			wantErr: "CATALOG_TOKEN_ENC_KEY_B64",
		},
		{name: "zero timeout", mutate: func(c *Config) { c.Catalog.Timeout = 0 }, wantErr: "CATALOG_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
