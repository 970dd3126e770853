package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
app:
  name: backoffice-test
  port: 9090
database:
  driver: mysql
  dsn: "root:root@tcp(localhost:3306)/backoffice?parseTime=true"
order:
  processing_timeout: 5s
  max_attempts: 3
pricing:
  tax_expr: "price * 0.1"
infra:
  kafka:
    brokers: ["k1:9092", "k2:9092"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "backoffice-test", cfg.App.Name)
	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 5*time.Second, cfg.Order.ProcessingTimeout)
	assert.Equal(t, 3, cfg.Order.MaxAttempts)
	assert.Equal(t, 24*time.Hour, cfg.Order.IdempotencyTTL, "unset keys keep their defaults")
	assert.Equal(t, "price * 0.1", cfg.Pricing.TaxExpr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Infra.Kafka.Brokers)
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 8080, cfg.App.Port)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_DSN", "u:p@tcp(db:3306)/x")
	t.Setenv("REDIS_ADDRS", "r1:6379, r2:6379")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, "log:\n  level: warn\n"))
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "u:p@tcp(db:3306)/x", cfg.Database.DSN)
	assert.Equal(t, []string{"r1:6379", "r2:6379"}, cfg.Infra.Redis.Addrs)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(writeConfig(t, "database:\n  driver: mysql\n"))
	assert.ErrorContains(t, err, "dsn")

	_, err = Load(writeConfig(t, "database:\n  driver: sqlite\n"))
	assert.ErrorContains(t, err, "unknown database driver")

	_, err = Load(writeConfig(t, "order:\n  processing_timeout: 0s\n"))
	assert.ErrorContains(t, err, "order.processing_timeout")

	_, err = Load(writeConfig(t, "order:\n  idempotency_ttl: 0s\n"))
	assert.ErrorContains(t, err, "order.idempotency_ttl")

	_, err = Load(writeConfig(t, "app: [not, a, map]\n"))
	assert.Error(t, err)
}

func TestOrderConfig_PendingClaimTTL(t *testing.T) {
	cfg := Default()
	assert.Greater(t, cfg.Order.PendingClaimTTL(), cfg.Order.ProcessingTimeout)

	cfg.Order.ProcessingTimeout = 5 * time.Second
	assert.Equal(t, 35*time.Second, cfg.Order.PendingClaimTTL())
}
