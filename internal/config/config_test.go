package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 11, cfg.Billing.RecurringCount)
	assert.Equal(t, "Asia/Jakarta", cfg.Billing.Timezone)
	assert.Equal(t, time.Hour, cfg.Billing.OverdueScanInterval)
	assert.Equal(t, 15*time.Second, cfg.StorageTimeout())
	assert.Equal(t, "postgres://postgres:@localhost:5432/dcspace_db?sslmode=disable", cfg.DatabaseURL())
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("REDIS_SERVICE_HOST", "redis.svc")
	t.Setenv("REDIS_SERVICE_PORT", "")
	t.Setenv("STORAGE_BUCKET", "proofs")

	var cfg Config
	applyEnv(&cfg)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, "redis.svc:6379", cfg.Redis.Addr)
	assert.Equal(t, "proofs", cfg.Storage.Bucket)
}

func TestTimeoutsFallBack(t *testing.T) {
	var cfg Config
	assert.Equal(t, 15*time.Second, cfg.StorageTimeout())
	assert.Equal(t, 15*time.Minute, cfg.SignedURLTTL())

	cfg.Storage.TimeoutSeconds = 3
	cfg.Storage.URLTTLMinutes = 1
	assert.Equal(t, 3*time.Second, cfg.StorageTimeout())
	assert.Equal(t, time.Minute, cfg.SignedURLTTL())
}
