package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.App.HTTPPort)
	assert.Equal(t, "transactions", cfg.NATS.SubjectPrefix)
	assert.Equal(t, "verification.events", cfg.NATS.VerificationSubject)
	assert.Equal(t, 10*time.Second, cfg.NATS.ConnectTimeout)
	assert.Equal(t, StorageBackendRedis, cfg.Storage.Backend)
	assert.Equal(t, "cred_credit_state", cfg.Storage.Namespace)
	assert.Equal(t, 50, cfg.Scoring.HistoryLimit)
	assert.Equal(t, 720*time.Hour, cfg.Ledger.DelinquencyGrace)
	assert.Equal(t, "@daily", cfg.Ledger.DelinquencyCron)
	assert.False(t, cfg.Ledger.AutoRepayExecute)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", StorageBackendMemory)
	t.Setenv("APP_HTTP_PORT", "9191")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageBackendMemory, cfg.Storage.Backend)
	assert.Equal(t, 9191, cfg.App.HTTPPort)
}
