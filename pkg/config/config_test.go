package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, time.Hour, cfg.Grievance.EscalationInterval)
	assert.Equal(t, []string{"admin"}, cfg.Grievance.DefaultRecipients)
	assert.Equal(t, []string{"admin", "super_admin"}, cfg.Grievance.HighPriorityRecipients)
	assert.Equal(t, 10*time.Second, cfg.Classifier.Timeout)
	assert.True(t, cfg.Classifier.SafetyFailOpen)

	thresholds := cfg.Grievance.EscalationThresholds()
	assert.Equal(t, 4*time.Hour, thresholds["urgent"])
	assert.Equal(t, 24*time.Hour, thresholds["high"])
	assert.Equal(t, 72*time.Hour, thresholds["medium"])
	assert.Equal(t, 168*time.Hour, thresholds["low"])
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("GRIEVANCE_THRESHOLD_URGENT", "2h")
	t.Setenv("DB_DRIVER", "PGX")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Hour, cfg.Grievance.UrgentThreshold)
	assert.Equal(t, DriverPGX, cfg.Database.Driver)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.Equal(t, 90*time.Second, parseDuration("90s", time.Minute))
}
