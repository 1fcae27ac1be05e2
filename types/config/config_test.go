package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RezaEskandarii/datafire/custom_errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageDriver_String(t *testing.T) {
	tests := []struct {
		name     string
		driver   StorageDriver
		expected string
	}{
		{
			name:     "Postgres driver",
			driver:   Postgres,
			expected: "postgres",
		},
		{
			name:     "Unknown driver",
			driver:   StorageDriver(999),
			expected: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.driver.String()
			if result != tt.expected {
				t.Errorf("String() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestNewDatafireConfig_Defaults(t *testing.T) {
	cfg, err := NewDatafireConfig("test-instance")
	require.NoError(t, err)

	assert.Equal(t, "test-instance", cfg.Instance)
	assert.Equal(t, DefaultStorageDriver, cfg.StorageDriver)
	assert.Equal(t, DefaultWorkerCount, cfg.WorkerCount)
	assert.Equal(t, time.Second, cfg.TickInterval)
	assert.Equal(t, 65*time.Second, cfg.ClaimHorizon)
	assert.Equal(t, 5*time.Second, cfg.HealthCheckTimeout)
	assert.Equal(t, 60*time.Second, cfg.ExecuteTimeout)
	assert.False(t, cfg.DashboardEnabled)
}

func TestNewDatafireConfig_AggregatesErrors(t *testing.T) {
	_, err := NewDatafireConfig("",
		WithWorkerCount(0),
		WithClaimHorizon(500*time.Millisecond),
		WithPostgresConfig(PostgresConfig{}),
	)
	require.Error(t, err)

	var verr *custom_errors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Errors, 4)
}

func TestNewDatafireConfig_Options(t *testing.T) {
	cfg, err := NewDatafireConfig("west",
		WithPostgresConfig(PostgresConfig{ConnectionUrl: "postgres://localhost/datafire"}),
		WithTickInterval(2*time.Second),
		WithClaimHorizon(90*time.Second),
		WithDashboard(9090),
		WithTimezone("UTC"),
	)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/datafire", cfg.PostgresConfig.ConnectionUrl)
	assert.Equal(t, 2*time.Second, cfg.TickInterval)
	assert.Equal(t, 90*time.Second, cfg.ClaimHorizon)
	assert.True(t, cfg.DashboardEnabled)
	assert.Equal(t, uint(9090), cfg.DashboardPort)
	assert.Equal(t, time.UTC, cfg.Location)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "datafire.toml")
	content := `
instance = "east"

[postgres]
url = "postgres://db/datafire"

[scheduler]
tick_interval = "2s"
claim_horizon = "2m"
timezone = "UTC"

[dashboard]
enabled = false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "east", cfg.Instance)
	assert.Equal(t, "postgres://db/datafire", cfg.PostgresConfig.ConnectionUrl)
	assert.Equal(t, 2*time.Second, cfg.TickInterval)
	assert.Equal(t, 2*time.Minute, cfg.ClaimHorizon)
	assert.False(t, cfg.DashboardEnabled)
}

func TestLoadFile_MissingPostgresURL(t *testing.T) {
	t.Setenv("DATAFIRE_POSTGRES_URL", "")
	_, err := LoadFile("")
	assert.Error(t, err)
}

func TestLoadAgent(t *testing.T) {
	v := NewViper()
	v.Set("agent.port", 9001)

	cfg, err := LoadAgent(v)
	require.NoError(t, err)
	assert.Equal(t, DefaultAgentHost, cfg.Host)
	assert.Equal(t, 9001, cfg.Port)

	v.Set("agent.port", 0)
	_, err = LoadAgent(v)
	assert.Error(t, err)
}

func TestWithDashboardSecret(t *testing.T) {
	_, err := NewDatafireConfig("west", WithDashboardSecret("short"))
	assert.Error(t, err)

	cfg, err := NewDatafireConfig("west", WithDashboardSecret("0123456789abcdef"))
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef", cfg.DashboardSecret)
}
