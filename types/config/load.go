package config

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// NewViper returns a viper instance with datafire defaults and DATAFIRE_
// environment binding, e.g. DATAFIRE_POSTGRES_URL.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("DATAFIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("instance", "datafire")
	v.SetDefault("storage.driver", DefaultStorageDriver.String())
	v.SetDefault("scheduler.tick_interval", DefaultTickInterval)
	v.SetDefault("scheduler.claim_horizon", DefaultClaimHorizon)
	v.SetDefault("scheduler.timezone", "Local")
	v.SetDefault("agents.workers", DefaultWorkerCount)
	v.SetDefault("agents.health_interval", DefaultHealthCheckInterval)
	v.SetDefault("agents.health_timeout", DefaultHealthCheckTimeout)
	v.SetDefault("agents.execute_timeout", DefaultExecuteTimeout)
	v.SetDefault("dashboard.port", DefaultDashboardPort)
	v.SetDefault("dashboard.enabled", true)
	v.SetDefault("log.json", false)
	v.SetDefault("agent.host", DefaultAgentHost)
	v.SetDefault("agent.port", DefaultAgentPort)
}

// LoadFile reads a config file (toml, yaml or json, by extension) on top of
// the defaults and environment.
func LoadFile(path string) (*DatafireConfig, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}
	return Load(v)
}

// Load translates viper settings into a validated DatafireConfig.
func Load(v *viper.Viper) (*DatafireConfig, error) {
	driver, ok := ParseStorageDriver(v.GetString("storage.driver"))
	if !ok {
		return nil, errors.Newf("unsupported storage driver %q", v.GetString("storage.driver"))
	}

	opts := []ContainerOption{
		func(c *DatafireConfig) error {
			c.StorageDriver = driver
			return nil
		},
		WithPostgresConfig(PostgresConfig{ConnectionUrl: v.GetString("postgres.url")}),
		WithWorkerCount(v.GetInt("agents.workers")),
		WithTickInterval(v.GetDuration("scheduler.tick_interval")),
		WithClaimHorizon(v.GetDuration("scheduler.claim_horizon")),
		WithHealthCheck(v.GetDuration("agents.health_interval"), v.GetDuration("agents.health_timeout")),
		WithExecuteTimeout(v.GetDuration("agents.execute_timeout")),
		WithTimezone(v.GetString("scheduler.timezone")),
		WithJSONLogs(v.GetBool("log.json")),
		WithDashboardSecret(v.GetString("dashboard.secret_key")),
	}
	if v.GetBool("dashboard.enabled") {
		opts = append(opts, WithDashboard(uint(v.GetInt("dashboard.port"))))
	}

	return NewDatafireConfig(v.GetString("instance"), opts...)
}

// LoadAgent reads the executor settings from the same sources.
func LoadAgent(v *viper.Viper) (*AgentConfig, error) {
	cfg := &AgentConfig{
		Host:     v.GetString("agent.host"),
		Port:     v.GetInt("agent.port"),
		Token:    v.GetString("agent.token"),
		JSONLogs: v.GetBool("log.json"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
