package config

import (
	"time"

	"github.com/RezaEskandarii/datafire/custom_errors"
	"github.com/cockroachdb/errors"
)

type DatafireConfig struct {
	Instance      string        // Unique identifier for this scheduler instance, written to logs
	StorageDriver StorageDriver // Storage backend holding tasks, agents and executions
	WorkerCount   int           // Concurrent health checks during an agent refresh

	TickInterval        time.Duration // How often running tasks are re-evaluated
	ClaimHorizon        time.Duration // Instants further away than this are left for a later tick
	HealthCheckInterval time.Duration // Period of the background agent health refresh
	HealthCheckTimeout  time.Duration // Bound on a single GET /health
	ExecuteTimeout      time.Duration // Bound on a single POST /execute

	DashboardPort    uint // Port of the JSON API and /metrics, 0 disables it
	DashboardEnabled bool
	DashboardSecret  string // Signs API tokens; empty leaves the API open

	Location *time.Location // Zone in which cron expressions are evaluated
	JSONLogs bool

	// Configuration for PostgreSQL storage driver
	PostgresConfig PostgresConfig
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	ConnectionUrl string
}

// ContainerOption type for functional options pattern
type ContainerOption func(*DatafireConfig) error

// NewDatafireConfig creates a new instance of DatafireConfig with default values.
// Only the 'Instance' name is required; other fields use predefined defaults.
func NewDatafireConfig(instance string, opts ...ContainerOption) (*DatafireConfig, error) {
	cfg := &DatafireConfig{
		Instance:            instance,
		StorageDriver:       DefaultStorageDriver,
		WorkerCount:         DefaultWorkerCount,
		TickInterval:        DefaultTickInterval,
		ClaimHorizon:        DefaultClaimHorizon,
		HealthCheckInterval: DefaultHealthCheckInterval,
		HealthCheckTimeout:  DefaultHealthCheckTimeout,
		ExecuteTimeout:      DefaultExecuteTimeout,
		Location:            time.Local,
	}
	validationErrs := &custom_errors.ValidationError{}
	if instance == "" {
		validationErrs.Add(errors.New("instance name is required"))
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			validationErrs.Add(err)
		}
	}

	if validationErrs.HasError() {
		return nil, validationErrs
	}
	return cfg, nil
}

func WithPostgresConfig(pg PostgresConfig) ContainerOption {
	return func(c *DatafireConfig) error {
		if c.StorageDriver != Postgres {
			return errors.Newf("cannot set Postgres config when driver is %s", c.StorageDriver.String())
		}
		if pg.ConnectionUrl == "" {
			return errors.New("postgres config: connection URL is required")
		}
		c.PostgresConfig = pg
		return nil
	}
}

func WithWorkerCount(n int) ContainerOption {
	return func(c *DatafireConfig) error {
		if n < 1 {
			return errors.New("worker count must be positive")
		}
		c.WorkerCount = n
		return nil
	}
}

func WithTickInterval(d time.Duration) ContainerOption {
	return func(c *DatafireConfig) error {
		if d <= 0 {
			return errors.New("tick interval must be positive")
		}
		c.TickInterval = d
		return nil
	}
}

// WithClaimHorizon sets how far ahead a tick may claim an instant. It must
// exceed the tick interval or instants could slip between ticks.
func WithClaimHorizon(d time.Duration) ContainerOption {
	return func(c *DatafireConfig) error {
		if d <= c.TickInterval {
			return errors.Newf("claim horizon %s must be longer than the tick interval %s", d, c.TickInterval)
		}
		c.ClaimHorizon = d
		return nil
	}
}

func WithHealthCheck(interval, timeout time.Duration) ContainerOption {
	return func(c *DatafireConfig) error {
		if interval <= 0 || timeout <= 0 {
			return errors.New("health check interval and timeout must be positive")
		}
		c.HealthCheckInterval = interval
		c.HealthCheckTimeout = timeout
		return nil
	}
}

func WithExecuteTimeout(d time.Duration) ContainerOption {
	return func(c *DatafireConfig) error {
		if d <= 0 {
			return errors.New("execute timeout must be positive")
		}
		c.ExecuteTimeout = d
		return nil
	}
}

func WithDashboard(port uint) ContainerOption {
	return func(c *DatafireConfig) error {
		if port == 0 || port > 65535 {
			return errors.Newf("dashboard port %d is out of range", port)
		}
		c.DashboardEnabled = true
		c.DashboardPort = port
		return nil
	}
}

// WithDashboardSecret requires API requests to carry a token signed with
// secret.
func WithDashboardSecret(secret string) ContainerOption {
	return func(c *DatafireConfig) error {
		if secret != "" && len(secret) < 16 {
			return errors.New("dashboard secret must be at least 16 characters")
		}
		c.DashboardSecret = secret
		return nil
	}
}

func WithTimezone(name string) ContainerOption {
	return func(c *DatafireConfig) error {
		loc, err := time.LoadLocation(name)
		if err != nil {
			return errors.Wrapf(err, "timezone %q", name)
		}
		c.Location = loc
		return nil
	}
}

func WithJSONLogs(enabled bool) ContainerOption {
	return func(c *DatafireConfig) error {
		c.JSONLogs = enabled
		return nil
	}
}
