package config

import "time"

const (
	DefaultStorageDriver       = Postgres
	DefaultWorkerCount         = 5
	DefaultTickInterval        = time.Second
	DefaultClaimHorizon        = 65 * time.Second
	DefaultHealthCheckInterval = 30 * time.Second
	DefaultHealthCheckTimeout  = 5 * time.Second
	DefaultExecuteTimeout      = 60 * time.Second
	DefaultDashboardPort       = 8080
	DefaultAgentHost           = "0.0.0.0"
	DefaultAgentPort           = 8001
)
