package config

import "time"

// Convert defaults.
const (
	DefaultMemoryBudget = ""
	DefaultWorkers      = 0
)

// Progress defaults.
const (
	DefaultProgressInterval = 10 * time.Second
)

// Checkpoint defaults.
const (
	DefaultCheckpointEnabled   = true
	DefaultCheckpointDirectory = ""
)

// Throttle defaults.
const (
	DefaultThrottleProcess   = ""
	DefaultThrottleThreshold = "50MB"
	DefaultThrottleInterval  = time.Second
)

// Logging defaults.
const (
	DefaultLogLevel = "info"
	DefaultLogJSON  = false
)

// Telemetry defaults.
const (
	DefaultOTLPEndpoint = ""
	DefaultMetricsAddr  = ""
	DefaultSampleRatio  = 1.0
)
