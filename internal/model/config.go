package model

// Config is the dronectl configuration file shape.
type Config struct {
	Defaults BatchDefaults  `yaml:"defaults"`
	Actuator ActuatorConfig `yaml:"actuator"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BatchDefaults is the config-file form of BatchContext. The numeric options
// are pointers so an absent key and an explicit zero are distinguishable:
// `max_retries: 0` means no retries, a missing key means the documented
// default.
type BatchDefaults struct {
	Mode                 ExecutionMode `yaml:"mode"`
	Recovery             ErrorRecovery `yaml:"error_recovery"`
	MaxRetries           *int          `yaml:"max_retries"`
	RetryDelaySec        *float64      `yaml:"retry_delay_sec"`
	TimeoutPerCommandSec *float64      `yaml:"timeout_per_command_sec"`
	MaxParallelCommands  *int          `yaml:"max_parallel_commands"`
}

// Context resolves the file values against DefaultBatchContext.
func (d BatchDefaults) Context() BatchContext {
	c := DefaultBatchContext()
	if d.Mode != "" {
		c.Mode = d.Mode
	}
	if d.Recovery != "" {
		c.Recovery = d.Recovery
	}
	if d.MaxRetries != nil {
		c.MaxRetries = *d.MaxRetries
	}
	if d.RetryDelaySec != nil {
		c.RetryDelaySec = *d.RetryDelaySec
	}
	if d.TimeoutPerCommandSec != nil {
		c.TimeoutPerCommandSec = *d.TimeoutPerCommandSec
	}
	if d.MaxParallelCommands != nil {
		c.MaxParallelCommands = *d.MaxParallelCommands
	}
	return c
}

type ActuatorConfig struct {
	// Kind selects the backend: "http" or "sim".
	Kind     string `yaml:"kind"`
	Endpoint string `yaml:"endpoint"`
	// TimeScale shrinks simulated action latencies (sim backend only).
	TimeScale float64 `yaml:"time_scale"`
}

type CatalogConfig struct {
	// Path of a YAML file overriding entries of the built-in action table.
	Path string `yaml:"path"`
	// Watch reloads the override file on change.
	Watch bool `yaml:"watch"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ApplyDefaults fills unset config sections. Batch defaults resolve through
// BatchDefaults.Context instead.
func (c *Config) ApplyDefaults() {
	if c.Actuator.Kind == "" {
		c.Actuator.Kind = "sim"
	}
	if c.Actuator.TimeScale == 0 {
		c.Actuator.TimeScale = 0.01
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
