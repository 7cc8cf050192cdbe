package model

import "fmt"

// ExecutionMode selects the planning strategy for a batch.
type ExecutionMode string

const (
	ModeSequential    ExecutionMode = "sequential"
	ModeParallel      ExecutionMode = "parallel"
	ModeOptimized     ExecutionMode = "optimized"
	ModePriorityBased ExecutionMode = "priority_based"
)

var validModes = map[ExecutionMode]bool{
	ModeSequential:    true,
	ModeParallel:      true,
	ModeOptimized:     true,
	ModePriorityBased: true,
}

// ParseExecutionMode validates a mode string from config or CLI flags.
func ParseExecutionMode(s string) (ExecutionMode, error) {
	m := ExecutionMode(s)
	if !validModes[m] {
		return "", fmt.Errorf("unknown execution mode %q", s)
	}
	return m, nil
}

// ErrorRecovery selects the between-group failure policy for a batch.
type ErrorRecovery string

const (
	RecoveryStopOnError      ErrorRecovery = "stop_on_error"
	RecoveryContinueOnError  ErrorRecovery = "continue_on_error"
	RecoveryRetryAndContinue ErrorRecovery = "retry_and_continue"
	RecoverySmartRecovery    ErrorRecovery = "smart_recovery"
)

var validRecoveries = map[ErrorRecovery]bool{
	RecoveryStopOnError:      true,
	RecoveryContinueOnError:  true,
	RecoveryRetryAndContinue: true,
	RecoverySmartRecovery:    true,
}

// ParseErrorRecovery validates a recovery string from config or CLI flags.
func ParseErrorRecovery(s string) (ErrorRecovery, error) {
	r := ErrorRecovery(s)
	if !validRecoveries[r] {
		return "", fmt.Errorf("unknown error recovery policy %q", s)
	}
	return r, nil
}

// Retries reports whether the policy allows the executor to retry failures.
func (r ErrorRecovery) Retries() bool {
	return r == RecoveryRetryAndContinue || r == RecoverySmartRecovery
}

// BatchContext is the immutable per-batch configuration.
type BatchContext struct {
	Mode                 ExecutionMode `yaml:"mode" json:"mode"`
	Recovery             ErrorRecovery `yaml:"error_recovery" json:"error_recovery"`
	MaxRetries           int           `yaml:"max_retries" json:"max_retries"`
	RetryDelaySec        float64       `yaml:"retry_delay_sec" json:"retry_delay_sec"`
	TimeoutPerCommandSec float64       `yaml:"timeout_per_command_sec" json:"timeout_per_command_sec"`
	MaxParallelCommands  int           `yaml:"max_parallel_commands" json:"max_parallel_commands"`
}

// DefaultBatchContext returns the recognized option defaults.
func DefaultBatchContext() BatchContext {
	return BatchContext{
		Mode:                 ModeOptimized,
		Recovery:             RecoveryRetryAndContinue,
		MaxRetries:           2,
		RetryDelaySec:        1.0,
		TimeoutPerCommandSec: 30.0,
		MaxParallelCommands:  4,
	}
}

// ApplyDefaults fills the fields whose zero value is not a valid setting.
// Zero MaxRetries and RetryDelaySec mean "no retries" and "no backoff" and
// stay as given; the documented defaults for those apply when a config file
// leaves the keys unset (BatchDefaults.Context).
func (c *BatchContext) ApplyDefaults() {
	def := DefaultBatchContext()
	if c.Mode == "" {
		c.Mode = def.Mode
	}
	if c.Recovery == "" {
		c.Recovery = def.Recovery
	}
	if c.TimeoutPerCommandSec == 0 {
		c.TimeoutPerCommandSec = def.TimeoutPerCommandSec
	}
	if c.MaxParallelCommands == 0 {
		c.MaxParallelCommands = def.MaxParallelCommands
	}
}

// Validate rejects contexts outside the recognized option ranges.
func (c BatchContext) Validate() error {
	if !validModes[c.Mode] {
		return fmt.Errorf("unknown execution mode %q", c.Mode)
	}
	if !validRecoveries[c.Recovery] {
		return fmt.Errorf("unknown error recovery policy %q", c.Recovery)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", c.MaxRetries)
	}
	if c.RetryDelaySec < 0 {
		return fmt.Errorf("retry_delay_sec must be >= 0, got %g", c.RetryDelaySec)
	}
	if c.TimeoutPerCommandSec <= 0 {
		return fmt.Errorf("timeout_per_command_sec must be > 0, got %g", c.TimeoutPerCommandSec)
	}
	if c.MaxParallelCommands < 1 {
		return fmt.Errorf("max_parallel_commands must be >= 1, got %d", c.MaxParallelCommands)
	}
	return nil
}
