package model

// Error codes carried by OperationOutcome. PLANNING_ERROR aborts the whole
// batch before any command runs; all other codes are per-command and never
// escape ProcessBatch as an error.
const (
	CodePlanning   = "PLANNING_ERROR"
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeTimeout    = "TIMEOUT_ERROR"
	CodeSkipped    = "SKIPPED"
	CodeCancelled  = "CANCELLED"
)

// OperationOutcome is the terminal result of one command: either what the
// actuator backend reported, or a synthesized validation/skip outcome.
type OperationOutcome struct {
	Success     bool     `yaml:"success" json:"success"`
	Message     string   `yaml:"message" json:"message"`
	ErrorCode   string   `yaml:"error_code,omitempty" json:"error_code,omitempty"`
	Suggestions []string `yaml:"suggestions,omitempty" json:"suggestions,omitempty"`
}

// CommandReport is the per-command entry of a batch response.
type CommandReport struct {
	Index       int              `yaml:"index" json:"index"`
	Action      string           `yaml:"action" json:"action"`
	Target      string           `yaml:"target,omitempty" json:"target,omitempty"`
	Status      ExecStatus       `yaml:"status" json:"status"`
	Attempts    int              `yaml:"attempts" json:"attempts"`
	DurationSec float64          `yaml:"duration_sec" json:"duration_sec"`
	Outcome     OperationOutcome `yaml:"outcome" json:"outcome"`
}

// BatchSummary aggregates terminal statuses for one batch.
type BatchSummary struct {
	TotalCommands         int     `yaml:"total_commands" json:"total_commands"`
	SuccessfulCommands    int     `yaml:"successful_commands" json:"successful_commands"`
	FailedCommands        int     `yaml:"failed_commands" json:"failed_commands"`
	SkippedCommands       int     `yaml:"skipped_commands" json:"skipped_commands"`
	TotalExecutionTimeSec float64 `yaml:"total_execution_time_sec" json:"total_execution_time_sec"`
}

// PlanInfo describes the execution plan the batch ran under.
type PlanInfo struct {
	Mode             ExecutionMode `yaml:"mode" json:"mode"`
	Groups           [][]int       `yaml:"groups" json:"groups"`
	EstimatedTimeSec float64       `yaml:"estimated_time_sec" json:"estimated_time_sec"`
}

// OptimizationDetails reports how much the plan compressed the batch.
// EfficiencyRatio is the planned group time over the sum of all individual
// action durations; lower means more parallelism.
type OptimizationDetails struct {
	EfficiencyRatio       float64 `yaml:"efficiency_ratio" json:"efficiency_ratio"`
	ParallelizationFactor float64 `yaml:"parallelization_factor" json:"parallelization_factor"`
}

// TimeStats holds wall-time statistics over completed commands.
type TimeStats struct {
	MinSec  float64 `yaml:"min_sec" json:"min_sec"`
	MeanSec float64 `yaml:"mean_sec" json:"mean_sec"`
	MaxSec  float64 `yaml:"max_sec" json:"max_sec"`
}

// Analytics is the batch-level analytics block derived from terminal records.
type Analytics struct {
	StatusDistribution    map[ExecStatus]int  `yaml:"status_distribution" json:"status_distribution"`
	ExecutionTime         TimeStats           `yaml:"execution_time" json:"execution_time"`
	RetriedCommands       int                 `yaml:"retried_commands" json:"retried_commands"`
	TargetUtilization     map[string]int      `yaml:"target_utilization" json:"target_utilization"`
	ParallelizationFactor float64             `yaml:"parallelization_factor" json:"parallelization_factor"`
	ExecutionPlan         PlanInfo            `yaml:"execution_plan" json:"execution_plan"`
	OptimizationDetails   OptimizationDetails `yaml:"optimization_details" json:"optimization_details"`
}

// BatchResult is the complete response for one processed batch. It always
// carries one report per input command, in input order.
type BatchResult struct {
	BatchID   string          `yaml:"batch_id" json:"batch_id"`
	Results   []CommandReport `yaml:"results" json:"results"`
	Summary   BatchSummary    `yaml:"summary" json:"summary"`
	Analytics Analytics       `yaml:"analytics" json:"analytics"`
}
