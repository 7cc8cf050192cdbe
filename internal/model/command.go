// Package model defines the data structures for dronectl's commands,
// execution contexts, statuses, and batch results.
package model

// Intent is one candidate interpretation of a natural-language command,
// produced by the external parser.
type Intent struct {
	Action     string         `yaml:"action" json:"action"`
	Parameters map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Confidence float64        `yaml:"confidence" json:"confidence"`
}

// ParsedCommand is the immutable input unit of a batch. The engine never
// interprets natural language; it only decides whether, when, and how a
// pre-parsed command runs relative to the rest of the batch.
type ParsedCommand struct {
	PrimaryIntent      Intent          `yaml:"primary_intent" json:"primary_intent"`
	AlternativeIntents []Intent        `yaml:"alternative_intents,omitempty" json:"alternative_intents,omitempty"`
	ConfidenceLevel    ConfidenceLevel `yaml:"confidence_level" json:"confidence_level"`
	MissingParameters  []string        `yaml:"missing_parameters,omitempty" json:"missing_parameters,omitempty"`
	Suggestions        []string        `yaml:"suggestions,omitempty" json:"suggestions,omitempty"`
}

// Action returns the action name of the primary intent.
func (c ParsedCommand) Action() string {
	return c.PrimaryIntent.Action
}

// targetKeys are the parameter names recognized as resource identifiers,
// checked in order.
var targetKeys = []string{"drone", "drone_id", "target"}

// Target returns the resource identifier the command acts on, or "" when the
// command is global (depends on / conflicts with everything).
func (c ParsedCommand) Target() string {
	for _, key := range targetKeys {
		if v, ok := c.PrimaryIntent.Parameters[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

type ConfidenceLevel string

const (
	ConfidenceVeryLow ConfidenceLevel = "very_low"
	ConfidenceLow     ConfidenceLevel = "low"
	ConfidenceMedium  ConfidenceLevel = "medium"
	ConfidenceHigh    ConfidenceLevel = "high"
)

// ConfidenceFromScore buckets the parser's numeric confidence score.
func ConfidenceFromScore(score float64) ConfidenceLevel {
	switch {
	case score < 0.3:
		return ConfidenceVeryLow
	case score < 0.5:
		return ConfidenceLow
	case score < 0.75:
		return ConfidenceMedium
	default:
		return ConfidenceHigh
	}
}
