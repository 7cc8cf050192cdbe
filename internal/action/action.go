// Package action holds the static metadata table for supported drone
// actions: estimated duration, priority class, and dependency/conflict rules.
package action

import "sort"

// Action is a closed set of supported drone actions. Unknown action names
// are rejected at analysis time rather than deferred to dispatch.
type Action string

const (
	Connect     Action = "connect"
	Disconnect  Action = "disconnect"
	Takeoff     Action = "takeoff"
	Land        Action = "land"
	Move        Action = "move"
	Rotate      Action = "rotate"
	Hover       Action = "hover"
	Wait        Action = "wait"
	Photo       Action = "photo"
	RecordStart Action = "record_start"
	RecordStop  Action = "record_stop"
	SetSpeed    Action = "set_speed"
	ReturnHome  Action = "return_home"
	Battery     Action = "battery"
	Emergency   Action = "emergency"
)

// Priority is the scheduling class of an action. Higher runs earlier under
// priority_based planning; EMERGENCY additionally conflicts with every other
// action on its target and runs alone in its group.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityEmergency
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// ParsePriority maps a config string to a Priority.
func ParsePriority(s string) (Priority, bool) {
	switch s {
	case "low":
		return PriorityLow, true
	case "normal":
		return PriorityNormal, true
	case "high":
		return PriorityHigh, true
	case "emergency":
		return PriorityEmergency, true
	default:
		return PriorityLow, false
	}
}

// Metadata is one row of the action table.
type Metadata struct {
	EstimatedSec float64
	Priority     Priority
	Requires     map[Action]bool
	Conflicts    map[Action]bool
}

// Provider yields the currently active catalog. A plain *Catalog provides
// itself; a Watcher provides whatever the override file last said.
type Provider interface {
	Catalog() *Catalog
}

// Catalog is an immutable action → metadata lookup. Build once, read from
// any goroutine.
type Catalog struct {
	entries map[Action]Metadata
}

// Catalog implements Provider.
func (c *Catalog) Catalog() *Catalog { return c }

// Lookup returns the metadata for a and whether a is a known action.
func (c *Catalog) Lookup(a Action) (Metadata, bool) {
	m, ok := c.entries[a]
	return m, ok
}

// Actions returns all known actions in name order.
func (c *Catalog) Actions() []Action {
	out := make([]Action, 0, len(c.entries))
	for a := range c.entries {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func set(actions ...Action) map[Action]bool {
	m := make(map[Action]bool, len(actions))
	for _, a := range actions {
		m[a] = true
	}
	return m
}

// Default returns the built-in action table.
func Default() *Catalog {
	return &Catalog{entries: map[Action]Metadata{
		Connect:     {EstimatedSec: 3, Priority: PriorityHigh, Requires: set(), Conflicts: set(Disconnect)},
		Disconnect:  {EstimatedSec: 1, Priority: PriorityLow, Requires: set(Connect), Conflicts: set(Connect)},
		Takeoff:     {EstimatedSec: 5, Priority: PriorityHigh, Requires: set(Connect), Conflicts: set(Land)},
		Land:        {EstimatedSec: 5, Priority: PriorityHigh, Requires: set(Takeoff), Conflicts: set(Takeoff, Move, Rotate, ReturnHome)},
		Move:        {EstimatedSec: 4, Priority: PriorityNormal, Requires: set(Takeoff), Conflicts: set(Land, ReturnHome)},
		Rotate:      {EstimatedSec: 3, Priority: PriorityNormal, Requires: set(Takeoff), Conflicts: set(Land)},
		Hover:       {EstimatedSec: 2, Priority: PriorityNormal, Requires: set(Takeoff), Conflicts: set(Land)},
		Wait:        {EstimatedSec: 1, Priority: PriorityLow, Requires: set(), Conflicts: set()},
		Photo:       {EstimatedSec: 1, Priority: PriorityNormal, Requires: set(Connect), Conflicts: set()},
		RecordStart: {EstimatedSec: 1, Priority: PriorityNormal, Requires: set(Connect), Conflicts: set(RecordStop)},
		RecordStop:  {EstimatedSec: 1, Priority: PriorityNormal, Requires: set(RecordStart), Conflicts: set(RecordStart)},
		SetSpeed:    {EstimatedSec: 1, Priority: PriorityLow, Requires: set(Connect), Conflicts: set()},
		ReturnHome:  {EstimatedSec: 8, Priority: PriorityHigh, Requires: set(Takeoff), Conflicts: set(Move, Land)},
		Battery:     {EstimatedSec: 1, Priority: PriorityLow, Requires: set(Connect), Conflicts: set()},
		Emergency:   {EstimatedSec: 1, Priority: PriorityEmergency, Requires: set(), Conflicts: set()},
	}}
}
