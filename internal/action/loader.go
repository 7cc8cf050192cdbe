package action

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// overrideFile is the YAML shape of a catalog override file. Only listed
// actions are touched; everything else keeps its built-in row.
type overrideFile struct {
	Actions map[string]overrideEntry `yaml:"actions"`
}

type overrideEntry struct {
	EstimatedSec *float64 `yaml:"estimated_sec"`
	Priority     *string  `yaml:"priority"`
	Requires     []string `yaml:"requires"`
	Conflicts    []string `yaml:"conflicts"`
}

// Load returns the default catalog with overrides from path applied.
// An empty path returns the default catalog unchanged.
func Load(path string) (*Catalog, error) {
	cat := Default()
	if path == "" {
		return cat, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog override: %w", err)
	}

	var file overrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog override: %w", err)
	}

	for name, entry := range file.Actions {
		a := Action(name)
		meta, ok := cat.entries[a]
		if !ok {
			return nil, fmt.Errorf("catalog override: unknown action %q", name)
		}

		if entry.EstimatedSec != nil {
			if *entry.EstimatedSec <= 0 {
				return nil, fmt.Errorf("catalog override: action %q: estimated_sec must be > 0, got %g", name, *entry.EstimatedSec)
			}
			meta.EstimatedSec = *entry.EstimatedSec
		}
		if entry.Priority != nil {
			p, ok := ParsePriority(*entry.Priority)
			if !ok {
				return nil, fmt.Errorf("catalog override: action %q: unknown priority %q", name, *entry.Priority)
			}
			meta.Priority = p
		}
		if entry.Requires != nil {
			req, err := toActionSet(cat, entry.Requires)
			if err != nil {
				return nil, fmt.Errorf("catalog override: action %q: requires: %w", name, err)
			}
			meta.Requires = req
		}
		if entry.Conflicts != nil {
			con, err := toActionSet(cat, entry.Conflicts)
			if err != nil {
				return nil, fmt.Errorf("catalog override: action %q: conflicts: %w", name, err)
			}
			meta.Conflicts = con
		}

		cat.entries[a] = meta
	}

	return cat, nil
}

func toActionSet(cat *Catalog, names []string) (map[Action]bool, error) {
	out := make(map[Action]bool, len(names))
	for _, n := range names {
		a := Action(n)
		if _, ok := cat.entries[a]; !ok {
			return nil, fmt.Errorf("unknown action %q", n)
		}
		out[a] = true
	}
	return out, nil
}
