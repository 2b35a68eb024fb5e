package pipeline

import (
	"fmt"
	"strings"
)

// validateDAG checks names and dependencies of an ordered stage list. Stages
// run in declaration order, so every dependency must appear before the stage
// that needs it; a backward edge is reported as a cycle.
func validateDAG(names []string, deps map[string][]string) error {
	seen := map[string]bool{}
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("stage missing name")
		}
		if seen[name] {
			return fmt.Errorf("duplicate stage name %q", name)
		}
		seen[name] = true
	}
	for _, name := range names {
		for _, dep := range deps[name] {
			if !seen[dep] {
				return fmt.Errorf("stage %q depends on unknown stage %q", name, dep)
			}
			if dep == name {
				return fmt.Errorf("stage %q depends on itself", name)
			}
		}
	}

	// Kahn topological sort, stable by declaration order.
	deg := map[string]int{}
	out := map[string][]string{}
	for _, name := range names {
		for _, dep := range deps[name] {
			deg[name]++
			out[dep] = append(out[dep], name)
		}
	}
	order := make([]string, 0, len(names))
	added := map[string]bool{}
	for {
		progressed := false
		for _, name := range names {
			if added[name] || deg[name] != 0 {
				continue
			}
			added[name] = true
			order = append(order, name)
			for _, n := range out[name] {
				deg[n]--
			}
			progressed = true
		}
		if !progressed {
			break
		}
	}
	if len(order) != len(names) {
		return fmt.Errorf("cycle detected in stage graph")
	}

	pos := make(map[string]int, len(names))
	for i, name := range names {
		pos[name] = i
	}
	for _, name := range names {
		for _, dep := range deps[name] {
			if pos[dep] > pos[name] {
				return fmt.Errorf("stage %q is declared before its dependency %q", name, dep)
			}
		}
	}
	return nil
}
