package scheduler

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/foundry/internal/manifest"
)

// CyclicManifestError reports roles that can never become ready because
// their dependencies form a cycle.
type CyclicManifestError struct {
	Stuck []string
}

func (e *CyclicManifestError) Error() string {
	return fmt.Sprintf("manifest has a dependency cycle; roles never became ready: %s", strings.Join(e.Stuck, ", "))
}

// Order returns the execution order of m's roles using Kahn's algorithm.
// Ties are broken by declaration order: the queue is seeded with roles that
// have no dependencies as they appear in the manifest, and a finished role's
// dependents are enqueued in declaration order once their last dependency is
// done. The result is deterministic for a given manifest.
func Order(m *manifest.Manifest) ([]string, error) {
	// An unknown dependency is never completed, so its role stays blocked.
	// Validate reports those by name before a run gets here.
	indegree := make(map[string]int, len(m.Roles))
	for _, r := range m.Roles {
		seen := make(map[string]bool, len(r.DependsOn))
		for _, dep := range r.DependsOn {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			indegree[r.ID]++
		}
	}

	queue := make([]string, 0, len(m.Roles))
	for _, r := range m.Roles {
		if indegree[r.ID] == 0 {
			queue = append(queue, r.ID)
		}
	}

	order := make([]string, 0, len(m.Roles))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		for _, dependent := range m.Dependents(id) {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) < len(m.Roles) {
		placed := make(map[string]bool, len(order))
		for _, id := range order {
			placed[id] = true
		}
		var stuck []string
		for _, r := range m.Roles {
			if !placed[r.ID] {
				stuck = append(stuck, r.ID)
			}
		}
		return nil, &CyclicManifestError{Stuck: stuck}
	}
	return order, nil
}
