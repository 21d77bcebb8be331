package orchestration

import "sort"

// initializationOrder computes a dependency-respecting order over the
// registered component names using Kahn's algorithm. Dependencies on names
// absent from the registry are treated as optional and ignored. Name order
// breaks ties so the result is deterministic. A cycle yields a
// CyclicDependencyError naming every component left unordered.
func initializationOrder(registered map[string]struct{}, deps map[string][]string) ([]string, error) {
	indegree := make(map[string]int, len(registered))
	dependents := make(map[string][]string, len(registered))
	for name := range registered {
		indegree[name] = 0
	}
	for name := range registered {
		for _, dep := range deps[name] {
			if _, ok := registered[dep]; !ok {
				continue
			}
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready []string
	for name, n := range indegree {
		if n == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(registered))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		released := false
		for _, dependent := range dependents[name] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
				released = true
			}
		}
		if released {
			sort.Strings(ready)
		}
	}

	if len(order) != len(registered) {
		var remaining []string
		for name, n := range indegree {
			if n > 0 {
				remaining = append(remaining, name)
			}
		}
		sort.Strings(remaining)
		return nil, &CyclicDependencyError{Remaining: remaining}
	}
	return order, nil
}
