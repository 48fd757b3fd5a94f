package placement

import "fmt"

// OrderByDependencies returns specs ordered so that every service appears
// after all services named in its DependsOn, using the same Kahn-style
// sweep the dependency engine uses for resources. A cycle in depends_on is
// a permanent configuration error, not a runtime one: it is caught here
// rather than left to surface as a deadlock during scheduling.
func OrderByDependencies(specs []ServiceSpec) ([]ServiceSpec, error) {
	byName := make(map[string]ServiceSpec, len(specs))
	indegree := make(map[string]int, len(specs))
	children := make(map[string][]string, len(specs))

	for _, s := range specs {
		byName[s.Name] = s
		if _, ok := indegree[s.Name]; !ok {
			indegree[s.Name] = 0
		}
	}
	for _, s := range specs {
		for _, dep := range s.DependsOn {
			if _, ok := byName[dep]; !ok {
				return nil, fmt.Errorf("placement: service %q depends on unknown service %q", s.Name, dep)
			}
			children[dep] = append(children[dep], s.Name)
			indegree[s.Name]++
		}
	}

	var queue []string
	for _, s := range specs {
		if indegree[s.Name] == 0 {
			queue = append(queue, s.Name)
		}
	}

	var ordered []ServiceSpec
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		ordered = append(ordered, byName[name])

		for _, child := range children[name] {
			indegree[child]--
			if indegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if len(ordered) != len(specs) {
		return nil, fmt.Errorf("placement: depends_on graph has a cycle")
	}
	return ordered, nil
}
