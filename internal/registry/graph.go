package registry

// Graph returns the dependency graph as id -> referenced ids. Every
// registered id is present, with an empty slice when it has no
// dependencies or has not been finalised.
func (r *Registry) Graph() map[string][]string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	graph := make(map[string][]string, len(r.nodes))
	for id, node := range r.nodes {
		deps := make([]string, len(node.Dependencies))
		copy(deps, node.Dependencies)
		graph[id] = deps
	}

	return graph
}

// Dependents returns the ids that reference id, in insertion order.
func (r *Registry) Dependents(id string) []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var dependents []string
	for _, candidate := range r.order {
		for _, dep := range r.nodes[candidate].Dependencies {
			if dep == id {
				dependents = append(dependents, candidate)
				break
			}
		}
	}

	return dependents
}

// Cycles returns the reference cycles in the graph. Each cycle starts and
// ends with the same id, for example [a.js b.js a.js]. Nodes are explored
// in insertion order and dependencies in source order, so the result is
// deterministic for a given registry.
func (r *Registry) Cycles() [][]string {
	graph := r.Graph()
	order := r.IDs()

	var cycles [][]string
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	var visit func(id string, path []string)
	visit = func(id string, path []string) {
		visited[id] = true
		onStack[id] = true
		path = append(path, id)

		for _, dep := range graph[id] {
			if !visited[dep] {
				visit(dep, path)
				continue
			}
			if !onStack[dep] {
				continue
			}
			for i, p := range path {
				if p == dep {
					cycle := make([]string, len(path)-i+1)
					copy(cycle, path[i:])
					cycle[len(cycle)-1] = dep
					cycles = append(cycles, cycle)
					break
				}
			}
		}

		onStack[id] = false
	}

	for _, id := range order {
		if !visited[id] {
			visit(id, nil)
		}
	}

	return cycles
}
