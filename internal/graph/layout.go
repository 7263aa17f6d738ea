package graph

// Levels groups node ids into layers for top-to-bottom drawing. A node sits
// one level below its deepest predecessor. Roots keep insertion order.
// Nodes on or behind a cycle cannot be layered and are placed together in
// one trailing level.
func (g *Graph) Levels() [][]string {
	if len(g.nodes) == 0 {
		return nil
	}

	sorted, depth := g.topoSort()
	done := make(map[string]bool, len(sorted))
	maxLevel := 0
	for _, id := range sorted {
		done[id] = true
		maxLevel = max(maxLevel, depth[id])
	}

	levels := make([][]string, maxLevel+1)
	var cyclic []string
	// Insertion order keeps siblings in a stable left-to-right order.
	for _, n := range g.nodes {
		if done[n.ID] {
			levels[depth[n.ID]] = append(levels[depth[n.ID]], n.ID)
		} else {
			cyclic = append(cyclic, n.ID)
		}
	}
	if len(cyclic) > 0 {
		levels = append(levels, cyclic)
	}
	return levels
}

// HasCycle reports whether the edges form a directed cycle.
func (g *Graph) HasCycle() bool {
	sorted, _ := g.topoSort()
	return len(sorted) != len(g.nodes)
}

// topoSort runs Kahn's algorithm over insertion order. It returns the nodes
// it could order and the depth of each.
func (g *Graph) topoSort() ([]string, map[string]int) {
	inDegree := make(map[string]int, len(g.nodes))
	succ := g.successors()
	for _, e := range g.edges {
		inDegree[e.Target]++
	}

	queue := make([]string, 0, len(g.nodes))
	for _, n := range g.nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	depth := make(map[string]int, len(g.nodes))
	sorted := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, id)
		for _, next := range succ[id] {
			depth[next] = max(depth[next], depth[id]+1)
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	return sorted, depth
}

// Reachable returns the set of node ids reachable from start, start included.
func (g *Graph) Reachable(start string) map[string]bool {
	seen := map[string]bool{}
	if _, ok := g.index[start]; !ok {
		return seen
	}
	succ := g.successors()
	queue := []string{start}
	seen[start] = true
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range succ[id] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return seen
}

func (g *Graph) successors() map[string][]string {
	succ := make(map[string][]string, len(g.nodes))
	for _, e := range g.edges {
		succ[e.Source] = append(succ[e.Source], e.Target)
	}
	return succ
}
