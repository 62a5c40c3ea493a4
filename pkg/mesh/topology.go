package mesh

// Edge is an undirected edge with A < B.
type Edge struct {
	A, B int
}

func makeEdge(a, b int) Edge {
	if a > b {
		a, b = b, a
	}
	return Edge{A: a, B: b}
}

// EdgeFaceCounts counts the faces incident to each undirected edge.
func (m *Mesh) EdgeFaceCounts() map[Edge]int {
	counts := make(map[Edge]int, len(m.Faces)*3/2)
	for _, f := range m.Faces {
		for i := 0; i < 3; i++ {
			counts[makeEdge(f[i], f[(i+1)%3])]++
		}
	}
	return counts
}

// IsWatertight reports whether every edge is shared by exactly two faces.
func (m *Mesh) IsWatertight() bool {
	if len(m.Faces) == 0 {
		return false
	}
	for _, c := range m.EdgeFaceCounts() {
		if c != 2 {
			return false
		}
	}
	return true
}

// NonManifoldEdges counts edges not shared by exactly two faces. Open
// boundary edges are included.
func (m *Mesh) NonManifoldEdges() int {
	n := 0
	for _, c := range m.EdgeFaceCounts() {
		if c != 2 {
			n++
		}
	}
	return n
}

// IsManifold reports whether the mesh is a closed 2-manifold surface.
func (m *Mesh) IsManifold() bool {
	return m.IsWatertight()
}

// boundaryLoops returns the open boundaries of m as vertex loops. A hole
// loop walks each boundary edge against the winding of the face that owns
// it, so a cap fanned along the loop matches the surrounding orientation.
func (m *Mesh) boundaryLoops() [][]int {
	directed := make(map[[2]int]bool, len(m.Faces)*3)
	for _, f := range m.Faces {
		for i := 0; i < 3; i++ {
			directed[[2]int{f[i], f[(i+1)%3]}] = true
		}
	}
	next := map[int]int{}
	for e := range directed {
		if !directed[[2]int{e[1], e[0]}] {
			// Boundary edge u->v; the hole continues v->u.
			next[e[1]] = e[0]
		}
	}

	var loops [][]int
	for len(next) > 0 {
		start := -1
		for k := range next {
			if start < 0 || k < start {
				start = k
			}
		}
		loop := []int{start}
		cur := start
		for {
			nv, ok := next[cur]
			delete(next, cur)
			if !ok || nv == start {
				break
			}
			loop = append(loop, nv)
			cur = nv
		}
		if len(loop) >= 3 {
			loops = append(loops, loop)
		}
	}
	return loops
}
