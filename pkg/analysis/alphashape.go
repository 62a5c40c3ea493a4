package analysis

import (
	"fmt"
	"sort"

	"github.com/chazu/moldsmith/pkg/logging"
	"github.com/chazu/moldsmith/pkg/mesh"
	"github.com/chazu/moldsmith/pkg/polygon"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r2"
)

// DefaultAlpha is the alpha used when none is configured.
const DefaultAlpha = 0.1

// AlphaShape is a concave silhouette of a projected mesh. Alpha is 0 when
// the convex hull was used instead.
type AlphaShape struct {
	Points    [][2]float64 `json:"points"`
	Area      float64      `json:"area"`
	Perimeter float64      `json:"perimeter"`
	Alpha     float64      `json:"alphaValue"`
	// Fallback is why the convex hull was used, nil for a real alpha shape.
	Fallback error `json:"-"`
}

// Polygon returns the shape outline.
func (a *AlphaShape) Polygon() polygon.Polygon {
	if a == nil {
		return nil
	}
	return polygon.FromPoints(a.Points)
}

func newAlphaShape(p polygon.Polygon, alpha float64) *AlphaShape {
	return &AlphaShape{
		Points:    p.Points(),
		Area:      p.Area(),
		Perimeter: p.Perimeter(),
		Alpha:     alpha,
	}
}

// AlphaShapeBuilder computes alpha shapes through a geometry backend.
type AlphaShapeBuilder struct {
	Backend polygon.Backend
	ops     *polygon.Ops
}

// NewAlphaShapeBuilder returns a builder on b; nil selects the clipper
// backend.
func NewAlphaShapeBuilder(b polygon.Backend) *AlphaShapeBuilder {
	ops := polygon.NewOps(b)
	return &AlphaShapeBuilder{Backend: ops.Backend(), ops: ops}
}

// Build projects m along axis and returns its alpha shape. Triangles with
// circumradius below 1/alpha are kept and the outline of their union is
// walked. When that yields nothing usable the convex hull is returned
// with Alpha 0. Fewer than three distinct projected points give nil.
func (b *AlphaShapeBuilder) Build(m *mesh.Mesh, axis mesh.Axis, alpha float64) (*AlphaShape, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if alpha <= 0 {
		return nil, fmt.Errorf("analysis: alpha must be positive, got %v", alpha)
	}
	pts := polygon.Dedupe(m.ProjectVertices(axis))
	if len(pts) < 3 {
		return nil, nil
	}
	log := logging.Logger().WithFields(logrus.Fields{"axis": axis.String(), "alpha": alpha})

	outline, err := b.outline(pts, alpha)
	if err == nil {
		if cleaned := b.ops.Clean(outline); len(cleaned) >= 3 {
			return newAlphaShape(cleaned.CCW(), alpha), nil
		}
		err = fmt.Errorf("%w: outline vanished on cleanup", polygon.ErrDegenerate)
	}
	log.Debugf("analysis: alpha shape unavailable (%v), using convex hull", err)
	shape, herr := b.hull(pts)
	if shape != nil {
		shape.Fallback = err
	}
	return shape, herr
}

func (b *AlphaShapeBuilder) hull(pts []r2.Vec) (*AlphaShape, error) {
	h, err := b.Backend.ConvexHull(pts)
	if err != nil || len(h) < 3 {
		h = polygon.ConvexHull(pts)
	}
	if len(h) < 3 {
		return nil, nil
	}
	return newAlphaShape(h.CCW(), 0), nil
}

// outline returns the ordered boundary of the alpha complex of pts.
func (b *AlphaShapeBuilder) outline(pts []r2.Vec, alpha float64) (polygon.Polygon, error) {
	tris, err := b.Backend.Delaunay(pts)
	if err != nil {
		return nil, err
	}
	limit := 1 / alpha

	// An edge used by exactly one kept triangle is on the boundary.
	boundary := map[[2]int]bool{}
	for _, t := range tris {
		if polygon.Circumradius(pts[t[0]], pts[t[1]], pts[t[2]]) >= limit {
			continue
		}
		for k := 0; k < 3; k++ {
			e := edgeKey(t[k], t[(k+1)%3])
			if boundary[e] {
				delete(boundary, e)
			} else {
				boundary[e] = true
			}
		}
	}
	if len(boundary) == 0 {
		return nil, fmt.Errorf("%w: no triangle under circumradius %.3f", polygon.ErrDegenerate, limit)
	}

	order := walkBoundary(lo.Keys(boundary))
	if len(order) < 3 {
		return nil, fmt.Errorf("%w: boundary walk found %d points", polygon.ErrDegenerate, len(order))
	}
	return lo.Map(order, func(i int, _ int) r2.Vec { return pts[i] }), nil
}

func edgeKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// walkBoundary follows boundary edges from the lowest edge through unvisited
// neighbours until it closes or gets stuck.
func walkBoundary(edges [][2]int) []int {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i][0] != edges[j][0] {
			return edges[i][0] < edges[j][0]
		}
		return edges[i][1] < edges[j][1]
	})
	adj := map[int][]int{}
	for _, e := range edges {
		adj[e[0]] = append(adj[e[0]], e[1])
		adj[e[1]] = append(adj[e[1]], e[0])
	}

	start := edges[0][0]
	order := []int{start}
	visited := map[int]bool{start: true}
	cur := start
	for {
		next := -1
		for _, n := range adj[cur] {
			if !visited[n] {
				next = n
				break
			}
		}
		if next < 0 {
			break
		}
		order = append(order, next)
		visited[next] = true
		cur = next
	}
	return order
}
