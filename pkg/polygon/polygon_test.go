package polygon

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

// cross returns a plus-shaped ring centered on the origin: arms 10 wide,
// 40 long end to end. Area 700.
func cross() Polygon {
	return FromPoints([][2]float64{
		{-5, -20}, {5, -20}, {5, -5}, {20, -5}, {20, 5}, {5, 5},
		{5, 20}, {-5, 20}, {-5, 5}, {-20, 5}, {-20, -5}, {-5, -5},
	})
}

func backends() map[string]Backend {
	return map[string]Backend{
		BackendClipper: NewClipperBackend(),
		BackendPlain:   NewPlainBackend(),
	}
}

func TestArea(t *testing.T) {
	sq := Rectangle(0, 0, 10, 4)
	assert.InDelta(t, 40, sq.Area(), 1e-9)
	assert.InDelta(t, 40, sq.SignedArea(), 1e-9, "rectangle is counter-clockwise")
	assert.InDelta(t, -40, sq.Reversed().SignedArea(), 1e-9)
	assert.InDelta(t, 28, sq.Perimeter(), 1e-9)
	assert.InDelta(t, 700, cross().Area(), 1e-9)

	c := Rectangle(3, -2, 4, 4).Centroid()
	assert.InDelta(t, 3, c.X, 1e-9)
	assert.InDelta(t, -2, c.Y, 1e-9)
}

func TestMirrorInvolution(t *testing.T) {
	polys := []Polygon{
		cross(),
		Rectangle(1, 2, 3, 4),
		FromPoints([][2]float64{{0, -3}, {7, -1}, {4, 6}, {-2, 2.5}}),
	}
	for _, p := range polys {
		m := Mirror(p)
		assert.Equal(t, p, Mirror(m))
		assert.InDelta(t, p.SignedArea(), m.SignedArea(), 1e-9, "winding preserved")
		for i, v := range p {
			mv := m[len(m)-1-i]
			assert.Equal(t, v.X, mv.X)
			assert.Equal(t, -v.Y, mv.Y)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		p     Polygon
		valid bool
	}{
		{"empty", nil, false},
		{"two points", FromPoints([][2]float64{{0, 0}, {1, 1}}), false},
		{"bowtie", FromPoints([][2]float64{{0, 0}, {10, 10}, {10, 0}, {0, 10}}), false},
		{"sliver", FromPoints([][2]float64{{0, 0}, {10, 0}, {10, 0.0005}}), false},
		{"square", Rectangle(0, 0, 2, 2), true},
		{"cross", cross(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, err := Validate(tt.p)
			assert.NotEmpty(t, reason)
			if tt.valid {
				assert.NoError(t, err)
				assert.Contains(t, reason, "valid (area=")
			} else {
				assert.ErrorIs(t, err, ErrDegenerate)
			}
		})
	}
}

func TestCircumradius(t *testing.T) {
	tests := []struct {
		name    string
		a, b, c r2.Vec
		want    float64
	}{
		{"right 3-4-5", r2.Vec{}, r2.Vec{X: 3}, r2.Vec{Y: 4}, 2.5},
		{"equilateral", r2.Vec{}, r2.Vec{X: 2}, r2.Vec{X: 1, Y: math.Sqrt(3)}, 2 / math.Sqrt(3)},
		{"collinear", r2.Vec{}, r2.Vec{X: 1}, r2.Vec{X: 2}, math.Inf(1)},
		{"coincident", r2.Vec{X: 1}, r2.Vec{X: 1}, r2.Vec{X: 1}, math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Circumradius(tt.a, tt.b, tt.c)
			if math.IsInf(tt.want, 1) {
				assert.True(t, math.IsInf(got, 1), "got %v", got)
				return
			}
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestConvexHull(t *testing.T) {
	pts := []r2.Vec{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 4}, {X: 0, Y: 4}, {X: 2, Y: 2}, {X: 1, Y: 3}, {X: 4, Y: 4}}
	hull := ConvexHull(pts)
	require.Len(t, hull, 4)
	assert.InDelta(t, 16, hull.SignedArea(), 1e-9)

	assert.Nil(t, ConvexHull([]r2.Vec{{X: 0}, {X: 1}, {X: 2}}), "collinear")

	for name, b := range backends() {
		t.Run(name, func(t *testing.T) {
			h, err := b.ConvexHull(pts)
			require.NoError(t, err)
			assert.InDelta(t, 16, h.Area(), 1e-9)
		})
	}
}

func TestOffsetRoundTrip(t *testing.T) {
	convex := []Polygon{
		Rectangle(0, 0, 20, 10),
		FromPoints([][2]float64{{10, 0}, {5, 8.66}, {-5, 8.66}, {-10, 0}, {-5, -8.66}, {5, -8.66}}),
	}
	for name, b := range backends() {
		ops := NewOps(b)
		for i, p := range convex {
			for _, d := range []float64{0.5, 2} {
				grown := ops.Offset(p, d)
				assert.Greater(t, grown.Area(), p.Area(), "%s #%d grow %v", name, i, d)
				back := ops.Offset(grown, -d)
				assert.InDelta(t, p.Area(), back.Area(), 0.01*p.Area(), "%s #%d round trip %v", name, i, d)
			}
		}
	}
}

func TestClipToHalfPlanePartitionsArea(t *testing.T) {
	polys := []Polygon{
		cross(),
		Rectangle(0, 1, 6, 8),
		FromPoints([][2]float64{{0, -3}, {7, -1}, {4, 6}, {-2, 2.5}}),
	}
	for name, b := range backends() {
		ops := NewOps(b)
		for i, p := range polys {
			left := ops.ClipToHalfPlane(p, 0, true)
			right := ops.ClipToHalfPlane(p, 0, false)
			require.NotNil(t, left, "%s #%d", name, i)
			require.NotNil(t, right, "%s #%d", name, i)
			assert.InDelta(t, p.Area(), left.Area()+right.Area(), 1e-3, "%s #%d", name, i)

			lmin, lmax := left.Bounds()
			assert.LessOrEqual(t, lmax.Y, 1e-9)
			assert.Less(t, lmin.Y, 0.0)
			rmin, _ := right.Bounds()
			assert.GreaterOrEqual(t, rmin.Y, -1e-9)
		}
	}
}

func TestClipToHalfPlaneMissesPolygon(t *testing.T) {
	ops := NewOps(NewClipperBackend())
	assert.Nil(t, ops.ClipToHalfPlane(Rectangle(0, 10, 4, 4), 0, true))
	assert.Nil(t, NewOps(NewPlainBackend()).ClipToHalfPlane(Rectangle(0, 10, 4, 4), 0, true))
}

// noBoolean is a backend whose boolean operations always fail.
type noBoolean struct{ *PlainBackend }

func (noBoolean) Boolean(op BooleanOp, a, c Polygon) ([]Polygon, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, op)
}

func TestClipToHalfPlaneWithoutBoolean(t *testing.T) {
	ops := NewOps(noBoolean{NewPlainBackend()})
	tests := []struct {
		name      string
		p         Polygon
		keepBelow bool
		want      float64
	}{
		{"cross below", cross(), true, 350},
		{"cross above", cross(), false, 350},
		{"rectangle below", Rectangle(0, 1, 6, 8), true, 18},
		{"rectangle above", Rectangle(0, 1, 6, 8), false, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ops.ClipToHalfPlane(tt.p, 0, tt.keepBelow)
			require.NotNil(t, got)
			assert.InDelta(t, tt.want, got.Area(), 1e-9)
			min, max := got.Bounds()
			if tt.keepBelow {
				assert.LessOrEqual(t, max.Y, 0.0)
			} else {
				assert.GreaterOrEqual(t, min.Y, 0.0)
			}
		})
	}
	assert.Nil(t, ops.ClipToHalfPlane(Rectangle(0, 10, 4, 4), 0, true), "no overlap")
}

func TestSingleEdgeClip(t *testing.T) {
	got := clipHalfPlane(cross(), 0, true)
	assert.InDelta(t, 350, got.Area(), 1e-9)
	got = clipHalfPlane(cross(), 0, false)
	assert.InDelta(t, 350, got.Area(), 1e-9)
}

func TestUnion(t *testing.T) {
	ops := NewOps(NewClipperBackend())
	u, err := ops.Union(Rectangle(5, 5, 10, 10), Rectangle(10, 5, 10, 10))
	require.NoError(t, err)
	assert.InDelta(t, 150, u.Area(), 1e-6)

	_, err = NewOps(NewPlainBackend()).Union(Rectangle(0, 0, 1, 1), Rectangle(1, 0, 1, 1))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestClean(t *testing.T) {
	ops := NewOps(NewClipperBackend())
	c := ops.Clean(cross())
	assert.InDelta(t, 700, c.Area(), 1e-3)

	bowtie := FromPoints([][2]float64{{0, 0}, {10, 10}, {10, 0}, {0, 10}})
	cleaned := ops.Clean(bowtie)
	_, err := Validate(cleaned)
	assert.NoError(t, err)
	assert.InDelta(t, 25, cleaned.Area(), 1e-3)
}

func TestDelaunay(t *testing.T) {
	pts := []r2.Vec{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}
	tris, err := NewClipperBackend().Delaunay(pts)
	require.NoError(t, err)
	assert.Len(t, tris, 2)

	_, err = NewPlainBackend().Delaunay(pts)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestSelectBackend(t *testing.T) {
	b, err := SelectBackend("")
	require.NoError(t, err)
	assert.Equal(t, BackendClipper, b.Name())

	b, err = SelectBackend(BackendPlain)
	require.NoError(t, err)
	assert.Equal(t, BackendPlain, b.Name())

	_, err = SelectBackend("shapely")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestUnionAll(t *testing.T) {
	// Two halves of a square, one wound clockwise.
	a := FromPoints([][2]float64{{0, 0}, {10, 0}, {10, 10}})
	b := FromPoints([][2]float64{{0, 0}, {0, 10}, {10, 10}})
	out, err := UnionAll([]Polygon{a, b, FromPoints([][2]float64{{0, 0}, {1, 1}, {2, 2}})})
	require.NoError(t, err)
	assert.InDelta(t, 100, Largest(out).Area(), 1e-6)

	_, err = UnionAll(nil)
	assert.ErrorIs(t, err, ErrDegenerate)
}
