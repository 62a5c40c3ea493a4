package polygon

import "gonum.org/v1/gonum/spatial/r2"

// clipHalfPlane clips p against the horizontal line y = bound with a single
// Sutherland-Hodgman pass. keepBelow keeps the y <= bound side.
func clipHalfPlane(p Polygon, bound float64, keepBelow bool) Polygon {
	if len(p) == 0 {
		return nil
	}
	inside := func(v r2.Vec) bool {
		if keepBelow {
			return v.Y <= bound
		}
		return v.Y >= bound
	}
	cross := func(a, b r2.Vec) r2.Vec {
		t := (bound - a.Y) / (b.Y - a.Y)
		return r2.Vec{X: a.X + t*(b.X-a.X), Y: bound}
	}

	out := make(Polygon, 0, len(p)+2)
	prev := p[len(p)-1]
	for _, cur := range p {
		switch {
		case inside(cur) && inside(prev):
			out = append(out, cur)
		case inside(cur):
			out = append(out, cross(prev, cur), cur)
		case inside(prev):
			out = append(out, cross(prev, cur))
		}
		prev = cur
	}
	return dropRepeats(out)
}

// clipConvex clips subject against a convex clip ring (any winding).
func clipConvex(subject, clip Polygon) Polygon {
	clip = clip.CCW()
	out := subject.Clone()
	for i := range clip {
		if len(out) == 0 {
			return nil
		}
		a, b := clip[i], clip[(i+1)%len(clip)]
		in := func(v r2.Vec) bool { return orient(a, b, v) >= 0 }
		input := out
		out = make(Polygon, 0, len(input)+2)
		prev := input[len(input)-1]
		for _, cur := range input {
			switch {
			case in(cur) && in(prev):
				out = append(out, cur)
			case in(cur):
				out = append(out, lineCross(prev, cur, a, b), cur)
			case in(prev):
				out = append(out, lineCross(prev, cur, a, b))
			}
			prev = cur
		}
	}
	return dropRepeats(out)
}

// lineCross intersects segment p-q with the infinite line a-b.
func lineCross(p, q, a, b r2.Vec) r2.Vec {
	d1 := orient(a, b, p)
	d2 := orient(a, b, q)
	t := d1 / (d1 - d2)
	return r2.Add(p, r2.Scale(t, r2.Sub(q, p)))
}

func dropRepeats(p Polygon) Polygon {
	if len(p) == 0 {
		return p
	}
	out := make(Polygon, 0, len(p))
	for i, v := range p {
		if i > 0 && v == out[len(out)-1] {
			continue
		}
		out = append(out, v)
	}
	if len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}
