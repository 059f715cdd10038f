package simplify

import (
	"math"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
)

// segment is one edge of a ring, indexed for the intersection search.
type segment struct {
	ring  int // index across every ring of the geometry
	pos   int // edge position within the ring
	edges int // edge count of the ring
	a, b  orb.Point
	rect  rtreego.Rect
}

// Bounds implements rtreego.Spatial.
func (s *segment) Bounds() rtreego.Rect {
	return s.rect
}

// checkCrossings reports whether any two edges of mp intersect where they
// should not: non-adjacent edges of the same ring may not touch, and edges of
// different rings may not cross.
func checkCrossings(mp orb.MultiPolygon) error {
	segs := segments(mp)
	if len(segs) < 2 {
		return nil
	}

	tree := rtreego.NewTree(2, 25, 50)
	for _, s := range segs {
		tree.Insert(s)
	}

	for _, s := range segs {
		for _, hit := range tree.SearchIntersect(s.rect) {
			o := hit.(*segment)
			if o == s || !less(s, o) {
				continue
			}
			if s.ring == o.ring {
				if adjacent(s, o) {
					continue
				}
				if intersects(s.a, s.b, o.a, o.b) {
					return eris.Errorf("ring %d intersects itself at edges %d and %d", s.ring, s.pos, o.pos)
				}
				continue
			}
			if crosses(s.a, s.b, o.a, o.b) {
				return eris.Errorf("rings %d and %d cross", s.ring, o.ring)
			}
		}
	}
	return nil
}

func segments(mp orb.MultiPolygon) []*segment {
	pad := padding(mp.Bound())

	var out []*segment
	ringIdx := 0
	for _, p := range mp {
		for _, r := range p {
			r = dedupe(r)
			edges := len(r) - 1
			for i := 0; i < edges; i++ {
				a, b := r[i], r[i+1]
				rect, err := rtreego.NewRectFromPoints(
					rtreego.Point{math.Min(a[0], b[0]) - pad, math.Min(a[1], b[1]) - pad},
					rtreego.Point{math.Max(a[0], b[0]) + pad, math.Max(a[1], b[1]) + pad},
				)
				if err != nil {
					continue
				}
				out = append(out, &segment{ring: ringIdx, pos: i, edges: edges, a: a, b: b, rect: rect})
			}
			ringIdx++
		}
	}
	return out
}

// dedupe drops consecutive repeated points so every edge has length.
func dedupe(r orb.Ring) orb.Ring {
	out := make(orb.Ring, 0, len(r))
	for i, p := range r {
		if i > 0 && p.Equal(out[len(out)-1]) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// padding widens segment boxes so that touching edges overlap in the tree,
// which treats shared boundaries as disjoint.
func padding(b orb.Bound) float64 {
	scale := math.Max(math.Max(math.Abs(b.Min[0]), math.Abs(b.Max[0])), math.Max(math.Abs(b.Min[1]), math.Abs(b.Max[1])))
	return 1e-9 * (1 + scale)
}

func less(s, o *segment) bool {
	if s.ring != o.ring {
		return s.ring < o.ring
	}
	return s.pos < o.pos
}

// adjacent reports whether two edges of the same closed ring share a vertex.
func adjacent(s, o *segment) bool {
	d := o.pos - s.pos
	if d < 0 {
		d = -d
	}
	return d == 1 || d == s.edges-1
}

func orientation(p, q, r orb.Point) int {
	v := (q[0]-p[0])*(r[1]-p[1]) - (q[1]-p[1])*(r[0]-p[0])
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func onSegment(p, q, r orb.Point) bool {
	return math.Min(p[0], q[0]) <= r[0] && r[0] <= math.Max(p[0], q[0]) &&
		math.Min(p[1], q[1]) <= r[1] && r[1] <= math.Max(p[1], q[1])
}

// intersects reports whether segments ab and cd share any point.
func intersects(a, b, c, d orb.Point) bool {
	o1, o2 := orientation(a, b, c), orientation(a, b, d)
	o3, o4 := orientation(c, d, a), orientation(c, d, b)

	if o1 != o2 && o3 != o4 {
		return true
	}
	return (o1 == 0 && onSegment(a, b, c)) ||
		(o2 == 0 && onSegment(a, b, d)) ||
		(o3 == 0 && onSegment(c, d, a)) ||
		(o4 == 0 && onSegment(c, d, b))
}

// crosses reports whether the interiors of ab and cd pass through each
// other. Touching at a vertex and collinear overlap do not count.
func crosses(a, b, c, d orb.Point) bool {
	o1, o2 := orientation(a, b, c), orientation(a, b, d)
	o3, o4 := orientation(c, d, a), orientation(c, d, b)
	return o1*o2 < 0 && o3*o4 < 0
}
