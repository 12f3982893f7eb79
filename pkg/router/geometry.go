package router

import (
	"math"

	"github.com/OpenTraceLab/kbmatrix/pkg/kicad/sexp"
)

const eps = 1e-6

// pointSegmentDist returns the distance from p to the segment ab.
func pointSegmentDist(p, a, b sexp.Position) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 < eps*eps {
		return p.Dist(a)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return p.Dist(sexp.Position{X: a.X + t*dx, Y: a.Y + t*dy})
}

// segmentDist returns the distance between segments ab and cd.
func segmentDist(a, b, c, d sexp.Position) float64 {
	if segmentsIntersect(a, b, c, d) {
		return 0
	}
	return math.Min(
		math.Min(pointSegmentDist(a, c, d), pointSegmentDist(b, c, d)),
		math.Min(pointSegmentDist(c, a, b), pointSegmentDist(d, a, b)),
	)
}

func cross(o, a, b sexp.Position) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

func segmentsIntersect(a, b, c, d sexp.Position) bool {
	d1 := cross(c, d, a)
	d2 := cross(c, d, b)
	d3 := cross(a, b, c)
	d4 := cross(a, b, d)
	return ((d1 > eps && d2 < -eps) || (d1 < -eps && d2 > eps)) &&
		((d3 > eps && d4 < -eps) || (d3 < -eps && d4 > eps))
}
