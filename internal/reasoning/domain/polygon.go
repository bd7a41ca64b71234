package domain

import "math"

// Polygon is a closed region given as an ordered list of vertices in
// pixel coordinates. The edge between the last and first point is
// implicit.
type Polygon struct {
	Points []Point `json:"points"`
}

// Contains reports whether p lies inside the polygon using a ray-casting
// test. Points exactly on an edge are treated as inside, per §4.4.
func (poly Polygon) Contains(p Point) bool {
	if onBoundary(poly, p) {
		return true
	}

	inside := false
	n := len(poly.Points)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := poly.Points[i], poly.Points[j]
		if (pi.Y > p.Y) != (pj.Y > p.Y) {
			xIntersect := pj.X + (p.Y-pj.Y)*(pi.X-pj.X)/(pi.Y-pj.Y)
			if p.X < xIntersect {
				inside = !inside
			}
		}
	}
	return inside
}

func onBoundary(poly Polygon, p Point) bool {
	n := len(poly.Points)
	const eps = 1e-9
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := poly.Points[j], poly.Points[i]
		cross := (p.X-a.X)*(b.Y-a.Y) - (p.Y-a.Y)*(b.X-a.X)
		if math.Abs(cross) > eps {
			continue
		}
		if p.X < math.Min(a.X, b.X)-eps || p.X > math.Max(a.X, b.X)+eps {
			continue
		}
		if p.Y < math.Min(a.Y, b.Y)-eps || p.Y > math.Max(a.Y, b.Y)+eps {
			continue
		}
		return true
	}
	return false
}

// Area computes the polygon area via the shoelace formula.
func (poly Polygon) Area() float64 {
	n := len(poly.Points)
	if n < 3 {
		return 0
	}
	sum := 0.0
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := poly.Points[i], poly.Points[j]
		sum += pj.X*pi.Y - pi.X*pj.Y
	}
	return math.Abs(sum) / 2
}

// Centroid returns the polygon's geometric center (vertex average; exact
// area-weighted centroid is unnecessary precision for zone bookkeeping).
func (poly Polygon) Centroid() Point {
	if len(poly.Points) == 0 {
		return Point{}
	}
	var sx, sy float64
	for _, p := range poly.Points {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(poly.Points))
	return Point{X: sx / n, Y: sy / n}
}

// BoundingBox returns the axis-aligned bounding box enclosing the polygon.
func (poly Polygon) BoundingBox() Rectangle {
	if len(poly.Points) == 0 {
		return Rectangle{}
	}
	r := Rectangle{X1: math.MaxFloat64, Y1: math.MaxFloat64, X2: -math.MaxFloat64, Y2: -math.MaxFloat64}
	for _, p := range poly.Points {
		r.X1 = math.Min(r.X1, p.X)
		r.Y1 = math.Min(r.Y1, p.Y)
		r.X2 = math.Max(r.X2, p.X)
		r.Y2 = math.Max(r.Y2, p.Y)
	}
	return r
}

// Validate reports an error if the polygon cannot represent a valid zone:
// fewer than 3 vertices, or a zero/negative area (degenerate polygon).
func (poly Polygon) Validate() error {
	if len(poly.Points) < 3 {
		return newZoneConfigError("polygon must have at least 3 points")
	}
	if poly.Area() <= 0 {
		return newZoneConfigError("polygon has zero area")
	}
	return nil
}

// Distance is the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Hypot(dx, dy)
}
