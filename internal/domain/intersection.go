package domain

import "fmt"

// Intersection is a point on the toroidal street grid, 0 <= X,Y < citySize.
// Arithmetic that keeps an Intersection in range (wrapping) lives in
// package geometry; Intersection itself is a plain value.
type Intersection struct {
	X int
	Y int
}

// NewIntersection constructs an Intersection without wrapping; callers that
// need the torus invariant enforced should go through geometry.Wrap.
func NewIntersection(x, y int) Intersection {
	return Intersection{X: x, Y: y}
}

// IsEqual reports whether two intersections are the same point.
func (i Intersection) IsEqual(other Intersection) bool {
	return i.X == other.X && i.Y == other.Y
}

// String renders the intersection as "(x,y)" for logs and snapshots.
func (i Intersection) String() string {
	return fmt.Sprintf("(%d,%d)", i.X, i.Y)
}
