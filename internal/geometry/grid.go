// Package geometry implements the toroidal street grid arithmetic shared by
// every component that moves a vehicle or places a trip endpoint: distance,
// one-block stepping, and biased random intersection sampling.
package geometry

import (
	"math"
	"math/rand"

	"github.com/tomslee/ridehail-sim/internal/domain"
)

// Grid wraps a city_size and provides the toroidal operations of spec
// section 4.1. city_size must be a positive even integer; callers validate
// that at configuration time (internal/infra/config).
type Grid struct {
	citySize int
}

// New constructs a Grid for the given city_size.
func New(citySize int) *Grid {
	return &Grid{citySize: citySize}
}

// CitySize returns the configured grid side length.
func (g *Grid) CitySize() int {
	return g.citySize
}

// wrap folds a coordinate back into [0, citySize).
func (g *Grid) wrap(v int) int {
	v %= g.citySize
	if v < 0 {
		v += g.citySize
	}
	return v
}

// Wrap normalizes an intersection's coordinates onto the torus.
func (g *Grid) Wrap(i domain.Intersection) domain.Intersection {
	return domain.NewIntersection(g.wrap(i.X), g.wrap(i.Y))
}

// axisDistance returns the wrapped taxicab distance along one axis.
func (g *Grid) axisDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if other := g.citySize - d; other < d {
		return other
	}
	return d
}

// Distance returns the taxicab distance between a and b on the torus.
func (g *Grid) Distance(a, b domain.Intersection) int {
	return g.axisDistance(a.X, b.X) + g.axisDistance(a.Y, b.Y)
}

// Step advances location one block along direction, wrapping at the edges.
func (g *Grid) Step(location domain.Intersection, direction domain.Direction) domain.Intersection {
	dx, dy := direction.Delta()
	return g.Wrap(domain.NewIntersection(location.X+dx, location.Y+dy))
}

// RandomIntersection draws a single intersection. When inhomogeneity is 0
// the draw is uniform; otherwise each coordinate is drawn from a
// symmetric triangular distribution centered on the grid midpoint whose
// concentration scales linearly with inhomogeneity in [0,1].
func RandomIntersection(rng *rand.Rand, citySize int, inhomogeneity float64) domain.Intersection {
	return domain.NewIntersection(
		biasedCoordinate(rng, citySize, inhomogeneity),
		biasedCoordinate(rng, citySize, inhomogeneity),
	)
}

// biasedCoordinate draws one coordinate in [0, citySize). At
// inhomogeneity == 0 it is a uniform draw; as inhomogeneity -> 1 the draw
// concentrates toward the midpoint by averaging two uniform draws and
// blending that (triangular, center-biased) sample against the uniform
// one in proportion to inhomogeneity.
func biasedCoordinate(rng *rand.Rand, citySize int, inhomogeneity float64) int {
	uniform := rng.Intn(citySize)
	if inhomogeneity <= 0 {
		return uniform
	}

	a := rng.Float64() * float64(citySize)
	b := rng.Float64() * float64(citySize)
	triangular := (a + b) / 2

	blended := inhomogeneity*triangular + (1-inhomogeneity)*float64(uniform)
	v := int(math.Floor(blended))
	if v < 0 {
		v = 0
	}
	if v >= citySize {
		v = citySize - 1
	}
	return v
}

// RandomTripEndpoints draws an (origin, destination) pair honoring
// min_trip_distance / max_trip_distance, retrying until a valid pair is
// found or maxAttempts is exhausted. maxAttempts <= 0 uses the package
// default bound.
func (g *Grid) RandomTripEndpoints(rng *rand.Rand, inhomogeneity float64, minTripDistance int, maxTripDistance int, maxAttempts int) (origin, destination domain.Intersection, ok bool) {
	if maxAttempts <= 0 {
		maxAttempts = 1000
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		o := RandomIntersection(rng, g.citySize, inhomogeneity)
		d := RandomIntersection(rng, g.citySize, inhomogeneity)
		if o.IsEqual(d) {
			continue
		}
		dist := g.Distance(o, d)
		if dist < minTripDistance {
			continue
		}
		if maxTripDistance > 0 && dist > maxTripDistance {
			continue
		}
		return o, d, true
	}
	return domain.Intersection{}, domain.Intersection{}, false
}
