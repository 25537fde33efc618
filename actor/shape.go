package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ShapeType represents the type of collision shape
type ShapeType int

const (
	ShapeTypeSphere ShapeType = iota
	ShapeTypeBox
)

func (t ShapeType) String() string {
	switch t {
	case ShapeTypeSphere:
		return "sphere"
	case ShapeTypeBox:
		return "box"
	}
	return "unknown"
}

const (
	// DirectionEpsilon is the per-axis magnitude under which a direction is considered zero.
	DirectionEpsilon = 1e-9

	// FeatureTolerance is the magnitude under which a component of a normalized direction
	// is treated as perpendicular to a box axis when collecting a support feature.
	FeatureTolerance = 1e-3
)

// Shape is the interface that all convex collision shapes must implement.
// Every query is expressed in the shape's local frame; Collider handles the pose.
// Shapes are immutable once created.
type Shape interface {
	Type() ShapeType
	// BoundingSphereRadius is the radius of the smallest origin-centered sphere enclosing the shape
	BoundingSphereRadius() float64
	// Support returns the farthest local point along direction
	Support(direction mgl64.Vec3) mgl64.Vec3
	// SupportFeature returns every extreme local point along direction: a vertex,
	// an edge (2 points) or a face (4 points, in winding order)
	SupportFeature(direction mgl64.Vec3) []mgl64.Vec3
	// ComputeMass calculates the mass of the shape given a density
	ComputeMass(density float64) float64
	ComputeInertia(mass float64) mgl64.Mat3
}

// Box represents an oriented box collision shape
// The box is defined by its half-extents (half-width, half-height, half-depth)
type Box struct {
	halfExtents    mgl64.Vec3
	boundingRadius float64
}

// NewBox creates a box from its half extents. Negative extents are mirrored.
func NewBox(halfExtents mgl64.Vec3) *Box {
	halfExtents = mgl64.Vec3{math.Abs(halfExtents.X()), math.Abs(halfExtents.Y()), math.Abs(halfExtents.Z())}

	return &Box{
		halfExtents:    halfExtents,
		boundingRadius: halfExtents.Len(),
	}
}

func (b *Box) Type() ShapeType {
	return ShapeTypeBox
}

func (b *Box) HalfExtents() mgl64.Vec3 {
	return b.halfExtents
}

func (b *Box) BoundingSphereRadius() float64 {
	return b.boundingRadius
}

// ComputeMass calculates mass data for the box
func (b *Box) ComputeMass(density float64) float64 {
	// Volume = 8 * hx * hy * hz (full dimensions are 2*halfExtents)
	volume := 8.0 * b.halfExtents.X() * b.halfExtents.Y() * b.halfExtents.Z()

	return density * volume
}

func (b *Box) ComputeInertia(mass float64) mgl64.Mat3 {
	x := b.halfExtents.X() * 2
	y := b.halfExtents.Y() * 2
	z := b.halfExtents.Z() * 2

	// I = (m/12) * (d1² + d2²)
	factor := mass / 12.0

	return mgl64.Diag3(mgl64.Vec3{
		factor * (y*y + z*z),
		factor * (x*x + z*z),
		factor * (x*x + y*y),
	})
}

// Support picks the corner whose signs match the direction; a zero component counts as positive.
func (b *Box) Support(direction mgl64.Vec3) mgl64.Vec3 {
	hx, hy, hz := b.halfExtents.X(), b.halfExtents.Y(), b.halfExtents.Z()

	if direction.X() < 0 {
		hx = -hx
	}
	if direction.Y() < 0 {
		hy = -hy
	}
	if direction.Z() < 0 {
		hz = -hz
	}

	return mgl64.Vec3{hx, hy, hz}
}

func (b *Box) SupportFeature(direction mgl64.Vec3) []mgl64.Vec3 {
	if IsZero(direction, DirectionEpsilon) {
		return []mgl64.Vec3{b.Support(direction)}
	}
	dir := direction.Normalize()

	corner := b.Support(dir)
	var free []int
	for axis := 0; axis < 3; axis++ {
		if math.Abs(dir[axis]) < FeatureTolerance {
			free = append(free, axis)
		}
	}

	switch len(free) {
	case 1:
		a := free[0]
		p, q := corner, corner
		p[a], q[a] = -b.halfExtents[a], b.halfExtents[a]

		return []mgl64.Vec3{p, q}
	case 2:
		u, v := free[0], free[1]
		// Loop order around the face
		signs := [4][2]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
		face := make([]mgl64.Vec3, 0, 4)
		for _, s := range signs {
			p := corner
			p[u] = s[0] * b.halfExtents[u]
			p[v] = s[1] * b.halfExtents[v]
			face = append(face, p)
		}

		return face
	}

	return []mgl64.Vec3{corner}
}

// Sphere represents a spherical collision shape
type Sphere struct {
	radius float64
}

func NewSphere(radius float64) *Sphere {
	return &Sphere{radius: math.Abs(radius)}
}

func (s *Sphere) Type() ShapeType {
	return ShapeTypeSphere
}

func (s *Sphere) Radius() float64 {
	return s.radius
}

func (s *Sphere) BoundingSphereRadius() float64 {
	return s.radius
}

// ComputeMass calculates mass data for the sphere
func (s *Sphere) ComputeMass(density float64) float64 {
	// Volume of sphere = (4/3) * π * r³
	volume := (4.0 / 3.0) * math.Pi * math.Pow(s.radius, 3)

	return density * volume
}

func (s *Sphere) ComputeInertia(mass float64) mgl64.Mat3 {
	// I = (2/5) * m * r²
	i := (2.0 / 5.0) * mass * s.radius * s.radius

	return mgl64.Diag3(mgl64.Vec3{i, i, i})
}

// Support of a zero direction is the center
func (s *Sphere) Support(direction mgl64.Vec3) mgl64.Vec3 {
	if IsZero(direction, DirectionEpsilon) {
		return mgl64.Vec3{}
	}

	return direction.Normalize().Mul(s.radius)
}

func (s *Sphere) SupportFeature(direction mgl64.Vec3) []mgl64.Vec3 {
	return []mgl64.Vec3{s.Support(direction)}
}

// IsZero reports whether every component of v is smaller than epsilon in magnitude
func IsZero(v mgl64.Vec3, epsilon float64) bool {
	return math.Abs(v.X()) < epsilon && math.Abs(v.Y()) < epsilon && math.Abs(v.Z()) < epsilon
}

// Normalize returns the unit vector along v, or the zero vector when v has no usable length
func Normalize(v mgl64.Vec3) mgl64.Vec3 {
	length := v.Len()
	if length < 1e-12 || math.IsInf(length, 0) || math.IsNaN(length) {
		return mgl64.Vec3{}
	}

	return v.Mul(1.0 / length)
}

// Perpendicular returns a unit vector orthogonal to v, crossing v with its least aligned world axis
func Perpendicular(v mgl64.Vec3) mgl64.Vec3 {
	axis := mgl64.Vec3{1, 0, 0}
	ax, ay, az := math.Abs(v.X()), math.Abs(v.Y()), math.Abs(v.Z())
	if ay < ax && ay <= az {
		axis = mgl64.Vec3{0, 1, 0}
	} else if az < ax && az < ay {
		axis = mgl64.Vec3{0, 0, 1}
	}

	perpendicular := Normalize(v.Cross(axis))
	if perpendicular == (mgl64.Vec3{}) {
		return mgl64.Vec3{0, 0, 1}
	}

	return perpendicular
}
