// Package gjk implements the Gilbert-Johnson-Keerthi (GJK) intersection test.
//
// GJK detects whether two convex shapes overlap by testing if their Minkowski difference
// (B - A) contains the origin. This variant builds a full tetrahedron from the centers of the
// two shapes, then keeps replacing the vertex opposite any face that still sees the origin
// until every face encloses it or a support point proves the shapes are separated.
//
// References:
//   - Gilbert, Johnson, Keerthi: "A Fast Procedure for Computing the Distance Between
//     Complex Objects in Three-Dimensional Space" (1988)
//   - Van den Bergen: "Collision Detection in Interactive 3D Environments" (2003)
package gjk

import (
	"errors"
	"sync"

	"github.com/akmonengine/xpbd/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// MaxIterations is the default bound of the refinement loop
const MaxIterations = 64

// CollinearEpsilon is the per-axis magnitude under which the first triangle is considered flat
const CollinearEpsilon = 1e-9

// ErrIterationLimit is returned alongside false when the refinement loop hits its bound
// without confirming or rejecting the intersection.
var ErrIterationLimit = errors.New("gjk: iteration limit reached")

// SupportPoint is a point of the Minkowski difference B - A that remembers
// the two world points (one per shape) it was built from.
type SupportPoint struct {
	A mgl64.Vec3 // witness on shape A
	B mgl64.Vec3 // witness on shape B
}

// Point returns the position of the support point in Minkowski space
func (p SupportPoint) Point() mgl64.Vec3 {
	return p.B.Sub(p.A)
}

// Simplex is the tetrahedron GJK builds around the origin.
// It only describes the overlap (and seeds EPA) when GJK returned true.
type Simplex struct {
	Points [4]SupportPoint
	Count  int
}

func (s *Simplex) Reset() {
	s.Count = 0
}

var SimplexPool = sync.Pool{
	New: func() interface{} {
		return &Simplex{}
	},
}

// Support computes the support point of the Minkowski difference B - A along direction:
// the farthest point of B along direction minus the farthest point of A along -direction.
func Support(a, b actor.Collider, direction mgl64.Vec3) SupportPoint {
	return SupportPoint{
		A: a.SupportWorld(direction.Mul(-1)),
		B: b.SupportWorld(direction),
	}
}

// GJK reports whether the two colliders overlap.
// The simplex is filled in place; its 4 points enclose the origin when the result is true.
// maxIterations <= 0 uses MaxIterations. Exceeding the bound reports no intersection
// together with ErrIterationLimit so the caller can log it.
func GJK(a, b actor.Collider, simplex *Simplex, maxIterations int) (bool, error) {
	if maxIterations <= 0 {
		maxIterations = MaxIterations
	}
	s := &simplex.Points
	simplex.Reset()

	// 1. The difference of the centers lies inside B - A
	s[0] = SupportPoint{A: a.Transform.Position, B: b.Transform.Position}
	simplex.Count = 1

	direction := mgl64.Vec3{0, 0, 1}
	if !actor.IsZero(s[0].Point(), CollinearEpsilon) {
		direction = actor.Normalize(s[0].Point().Mul(-1))
	}

	// 2. Toward the origin from the first point
	s[1] = Support(a, b, direction)
	simplex.Count = 2
	if s[1].Point().Dot(direction) < 0 {
		return false, nil
	}

	direction = actor.Normalize(s[1].Point().Mul(-1))
	if direction == (mgl64.Vec3{}) {
		// The origin lies on the boundary: touching, not overlapping
		return false, nil
	}

	// 3. Toward the origin from the second point, away from the line if the 3 points are collinear
	s[2] = Support(a, b, direction)
	simplex.Count = 3

	normal := s[1].Point().Sub(s[0].Point()).Cross(s[2].Point().Sub(s[0].Point()))
	if actor.IsZero(normal, CollinearEpsilon) {
		p0, p1 := s[0].Point(), s[1].Point()
		permuted := mgl64.Vec3{p1.Y(), p1.Z(), p1.X()}
		direction = actor.Normalize(p0.Mul(-1).Cross(p1.Mul(-1).Add(permuted)))
		if direction == (mgl64.Vec3{}) {
			direction = actor.Perpendicular(p1.Sub(p0))
		}
		s[2] = Support(a, b, direction)
	}
	if s[2].Point().Dot(direction) < 0 {
		return false, nil
	}

	// 4. Along the normal of the first triangle, wound so that it faces away from point 1
	normal = s[1].Point().Sub(s[0].Point()).Cross(s[2].Point().Sub(s[0].Point()))
	if normal.Dot(s[0].Point()) > 0 {
		s[0], s[1] = s[1], s[0]
		normal = s[1].Point().Sub(s[0].Point()).Cross(s[2].Point().Sub(s[0].Point()))
	}
	direction = actor.Normalize(normal)
	if direction == (mgl64.Vec3{}) {
		return false, nil
	}
	s[3] = Support(a, b, direction)
	simplex.Count = 4
	if s[3].Point().Dot(direction) <= 0 {
		return false, nil
	}

	// 5. Only the faces sharing the newest point are checked against the origin;
	// the face opposite it already encloses the origin
	lastCorrected := 3
	for i := 0; i < maxIterations; i++ {
		order := lastCorrected%2 == 0
		corrected := false

		for j := 0; j < 3; j++ {
			base := lastCorrected
			second := (base + j + 1) % 4
			winding := j + 1
			if order {
				winding = j - 1
			}
			winding %= 3
			if winding < 0 {
				winding += 3
			}
			third := (base + winding + 1) % 4

			normal = s[second].Point().Sub(s[base].Point()).Cross(s[third].Point().Sub(s[base].Point()))
			if normal.Dot(s[base].Point()) >= 0 {
				continue
			}

			// The origin is outside this face: replace the opposite point
			unused := 6 - (base + second + third)
			s[second], s[third] = s[third], s[second]

			direction = actor.Normalize(normal)
			s[unused] = Support(a, b, direction)
			lastCorrected = unused

			if s[unused].Point().Dot(direction) <= 0 {
				return false, nil
			}

			corrected = true
			break
		}

		if !corrected {
			return true, nil
		}
	}

	return false, ErrIterationLimit
}
