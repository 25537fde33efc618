package epa

import (
	"math"

	"github.com/akmonengine/xpbd/actor"
	"github.com/akmonengine/xpbd/gjk"
	"github.com/go-gl/mathgl/mgl64"
)

// DegenerateEpsilon is the per-axis magnitude under which a face normal is considered zero
const DegenerateEpsilon = 1e-9

// BarycentricEpsilon is the magnitude under which the barycentric denominator of a face
// is considered zero (near-degenerate triangle)
const BarycentricEpsilon = 1e-12

// Face is a triangle of the polytope, referencing its vertices by index
type Face struct {
	Indices  [3]int
	Normal   mgl64.Vec3 // unit, pointing away from the origin
	Distance float64    // distance from the origin to the face plane
}

// newFace builds the face (i0, i1, i2); its normal follows the winding
func newFace(points []gjk.SupportPoint, i0, i1, i2 int) Face {
	face := Face{Indices: [3]int{i0, i1, i2}}

	a := points[i0].Point()
	b := points[i1].Point()
	c := points[i2].Point()

	normal := b.Sub(a).Cross(c.Sub(a))
	if actor.IsZero(normal, DegenerateEpsilon) {
		// Flat triangle: perpendicular to one edge, in the plane of that edge and the first vertex
		edge := a.Sub(b)
		normal = edge.Cross(a).Cross(edge)
		if actor.IsZero(normal, DegenerateEpsilon) {
			normal = actor.Perpendicular(edge)
		}
	}

	face.Normal = actor.Normalize(normal)
	face.Distance = math.Abs(face.Normal.Dot(a))

	return face
}

// flip reverses the winding of the face
func (f Face) flip(points []gjk.SupportPoint) Face {
	return newFace(points, f.Indices[0], f.Indices[2], f.Indices[1])
}

// Barycentric returns the weights of p relative to the 3 vertices of the face.
// A near-degenerate face puts the whole weight on the third vertex.
func (f Face) Barycentric(points []gjk.SupportPoint, p mgl64.Vec3) mgl64.Vec3 {
	r1 := points[f.Indices[0]].Point()
	r2 := points[f.Indices[1]].Point()
	r3 := points[f.Indices[2]].Point()

	denominator := r1.Sub(r3).Cross(r2.Sub(r3)).Dot(f.Normal)
	if math.Abs(denominator) <= BarycentricEpsilon {
		return mgl64.Vec3{0, 0, 1}
	}

	u := p.Sub(r3).Cross(r2.Sub(r3)).Dot(f.Normal) / denominator
	v := p.Sub(r3).Cross(r3.Sub(r1)).Dot(f.Normal) / denominator

	return mgl64.Vec3{u, v, 1 - u - v}
}

// Witnesses interpolates the world points of each shape with the given weights
func (f Face) Witnesses(points []gjk.SupportPoint, weights mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	var pointA, pointB mgl64.Vec3
	for i, index := range f.Indices {
		pointA = pointA.Add(points[index].A.Mul(weights[i]))
		pointB = pointB.Add(points[index].B.Mul(weights[i]))
	}

	return pointA, pointB
}
