// Package epa implements the Expanding Polytope Algorithm for computing penetration depth.
//
// EPA is run after GJK detects a collision to determine:
//   - Penetration depth (how far shapes overlap)
//   - Contact normal (direction to separate shapes)
//   - Contact points (one world point on each shape)
//
// The algorithm expands a polytope (starting from GJK's final simplex) toward the boundary
// of the Minkowski difference B - A, until the face closest to the origin lies on that
// boundary. The face gives the minimum translation vector; the barycentric coordinates of the
// origin's projection on it recover the contact points from the witnesses of its vertices.
//
// References:
//   - Van den Bergen: "Proximity Queries and Penetration Depth Computation on 3D Game Objects" (2001)
package epa

import (
	"errors"

	"github.com/akmonengine/xpbd/actor"
	"github.com/akmonengine/xpbd/gjk"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// MaxIterations limits polytope expansion
	MaxIterations = 64

	// ConvergenceTolerance defines when EPA has converged: a new support point that improves
	// the distance of the closest face by no more than this means the face is on the boundary.
	ConvergenceTolerance = 1e-5
)

// ErrIterationLimit is returned with the best estimate when the expansion did not converge
var ErrIterationLimit = errors.New("epa: iteration limit reached")

// Contact is the penetration of shape A into shape B
type Contact struct {
	// Normal is the unit separation direction, pointing from B toward A
	Normal mgl64.Vec3
	// Depth is the penetration depth along Normal, always >= 0
	Depth float64
	// PointA and PointB are the world contact points on A and on B
	PointA mgl64.Vec3
	PointB mgl64.Vec3
}

// EPA computes the contact between two overlapping colliders from the simplex GJK confirmed.
//
// maxIterations <= 0 uses MaxIterations, tolerance <= 0 uses ConvergenceTolerance.
// When the iteration bound is reached, the contact built from the closest face found so far
// is returned together with ErrIterationLimit.
func EPA(a, b actor.Collider, simplex *gjk.Simplex, maxIterations int, tolerance float64) (Contact, error) {
	if maxIterations <= 0 {
		maxIterations = MaxIterations
	}
	if tolerance <= 0 {
		tolerance = ConvergenceTolerance
	}

	builder := polytopeBuilderPool.Get().(*PolytopeBuilder)
	defer polytopeBuilderPool.Put(builder)
	builder.Reset()

	if err := builder.BuildInitialFaces(simplex); err != nil {
		return Contact{}, err
	}

	converged := false
	for i := 0; i < maxIterations; i++ {
		closest := builder.Faces[builder.FindClosestFaceIndex()]

		support := gjk.Support(a, b, closest.Normal)
		if support.Point().Dot(closest.Normal)-closest.Distance <= tolerance {
			converged = true
			break
		}

		if !builder.AddPointAndRebuildFaces(support) {
			// The support point sees the whole polytope: nothing left to expand
			converged = true
			break
		}
	}

	contact := builder.contact(builder.Faces[builder.FindClosestFaceIndex()])
	if !converged {
		return contact, ErrIterationLimit
	}

	return contact, nil
}

// contact recovers the contact from the face closest to the origin
func (b *PolytopeBuilder) contact(face Face) Contact {
	projection := face.Normal.Mul(face.Distance)
	weights := face.Barycentric(b.Points, projection)
	pointA, pointB := face.Witnesses(b.Points, weights)

	return Contact{
		Normal: face.Normal,
		Depth:  face.Distance,
		PointA: pointA,
		PointB: pointB,
	}
}
