package xpbd

import (
	"errors"
	"math"

	"github.com/akmonengine/xpbd/actor"
	"github.com/akmonengine/xpbd/constraint"
	"github.com/akmonengine/xpbd/epa"
	"github.com/akmonengine/xpbd/gjk"
	"github.com/go-gl/mathgl/mgl64"
)

// coincidentEpsilon is the center distance under which two spheres use a fixed normal
const coincidentEpsilon = 1e-12

// AreColliding runs GJK alone on the current poses of two bodies
func (s *Simulation) AreColliding(a, b BodyID) (bool, error) {
	bodyA, err := s.Body(a)
	if err != nil {
		return false, err
	}
	bodyB, err := s.Body(b)
	if err != nil {
		return false, err
	}

	simplex := gjk.SimplexPool.Get().(*gjk.Simplex)
	defer gjk.SimplexPool.Put(simplex)

	colliding, err := gjk.GJK(bodyA.Collider(), bodyB.Collider(), simplex, s.Config.GJKMaxIterations)
	if err != nil {
		s.Stats.GJKIterationLimit++
		s.logf("xpbd: bodies %d and %d: %v", a, b, err)
	}

	return colliding, nil
}

// GetPenetration computes the contact of two bodies at their current poses.
// ok is false when they do not overlap, or when both are static.
func (s *Simulation) GetPenetration(a, b BodyID) (penetration constraint.PenetrationConstraint, ok bool, err error) {
	if _, err := s.Body(a); err != nil {
		return penetration, false, err
	}
	if _, err := s.Body(b); err != nil {
		return penetration, false, err
	}
	if a == b {
		return penetration, false, nil
	}

	penetration, ok = s.getPenetration(a, b)

	return penetration, ok, nil
}

func (s *Simulation) getPenetration(a, b BodyID) (constraint.PenetrationConstraint, bool) {
	bodyA, bodyB := &s.Bodies[a], &s.Bodies[b]

	if bodyA.IsStatic() && bodyB.IsStatic() {
		s.Stats.StaticPairRequests++
		s.logf("xpbd: penetration requested between static bodies %d and %d", a, b)
		return constraint.PenetrationConstraint{}, false
	}

	// Bounding spheres, squared
	delta := bodyB.Transform.Position.Sub(bodyA.Transform.Position)
	reach := bodyA.Shape.BoundingSphereRadius() + bodyB.Shape.BoundingSphereRadius()
	if delta.Dot(delta) >= reach*reach {
		return constraint.PenetrationConstraint{}, false
	}

	sphereA, isSphereA := bodyA.Shape.(*actor.Sphere)
	sphereB, isSphereB := bodyB.Shape.(*actor.Sphere)
	if isSphereA && isSphereB {
		return s.spherePenetration(a, b, sphereA.Radius(), sphereB.Radius()), true
	}

	colliderA, colliderB := bodyA.Collider(), bodyB.Collider()

	simplex := gjk.SimplexPool.Get().(*gjk.Simplex)
	defer gjk.SimplexPool.Put(simplex)

	colliding, err := gjk.GJK(colliderA, colliderB, simplex, s.Config.GJKMaxIterations)
	if err != nil {
		s.Stats.GJKIterationLimit++
		s.logf("xpbd: bodies %d and %d: %v", a, b, err)
	}
	if !colliding {
		return constraint.PenetrationConstraint{}, false
	}

	contact, err := epa.EPA(colliderA, colliderB, simplex, s.Config.EPAMaxIterations, s.Config.EPATolerance)
	switch {
	case errors.Is(err, epa.ErrIterationLimit):
		// The best estimate is still used
		s.Stats.EPAIterationLimit++
		s.logf("xpbd: bodies %d and %d: %v (depth %g)", a, b, err, contact.Depth)
	case err != nil:
		s.logf("xpbd: bodies %d and %d: %v", a, b, err)
		return constraint.PenetrationConstraint{}, false
	}

	if !validContact(contact) {
		s.Stats.InvalidContacts++
		s.logf("xpbd: bodies %d and %d: dropped non-finite contact %+v", a, b, contact)
		return constraint.PenetrationConstraint{}, false
	}

	contact = s.refineContact(colliderA, colliderB, contact)

	return constraint.NewPenetrationConstraint(s.Bodies, a, b, contact.PointA, contact.PointB, contact.Normal, contact.Depth), true
}

// refineContact replaces the barycentric EPA points: a sphere touches at its center offset by
// its radius along the normal, and ClipContacts takes the clipped face contact. The depth is
// measured again between the new points; the EPA contact is kept if they do not overlap.
func (s *Simulation) refineContact(colliderA, colliderB actor.Collider, contact epa.Contact) epa.Contact {
	refined := contact

	if sphere, ok := colliderA.Shape.(*actor.Sphere); ok {
		refined.PointA = colliderA.Transform.Position.Sub(contact.Normal.Mul(sphere.Radius()))
	}
	if sphere, ok := colliderB.Shape.(*actor.Sphere); ok {
		refined.PointB = colliderB.Transform.Position.Add(contact.Normal.Mul(sphere.Radius()))
	}

	if s.Config.ClipContacts {
		if pointA, pointB, clipped := epa.Clip(colliderA, colliderB, contact.Normal); clipped {
			refined.PointA, refined.PointB = pointA, pointB
		}
	}

	refined.Depth = refined.PointB.Sub(refined.PointA).Dot(contact.Normal)
	if !(refined.Depth > 0) || !validContact(refined) {
		return contact
	}

	return refined
}

// spherePenetration is the closed form contact of two overlapping spheres
func (s *Simulation) spherePenetration(a, b BodyID, radiusA, radiusB float64) constraint.PenetrationConstraint {
	positionA := s.Bodies[a].Transform.Position
	positionB := s.Bodies[b].Transform.Position

	// From B toward A; coincident centers separate along +z
	normal := positionA.Sub(positionB)
	distance := normal.Len()
	if distance > coincidentEpsilon {
		normal = normal.Mul(1.0 / distance)
	} else {
		normal = mgl64.Vec3{0, 0, 1}
		distance = 0
	}

	pointA := positionA.Sub(normal.Mul(radiusA))
	pointB := positionB.Add(normal.Mul(radiusB))

	return constraint.NewPenetrationConstraint(s.Bodies, a, b, pointA, pointB, normal, radiusA+radiusB-distance)
}

func validContact(contact epa.Contact) bool {
	values := []float64{contact.Depth}
	values = append(values, contact.Normal[:]...)
	values = append(values, contact.PointA[:]...)
	values = append(values, contact.PointB[:]...)

	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	return contact.Depth >= 0
}

// GetPenetrations tests every pair of live bodies, static pairs excluded
func (s *Simulation) GetPenetrations() []constraint.PenetrationConstraint {
	var penetrations []constraint.PenetrationConstraint

	for i := range s.Bodies {
		if s.Bodies[i].Removed {
			continue
		}
		for j := i + 1; j < len(s.Bodies); j++ {
			if s.Bodies[j].Removed || (s.Bodies[i].IsStatic() && s.Bodies[j].IsStatic()) {
				continue
			}

			if penetration, ok := s.getPenetration(BodyID(i), BodyID(j)); ok {
				penetrations = append(penetrations, penetration)
			}
		}
	}

	return penetrations
}

// GetPenetrationsFor tests id against each candidate once; id itself and static pairs are skipped
func (s *Simulation) GetPenetrationsFor(id BodyID, candidates []BodyID) ([]constraint.PenetrationConstraint, error) {
	body, err := s.Body(id)
	if err != nil {
		return nil, err
	}

	var penetrations []constraint.PenetrationConstraint
	tested := make(map[BodyID]struct{}, len(candidates))

	for _, other := range candidates {
		if other == id {
			continue
		}
		if _, done := tested[other]; done {
			continue
		}
		tested[other] = struct{}{}

		otherBody, err := s.Body(other)
		if err != nil {
			return nil, err
		}
		if body.IsStatic() && otherBody.IsStatic() {
			continue
		}

		if penetration, ok := s.getPenetration(id, other); ok {
			penetrations = append(penetrations, penetration)
		}
	}

	return penetrations, nil
}
