package constraint

import (
	"math"

	"github.com/akmonengine/xpbd/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// MassEpsilon is the summed generalized inverse mass under which no correction is applied
const MassEpsilon = 1e-12

// PenetrationConstraint keeps two overlapping bodies apart.
// It is built fresh every substep from the contact of the narrow phase and never reused.
type PenetrationConstraint struct {
	BodyA actor.BodyID
	BodyB actor.BodyID

	// Contact points in the local (rotation-relative, center-relative) frame of each body
	LocalA mgl64.Vec3
	LocalB mgl64.Vec3

	Normal mgl64.Vec3 // unit, pointing from B toward A
	Depth  float64

	// NormalLambda is the position multiplier of the last SolvePositions, bounding dynamic friction
	NormalLambda float64
}

// NewPenetrationConstraint anchors the world contact points to the current pose of each body
func NewPenetrationConstraint(bodies []actor.RigidBody, a, b actor.BodyID, pointA, pointB, normal mgl64.Vec3, depth float64) PenetrationConstraint {
	return PenetrationConstraint{
		BodyA:  a,
		BodyB:  b,
		LocalA: bodies[a].Transform.ToLocal(pointA),
		LocalB: bodies[b].Transform.ToLocal(pointB),
		Normal: normal,
		Depth:  depth,
	}
}

// arms returns the contact points relative to the body centers, rotated by the current orientations
func (c *PenetrationConstraint) arms(bodyA, bodyB *actor.RigidBody) (mgl64.Vec3, mgl64.Vec3) {
	return bodyA.Transform.Rotation.Rotate(c.LocalA), bodyB.Transform.Rotation.Rotate(c.LocalB)
}

// CurrentDepth measures the penetration along the normal at the current poses
func (c *PenetrationConstraint) CurrentDepth(bodies []actor.RigidBody) float64 {
	bodyA, bodyB := &bodies[c.BodyA], &bodies[c.BodyB]
	rA, rB := c.arms(bodyA, bodyB)

	return separation(bodyA, bodyB, rA, rB, c.Normal)
}

func separation(bodyA, bodyB *actor.RigidBody, rA, rB, normal mgl64.Vec3) float64 {
	pointA := bodyA.Transform.Position.Add(rA)
	pointB := bodyB.Transform.Position.Add(rB)

	return pointB.Sub(pointA).Dot(normal)
}

// positionDelta returns the multiplier λ = -magnitude / (wA + wB) of a correction along direction.
// ok is false when neither body can move along it.
func positionDelta(bodyA, bodyB *actor.RigidBody, rA, rB, direction mgl64.Vec3, magnitude float64) (lambda float64, ok bool) {
	w := bodyA.GeneralizedInverseMass(rA, direction) + bodyB.GeneralizedInverseMass(rB, direction)
	if w <= MassEpsilon {
		return 0, false
	}

	return -magnitude / w, true
}

// SolvePositions pushes the bodies apart along the normal, then cancels the tangential slip
// since the previous substep if it stays inside the static friction cone.
func (c *PenetrationConstraint) SolvePositions(bodies []actor.RigidBody, dt float64) {
	bodyA, bodyB := &bodies[c.BodyA], &bodies[c.BodyB]
	rA, rB := c.arms(bodyA, bodyB)

	c.Depth = separation(bodyA, bodyB, rA, rB, c.Normal)
	if c.Depth <= 0 {
		return
	}

	// ========== 1. Depenetration ==========
	lambda, ok := positionDelta(bodyA, bodyB, rA, rB, c.Normal, c.Depth)
	if !ok {
		return
	}
	c.NormalLambda = lambda

	// A moves along the normal, B against it
	correction := c.Normal.Mul(-lambda)
	bodyA.ApplyPositionalImpulse(correction, rA)
	bodyB.ApplyPositionalImpulse(correction.Mul(-1), rB)

	// ========== 2. Static friction ==========
	rA, rB = c.arms(bodyA, bodyB)

	pointA := bodyA.Transform.Position.Add(rA)
	pointB := bodyB.Transform.Position.Add(rB)
	previousA := bodyA.PreviousTransform.ToWorld(c.LocalA)
	previousB := bodyB.PreviousTransform.ToWorld(c.LocalB)

	deltaP := pointA.Sub(previousA).Sub(pointB.Sub(previousB))
	tangential := deltaP.Sub(c.Normal.Mul(deltaP.Dot(c.Normal)))
	slip := tangential.Len()
	if slip == 0 || math.IsNaN(slip) {
		return
	}
	direction := tangential.Mul(1.0 / slip)

	staticFriction := ComputeStaticFriction(bodyA.Material, bodyB.Material)
	tangentialLambda, ok := positionDelta(bodyA, bodyB, rA, rB, direction, slip)
	if !ok || math.Abs(tangentialLambda) >= staticFriction*math.Abs(lambda) {
		// Sliding: left to dynamic friction
		return
	}

	friction := direction.Mul(tangentialLambda)
	bodyA.ApplyPositionalImpulse(friction, rA)
	bodyB.ApplyPositionalImpulse(friction.Mul(-1), rB)
}

// SolveVelocities applies dynamic friction and restitution at the contact.
// Restitution uses the normal velocity before the substep, and is dropped under
// 2 * restitutionCutoff * dt so that resting contacts do not bounce.
func (c *PenetrationConstraint) SolveVelocities(bodies []actor.RigidBody, restitutionCutoff, dt float64) {
	if c.Depth <= 0 || dt <= 0 {
		return
	}

	bodyA, bodyB := &bodies[c.BodyA], &bodies[c.BodyB]
	rA, rB := c.arms(bodyA, bodyB)

	velocity := bodyA.VelocityAt(rA).Sub(bodyB.VelocityAt(rB))
	normalVelocity := c.Normal.Dot(velocity)

	// ========== Dynamic friction ==========
	tangentialVelocity := velocity.Sub(c.Normal.Mul(normalVelocity))
	tangentialSpeed := tangentialVelocity.Len()
	if tangentialSpeed > 0 {
		direction := tangentialVelocity.Mul(1.0 / tangentialSpeed)
		dynamicFriction := ComputeDynamicFriction(bodyA.Material, bodyB.Material)

		deltaV := math.Min(dynamicFriction*math.Abs(c.NormalLambda/(dt*dt)), tangentialSpeed)
		if w := bodyA.GeneralizedInverseMass(rA, direction) + bodyB.GeneralizedInverseMass(rB, direction); w > MassEpsilon {
			impulse := direction.Mul(-deltaV / w)
			bodyA.ApplyVelocityImpulse(impulse, rA)
			bodyB.ApplyVelocityImpulse(impulse.Mul(-1), rB)
		}
	}

	// ========== Restitution ==========
	previousVelocity := bodyA.PreviousVelocityAt(rA).Sub(bodyB.PreviousVelocityAt(rB))
	previousNormalVelocity := c.Normal.Dot(previousVelocity)

	restitution := ComputeRestitution(bodyA.Material, bodyB.Material)
	if math.Abs(previousNormalVelocity) < 2*restitutionCutoff*dt {
		restitution = 0.0
	}

	deltaV := -normalVelocity + math.Max(-restitution*previousNormalVelocity, 0.0)
	if w := bodyA.GeneralizedInverseMass(rA, c.Normal) + bodyB.GeneralizedInverseMass(rB, c.Normal); w > MassEpsilon {
		impulse := c.Normal.Mul(deltaV / w)
		bodyA.ApplyVelocityImpulse(impulse, rA)
		bodyB.ApplyVelocityImpulse(impulse.Mul(-1), rB)
	}
}
