package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// BodyType represents the type of rigid body
type BodyType int

const (
	// BodyTypeDynamic bodies are affected by forces, gravity, and collisions
	// They have finite mass and can move freely
	BodyTypeDynamic BodyType = iota

	// BodyTypeStatic bodies are immovable and have infinite mass
	// They are not affected by forces or gravity (e.g., ground, walls)
	BodyTypeStatic
)

// BodyID is a stable index into the body arena owned by a simulation
type BodyID int

type Material struct {
	Restitution     float64 // 0= no rebound, 1= perfect restitution
	StaticFriction  float64
	DynamicFriction float64
}

// DefaultMaterial returns the coefficients a body gets when none are given
func DefaultMaterial() Material {
	return Material{
		Restitution:     1.0,
		StaticFriction:  0.9,
		DynamicFriction: 0.68,
	}
}

// RigidBody represents a rigid body in the physics simulation.
// All fields are exported so that a body arena can be copied field by field.
type RigidBody struct {
	// Spatial properties
	PreviousTransform Transform
	Transform         Transform

	// Linear motion
	PreviousVelocity mgl64.Vec3
	Velocity         mgl64.Vec3 // Linear velocity (m/s)

	// Angular motion
	PreviousAngularVelocity mgl64.Vec3
	AngularVelocity         mgl64.Vec3 // rad/s

	// Accumulated external force, consumed by the next Integrate
	Force mgl64.Vec3

	Mass        float64
	InverseMass float64
	// Inertia tensors in local space
	InertiaLocal        mgl64.Mat3
	InverseInertiaLocal mgl64.Mat3

	// Physical properties
	Material Material
	BodyType BodyType // Dynamic or Static

	// Collision shape
	Shape Shape

	// Removed marks a recycled arena slot
	Removed bool
}

// NewRigidBody creates a new rigid body with the given properties.
// mass is ignored for static bodies, which get an infinite mass and a zero inverse inertia.
func NewRigidBody(transform Transform, shape Shape, bodyType BodyType, mass float64) *RigidBody {
	if transform.Rotation == (mgl64.Quat{}) {
		transform.Rotation = mgl64.QuatIdent()
	}

	rb := &RigidBody{
		PreviousTransform: transform,
		Transform:         transform,
		Shape:             shape,
		BodyType:          bodyType,
		Material:          DefaultMaterial(),
	}

	if bodyType == BodyTypeStatic || math.IsInf(mass, 1) || mass <= 0 {
		rb.BodyType = BodyTypeStatic
		rb.Mass = math.Inf(1)
		rb.InverseMass = 0
		rb.InertiaLocal = mgl64.Mat3{}
		rb.InverseInertiaLocal = mgl64.Mat3{}

		return rb
	}

	rb.Mass = mass
	rb.InverseMass = 1.0 / mass
	rb.InertiaLocal = shape.ComputeInertia(mass)
	rb.InverseInertiaLocal = rb.InertiaLocal.Inv()

	return rb
}

// NewRigidBodyFromDensity derives the mass from the shape volume
func NewRigidBodyFromDensity(transform Transform, shape Shape, bodyType BodyType, density float64) *RigidBody {
	return NewRigidBody(transform, shape, bodyType, shape.ComputeMass(density))
}

func (rb *RigidBody) IsStatic() bool {
	return rb.InverseMass == 0
}

// Collider returns the shape at the current pose
func (rb *RigidBody) Collider() Collider {
	return Collider{Shape: rb.Shape, Transform: rb.Transform}
}

func (rb *RigidBody) BoundingSphere() BoundingSphere {
	return rb.Collider().BoundingSphere()
}

// AddForce accumulates a world force until the next Integrate
func (rb *RigidBody) AddForce(force mgl64.Vec3) {
	if rb.IsStatic() {
		return
	}

	rb.Force = rb.Force.Add(force)
}

func (rb *RigidBody) ClearForces() {
	rb.Force = mgl64.Vec3{0, 0, 0}
}

// Integrate predicts the pose after dt (semi-implicit Euler).
// The velocities recorded as previous include the external force contribution.
func (rb *RigidBody) Integrate(dt float64) {
	if !rb.IsStatic() {
		rb.Velocity = rb.Velocity.Add(rb.Force.Mul(rb.InverseMass * dt))
	}
	rb.ClearForces()

	rb.PreviousTransform = rb.Transform
	rb.PreviousVelocity = rb.Velocity
	rb.PreviousAngularVelocity = rb.AngularVelocity

	if rb.IsStatic() {
		return
	}

	// Gyroscopic term: ω += dt * I⁻¹ * (-(ω × Iω))
	inertia := rb.GetInertiaWorld()
	gyroscopic := rb.AngularVelocity.Cross(inertia.Mul3x1(rb.AngularVelocity)).Mul(-1)
	rb.AngularVelocity = rb.AngularVelocity.Add(rb.GetInverseInertiaWorld().Mul3x1(gyroscopic).Mul(dt))

	rb.Transform.Position = rb.Transform.Position.Add(rb.Velocity.Mul(dt))

	omegaQuat := mgl64.Quat{V: rb.AngularVelocity, W: 0}
	qDot := omegaQuat.Mul(rb.Transform.Rotation).Scale(0.5)
	rb.Transform.Rotation = rb.Transform.Rotation.Add(qDot.Scale(dt)).Normalize()
}

// UpdateVelocities derives the velocities from the pose change since Integrate
func (rb *RigidBody) UpdateVelocities(dt float64) {
	if rb.IsStatic() || dt <= 0 {
		return
	}

	rb.Velocity = rb.Transform.Position.Sub(rb.PreviousTransform.Position).Mul(1.0 / dt)

	qDelta := rb.Transform.Rotation.Mul(rb.PreviousTransform.Rotation.Conjugate())
	if qDelta.W >= 0.0 {
		rb.AngularVelocity = qDelta.V.Mul(2.0 / dt)
	} else {
		rb.AngularVelocity = qDelta.V.Mul(-2.0 / dt)
	}
}

// GeneralizedInverseMass is the mass term of the body at arm r along direction n:
// w = 1/m + (r × n)ᵀ I⁻¹ (r × n)
func (rb *RigidBody) GeneralizedInverseMass(r, n mgl64.Vec3) float64 {
	if rb.IsStatic() {
		return 0
	}
	rn := r.Cross(n)

	return rb.InverseMass + rn.Dot(rb.GetInverseInertiaWorld().Mul3x1(rn))
}

// ApplyPositionalImpulse moves and rotates the body as if impulse were applied at arm r
// during one position solve (small-angle quaternion update)
func (rb *RigidBody) ApplyPositionalImpulse(impulse, r mgl64.Vec3) {
	if rb.IsStatic() {
		return
	}

	rb.Transform.Position = rb.Transform.Position.Add(impulse.Mul(rb.InverseMass))

	deltaRotation := rb.GetInverseInertiaWorld().Mul3x1(r.Cross(impulse))
	qDelta := mgl64.Quat{W: 0, V: deltaRotation}.Mul(rb.Transform.Rotation).Scale(0.5)
	rb.Transform.Rotation = rb.Transform.Rotation.Add(qDelta).Normalize()
}

// ApplyVelocityImpulse changes linear and angular velocity for an impulse at arm r
func (rb *RigidBody) ApplyVelocityImpulse(impulse, r mgl64.Vec3) {
	if rb.IsStatic() {
		return
	}

	rb.Velocity = rb.Velocity.Add(impulse.Mul(rb.InverseMass))
	rb.AngularVelocity = rb.AngularVelocity.Add(rb.GetInverseInertiaWorld().Mul3x1(r.Cross(impulse)))
}

// VelocityAt returns the world velocity of a point at arm r
func (rb *RigidBody) VelocityAt(r mgl64.Vec3) mgl64.Vec3 {
	return rb.Velocity.Add(rb.AngularVelocity.Cross(r))
}

// PreviousVelocityAt is VelocityAt evaluated with the velocities recorded by Integrate
func (rb *RigidBody) PreviousVelocityAt(r mgl64.Vec3) mgl64.Vec3 {
	return rb.PreviousVelocity.Add(rb.PreviousAngularVelocity.Cross(r))
}

// GetInertiaWorld rotates the local tensor into world space
func (rb *RigidBody) GetInertiaWorld() mgl64.Mat3 {
	// I_world = R * I_local * R^T
	R := rb.Transform.Rotation.Mat4().Mat3()
	return R.Mul3(rb.InertiaLocal).Mul3(R.Transpose())
}

// GetInverseInertiaWorld is the zero tensor for static bodies
func (rb *RigidBody) GetInverseInertiaWorld() mgl64.Mat3 {
	if rb.IsStatic() {
		return mgl64.Mat3{}
	}

	// I_world^(-1) = R * I_local^(-1) * R^T
	R := rb.Transform.Rotation.Mat4().Mat3()
	return R.Mul3(rb.InverseInertiaLocal).Mul3(R.Transpose())
}
