// Package constraint resolves contacts with Extended Position-Based Dynamics (XPBD).
//
// A constraint is solved in two passes per substep: positions first (depenetration and
// static friction), then velocities (dynamic friction and restitution) once the velocities
// have been derived from the corrected poses.
package constraint

import "github.com/akmonengine/xpbd/actor"

// Constraint is solved against the body arena it was built from
type Constraint interface {
	SolvePositions(bodies []actor.RigidBody, dt float64)
	SolveVelocities(bodies []actor.RigidBody, restitutionCutoff, dt float64)
}

// ComputeRestitution combines the restitution of both materials (average)
func ComputeRestitution(matA, matB actor.Material) float64 {
	return (matA.Restitution + matB.Restitution) / 2.0
}

func ComputeStaticFriction(matA, matB actor.Material) float64 {
	return (matA.StaticFriction + matB.StaticFriction) / 2.0
}

func ComputeDynamicFriction(matA, matB actor.Material) float64 {
	return (matA.DynamicFriction + matB.DynamicFriction) / 2.0
}

// ScaleMaterial multiplies every coefficient of the material
func ScaleMaterial(material actor.Material, restitution, staticFriction, dynamicFriction float64) actor.Material {
	return actor.Material{
		Restitution:     material.Restitution * restitution,
		StaticFriction:  material.StaticFriction * staticFriction,
		DynamicFriction: material.DynamicFriction * dynamicFriction,
	}
}
