package actor

import "github.com/go-gl/mathgl/mgl64"

// Transform represents a pose in 3D space
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// NewTransform creates an identity transform
func NewTransform() Transform {
	return Transform{
		Position: mgl64.Vec3{0, 0, 0},
		Rotation: mgl64.QuatIdent(),
	}
}

// ToLocal converts a world point into the rotation-relative, center-relative frame
func (t Transform) ToLocal(point mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Conjugate().Rotate(point.Sub(t.Position))
}

// ToWorld converts a local point back to world space
func (t Transform) ToWorld(point mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Rotate(point).Add(t.Position)
}

// Collider is a read-only view of a shape placed at a pose.
// GJK and EPA only ever see bodies through this view.
type Collider struct {
	Shape     Shape
	Transform Transform
}

// SupportWorld returns the farthest world point of the shape along a world direction
func (c Collider) SupportWorld(direction mgl64.Vec3) mgl64.Vec3 {
	// 1. Direction into the local frame
	localDirection := c.Transform.Rotation.Conjugate().Rotate(direction)

	// 2. Local closed form, 3. back to world
	return c.Transform.ToWorld(c.Shape.Support(localDirection))
}

// SupportFeatureWorld returns the extreme feature along a world direction, in world space
func (c Collider) SupportFeatureWorld(direction mgl64.Vec3) []mgl64.Vec3 {
	localDirection := c.Transform.Rotation.Conjugate().Rotate(direction)

	feature := c.Shape.SupportFeature(localDirection)
	for i, point := range feature {
		feature[i] = c.Transform.ToWorld(point)
	}

	return feature
}

// BoundingSphere returns the world bounding sphere of the collider
func (c Collider) BoundingSphere() BoundingSphere {
	return BoundingSphere{
		Center: c.Transform.Position,
		Radius: c.Shape.BoundingSphereRadius(),
	}
}
