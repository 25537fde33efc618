package actor

import "github.com/go-gl/mathgl/mgl64"

// AABB represents an axis-aligned bounding box
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// Overlaps checks if two AABBs overlap
func (a AABB) Overlaps(other AABB) bool {
	// AABBs overlap if they overlap on all three axes
	return a.Max.X() >= other.Min.X() && a.Min.X() <= other.Max.X() &&
		a.Max.Y() >= other.Min.Y() && a.Min.Y() <= other.Max.Y() &&
		a.Max.Z() >= other.Min.Z() && a.Min.Z() <= other.Max.Z()
}

// BoundingSphere is the proximity volume used by the broad phase
type BoundingSphere struct {
	Center mgl64.Vec3
	Radius float64
}

// Scaled inflates the radius by a multiplier, keeping the center
func (s BoundingSphere) Scaled(multiplier float64) BoundingSphere {
	return BoundingSphere{Center: s.Center, Radius: s.Radius * multiplier}
}

// Overlaps compares squared distances, no square root involved.
// Touching spheres do not overlap.
func (s BoundingSphere) Overlaps(other BoundingSphere) bool {
	delta := other.Center.Sub(s.Center)
	reach := s.Radius + other.Radius

	return delta.Dot(delta) < reach*reach
}

// AABB returns the box enclosing the sphere
func (s BoundingSphere) AABB() AABB {
	r := mgl64.Vec3{s.Radius, s.Radius, s.Radius}

	return AABB{Min: s.Center.Sub(r), Max: s.Center.Add(r)}
}
