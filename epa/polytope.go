package epa

import (
	"fmt"
	"slices"
	"sync"

	"github.com/akmonengine/xpbd/gjk"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// VisibilityTolerance makes a face visible from a point lying on its plane, so that
	// coplanar faces are removed together and no zero-area face is created
	VisibilityTolerance = 1e-9

	// Small initial capacity for PolytopeBuilder - grows dynamically as needed
	polytopeInitialCapacity = 16
)

// PolytopeBuilder holds the growing convex hull of EPA and its scratch buffers.
// Builders are pooled; Reset keeps the allocated capacity.
type PolytopeBuilder struct {
	Points []gjk.SupportPoint
	Faces  []Face

	// silhouette of the removed faces, in insertion order
	edges []Edge
}

// Edge is a directed edge between two polytope vertices
type Edge struct {
	A, B int
}

var polytopeBuilderPool = sync.Pool{
	New: func() interface{} {
		return &PolytopeBuilder{
			Points: make([]gjk.SupportPoint, 0, polytopeInitialCapacity),
			Faces:  make([]Face, 0, polytopeInitialCapacity),
			edges:  make([]Edge, 0, polytopeInitialCapacity),
		}
	},
}

func (b *PolytopeBuilder) Reset() {
	b.Points = b.Points[:0]
	b.Faces = b.Faces[:0]
	b.edges = b.edges[:0]
}

// BuildInitialFaces creates the 4 faces of the GJK tetrahedron, wound outward
func (b *PolytopeBuilder) BuildInitialFaces(simplex *gjk.Simplex) error {
	if simplex.Count != 4 {
		return fmt.Errorf("invalid simplex count: %d (expected 4)", simplex.Count)
	}

	b.Points = append(b.Points, simplex.Points[:]...)

	var centroid mgl64.Vec3
	for _, p := range b.Points {
		centroid = centroid.Add(p.Point())
	}
	centroid = centroid.Mul(0.25)

	for _, indices := range [4][3]int{{0, 2, 1}, {1, 3, 0}, {2, 0, 3}, {3, 1, 2}} {
		face := newFace(b.Points, indices[0], indices[1], indices[2])

		// The normal must point away from the inside of the tetrahedron
		if face.Normal.Dot(centroid.Sub(b.Points[indices[0]].Point())) > 0 {
			face = face.flip(b.Points)
		}
		b.Faces = append(b.Faces, face)
	}

	return nil
}

// FindClosestFaceIndex returns the first face with the minimum distance to the origin
func (b *PolytopeBuilder) FindClosestFaceIndex() int {
	if len(b.Faces) == 0 {
		return -1
	}

	closestIndex := 0
	minDistance := b.Faces[0].Distance

	for i := 1; i < len(b.Faces); i++ {
		if b.Faces[i].Distance < minDistance {
			closestIndex = i
			minDistance = b.Faces[i].Distance
		}
	}

	return closestIndex
}

// isVisible reports whether the point lies in front of the face plane, or on it
func (b *PolytopeBuilder) isVisible(face Face, point mgl64.Vec3) bool {
	return face.Normal.Dot(b.Points[face.Indices[0]].Point())-face.Normal.Dot(point) <= VisibilityTolerance
}

// AddPointAndRebuildFaces inserts support into the polytope: every face visible from it is
// removed and each edge of the silhouette is connected to the new point.
// It returns false when every face sees the point; the polytope is then left unchanged.
func (b *PolytopeBuilder) AddPointAndRebuildFaces(support gjk.SupportPoint) bool {
	point := support.Point()

	visible := 0
	for _, face := range b.Faces {
		if b.isVisible(face, point) {
			visible++
		}
	}
	if visible == len(b.Faces) {
		return false
	}

	b.Points = append(b.Points, support)
	newIndex := len(b.Points) - 1

	b.edges = b.edges[:0]
	for i := len(b.Faces) - 1; i >= 0; i-- {
		face := b.Faces[i]
		if !b.isVisible(face, point) {
			continue
		}

		for k := 0; k < 3; k++ {
			b.addSilhouetteEdge(Edge{A: face.Indices[k], B: face.Indices[(k+1)%3]})
		}

		// swap-with-last removal
		b.Faces[i] = b.Faces[len(b.Faces)-1]
		b.Faces = b.Faces[:len(b.Faces)-1]
	}

	for _, edge := range b.edges {
		b.Faces = append(b.Faces, newFace(b.Points, edge.A, edge.B, newIndex))
	}

	return true
}

// addSilhouetteEdge keeps the symmetric difference of the edges of the removed faces:
// an edge shared by two removed faces shows up once in each direction and cancels out.
func (b *PolytopeBuilder) addSilhouetteEdge(edge Edge) {
	reversed := Edge{A: edge.B, B: edge.A}
	if i := slices.Index(b.edges, reversed); i >= 0 {
		b.edges = slices.Delete(b.edges, i, i+1)
		return
	}

	b.edges = append(b.edges, edge)
}
