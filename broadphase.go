package xpbd

import (
	"github.com/akmonengine/xpbd/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// CollisionPair is an unordered pair of bodies, normalised so that A < B
type CollisionPair struct {
	A, B BodyID
}

func MakeCollisionPair(a, b BodyID) CollisionPair {
	if b < a {
		a, b = b, a
	}

	return CollisionPair{A: a, B: b}
}

// Contains reports whether id is one of the two bodies
func (p CollisionPair) Contains(id BodyID) bool {
	return p.A == id || p.B == id
}

// PairSet is a set of pairs iterated in insertion order
type PairSet struct {
	pairs []CollisionPair
	index map[CollisionPair]int
}

func NewPairSet() *PairSet {
	return &PairSet{index: make(map[CollisionPair]int)}
}

// Add inserts the pair (a, b), equal to (b, a); it returns false if it was already present
func (s *PairSet) Add(a, b BodyID) bool {
	if s.index == nil {
		s.index = make(map[CollisionPair]int)
	}

	pair := MakeCollisionPair(a, b)
	if _, exists := s.index[pair]; exists {
		return false
	}

	s.index[pair] = len(s.pairs)
	s.pairs = append(s.pairs, pair)

	return true
}

func (s *PairSet) Contains(a, b BodyID) bool {
	_, exists := s.index[MakeCollisionPair(a, b)]
	return exists
}

func (s *PairSet) Len() int {
	return len(s.pairs)
}

// Pairs returns the pairs in insertion order. The slice is owned by the set.
func (s *PairSet) Pairs() []CollisionPair {
	return s.pairs
}

func (s *PairSet) Clear() {
	s.pairs = s.pairs[:0]
	clear(s.index)
}

// RemoveBody drops every pair involving id, keeping the order of the others
func (s *PairSet) RemoveBody(id BodyID) {
	n := 0
	for _, pair := range s.pairs {
		if pair.Contains(id) {
			delete(s.index, pair)
			continue
		}
		s.pairs[n] = pair
		s.index[pair] = n
		n++
	}
	s.pairs = s.pairs[:n]
}

// rebuildGrid buckets every live body by the bounds of its bounding sphere
func (s *Simulation) rebuildGrid() {
	s.grid.Clear()
	for i := range s.Bodies {
		if s.Bodies[i].Removed {
			continue
		}
		s.grid.Insert(BodyID(i), s.Bodies[i].BoundingSphere().AABB())
	}
}

// candidates returns the live bodies that may reach the query sphere, in ascending ID order
func (s *Simulation) candidates(query actor.BoundingSphere) []BodyID {
	var found bool
	s.candidateBuffer, found = s.grid.Candidates(query.AABB(), s.candidateBuffer[:0])
	if found {
		return s.candidateBuffer
	}

	// Query too large for the grid: every body
	s.candidateBuffer = s.candidateBuffer[:0]
	for i := range s.Bodies {
		if !s.Bodies[i].Removed {
			s.candidateBuffer = append(s.candidateBuffer, BodyID(i))
		}
	}

	return s.candidateBuffer
}

// queryInRadius calls visit for every body whose bounding sphere overlaps the query sphere.
// Two overlapping spheres have overlapping bounds, so they share at least one grid cell.
func (s *Simulation) queryInRadius(query actor.BoundingSphere, visit func(id BodyID)) {
	for _, id := range s.candidates(query) {
		if query.Overlaps(s.Bodies[id].BoundingSphere()) {
			visit(id)
		}
	}
}

// QueryInRadius returns the bodies whose bounding sphere overlaps the sphere (position, radius),
// in ascending ID order
func (s *Simulation) QueryInRadius(position mgl64.Vec3, radius float64) []BodyID {
	s.rebuildGrid()

	var result []BodyID
	s.queryInRadius(actor.BoundingSphere{Center: position, Radius: radius}, func(id BodyID) {
		result = append(result, id)
	})

	return result
}

// QueryPairs adds to pairs every body whose bounding sphere overlaps the bounding sphere of id
// inflated by multiplier. Pairs of two static bodies are skipped, they are never solved.
func (s *Simulation) QueryPairs(id BodyID, multiplier float64, pairs *PairSet) error {
	if _, err := s.Body(id); err != nil {
		return err
	}

	s.rebuildGrid()
	s.queryPairs(id, multiplier, pairs)

	return nil
}

func (s *Simulation) queryPairs(id BodyID, multiplier float64, pairs *PairSet) {
	body := &s.Bodies[id]
	query := body.BoundingSphere().Scaled(multiplier)

	s.queryInRadius(query, func(other BodyID) {
		if other == id {
			return
		}
		if body.IsStatic() && s.Bodies[other].IsStatic() {
			return
		}
		pairs.Add(id, other)
	})
}

// SweepMultiplier is the broad-phase radius multiplier of a body for one frame:
// 1 + |v| * DeltaT * SweepFactor
func (s *Simulation) SweepMultiplier(id BodyID) float64 {
	return 1 + s.Bodies[id].Velocity.Len()*s.Config.DeltaT*s.Config.SweepFactor
}

// BroadPhase replaces the content of pairs with the candidate pairs of the next frame
func (s *Simulation) BroadPhase(pairs *PairSet) {
	pairs.Clear()
	s.rebuildGrid()

	for i := range s.Bodies {
		if s.Bodies[i].Removed {
			continue
		}
		s.queryPairs(BodyID(i), s.SweepMultiplier(BodyID(i)), pairs)
	}
}
