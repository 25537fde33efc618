// Package xpbd simulates convex rigid bodies (spheres and boxes) with Extended Position-Based
// Dynamics.
//
// Every frame runs one broad-phase query, then a fixed number of substeps that each integrate
// the bodies, detect the contacts of the candidate pairs with GJK and EPA, and solve them in
// two passes (positions, then velocities).
package xpbd

import (
	"errors"
	"fmt"
	"log"

	"github.com/akmonengine/xpbd/actor"
	"github.com/akmonengine/xpbd/constraint"
	"github.com/jinzhu/copier"
)

// BodyID is the stable index of a body in Simulation.Bodies
type BodyID = actor.BodyID

// ErrUnknownBody is returned for an ID outside the arena or of a removed body
var ErrUnknownBody = errors.New("unknown body")

// Stats counts the conditions met since the simulation was created
type Stats struct {
	GJKIterationLimit  int
	EPAIterationLimit  int
	InvalidContacts    int
	StaticPairRequests int
}

// Simulation owns the bodies and every buffer of the step loop.
// It is not safe for concurrent use.
type Simulation struct {
	// Bodies is the arena of rigid bodies; removed slots are flagged and recycled
	Bodies []actor.RigidBody
	Config Config
	Logger *log.Logger
	Stats  Stats
	Events Events

	free []BodyID
	grid *SpatialGrid

	// inFrame is set during Update, whose conditions are logged once per frame
	inFrame bool

	// Buffers reused across frames
	candidatePairs  *PairSet
	candidateBuffer []BodyID
	constraints     []constraint.PenetrationConstraint
	materials       []actor.Material
}

// NewSimulation validates the config and creates an empty simulation logging to log.Default()
func NewSimulation(config Config) (*Simulation, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Simulation{
		Config:         config,
		Logger:         log.Default(),
		Events:         NewEvents(),
		grid:           NewSpatialGrid(config.CellSize, config.GridCells, config.MaxCellsPerBody),
		candidatePairs: NewPairSet(),
	}, nil
}

// AddBody copies the body into the arena, reusing the slot of a removed body if any
func (s *Simulation) AddBody(body *actor.RigidBody) (BodyID, error) {
	if body == nil || body.Shape == nil {
		return -1, errors.New("add body: missing shape")
	}

	stored := *body
	stored.Removed = false

	if n := len(s.free); n > 0 {
		id := s.free[n-1]
		s.free = s.free[:n-1]
		s.Bodies[id] = stored

		return id, nil
	}

	s.Bodies = append(s.Bodies, stored)

	return BodyID(len(s.Bodies) - 1), nil
}

// RemoveBody frees the slot of the body. Its pairs are dropped without exit events.
func (s *Simulation) RemoveBody(id BodyID) error {
	if _, err := s.Body(id); err != nil {
		return err
	}

	s.Bodies[id] = actor.RigidBody{Removed: true}
	s.free = append(s.free, id)
	s.candidatePairs.RemoveBody(id)
	s.Events.forget(id)

	return nil
}

// Body returns the live body stored under id.
// The pointer is into Bodies and is invalidated by the next AddBody that grows the arena.
func (s *Simulation) Body(id BodyID) (*actor.RigidBody, error) {
	if id < 0 || int(id) >= len(s.Bodies) || s.Bodies[id].Removed {
		return nil, fmt.Errorf("body %d: %w", id, ErrUnknownBody)
	}

	return &s.Bodies[id], nil
}

// BodyCount returns the number of live bodies
func (s *Simulation) BodyCount() int {
	return len(s.Bodies) - len(s.free)
}

// Update advances the simulation by Config.DeltaT: one broad-phase query for the whole frame,
// then Config.Substeps substeps. Collision events are dispatched at the end of the frame.
func (s *Simulation) Update() {
	before := s.Stats
	s.inFrame = true

	s.BroadPhase(s.candidatePairs)

	h := s.Config.SubstepDeltaT()
	for range s.Config.Substeps {
		s.Substep(h, s.candidatePairs)
	}

	s.inFrame = false
	s.logFrameStats(before)

	s.Events.flush()
}

// logf logs a condition as it happens, outside of Update
func (s *Simulation) logf(format string, args ...any) {
	if s.inFrame {
		return
	}
	s.Logger.Printf(format, args...)
}

// logFrameStats logs one line for the conditions counted during the last frame
func (s *Simulation) logFrameStats(before Stats) {
	gjkLimits := s.Stats.GJKIterationLimit - before.GJKIterationLimit
	epaLimits := s.Stats.EPAIterationLimit - before.EPAIterationLimit
	invalid := s.Stats.InvalidContacts - before.InvalidContacts
	if gjkLimits == 0 && epaLimits == 0 && invalid == 0 {
		return
	}

	s.Logger.Printf("xpbd: frame: %d gjk iteration limits, %d epa iteration limits, %d invalid contacts dropped",
		gjkLimits, epaLimits, invalid)
}

// Substep integrates the bodies over h and solves the contacts of the candidate pairs.
// The contacts are detected again for every substep, from the poses after integration.
func (s *Simulation) Substep(h float64, pairs *PairSet) {
	s.scaleMaterials()
	defer s.restoreMaterials()

	// ========== 1. Integration ==========
	for i := range s.Bodies {
		body := &s.Bodies[i]
		if body.Removed {
			continue
		}
		if !body.IsStatic() {
			body.AddForce(s.Config.Gravity.Mul(body.Mass))
		}
		body.Integrate(h)
	}

	// ========== 2. Narrow phase ==========
	s.constraints = s.constraints[:0]
	for _, pair := range pairs.Pairs() {
		if s.Bodies[pair.A].Removed || s.Bodies[pair.B].Removed {
			continue
		}

		penetration, ok := s.getPenetration(pair.A, pair.B)
		if !ok {
			continue
		}
		s.constraints = append(s.constraints, penetration)

		if penetration.Depth > 0 {
			s.Events.recordCollision(pair.A, pair.B)
		}
	}

	// ========== 3. Position solve ==========
	for i := range s.constraints {
		s.constraints[i].SolvePositions(s.Bodies, h)
	}

	// ========== 4. Velocities from the corrected poses ==========
	for i := range s.Bodies {
		if !s.Bodies[i].Removed {
			s.Bodies[i].UpdateVelocities(h)
		}
	}

	// ========== 5. Velocity solve ==========
	for i := range s.constraints {
		s.constraints[i].SolveVelocities(s.Bodies, s.Config.RestitutionCutoff, h)
	}
}

// scaleMaterials applies the coefficient multipliers to every body for one substep
func (s *Simulation) scaleMaterials() {
	s.materials = s.materials[:0]
	for i := range s.Bodies {
		body := &s.Bodies[i]
		s.materials = append(s.materials, body.Material)
		body.Material = constraint.ScaleMaterial(body.Material,
			s.Config.RestitutionMultiplier,
			s.Config.StaticFrictionMultiplier,
			s.Config.DynamicFrictionMultiplier,
		)
	}
}

func (s *Simulation) restoreMaterials() {
	for i := range s.materials {
		s.Bodies[i].Material = s.materials[i]
	}
}

// Collisions returns the pairs in contact during the last frame, in detection order
func (s *Simulation) Collisions() []CollisionPair {
	return append([]CollisionPair(nil), s.Events.activePairs()...)
}

// Clone returns an independent copy of the simulation: same bodies, config, stats and
// contact history. Listeners are not copied. Shapes are immutable and shared.
func (s *Simulation) Clone() (*Simulation, error) {
	clone, err := NewSimulation(s.Config)
	if err != nil {
		return nil, err
	}

	if err := copier.Copy(&clone.Bodies, &s.Bodies); err != nil {
		return nil, fmt.Errorf("clone bodies: %w", err)
	}
	clone.free = append(clone.free, s.free...)
	clone.Logger = s.Logger
	clone.Stats = s.Stats
	clone.Events = s.Events.clone()

	return clone, nil
}
