package xpbd

import (
	"bytes"
	"errors"
	"io"
	"log"
	"math"
	"strings"
	"testing"

	"github.com/akmonengine/xpbd/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// Test helper functions

func newTestSimulation(t testing.TB, config Config) *Simulation {
	t.Helper()

	s, err := NewSimulation(config)
	if err != nil {
		t.Fatalf("NewSimulation() error = %v", err)
	}
	s.Logger = log.New(io.Discard, "", 0)

	return s
}

func createBox(position mgl64.Vec3, halfExtents mgl64.Vec3, bodyType actor.BodyType) *actor.RigidBody {
	return actor.NewRigidBody(
		actor.Transform{Position: position, Rotation: mgl64.QuatIdent()},
		actor.NewBox(halfExtents),
		bodyType,
		1.0,
	)
}

func createSphere(position mgl64.Vec3, radius float64, bodyType actor.BodyType) *actor.RigidBody {
	return actor.NewRigidBody(
		actor.Transform{Position: position, Rotation: mgl64.QuatIdent()},
		actor.NewSphere(radius),
		bodyType,
		1.0,
	)
}

// createGround is a static slab whose top face is the plane z = 0
func createGround() *actor.RigidBody {
	return createBox(mgl64.Vec3{0, 0, -1}, mgl64.Vec3{10, 10, 1}, actor.BodyTypeStatic)
}

func mustAdd(t testing.TB, s *Simulation, body *actor.RigidBody) BodyID {
	t.Helper()

	id, err := s.AddBody(body)
	if err != nil {
		t.Fatalf("AddBody() error = %v", err)
	}

	return id
}

func inelastic(body *actor.RigidBody) *actor.RigidBody {
	body.Material.Restitution = 0
	return body
}

func isFiniteVec(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// sameBits compares bit patterns, so that two NaN are equal
func sameBits(a, b mgl64.Vec3) bool {
	for i := range a {
		if math.Float64bits(a[i]) != math.Float64bits(b[i]) {
			return false
		}
	}
	return true
}

func TestNewSimulation_InvalidConfig(t *testing.T) {
	config := DefaultConfig()
	config.Substeps = 0

	if _, err := NewSimulation(config); err == nil {
		t.Error("NewSimulation() should reject 0 substeps")
	}
}

func TestSimulation_AddRemoveBody(t *testing.T) {
	s := newTestSimulation(t, DefaultConfig())

	a := mustAdd(t, s, createSphere(mgl64.Vec3{0, 0, 0}, 1, actor.BodyTypeDynamic))
	b := mustAdd(t, s, createSphere(mgl64.Vec3{5, 0, 0}, 1, actor.BodyTypeDynamic))
	c := mustAdd(t, s, createBox(mgl64.Vec3{10, 0, 0}, mgl64.Vec3{1, 1, 1}, actor.BodyTypeStatic))

	if a != 0 || b != 1 || c != 2 {
		t.Fatalf("IDs = %d, %d, %d, want 0, 1, 2", a, b, c)
	}
	if s.BodyCount() != 3 {
		t.Errorf("BodyCount() = %d, want 3", s.BodyCount())
	}

	if err := s.RemoveBody(b); err != nil {
		t.Fatalf("RemoveBody() error = %v", err)
	}
	if s.BodyCount() != 2 {
		t.Errorf("BodyCount() = %d after removal, want 2", s.BodyCount())
	}
	if _, err := s.Body(b); !errors.Is(err, ErrUnknownBody) {
		t.Errorf("Body(removed) error = %v, want ErrUnknownBody", err)
	}
	if err := s.RemoveBody(b); !errors.Is(err, ErrUnknownBody) {
		t.Errorf("RemoveBody(removed) error = %v, want ErrUnknownBody", err)
	}

	// The freed slot is reused
	d := mustAdd(t, s, createSphere(mgl64.Vec3{0, 5, 0}, 0.5, actor.BodyTypeDynamic))
	if d != b {
		t.Errorf("AddBody() = %d, want recycled slot %d", d, b)
	}
	body, err := s.Body(d)
	if err != nil {
		t.Fatalf("Body() error = %v", err)
	}
	if body.Transform.Position != (mgl64.Vec3{0, 5, 0}) {
		t.Errorf("recycled body position = %v, want (0, 5, 0)", body.Transform.Position)
	}

	for _, id := range []BodyID{-1, 3, 100} {
		if _, err := s.Body(id); !errors.Is(err, ErrUnknownBody) {
			t.Errorf("Body(%d) error = %v, want ErrUnknownBody", id, err)
		}
	}

	if _, err := s.AddBody(&actor.RigidBody{}); err == nil {
		t.Error("AddBody() should reject a body without shape")
	}
	if _, err := s.AddBody(nil); err == nil {
		t.Error("AddBody(nil) should fail")
	}
}

func TestSimulation_AddBodyCopies(t *testing.T) {
	s := newTestSimulation(t, DefaultConfig())
	body := createSphere(mgl64.Vec3{0, 0, 3}, 1, actor.BodyTypeDynamic)
	id := mustAdd(t, s, body)

	body.Transform.Position = mgl64.Vec3{42, 0, 0}

	stored, _ := s.Body(id)
	if stored.Transform.Position != (mgl64.Vec3{0, 0, 3}) {
		t.Errorf("stored position = %v, want the position at insertion", stored.Transform.Position)
	}
}

func TestSimulation_BodyAfterGrowth(t *testing.T) {
	s := newTestSimulation(t, DefaultConfig())
	id := mustAdd(t, s, createSphere(mgl64.Vec3{}, 1, actor.BodyTypeDynamic))
	for i := 0; i < 100; i++ {
		mustAdd(t, s, createSphere(mgl64.Vec3{float64(i+1) * 3, 0, 0}, 1, actor.BodyTypeDynamic))
	}

	// Fetched again after the arena grew
	body, err := s.Body(id)
	if err != nil {
		t.Fatalf("Body() error = %v", err)
	}
	if body != &s.Bodies[id] {
		t.Fatal("Body() does not point into Bodies")
	}

	body.Velocity = mgl64.Vec3{1, 2, 3}
	if s.Bodies[id].Velocity != (mgl64.Vec3{1, 2, 3}) {
		t.Errorf("stored velocity = %v, want the write through Body()", s.Bodies[id].Velocity)
	}
}

func TestSimulation_FreeFall(t *testing.T) {
	s := newTestSimulation(t, DefaultConfig())
	id := mustAdd(t, s, createSphere(mgl64.Vec3{0, 0, 100}, 1, actor.BodyTypeDynamic))
	ground := mustAdd(t, s, createGround())

	const frames = 70
	for i := 0; i < frames; i++ {
		s.Update()
	}

	body, _ := s.Body(id)
	elapsed := float64(frames) * s.Config.DeltaT
	wantVelocity := -9.81 * elapsed
	if math.Abs(body.Velocity.Z()-wantVelocity) > 1e-9 {
		t.Errorf("velocity z = %v, want %v", body.Velocity.Z(), wantVelocity)
	}

	// Semi-implicit Euler lands slightly below the analytic parabola
	analytic := 100 - 0.5*9.81*elapsed*elapsed
	if body.Transform.Position.Z() > analytic || body.Transform.Position.Z() < analytic-0.1 {
		t.Errorf("position z = %v, want slightly below %v", body.Transform.Position.Z(), analytic)
	}

	static, _ := s.Body(ground)
	if static.Transform.Position != (mgl64.Vec3{0, 0, -1}) || static.Velocity != (mgl64.Vec3{}) {
		t.Errorf("static body moved: position %v, velocity %v", static.Transform.Position, static.Velocity)
	}
}

func TestSimulation_SphereSettles(t *testing.T) {
	s := newTestSimulation(t, DefaultConfig())
	mustAdd(t, s, inelastic(createGround()))
	id := mustAdd(t, s, inelastic(createSphere(mgl64.Vec3{0, 0, 2}, 1, actor.BodyTypeDynamic)))

	// 2 seconds: the fall takes about 0.45s
	for i := 0; i < 140; i++ {
		s.Update()
	}

	body, _ := s.Body(id)
	if math.Abs(body.Transform.Position.Z()-1) > 1e-3 {
		t.Errorf("resting height = %v, want 1", body.Transform.Position.Z())
	}
	if math.Abs(body.Velocity.Z()) > 1e-3 {
		t.Errorf("vertical velocity = %v, want ~0", body.Velocity.Z())
	}
	if body.Velocity.Len() > 1e-2 {
		t.Errorf("velocity = %v, want ~0", body.Velocity)
	}
	if s.Stats != (Stats{}) {
		t.Errorf("Stats = %+v, want no logged condition", s.Stats)
	}
}

func TestSimulation_SphereDrop(t *testing.T) {
	tests := []struct {
		name string
		clip bool
	}{
		{name: "default config", clip: true},
		{name: "single point contacts", clip: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			config.ClipContacts = tt.clip
			s := newTestSimulation(t, config)
			ground := createGround()
			ground.Material.Restitution = 0.5
			sphere := createSphere(mgl64.Vec3{0, 0, 5}, 1, actor.BodyTypeDynamic)
			sphere.Material.Restitution = 0.5
			mustAdd(t, s, ground)
			id := mustAdd(t, s, sphere)

			// 60 seconds
			var peaks []float64
			previous := 0.0
			maxDrift := 0.0
			for frame := 0; frame < 4200; frame++ {
				s.Update()

				body, _ := s.Body(id)
				if previous > 0 && body.Velocity.Z() <= 0 && body.Transform.Position.Z() > 1.01 {
					peaks = append(peaks, body.Transform.Position.Z())
				}
				previous = body.Velocity.Z()
				maxDrift = math.Max(maxDrift, math.Hypot(body.Transform.Position.X(), body.Transform.Position.Y()))
			}

			if len(peaks) < 3 {
				t.Fatalf("bounce peaks = %v, want at least 3 bounces", peaks)
			}
			last := 5.0
			for i, peak := range peaks {
				if peak >= last {
					t.Errorf("bounce %d reached %v, not below the previous %v", i, peak, last)
				}
				last = peak
			}

			body, _ := s.Body(id)
			if math.Abs(body.Velocity.Z()) > 1e-3 {
				t.Errorf("vertical velocity after 60s = %v, want |vz| < 1e-3", body.Velocity.Z())
			}
			if math.Abs(body.Transform.Position.Z()-1) > 1e-3 {
				t.Errorf("resting height = %v, want 1", body.Transform.Position.Z())
			}

			// A vertical drop stays vertical
			if maxDrift > 1e-4 {
				t.Errorf("horizontal drift reached %v, want < 1e-4", maxDrift)
			}
			if horizontal := math.Hypot(body.Velocity.X(), body.Velocity.Y()); horizontal > 1e-4 {
				t.Errorf("horizontal speed after 60s = %v, want ~0", horizontal)
			}
			if body.AngularVelocity.Len() > 1e-4 {
				t.Errorf("angular velocity after 60s = %v, want ~0", body.AngularVelocity)
			}
		})
	}
}

func TestSimulation_RestingBoxDoesNotJitter(t *testing.T) {
	positions := []mgl64.Vec3{
		{3.3, -1.7, 0.5}, {-0.37, 2.11, 0.5}, {0, 0, 0.5},
		{3, 0, 0.5}, {0, 1.7, 0.5}, {0.3, 0.2, 0.5}, {-6.2, 4.4, 0.5},
	}
	for _, position := range positions {
		s := newTestSimulation(t, DefaultConfig())
		mustAdd(t, s, inelastic(createGround()))
		id := mustAdd(t, s, inelastic(createBox(position, mgl64.Vec3{0.5, 0.5, 0.5}, actor.BodyTypeDynamic)))

		// 10 seconds
		maxSpeed := 0.0
		for i := 0; i < 700; i++ {
			s.Update()

			body, _ := s.Body(id)
			maxSpeed = math.Max(maxSpeed, math.Max(body.Velocity.Len(), body.AngularVelocity.Len()))
		}

		body, _ := s.Body(id)
		if body.Transform.Position.Sub(position).Len() > 1e-4 {
			t.Errorf("box at %v drifted to %v", position, body.Transform.Position)
		}
		if maxSpeed > 1e-3 {
			t.Errorf("box at %v reached a speed of %v, want ~0", position, maxSpeed)
		}
	}
}

func TestSimulation_LogsOncePerFrame(t *testing.T) {
	config := DefaultConfig()
	config.EPAMaxIterations = 1
	s := newTestSimulation(t, config)

	var output bytes.Buffer
	s.Logger = log.New(&output, "", 0)

	mustAdd(t, s, inelastic(createGround()))
	sphere := mustAdd(t, s, inelastic(createSphere(mgl64.Vec3{0, 0, 0.9}, 1, actor.BodyTypeDynamic)))

	const frames = 3
	for i := 0; i < frames; i++ {
		s.Update()
	}

	lines := strings.Count(output.String(), "\n")
	if lines < 1 || lines > frames {
		t.Fatalf("logged %d lines over %d frames, want one per frame at most:\n%s", lines, frames, output.String())
	}
	if s.Stats.EPAIterationLimit <= lines {
		t.Errorf("Stats.EPAIterationLimit = %d, want more than the %d logged lines", s.Stats.EPAIterationLimit, lines)
	}
	if !strings.Contains(output.String(), "epa iteration limits") {
		t.Errorf("log = %q, want the epa iteration limit count", output.String())
	}

	// Outside of Update, each condition is logged as it happens
	output.Reset()
	body, _ := s.Body(sphere)
	body.Transform.Position = mgl64.Vec3{0, 0, 0.9}
	before := s.Stats.EPAIterationLimit
	if _, ok, _ := s.GetPenetration(sphere, 0); !ok {
		t.Fatal("the sphere must touch the ground")
	}
	if s.Stats.EPAIterationLimit != before+1 || strings.Count(output.String(), "\n") != 1 {
		t.Errorf("direct query: Stats.EPAIterationLimit %d -> %d, log %q", before, s.Stats.EPAIterationLimit, output.String())
	}
}

func TestSimulation_ElasticHeadOn(t *testing.T) {
	tests := []struct {
		name         string
		massB        float64
		velocityB    float64
		wantA, wantB float64
	}{
		{name: "equal masses swap velocities", massB: 1, velocityB: -2, wantA: -2, wantB: 2},
		{name: "heavier target", massB: 3, velocityB: 0, wantA: -1, wantB: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			config.Gravity = mgl64.Vec3{}
			s := newTestSimulation(t, config)

			a := createSphere(mgl64.Vec3{-1.013, 0, 0}, 0.5, actor.BodyTypeDynamic)
			a.Velocity = mgl64.Vec3{2, 0, 0}
			b := actor.NewRigidBody(actor.Transform{Position: mgl64.Vec3{1, 0, 0}}, actor.NewSphere(0.5), actor.BodyTypeDynamic, tt.massB)
			b.Velocity = mgl64.Vec3{tt.velocityB, 0, 0}
			idA, idB := mustAdd(t, s, a), mustAdd(t, s, b)

			for i := 0; i < 70; i++ {
				s.Update()
			}

			bodyA, _ := s.Body(idA)
			bodyB, _ := s.Body(idB)
			if math.Abs(bodyA.Velocity.X()-tt.wantA) > 1e-6 || math.Abs(bodyB.Velocity.X()-tt.wantB) > 1e-6 {
				t.Errorf("velocities = %v, %v, want %v, %v", bodyA.Velocity.X(), bodyB.Velocity.X(), tt.wantA, tt.wantB)
			}

			momentum := bodyA.Velocity.Mul(bodyA.Mass).Add(bodyB.Velocity.Mul(bodyB.Mass))
			initial := 2 + tt.massB*tt.velocityB
			if math.Abs(momentum.X()-initial) > 1e-6 {
				t.Errorf("momentum = %v, want %v", momentum.X(), initial)
			}
		})
	}
}

func TestSimulation_RemovedBodyIsSkipped(t *testing.T) {
	s := newTestSimulation(t, DefaultConfig())
	mustAdd(t, s, createGround())
	a := mustAdd(t, s, createSphere(mgl64.Vec3{0, 0, 0.5}, 1, actor.BodyTypeDynamic))
	b := mustAdd(t, s, createSphere(mgl64.Vec3{0.5, 0, 0.5}, 1, actor.BodyTypeDynamic))

	s.Update()
	if err := s.RemoveBody(a); err != nil {
		t.Fatal(err)
	}
	s.Update()

	if s.Bodies[a] != (actor.RigidBody{Removed: true}) {
		t.Error("a removed slot must not be simulated")
	}
	for _, pair := range s.Collisions() {
		if pair.Contains(a) {
			t.Errorf("Collisions() still reports removed body: %v", pair)
		}
	}
	if body, _ := s.Body(b); !isFiniteVec(body.Transform.Position) {
		t.Errorf("body position = %v", body.Transform.Position)
	}
}

func TestSimulation_CloneIsDeterministic(t *testing.T) {
	s := newTestSimulation(t, DefaultConfig())
	mustAdd(t, s, createGround())
	for i := 0; i < 4; i++ {
		box := createBox(mgl64.Vec3{float64(i) * 0.7, 0.2 * float64(i), 1 + 1.2*float64(i)}, mgl64.Vec3{0.5, 0.4, 0.3}, actor.BodyTypeDynamic)
		box.Transform.Rotation = mgl64.QuatRotate(0.3*float64(i), mgl64.Vec3{1, 0, 0})
		box.AngularVelocity = mgl64.Vec3{0, 0.5, float64(i)}
		mustAdd(t, s, box)
		mustAdd(t, s, createSphere(mgl64.Vec3{-1.5, float64(i), 2 + float64(i)}, 0.4, actor.BodyTypeDynamic))
	}

	for i := 0; i < 10; i++ {
		s.Update()
	}

	clone, err := s.Clone()
	if err != nil {
		t.Fatalf("Clone() error = %v", err)
	}
	if len(clone.Bodies) != len(s.Bodies) {
		t.Fatalf("clone has %d bodies, want %d", len(clone.Bodies), len(s.Bodies))
	}

	// Independent arenas
	saved := clone.Bodies[1].Velocity
	clone.Bodies[1].Velocity = saved.Add(mgl64.Vec3{1, 0, 0})
	if s.Bodies[1].Velocity == clone.Bodies[1].Velocity {
		t.Fatal("the clone shares its bodies with its source")
	}
	clone.Bodies[1].Velocity = saved

	for i := 0; i < 60; i++ {
		s.Update()
		clone.Update()
	}

	for i := range s.Bodies {
		a, b := &s.Bodies[i], &clone.Bodies[i]
		if !sameBits(a.Transform.Position, b.Transform.Position) ||
			!sameBits(a.Transform.Rotation.V, b.Transform.Rotation.V) ||
			math.Float64bits(a.Transform.Rotation.W) != math.Float64bits(b.Transform.Rotation.W) ||
			!sameBits(a.Velocity, b.Velocity) ||
			!sameBits(a.AngularVelocity, b.AngularVelocity) {
			t.Fatalf("body %d diverged:\n%+v\n%+v", i, a.Transform, b.Transform)
		}
	}
	if s.Stats != clone.Stats {
		t.Errorf("Stats = %+v, clone %+v", s.Stats, clone.Stats)
	}
}

func TestSimulation_MaterialMultipliersAreRestored(t *testing.T) {
	config := DefaultConfig()
	config.RestitutionMultiplier = 0.5
	config.StaticFrictionMultiplier = 0
	s := newTestSimulation(t, config)
	id := mustAdd(t, s, createSphere(mgl64.Vec3{0, 0, 5}, 1, actor.BodyTypeDynamic))

	s.Update()

	body, _ := s.Body(id)
	if body.Material != actor.DefaultMaterial() {
		t.Errorf("Material = %+v after Update, want %+v", body.Material, actor.DefaultMaterial())
	}
}

func BenchmarkSimulation_Update(b *testing.B) {
	s := newTestSimulation(b, DefaultConfig())
	mustAdd(b, s, createGround())
	for x := 0; x < 5; x++ {
		for y := 0; y < 5; y++ {
			for z := 0; z < 4; z++ {
				position := mgl64.Vec3{float64(x)*1.5 - 3, float64(y)*1.5 - 3, 1 + float64(z)*1.5}
				if (x+y+z)%2 == 0 {
					mustAdd(b, s, createBox(position, mgl64.Vec3{0.5, 0.5, 0.5}, actor.BodyTypeDynamic))
				} else {
					mustAdd(b, s, createSphere(position, 0.5, actor.BodyTypeDynamic))
				}
			}
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Update()
	}
}
