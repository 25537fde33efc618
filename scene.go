package xpbd

import (
	"errors"
	"fmt"
	"os"

	"github.com/akmonengine/xpbd/actor"
	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"
)

// Scene is the YAML description of a simulation: its config and its initial bodies
type Scene struct {
	Config Config      `yaml:"config"`
	Bodies []SceneBody `yaml:"bodies"`
}

type SceneBody struct {
	Name            string         `yaml:"name"`
	Shape           SceneShape     `yaml:"shape"`
	Position        mgl64.Vec3     `yaml:"position"`
	Orientation     *Orientation   `yaml:"orientation"`
	Velocity        mgl64.Vec3     `yaml:"velocity"`
	AngularVelocity mgl64.Vec3     `yaml:"angularVelocity"`
	Static          bool           `yaml:"static"`
	Mass            float64        `yaml:"mass"`
	Density         float64        `yaml:"density"`
	Material        *SceneMaterial `yaml:"material"`
}

type SceneShape struct {
	Type        string     `yaml:"type"` // sphere or box
	Radius      float64    `yaml:"radius"`
	HalfExtents mgl64.Vec3 `yaml:"halfExtents"`
}

// Orientation is a rotation of Angle radians about Axis
type Orientation struct {
	Axis  mgl64.Vec3 `yaml:"axis"`
	Angle float64    `yaml:"angle"`
}

// SceneMaterial overrides the coefficients of actor.DefaultMaterial
type SceneMaterial struct {
	Restitution     *float64 `yaml:"restitution"`
	StaticFriction  *float64 `yaml:"staticFriction"`
	DynamicFriction *float64 `yaml:"dynamicFriction"`
}

// ParseScene decodes a YAML scene; the config block is overlaid on DefaultConfig
func ParseScene(data []byte) (*Scene, error) {
	scene := &Scene{Config: DefaultConfig()}
	if err := yaml.Unmarshal(data, scene); err != nil {
		return nil, fmt.Errorf("decode scene: %w", err)
	}

	return scene, nil
}

func LoadScene(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene %s: %w", path, err)
	}

	scene, err := ParseScene(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return scene, nil
}

// Build creates the simulation described by the scene.
// The returned map gives the ID of every named body.
func (s *Scene) Build() (*Simulation, map[string]BodyID, error) {
	simulation, err := NewSimulation(s.Config)
	if err != nil {
		return nil, nil, err
	}

	names := make(map[string]BodyID, len(s.Bodies))
	for i, description := range s.Bodies {
		body, err := description.rigidBody()
		if err != nil {
			return nil, nil, fmt.Errorf("body %d (%q): %w", i, description.Name, err)
		}

		id, err := simulation.AddBody(body)
		if err != nil {
			return nil, nil, fmt.Errorf("body %d (%q): %w", i, description.Name, err)
		}

		if description.Name == "" {
			continue
		}
		if _, exists := names[description.Name]; exists {
			return nil, nil, fmt.Errorf("body %d: duplicate name %q", i, description.Name)
		}
		names[description.Name] = id
	}

	return simulation, names, nil
}

func (b SceneBody) shape() (actor.Shape, error) {
	switch b.Shape.Type {
	case "sphere":
		if !(b.Shape.Radius > 0) {
			return nil, fmt.Errorf("sphere radius must be positive, got %v", b.Shape.Radius)
		}
		return actor.NewSphere(b.Shape.Radius), nil
	case "box":
		h := b.Shape.HalfExtents
		if !(h.X() > 0 && h.Y() > 0 && h.Z() > 0) {
			return nil, fmt.Errorf("box half extents must be positive, got %v", h)
		}
		return actor.NewBox(h), nil
	case "":
		return nil, errors.New("missing shape type")
	default:
		return nil, fmt.Errorf("unknown shape type %q", b.Shape.Type)
	}
}

func (b SceneBody) rigidBody() (*actor.RigidBody, error) {
	shape, err := b.shape()
	if err != nil {
		return nil, err
	}

	transform := actor.NewTransform()
	transform.Position = b.Position
	if b.Orientation != nil {
		axis := actor.Normalize(b.Orientation.Axis)
		if axis == (mgl64.Vec3{}) {
			return nil, fmt.Errorf("orientation axis must not be zero")
		}
		transform.Rotation = mgl64.QuatRotate(b.Orientation.Angle, axis)
	}

	var body *actor.RigidBody
	switch {
	case b.Static:
		body = actor.NewRigidBody(transform, shape, actor.BodyTypeStatic, 0)
	case b.Mass < 0 || b.Density < 0:
		return nil, fmt.Errorf("mass and density must not be negative")
	case b.Mass > 0:
		body = actor.NewRigidBody(transform, shape, actor.BodyTypeDynamic, b.Mass)
	case b.Density > 0:
		body = actor.NewRigidBodyFromDensity(transform, shape, actor.BodyTypeDynamic, b.Density)
	default:
		body = actor.NewRigidBody(transform, shape, actor.BodyTypeDynamic, 1)
	}

	if !body.IsStatic() {
		body.Velocity = b.Velocity
		body.AngularVelocity = b.AngularVelocity
	}

	if b.Material != nil {
		if b.Material.Restitution != nil {
			body.Material.Restitution = *b.Material.Restitution
		}
		if b.Material.StaticFriction != nil {
			body.Material.StaticFriction = *b.Material.StaticFriction
		}
		if b.Material.DynamicFriction != nil {
			body.Material.DynamicFriction = *b.Material.DynamicFriction
		}
	}

	return body, nil
}
