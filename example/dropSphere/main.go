package main

import (
	"flag"
	"fmt"
	"log"
	"slices"

	"github.com/akmonengine/xpbd"
	"github.com/akmonengine/xpbd/actor"
	"github.com/akmonengine/xpbd/constraint"
)

// defaultScene drops a bouncy unit sphere from 5m onto a static ground box
const defaultScene = `
config:
  gravity: [0, 0, -9.81]
  deltaT: 0.014285714285714285
  substeps: 8
bodies:
  - name: ground
    static: true
    shape: {type: box, halfExtents: [10, 10, 1]}
    position: [0, 0, -1]
    material: {restitution: 0.5}
  - name: sphere
    shape: {type: sphere, radius: 1}
    position: [0, 0, 5]
    mass: 1
    material: {restitution: 0.5}
`

// CollisionDebugger prints what the narrow phase sees for the tracked body
type CollisionDebugger interface {
	DebugBody(frame int, body *actor.RigidBody)
	DebugPenetration(bodyA, bodyB *actor.RigidBody, penetration constraint.PenetrationConstraint)
}

// SimpleDebugger prints one line per body and per contact
type SimpleDebugger struct{}

func (d *SimpleDebugger) DebugBody(frame int, body *actor.RigidBody) {
	fmt.Printf("%4d position=%.6f velocity=%.6f angular=%.6f\n",
		frame, body.Transform.Position, body.Velocity, body.AngularVelocity)
}

func (d *SimpleDebugger) DebugPenetration(bodyA, bodyB *actor.RigidBody, penetration constraint.PenetrationConstraint) {
	rA := bodyA.Transform.Rotation.Rotate(penetration.LocalA)
	rB := bodyB.Transform.Rotation.Rotate(penetration.LocalB)

	fmt.Printf("     contact %d-%d normal=%.6f depth=%.6g\n", penetration.BodyA, penetration.BodyB, penetration.Normal, penetration.Depth)
	fmt.Printf("        rA=%.4f (len=%.3f) rB=%.4f (len=%.3f)\n", rA, rA.Len(), rB, rB.Len())
}

func loadScene(path string) (*xpbd.Scene, error) {
	if path == "" {
		return xpbd.ParseScene([]byte(defaultScene))
	}

	return xpbd.LoadScene(path)
}

func main() {
	scenePath := flag.String("scene", "", "YAML scene file (default: sphere dropped on a ground box)")
	frames := flag.Int("frames", 420, "number of frames to simulate")
	tracked := flag.String("body", "sphere", "name of the body whose trajectory is printed")
	verbose := flag.Bool("v", false, "print the contacts of the tracked body before each frame")
	flag.Parse()

	scene, err := loadScene(*scenePath)
	if err != nil {
		log.Fatal(err)
	}

	simulation, names, err := scene.Build()
	if err != nil {
		log.Fatal(err)
	}

	id, ok := names[*tracked]
	if !ok {
		log.Fatalf("no body named %q in the scene", *tracked)
	}

	simulation.Events.Subscribe(xpbd.COLLISION_ENTER, func(event xpbd.Event) {
		e := event.(xpbd.CollisionEnterEvent)
		fmt.Printf("     %v %d-%d\n", event.Type(), e.BodyA, e.BodyB)
	})
	simulation.Events.Subscribe(xpbd.COLLISION_EXIT, func(event xpbd.Event) {
		e := event.(xpbd.CollisionExitEvent)
		fmt.Printf("     %v %d-%d\n", event.Type(), e.BodyA, e.BodyB)
	})

	debugger := &SimpleDebugger{}
	others := make([]xpbd.BodyID, 0, len(names))
	for _, other := range names {
		others = append(others, other)
	}
	slices.Sort(others)

	for frame := 0; frame < *frames; frame++ {
		body, err := simulation.Body(id)
		if err != nil {
			log.Fatal(err)
		}

		if *verbose {
			penetrations, err := simulation.GetPenetrationsFor(id, others)
			if err != nil {
				log.Fatal(err)
			}
			for _, p := range penetrations {
				debugger.DebugPenetration(&simulation.Bodies[p.BodyA], &simulation.Bodies[p.BodyB], p)
			}
		}

		simulation.Update()
		debugger.DebugBody(frame, body)
	}

	fmt.Printf("stats: %+v\n", simulation.Stats)
}
