package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"os"

	"github.com/akmonengine/xpbd"
	"github.com/akmonengine/xpbd/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// Random box and sphere poses around the origin, checked for invalid contacts
func main() {
	trials := flag.Int("trials", 1_000_000, "number of random pairs")
	seed := flag.Int64("seed", 1, "random seed")
	quiet := flag.Bool("q", false, "do not log the dropped contacts")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	randomVec := func() mgl64.Vec3 {
		return mgl64.Vec3{rng.Float64()*2 - 1, rng.Float64()*2 - 1, rng.Float64()*2 - 1}
	}
	randomBody := func() *actor.RigidBody {
		transform := actor.NewTransform()
		transform.Position = randomVec()
		if axis := actor.Normalize(randomVec()); axis != (mgl64.Vec3{}) {
			transform.Rotation = mgl64.QuatRotate(rng.Float64()*2*math.Pi, axis)
		}

		var shape actor.Shape
		if rng.Intn(2) == 0 {
			shape = actor.NewSphere(0.1 + rng.Float64())
		} else {
			shape = actor.NewBox(mgl64.Vec3{0.1 + rng.Float64(), 0.1 + rng.Float64(), 0.1 + rng.Float64()})
		}

		return actor.NewRigidBody(transform, shape, actor.BodyTypeDynamic, 1)
	}

	simulation, err := xpbd.NewSimulation(xpbd.DefaultConfig())
	if err != nil {
		log.Fatal(err)
	}
	if *quiet {
		simulation.Logger = log.New(io.Discard, "", 0)
	}

	colliding, invalid := 0, 0
	for i := 0; i < *trials; i++ {
		a, err := simulation.AddBody(randomBody())
		if err != nil {
			log.Fatal(err)
		}
		b, err := simulation.AddBody(randomBody())
		if err != nil {
			log.Fatal(err)
		}

		penetration, ok, err := simulation.GetPenetration(a, b)
		if err != nil {
			log.Fatal(err)
		}
		if ok {
			colliding++
			if math.IsNaN(penetration.Depth) || penetration.Depth < 0 || math.Abs(penetration.Normal.Len()-1) > 1e-6 {
				invalid++
				fmt.Printf("trial %d: invalid penetration %+v\n", i, penetration)
			}
		}

		// Both slots are recycled by the next trial
		if err := simulation.RemoveBody(b); err != nil {
			log.Fatal(err)
		}
		if err := simulation.RemoveBody(a); err != nil {
			log.Fatal(err)
		}
	}

	fmt.Printf("%d trials, %d colliding, %d invalid\n", *trials, colliding, invalid)
	fmt.Printf("stats: %+v\n", simulation.Stats)

	if invalid > 0 || simulation.Stats.InvalidContacts > 0 {
		os.Exit(1)
	}
}
