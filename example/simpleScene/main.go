package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/akmonengine/ogrenewt"
	"github.com/akmonengine/ogrenewt/actor"
	"github.com/akmonengine/ogrenewt/constraint"
	"github.com/akmonengine/ogrenewt/debugger"
	"github.com/akmonengine/ogrenewt/raycast"
	"github.com/akmonengine/ogrenewt/scene"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/lucasb-eyer/go-colorful"
)

var groundColor = colorful.Color{R: 0.6, G: 0.4, B: 0.2}

// Scene holds the bodies of the demo and the nodes they drive
type Scene struct {
	World    *ogrenewt.World
	Graph    *scene.Graph
	Ground   *ogrenewt.Body
	Cube     *ogrenewt.Body
	Bob      *ogrenewt.Body
	Pendulum *constraint.BallAndSocket
	Zone     *ogrenewt.TriggerBody
}

// SetupScene creates a ground plane, a cube falling through a trigger zone
// and a pendulum hanging from the world
func SetupScene(cfg ogrenewt.Config) *Scene {
	world := ogrenewt.NewWorld(
		ogrenewt.WithConfig(cfg),
		ogrenewt.WithLogger(ogrenewt.NewDefaultLogger("simpleScene", false)),
	)
	graph := scene.NewGraph()
	s := &Scene{World: world, Graph: graph}

	plane := actor.NewCollision(&actor.Plane{Normal: mgl64.Vec3{0, 1, 0}, Distance: 0})
	defer plane.Release()
	s.Ground = world.CreateRigidBody("ground", plane, 0, actor.NewTransform())
	s.Ground.SetMaterialGroup("ground")

	box := actor.NewCollision(&actor.Box{HalfExtents: mgl64.Vec3{0.5, 0.5, 0.5}})
	defer box.Release()
	cubePose := actor.NewTransform()
	cubePose.Position = mgl64.Vec3{0, 5, 0}
	cubePose.Rotation = mgl64.QuatRotate(0.4, mgl64.Vec3{0, 0, 1})
	s.Cube = world.CreateRigidBody("cube", box, 1, cubePose)
	s.Cube.SetStandardForceCallback()
	s.Cube.SetRestitution(0.5)
	s.Cube.AttachNode(graph.RootNode().CreateChild("cube", false), true)
	s.Cube.SetContactCallback(func(body ogrenewt.PhysicsBody, contact ogrenewt.ContactEvent) {
		fmt.Printf("%s touches %s at %d points\n", body.Name(), contact.Other.Name(), len(contact.Points))
	})

	sphere := actor.NewCollision(&actor.Sphere{Radius: 0.25})
	defer sphere.Release()
	bobPose := actor.NewTransform()
	bobPose.Position = mgl64.Vec3{3, 4, 0}
	s.Bob = world.CreateRigidBody("bob", sphere, 2, bobPose)
	s.Bob.SetStandardForceCallback()
	s.Bob.SetAutoSleep(false)
	s.Bob.AttachNode(graph.RootNode().CreateChild("bob", false), true)
	s.Pendulum = constraint.NewBallAndSocket(s.Bob, nil, mgl64.Vec3{2, 4, 0})

	zone := actor.NewCollision(&actor.Box{HalfExtents: mgl64.Vec3{2, 0.5, 2}})
	defer zone.Release()
	zonePose := actor.NewTransform()
	zonePose.Position = mgl64.Vec3{0, 2, 0}
	s.Zone = world.CreateTriggerBody("zone", zone, zonePose, ogrenewt.TriggerFuncs{
		Enter: func(other ogrenewt.PhysicsBody) { fmt.Printf("%s entered the zone\n", other.Name()) },
		Exit:  func(other ogrenewt.PhysicsBody) { fmt.Printf("%s left the zone\n", other.Name()) },
	})

	return s
}

func loadConfig(path string) (ogrenewt.Config, error) {
	if path == "" {
		return ogrenewt.DefaultConfig(), nil
	}
	return ogrenewt.LoadConfig(path)
}

func main() {
	configPath := flag.String("config", "", "TOML or YAML world config")
	frames := flag.Int("frames", 180, "frames to simulate")
	frameRate := flag.Float64("fps", 50, "render frame rate")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	s := SetupScene(cfg)
	defer s.World.Destroy()

	debug := debugger.New(s.World, s.Graph)
	debug.SetMaterialColor("ground", groundColor)

	ray := raycast.NewBasicRaycast(s.World, mgl64.Vec3{0, 10, 0}, mgl64.Vec3{0, -1, 0}, true)
	ray.SetDebugRecording(true)

	frame := 1 / *frameRate
	for i := range *frames {
		fraction := s.World.Update(frame)
		s.World.SyncNodes(fraction)
		debug.ShowDebugInformation()

		if i%30 == 0 {
			ray.Go(s.World, mgl64.Vec3{0, 10, 0}, mgl64.Vec3{0, -1, 0})
			if hit, ok := ray.FirstHit(); ok {
				fmt.Printf("frame %d: ray hits %s at %v\n", i, hit.Body.Name(), hit.Point(ray.Start(), ray.End()))
			}
			debug.HideRays()
			debug.ShowRay(ray)

			cube := s.Cube.Node().Derived(false)
			fmt.Printf("frame %d: cube node at %v, pendulum rows %d\n", i, cube.Position, s.Pendulum.RowCount())
		}
	}

	stats := debug.Stats()
	fmt.Printf("debugger: %d built, %d repositioned, %d pruned, %d objects live\n",
		stats.Built, stats.Repositioned, stats.Pruned, s.Graph.ManualObjectCount())
	debug.HideDebugInformation()
}
