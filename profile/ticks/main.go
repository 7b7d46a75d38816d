// Profiling:
// go build ./profile/ticks
// go tool pprof -http=":8000" -nodefraction=0.001 ./ticks cpu.pprof

package main

import (
	"log"

	"github.com/pkg/profile"

	tickframe "github.com/jerry-samek/tick-frame-space-sub008"
	"github.com/jerry-samek/tick-frame-space-sub008/grid"
	"github.com/jerry-samek/tick-frame-space-sub008/scalar"
)

func main() {
	ticks := 2000
	entities := 512
	p := profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	run(ticks, entities)
	p.Stop()
}

func run(ticks, entities int) {
	engine, err := tickframe.NewEngine(tickframe.Config{
		Dimensions: 3,
		Workers:    8,
	}, tickframe.EngineDeps{})
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer engine.Close()

	// An 8x8x8 shell of entities drifting toward the center keeps the
	// resolver contending for cells instead of measuring pure movement.
	reqs := make([]tickframe.SpawnRequest, 0, entities)
	for i := 0; i < entities; i++ {
		x := int64(i%8) * 3
		y := int64((i/8)%8) * 3
		z := int64(i/64) * 3
		reqs = append(reqs, tickframe.SpawnRequest{
			Pos:    grid.Ints(x, y, z),
			Energy: scalar.FromInt64(int64(i%97) + 1),
			Momentum: tickframe.Momentum{
				Cost: scalar.One(),
				Dir:  grid.Ints(sign(10-x), sign(10-y), sign(10-z)),
			},
		})
	}
	if _, err := engine.Seed(reqs...); err != nil {
		log.Fatalf("seeding: %v", err)
	}

	for i := 0; i < ticks; i++ {
		if _, err := engine.Step(); err != nil {
			log.Fatalf("tick %d: %v", i+1, err)
		}
	}
}

func sign(v int64) int64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
