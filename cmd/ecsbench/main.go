// Profiling:
// go build ./cmd/ecsbench
// ./ecsbench -profile cpu
// go tool pprof -http=":8000" -nodefraction=0.001 ./ecsbench cpu.pprof

package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pkg/profile"

	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/ecs"
	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/group"
)

type comp1 struct {
	V int64
	W int64
}

type comp2 struct {
	V int64
	W int64
}

type comp3 struct {
	V int64
}

func main() {
	mode := flag.String("profile", "", "cpu, mem or empty for none")
	dir := flag.String("out", ".", "profile output directory")
	rounds := flag.Int("rounds", 20, "fresh containers to build")
	iters := flag.Int("iters", 200, "churn iterations per round")
	entities := flag.Int("entities", 1000, "entities created per iteration")
	flag.Parse()

	var p interface{ Stop() }
	switch *mode {
	case "cpu":
		p = profile.Start(profile.CPUProfile, profile.ProfilePath(*dir), profile.NoShutdownHook)
	case "mem":
		p = profile.Start(profile.MemProfileAllocs, profile.ProfilePath(*dir), profile.NoShutdownHook)
	case "":
	default:
		fmt.Fprintf(os.Stderr, "unknown profile mode %q\n", *mode)
		os.Exit(2)
	}

	start := time.Now()
	visits := run(*rounds, *iters, *entities)
	elapsed := time.Since(start)
	if p != nil {
		p.Stop()
	}

	ops := *rounds * *iters * *entities
	fmt.Printf("%d entities churned, %d group visits in %s (%.0f ns/entity)\n",
		ops, visits, elapsed, float64(elapsed.Nanoseconds())/float64(ops))
}

// run creates entities, lets a custom group track them, iterates it and
// removes everything again, so the membership index does full add/remove
// cycles every iteration.
func run(rounds, iters, numEntities int) int {
	visits := 0
	for range rounds {
		cat := ecs.NewCatalog()
		ecs.RegisterData[comp1](cat)
		ecs.RegisterData[comp2](cat)
		ecs.RegisterData[comp3](cat)
		c := ecs.NewContainerSize(ecs.NewRegistry(nil), cat, nil, numEntities)
		groups := group.New(c, nil)
		both := group.With2[comp1, comp2](groups)

		entities := make([]ecs.Entity, 0, numEntities)
		for range iters {
			entities = entities[:0]
			for i := range numEntities {
				e := c.CreateNew()
				c.AddData(e, &comp1{})
				c.AddData(e, &comp2{V: int64(i), W: 1})
				if i%3 == 0 {
					c.AddData(e, &comp3{})
				}
				entities = append(entities, e)
			}
			group.Each2(c, both, func(_ ecs.Entity, a *comp1, b *comp2) bool {
				a.V += b.V
				a.W += b.W
				visits++
				return true
			})
			for _, e := range entities {
				c.Remove(e)
			}
		}
		groups.Close()
	}
	return visits
}
