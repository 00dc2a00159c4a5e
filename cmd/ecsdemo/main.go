package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/config"
	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/ecs"
	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/event"
	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/group"
	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/system"
	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/telemetry"
	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/world"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(name string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              ecsdemo  v0.1.0              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mworld:\033[0m %s\n\n", name)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main loop ─────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/ecsdemo.toml"
	if p := os.Getenv("ECS_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger and tracing
	log, err := telemetry.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupTracing(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			log.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	printBanner(cfg.Runtime.Name)

	// 3. Build the world
	printSection("catalog")
	cat := ecs.NewCatalog()
	registerTypes(cat)
	w, err := world.New(cfg, cat, log)
	if err != nil {
		return fmt.Errorf("world: %w", err)
	}
	defer w.Close()
	event.Listens[Damaged, *Vitals](w.Events)

	printStat("blueprints", len(w.Spawner.Table().Names()))
	printStat("scripts", len(w.Scripts.Names()))

	// 4. Systems
	d := newDemo(w, log)
	for _, s := range d.systems() {
		w.Scheduler.Register(s)
	}
	if err := d.populate(); err != nil {
		return err
	}
	printStat("entities", w.Container.Len())
	fmt.Println()

	// 5. Frame loop
	printSection("running")
	printReady(fmt.Sprintf("frame loop (tick: %s, fixed: %s)", cfg.Scheduler.TickRate, cfg.Scheduler.FixedStep))
	fmt.Println()

	err = w.Run(ctx)
	log.Info("stopped", zap.Uint64("frames", w.Frames()), zap.Int("kills", d.kills))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// demo keeps a population of spawned entities alive, hurts them at random and
// reaps the dead and the expired.
type demo struct {
	w   *world.World
	log *zap.Logger
	rng *rand.Rand

	population int
	kills      int
	census     time.Duration

	lifetimes *group.Group
	living    *group.CustomGroup
	movers    *group.CustomGroup
}

var kinds = []string{"drifter", "brute"}

func newDemo(w *world.World, log *zap.Logger) *demo {
	d := &demo{
		w:          w,
		log:        log,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		population: 64,
		lifetimes:  w.Groups.Group(group.Component[Lifetime]()),
		living:     w.Groups.Build(group.Component[Health](), group.Component[Vitals]()),
		movers:     group.With2[Position, Velocity](w.Groups),
	}
	event.SubscribeGlobal[event.EntityKilled](w.Events, d)
	return d
}

func (d *demo) HandleEvent(event.EventContext[event.EntityKilled]) { d.kills++ }

func (d *demo) systems() []*system.FuncSystem {
	return []*system.FuncSystem{
		system.NewFunc("reaper", d.reap),
		system.NewFunc("hazard", d.hazard),
		system.NewFunc("spawner", d.respawn),
		system.NewFunc("census", d.report),
	}
}

func (d *demo) populate() error {
	for d.w.Container.Len() < d.population {
		if _, err := d.w.Spawn(kinds[d.rng.Intn(len(kinds))]); err != nil {
			return fmt.Errorf("populate: %w", err)
		}
	}
	return nil
}

func (d *demo) reap(dt time.Duration) {
	c := d.w.Container
	group.EachOf(d.lifetimes, func(e ecs.Entity, l *Lifetime) bool {
		l.Remaining -= dt
		if l.Remaining <= 0 {
			c.MarkForDestruction(e)
		}
		return true
	})
	group.Each2(c, d.living, func(e ecs.Entity, h *Health, _ *Vitals) bool {
		if h.Current <= 0 {
			c.MarkForDestruction(e)
		}
		return true
	})
}

func (d *demo) hazard(time.Duration) {
	targets := d.living.Entities()
	if len(targets) == 0 || d.rng.Intn(4) != 0 {
		return
	}
	e := targets[d.rng.Intn(len(targets))]
	if err := event.Raise(d.w.Events, Damaged{Amount: 1 + d.rng.Intn(5)}, e); err != nil {
		d.log.Warn("damage handlers failed", zap.Error(err))
	}
}

func (d *demo) respawn(time.Duration) {
	if err := d.populate(); err != nil {
		d.log.Error("respawn", zap.Error(err))
	}
}

func (d *demo) report(dt time.Duration) {
	d.census += dt
	if d.census < 5*time.Second {
		return
	}
	d.census = 0
	d.log.Info("census",
		zap.Int("entities", d.w.Container.Len()),
		zap.Int("living", d.living.Len()),
		zap.Int("moving", d.movers.Len()),
		zap.Int("kills", d.kills),
		zap.Uint64("frame", d.w.Frames()),
	)
}
