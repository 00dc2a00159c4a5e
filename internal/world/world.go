package world

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/config"
	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/ecs"
	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/event"
	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/group"
	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/system"
	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/data"
	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/scripting"
)

// World is one isolated runtime: a registry scope with its container and the
// subsystems observing it. Worlds share nothing but the catalog they were
// built from, so tests can run many side by side.
//
// Accessed only from the goroutine driving Frame; no locks.
type World struct {
	log *zap.Logger
	cfg *config.Config

	Catalog   *ecs.Catalog
	Registry  *ecs.Registry
	Container *ecs.Container
	Groups    *group.Systems
	Events    *event.Router
	Scheduler *system.Scheduler
	Scripts   *scripting.Engine
	Spawner   *data.Spawner

	fixedAcc time.Duration
	frames   uint64
	closed   bool
}

// Option customizes a World before its subsystems are wired.
type Option func(*options)

type options struct {
	registry   *ecs.Registry
	blueprints *data.BlueprintTable
	scheduler  []system.Option
}

// WithParent creates the world's registry as a child scope of parent, so
// its entities can reference (and be parented under) the parent's.
func WithParent(parent *ecs.Registry) Option {
	return func(o *options) { o.registry = parent.Scope() }
}

// WithBlueprints uses t instead of loading cfg.Blueprints.Path.
func WithBlueprints(t *data.BlueprintTable) Option {
	return func(o *options) { o.blueprints = t }
}

func WithSchedulerOptions(opts ...system.Option) Option {
	return func(o *options) { o.scheduler = append(o.scheduler, opts...) }
}

// New wires a world over cat. Scripted behaviors are registered into cat,
// which panics if another type already claims the name Behavior.
func New(cfg *config.Config, cat *ecs.Catalog, log *zap.Logger, opts ...Option) (*World, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = ecs.NewRegistry(log)
	}
	ecs.RegisterBehavior[scripting.Behavior](cat)

	w := &World{
		log:      log.With(zap.String("world", cfg.Runtime.Name)),
		cfg:      cfg,
		Catalog:  cat,
		Registry: o.registry,
	}
	w.Container = ecs.NewContainerSize(w.Registry, cat, w.log, cfg.Runtime.EntityCapacity)
	w.Groups = group.New(w.Container, w.log, group.WithValidation(cfg.Runtime.ValidateGroups))
	w.Events = event.NewRouter(w.log)
	w.Events.Attach(w.Container)
	w.Scheduler = system.NewScheduler(w.log, o.scheduler...)
	w.Scheduler.Attach(w.Container)

	scripts, err := scripting.NewEngine(cfg.Scripting.Dir, w.Container, w.log)
	if err != nil {
		w.Registry.Close()
		return nil, fmt.Errorf("scripting: %w", err)
	}
	w.Scripts = scripts

	bt := o.blueprints
	if bt == nil && cfg.Blueprints.Path != "" {
		bt, err = data.LoadBlueprints(cfg.Blueprints.Path)
		if err != nil {
			w.Close()
			return nil, err
		}
	}
	if bt == nil {
		bt = data.NewBlueprintTable()
	}
	w.Spawner, err = data.NewSpawner(bt, w.Container, w.Scripts, w.log)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("blueprints: %w", err)
	}

	w.log.Info("world ready",
		zap.Int("types", countTypes(cat)),
		zap.Int("blueprints", bt.Count()),
		zap.Int("scripts", len(scripts.Names())),
	)
	return w, nil
}

func countTypes(cat *ecs.Catalog) int {
	n := 0
	cat.Each(func(*ecs.TypeInfo) { n++ })
	return n
}

// Frame runs one host frame: awake, start, update, as many fixed updates as
// the elapsed time owes (capped by MaxFixedSteps), late update, and finally
// the entities queued for destruction during the frame.
func (w *World) Frame(ctx context.Context, dt time.Duration) {
	step := w.cfg.Scheduler.FixedStep
	w.fixedAcc += dt
	steps := int(w.fixedAcc / step)
	if limit := w.cfg.Scheduler.MaxFixedSteps; limit > 0 && steps > limit {
		w.log.Warn("fixed update falling behind, dropping steps",
			zap.Int("owed", steps), zap.Int("max", limit))
		steps = limit
		w.fixedAcc = 0
	} else {
		w.fixedAcc -= time.Duration(steps) * step
	}

	w.Scheduler.Tick(ctx, dt, steps, step)
	if n := w.Container.FlushDestroyQueue(); n > 0 {
		w.log.Debug("destroyed entities", zap.Int("count", n))
	}
	w.frames++
}

// Frames is the number of completed frames.
func (w *World) Frames() uint64 { return w.frames }

// Spawn instantiates a blueprint.
func (w *World) Spawn(name string) (ecs.Entity, error) {
	return w.Spawner.Spawn(name)
}

// Run drives Frame at cfg.Scheduler.TickRate until ctx is done.
func (w *World) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Scheduler.TickRate)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			w.Frame(ctx, now.Sub(last))
			last = now
		}
	}
}

// Close tears the world down: every entity is removed (observers see the
// usual events), then the scripting VM is released. Closing twice is a no-op.
func (w *World) Close() {
	if w.closed {
		return
	}
	w.closed = true
	w.Registry.Close()
	w.Groups.Close()
	if w.Scripts != nil {
		w.Scripts.Close()
	}
	w.log.Info("world closed", zap.Uint64("frames", w.frames))
}
