package system

import (
	"fmt"
	"time"

	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/ecs"
)

// Phase defines execution ordering within a single frame. The host calls the
// phases in this order, once per frame.
type Phase int

const (
	PhaseAwake       Phase = iota // 0: one-shot, before anything else runs
	PhaseStart                    // 1: one-shot, late arrivals start at the next repeating phase
	PhaseUpdate                   // 2: per-frame logic
	PhaseFixedUpdate              // 3: fixed-step logic, zero or more times per frame
	PhaseLateUpdate               // 4: after every update
)

// Phases lists every phase in execution order.
var Phases = [...]Phase{PhaseAwake, PhaseStart, PhaseUpdate, PhaseFixedUpdate, PhaseLateUpdate}

func (p Phase) String() string {
	switch p {
	case PhaseAwake:
		return "awake"
	case PhaseStart:
		return "start"
	case PhaseUpdate:
		return "update"
	case PhaseFixedUpdate:
		return "fixed_update"
	case PhaseLateUpdate:
		return "late_update"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Repeating reports whether the phase runs every frame.
func (p Phase) Repeating() bool { return p >= PhaseUpdate }

func (p Phase) cap() ecs.Caps {
	switch p {
	case PhaseAwake:
		return ecs.CapAwake
	case PhaseStart:
		return ecs.CapStart
	case PhaseUpdate:
		return ecs.CapUpdate
	case PhaseFixedUpdate:
		return ecs.CapFixedUpdate
	case PhaseLateUpdate:
		return ecs.CapLateUpdate
	}
	return 0
}

// System is a host-level item that is not attached to any entity, such as a
// movement or regeneration pass over a group. Register it with
// Scheduler.Register; it runs in every phase whose contract it implements.
type System interface {
	ecs.Updater
}

// FuncSystem adapts a plain function to a per-frame System.
type FuncSystem struct {
	Name string
	fn   func(dt time.Duration)
}

func NewFunc(name string, fn func(dt time.Duration)) *FuncSystem {
	return &FuncSystem{Name: name, fn: fn}
}

func (f *FuncSystem) Update(dt time.Duration) { f.fn(dt) }
func (f *FuncSystem) String() string          { return f.Name }
