package main

import (
	"math"
	"time"

	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/ecs"
	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/event"
)

const arena = 100.0

type Position struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

type Velocity struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

type Health struct {
	Current int `yaml:"current"`
	Max     int `yaml:"max"`
}

// Lifetime is the time an entity has left before the reaper queues it.
type Lifetime struct {
	Remaining time.Duration `yaml:"remaining"`
}

// Damaged is raised on an entity by the hazard system.
type Damaged struct {
	Amount int
}

// Mover integrates velocity on fixed steps and bounces off the arena walls.
type Mover struct {
	Pos *Position `inject:""`
	Vel *Velocity `inject:""`
}

func (m *Mover) FixedUpdate(dt time.Duration) {
	s := dt.Seconds()
	m.Pos.X, m.Vel.X = bounce(m.Pos.X+m.Vel.X*s, m.Vel.X)
	m.Pos.Y, m.Vel.Y = bounce(m.Pos.Y+m.Vel.Y*s, m.Vel.Y)
}

func bounce(p, v float64) (float64, float64) {
	switch {
	case p < 0:
		return -p, math.Abs(v)
	case p > arena:
		return 2*arena - p, -math.Abs(v)
	}
	return p, v
}

// Vitals applies damage to its entity and regenerates slowly.
type Vitals struct {
	Health *Health `inject:""`

	regen time.Duration
}

func (v *Vitals) HandleEvent(ev event.EventContext[Damaged]) {
	v.Health.Current -= ev.Event.Amount
}

func (v *Vitals) Update(dt time.Duration) {
	v.regen += dt
	for v.regen >= time.Second {
		v.regen -= time.Second
		if v.Health.Current > 0 && v.Health.Current < v.Health.Max {
			v.Health.Current++
		}
	}
}

func registerTypes(cat *ecs.Catalog) {
	ecs.RegisterData[Position](cat)
	ecs.RegisterData[Velocity](cat)
	ecs.RegisterData[Health](cat)
	ecs.RegisterData[Lifetime](cat)
	ecs.RegisterBehavior[Mover](cat)
	ecs.RegisterBehavior[Vitals](cat)
}
