package ecs

import (
	"slices"

	"go.uber.org/zap"
)

// Parent and Children are ordinary Data components, so hierarchy changes go
// through the same storage, events and groups as any other data.
type Parent struct {
	Entity Entity
}

type Children struct {
	Entities []Entity
}

func (ch *Children) Clone() any {
	return &Children{Entities: slices.Clone(ch.Entities)}
}

// SetParent links child under parent, unlinking it from a previous parent.
// Both entities must be alive; they may live in different containers of the
// same registry chain.
func SetParent(c *Container, child, parent Entity) bool {
	if child == parent {
		c.log.Error("set parent: entity cannot parent itself", zap.Stringer("entity", child))
		return false
	}
	if !c.Alive(child) {
		c.log.Error("set parent: entity not registered", zap.Stringer("entity", child))
		return false
	}
	pc, ok := c.registry.Container(parent)
	if !ok || !pc.Alive(parent) {
		c.log.Error("set parent: parent not registered", zap.Stringer("entity", parent))
		return false
	}
	for anc := parent; !anc.IsEmpty(); anc = ParentOf(c.registry, anc) {
		if anc == child {
			c.log.Error("set parent: cycle", zap.Stringer("child", child), zap.Stringer("parent", parent))
			return false
		}
	}

	if p, ok := Get[Parent](c, child); ok {
		if p.Entity == parent {
			return true
		}
		unlinkChild(c.registry, p.Entity, child)
		p.Entity = parent
	} else if !c.AddData(child, &Parent{Entity: parent}) {
		return false
	}

	ch, ok := Get[Children](pc, parent)
	if !ok {
		ch = &Children{}
		if !pc.AddData(parent, ch) {
			return false
		}
	}
	ch.Entities = append(ch.Entities, child)
	return true
}

// ClearParent detaches child from its parent.
func ClearParent(c *Container, child Entity) bool {
	p, ok := Get[Parent](c, child)
	if !ok {
		return false
	}
	unlinkChild(c.registry, p.Entity, child)
	return RemoveOf[Parent](c, child)
}

// ParentOf returns e's parent, or Empty.
func ParentOf(r *Registry, e Entity) Entity {
	c, ok := r.Container(e)
	if !ok {
		return Empty
	}
	p, ok := Get[Parent](c, e)
	if !ok {
		return Empty
	}
	return p.Entity
}

// ChildrenOf returns a copy of e's children.
func ChildrenOf(c *Container, e Entity) []Entity {
	ch, ok := Get[Children](c, e)
	if !ok {
		return nil
	}
	return slices.Clone(ch.Entities)
}

func unlinkChild(r *Registry, parent, child Entity) {
	pc, ok := r.Container(parent)
	if !ok {
		return
	}
	ch, ok := Get[Children](pc, parent)
	if !ok {
		return
	}
	if i := slices.Index(ch.Entities, child); i >= 0 {
		ch.Entities = slices.Delete(ch.Entities, i, i+1)
	}
}
