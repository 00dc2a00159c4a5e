package ecs

import (
	"fmt"

	"go.uber.org/zap"
)

// Registry maps entity identity to the Container that owns it. Registries nest:
// a scope created with Scope resolves entities it does not own through its
// parent, and closing a scope tears down only what it owns.
//
// A Registry is constructed explicitly and shared by the containers of one
// world; there is no process-wide instance.
type Registry struct {
	log        *zap.Logger
	parent     *Registry
	owners     map[Entity]*Container
	containers []*Container
	children   []*Registry
	closed     bool
}

func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		log:    log,
		owners: make(map[Entity]*Container, 1024),
	}
}

// Scope creates a child registry.
func (r *Registry) Scope() *Registry {
	child := NewRegistry(r.log)
	child.parent = r
	r.children = append(r.children, child)
	return child
}

func (r *Registry) Parent() *Registry { return r.parent }

// Container returns the container owning e, searching parent scopes.
func (r *Registry) Container(e Entity) (*Container, bool) {
	for s := r; s != nil; s = s.parent {
		if c, ok := s.owners[e]; ok {
			return c, true
		}
	}
	return nil, false
}

// Owns reports whether e is registered in this scope (parents excluded).
func (r *Registry) Owns(e Entity) bool {
	_, ok := r.owners[e]
	return ok
}

// Len is the number of entities registered in this scope.
func (r *Registry) Len() int { return len(r.owners) }

func (r *Registry) addContainer(c *Container) {
	r.containers = append(r.containers, c)
}

func (r *Registry) register(e Entity, c *Container) error {
	if r.closed {
		return ErrRegistryClosed
	}
	if e.IsEmpty() {
		return fmt.Errorf("register %s: empty identity", e)
	}
	if _, ok := r.Container(e); ok {
		return fmt.Errorf("register %s: %w", e, ErrAlreadyExists)
	}
	r.owners[e] = c
	return nil
}

func (r *Registry) unregister(e Entity) {
	delete(r.owners, e)
}

// Close closes child scopes, then removes every entity of this scope's
// containers (observers see the usual removal events). Further registrations fail.
func (r *Registry) Close() {
	if r.closed {
		return
	}
	for _, child := range append([]*Registry(nil), r.children...) {
		child.Close()
	}
	for _, c := range r.containers {
		c.Clear()
	}
	r.closed = true
	if r.parent != nil {
		r.parent.dropChild(r)
	}
	r.log.Debug("registry closed", zap.Int("containers", len(r.containers)))
}

func (r *Registry) dropChild(child *Registry) {
	for i, c := range r.children {
		if c == child {
			r.children = append(r.children[:i], r.children[i+1:]...)
			return
		}
	}
}
