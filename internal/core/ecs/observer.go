package ecs

import "errors"

var (
	ErrAlreadyExists  = errors.New("already exists")
	ErrUnknownType    = errors.New("type not registered")
	ErrRegistryClosed = errors.New("registry closed")
)

// Observer receives a Container's structural events, synchronously and in
// mutation order. These events are the only channel through which other
// subsystems learn about storage changes; observers must not write storage
// except through the Container's public API.
type Observer interface {
	EntityAdded(c *Container, e Entity)
	// BeforeEntityRemoved fires while every component is still attached.
	BeforeEntityRemoved(c *Container, e Entity)
	// EntityRemoved fires after storage for e has been purged.
	EntityRemoved(c *Container, e Entity)
	ComponentAdded(c *Container, e Entity, comp any)
	ComponentRemoved(c *Container, e Entity, comp any)
	ObjectAttached(c *Container, e Entity, o Object)
	ObjectDetached(c *Container, e Entity, o Object)
}

// NopObserver implements Observer with no-ops; embed it to handle a subset.
type NopObserver struct{}

func (NopObserver) EntityAdded(*Container, Entity)            {}
func (NopObserver) BeforeEntityRemoved(*Container, Entity)    {}
func (NopObserver) EntityRemoved(*Container, Entity)          {}
func (NopObserver) ComponentAdded(*Container, Entity, any)    {}
func (NopObserver) ComponentRemoved(*Container, Entity, any)  {}
func (NopObserver) ObjectAttached(*Container, Entity, Object) {}
func (NopObserver) ObjectDetached(*Container, Entity, Object) {}
