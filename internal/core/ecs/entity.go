package ecs

import (
	"fmt"

	"github.com/google/uuid"
)

// Entity is a bare 128-bit identity. It owns no data; components are attached
// to it through a Container. The zero value is Empty.
type Entity struct {
	id uuid.UUID
}

// Empty is the null entity. Event subscriptions keyed by Empty are global.
var Empty Entity

// NewEntity returns an entity with a random (v4) identity.
func NewEntity() Entity {
	return Entity{id: uuid.New()}
}

// EntityFrom wraps a caller-supplied identity.
func EntityFrom(id uuid.UUID) Entity {
	return Entity{id: id}
}

// ParseEntity parses the canonical UUID text form.
func ParseEntity(s string) (Entity, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return Empty, fmt.Errorf("parse entity %q: %w", s, err)
	}
	return Entity{id: id}, nil
}

func (e Entity) UUID() uuid.UUID { return e.id }
func (e Entity) IsEmpty() bool   { return e.id == uuid.Nil }

func (e Entity) String() string {
	if e.IsEmpty() {
		return "Empty"
	}
	return e.id.String()
}
