package inject

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type health struct{ Current int }
type mana struct{ Current int }
type sprite struct{ Frame int }

type regen struct {
	Health *health `inject:""`
	Rate   int
}

type caster struct {
	Mana   *mana   `inject:"entity"`
	Sprite *sprite `inject:"object"`
}

type base struct {
	Health *health `inject:""`
}

type derived struct {
	base
	Mana *mana `inject:""`
}

func typeOf[T any]() reflect.Type { return reflect.TypeFor[T]() }

func TestRegisterCachesFields(t *testing.T) {
	in := New()
	require.NoError(t, in.Register(typeOf[caster]()))
	require.NoError(t, in.Register(typeOf[*caster]()), "pointer form is accepted and idempotent")

	fields := in.Fields(typeOf[caster]())
	require.Len(t, fields, 2)
	assert.Equal(t, "Mana", fields[0].Name)
	assert.Equal(t, ScopeEntity, fields[0].Scope)
	assert.Equal(t, typeOf[sprite](), fields[1].Type)
	assert.Equal(t, ScopeObject, fields[1].Scope)

	assert.Equal(t, []reflect.Type{typeOf[mana](), typeOf[sprite]()}, in.RequiredTypes(typeOf[caster]()))
	assert.Nil(t, in.RequiredTypes(typeOf[health]()))
}

func TestRegisterEmbeddedFields(t *testing.T) {
	in := New()
	require.NoError(t, in.Register(typeOf[derived]()))
	assert.Equal(t, []reflect.Type{typeOf[health](), typeOf[mana]()}, in.RequiredTypes(typeOf[derived]()))

	h, m := &health{}, &mana{}
	d := &derived{}
	require.NoError(t, in.Inject(d, Components{typeOf[health](): h, typeOf[mana](): m}, nil))
	assert.Same(t, h, d.Health)
	assert.Same(t, m, d.Mana)
}

func TestRegisterRejectsBadFields(t *testing.T) {
	type notPointer struct {
		H health `inject:""`
	}
	type badScope struct {
		H *health `inject:"world"`
	}
	type unexported struct {
		h *health `inject:""`
	}
	in := New()
	assert.Error(t, in.Register(typeOf[notPointer]()))
	assert.Error(t, in.Register(typeOf[badScope]()))
	assert.Error(t, in.Register(typeOf[unexported]()))
	assert.Error(t, in.Register(typeOf[int]()))
}

func TestInjectResolvesBothScopes(t *testing.T) {
	in := New()
	require.NoError(t, in.Register(typeOf[caster]()))

	m, s := &mana{Current: 5}, &sprite{Frame: 2}
	c := &caster{}
	err := in.Inject(c, Components{typeOf[mana](): m}, Components{typeOf[sprite](): s})
	require.NoError(t, err)
	assert.Same(t, m, c.Mana)
	assert.Same(t, s, c.Sprite)
}

func TestInjectMissingDependency(t *testing.T) {
	in := New()
	require.NoError(t, in.Register(typeOf[caster]()))

	c := &caster{}
	err := in.Inject(c, Components{typeOf[mana](): &mana{}}, nil)
	var missing *MissingDependencyError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "Sprite", missing.Field)
	assert.Equal(t, ScopeObject, missing.Scope)
	assert.Nil(t, c.Mana, "nothing is written on failure")
}

func TestInjectUnregistered(t *testing.T) {
	in := New()
	assert.Error(t, in.Inject(&regen{}, Components{}, nil))
	assert.Error(t, in.Inject(regen{}, Components{}, nil))
}
