package ecs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/ecs"
)

func TestSetParentMaintainsBothSides(t *testing.T) {
	c := newContainer(t)
	p1, p2, child := c.CreateNew(), c.CreateNew(), c.CreateNew()

	require.True(t, ecs.SetParent(c, child, p1))
	assert.Equal(t, p1, ecs.ParentOf(c.Registry(), child))
	assert.Equal(t, []ecs.Entity{child}, ecs.ChildrenOf(c, p1))

	require.True(t, ecs.SetParent(c, child, p2))
	assert.Equal(t, p2, ecs.ParentOf(c.Registry(), child))
	assert.Empty(t, ecs.ChildrenOf(c, p1))
	assert.Equal(t, []ecs.Entity{child}, ecs.ChildrenOf(c, p2))

	require.True(t, ecs.ClearParent(c, child))
	assert.Equal(t, ecs.Empty, ecs.ParentOf(c.Registry(), child))
	assert.Empty(t, ecs.ChildrenOf(c, p2))
	assert.False(t, ecs.ClearParent(c, child))
}

func TestSetParentRejectsCycles(t *testing.T) {
	c := newContainer(t)
	a, b := c.CreateNew(), c.CreateNew()
	require.True(t, ecs.SetParent(c, b, a))
	assert.False(t, ecs.SetParent(c, a, b))
	assert.False(t, ecs.SetParent(c, a, a))
	assert.False(t, ecs.SetParent(c, a, ecs.NewEntity()))
}

func TestRemoveCascadesToChildren(t *testing.T) {
	c := newContainer(t)
	root, mid, leaf, other := c.CreateNew(), c.CreateNew(), c.CreateNew(), c.CreateNew()
	require.True(t, ecs.SetParent(c, mid, root))
	require.True(t, ecs.SetParent(c, leaf, mid))

	rec := &recorder{}
	c.Observe(rec)
	require.True(t, c.Remove(root))

	assert.False(t, c.Alive(root))
	assert.False(t, c.Alive(mid))
	assert.False(t, c.Alive(leaf))
	assert.True(t, c.Alive(other))

	removed := 0
	for _, ev := range rec.events {
		if ev == "removed" {
			removed++
		}
	}
	assert.Equal(t, 3, removed)
}

func TestRemovingChildUnlinksFromParent(t *testing.T) {
	c := newContainer(t)
	parent, a, b := c.CreateNew(), c.CreateNew(), c.CreateNew()
	ecs.SetParent(c, a, parent)
	ecs.SetParent(c, b, parent)

	c.Remove(a)
	assert.Equal(t, []ecs.Entity{b}, ecs.ChildrenOf(c, parent))
}

func TestRegistryScopes(t *testing.T) {
	root := ecs.NewRegistry(nil)
	cat := ecs.NewCatalog()
	rc := ecs.NewContainer(root, cat, nil)
	scope := root.Scope()
	sc := ecs.NewContainer(scope, cat, nil)

	outer := rc.CreateNew()
	inner := sc.CreateNew()

	owner, ok := scope.Container(outer)
	require.True(t, ok, "child scope resolves through its parent")
	assert.Same(t, rc, owner)
	_, ok = root.Container(inner)
	assert.False(t, ok, "parent does not see child entities")
	assert.False(t, sc.Register(outer), "identity already taken up the chain")

	require.True(t, ecs.SetParent(sc, inner, outer))
	assert.Equal(t, []ecs.Entity{inner}, ecs.ChildrenOf(rc, outer))

	scope.Close()
	assert.False(t, sc.Alive(inner))
	assert.Equal(t, 0, scope.Len())
	assert.True(t, rc.Alive(outer))
	assert.Empty(t, ecs.ChildrenOf(rc, outer))
	assert.True(t, sc.CreateNew().IsEmpty(), "closed scope rejects registrations")

	root.Close()
	assert.False(t, rc.Alive(outer))
}
