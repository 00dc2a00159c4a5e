package scripting

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/ecs"
	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/system"
)

type Health struct {
	Current int
	Max     int
	Label   string
}

const regenScript = `
behavior("regen", {
  awake = function(self)
    self.ticks = 0
  end,
  update = function(self, dt)
    self.ticks = self.ticks + 1
    local hp = self:get("Health", "Current")
    if hp < self:get("Health", "Max") then
      self:set("Health", "Current", hp + 1)
    end
  end,
})

behavior("mortal", {
  update = function(self, dt)
    if self:get("Health", "Current") <= 0 then
      self:kill()
    end
  end,
})

behavior("broken", {
  update = function(self, dt)
    error("bad script")
  end,
})
`

func newEngine(t *testing.T) (*ecs.Container, *Engine) {
	t.Helper()
	cat := ecs.NewCatalog()
	ecs.RegisterData[Health](cat)
	ecs.RegisterBehavior[Behavior](cat)
	c := ecs.NewContainer(ecs.NewRegistry(nil), cat, nil)
	eng, err := NewEngine("", c, nil)
	require.NoError(t, err)
	t.Cleanup(eng.Close)
	require.NoError(t, eng.LoadString(regenScript))
	return c, eng
}

func spawn(t *testing.T, c *ecs.Container, eng *Engine, script string, hp int) (ecs.Entity, *Behavior) {
	t.Helper()
	e := c.CreateNew()
	c.AddData(e, &Health{Current: hp, Max: 3})
	b, err := eng.NewBehavior(script)
	require.NoError(t, err)
	require.True(t, c.AddBehavior(e, b))
	return e, b
}

func TestScriptedBehaviorRunsUnderScheduler(t *testing.T) {
	c, eng := newEngine(t)
	s := system.NewScheduler(nil)
	s.Attach(c)
	e, b := spawn(t, c, eng, "regen", 1)
	assert.Equal(t, e, b.Entity())

	for i := 0; i < 4; i++ {
		s.Tick(context.Background(), 16*time.Millisecond, 0, 0)
	}
	h, _ := ecs.Get[Health](c, e)
	assert.Equal(t, 3, h.Current, "capped at Max")
	assert.Equal(t, lua.LNumber(4), b.Self().RawGetString("ticks"))

	b.Enabled = false
	s.Tick(context.Background(), 16*time.Millisecond, 0, 0)
	assert.Equal(t, lua.LNumber(4), b.Self().RawGetString("ticks"), "disabled behaviors are skipped")
}

func TestScriptedKillIsDeferred(t *testing.T) {
	c, eng := newEngine(t)
	s := system.NewScheduler(nil)
	s.Attach(c)
	e, _ := spawn(t, c, eng, "mortal", 0)

	s.Update(context.Background(), time.Millisecond)
	assert.True(t, c.Alive(e))
	assert.Equal(t, 1, c.PendingDestruction())
	assert.Equal(t, 1, c.FlushDestroyQueue())
	assert.False(t, c.Alive(e))
}

func TestScriptErrorPanicsWithHookError(t *testing.T) {
	c, eng := newEngine(t)
	_, b := spawn(t, c, eng, "broken", 1)

	defer func() {
		rec := recover()
		err, ok := rec.(error)
		require.True(t, ok)
		var he *HookError
		require.True(t, errors.As(err, &he))
		assert.Equal(t, "broken", he.Script)
		assert.Equal(t, "update", he.Hook)
	}()
	b.Update(time.Millisecond)
}

func TestBrokenScriptIsEvictedByScheduler(t *testing.T) {
	c, eng := newEngine(t)
	s := system.NewScheduler(nil)
	s.Attach(c)
	spawn(t, c, eng, "broken", 1)
	spawn(t, c, eng, "regen", 1)

	s.Tick(context.Background(), time.Millisecond, 0, 0)
	assert.Equal(t, 1, s.Len(system.PhaseUpdate))
}

func TestFieldAccessErrors(t *testing.T) {
	c, eng := newEngine(t)
	require.NoError(t, eng.LoadString(`
behavior("probe", {
  update = function(self, dt)
    probe_missing = self:get("Health", "Nope")
    probe_label = self:get("Health", "Label")
    probe_has = self:has("Health")
    probe_unknown = self:has("Mana")
    self:set("Health", "Label", "ok")
  end,
})
behavior("typo", {
  update = function(self, dt)
    self:set("Health", "Current", "ten")
  end,
})`))
	e, b := spawn(t, c, eng, "probe", 1)
	b.Update(time.Millisecond)
	assert.Equal(t, lua.LNil, eng.vm.GetGlobal("probe_missing"))
	assert.Equal(t, lua.LString(""), eng.vm.GetGlobal("probe_label"))
	assert.Equal(t, lua.LTrue, eng.vm.GetGlobal("probe_has"))
	assert.Equal(t, lua.LFalse, eng.vm.GetGlobal("probe_unknown"))
	h, _ := ecs.Get[Health](c, e)
	assert.Equal(t, "ok", h.Label)

	typo, err := eng.NewBehavior("typo")
	require.NoError(t, err)
	other := c.CreateNew()
	c.AddData(other, &Health{Current: 1})
	c.AddBehavior(other, typo)
	assert.Panics(t, func() { typo.Update(time.Millisecond) })
}

func TestNewEngineLoadsDirectoryTree(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ai"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.lua"), []byte(`behavior("a", {})`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ai", "b.lua"), []byte(`behavior("b", {})`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`not lua`), 0o644))

	cat := ecs.NewCatalog()
	c := ecs.NewContainer(ecs.NewRegistry(nil), cat, nil)
	eng, err := NewEngine(dir, c, nil)
	require.NoError(t, err)
	defer eng.Close()
	assert.Equal(t, []string{"a", "b"}, eng.Names())
	assert.True(t, eng.Has("b"))

	_, err = eng.NewBehavior("missing")
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "z.lua"), []byte(`this is not lua`), 0o644))
	_, err = NewEngine(dir, c, nil)
	assert.ErrorContains(t, err, "z.lua")
}
