package event_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/ecs"
	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/event"
)

type Damaged struct{ Amount int }
type Healed struct{ Amount int }

type recorder struct {
	damaged []event.EventContext[Damaged]
	healed  []event.EventContext[Healed]
	onHit   func(ctx event.EventContext[Damaged])
	off     bool
}

func (r *recorder) HandleEvent(ctx event.EventContext[Damaged]) {
	r.damaged = append(r.damaged, ctx)
	if r.onHit != nil {
		r.onHit(ctx)
	}
}

func (r *recorder) Active() bool { return !r.off }

// healer listens to two event types through two adapter methods.
type healer struct {
	recorder
}

type healedAdapter struct{ h *healer }

func (a healedAdapter) HandleEvent(ctx event.EventContext[Healed]) {
	a.h.healed = append(a.h.healed, ctx)
}

type killWatcher struct {
	calls  int
	intact bool
	c      *ecs.Container
}

func (k *killWatcher) HandleEvent(ctx event.EventContext[event.EntityKilled]) {
	k.calls++
	_, k.intact = ecs.Get[Shield](k.c, ctx.Entity)
}

type Shield struct{ Points int }

// Thorns is a behavior that listens on its own entity.
type Thorns struct {
	Shield *Shield `inject:""`
	hits   int
}

func (t *Thorns) HandleEvent(ctx event.EventContext[Damaged]) {
	t.hits++
	t.Shield.Points -= ctx.Event.Amount
}

type anyRecorder struct{ seen []any }

func (a *anyRecorder) EventRaised(ev any, _ ecs.Entity) { a.seen = append(a.seen, ev) }

func newRouter(t *testing.T) *event.Router {
	t.Helper()
	r := event.NewRouter(nil)
	event.Listens[Damaged, *recorder](r)
	return r
}

func TestRaiseDeliversExactlyOnceToMatchingKey(t *testing.T) {
	r := newRouter(t)
	e1, e2 := ecs.NewEntity(), ecs.NewEntity()
	a, b, other := &recorder{}, &recorder{}, &recorder{}
	require.True(t, event.Subscribe[Damaged](r, a, e1))
	require.False(t, event.Subscribe[Damaged](r, a, e1), "duplicate")
	require.True(t, event.Subscribe[Damaged](r, b, e1))
	require.True(t, event.Subscribe[Damaged](r, other, e2))

	require.NoError(t, event.Raise(r, Damaged{Amount: 3}, e1))
	require.Len(t, a.damaged, 1)
	assert.Equal(t, event.EventContext[Damaged]{Event: Damaged{Amount: 3}, Entity: e1}, a.damaged[0])
	assert.Len(t, b.damaged, 1)
	assert.Empty(t, other.damaged, "different entity")

	require.NoError(t, event.Raise(r, Healed{Amount: 1}, e1))
	assert.Len(t, a.damaged, 1, "different event type")
}

func TestSelfSubscribeDuringRaiseIsNotReinvoked(t *testing.T) {
	r := newRouter(t)
	e := ecs.NewEntity()
	late := &recorder{}
	a := &recorder{}
	a.onHit = func(ctx event.EventContext[Damaged]) {
		event.Subscribe[Damaged](r, a, ctx.Entity)
		event.Unsubscribe[Damaged](r, a, ctx.Entity)
		event.Subscribe[Damaged](r, a, ctx.Entity)
		event.Subscribe[Damaged](r, late, ctx.Entity)
	}
	event.Subscribe[Damaged](r, a, e)

	require.NoError(t, event.Raise(r, Damaged{}, e))
	assert.Len(t, a.damaged, 1)
	assert.LessOrEqual(t, len(late.damaged), 1)

	a.onHit = nil
	late.damaged = nil
	require.NoError(t, event.Raise(r, Damaged{}, e))
	assert.Len(t, a.damaged, 2)
	assert.Len(t, late.damaged, 1)
}

func TestUnsubscribeDuringRaiseSkipsLaterListener(t *testing.T) {
	r := newRouter(t)
	e := ecs.NewEntity()
	first, second := &recorder{}, &recorder{}
	first.onHit = func(ctx event.EventContext[Damaged]) {
		event.Unsubscribe[Damaged](r, second, ctx.Entity)
	}
	event.Subscribe[Damaged](r, first, e)
	event.Subscribe[Damaged](r, second, e)

	require.NoError(t, event.Raise(r, Damaged{}, e))
	assert.Len(t, first.damaged, 1)
	assert.Empty(t, second.damaged)
	assert.Equal(t, 1, event.ListenerCount[Damaged](r, e))
}

func TestGlobalSubscriptionsUseEmpty(t *testing.T) {
	r := newRouter(t)
	g, local := &recorder{}, &recorder{}
	e := ecs.NewEntity()
	event.SubscribeGlobal[Damaged](r, g)
	event.Subscribe[Damaged](r, local, e)

	require.NoError(t, event.RaiseGlobal(r, Damaged{Amount: 1}))
	require.NoError(t, event.Raise(r, Damaged{Amount: 2}, e))
	require.Len(t, g.damaged, 1)
	assert.Equal(t, ecs.Empty, g.damaged[0].Entity)
	require.Len(t, local.damaged, 1)
	assert.Equal(t, 2, local.damaged[0].Event.Amount)
	assert.True(t, event.Subscribed[Damaged](r, g, ecs.Empty))
}

func TestInactiveListenerIsSkippedNotDropped(t *testing.T) {
	r := newRouter(t)
	e := ecs.NewEntity()
	l := &recorder{off: true}
	event.Subscribe[Damaged](r, l, e)

	require.NoError(t, event.Raise(r, Damaged{}, e))
	assert.Empty(t, l.damaged)

	l.off = false
	require.NoError(t, event.Raise(r, Damaged{}, e))
	assert.Len(t, l.damaged, 1)
}

func TestPanickingListenerIsIsolated(t *testing.T) {
	r := newRouter(t)
	e := ecs.NewEntity()
	bad, good := &recorder{}, &recorder{}
	bad.onHit = func(event.EventContext[Damaged]) { panic("boom") }
	event.Subscribe[Damaged](r, bad, e)
	event.Subscribe[Damaged](r, good, e)

	err := event.Raise(r, Damaged{}, e)
	var pe *event.PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "boom", pe.Value)
	assert.Same(t, bad, pe.Listener)
	assert.Len(t, good.damaged, 1)
}

func TestSubscribeAllUsesDeclaredTypes(t *testing.T) {
	r := event.NewRouter(nil)
	event.Listens[Damaged, *recorder](r)
	event.Listens[Damaged, *recorder](r)
	event.Listens[Healed, healedAdapter](r)

	e := ecs.NewEntity()
	rec := &recorder{}
	require.NoError(t, r.SubscribeAll(rec, e))
	assert.Len(t, r.EventTypes(rec), 1)

	h := &healer{}
	adapter := healedAdapter{h: h}
	require.NoError(t, r.SubscribeAll(adapter, e))
	require.NoError(t, event.Raise(r, Healed{Amount: 4}, e))
	assert.Len(t, h.healed, 1)

	assert.ErrorIs(t, r.SubscribeAll(struct{}{}, e), event.ErrNotListener)
	assert.False(t, r.TrySubscribe(&killWatcher{}, e))

	require.NoError(t, r.UnsubscribeAll(rec, e))
	require.NoError(t, event.Raise(r, Damaged{}, e))
	assert.Empty(t, rec.damaged)
	assert.True(t, r.TryUnsubscribe(adapter, e))
}

func TestAnyListenerSeesEveryRaise(t *testing.T) {
	r := newRouter(t)
	a := &anyRecorder{}
	require.True(t, r.AddAnyListener(a))
	require.NoError(t, event.Raise(r, Damaged{Amount: 1}, ecs.NewEntity()))
	require.NoError(t, event.RaiseGlobal(r, Healed{Amount: 2}))
	assert.Equal(t, []any{Damaged{Amount: 1}, Healed{Amount: 2}}, a.seen)

	r.RemoveAnyListener(a)
	require.NoError(t, event.RaiseGlobal(r, Healed{}))
	assert.Len(t, a.seen, 2)
}

func newWorld(t *testing.T) (*ecs.Container, *event.Router) {
	t.Helper()
	cat := ecs.NewCatalog()
	ecs.RegisterData[Shield](cat)
	ecs.RegisterBehavior[Thorns](cat)
	c := ecs.NewContainer(ecs.NewRegistry(nil), cat, nil)
	r := event.NewRouter(nil)
	event.Listens[Damaged, *Thorns](r)
	r.Attach(c)
	return c, r
}

func TestKillRaisesEntityKilledOnceBeforeTeardown(t *testing.T) {
	c, r := newWorld(t)
	e := c.CreateNew()
	c.AddData(e, &Shield{Points: 5})

	w := &killWatcher{c: c}
	global := &killWatcher{c: c}
	event.Subscribe[event.EntityKilled](r, w, e)
	event.SubscribeGlobal[event.EntityKilled](r, global)

	require.True(t, c.Remove(e))
	assert.Equal(t, 1, w.calls)
	assert.True(t, w.intact, "components still attached")
	assert.Equal(t, 1, global.calls)
	assert.Equal(t, 0, event.ListenerCount[event.EntityKilled](r, e), "subscriptions dropped")

	assert.False(t, c.Remove(e))
	assert.Equal(t, 1, w.calls)
}

func TestBehaviorListenersFollowAttachment(t *testing.T) {
	c, r := newWorld(t)
	e := c.CreateNew()
	c.AddData(e, &Shield{Points: 10})
	thorns := &Thorns{}
	require.True(t, c.AddBehavior(e, thorns))

	require.NoError(t, event.Raise(r, Damaged{Amount: 3}, e))
	assert.Equal(t, 1, thorns.hits)
	assert.Equal(t, 7, thorns.Shield.Points)

	require.True(t, ecs.RemoveOf[Thorns](c, e))
	require.NoError(t, event.Raise(r, Damaged{Amount: 3}, e))
	assert.Equal(t, 1, thorns.hits)
}

func TestKillFromInsideHandler(t *testing.T) {
	c, r := newWorld(t)
	e := c.CreateNew()
	l := &recorder{}
	l.onHit = func(ctx event.EventContext[Damaged]) { c.Remove(ctx.Entity) }
	next := &recorder{}
	event.Subscribe[Damaged](r, l, e)
	event.Subscribe[Damaged](r, next, e)

	require.NoError(t, event.Raise(r, Damaged{}, e))
	assert.False(t, c.Alive(e))
	assert.Empty(t, next.damaged, "subscriptions of the dead entity are dropped mid-raise")
	assert.Equal(t, 0, event.ListenerCount[Damaged](r, e))
}

func TestKillFromInsideHandlerReleasesSubscriptionSets(t *testing.T) {
	c, r := newWorld(t)
	base := r.Len()
	for i := 0; i < 100; i++ {
		e := c.CreateNew()
		l := &recorder{}
		l.onHit = func(ctx event.EventContext[Damaged]) { c.Remove(ctx.Entity) }
		event.Subscribe[Damaged](r, l, e)
		require.NoError(t, event.Raise(r, Damaged{Amount: 1}, e))
	}
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, base, r.Len(), "no set outlives its entity")
}
