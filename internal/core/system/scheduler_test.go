package system

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Watcher3056/EasyCS-Submodule-sub000/internal/core/ecs"
)

// journal collects calls from every probe of a test, in order.
type journal struct{ calls []string }

func (j *journal) add(format string, args ...any) {
	j.calls = append(j.calls, fmt.Sprintf(format, args...))
}

type probe struct {
	name    string
	j       *journal
	off     bool
	panicOn string
}

func (p *probe) hit(phase string) {
	p.j.add("%s.%s", p.name, phase)
	if p.panicOn == phase {
		panic(p.name + " failed in " + phase)
	}
}

func (p *probe) Awake()                    { p.hit("awake") }
func (p *probe) Start()                    { p.hit("start") }
func (p *probe) Update(time.Duration)      { p.hit("update") }
func (p *probe) FixedUpdate(time.Duration) { p.hit("fixed") }
func (p *probe) LateUpdate(time.Duration)  { p.hit("late") }
func (p *probe) Active() bool              { return !p.off }

func newProbe(j *journal, name string) *probe {
	return &probe{name: name, j: j}
}

func ctx() context.Context { return context.Background() }

func frame(s *Scheduler) {
	s.Tick(ctx(), 16*time.Millisecond, 1, 20*time.Millisecond)
}

// only filters the journal to calls of one phase.
func only(j *journal, suffix string) (out []string) {
	for _, c := range j.calls {
		if strings.HasSuffix(c, suffix) {
			out = append(out, c)
		}
	}
	return out
}

func TestFrameRunsPhasesInOrder(t *testing.T) {
	j := &journal{}
	s := NewScheduler(nil)
	require.True(t, s.Register(newProbe(j, "a")))
	frame(s)
	assert.Equal(t, []string{"a.awake", "a.start", "a.update", "a.fixed", "a.late"}, j.calls)

	j.calls = nil
	frame(s)
	assert.Equal(t, []string{"a.update", "a.fixed", "a.late"}, j.calls, "one-shot phases do not repeat")
}

func TestLateStartIsFIFOAtNextRepeatingPhase(t *testing.T) {
	j := &journal{}
	s := NewScheduler(nil)
	s.Awake(ctx())
	s.Start(ctx())
	require.True(t, s.Started())

	a, b, c := newProbe(j, "a"), newProbe(j, "b"), newProbe(j, "c")
	s.Register(a)
	s.Register(b)
	s.Register(c)
	assert.Equal(t, 3, s.PendingStarts())

	// further one-shot calls do not flush the queue
	s.Start(ctx())
	s.Start(ctx())
	assert.Empty(t, only(j, ".start"))

	s.Unregister(b)
	s.Update(ctx(), time.Millisecond)
	assert.Equal(t, []string{"a.start", "c.start"}, only(j, ".start"))
	assert.Equal(t, []string{"a.awake", "c.awake"}, only(j, ".awake"), "late items awaken before starting")
	assert.Equal(t, 0, s.PendingStarts())

	s.Update(ctx(), time.Millisecond)
	assert.Len(t, only(j, ".start"), 2, "started exactly once")
	assert.NotContains(t, j.calls, "b.update")
}

func TestLateStartDuringPhaseStartsAtNextPhase(t *testing.T) {
	j := &journal{}
	s := NewScheduler(nil)
	late := newProbe(j, "late")
	spawner := newProbe(j, "spawner")
	frame(s)
	s.Register(spawner)
	j.calls = nil

	s.Register(NewFunc("spawn", func(time.Duration) {
		if !s.Registered(late) {
			s.Register(late)
		}
	}))
	s.Update(ctx(), time.Millisecond)
	assert.NotContains(t, j.calls, "late.start")
	s.LateUpdate(ctx(), time.Millisecond)
	assert.Contains(t, j.calls, "late.awake")
	assert.Contains(t, j.calls, "late.start")
	assert.Contains(t, j.calls, "late.late")
}

func TestPanickingItemIsEvictedFromPhase(t *testing.T) {
	j := &journal{}
	s := NewScheduler(nil)
	bad := newProbe(j, "bad")
	bad.panicOn = "update"
	good := newProbe(j, "good")
	s.Register(bad)
	s.Register(good)

	frame(s)
	assert.Contains(t, j.calls, "good.update", "phase continues after a failure")
	assert.Equal(t, 1, s.Len(PhaseUpdate))

	j.calls = nil
	frame(s)
	assert.NotContains(t, j.calls, "bad.update")
	assert.Contains(t, j.calls, "bad.late", "other phases keep the item")
	assert.True(t, s.Registered(bad))
}

func TestInactiveItemIsSkippedNotEvicted(t *testing.T) {
	j := &journal{}
	s := NewScheduler(nil)
	p := newProbe(j, "p")
	p.off = true
	s.Register(p)

	frame(s)
	frame(s)
	assert.Empty(t, j.calls)

	p.off = false
	frame(s)
	assert.Equal(t, []string{"p.awake", "p.start", "p.update", "p.fixed", "p.late"}, j.calls)
}

func TestRegisterRejects(t *testing.T) {
	s := NewScheduler(nil)
	p := newProbe(&journal{}, "p")
	assert.True(t, s.Register(p))
	assert.False(t, s.Register(p), "duplicate")
	assert.False(t, s.Register(&struct{ X int }{}), "no phase")
	assert.False(t, s.Register(nil))
	assert.True(t, s.Unregister(p))
	assert.False(t, s.Unregister(p))
}

type Stats struct{ HP int }

type Regen struct {
	Stats *Stats `inject:""`
	j     *journal
}

func (r *Regen) Awake()               { r.j.add("regen.awake") }
func (r *Regen) Update(time.Duration) { r.Stats.HP++ }

func TestBehaviorsAreTrackedFromContainer(t *testing.T) {
	cat := ecs.NewCatalog()
	ecs.RegisterData[Stats](cat)
	ecs.RegisterBehavior[Regen](cat)
	c := ecs.NewContainer(ecs.NewRegistry(nil), cat, nil)
	s := NewScheduler(nil)
	s.Attach(c)

	j := &journal{}
	e := c.CreateNew()
	stats := &Stats{}
	c.AddData(e, stats)
	regen := &Regen{j: j}
	require.True(t, c.AddBehavior(e, regen))
	assert.True(t, s.Registered(regen))
	assert.False(t, s.Registered(stats), "data is never scheduled")

	frame(s)
	frame(s)
	assert.Equal(t, 2, stats.HP)
	assert.Equal(t, []string{"regen.awake"}, j.calls)

	require.True(t, ecs.RemoveOf[Regen](c, e))
	assert.False(t, s.Registered(regen))
	frame(s)
	assert.Equal(t, 2, stats.HP)

	c.AddBehavior(e, &Regen{j: j})
	c.Remove(e)
	assert.Equal(t, 0, s.Len(PhaseUpdate))
}

func TestPhasesAreTraced(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	s := NewScheduler(nil, WithTracerProvider(tp))
	bad := newProbe(&journal{}, "bad")
	bad.panicOn = "late"
	s.Register(bad)
	frame(s)

	var names []string
	for _, sp := range rec.Ended() {
		names = append(names, sp.Name())
	}
	assert.Equal(t, []string{
		"scheduler.awake", "scheduler.start", "scheduler.update",
		"scheduler.fixed_update", "scheduler.late_update",
	}, names)
	last := rec.Ended()[4]
	assert.Equal(t, "1 items evicted", last.Status().Description)
}
