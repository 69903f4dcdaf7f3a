package sideeffect

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/jflow/internal/log"
	"github.com/l3aro/jflow/pkg/binary"
	"github.com/l3aro/jflow/pkg/cache"
	"github.com/l3aro/jflow/pkg/cfg"
	"github.com/l3aro/jflow/pkg/javasrc"
	"github.com/l3aro/jflow/pkg/semantic"
)

const counterSrc = `package fx;

public class Counter {
    int count;
    int limit;

    void inc() { count++; }

    int peek() { return count + limit; }

    void bump() {
        inc();
        check();
    }

    void check() {
        if (peek() > limit) reset();
    }

    void reset() { count = 0; }

    void ping(int n) {
        if (n > 0) {
            count = n;
            pong(n - 1);
        }
    }

    void pong(int n) {
        limit = n;
        ping(n);
    }

    void a() { b(); }
    void b() { c(); }
    void c() { d(); }
    void d() {}

    int pure(int x) { return x * 2; }
}

class Base {
    void run() {}
}

class Sub extends Base {
    int z;

    void run() { z = 1; }
}
`

func newRegistry(t *testing.T, src string, opts semantic.Options) *semantic.Registry {
	t.Helper()
	p, err := javasrc.ParseSource("T.java", []byte(src))
	require.NoError(t, err)
	opts.Project = p
	opts.Logger = log.Discard()
	return semantic.NewRegistry(opts)
}

func summarize(t *testing.T, a *Aggregator, reg *semantic.Registry, key string) *Summary {
	t.Helper()
	m := reg.LookupMethod(key)
	require.True(t, m.IsRegistered(), key)
	return a.Summarize(m)
}

func TestSummarize_Verdicts(t *testing.T) {
	reg := newRegistry(t, counterSrc, semantic.Options{})
	a := New(Options{Registry: reg, Logger: log.Discard()})

	tests := []struct {
		key     string
		defs    []string
		uses    []string
		verdict semantic.Verdict
	}{
		{"fx.Counter.inc()", []string{"fx.Counter.count"}, []string{"fx.Counter.count"}, semantic.VerdictYes},
		{"fx.Counter.peek()", []string{}, []string{"fx.Counter.count", "fx.Counter.limit"}, semantic.VerdictNo},
		{"fx.Counter.bump()", []string{"fx.Counter.count"}, []string{"fx.Counter.count", "fx.Counter.limit"}, semantic.VerdictYes},
		{"fx.Counter.pure(int)", []string{}, []string{}, semantic.VerdictNo},
		{"fx.Base.run()", []string{"fx.Sub.z"}, []string{}, semantic.VerdictYes},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			s := summarize(t, a, reg, tt.key)
			assert.Equal(t, tt.defs, s.DefNames())
			assert.Equal(t, tt.uses, s.UseNames())
			assert.Equal(t, tt.verdict, s.Verdict)
			assert.False(t, s.Unknown)
		})
	}
}

func TestSummarize_MutualRecursionConverges(t *testing.T) {
	reg := newRegistry(t, counterSrc, semantic.Options{})
	a := New(Options{Registry: reg, Logger: log.Discard()})

	ping := summarize(t, a, reg, "fx.Counter.ping(int)")
	want := []string{"fx.Counter.count", "fx.Counter.limit"}
	assert.Equal(t, want, ping.DefNames())
	assert.Equal(t, semantic.VerdictYes, ping.Verdict)

	// the other routine of the cycle was memoized with the same union
	eff, ok := reg.LookupMethod("fx.Counter.pong(int)").Effects()
	require.True(t, ok)
	assert.Equal(t, want, eff.DefNames())

	pong := summarize(t, a, reg, "fx.Counter.pong(int)")
	assert.Equal(t, want, pong.DefNames())
}

func TestSummarize_VisitsEachRoutineOnce(t *testing.T) {
	reg := newRegistry(t, counterSrc, semantic.Options{})
	builds := map[string]int{}
	f := cfg.NewFactory(cfg.Options{Registry: reg, Logger: log.Discard()})
	a := New(Options{
		Registry: reg,
		Logger:   log.Discard(),
		Build: func(m *semantic.Method) (*cfg.CFG, error) {
			builds[m.Key()]++
			return f.BuildMethod(m)
		},
	})

	summarize(t, a, reg, "fx.Counter.bump()")
	summarize(t, a, reg, "fx.Counter.check()")
	summarize(t, a, reg, "fx.Counter.ping(int)")
	for key, n := range builds {
		assert.Equal(t, 1, n, key)
	}
	assert.Equal(t, 1, builds["fx.Counter.reset()"])
	assert.Equal(t, 7, a.Visited())
}

func TestSummarize_CapMarksUnknown(t *testing.T) {
	reg := newRegistry(t, counterSrc, semantic.Options{})
	a := New(Options{Registry: reg, Cap: 2, Logger: log.Discard()})

	s := summarize(t, a, reg, "fx.Counter.a()")
	assert.True(t, s.Unknown)
	assert.Equal(t, semantic.VerdictMaybe, s.Verdict)
	assert.Empty(t, s.DefFields)

	eff, ok := reg.LookupMethod("fx.Counter.b()").Effects()
	require.True(t, ok)
	assert.True(t, eff.Unknown)
	assert.Equal(t, semantic.VerdictMaybe, eff.Verdict)
	_, ok = reg.LookupMethod("fx.Counter.c()").Effects()
	assert.False(t, ok)
}

func TestSummarize_CapDoesNotHideWrites(t *testing.T) {
	reg := newRegistry(t, counterSrc, semantic.Options{})
	a := New(Options{Registry: reg, Cap: 1, Logger: log.Discard()})

	s := summarize(t, a, reg, "fx.Counter.ping(int)")
	assert.True(t, s.Unknown)
	assert.Equal(t, semantic.VerdictYes, s.Verdict)
	assert.Equal(t, []string{"fx.Counter.count"}, s.DefNames())
}

func TestSummarize_Memoized(t *testing.T) {
	reg := newRegistry(t, counterSrc, semantic.Options{})
	a := New(Options{Registry: reg, Logger: log.Discard()})

	m := reg.LookupMethod("fx.Counter.inc()")
	first := a.Summarize(m)
	eff, ok := m.Effects()
	require.True(t, ok)
	assert.Equal(t, semantic.VerdictYes, eff.Verdict)

	a.Reset()
	assert.Zero(t, a.Visited())
	again := a.Summarize(m)
	assert.Equal(t, first, again)
}

func TestSummarizeClass(t *testing.T) {
	reg := newRegistry(t, counterSrc, semantic.Options{})
	a := New(Options{Registry: reg, Logger: log.Discard()})

	out := a.SummarizeClass(reg.ResolveClass("fx.Sub"))
	require.Len(t, out, 2)
	assert.Equal(t, "fx.Sub.run()", out[0].Method)
	assert.Equal(t, semantic.VerdictYes, out[0].Verdict)
	assert.Equal(t, "fx.Sub.<init>()", out[1].Method)
	assert.Equal(t, semantic.VerdictNo, out[1].Verdict)
}

const bagSrc = `package fx;

import java.util.ArrayList;

public class Bag {
    ArrayList<Object> items;

    void put(Object o) {
        items.add(o);
    }

    void shrink() {
        items.trimToSize();
    }
}
`

func listCatalog() *binary.Catalog {
	return binary.NewCatalog(
		&binary.ClassInfo{
			Name: "java.util.ArrayList", Kind: "class",
			Fields: []binary.FieldInfo{{Name: "size", Type: "int", Modifiers: []string{"private"}}},
			Methods: []binary.MethodInfo{
				{Name: "add", Params: []string{"java.lang.Object"}, Result: "boolean", Modifiers: []string{"public"},
					Access: &binary.AccessInfo{Reads: []string{"java.util.ArrayList.size"}, Writes: []string{"java.util.ArrayList.size"}}},
				{Name: "trimToSize", Modifiers: []string{"public"}, Unreadable: true},
			},
		},
	)
}

func TestSummarize_BinaryRoutines(t *testing.T) {
	reg := newRegistry(t, bagSrc, semantic.Options{Introspector: listCatalog(), BinaryAnalysis: true})
	a := New(Options{Registry: reg, Logger: log.Discard()})

	put := summarize(t, a, reg, "fx.Bag.put(java.lang.Object)")
	assert.Equal(t, []string{"java.util.ArrayList.size"}, put.DefNames())
	assert.Equal(t, []string{"fx.Bag.items", "java.util.ArrayList.size"}, put.UseNames())
	assert.Equal(t, semantic.VerdictYes, put.Verdict)

	shrink := summarize(t, a, reg, "fx.Bag.shrink()")
	assert.Empty(t, shrink.DefFields)
	assert.False(t, shrink.Unknown)
	assert.Equal(t, semantic.VerdictMaybe, shrink.Verdict)
}

func TestSummarize_CachedEffectsSkipIntrospection(t *testing.T) {
	bc := cache.NewBytecodeCache(filepath.Join(t.TempDir(), "bytecode.msgpack"))
	first := newRegistry(t, bagSrc, semantic.Options{Introspector: listCatalog(), BinaryAnalysis: true})
	New(Options{Registry: first, Logger: log.Discard()}).Summarize(first.LookupMethod("fx.Bag.put(java.lang.Object)"))
	require.Greater(t, first.Persist(bc), 0)
	first.Destroy()

	reg := newRegistry(t, bagSrc, semantic.Options{Cache: bc, BinaryAnalysis: true})
	add := reg.LookupMethod("java.util.ArrayList.add(java.lang.Object)")
	require.True(t, add.IsCache())

	a := New(Options{Registry: reg, Logger: log.Discard()})
	put := summarize(t, a, reg, "fx.Bag.put(java.lang.Object)")
	assert.Equal(t, []string{"java.util.ArrayList.size"}, put.DefNames())
	assert.Equal(t, semantic.VerdictYes, put.Verdict)
}
