package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func methodRecord() Record {
	return Record{
		AttrType:      TypeMethod,
		AttrName:      "add",
		AttrClass:     "java.util.ArrayList",
		AttrSignature: "add(java.lang.Object)",
		AttrModifiers: "1",
		AttrReturn:    "boolean",
		AttrDefs:      EncodeFields([]FieldEntry{{Name: "java.util.ArrayList.size", Primitive: true, Modifiers: 2}}),
		AttrUses: EncodeFields([]FieldEntry{
			{Name: "java.util.ArrayList.size", Primitive: true, Modifiers: 2},
			{Name: "java.util.ArrayList.elementData", Primitive: false, Modifiers: 130},
		}),
		AttrAccessed: JoinList([]string{"java.util.ArrayList.grow(int)", "java.util.Arrays.copyOf(java.lang.Object[],int)"}),
		AttrVerdict:  "YES",
	}
}

func TestFieldTriples(t *testing.T) {
	entries := []FieldEntry{
		{Name: "p.A.x", Primitive: true, Modifiers: 2},
		{Name: "p.A.list", Primitive: false, Modifiers: 9},
	}
	s := EncodeFields(entries)
	assert.Equal(t, "p.A.x;true;2,p.A.list;false;9", s)

	got, err := DecodeFields(s)
	require.NoError(t, err)
	assert.Equal(t, entries, got)

	got, err = DecodeFields("")
	require.NoError(t, err)
	assert.Nil(t, got)

	for _, bad := range []string{"p.A.x;true", "p.A.x;maybe;2", "p.A.x;true;x", ";true;1"} {
		_, err := DecodeFields(bad)
		assert.ErrorIs(t, err, ErrMalformedRecord, bad)
	}
}

func TestJoinList(t *testing.T) {
	names := []string{"a.B.m(int,long)", "a.B.n()"}
	assert.Equal(t, names, SplitList(JoinList(names)))
	assert.Nil(t, SplitList(""))
}

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rec     Record
		wantErr bool
	}{
		{"method", methodRecord(), false},
		{"class", Record{AttrType: TypeClass, AttrName: "p.A"}, false},
		{"field", Record{AttrType: TypeField, AttrName: "x", AttrClass: "p.A"}, false},
		{"no name", Record{AttrType: TypeClass}, true},
		{"unknown type", Record{AttrType: "module", AttrName: "m"}, true},
		{"method without signature", Record{AttrType: TypeMethod, AttrName: "m", AttrClass: "p.A"}, true},
		{"field without class", Record{AttrType: TypeField, AttrName: "x"}, true},
		{"bad modifiers", Record{AttrType: TypeClass, AttrName: "p.A", AttrModifiers: "public"}, true},
		{"bad verdict", Record{AttrType: TypeClass, AttrName: "p.A", AttrVerdict: "PERHAPS"}, true},
		{"bad defs", Record{AttrType: TypeClass, AttrName: "p.A", AttrDefs: "x"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rec.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrMalformedRecord)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBytecodeCache_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "bytecode.msgpack")
	c := NewBytecodeCache(path)
	c.Put("java.util.ArrayList.add(java.lang.Object)", methodRecord())
	c.Put("java.util.ArrayList", Record{AttrType: TypeClass, AttrName: "java.util.ArrayList", AttrKind: "class"})
	require.True(t, c.Dirty())

	require.NoError(t, c.Save())
	assert.False(t, c.Dirty())

	loaded := NewBytecodeCache(path)
	require.NoError(t, loaded.Load())
	assert.Equal(t, c.Keys(), loaded.Keys())

	rec, ok := loaded.Get("java.util.ArrayList.add(java.lang.Object)")
	require.True(t, ok)
	assert.Equal(t, methodRecord(), rec)

	defs, err := DecodeFields(rec[AttrDefs])
	require.NoError(t, err)
	assert.Equal(t, []FieldEntry{{Name: "java.util.ArrayList.size", Primitive: true, Modifiers: 2}}, defs)
	assert.Equal(t, "YES", rec[AttrVerdict])

	// No temp files remain.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBytecodeCache_PutCopies(t *testing.T) {
	c := NewBytecodeCache("")
	rec := Record{AttrType: TypeClass, AttrName: "p.A"}
	c.Put("p.A", rec)
	rec[AttrName] = "changed"

	got, _ := c.Get("p.A")
	assert.Equal(t, "p.A", got[AttrName])

	got[AttrName] = "changed again"
	again, _ := c.Get("p.A")
	assert.Equal(t, "p.A", again[AttrName])
}

func TestBytecodeCache_PutUnchangedKeepsClean(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bc.msgpack")
	c := NewBytecodeCache(path)
	c.Put("p.A", Record{AttrType: TypeClass, AttrName: "p.A"})
	require.NoError(t, c.Save())

	c.Put("p.A", Record{AttrType: TypeClass, AttrName: "p.A"})
	assert.False(t, c.Dirty())

	c.Delete("p.A")
	assert.True(t, c.Dirty())
	assert.Equal(t, 0, c.Len())
}

func TestBytecodeCache_MissingFile(t *testing.T) {
	c := NewBytecodeCache(filepath.Join(t.TempDir(), "none.msgpack"))
	require.NoError(t, c.Load())
	assert.Equal(t, 0, c.Len())

	loaded, err := c.LoadIfFresh(nil)
	require.NoError(t, err)
	assert.False(t, loaded)
}

func TestBytecodeCache_ObsoleteFormatIsFatal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, msgpack.NewEncoder(&buf).Encode(&bytecodeFile{
		Version: FormatVersion - 1,
		Records: map[string]Record{"p.A": {AttrType: TypeClass, AttrName: "p.A"}},
	}))

	c := NewBytecodeCache("old.msgpack")
	err := c.Decode(&buf)
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, ErrObsoleteFormat)
	assert.Contains(t, err.Error(), "delete the file")
}

func TestBytecodeCache_MalformedIsFatalAndAtomic(t *testing.T) {
	c := NewBytecodeCache("bad.msgpack")
	c.Put("keep", Record{AttrType: TypeClass, AttrName: "keep"})

	var buf bytes.Buffer
	require.NoError(t, msgpack.NewEncoder(&buf).Encode(&bytecodeFile{
		Version: FormatVersion,
		Records: map[string]Record{
			"p.A":   {AttrType: TypeClass, AttrName: "p.A"},
			"p.A.m": {AttrType: TypeMethod, AttrName: "m"},
		},
	}))
	err := c.Decode(&buf)
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, ErrMalformedRecord)

	// Nothing from the bad file was loaded.
	assert.Equal(t, []string{"keep"}, c.Keys())

	err = c.Decode(bytes.NewReader([]byte("not msgpack at all")))
	assert.True(t, IsFatal(err))
}

func TestBytecodeCache_LoadIfFresh(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bc.msgpack")
	catalog := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalog, []byte("classes: []\n"), 0644))

	c := NewBytecodeCache(path)
	c.Put("p.A", Record{AttrType: TypeClass, AttrName: "p.A"})
	require.NoError(t, c.Save())

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(catalog, old, old))

	fresh := NewBytecodeCache(path)
	loaded, err := fresh.LoadIfFresh([]string{catalog, filepath.Join(dir, "gone.yaml")})
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, 1, fresh.Len())

	newer := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(catalog, newer, newer))

	stale := NewBytecodeCache(path)
	loaded, err = stale.LoadIfFresh([]string{catalog})
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.Equal(t, 0, stale.Len())
}
