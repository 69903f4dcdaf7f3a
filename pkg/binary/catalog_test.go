package binary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/jflow/pkg/syntax"
)

const listCatalog = `
classes:
  - name: java.util.ArrayList
    kind: class
    modifiers: [public]
    superclass: java.util.AbstractList
    interfaces: [java.util.List]
    fields:
      - name: size
        type: int
        modifiers: [private]
    methods:
      - name: add
        params: [java.lang.Object]
        result: boolean
        modifiers: [public]
        access:
          reads: [java.util.ArrayList.size]
          writes: [java.util.ArrayList.size]
          methods: [java.util.ArrayList.grow(int)]
      - name: grow
        params: [int]
        result: java.lang.Object[]
        modifiers: [private]
      - name: trimToSize
        modifiers: [public]
        unreadable: true
  - name: java.util.List
    kind: interface
    modifiers: [public, abstract]
`

func TestCatalog_Parse(t *testing.T) {
	c, err := ParseCatalog([]byte(listCatalog))
	require.NoError(t, err)

	assert.Equal(t, []string{"java.util.ArrayList", "java.util.List"}, c.ClassNames())

	list, err := c.Class("java.util.List")
	require.NoError(t, err)
	assert.Equal(t, syntax.InterfaceKind, list.TypeKind())
	assert.True(t, list.Mods().Has(syntax.Abstract))

	al, err := c.Class("java.util.ArrayList")
	require.NoError(t, err)
	assert.Equal(t, syntax.ClassKind, al.TypeKind())
	require.NotNil(t, al.Method("add(java.lang.Object)"))
	require.NotNil(t, al.Method("grow(int)"))
	assert.Nil(t, al.Method("add(int)"))
}

func TestCatalog_Accesses(t *testing.T) {
	c, err := ParseCatalog([]byte(listCatalog))
	require.NoError(t, err)

	tests := []struct {
		name      string
		class     string
		signature string
		wantErr   error
		wantWrite bool
	}{
		{"scanned method", "java.util.ArrayList", "add(java.lang.Object)", nil, true},
		{"no access info", "java.util.ArrayList", "grow(int)", nil, false},
		{"unreadable", "java.util.ArrayList", "trimToSize()", ErrUnreadable, false},
		{"missing method", "java.util.ArrayList", "clear()", ErrClassNotFound, false},
		{"missing class", "java.util.HashMap", "clear()", ErrClassNotFound, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			acc, err := c.Accesses(tc.class, tc.signature)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantWrite, acc.WritesField())
		})
	}
}

func TestCatalog_LoadFilesMerge(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.yaml")
	second := filepath.Join(dir, "b.yaml")
	require.NoError(t, os.WriteFile(first, []byte(listCatalog), 0644))
	require.NoError(t, os.WriteFile(second, []byte(`
classes:
  - name: java.util.List
    kind: interface
    methods:
      - name: size
        result: int
`), 0644))

	c, err := LoadCatalog(first, second)
	require.NoError(t, err)
	assert.Equal(t, []string{first, second}, c.Files())

	list, err := c.Class("java.util.List")
	require.NoError(t, err)
	assert.NotNil(t, list.Method("size()"))

	_, err = LoadCatalog(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestCatalog_EncodeRoundTrip(t *testing.T) {
	c, err := ParseCatalog([]byte(listCatalog))
	require.NoError(t, err)

	data, err := c.Encode()
	require.NoError(t, err)

	again, err := ParseCatalog(data)
	require.NoError(t, err)
	assert.Equal(t, c.ClassNames(), again.ClassNames())
}

func TestCatalog_RejectsNamelessEntry(t *testing.T) {
	_, err := ParseCatalog([]byte("classes:\n  - kind: class\n"))
	assert.Error(t, err)
}

func TestMethodInfo_Descriptor(t *testing.T) {
	tests := []struct {
		m    MethodInfo
		want string
	}{
		{MethodInfo{Name: "add", Params: []string{"java.lang.Object"}, Result: "boolean"}, "(Ljava/lang/Object;)Z"},
		{MethodInfo{Name: "grow", Params: []string{"int"}, Result: "java.lang.Object[]"}, "(I)[Ljava/lang/Object;"},
		{MethodInfo{Name: "<init>", Params: []string{"long", "double[][]"}, Constructor: true}, "(J[[D)V"},
		{MethodInfo{Name: "get", Result: "java.util.List<java.lang.String>"}, "()Ljava/util/List;"},
		{MethodInfo{Name: "run"}, "()V"},
	}
	for _, tc := range tests {
		t.Run(tc.m.Name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.m.Descriptor())
		})
	}
}
