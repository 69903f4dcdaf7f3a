package dirty

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJava(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0644))
	return p
}

func TestTracker_CheckAndMark(t *testing.T) {
	dir := t.TempDir()
	a := writeJava(t, dir, "A.java", "class A {}")

	tracker := New(WithCacheDir(dir))

	changed, err := tracker.CheckAndMark(a)
	require.NoError(t, err)
	assert.True(t, changed, "new file is dirty")
	assert.True(t, tracker.IsDirty(a))

	changed, err = tracker.CheckAndMark(a)
	require.NoError(t, err)
	assert.False(t, changed, "same content")
	assert.False(t, tracker.IsDirty(a))

	writeJava(t, dir, "A.java", "class A { int x; }")
	changed, err = tracker.CheckAndMark(a)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, tracker.Count())
	assert.Equal(t, 1, tracker.TotalCount())
}

func TestTracker_CheckAndMark_NonExistent(t *testing.T) {
	tracker := New()
	_, err := tracker.CheckAndMark("/non/existent/A.java")
	assert.Error(t, err)
}

func TestTracker_DirtyFilesSorted(t *testing.T) {
	dir := t.TempDir()
	c := writeJava(t, dir, "C.java", "class C {}")
	a := writeJava(t, dir, "A.java", "class A {}")
	b := writeJava(t, dir, "B.java", "class B {}")

	tracker := New()
	assert.Empty(t, tracker.DirtyFiles())
	for _, p := range []string{c, a, b} {
		_, err := tracker.CheckAndMark(p)
		require.NoError(t, err)
	}
	tracker.ClearDirty(b)

	assert.Equal(t, []string{a, c}, tracker.DirtyFiles())

	tracker.ClearDirty()
	assert.Zero(t, tracker.Count())
}

func TestTracker_ClassesSurviveContentChange(t *testing.T) {
	dir := t.TempDir()
	p := writeJava(t, dir, "Shapes.java", "class Circle {} class Square {}")

	tracker := New()
	_, err := tracker.CheckAndMark(p)
	require.NoError(t, err)
	tracker.SetClasses(p, []string{"geo.Square", "geo.Circle"})
	tracker.ClearDirty()
	assert.Empty(t, tracker.DirtyClasses())

	writeJava(t, dir, "Shapes.java", "class Circle {}")
	_, err = tracker.CheckAndMark(p)
	require.NoError(t, err)

	assert.Equal(t, []string{"geo.Circle", "geo.Square"}, tracker.Classes(p))
	assert.Equal(t, []string{"geo.Circle", "geo.Square"}, tracker.DirtyClasses())
}

func TestTracker_Sweep(t *testing.T) {
	dir := t.TempDir()
	keep := writeJava(t, dir, "Keep.java", "class Keep {}")
	gone := writeJava(t, dir, "Gone.java", "class Gone {}")

	tracker := New()
	for _, p := range []string{keep, gone} {
		_, err := tracker.CheckAndMark(p)
		require.NoError(t, err)
	}
	tracker.SetClasses(gone, []string{"Gone"})
	tracker.ClearDirty()

	require.NoError(t, os.Remove(gone))
	assert.Equal(t, []string{gone}, tracker.Sweep())
	assert.True(t, tracker.IsDirty(gone))
	assert.Equal(t, []string{"Gone"}, tracker.DirtyClasses())

	tracker.Forget(gone)
	assert.Equal(t, 1, tracker.TotalCount())
	_, ok := tracker.Hash(gone)
	assert.False(t, ok)
}

func TestTracker_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	src := writeJava(t, dir, "A.java", "class A {}")
	cacheDir := filepath.Join(dir, ".jflow", "cache")

	tracker := New(WithCacheDir(cacheDir), WithCacheFile("state.json"))
	_, err := tracker.CheckAndMark(src)
	require.NoError(t, err)
	tracker.SetClasses(src, []string{"A"})
	require.NoError(t, tracker.Save())
	assert.FileExists(t, filepath.Join(cacheDir, "state.json"))

	loaded, err := Open(WithCacheDir(cacheDir), WithCacheFile("state.json"))
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.TotalCount())
	assert.True(t, loaded.IsDirty(src))
	assert.Equal(t, []string{"A"}, loaded.Classes(src))

	want, _ := tracker.Hash(src)
	got, ok := loaded.Hash(src)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestTracker_LoadMissingFile(t *testing.T) {
	tracker, err := Open(WithCacheDir(t.TempDir()))
	require.NoError(t, err)
	assert.Zero(t, tracker.TotalCount())
}

func TestTracker_DecodeOtherVersion(t *testing.T) {
	tracker := New()
	err := tracker.Decode(bytes.NewBufferString(`{"version":1,"files":[{"path":"/x/A.java","hash":"ab","is_dirty":false}]}`))
	require.NoError(t, err)
	assert.Zero(t, tracker.TotalCount())
}

func TestTracker_DecodeInvalid(t *testing.T) {
	tracker := New()
	assert.Error(t, tracker.Decode(bytes.NewBufferString("not json")))
}

func TestTracker_EncodeDecode(t *testing.T) {
	dir := t.TempDir()
	src := writeJava(t, dir, "A.java", "class A {}")

	tracker := New()
	_, err := tracker.CheckAndMark(src)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tracker.Encode(&buf))
	assert.Contains(t, buf.String(), `"version": 2`)

	other := New()
	require.NoError(t, other.Decode(&buf))
	assert.Equal(t, tracker.DirtyFiles(), other.DirtyFiles())

	other.Clear()
	assert.Zero(t, other.TotalCount())
}
