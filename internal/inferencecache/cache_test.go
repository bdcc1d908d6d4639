package inferencecache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, dir string, size int) string {
	t.Helper()
	path := filepath.Join(dir, "movie.mkv")
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func sampleResults() map[string]*SceneDescription {
	return map[string]*SceneDescription{
		"frames/0001.jpg": {VisualContent: "hallway", Mood: "tense", Action: "walking", Setting: "office"},
		"frames/0002.jpg": nil,
		"frames/0003.jpg": {VisualContent: "car chase", Mood: "urgent", Action: "driving", Setting: "highway"},
	}
}

func TestSaveAtomicAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, 4096)
	want := sampleResults()

	require.NoError(t, SaveAtomic(want, src, dir))

	got, err := Load(src, dir)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadMissingReturnsNilNoError(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, 10)
	got, err := Load(src, dir)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLoadCorruptFileTreatedAsAbsent(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, 10)
	path := pathFor(src, dir)
	require.NoError(t, os.WriteFile(path, []byte("not a gob stream"), 0o644))

	got, err := Load(src, dir)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSizeChangeInvalidatesLoad(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, 100)
	require.NoError(t, SaveAtomic(sampleResults(), src, dir))

	require.NoError(t, os.WriteFile(src, make([]byte, 200), 0o644))

	got, err := Load(src, dir)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveIdempotentByteIdentical(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, 512)
	results := sampleResults()

	require.NoError(t, SaveAtomic(results, src, dir))
	first, err := os.ReadFile(pathFor(src, dir))
	require.NoError(t, err)

	require.NoError(t, SaveAtomic(results, src, dir))
	second, err := os.ReadFile(pathFor(src, dir))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestReconcileFillsMissingFramesWithNil(t *testing.T) {
	cached := map[string]*SceneDescription{
		"frames/0001.jpg": {VisualContent: "a"},
	}
	keyframes := []KeyframeRef{{FramePath: "frames/0001.jpg"}, {FramePath: "frames/0002.jpg"}}

	got := Reconcile(keyframes, cached)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got["frames/0001.jpg"].VisualContent)
	assert.Nil(t, got["frames/0002.jpg"])
}

func TestReconcileHandlesNilCache(t *testing.T) {
	keyframes := []KeyframeRef{{FramePath: "frames/0001.jpg"}}
	got := Reconcile(keyframes, nil)
	require.Len(t, got, 1)
	assert.Nil(t, got["frames/0001.jpg"])
}
