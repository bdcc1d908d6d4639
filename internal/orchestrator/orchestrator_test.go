package orchestrator

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinecut/internal/external"
	"cinecut/internal/manifest"
	"cinecut/internal/mixplan"
)

type fakeTranscoder struct {
	durationS         float64
	extractFrameCalls int
	extractAudioCalls int
}

func (f *fakeTranscoder) ExtractProxy(ctx context.Context, source, workDir string) (string, error) {
	path := filepath.Join(workDir, "fake_proxy.mp4")
	return path, os.WriteFile(path, []byte("proxy"), 0o644)
}

func (f *fakeTranscoder) ExtractFrame(ctx context.Context, proxyPath string, timestampS float64, outPath string) error {
	f.extractFrameCalls++
	return os.WriteFile(outPath, []byte("frame"), 0o644)
}

func (f *fakeTranscoder) ExtractAudioSegment(ctx context.Context, source string, startS, endS float64, outPath string) error {
	f.extractAudioCalls++
	n := int((endS - startS) * float64(audioSampleRateHz))
	if n < 0 {
		n = 0
	}
	return writeWAVSamples(outPath, make([]int16, n*audioNumChannels))
}

func (f *fakeTranscoder) Probe(ctx context.Context, source string) (external.ProbeResult, error) {
	return external.ProbeResult{DurationS: f.durationS, Width: 1920, Height: 1080, FPS: 24}, nil
}

func fakeFrameLoader(path string) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
}

type fakeVisionRuntime struct{ calls int }

func (f *fakeVisionRuntime) Complete(ctx context.Context, req external.CompletionRequest) (external.CompletionResult, error) {
	f.calls++
	return external.CompletionResult{Text: `{"visual_content":"a hallway","mood":"tense","action":"walking","setting":"interior"}`}, nil
}

type fakeFiltergraphRunner struct {
	calls   int
	outPath string
	inputs  []string
}

func (f *fakeFiltergraphRunner) Run(ctx context.Context, plan mixplan.Plan, inputs []string, outputPath string) error {
	f.calls++
	f.inputs = inputs
	f.outPath = outputPath
	return os.WriteFile(outputPath, []byte("mixed"), 0o644)
}

type fakeMusicAPI struct{}

func (fakeMusicAPI) SearchAndFetch(ctx context.Context, tags []string, cacheDir string) (string, error) {
	return "", nil // degrade to no music bed, matches music.Resolve's documented behavior
}

func writeSubtitleFile(t *testing.T, dir string) string {
	t.Helper()
	content := "1\n00:00:01,000 --> 00:00:03,000\nHello there, friend.\n\n" +
		"2\n00:00:20,000 --> 00:00:22,000\nWe have to go now!\n\n" +
		"3\n00:00:50,000 --> 00:00:52,000\nThis is the end.\n\n"
	path := filepath.Join(dir, "subs.srt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestDeps(transcoder *fakeTranscoder, vision *fakeVisionRuntime, runner *fakeFiltergraphRunner) Dependencies {
	return Dependencies{
		Transcoder:        transcoder,
		VisionRuntime:     vision,
		TextRuntime:       nil, // nil is valid: structural.Analyze degrades to heuristic anchors
		FiltergraphRunner: runner,
		MusicAPI:          fakeMusicAPI{},
		FrameLoader:       fakeFrameLoader,
	}
}

func TestRunFreshPipelineProducesManifestAndOutput(t *testing.T) {
	workDir := t.TempDir()
	sourcePath := filepath.Join(workDir, "film.mkv")
	require.NoError(t, os.WriteFile(sourcePath, []byte("source bytes"), 0o644))
	subPath := writeSubtitleFile(t, workDir)

	transcoder := &fakeTranscoder{durationS: 60}
	vision := &fakeVisionRuntime{}
	runner := &fakeFiltergraphRunner{}

	params := Params{
		SourcePath:    sourcePath,
		SubtitlePath:  subPath,
		VibeKey:       "action",
		WorkDir:       workDir,
		ManifestPath:  filepath.Join(workDir, "trailer_manifest.json"),
		OutputPath:    filepath.Join(workDir, "mixed_audio.wav"),
		MusicCacheDir: filepath.Join(workDir, "music_cache"),
	}

	m, err := Run(context.Background(), params, newTestDeps(transcoder, vision, runner))
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.Equal(t, manifest.SchemaV2, m.SchemaVersion)
	assert.NotEmpty(t, m.Clips)
	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, params.OutputPath, runner.outPath)
	assert.FileExists(t, params.OutputPath)
	assert.FileExists(t, params.ManifestPath)
	assert.Greater(t, vision.calls, 0)
}

func TestRunResumesWithoutRedoingCompletedStages(t *testing.T) {
	workDir := t.TempDir()
	sourcePath := filepath.Join(workDir, "film.mkv")
	require.NoError(t, os.WriteFile(sourcePath, []byte("source bytes"), 0o644))
	subPath := writeSubtitleFile(t, workDir)

	transcoder := &fakeTranscoder{durationS: 60}
	vision := &fakeVisionRuntime{}
	runner := &fakeFiltergraphRunner{}

	params := Params{
		SourcePath:    sourcePath,
		SubtitlePath:  subPath,
		VibeKey:       "action",
		WorkDir:       workDir,
		ManifestPath:  filepath.Join(workDir, "trailer_manifest.json"),
		OutputPath:    filepath.Join(workDir, "mixed_audio.wav"),
		MusicCacheDir: filepath.Join(workDir, "music_cache"),
	}

	_, err := Run(context.Background(), params, newTestDeps(transcoder, vision, runner))
	require.NoError(t, err)

	framesAfterFirstRun := transcoder.extractFrameCalls
	visionCallsAfterFirstRun := vision.calls

	// Second run against the same work dir and an unchanged source must skip
	// every already-completed stage rather than re-extracting frames or
	// re-invoking the vision model (spec.md §4.M resumability).
	m2, err := Run(context.Background(), params, newTestDeps(transcoder, vision, runner))
	require.NoError(t, err)
	require.NotNil(t, m2)

	assert.Equal(t, framesAfterFirstRun, transcoder.extractFrameCalls)
	assert.Equal(t, visionCallsAfterFirstRun, vision.calls)
}

func TestRunInvalidatesCascadeWhenSourceFingerprintChanges(t *testing.T) {
	workDir := t.TempDir()
	sourcePath := filepath.Join(workDir, "film.mkv")
	require.NoError(t, os.WriteFile(sourcePath, []byte("source bytes v1"), 0o644))
	subPath := writeSubtitleFile(t, workDir)

	transcoder := &fakeTranscoder{durationS: 60}
	vision := &fakeVisionRuntime{}
	runner := &fakeFiltergraphRunner{}

	params := Params{
		SourcePath:    sourcePath,
		SubtitlePath:  subPath,
		VibeKey:       "action",
		WorkDir:       workDir,
		ManifestPath:  filepath.Join(workDir, "trailer_manifest.json"),
		OutputPath:    filepath.Join(workDir, "mixed_audio.wav"),
		MusicCacheDir: filepath.Join(workDir, "music_cache"),
	}

	_, err := Run(context.Background(), params, newTestDeps(transcoder, vision, runner))
	require.NoError(t, err)
	framesAfterFirstRun := transcoder.extractFrameCalls

	// Changing the source file's content (and therefore its fingerprint)
	// must force a full redo — nothing carries over from the stale checkpoint.
	require.NoError(t, os.WriteFile(sourcePath, []byte("an entirely different, longer source payload"), 0o644))

	_, err = Run(context.Background(), params, newTestDeps(transcoder, vision, runner))
	require.NoError(t, err)
	assert.Greater(t, transcoder.extractFrameCalls, framesAfterFirstRun)
}

func TestRunAbortsOnReviewRejection(t *testing.T) {
	workDir := t.TempDir()
	sourcePath := filepath.Join(workDir, "film.mkv")
	require.NoError(t, os.WriteFile(sourcePath, []byte("source bytes"), 0o644))
	subPath := writeSubtitleFile(t, workDir)

	transcoder := &fakeTranscoder{durationS: 60}
	vision := &fakeVisionRuntime{}
	runner := &fakeFiltergraphRunner{}

	params := Params{
		SourcePath:    sourcePath,
		SubtitlePath:  subPath,
		VibeKey:       "action",
		WorkDir:       workDir,
		ManifestPath:  filepath.Join(workDir, "trailer_manifest.json"),
		OutputPath:    filepath.Join(workDir, "mixed_audio.wav"),
		MusicCacheDir: filepath.Join(workDir, "music_cache"),
		ReviewHook:    func(m *manifest.TrailerManifest) bool { return false },
	}

	_, err := Run(context.Background(), params, newTestDeps(transcoder, vision, runner))
	require.Error(t, err)
	assert.Equal(t, 0, runner.calls)
	assert.NoFileExists(t, params.OutputPath)
}

func TestBuildFilmAudioConcatenatesClipSegmentsInOrder(t *testing.T) {
	workDir := t.TempDir()
	transcoder := &fakeTranscoder{durationS: 10}
	clips := []manifest.ClipEntry{
		{SourceStartS: 0, SourceEndS: 1},
		{SourceStartS: 5, SourceEndS: 7},
	}
	params := Params{SourcePath: "ignored.mkv", WorkDir: workDir}

	path, totalDurationS, err := buildFilmAudio(context.Background(), transcoder, params, clips)
	require.NoError(t, err)
	assert.Equal(t, 3.0, totalDurationS)
	assert.FileExists(t, path)
	assert.Equal(t, 2, transcoder.extractAudioCalls)

	samples, err := readWAVSamples(path)
	require.NoError(t, err)
	expectedLen := int(totalDurationS*float64(audioSampleRateHz)) * audioNumChannels
	assert.Equal(t, expectedLen, len(samples))
}
