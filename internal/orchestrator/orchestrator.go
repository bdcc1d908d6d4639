// Package orchestrator implements the Stage Orchestrator (spec.md §4.M):
// the top-level nine-stage state machine that drives every other
// component, guarded by the Checkpoint Store, the Inference Cache, and the
// GPU Serializer. Grounded on the teacher's handleAnalyze/handlePlan/
// handleRenderMix request-handling sequence in main.go/api_extra.go — each
// handler runs a fixed pipeline of named steps, checks preconditions
// before doing real work, and surfaces a typed error on the first failure.
// Here that same shape is generalized into one resumable, checkpointed
// run instead of one-shot per-request handlers.
package orchestrator

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"cinecut/internal/beats"
	"cinecut/internal/checkpoint"
	"cinecut/internal/cinelog"
	"cinecut/internal/cinerr"
	"cinecut/internal/dialogue"
	"cinecut/internal/external"
	"cinecut/internal/fingerprint"
	"cinecut/internal/gpulock"
	"cinecut/internal/inferencecache"
	"cinecut/internal/manifest"
	"cinecut/internal/mixplan"
	"cinecut/internal/music"
	"cinecut/internal/progress"
	"cinecut/internal/signals"
	"cinecut/internal/structural"
	"cinecut/internal/subtitles"
	"cinecut/internal/assembler"
	"cinecut/internal/vibe"
	"cinecut/internal/vosfx"
	"cinecut/internal/worklock"
)

// Dependencies bundles every injected collaborator the orchestrator needs.
// Reporter, FaceDetector, and Embedder default to harmless zero-cost
// stand-ins when left nil (NullReporter, DefaultFaceDetector, a nil
// Embedder that falls back to anchor-ratio zoning). FrameLoader has no
// default: it is passed through as given and must be set.
type Dependencies struct {
	Transcoder        external.Transcoder
	VisionRuntime     external.ModelRuntime // nil is a valid "no vision model" configuration
	TextRuntime       external.ModelRuntime // nil is a valid "no text model" configuration
	FiltergraphRunner external.FiltergraphRunner
	MusicAPI          external.MusicAPI
	GPU               *gpulock.Serializer

	FaceDetector signals.FaceDetector
	Embedder     beats.Embedder
	FrameLoader  signals.FrameLoader

	Reporter progress.Reporter
}

// Params bundles the per-run inputs.
type Params struct {
	SourcePath    string
	SubtitlePath  string
	VibeKey       string
	WorkDir       string
	ManifestPath  string
	OutputPath    string // final mixed audio file (conform stage output)
	MusicCacheDir string

	// ReviewHook, when non-nil, is invoked with the manifest once narrative
	// and assembly have both completed; a false return aborts the run with
	// cinerr.UserAbort (spec.md §6 --review flag).
	ReviewHook func(*manifest.TrailerManifest) bool
}

func (d Dependencies) reporter() progress.Reporter {
	if d.Reporter != nil {
		return d.Reporter
	}
	return progress.NullReporter{}
}

func (d Dependencies) faceDetector() signals.FaceDetector {
	if d.FaceDetector != nil {
		return d.FaceDetector
	}
	return signals.DefaultFaceDetector()
}

// Run drives the full nine-stage pipeline to completion (or the first
// unrecoverable error), resuming from whatever checkpoint.Checkpoint finds
// on disk for source's current fingerprint.
func Run(ctx context.Context, params Params, deps Dependencies) (*manifest.TrailerManifest, error) {
	runID := cinelog.NewRunID()
	cinelog.WithFields(logrus.Fields{"run_id": runID, "source": params.SourcePath, "vibe": params.VibeKey}).Info("pipeline run starting")

	lock, err := worklock.Acquire(params.WorkDir)
	if err != nil {
		return nil, cinerr.Input(params.WorkDir, "another run holds the work directory lock", err)
	}
	defer lock.Release()

	profile, err := vibe.Get(params.VibeKey)
	if err != nil {
		return nil, cinerr.Input(params.VibeKey, "unknown vibe key", err)
	}

	src, err := fingerprint.Of(params.SourcePath)
	if err != nil {
		return nil, cinerr.Input(params.SourcePath, "source file not found or unreadable", err)
	}

	cp, err := checkpoint.Load(params.WorkDir, src)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		cp = checkpoint.New(params.WorkDir, src)
	}

	state, err := loadRunState(params.WorkDir)
	if err != nil {
		return nil, err
	}

	r := deps.reporter()

	if err := runProxyStage(ctx, params, deps, cp, state, r); err != nil {
		return nil, err
	}

	events, err := runSubtitlesStage(params, cp, r)
	if err != nil {
		return nil, err
	}

	if err := runStructuralStage(ctx, params, deps, cp, state, events, r); err != nil {
		return nil, err
	}

	if err := runKeyframesStage(ctx, params, deps, cp, state, events, r); err != nil {
		return nil, err
	}

	cacheChanged, err := runInferenceStage(ctx, params, deps, cp, state, src, r)
	if err != nil {
		return nil, err
	}
	if cacheChanged {
		// New scene descriptions were computed in this run: narrative
		// onward must be recomputed even if a prior run had completed them
		// (spec.md §4.C cascade rule).
		cp.InvalidateCascade(checkpoint.StageNarrative)
	}

	if err := runZoneMatchingStage(params, deps, cp, state, events, r); err != nil {
		return nil, err
	}

	m, err := runNarrativeStage(ctx, params, deps, cp, state, src, profile, r)
	if err != nil {
		return nil, err
	}

	m, err = runAssemblyStage(ctx, params, deps, cp, state, m, events, profile, r)
	if err != nil {
		return nil, err
	}

	if params.ReviewHook != nil && !params.ReviewHook(m) {
		return nil, cinerr.UserAbort()
	}

	if err := runConformStage(ctx, params, deps, cp, state, m, profile, r); err != nil {
		return nil, err
	}

	cinelog.WithFields(logrus.Fields{"run_id": runID, "source": params.SourcePath}).Info("pipeline run complete")
	return m, nil
}

// reportStage emits a skipped event when alreadyDone, otherwise a started
// event. It returns nothing; completion is reported by reportCompleted.
func reportStage(r progress.Reporter, stage checkpoint.Stage, alreadyDone bool, detail string) {
	if alreadyDone {
		r.Report(progress.Event{Stage: string(stage), Status: progress.StatusSkipped, Detail: detail})
		return
	}
	r.Report(progress.Event{Stage: string(stage), Status: progress.StatusStarted, Detail: detail})
}

func reportFailed(r progress.Reporter, stage checkpoint.Stage, err error) {
	r.Report(progress.Event{Stage: string(stage), Status: progress.StatusFailed, Err: err})
}

func reportCompleted(r progress.Reporter, stage checkpoint.Stage, detail string) {
	r.Report(progress.Event{Stage: string(stage), Status: progress.StatusCompleted, Detail: detail})
}

func proxyPath(workDir string) string    { return filepath.Join(workDir, "proxy.mp4") }
func keyframesDir(workDir string) string { return filepath.Join(workDir, "keyframes") }
func sfxCacheDir(workDir string) string  { return filepath.Join(workDir, "sfx_cache") }

func runProxyStage(ctx context.Context, params Params, deps Dependencies, cp *checkpoint.Checkpoint, state *runState, r progress.Reporter) error {
	stage := checkpoint.StageProxy
	if cp.IsComplete(stage) {
		reportStage(r, stage, true, state.ProxyPath)
		return nil
	}
	reportStage(r, stage, false, "")

	path, err := deps.Transcoder.ExtractProxy(ctx, params.SourcePath, params.WorkDir)
	if err != nil {
		werr := cinerr.Media(params.SourcePath, "proxy extraction failed", err)
		reportFailed(r, stage, werr)
		return werr
	}
	probe, err := deps.Transcoder.Probe(ctx, params.SourcePath)
	if err != nil {
		werr := cinerr.Media(params.SourcePath, "source probe failed", err)
		reportFailed(r, stage, werr)
		return werr
	}

	state.ProxyPath = path
	state.DurationS = probe.DurationS
	if err := state.save(params.WorkDir); err != nil {
		return err
	}
	cp.MarkComplete(stage)
	if err := cp.SaveAtomic(); err != nil {
		return err
	}
	reportCompleted(r, stage, fmt.Sprintf("proxy at %s, %.1fs", path, probe.DurationS))
	return nil
}

func runSubtitlesStage(params Params, cp *checkpoint.Checkpoint, r progress.Reporter) ([]dialogue.Event, error) {
	stage := checkpoint.StageSubtitles
	events, err := subtitles.Parse(params.SubtitlePath)
	if err != nil {
		werr := cinerr.Subtitle(params.SubtitlePath, "subtitle parse failed", err)
		reportFailed(r, stage, werr)
		return nil, werr
	}
	if cp.IsComplete(stage) {
		reportStage(r, stage, true, fmt.Sprintf("%d events", len(events)))
		return events, nil
	}
	reportStage(r, stage, false, "")
	cp.MarkComplete(stage)
	if err := cp.SaveAtomic(); err != nil {
		return nil, err
	}
	reportCompleted(r, stage, fmt.Sprintf("%d dialogue events", len(events)))
	return events, nil
}

func runStructuralStage(ctx context.Context, params Params, deps Dependencies, cp *checkpoint.Checkpoint, state *runState, events []dialogue.Event, r progress.Reporter) error {
	stage := checkpoint.StageStructuralAnalysis
	if cp.IsComplete(stage) {
		reportStage(r, stage, true, "")
		return nil
	}
	reportStage(r, stage, false, "")

	var result structural.Result
	run := func(ctx context.Context) error {
		result = structural.Analyze(ctx, events, state.DurationS, deps.TextRuntime)
		return nil
	}
	var err error
	if deps.GPU != nil && deps.TextRuntime != nil {
		err = gpulock.WithSession(ctx, deps.GPU, gpulock.SessionText, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		reportFailed(r, stage, err)
		return err
	}

	state.Anchors = result.Anchors
	state.ProtagonistName = result.ProtagonistName
	if err := state.save(params.WorkDir); err != nil {
		return err
	}
	cp.MarkComplete(stage)
	if err := cp.SaveAtomic(); err != nil {
		return err
	}
	detail := fmt.Sprintf("begin=%.1f escalation=%.1f climax=%.1f", result.Anchors.BeginT, result.Anchors.EscalationT, result.Anchors.ClimaxT)
	if result.UsedFallback {
		detail += " (heuristic fallback)"
	}
	reportCompleted(r, stage, detail)
	return nil
}

func runKeyframesStage(ctx context.Context, params Params, deps Dependencies, cp *checkpoint.Checkpoint, state *runState, events []dialogue.Event, r progress.Reporter) error {
	stage := checkpoint.StageKeyframes
	if cp.IsComplete(stage) {
		reportStage(r, stage, true, fmt.Sprintf("%d keyframes", len(state.Keyframes)))
		return nil
	}
	reportStage(r, stage, false, "")

	kfDir := keyframesDir(params.WorkDir)
	records, err := SelectKeyframes(ctx, deps.Transcoder, deps.FrameLoader, events, state.ProxyPath, kfDir, state.DurationS)
	if err != nil {
		reportFailed(r, stage, err)
		return err
	}

	state.Keyframes = records
	if err := state.save(params.WorkDir); err != nil {
		return err
	}
	cp.MarkComplete(stage)
	if err := cp.SaveAtomic(); err != nil {
		return err
	}
	reportCompleted(r, stage, fmt.Sprintf("%d keyframes selected", len(records)))
	return nil
}

// runInferenceStage returns whether the on-disk inference cache changed
// (new descriptions were computed), used to drive the narrative-onward
// cascade invalidation rule.
func runInferenceStage(ctx context.Context, params Params, deps Dependencies, cp *checkpoint.Checkpoint, state *runState, src fingerprint.Source, r progress.Reporter) (bool, error) {
	stage := checkpoint.StageInference

	cached, err := inferencecache.Load(params.SourcePath, params.WorkDir)
	if err != nil {
		return false, cinerr.CacheCorruption(params.SourcePath, err)
	}
	refs := make([]inferencecache.KeyframeRef, len(state.Keyframes))
	for i, kf := range state.Keyframes {
		refs[i] = inferencecache.KeyframeRef{FramePath: kf.FramePath}
	}
	reconciled := inferencecache.Reconcile(refs, cached)

	if cp.IsComplete(stage) {
		reportStage(r, stage, true, "")
		return false, nil
	}
	reportStage(r, stage, false, "")

	var described map[string]*inferencecache.SceneDescription
	var changed bool
	run := func(ctx context.Context) error {
		var derr error
		described, changed, derr = describeMissingFrames(ctx, deps.VisionRuntime, state.Keyframes, reconciled)
		return derr
	}
	if deps.GPU != nil && deps.VisionRuntime != nil {
		err = gpulock.WithSession(ctx, deps.GPU, gpulock.SessionVision, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		reportFailed(r, stage, err)
		return false, err
	}

	if changed {
		if err := inferencecache.SaveAtomic(described, params.SourcePath, params.WorkDir); err != nil {
			werr := cinerr.CacheCorruption(params.SourcePath, err)
			reportFailed(r, stage, werr)
			return false, werr
		}
	} else {
		cp.MarkCacheHit(stage)
	}

	cp.MarkComplete(stage)
	if err := cp.SaveAtomic(); err != nil {
		return false, err
	}
	reportCompleted(r, stage, fmt.Sprintf("%d frames described (new: %v)", len(described), changed))
	return changed, nil
}

func runZoneMatchingStage(params Params, deps Dependencies, cp *checkpoint.Checkpoint, state *runState, events []dialogue.Event, r progress.Reporter) error {
	stage := checkpoint.StageZoneMatching
	if cp.IsComplete(stage) {
		reportStage(r, stage, true, fmt.Sprintf("%d candidates", len(state.Candidates)))
		return nil
	}
	reportStage(r, stage, false, "")

	cached, err := inferencecache.Load(params.SourcePath, params.WorkDir)
	if err != nil {
		return cinerr.CacheCorruption(params.SourcePath, err)
	}
	refs := make([]inferencecache.KeyframeRef, len(state.Keyframes))
	for i, kf := range state.Keyframes {
		refs[i] = inferencecache.KeyframeRef{FramePath: kf.FramePath}
	}
	scenes := inferencecache.Reconcile(refs, cached)

	scored, err := signals.Extract(state.Keyframes, deps.FrameLoader, events, scenes, state.DurationS, deps.faceDetector())
	if err != nil {
		reportFailed(r, stage, err)
		return err
	}

	profile, _ := vibe.Get(params.VibeKey)
	candidates := buildClipCandidates(scored, events, state.DurationS, state.Anchors, profile, deps.Embedder)

	state.Candidates = candidates
	if err := state.save(params.WorkDir); err != nil {
		return err
	}
	cp.MarkComplete(stage)
	if err := cp.SaveAtomic(); err != nil {
		return err
	}
	reportCompleted(r, stage, fmt.Sprintf("%d clip candidates", len(candidates)))
	return nil
}

func runNarrativeStage(ctx context.Context, params Params, deps Dependencies, cp *checkpoint.Checkpoint, state *runState, src fingerprint.Source, profile vibe.Profile, r progress.Reporter) (*manifest.TrailerManifest, error) {
	stage := checkpoint.StageNarrative

	if cp.IsComplete(stage) {
		m, err := manifest.Load(params.ManifestPath)
		if err == nil && m.SchemaVersion == manifest.SchemaV2 {
			reportStage(r, stage, true, fmt.Sprintf("%d clips", len(m.Clips)))
			return m, nil
		}
		// Manifest missing or schema mismatch: treat as never having run
		// narrative generation (spec.md §4.M cascade rule) and fall through.
		cp.InvalidateCascade(stage)
	}
	reportStage(r, stage, false, "")

	musicPath, err := music.Resolve(ctx, deps.MusicAPI, profile, params.MusicCacheDir)
	if err != nil {
		reportFailed(r, stage, err)
		return nil, err
	}

	var grid *manifest.BpmGrid
	var resolvedBed *manifest.MusicBed
	if musicPath != "" {
		g, probe, gerr := resolveMusicGrid(ctx, deps.Transcoder, musicPath, profile)
		if gerr != nil {
			cinelog.WithField("music_path", musicPath).Warn("bpm detection failed, continuing with vibe-default grid: ", gerr)
			fallback := music.DetectBPMGrid(nil, mixplan.SampleRateHz, 0, profile)
			grid = &fallback
		} else {
			grid = &g
			_ = probe
		}
		resolvedBed = &manifest.MusicBed{
			TrackPath:   musicPath,
			VibeKey:     profile.Key,
			DuckFloorDB: profile.DuckFloorDB,
			FadeInS:     2.0,
			FadeOutS:    3.0,
			Resolved: &manifest.ResolvedMusicChoice{
				VibeKey: profile.Key,
				TagHash: tagHash(profile.MusicTagSet),
				TrackID: strings.TrimSuffix(filepath.Base(musicPath), filepath.Ext(musicPath)),
			},
		}
	}

	assembled := assembler.Assemble(state.Candidates, profile, grid)
	state.Candidates = assembled.Clips // converged/trimmed sequence replaces the raw candidate pool

	m := manifest.NewV2(src.Path, src.Mtime, src.Size, profile.Key)
	m.Clips = assembled.Clips
	anchors := state.Anchors
	m.StructuralAnchors = &anchors
	m.MusicBed = resolvedBed
	m.BpmGrid = grid

	if err := manifest.SaveAtomic(params.ManifestPath, m); err != nil {
		reportFailed(r, stage, err)
		return nil, err
	}
	if err := state.save(params.WorkDir); err != nil {
		return nil, err
	}
	cp.MarkComplete(stage)
	if err := cp.SaveAtomic(); err != nil {
		return nil, err
	}
	reportCompleted(r, stage, fmt.Sprintf("%d clips assembled, silence_boundary=%d", len(assembled.Clips), assembled.SilenceBoundaryIndex))
	return m, nil
}

// tagHash fingerprints a vibe's music tag set so a resolved track can be
// checked for staleness if the tag set itself ever changes between
// releases (spec.md §9 music-selection-determinism recommendation).
func tagHash(tags []string) string {
	h := sha1.New()
	h.Write([]byte(strings.Join(tags, "|")))
	return hex.EncodeToString(h.Sum(nil))
}

func resolveMusicGrid(ctx context.Context, t external.Transcoder, musicPath string, profile vibe.Profile) (manifest.BpmGrid, external.ProbeResult, error) {
	probe, err := t.Probe(ctx, musicPath)
	if err != nil {
		return manifest.BpmGrid{}, external.ProbeResult{}, err
	}
	samples, err := monoSamplesFromWAV(musicPath)
	if err != nil {
		return manifest.BpmGrid{}, external.ProbeResult{}, err
	}
	return music.DetectBPMGrid(samples, mixplan.SampleRateHz, probe.DurationS, profile), probe, nil
}

func runAssemblyStage(ctx context.Context, params Params, deps Dependencies, cp *checkpoint.Checkpoint, state *runState, m *manifest.TrailerManifest, events []dialogue.Event, profile vibe.Profile, r progress.Reporter) (*manifest.TrailerManifest, error) {
	stage := checkpoint.StageAssembly
	if cp.IsComplete(stage) {
		reportStage(r, stage, true, fmt.Sprintf("%d sfx, %d vo", len(m.SfxEvents), len(m.VoClips)))
		return m, nil
	}
	reportStage(r, stage, false, "")

	protagonist := vosfx.IdentifyProtagonist(events, state.ProtagonistName)
	lineCandidates := buildLineCandidates(events, m.Clips, state.DurationS)
	voClips := vosfx.SelectVOLines(lineCandidates, m.Clips)

	for i := range voClips {
		audioPath := filepath.Join(params.WorkDir, fmt.Sprintf("vo_%02d.wav", i))
		if err := deps.Transcoder.ExtractAudioSegment(ctx, params.SourcePath, voClips[i].SourceStartS, voClips[i].SourceEndS, audioPath); err != nil {
			werr := cinerr.Media(params.SourcePath, "voice-over audio extraction failed", err)
			reportFailed(r, stage, werr)
			return nil, werr
		}
		voClips[i].AudioPath = audioPath
	}

	silenceIdx := -1
	for i := 1; i < len(m.Clips); i++ {
		if m.Clips[i-1].NarrativeZone == manifest.ZoneEscalation && m.Clips[i].NarrativeZone == manifest.ZoneClimax {
			silenceIdx = i
			break
		}
	}
	sfxEvents, err := vosfx.PlanSfxEvents(m.Clips, silenceIdx, sfxCacheDir(params.WorkDir), profile.Key)
	if err != nil {
		werr := cinerr.Assembly("sfx planning failed", err)
		reportFailed(r, stage, werr)
		return nil, werr
	}

	m.SfxEvents = sfxEvents
	m.VoClips = voClips
	_ = protagonist

	if err := manifest.SaveAtomic(params.ManifestPath, m); err != nil {
		reportFailed(r, stage, err)
		return nil, err
	}
	cp.MarkComplete(stage)
	if err := cp.SaveAtomic(); err != nil {
		return nil, err
	}
	reportCompleted(r, stage, fmt.Sprintf("%d sfx events, %d vo clips", len(sfxEvents), len(voClips)))
	return m, nil
}

func runConformStage(ctx context.Context, params Params, deps Dependencies, cp *checkpoint.Checkpoint, state *runState, m *manifest.TrailerManifest, profile vibe.Profile, r progress.Reporter) error {
	stage := checkpoint.StageConform
	if cp.IsComplete(stage) {
		reportStage(r, stage, true, params.OutputPath)
		return nil
	}
	reportStage(r, stage, false, "")

	filmAudioPath, totalDurationS, err := buildFilmAudio(ctx, deps.Transcoder, params, m.Clips)
	if err != nil {
		reportFailed(r, stage, err)
		return err
	}

	sfxPath := ""
	if len(m.SfxEvents) > 0 {
		sfxPath = filepath.Join(params.WorkDir, "sfx_track.wav")
		if err := buildTimedTrack(sfxSnippets(m.SfxEvents), totalDurationS, sfxPath); err != nil {
			werr := cinerr.MixPlan("sfx track assembly failed", err)
			reportFailed(r, stage, werr)
			return werr
		}
	}

	voPath := ""
	if len(m.VoClips) > 0 {
		voPath = filepath.Join(params.WorkDir, "vo_track.wav")
		if err := buildTimedTrack(voSnippets(m.VoClips, outputOffsets(m.Clips)), totalDurationS, voPath); err != nil {
			werr := cinerr.MixPlan("vo track assembly failed", err)
			reportFailed(r, stage, werr)
			return werr
		}
	}

	musicPath := ""
	if m.MusicBed != nil {
		musicPath = m.MusicBed.TrackPath
	}

	plan := mixplan.Build(mixplan.Params{
		FilmAudioPath: filmAudioPath,
		FilmLUFS:      profile.AudioLUFSTarget,
		MusicPath:     musicPath,
		SfxPath:       sfxPath,
		VoPath:        voPath,
		DuckFloorDB:   profile.DuckFloorDB,
	})

	if err := deps.FiltergraphRunner.Run(ctx, plan, plan.InputPaths(), params.OutputPath); err != nil {
		werr := cinerr.MixPlan("filtergraph mix render failed", err)
		reportFailed(r, stage, werr)
		return werr
	}

	cp.MarkComplete(stage)
	if err := cp.SaveAtomic(); err != nil {
		return err
	}
	reportCompleted(r, stage, params.OutputPath)
	return nil
}

// buildFilmAudio extracts each clip's source audio in assembled order and
// concatenates them into one stem (spec.md §4.L: "film_audio extracted
// from concatenated clip video").
func buildFilmAudio(ctx context.Context, t external.Transcoder, params Params, clips []manifest.ClipEntry) (path string, totalDurationS float64, err error) {
	dir := filepath.Join(params.WorkDir, "conform_clips")
	segmentPaths := make([]string, len(clips))
	for i, c := range clips {
		segPath := filepath.Join(dir, fmt.Sprintf("clip_%03d.wav", i))
		if err := t.ExtractAudioSegment(ctx, params.SourcePath, c.SourceStartS, c.SourceEndS, segPath); err != nil {
			return "", 0, cinerr.Media(params.SourcePath, "film audio clip extraction failed", err)
		}
		segmentPaths[i] = segPath
		totalDurationS += c.DurationS()
	}

	out := filepath.Join(params.WorkDir, "film_audio.wav")
	if err := concatWAVFiles(segmentPaths, out); err != nil {
		return "", 0, cinerr.MixPlan("film audio concatenation failed", err)
	}
	return out, totalDurationS, nil
}
