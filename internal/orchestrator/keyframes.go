// Keyframe selection (spec.md §3 KeyframeRecord, data-flow line "proxy +
// keyframes (external)"): timestamps are picked from three sources
// (subtitle-midpoint, scene-change, interval-fill) and deduplicated, then
// handed to the Transcoder to extract actual frame files. No §4 component
// owns this by name — it lives beside the orchestrator the same way the
// teacher's main.go inlines small "glue" steps (buildCandidatePaths,
// resolveOutputPath) that don't warrant their own file.
package orchestrator

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"sort"

	"cinecut/internal/cinerr"
	"cinecut/internal/dialogue"
	"cinecut/internal/external"
	"cinecut/internal/signals"
)

// fileExists reports whether path names a regular, readable file — used to
// make keyframe/proxy extraction idempotent across a crashed-and-resumed run.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

const (
	intervalFillStepS      = 4.0
	sceneChangeSampleStepS = 2.0
	sceneChangeLumaDelta   = 18.0 // mean-luma jump (0-255 scale) flagged as a cut
	dedupeWindowS          = 0.35
)

// candidateTimestamp is a PTS plus the tag it would carry if selected.
type candidateTimestamp struct {
	ptsS float64
	tag  signals.SourceTag
}

// selectTimestamps merges subtitle-midpoint and interval-fill candidates,
// deduplicating anything within dedupeWindowS of an already-kept timestamp
// (subtitle-midpoint wins ties since it carries real narrative signal).
func selectTimestamps(events []dialogue.Event, durationS float64) []candidateTimestamp {
	var out []candidateTimestamp
	kept := func(t float64) bool {
		for _, c := range out {
			if math.Abs(c.ptsS-t) < dedupeWindowS {
				return true
			}
		}
		return false
	}

	for _, e := range events {
		t := e.MidpointS()
		if t < 0 || t > durationS || kept(t) {
			continue
		}
		out = append(out, candidateTimestamp{ptsS: t, tag: signals.SourceSubtitleMidpoint})
	}
	for t := 0.0; t < durationS; t += intervalFillStepS {
		if kept(t) {
			continue
		}
		out = append(out, candidateTimestamp{ptsS: t, tag: signals.SourceIntervalFill})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ptsS < out[j].ptsS })
	return out
}

// detectSceneChanges samples the proxy on a coarse fixed grid independent
// of the dialogue/interval candidates, flagging any timestamp whose mean
// luma jumps by more than sceneChangeLumaDelta from the previous sample.
func detectSceneChanges(ctx context.Context, transcoder external.Transcoder, loader signals.FrameLoader, proxyPath, tmpDir string, durationS float64) ([]candidateTimestamp, error) {
	var out []candidateTimestamp
	prevLuma := -1.0
	idx := 0
	for t := 0.0; t < durationS; t += sceneChangeSampleStepS {
		outPath := filepath.Join(tmpDir, fmt.Sprintf("scenescan_%04d.png", idx))
		idx++
		if err := transcoder.ExtractFrame(ctx, proxyPath, t, outPath); err != nil {
			return nil, cinerr.Media(proxyPath, "scene-change scan frame extraction failed", err)
		}
		img, err := loader(outPath)
		if err != nil {
			return nil, cinerr.Media(outPath, "scene-change scan frame decode failed", err)
		}
		luma := meanLuma(img)
		if prevLuma >= 0 && math.Abs(luma-prevLuma) > sceneChangeLumaDelta {
			out = append(out, candidateTimestamp{ptsS: t, tag: signals.SourceSceneChange})
		}
		prevLuma = luma
	}
	return out, nil
}

// meanLuma is a coarse per-image mean brightness, sampled on a grid so cost
// stays independent of resolution (same grid-sampling idiom as
// internal/signals' per-pixel computations, at a coarser stride since this
// only needs a cut/no-cut signal, not a precise per-pixel metric).
func meanLuma(img image.Image) float64 {
	bounds := img.Bounds()
	const gridStep = 12
	var sum float64
	var count int
	for y := bounds.Min.Y; y < bounds.Max.Y; y += gridStep {
		for x := bounds.Min.X; x < bounds.Max.X; x += gridStep {
			r, g, b, _ := img.At(x, y).RGBA()
			sum += 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// SelectKeyframes merges subtitle-midpoint, interval-fill, and scene-change
// timestamps into the final deduplicated, chronologically sorted keyframe
// list, then extracts each to disk (skipping any frame file that already
// exists, so a crashed rerun doesn't re-extract what it already has).
func SelectKeyframes(ctx context.Context, transcoder external.Transcoder, loader signals.FrameLoader, events []dialogue.Event, proxyPath, keyframesDir string, durationS float64) ([]signals.KeyframeRecord, error) {
	merged := selectTimestamps(events, durationS)

	sceneChanges, err := detectSceneChanges(ctx, transcoder, loader, proxyPath, keyframesDir, durationS)
	if err != nil {
		return nil, err
	}
	for _, sc := range sceneChanges {
		dup := false
		for _, c := range merged {
			if math.Abs(c.ptsS-sc.ptsS) < dedupeWindowS {
				dup = true
				break
			}
		}
		if !dup {
			merged = append(merged, sc)
		}
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ptsS < merged[j].ptsS })

	records := make([]signals.KeyframeRecord, len(merged))
	for i, c := range merged {
		framePath := filepath.Join(keyframesDir, fmt.Sprintf("kf_%05d.png", i))
		if !fileExists(framePath) {
			if err := transcoder.ExtractFrame(ctx, proxyPath, c.ptsS, framePath); err != nil {
				return nil, cinerr.Media(proxyPath, fmt.Sprintf("keyframe extraction failed at %.2fs", c.ptsS), err)
			}
		}
		records[i] = signals.KeyframeRecord{PtsS: c.ptsS, FramePath: framePath, Source: c.tag}
	}
	return records, nil
}
