// Package signals implements the Signal Extractor & Scorer (spec.md §4.G):
// per-frame numeric signal extraction, pool-level normalization, and the
// weighted money-shot score. Grounded on the teacher's dsp.go
// (computeOnsetEnvelope, computeLoudnessDB) for the shape of "numeric
// signal extraction over a fixed-size buffer with a pool-level second
// pass", and its degenerate-input guards (avgEnergy's zero-length
// fallback to 0.5) for the min-max normalization rule.
package signals

import (
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"cinecut/internal/dialogue"
	"cinecut/internal/inferencecache"
)

// SourceTag identifies how a keyframe was chosen.
type SourceTag string

const (
	SourceSubtitleMidpoint SourceTag = "subtitle-midpoint"
	SourceSceneChange      SourceTag = "scene-change"
	SourceIntervalFill     SourceTag = "interval-fill"
)

// KeyframeRecord is an extracted frame at a PTS, immutable after
// extraction (spec.md §3).
type KeyframeRecord struct {
	PtsS      float64
	FramePath string
	Source    SourceTag
}

// histogramBins is the bin count for the per-frame luma histogram used in
// pool-level scene_uniqueness.
const histogramBins = 16

// RawSignals are per-frame numeric signals before pool normalization. The
// histogram travels alongside for the O(n²) uniqueness pass and is
// explicitly not part of the struct's public numeric surface (spec.md §3:
// "a non-equality, non-display auxiliary histogram").
type RawSignals struct {
	MotionMagnitude         float64
	VisualContrast          float64
	Saturation              float64
	FacePresent             bool
	SubtitleEmotion         dialogue.Emotion // meaningless when SubtitleEmotionPresent is false
	SubtitleEmotionPresent  bool
	SubtitleEmotionalWeight float64
	ModelConfidence         float64
	ChronPosition           float64

	histogram [histogramBins]float64
}

// NormalizedSignals is RawSignals after per-pool min-max normalization,
// values in [0,1], plus the derived SceneUniqueness (which only exists at
// the pool level).
type NormalizedSignals struct {
	MotionMagnitude         float64
	VisualContrast          float64
	Saturation              float64
	SceneUniqueness         float64
	FacePresent             float64
	SubtitleEmotionalWeight float64
	ModelConfidence         float64
	ChronPosition           float64
}

// FrameLoader decodes a keyframe image from disk. Injected so the
// extraction pipeline is testable without real files on disk, mirroring
// the gpulock.VRAMQuery injection pattern.
type FrameLoader func(path string) (image.Image, error)

// ScoredFrame bundles a keyframe with its normalized signals and final
// money-shot score (spec.md §4.G output: "list of (KeyframeRecord,
// SceneDescription?, NormalizedSignals, money_shot_score)").
type ScoredFrame struct {
	Keyframe       KeyframeRecord
	Scene          *inferencecache.SceneDescription
	Raw            RawSignals
	Normalized     NormalizedSignals
	MoneyShotScore float64
}

const subtitleEmotionWindowS = 5.0

// ExtractRaw computes RawSignals for one keyframe. prev is the previously
// decoded frame image, or nil for the first frame in the pool (motion
// magnitude is then 0).
func ExtractRaw(img, prev image.Image, keyframe KeyframeRecord, events []dialogue.Event, scene *inferencecache.SceneDescription, durationS float64, detector FaceDetector) RawSignals {
	ev, found := dialogue.NearestEvent(events, keyframe.PtsS, subtitleEmotionWindowS)
	emotion := dialogue.EmotionNeutral
	if found {
		emotion = ev.Emotion
	}

	chron := 0.0
	if durationS > 0 {
		chron = keyframe.PtsS / durationS
	}

	raw := RawSignals{
		MotionMagnitude:         computeMotionMagnitude(img, prev),
		VisualContrast:          computeLaplacianVariance(img),
		Saturation:              computeMeanSaturation(img),
		FacePresent:             detector.HasFace(img),
		SubtitleEmotion:         emotion,
		SubtitleEmotionPresent:  found,
		SubtitleEmotionalWeight: dialogue.EmotionalWeight(emotion, found),
		ModelConfidence:         modelConfidence(scene),
		ChronPosition:           chron,
		histogram:               computeHistogram(img),
	}
	return raw
}

func modelConfidence(scene *inferencecache.SceneDescription) float64 {
	if scene == nil {
		return 0.0
	}
	fields := []string{scene.VisualContent, scene.Mood, scene.Action, scene.Setting}
	nonEmpty := 0
	totalLen := 0
	for _, f := range fields {
		if f != "" {
			nonEmpty++
		}
		totalLen += len(f)
	}
	completeness := float64(nonEmpty) / float64(len(fields))
	const richnessCeiling = 400.0
	richness := float64(totalLen) / richnessCeiling
	if richness > 1.0 {
		richness = 1.0
	}
	return (completeness + richness) / 2.0
}

// computeMotionMagnitude is the mean absolute luma difference against the
// previous frame, sampled on a coarse grid to keep the per-frame cost O(1)
// relative to image resolution.
func computeMotionMagnitude(cur, prev image.Image) float64 {
	if prev == nil {
		return 0.0
	}
	bounds := cur.Bounds()
	const gridStep = 8
	var sum float64
	var count int
	for y := bounds.Min.Y; y < bounds.Max.Y; y += gridStep {
		for x := bounds.Min.X; x < bounds.Max.X; x += gridStep {
			curL := luma(cur.At(x, y))
			prevL := luma(prev.At(x, y))
			diff := curL - prevL
			if diff < 0 {
				diff = -diff
			}
			sum += diff
			count++
		}
	}
	if count == 0 {
		return 0.0
	}
	return sum / float64(count)
}

// computeLaplacianVariance approximates visual_contrast as the variance of
// a 3x3 Laplacian convolution over the luma plane.
func computeLaplacianVariance(img image.Image) float64 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < 3 || h < 3 {
		return 0.0
	}
	const step = 4
	var values []float64
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y += step {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x += step {
			center := luma(img.At(x, y))
			lap := -4*center +
				luma(img.At(x-1, y)) + luma(img.At(x+1, y)) +
				luma(img.At(x, y-1)) + luma(img.At(x, y+1))
			values = append(values, lap)
		}
	}
	return variance(values)
}

func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return sq / float64(len(values))
}

// computeMeanSaturation is the mean HSV saturation over the image.
func computeMeanSaturation(img image.Image) float64 {
	bounds := img.Bounds()
	const gridStep = 8
	var sum float64
	var count int
	for y := bounds.Min.Y; y < bounds.Max.Y; y += gridStep {
		for x := bounds.Min.X; x < bounds.Max.X; x += gridStep {
			sum += saturationOf(img.At(x, y))
			count++
		}
	}
	if count == 0 {
		return 0.0
	}
	return sum / float64(count)
}

func luma(c color.Color) float64 {
	r, g, b, _ := c.RGBA()
	return 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
}

func saturationOf(c color.Color) float64 {
	r, g, b, _ := c.RGBA()
	rf, gf, bf := float64(r>>8)/255, float64(g>>8)/255, float64(b>>8)/255
	max := math.Max(rf, math.Max(gf, bf))
	min := math.Min(rf, math.Min(gf, bf))
	if max == 0 {
		return 0.0
	}
	return (max - min) / max
}

// computeHistogram buckets luma into histogramBins bins, normalized so the
// bins sum to 1 (a probability distribution suitable for correlation
// comparison).
func computeHistogram(img image.Image) [histogramBins]float64 {
	var hist [histogramBins]float64
	bounds := img.Bounds()
	const gridStep = 4
	var total float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y += gridStep {
		for x := bounds.Min.X; x < bounds.Max.X; x += gridStep {
			l := luma(img.At(x, y))
			bin := int(l / 256.0 * histogramBins)
			if bin >= histogramBins {
				bin = histogramBins - 1
			}
			if bin < 0 {
				bin = 0
			}
			hist[bin]++
			total++
		}
	}
	if total == 0 {
		return hist
	}
	for i := range hist {
		hist[i] /= total
	}
	return hist
}
