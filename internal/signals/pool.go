package signals

import (
	"image"
	"math"

	"cinecut/internal/cinerr"
	"cinecut/internal/dialogue"
	"cinecut/internal/inferencecache"
)

// moneyShotWeights are the fixed weights from spec.md §4.G (sum to 1.0).
const (
	weightMotion     = 0.20
	weightContrast   = 0.12
	weightUniqueness = 0.13
	weightSubtitle   = 0.15
	weightFace       = 0.08
	weightModelConf  = 0.12
	weightSaturation = 0.10
	weightPosition   = 0.10
)

// Extract walks keyframes in order, decoding each with loadFrame, computing
// RawSignals (motion against the previously decoded frame), then
// normalizes the whole pool and produces the money-shot score (spec.md
// §4.G). scenes is keyed by FramePath; a missing entry means the vision
// model produced no description for that frame.
func Extract(keyframes []KeyframeRecord, loadFrame FrameLoader, events []dialogue.Event, scenes map[string]*inferencecache.SceneDescription, durationS float64, detector FaceDetector) ([]ScoredFrame, error) {
	raws := make([]RawSignals, len(keyframes))

	var prev image.Image
	for i, kf := range keyframes {
		img, err := loadFrame(kf.FramePath)
		if err != nil {
			return nil, cinerr.Media(kf.FramePath, "failed to decode keyframe for signal extraction", err)
		}
		scene := scenes[kf.FramePath]
		raws[i] = ExtractRaw(img, prev, kf, events, scene, durationS, detector)
		prev = img
	}

	normalized := Normalize(raws)

	scored := make([]ScoredFrame, len(keyframes))
	for i, kf := range keyframes {
		scored[i] = ScoredFrame{
			Keyframe:       kf,
			Scene:          scenes[kf.FramePath],
			Raw:            raws[i],
			Normalized:     normalized[i],
			MoneyShotScore: MoneyShotScore(normalized[i]),
		}
	}
	return scored, nil
}

// normalizeValue performs per-signal min-max normalization with the
// degenerate-pool fallback of 0.5 when min==max (spec.md §4.G).
func normalizeValue(v, min, max float64) float64 {
	if min == max {
		return 0.5
	}
	return (v - min) / (max - min)
}

func minMax(values []float64) (min, max float64) {
	if len(values) == 0 {
		return 0, 0
	}
	min, max = values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

func boolToFloat(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}

// Normalize computes pool-level scene_uniqueness (O(n²) histogram
// correlation distance) and min-max normalizes every signal across the
// pool, applying the degenerate fallback per-signal.
func Normalize(raws []RawSignals) []NormalizedSignals {
	n := len(raws)
	out := make([]NormalizedSignals, n)
	if n == 0 {
		return out
	}

	uniqueness := computeUniqueness(raws)

	motion := extractField(raws, func(r RawSignals) float64 { return r.MotionMagnitude })
	contrast := extractField(raws, func(r RawSignals) float64 { return r.VisualContrast })
	saturation := extractField(raws, func(r RawSignals) float64 { return r.Saturation })
	subtitle := extractField(raws, func(r RawSignals) float64 { return r.SubtitleEmotionalWeight })
	modelConf := extractField(raws, func(r RawSignals) float64 { return r.ModelConfidence })
	position := extractField(raws, func(r RawSignals) float64 { return r.ChronPosition })
	face := extractField(raws, func(r RawSignals) float64 { return boolToFloat(r.FacePresent) })

	motionMin, motionMax := minMax(motion)
	contrastMin, contrastMax := minMax(contrast)
	saturationMin, saturationMax := minMax(saturation)
	uniquenessMin, uniquenessMax := minMax(uniqueness)
	subtitleMin, subtitleMax := minMax(subtitle)
	modelConfMin, modelConfMax := minMax(modelConf)
	positionMin, positionMax := minMax(position)
	faceMin, faceMax := minMax(face)

	for i := 0; i < n; i++ {
		out[i] = NormalizedSignals{
			MotionMagnitude:         normalizeValue(motion[i], motionMin, motionMax),
			VisualContrast:          normalizeValue(contrast[i], contrastMin, contrastMax),
			Saturation:              normalizeValue(saturation[i], saturationMin, saturationMax),
			SceneUniqueness:         normalizeValue(uniqueness[i], uniquenessMin, uniquenessMax),
			FacePresent:             normalizeValue(face[i], faceMin, faceMax),
			SubtitleEmotionalWeight: normalizeValue(subtitle[i], subtitleMin, subtitleMax),
			ModelConfidence:         normalizeValue(modelConf[i], modelConfMin, modelConfMax),
			ChronPosition:           normalizeValue(position[i], positionMin, positionMax),
		}
	}
	return out
}

func extractField(raws []RawSignals, f func(RawSignals) float64) []float64 {
	out := make([]float64, len(raws))
	for i, r := range raws {
		out[i] = f(r)
	}
	return out
}

// computeUniqueness computes, for each frame, the mean histogram
// correlation distance against every other frame in the pool (spec.md
// §4.G: "for each frame, mean histogram distance (correlation metric)
// against every other frame in the pool").
func computeUniqueness(raws []RawSignals) []float64 {
	n := len(raws)
	out := make([]float64, n)
	if n <= 1 {
		for i := range out {
			out[i] = 0.0
		}
		return out
	}
	for i := 0; i < n; i++ {
		var sum float64
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			sum += histogramDistance(raws[i].histogram, raws[j].histogram)
		}
		out[i] = sum / float64(n-1)
	}
	return out
}

// histogramDistance is 1 - Pearson correlation between two histograms (so
// identical histograms score 0, maximally different ones score up to 2).
func histogramDistance(a, b [histogramBins]float64) float64 {
	var meanA, meanB float64
	for i := 0; i < histogramBins; i++ {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= histogramBins
	meanB /= histogramBins

	var cov, varA, varB float64
	for i := 0; i < histogramBins; i++ {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0.0
	}
	corr := cov / (math.Sqrt(varA) * math.Sqrt(varB))
	return 1.0 - corr
}

// MoneyShotScore is the weighted dot product of NormalizedSignals against
// the fixed weight vector (spec.md §4.G).
func MoneyShotScore(n NormalizedSignals) float64 {
	return n.MotionMagnitude*weightMotion +
		n.VisualContrast*weightContrast +
		n.SceneUniqueness*weightUniqueness +
		n.SubtitleEmotionalWeight*weightSubtitle +
		n.FacePresent*weightFace +
		n.ModelConfidence*weightModelConf +
		n.Saturation*weightSaturation +
		n.ChronPosition*weightPosition
}

