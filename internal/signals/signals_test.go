package signals

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinecut/internal/dialogue"
	"cinecut/internal/inferencecache"
)

func solidImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func checkerImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

func TestComputeMotionMagnitudeZeroForIdenticalFrames(t *testing.T) {
	img := checkerImage(32, 32)
	assert.Equal(t, 0.0, computeMotionMagnitude(img, img))
}

func TestComputeMotionMagnitudeZeroWhenNoPreviousFrame(t *testing.T) {
	img := checkerImage(32, 32)
	assert.Equal(t, 0.0, computeMotionMagnitude(img, nil))
}

func TestComputeMotionMagnitudePositiveForDifferentFrames(t *testing.T) {
	black := solidImage(32, 32, color.Black)
	white := solidImage(32, 32, color.White)
	assert.Greater(t, computeMotionMagnitude(white, black), 0.0)
}

func TestComputeLaplacianVarianceHigherForCheckerThanSolid(t *testing.T) {
	solid := solidImage(32, 32, color.Gray{Y: 128})
	checker := checkerImage(32, 32)
	assert.Greater(t, computeLaplacianVariance(checker), computeLaplacianVariance(solid))
}

func TestComputeMeanSaturationZeroForGrayscale(t *testing.T) {
	gray := solidImage(16, 16, color.Gray{Y: 128})
	assert.Equal(t, 0.0, computeMeanSaturation(gray))
}

func TestModelConfidenceNilScene(t *testing.T) {
	assert.Equal(t, 0.0, modelConfidence(nil))
}

func TestModelConfidenceFullScene(t *testing.T) {
	scene := &inferencecache.SceneDescription{
		VisualContent: "a city street at night",
		Mood:          "tense",
		Action:        "a car speeds past",
		Setting:       "downtown",
	}
	conf := modelConfidence(scene)
	assert.Greater(t, conf, 0.5)
	assert.LessOrEqual(t, conf, 1.0)
}

func TestNormalizeDegeneratePoolFallsBackToHalf(t *testing.T) {
	raws := []RawSignals{
		{MotionMagnitude: 5, VisualContrast: 5, Saturation: 5, ChronPosition: 5, SubtitleEmotionalWeight: 5, ModelConfidence: 5, FacePresent: true},
		{MotionMagnitude: 5, VisualContrast: 5, Saturation: 5, ChronPosition: 5, SubtitleEmotionalWeight: 5, ModelConfidence: 5, FacePresent: true},
	}
	normalized := Normalize(raws)
	for _, n := range normalized {
		assert.Equal(t, 0.5, n.MotionMagnitude)
		assert.Equal(t, 0.5, n.VisualContrast)
		assert.Equal(t, 0.5, n.Saturation)
		assert.Equal(t, 0.5, n.ChronPosition)
		assert.Equal(t, 0.5, n.SubtitleEmotionalWeight)
		assert.Equal(t, 0.5, n.ModelConfidence)
	}
}

func TestNormalizeMinMaxRange(t *testing.T) {
	raws := []RawSignals{
		{MotionMagnitude: 0},
		{MotionMagnitude: 5},
		{MotionMagnitude: 10},
	}
	normalized := Normalize(raws)
	assert.Equal(t, 0.0, normalized[0].MotionMagnitude)
	assert.Equal(t, 0.5, normalized[1].MotionMagnitude)
	assert.Equal(t, 1.0, normalized[2].MotionMagnitude)
}

func TestMoneyShotScoreWeightsSumToOne(t *testing.T) {
	total := weightMotion + weightContrast + weightUniqueness + weightSubtitle +
		weightFace + weightModelConf + weightSaturation + weightPosition
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestMoneyShotScoreAllOnesEqualsOne(t *testing.T) {
	n := NormalizedSignals{
		MotionMagnitude: 1, VisualContrast: 1, Saturation: 1, SceneUniqueness: 1,
		FacePresent: 1, SubtitleEmotionalWeight: 1, ModelConfidence: 1, ChronPosition: 1,
	}
	assert.InDelta(t, 1.0, MoneyShotScore(n), 1e-9)
}

func TestHistogramDistanceZeroForIdenticalHistograms(t *testing.T) {
	img := checkerImage(32, 32)
	h := computeHistogram(img)
	assert.InDelta(t, 0.0, histogramDistance(h, h), 1e-9)
}

func TestExtractEndToEndWithFakeLoader(t *testing.T) {
	images := map[string]image.Image{
		"f1.png": solidImage(16, 16, color.Black),
		"f2.png": checkerImage(16, 16),
		"f3.png": solidImage(16, 16, color.White),
	}
	loader := func(path string) (image.Image, error) { return images[path], nil }

	keyframes := []KeyframeRecord{
		{PtsS: 0, FramePath: "f1.png", Source: SourceSubtitleMidpoint},
		{PtsS: 10, FramePath: "f2.png", Source: SourceSceneChange},
		{PtsS: 20, FramePath: "f3.png", Source: SourceIntervalFill},
	}
	events := []dialogue.Event{dialogue.NewEvent(9000, 9800, "watch out! run!", "Ava")}
	scenes := map[string]*inferencecache.SceneDescription{
		"f2.png": {VisualContent: "chase scene", Mood: "tense", Action: "running", Setting: "alley"},
	}

	scored, err := Extract(keyframes, loader, events, scenes, 30.0, DefaultFaceDetector())
	require.NoError(t, err)
	require.Len(t, scored, 3)
	for _, s := range scored {
		assert.GreaterOrEqual(t, s.MoneyShotScore, 0.0)
		assert.LessOrEqual(t, s.MoneyShotScore, 1.0)
	}
}

func TestDefaultFaceDetectorNoFaceOnBlankImage(t *testing.T) {
	blank := solidImage(16, 16, color.Black)
	assert.False(t, DefaultFaceDetector().HasFace(blank))
}
