package beats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinecut/internal/dialogue"
	"cinecut/internal/manifest"
)

func TestClassifyBeatBreath(t *testing.T) {
	c := Candidate{MoneyShotScore: 0.2, EmotionPresent: false}
	assert.Equal(t, manifest.BeatBreath, ClassifyBeat(c))
}

func TestClassifyBeatClimax(t *testing.T) {
	c := Candidate{MoneyShotScore: 0.75, ChronPosition: 0.80}
	assert.Equal(t, manifest.BeatClimax, ClassifyBeat(c))
}

func TestClassifyBeatMoneyShot(t *testing.T) {
	c := Candidate{MoneyShotScore: 0.9, ChronPosition: 0.5}
	assert.Equal(t, manifest.BeatMoneyShot, ClassifyBeat(c))
}

func TestClassifyBeatCharacterIntroduction(t *testing.T) {
	c := Candidate{MoneyShotScore: 0.5, ChronPosition: 0.1, FacePresent: true}
	assert.Equal(t, manifest.BeatCharacterIntro, ClassifyBeat(c))
}

func TestClassifyBeatIncitingIncident(t *testing.T) {
	c := Candidate{MoneyShotScore: 0.5, ChronPosition: 0.2, EmotionPresent: true, SubtitleEmotion: dialogue.EmotionIntense}
	assert.Equal(t, manifest.BeatIncitingIncident, ClassifyBeat(c))
}

func TestClassifyBeatRelationship(t *testing.T) {
	c := Candidate{MoneyShotScore: 0.5, ChronPosition: 0.5, EmotionPresent: true, SubtitleEmotion: dialogue.EmotionRomantic}
	assert.Equal(t, manifest.BeatRelationship, ClassifyBeat(c))
}

func TestClassifyBeatEscalationCatchAll(t *testing.T) {
	c := Candidate{MoneyShotScore: 0.5, ChronPosition: 0.5, EmotionPresent: true, SubtitleEmotion: dialogue.EmotionComedic}
	assert.Equal(t, manifest.BeatEscalation, ClassifyBeat(c))
}

func TestClassifyBeatBreathAtLateChronPosition(t *testing.T) {
	// money_shot_score <= 0.30 with no subtitle emotion is breath even at a
	// late chron_position; the low score keeps the climax rule from matching.
	c := Candidate{MoneyShotScore: 0.1, ChronPosition: 0.9, EmotionPresent: false}
	assert.Equal(t, manifest.BeatBreath, ClassifyBeat(c))
}

func TestAssignActBreathOverridesPosition(t *testing.T) {
	assert.Equal(t, manifest.ActBreath, AssignAct(manifest.BeatBreath, 0.95))
}

func TestAssignActPositional(t *testing.T) {
	assert.Equal(t, manifest.Act1, AssignAct(manifest.BeatEscalation, 0.1))
	assert.Equal(t, manifest.Act2, AssignAct(manifest.BeatEscalation, 0.5))
	assert.Equal(t, manifest.Act3, AssignAct(manifest.BeatEscalation, 0.9))
}

func TestAssignZoneBeforeBeginIsBeginning(t *testing.T) {
	anchors := manifest.StructuralAnchors{BeginT: 20, EscalationT: 50, ClimaxT: 90}
	c := Candidate{ChronPosition: 0.05}
	zone := AssignZone(c, anchors, 100, nil, nil)
	assert.Equal(t, manifest.ZoneBeginning, zone)
}

func TestAssignZoneAfterClimaxIsClimax(t *testing.T) {
	anchors := manifest.StructuralAnchors{BeginT: 20, EscalationT: 50, ClimaxT: 90}
	c := Candidate{ChronPosition: 0.95}
	zone := AssignZone(c, anchors, 100, nil, nil)
	assert.Equal(t, manifest.ZoneClimax, zone)
}

func TestAssignZoneAnchorRatioFallbackWhenEmbedderNil(t *testing.T) {
	anchors := manifest.StructuralAnchors{BeginT: 20, EscalationT: 50, ClimaxT: 90}
	c := Candidate{ChronPosition: 0.6} // between begin and climax ratios
	zone := AssignZone(c, anchors, 100, nil, nil)
	assert.Equal(t, manifest.ZoneEscalation, zone)
}

type fakeEmbedder struct {
	vectors map[string][]float64
}

func (f fakeEmbedder) Embed(text string) ([]float64, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float64{0, 0, 1}, nil
}

func TestAssignZonePrefersEscalationUnlessClimaxExceedsThreshold(t *testing.T) {
	anchors := manifest.StructuralAnchors{BeginT: 10, EscalationT: 40, ClimaxT: 80}
	sentences := map[string]string{
		"BEGINNING":  "calm",
		"ESCALATION": "rising",
		"CLIMAX":     "explosive",
	}
	embedder := fakeEmbedder{vectors: map[string][]float64{
		"calm":      {1, 0, 0},
		"rising":    {0, 1, 0},
		"explosive": {0, 0, 1},
		"scene":     {0, 0.9, 0.1}, // close to rising, slightly toward explosive
	}}
	c := Candidate{ChronPosition: 0.55, VisualContent: "scene"} // within [0.4,0.8] escalation/climax window
	zone := AssignZone(c, anchors, 100, sentences, embedder)
	assert.Equal(t, manifest.ZoneEscalation, zone)
}

func TestCosineSimilarityIdenticalVectorsIsOne(t *testing.T) {
	require.InDelta(t, 1.0, cosineSimilarity([]float64{1, 2, 3}, []float64{1, 2, 3}), 1e-9)
}

func TestCosineSimilarityMismatchedLengthIsZero(t *testing.T) {
	assert.Equal(t, 0.0, cosineSimilarity([]float64{1, 2}, []float64{1, 2, 3}))
}
