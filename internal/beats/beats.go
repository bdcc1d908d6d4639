// Package beats implements the Beat Classifier & Act Assigner (spec.md
// §4.H): an ordered rule-priority beat label, a derived act, and an
// embedding-anchored narrative zone. Grounded on the teacher's
// selectTransitionType ordered-conditional structure (first matching
// branch wins) for beat classification, and on sortPlaylist's
// "precompute once, reuse in a hot loop" idiom for the zone-matching
// embedding step.
package beats

import (
	"math"

	"cinecut/internal/dialogue"
	"cinecut/internal/manifest"
	"cinecut/internal/signals"
)

// Candidate is everything the classifier needs for one clip candidate.
type Candidate struct {
	MoneyShotScore  float64
	ChronPosition   float64 // raw frame PTS / film duration, NOT pool-normalized
	FacePresent     bool
	SubtitleEmotion dialogue.Emotion
	EmotionPresent  bool
	VisualContent   string // SceneDescription.visual_content, for zone embedding
}

// FromScoredFrame builds a Candidate from a signals.ScoredFrame.
func FromScoredFrame(f signals.ScoredFrame) Candidate {
	c := Candidate{
		MoneyShotScore:  f.MoneyShotScore,
		ChronPosition:   f.Raw.ChronPosition,
		FacePresent:     f.Raw.FacePresent,
		SubtitleEmotion: f.Raw.SubtitleEmotion,
		EmotionPresent:  f.Raw.SubtitleEmotionPresent,
	}
	if f.Scene != nil {
		c.VisualContent = f.Scene.VisualContent
	}
	return c
}

func isNeutralOrNone(c Candidate) bool {
	return !c.EmotionPresent || c.SubtitleEmotion == dialogue.EmotionNeutral
}

func isIntenseOrNegative(c Candidate) bool {
	return c.EmotionPresent && (c.SubtitleEmotion == dialogue.EmotionIntense || c.SubtitleEmotion == dialogue.EmotionNegative)
}

func isRomantic(c Candidate) bool {
	return c.EmotionPresent && c.SubtitleEmotion == dialogue.EmotionRomantic
}

func isPositive(c Candidate) bool {
	return c.EmotionPresent && c.SubtitleEmotion == dialogue.EmotionPositive
}

type rule struct {
	beat      manifest.BeatType
	predicate func(Candidate) bool
}

// rules is evaluated in order; the first matching rule wins (spec.md §4.H,
// and spec.md §9's explicit design note to keep this as an ordered table
// rather than nested conditionals).
var rules = []rule{
	{manifest.BeatBreath, func(c Candidate) bool {
		return c.MoneyShotScore <= 0.30 && isNeutralOrNone(c)
	}},
	{manifest.BeatClimax, func(c Candidate) bool {
		return c.ChronPosition >= 0.75 && c.MoneyShotScore >= 0.70
	}},
	{manifest.BeatMoneyShot, func(c Candidate) bool {
		return c.MoneyShotScore >= 0.85
	}},
	{manifest.BeatCharacterIntro, func(c Candidate) bool {
		return c.FacePresent && c.ChronPosition <= 0.25
	}},
	{manifest.BeatIncitingIncident, func(c Candidate) bool {
		return isIntenseOrNegative(c) && c.ChronPosition >= 0.15 && c.ChronPosition <= 0.40
	}},
	{manifest.BeatRelationship, func(c Candidate) bool {
		return isRomantic(c) || (c.FacePresent && isPositive(c))
	}},
}

// ClassifyBeat returns the first matching beat type, or BeatEscalation as
// the catch-all (rule 7).
func ClassifyBeat(c Candidate) manifest.BeatType {
	for _, r := range rules {
		if r.predicate(c) {
			return r.beat
		}
	}
	return manifest.BeatEscalation
}

// AssignAct derives the act from the beat type and chron_position. A
// breath beat always returns "breath" regardless of position, overriding
// the positional rules (spec.md §4.H).
func AssignAct(beat manifest.BeatType, chronPosition float64) manifest.Act {
	if beat == manifest.BeatBreath {
		return manifest.ActBreath
	}
	switch {
	case chronPosition < 0.30:
		return manifest.Act1
	case chronPosition < 0.70:
		return manifest.Act2
	default:
		return manifest.Act3
	}
}

// Embedder produces a fixed-length sentence embedding for text. No
// sentence-embedding library appears anywhere in the example pack; this
// interface is the pluggable seam (mirroring internal/gpulock's VRAMQuery
// and internal/signals' FaceDetector injection patterns) a real CPU model
// binding plugs into. When nil, AssignZone downgrades to the timestamp-only
// anchor-ratio fallback specified for "embedding-model unavailability"
// (spec.md §4.H).
type Embedder interface {
	Embed(text string) ([]float64, error)
}

// AssignZone implements the zone-matching algorithm: cosine similarity of
// the candidate's visual_content against per-vibe anchor sentences, with
// StructuralAnchors-based overrides, falling back to anchor-ratio zoning
// when embedder is nil or embedding fails.
func AssignZone(c Candidate, anchors manifest.StructuralAnchors, durationS float64, anchorSentences map[string]string, embedder Embedder) manifest.NarrativeZone {
	if durationS <= 0 {
		return manifest.ZoneBeginning
	}
	beginRatio := anchors.BeginT / durationS
	climaxRatio := anchors.ClimaxT / durationS
	escalationRatio := anchors.EscalationT / durationS

	if c.ChronPosition < beginRatio {
		return manifest.ZoneBeginning
	}
	if c.ChronPosition > climaxRatio {
		return manifest.ZoneClimax
	}

	if embedder == nil {
		return anchorRatioZone(c.ChronPosition, beginRatio, escalationRatio, climaxRatio)
	}

	sceneVec, err := embedder.Embed(c.VisualContent)
	if err != nil || sceneVec == nil {
		return anchorRatioZone(c.ChronPosition, beginRatio, escalationRatio, climaxRatio)
	}

	sims := make(map[manifest.NarrativeZone]float64, 3)
	for _, zone := range []manifest.NarrativeZone{manifest.ZoneBeginning, manifest.ZoneEscalation, manifest.ZoneClimax} {
		anchorVec, aerr := embedder.Embed(anchorSentenceFor(zone, anchorSentences))
		if aerr != nil {
			return anchorRatioZone(c.ChronPosition, beginRatio, escalationRatio, climaxRatio)
		}
		sims[zone] = cosineSimilarity(sceneVec, anchorVec)
	}

	best := bestZone(sims)

	// Between escalation_t and climax_t, prefer ESCALATION unless CLIMAX
	// similarity exceeds it by more than 0.15 (spec.md §4.H).
	if c.ChronPosition >= escalationRatio && c.ChronPosition <= climaxRatio {
		if sims[manifest.ZoneClimax]-sims[manifest.ZoneEscalation] <= 0.15 {
			return manifest.ZoneEscalation
		}
		return manifest.ZoneClimax
	}
	return best
}

func anchorSentenceFor(zone manifest.NarrativeZone, sentences map[string]string) string {
	if s, ok := sentences[string(zone)]; ok {
		return s
	}
	return string(zone)
}

func bestZone(sims map[manifest.NarrativeZone]float64) manifest.NarrativeZone {
	best := manifest.ZoneBeginning
	bestScore := sims[best]
	for zone, score := range sims {
		if score > bestScore {
			best = zone
			bestScore = score
		}
	}
	return best
}

// anchorRatioZone is the degraded timestamp-only zoning used when the
// embedding model is unavailable (spec.md §4.H failure mode).
func anchorRatioZone(chronPosition, beginRatio, escalationRatio, climaxRatio float64) manifest.NarrativeZone {
	switch {
	case chronPosition < escalationRatio:
		return manifest.ZoneBeginning
	case chronPosition < climaxRatio:
		return manifest.ZoneEscalation
	default:
		return manifest.ZoneClimax
	}
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0.0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
