// Package dialogue holds the DialogueEvent type (spec.md §3) and the
// fixed-table emotion classifier described in §3 and §9 ("Dialogue-emotion
// keyword table"). Subtitle parsing itself is out of scope (spec.md §1);
// this package only consumes an already-timed dialogue stream.
package dialogue

import "strings"

// Emotion is one of the six coarse labels in the fixed set.
type Emotion string

const (
	EmotionPositive Emotion = "positive"
	EmotionNegative Emotion = "negative"
	EmotionNeutral  Emotion = "neutral"
	EmotionIntense  Emotion = "intense"
	EmotionComedic  Emotion = "comedic"
	EmotionRomantic Emotion = "romantic"
)

// Event is a single timed dialogue line.
type Event struct {
	StartMs   int64
	EndMs     int64
	Plaintext string // tag-stripped
	Speaker   string // optional; empty if the subtitle track carries no names
	Emotion   Emotion
}

// MidpointS returns the derived dialogue midpoint in seconds.
func (e Event) MidpointS() float64 {
	return (float64(e.StartMs) + float64(e.EndMs)) / 2.0 / 1000.0
}

// emotionPriority is the fixed tie-break order: intense > romantic >
// comedic > negative > positive > neutral (spec.md §3).
var emotionPriority = []Emotion{
	EmotionIntense, EmotionRomantic, EmotionComedic, EmotionNegative, EmotionPositive, EmotionNeutral,
}

// keywordTable is the fixed lookup referenced by spec.md §9: "Resist the
// temptation to add learned scoring here; the next stage (LLM-driven
// analysis) does the heavy semantic work." Keywords are lower-case; matching
// is substring-based against the lower-cased plaintext.
var keywordTable = map[Emotion][]string{
	EmotionIntense: {
		"no!", "run", "watch out", "help me", "now!", "gun", "bomb", "die", "kill",
		"hurry", "move!", "get down", "stop!", "scream", "blood",
	},
	EmotionRomantic: {
		"love you", "my love", "kiss", "darling", "forever", "marry", "beautiful",
		"heart", "sweetheart", "together forever",
	},
	EmotionComedic: {
		"haha", "lol", "joke", "kidding", "hilarious", "funny", "ridiculous",
		"seriously?", "you're kidding",
	},
	EmotionNegative: {
		"no", "never", "hate", "afraid", "sorry", "can't", "won't", "dead",
		"lost", "gone", "alone", "cry",
	},
	EmotionPositive: {
		"yes", "great", "wonderful", "happy", "thank you", "amazing", "perfect",
		"congratulations", "finally",
	},
}

// Classify derives an Emotion label for plaintext using the fixed keyword
// table. Ties (multiple categories matching) are broken by the explicit
// priority order; no match yields EmotionNeutral.
func Classify(plaintext string) Emotion {
	lower := strings.ToLower(plaintext)
	matched := make(map[Emotion]bool)
	for emotion, keywords := range keywordTable {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				matched[emotion] = true
				break
			}
		}
	}
	for _, candidate := range emotionPriority {
		if matched[candidate] {
			return candidate
		}
	}
	return EmotionNeutral
}

// NewEvent builds an Event from raw timed, tag-stripped text, deriving its
// emotion label via Classify.
func NewEvent(startMs, endMs int64, plaintext, speaker string) Event {
	return Event{
		StartMs:   startMs,
		EndMs:     endMs,
		Plaintext: plaintext,
		Speaker:   speaker,
		Emotion:   Classify(plaintext),
	}
}

// EmotionalWeight maps an Emotion (or "none" for an absent nearby line) to
// the fixed weight table consumed by the Signal Extractor (spec.md §4.G).
func EmotionalWeight(e Emotion, present bool) float64 {
	if !present {
		return 0.0
	}
	switch e {
	case EmotionIntense:
		return 1.0
	case EmotionNegative:
		return 0.8
	case EmotionRomantic:
		return 0.6
	case EmotionPositive:
		return 0.5
	case EmotionComedic:
		return 0.4
	case EmotionNeutral:
		return 0.2
	default:
		return 0.0
	}
}

// NearestEvent returns the Event nearest to ptsS within maxDeltaS, or false
// if none qualifies. Used by the Signal Extractor to find the dialogue line
// "within ±5s" of a frame's PTS (spec.md §4.G).
func NearestEvent(events []Event, ptsS, maxDeltaS float64) (Event, bool) {
	var best Event
	bestDelta := maxDeltaS
	found := false
	for _, ev := range events {
		delta := ev.MidpointS() - ptsS
		if delta < 0 {
			delta = -delta
		}
		if delta <= bestDelta {
			bestDelta = delta
			best = ev
			found = true
		}
	}
	return best, found
}
