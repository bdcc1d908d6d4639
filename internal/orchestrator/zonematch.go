// Clip-candidate construction for the zone_matching stage (spec.md §4.M):
// turns one scored keyframe into one ClipEntry candidate spanning it and
// the next keyframe, classified and zoned by internal/beats. No explicit
// spec.md formula ties a keyframe PTS to a clip span; consecutive-keyframe
// windowing is the natural reading of "clip candidates derived from scored
// keyframes" given KeyframeRecord carries only a single timestamp.
package orchestrator

import (
	"fmt"

	"cinecut/internal/beats"
	"cinecut/internal/dialogue"
	"cinecut/internal/manifest"
	"cinecut/internal/signals"
	"cinecut/internal/vibe"
)

const dialogueExcerptWindowS = 3.0

// buildClipCandidates zips scored (in keyframe order) into windowed
// ClipEntry candidates, classified by beat rules and zoned against the
// structural anchors.
func buildClipCandidates(scored []signals.ScoredFrame, events []dialogue.Event, durationS float64, anchors manifest.StructuralAnchors, profile vibe.Profile, embedder beats.Embedder) []manifest.ClipEntry {
	candidates := make([]manifest.ClipEntry, 0, len(scored))
	for i, sf := range scored {
		endS := durationS
		if i+1 < len(scored) {
			endS = scored[i+1].Keyframe.PtsS
		}
		if endS <= sf.Keyframe.PtsS {
			continue // degenerate (duplicate/out-of-order) timestamp, skip
		}

		cand := beats.FromScoredFrame(sf)
		beatType := beats.ClassifyBeat(cand)
		act := beats.AssignAct(beatType, cand.ChronPosition)
		zone := beats.AssignZone(cand, anchors, durationS, profile.ZoneAnchorSentences, embedder)

		entry := manifest.ClipEntry{
			SourceStartS:    sf.Keyframe.PtsS,
			SourceEndS:      endS,
			BeatType:        beatType,
			NarrativeZone:   zone,
			Act:             act,
			EmotionalSignal: sf.MoneyShotScore,
			MoneyShotScore:  sf.MoneyShotScore,
			Reasoning:       fmt.Sprintf("%s beat at %.1fs (score %.2f, source %s)", beatType, sf.Keyframe.PtsS, sf.MoneyShotScore, sf.Keyframe.Source),
		}
		if sf.Scene != nil {
			entry.VisualAnalysis = sf.Scene.VisualContent
		}
		if ev, found := dialogue.NearestEvent(events, sf.Keyframe.PtsS, dialogueExcerptWindowS); found {
			entry.DialogueExcerpt = ev.Plaintext
			entry.SubtitleAnalysis = string(ev.Emotion)
		}
		candidates = append(candidates, entry)
	}
	return candidates
}
