// Builds the vosfx.LineCandidate list the VO selector needs: every
// dialogue event annotated with the act and nearest clip's beat type,
// derived from the already-assembled clip sequence (spec.md §4.K).
package orchestrator

import (
	"math"

	"cinecut/internal/beats"
	"cinecut/internal/dialogue"
	"cinecut/internal/manifest"
	"cinecut/internal/vosfx"
)

func buildLineCandidates(events []dialogue.Event, clips []manifest.ClipEntry, durationS float64) []vosfx.LineCandidate {
	candidates := make([]vosfx.LineCandidate, 0, len(events))
	for _, e := range events {
		chron := 0.0
		if durationS > 0 {
			chron = e.MidpointS() / durationS
		}
		nearest := nearestClipByTime(clips, e.MidpointS())
		act := beats.AssignAct(nearest.BeatType, chron)
		candidates = append(candidates, vosfx.LineCandidate{
			Event:           e,
			Act:             act,
			NearestBeatType: nearest.BeatType,
		})
	}
	return candidates
}

// nearestClipByTime finds the clip containing ptsS on the source timeline,
// or the nearest one by edge distance if none contains it.
func nearestClipByTime(clips []manifest.ClipEntry, ptsS float64) manifest.ClipEntry {
	var best manifest.ClipEntry
	bestDelta := math.MaxFloat64
	for _, c := range clips {
		if ptsS >= c.SourceStartS && ptsS <= c.SourceEndS {
			return c
		}
		delta := math.Min(math.Abs(ptsS-c.SourceStartS), math.Abs(ptsS-c.SourceEndS))
		if delta < bestDelta {
			bestDelta = delta
			best = c
		}
	}
	return best
}
