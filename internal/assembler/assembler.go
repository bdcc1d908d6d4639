// Package assembler implements the Assembler (spec.md §4.I): zone-first +
// score-ranked ordering, per-zone pacing-curve trim, beat-grid snap,
// silence insertion, and clip-count convergence. Directly grounded on the
// teacher's planner.go (GenerateMixPlan/ComputePlayBounds/sortPlaylist
// already sort a track list by a composite heuristic and snap candidate
// cut points to a rhythmic grid — structurally the same problem as
// ordering clips and snapping them to a beat grid). snapToPhrase/snapGrid
// are adapted almost directly (phrase grid -> zone/beat grid).
package assembler

import (
	"math"
	"sort"

	"cinecut/internal/manifest"
	"cinecut/internal/vibe"
)

// MinClipDurationS is the absolute floor the pacing trim never crosses
// (spec.md §4.I).
const MinClipDurationS = 0.5

// silenceDurationS is the fixed length of the act-boundary silence
// segment (spec.md §4.I).
const silenceDurationS = 3.5

// Result is the Assembler's output.
type Result struct {
	Clips []manifest.ClipEntry

	// SilenceBoundaryIndex is the index in Clips before which the silence
	// segment should be inserted by the conform stage, or -1 if no
	// ESCALATION->CLIMAX boundary exists to anchor one.
	SilenceBoundaryIndex int
	SilenceDurationS     float64
}

// Assemble runs the full pipeline over the full candidate pool (every
// classified+zoned clip, not a pre-filtered subset): zone-balanced
// selection, ordering, pacing trim, beat-grid snap, silence insertion, and
// convergence to the vibe's target clip-count range.
func Assemble(candidates []manifest.ClipEntry, profile vibe.Profile, grid *manifest.BpmGrid) Result {
	byZone := groupByZone(candidates)
	for zone, clips := range byZone {
		byZone[zone] = sortByScoreDesc(clips)
	}

	targetPerZone := profile.TargetClipCountMax / 3
	if targetPerZone < 1 {
		targetPerZone = 1
	}

	selected := make(map[manifest.NarrativeZone][]manifest.ClipEntry)
	pool := make(map[manifest.NarrativeZone][]manifest.ClipEntry)
	for _, zone := range zoneOrder {
		clips := byZone[zone]
		if len(clips) <= targetPerZone {
			selected[zone] = clips
			pool[zone] = nil
		} else {
			selected[zone] = clips[:targetPerZone]
			pool[zone] = clips[targetPerZone:]
		}
	}

	ordered := flattenZones(selected)
	ordered = trimToPacing(ordered, profile)
	ordered = snapToBeatGrid(ordered, grid)
	ordered = converge(ordered, pool, profile)

	silenceIdx := escalationToClimaxBoundary(ordered)

	return Result{
		Clips:                ordered,
		SilenceBoundaryIndex: silenceIdx,
		SilenceDurationS:     silenceDurationS,
	}
}

var zoneOrder = []manifest.NarrativeZone{manifest.ZoneBeginning, manifest.ZoneEscalation, manifest.ZoneClimax}

func groupByZone(clips []manifest.ClipEntry) map[manifest.NarrativeZone][]manifest.ClipEntry {
	out := make(map[manifest.NarrativeZone][]manifest.ClipEntry)
	for _, c := range clips {
		out[c.NarrativeZone] = append(out[c.NarrativeZone], c)
	}
	return out
}

// sortByScoreDesc sorts by descending emotional_signal (money_shot_score),
// ties broken by earlier source_start_s (spec.md §4.I ordering rule).
func sortByScoreDesc(clips []manifest.ClipEntry) []manifest.ClipEntry {
	out := append([]manifest.ClipEntry(nil), clips...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EmotionalSignal != out[j].EmotionalSignal {
			return out[i].EmotionalSignal > out[j].EmotionalSignal
		}
		return out[i].SourceStartS < out[j].SourceStartS
	})
	return out
}

func flattenZones(selected map[manifest.NarrativeZone][]manifest.ClipEntry) []manifest.ClipEntry {
	var out []manifest.ClipEntry
	for _, zone := range zoneOrder {
		out = append(out, selected[zone]...)
	}
	return out
}

// trimToPacing enforces the target average cut duration of each clip's act
// (breath clips use the act2 target): if a clip's duration exceeds
// target*1.5, trim its end to reach target*1.5,
// never below MinClipDurationS. Uses the immutable copy-with-update
// pattern (ClipEntry.WithSourceEndS) per spec.md §4.I.
func trimToPacing(clips []manifest.ClipEntry, profile vibe.Profile) []manifest.ClipEntry {
	out := make([]manifest.ClipEntry, len(clips))
	for i, c := range clips {
		target := targetCutS(profile, c.Act)
		maxAllowed := target * 1.5
		duration := c.DurationS()
		if duration > maxAllowed {
			newEnd := c.SourceStartS + maxAllowed
			if newEnd-c.SourceStartS < MinClipDurationS {
				newEnd = c.SourceStartS + MinClipDurationS
			}
			out[i] = c.WithSourceEndS(newEnd)
		} else {
			out[i] = c
		}
	}
	return out
}

func targetCutS(profile vibe.Profile, act manifest.Act) float64 {
	switch act {
	case manifest.Act1:
		return profile.Act1AvgCutS
	case manifest.Act2:
		return profile.Act2AvgCutS
	case manifest.Act3:
		return profile.Act3AvgCutS
	default: // breath: use act2 pacing as a reasonable mid-pacing default
		return profile.Act2AvgCutS
	}
}

// snapToBeatGrid finds, for each clip, the nearest beat_time to its
// source_start_s; if within one beat interval, records beat_aligned_start_s.
// Natural durations from 1.8 up to (not including) 2.2 beats are set to
// exactly 2 beats; below 0.5
// beats is disallowed (no duration adjustment applied). Grounded on the
// teacher's snapToPhrase/snapGrid nearest-candidate search.
func snapToBeatGrid(clips []manifest.ClipEntry, grid *manifest.BpmGrid) []manifest.ClipEntry {
	if grid == nil || len(grid.BeatTimesS) == 0 {
		return clips
	}
	beatInterval := averageBeatInterval(grid.BeatTimesS)
	if beatInterval <= 0 {
		return clips
	}

	out := make([]manifest.ClipEntry, len(clips))
	for i, c := range clips {
		nearest, delta := nearestBeat(grid.BeatTimesS, c.SourceStartS)
		clip := c
		if delta <= beatInterval {
			clip = clip.WithBeatAlignedStartS(nearest)
		}

		naturalBeats := clip.DurationS() / beatInterval
		if naturalBeats < 0.5 {
			out[i] = clip
			continue
		}
		if naturalBeats >= 1.8 && naturalBeats < 2.2 {
			out[i] = clip.WithSourceEndS(clip.SourceStartS + 2*beatInterval)
			continue
		}
		out[i] = clip
	}
	return out
}

func averageBeatInterval(beatTimes []float64) float64 {
	if len(beatTimes) < 2 {
		return 0
	}
	return (beatTimes[len(beatTimes)-1] - beatTimes[0]) / float64(len(beatTimes)-1)
}

func nearestBeat(beatTimes []float64, t float64) (nearest float64, delta float64) {
	nearest = beatTimes[0]
	delta = math.Abs(nearest - t)
	for _, b := range beatTimes[1:] {
		if d := math.Abs(b - t); d < delta {
			delta = d
			nearest = b
		}
	}
	return nearest, delta
}

// escalationToClimaxBoundary returns the index of the first CLIMAX-zone
// clip immediately following an ESCALATION-zone clip, or -1 if no such
// boundary exists.
func escalationToClimaxBoundary(clips []manifest.ClipEntry) int {
	for i := 1; i < len(clips); i++ {
		if clips[i-1].NarrativeZone == manifest.ZoneEscalation && clips[i].NarrativeZone == manifest.ZoneClimax {
			return i
		}
	}
	return -1
}

// converge re-adds the highest-scoring pooled (unselected) clips per zone
// in round-robin order when short, or drops the globally lowest-scoring
// clips when long, until the count is within the vibe's target range
// (spec.md §4.I "Termination").
func converge(clips []manifest.ClipEntry, pool map[manifest.NarrativeZone][]manifest.ClipEntry, profile vibe.Profile) []manifest.ClipEntry {
	out := append([]manifest.ClipEntry(nil), clips...)

	for len(out) < profile.TargetClipCountMin {
		added := false
		for _, zone := range zoneOrder {
			p := pool[zone]
			if len(p) == 0 {
				continue
			}
			out = append(out, p[0])
			pool[zone] = p[1:]
			added = true
			if len(out) >= profile.TargetClipCountMin {
				break
			}
		}
		if !added {
			break // pools exhausted; accept a shorter trailer
		}
	}

	for len(out) > profile.TargetClipCountMax {
		lowestIdx := lowestScoreIndex(out)
		out = append(out[:lowestIdx], out[lowestIdx+1:]...)
	}

	return reorderByZone(out)
}

func lowestScoreIndex(clips []manifest.ClipEntry) int {
	idx := 0
	for i := 1; i < len(clips); i++ {
		if clips[i].EmotionalSignal < clips[idx].EmotionalSignal {
			idx = i
		}
	}
	return idx
}

// reorderByZone restores the global zone-ascending, score-descending
// invariant after convergence may have appended/removed clips out of
// order.
func reorderByZone(clips []manifest.ClipEntry) []manifest.ClipEntry {
	byZone := groupByZone(clips)
	for zone, cs := range byZone {
		byZone[zone] = sortByScoreDesc(cs)
	}
	return flattenZones(byZone)
}
