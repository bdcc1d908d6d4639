package manifest

import (
	"fmt"
	"sort"
)

// ValidationError reports why a manifest document failed validation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "manifest validation: " + e.Reason }

func validationErrorf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Validate enforces the invariants listed in spec.md §4.B: non-empty clip
// list; start<end for every clip; narrative_zone within the enum; sorted
// beat_times; unique frame_paths across vo_clips (here: unique audio_path).
func Validate(m *TrailerManifest) error {
	if m == nil {
		return validationErrorf("nil manifest")
	}
	if m.SchemaVersion != SchemaV1 && m.SchemaVersion != SchemaV2 {
		return validationErrorf("unrecognized schema_version %q", m.SchemaVersion)
	}
	if len(m.Clips) == 0 {
		return validationErrorf("clips must be non-empty")
	}
	for i, c := range m.Clips {
		if c.SourceEndS <= c.SourceStartS {
			return validationErrorf("clip[%d]: source_end_s (%.3f) must be > source_start_s (%.3f)", i, c.SourceEndS, c.SourceStartS)
		}
		switch c.NarrativeZone {
		case ZoneBeginning, ZoneEscalation, ZoneClimax, "":
			// "" permitted only for v1.0 documents where zones never existed;
			// caller enforces zone presence for v2.0-produced output via
			// RequireZones below.
		default:
			return validationErrorf("clip[%d]: unknown narrative_zone %q", i, c.NarrativeZone)
		}
	}
	if m.BpmGrid != nil {
		if !sort.Float64sAreSorted(m.BpmGrid.BeatTimesS) {
			return validationErrorf("bpm_grid.beat_times_s must be sorted ascending")
		}
		for i := 1; i < len(m.BpmGrid.BeatTimesS); i++ {
			if m.BpmGrid.BeatTimesS[i] == m.BpmGrid.BeatTimesS[i-1] {
				return validationErrorf("bpm_grid.beat_times_s must be strictly increasing")
			}
		}
	}
	seenAudioPaths := make(map[string]bool, len(m.VoClips))
	for i, vo := range m.VoClips {
		if vo.AudioPath == "" {
			continue
		}
		if seenAudioPaths[vo.AudioPath] {
			return validationErrorf("vo_clips[%d]: duplicate audio_path %q", i, vo.AudioPath)
		}
		seenAudioPaths[vo.AudioPath] = true
	}
	return nil
}

// RequireZones additionally enforces that every clip carries a narrative
// zone and that the assembled sequence is zone-ordered — used once clips
// have passed through the Assembler (spec.md §8 invariant 1).
func RequireZones(m *TrailerManifest) error {
	lastRank := -1
	for i, c := range m.Clips {
		if c.NarrativeZone == "" {
			return validationErrorf("clip[%d]: missing narrative_zone", i)
		}
		rank := ZoneRank(c.NarrativeZone)
		if rank < lastRank {
			return validationErrorf("clip[%d]: narrative_zone order is non-decreasing violation (zone_rank %d after %d)", i, rank, lastRank)
		}
		lastRank = rank
	}
	return nil
}
