// Package vibe implements the Vibe Profile Registry (spec.md §4.A): a
// frozen lookup from vibe key to the stylistic parameters that drive
// downstream pacing, color, loudness, and music selection.
//
// Grounded on the teacher's weights.go DefaultWeights(): a pure factory
// function returning a value type, loaded once and never mutated.
package vibe

import (
	"fmt"
	"sort"
)

// Profile is the full set of per-vibe stylistic parameters.
type Profile struct {
	Key string

	Act1AvgCutS float64
	Act2AvgCutS float64
	Act3AvgCutS float64

	TargetClipCountMin int
	TargetClipCountMax int

	PrimaryTransition   string
	SecondaryTransition string

	AudioLUFSTarget    float64
	DialogueRatioTarget float64

	LUTFilename string
	LUTIntensity float64

	DefaultBPM    float64
	BPMRangeMin   float64
	BPMRangeMax   float64
	MusicTagSet   []string

	// DuckFloorDB is the per-vibe default ducking floor referenced by
	// spec.md §4.L ("configurable per-vibe, default -12dB to -18dB").
	DuckFloorDB float64

	// ZoneAnchorSentences seeds the zone-matching embedding comparison in
	// internal/beats when the vibe wants a non-generic anchor phrasing.
	ZoneAnchorSentences map[string]string // zone -> anchor sentence
}

// UnknownVibeError is returned by Profile lookup for an unregistered key.
type UnknownVibeError struct {
	Key string
}

func (e *UnknownVibeError) Error() string {
	return fmt.Sprintf("unknown vibe %q", e.Key)
}

var registry = buildRegistry()

// Get returns the frozen profile for key, or an *UnknownVibeError.
func Get(key string) (Profile, error) {
	p, ok := registry[key]
	if !ok {
		return Profile{}, &UnknownVibeError{Key: key}
	}
	return p, nil
}

// Keys returns all 18 registered vibe keys, sorted for deterministic CLI
// help output.
func Keys() []string {
	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func genericAnchors() map[string]string {
	return map[string]string{
		"BEGINNING":  "an ordinary world before anything has gone wrong",
		"ESCALATION": "rising tension, stakes building, a plan starting to fall apart",
		"CLIMAX":     "the decisive confrontation, the highest stakes moment",
	}
}

func buildRegistry() map[string]Profile {
	reg := make(map[string]Profile)
	add := func(p Profile) {
		if p.ZoneAnchorSentences == nil {
			p.ZoneAnchorSentences = genericAnchors()
		}
		reg[p.Key] = p
	}

	add(Profile{
		Key: "action", Act1AvgCutS: 3.5, Act2AvgCutS: 2.2, Act3AvgCutS: 1.4,
		TargetClipCountMin: 28, TargetClipCountMax: 42,
		PrimaryTransition: "hard-cut", SecondaryTransition: "whip-pan",
		AudioLUFSTarget: -14, DialogueRatioTarget: 0.25,
		LUTFilename: "action_teal_orange.cube", LUTIntensity: 0.8,
		DefaultBPM: 140, BPMRangeMin: 120, BPMRangeMax: 160,
		MusicTagSet: []string{"action", "cinematic", "trailer", "epic"},
		DuckFloorDB: -14,
	})
	add(Profile{
		Key: "horror", Act1AvgCutS: 5.0, Act2AvgCutS: 3.2, Act3AvgCutS: 1.8,
		TargetClipCountMin: 20, TargetClipCountMax: 32,
		PrimaryTransition: "hard-cut", SecondaryTransition: "flash-black",
		AudioLUFSTarget: -16, DialogueRatioTarget: 0.15,
		LUTFilename: "horror_desaturated.cube", LUTIntensity: 0.9,
		DefaultBPM: 70, BPMRangeMin: 55, BPMRangeMax: 90,
		MusicTagSet: []string{"horror", "tension", "dark-ambient", "dread"},
		DuckFloorDB: -18,
	})
	add(Profile{
		Key: "drama", Act1AvgCutS: 6.0, Act2AvgCutS: 4.5, Act3AvgCutS: 3.0,
		TargetClipCountMin: 14, TargetClipCountMax: 24,
		PrimaryTransition: "crossfade", SecondaryTransition: "hard-cut",
		AudioLUFSTarget: -18, DialogueRatioTarget: 0.4,
		LUTFilename: "drama_warm.cube", LUTIntensity: 0.5,
		DefaultBPM: 90, BPMRangeMin: 70, BPMRangeMax: 110,
		MusicTagSet: []string{"emotional", "piano", "drama", "cinematic"},
		DuckFloorDB: -12,
	})
	add(Profile{
		Key: "comedy", Act1AvgCutS: 4.0, Act2AvgCutS: 3.2, Act3AvgCutS: 2.4,
		TargetClipCountMin: 18, TargetClipCountMax: 30,
		PrimaryTransition: "hard-cut", SecondaryTransition: "whip-pan",
		AudioLUFSTarget: -14, DialogueRatioTarget: 0.45,
		LUTFilename: "comedy_bright.cube", LUTIntensity: 0.6,
		DefaultBPM: 115, BPMRangeMin: 95, BPMRangeMax: 135,
		MusicTagSet: []string{"upbeat", "quirky", "comedy", "ukulele"},
		DuckFloorDB: -13,
	})
	add(Profile{
		Key: "romance", Act1AvgCutS: 5.5, Act2AvgCutS: 4.2, Act3AvgCutS: 3.2,
		TargetClipCountMin: 14, TargetClipCountMax: 22,
		PrimaryTransition: "crossfade", SecondaryTransition: "crossfade",
		AudioLUFSTarget: -18, DialogueRatioTarget: 0.45,
		LUTFilename: "romance_soft.cube", LUTIntensity: 0.45,
		DefaultBPM: 85, BPMRangeMin: 65, BPMRangeMax: 105,
		MusicTagSet: []string{"romantic", "strings", "warm", "cinematic"},
		DuckFloorDB: -12,
	})
	add(Profile{
		Key: "thriller", Act1AvgCutS: 4.2, Act2AvgCutS: 2.8, Act3AvgCutS: 1.6,
		TargetClipCountMin: 22, TargetClipCountMax: 34,
		PrimaryTransition: "hard-cut", SecondaryTransition: "match-cut",
		AudioLUFSTarget: -15, DialogueRatioTarget: 0.3,
		LUTFilename: "thriller_cool.cube", LUTIntensity: 0.75,
		DefaultBPM: 110, BPMRangeMin: 90, BPMRangeMax: 130,
		MusicTagSet: []string{"suspense", "tension", "thriller", "strings"},
		DuckFloorDB: -15,
	})
	add(Profile{
		Key: "scifi", Act1AvgCutS: 4.5, Act2AvgCutS: 3.0, Act3AvgCutS: 1.8,
		TargetClipCountMin: 20, TargetClipCountMax: 32,
		PrimaryTransition: "hard-cut", SecondaryTransition: "glitch",
		AudioLUFSTarget: -14, DialogueRatioTarget: 0.25,
		LUTFilename: "scifi_cool_blue.cube", LUTIntensity: 0.7,
		DefaultBPM: 128, BPMRangeMin: 100, BPMRangeMax: 150,
		MusicTagSet: []string{"scifi", "synth", "epic", "electronic"},
		DuckFloorDB: -14,
	})
	add(Profile{
		Key: "fantasy", Act1AvgCutS: 5.2, Act2AvgCutS: 3.6, Act3AvgCutS: 2.2,
		TargetClipCountMin: 18, TargetClipCountMax: 28,
		PrimaryTransition: "crossfade", SecondaryTransition: "hard-cut",
		AudioLUFSTarget: -15, DialogueRatioTarget: 0.3,
		LUTFilename: "fantasy_golden.cube", LUTIntensity: 0.65,
		DefaultBPM: 100, BPMRangeMin: 80, BPMRangeMax: 125,
		MusicTagSet: []string{"epic", "orchestral", "fantasy", "choir"},
		DuckFloorDB: -13,
	})
	add(Profile{
		Key: "documentary", Act1AvgCutS: 7.0, Act2AvgCutS: 5.5, Act3AvgCutS: 4.0,
		TargetClipCountMin: 10, TargetClipCountMax: 18,
		PrimaryTransition: "crossfade", SecondaryTransition: "crossfade",
		AudioLUFSTarget: -18, DialogueRatioTarget: 0.55,
		LUTFilename: "documentary_neutral.cube", LUTIntensity: 0.3,
		DefaultBPM: 90, BPMRangeMin: 70, BPMRangeMax: 110,
		MusicTagSet: []string{"ambient", "documentary", "piano", "minimal"},
		DuckFloorDB: -12,
	})
	add(Profile{
		Key: "war", Act1AvgCutS: 4.0, Act2AvgCutS: 2.6, Act3AvgCutS: 1.5,
		TargetClipCountMin: 22, TargetClipCountMax: 34,
		PrimaryTransition: "hard-cut", SecondaryTransition: "hard-cut",
		AudioLUFSTarget: -14, DialogueRatioTarget: 0.2,
		LUTFilename: "war_desaturated.cube", LUTIntensity: 0.75,
		DefaultBPM: 95, BPMRangeMin: 75, BPMRangeMax: 120,
		MusicTagSet: []string{"war", "drums", "epic", "percussion"},
		DuckFloorDB: -16,
	})
	add(Profile{
		Key: "heist", Act1AvgCutS: 3.8, Act2AvgCutS: 2.4, Act3AvgCutS: 1.5,
		TargetClipCountMin: 24, TargetClipCountMax: 36,
		PrimaryTransition: "hard-cut", SecondaryTransition: "split-screen",
		AudioLUFSTarget: -14, DialogueRatioTarget: 0.3,
		LUTFilename: "heist_cool_contrast.cube", LUTIntensity: 0.7,
		DefaultBPM: 118, BPMRangeMin: 100, BPMRangeMax: 138,
		MusicTagSet: []string{"heist", "jazzy", "tension", "groove"},
		DuckFloorDB: -14,
	})
	add(Profile{
		Key: "superhero", Act1AvgCutS: 3.6, Act2AvgCutS: 2.3, Act3AvgCutS: 1.4,
		TargetClipCountMin: 26, TargetClipCountMax: 40,
		PrimaryTransition: "hard-cut", SecondaryTransition: "whip-pan",
		AudioLUFSTarget: -13, DialogueRatioTarget: 0.25,
		LUTFilename: "superhero_vivid.cube", LUTIntensity: 0.85,
		DefaultBPM: 132, BPMRangeMin: 110, BPMRangeMax: 155,
		MusicTagSet: []string{"epic", "orchestral-hybrid", "trailer", "brass"},
		DuckFloorDB: -14,
	})
	add(Profile{
		Key: "mystery", Act1AvgCutS: 5.6, Act2AvgCutS: 3.8, Act3AvgCutS: 2.4,
		TargetClipCountMin: 16, TargetClipCountMax: 26,
		PrimaryTransition: "crossfade", SecondaryTransition: "hard-cut",
		AudioLUFSTarget: -16, DialogueRatioTarget: 0.35,
		LUTFilename: "mystery_cool_shadow.cube", LUTIntensity: 0.6,
		DefaultBPM: 92, BPMRangeMin: 72, BPMRangeMax: 112,
		MusicTagSet: []string{"mystery", "suspense", "piano", "strings"},
		DuckFloorDB: -15,
	})
	add(Profile{
		Key: "family", Act1AvgCutS: 5.0, Act2AvgCutS: 3.8, Act3AvgCutS: 2.6,
		TargetClipCountMin: 16, TargetClipCountMax: 26,
		PrimaryTransition: "crossfade", SecondaryTransition: "hard-cut",
		AudioLUFSTarget: -15, DialogueRatioTarget: 0.4,
		LUTFilename: "family_warm_bright.cube", LUTIntensity: 0.5,
		DefaultBPM: 112, BPMRangeMin: 92, BPMRangeMax: 132,
		MusicTagSet: []string{"uplifting", "family", "orchestral", "bright"},
		DuckFloorDB: -13,
	})
	add(Profile{
		Key: "musical", Act1AvgCutS: 4.4, Act2AvgCutS: 3.2, Act3AvgCutS: 2.0,
		TargetClipCountMin: 18, TargetClipCountMax: 28,
		PrimaryTransition: "beat-cut", SecondaryTransition: "crossfade",
		AudioLUFSTarget: -13, DialogueRatioTarget: 0.2,
		LUTFilename: "musical_vivid.cube", LUTIntensity: 0.7,
		DefaultBPM: 124, BPMRangeMin: 100, BPMRangeMax: 148,
		MusicTagSet: []string{"musical", "upbeat", "showtune", "brass"},
		DuckFloorDB: -12,
	})
	add(Profile{
		Key: "noir", Act1AvgCutS: 5.8, Act2AvgCutS: 4.0, Act3AvgCutS: 2.6,
		TargetClipCountMin: 14, TargetClipCountMax: 22,
		PrimaryTransition: "crossfade", SecondaryTransition: "hard-cut",
		AudioLUFSTarget: -17, DialogueRatioTarget: 0.4,
		LUTFilename: "noir_bw_contrast.cube", LUTIntensity: 0.95,
		DefaultBPM: 80, BPMRangeMin: 60, BPMRangeMax: 100,
		MusicTagSet: []string{"noir", "jazz", "saxophone", "smoky"},
		DuckFloorDB: -15,
	})
	add(Profile{
		Key: "adventure", Act1AvgCutS: 4.6, Act2AvgCutS: 3.0, Act3AvgCutS: 1.8,
		TargetClipCountMin: 20, TargetClipCountMax: 32,
		PrimaryTransition: "hard-cut", SecondaryTransition: "crossfade",
		AudioLUFSTarget: -14, DialogueRatioTarget: 0.28,
		LUTFilename: "adventure_golden_hour.cube", LUTIntensity: 0.6,
		DefaultBPM: 120, BPMRangeMin: 100, BPMRangeMax: 140,
		MusicTagSet: []string{"adventure", "orchestral", "epic", "percussion"},
		DuckFloorDB: -13,
	})
	add(Profile{
		Key: "psychological", Act1AvgCutS: 6.2, Act2AvgCutS: 4.4, Act3AvgCutS: 2.8,
		TargetClipCountMin: 12, TargetClipCountMax: 20,
		PrimaryTransition: "crossfade", SecondaryTransition: "flash-black",
		AudioLUFSTarget: -17, DialogueRatioTarget: 0.35,
		LUTFilename: "psychological_cold.cube", LUTIntensity: 0.8,
		DefaultBPM: 75, BPMRangeMin: 55, BPMRangeMax: 95,
		MusicTagSet: []string{"dark-ambient", "drone", "unsettling", "minimal"},
		DuckFloorDB: -17,
	})

	return reg
}
