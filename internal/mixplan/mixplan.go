// Package mixplan implements the Mix Graph Planner (spec.md §4.L): a
// declarative plan tree of audio nodes consumed by the external filtergraph
// runner. Grounded on the teacher's renderer.go filter_complex assembly
// (RenderPreview/RenderFinalMix already encode "stems + normalize + mix
// with normalize=0" as raw FFmpeg syntax); here the same node shapes are
// produced as data, per spec.md §9 "Mix plan as data, not code".
package mixplan

// StemKind identifies one of the four audio layers (spec.md §4.L).
type StemKind string

const (
	StemFilm  StemKind = "film_audio"
	StemMusic StemKind = "music_bed"
	StemSFX   StemKind = "sfx_track"
	StemVO    StemKind = "vo_track"
)

const (
	SampleRateHz = 48000
	Channels     = 2
)

// Stem is a single input audio file plus its per-stem normalize target.
type Stem struct {
	Kind       StemKind `json:"kind"`
	Path       string   `json:"path"`
	TargetLUFS float64  `json:"target_lufs"`
}

// DuckingConfig describes the sidechain compressor applied to the music
// stem, driven by (film_audio + vo_track) (spec.md §4.L).
type DuckingConfig struct {
	ThresholdDB float64 `json:"threshold_db"`
	RatioToOne  float64 `json:"ratio_to_one"`
	AttackMs    float64 `json:"attack_ms"`
	ReleaseMs   float64 `json:"release_ms"`
	FloorDB     float64 `json:"floor_db"`
}

// Plan is the full declarative mix graph: stems plus an optional ducking
// node plus the final-mixer contract. It is deterministic: identical
// inputs produce byte-identical serializations (field order is fixed by
// struct declaration, and Stems is always emitted in filmAudio/music/
// sfx/vo order by the constructors below).
type Plan struct {
	Stems      []Stem         `json:"stems"`
	Ducking    *DuckingConfig `json:"ducking,omitempty"`
	SampleRate int            `json:"sample_rate"`
	Channels   int            `json:"channels"`
	// NormalizeFinal is always false: amix normalize=1 would collapse the
	// ducking dynamics (spec.md §4.L, "critical").
	NormalizeFinal bool `json:"normalize_final"`
}

// Params bundles the per-run inputs needed to build a Plan.
type Params struct {
	FilmAudioPath string
	FilmLUFS      float64

	MusicPath string // empty when no music bed resolved
	MusicLUFS float64

	SfxPath string // empty when there are no SFX events
	VoPath  string // empty when there are no VO clips

	DuckFloorDB float64 // per-vibe default (spec.md §4.L: -12 to -18 dB)
}

const (
	voTargetLUFS = -16
	musicLUFSOffsetFromFilm = -6
	sfxLUFSOffsetFromFilm   = -3

	duckThresholdDB = -24
	duckRatio       = 4.0
	duckAttackMs    = 100
	duckReleaseMs   = 300
)

// Build constructs the declarative plan for p. Film audio is always a
// stem (spec.md §4.L: "film_audio extracted from concatenated clip
// video"); music/SFX/VO stems are included only when their paths are
// non-empty, and ducking is present only when a music stem exists (it
// needs a stem to duck).
func Build(p Params) Plan {
	plan := Plan{
		SampleRate:     SampleRateHz,
		Channels:       Channels,
		NormalizeFinal: false,
	}
	plan.Stems = append(plan.Stems, Stem{Kind: StemFilm, Path: p.FilmAudioPath, TargetLUFS: p.FilmLUFS})

	if p.MusicPath != "" {
		musicLUFS := p.FilmLUFS + musicLUFSOffsetFromFilm
		plan.Stems = append(plan.Stems, Stem{Kind: StemMusic, Path: p.MusicPath, TargetLUFS: musicLUFS})
		plan.Ducking = &DuckingConfig{
			ThresholdDB: duckThresholdDB,
			RatioToOne:  duckRatio,
			AttackMs:    duckAttackMs,
			ReleaseMs:   duckReleaseMs,
			FloorDB:     clampDuckFloor(p.DuckFloorDB),
		}
	}
	if p.SfxPath != "" {
		sfxLUFS := p.FilmLUFS + sfxLUFSOffsetFromFilm
		plan.Stems = append(plan.Stems, Stem{Kind: StemSFX, Path: p.SfxPath, TargetLUFS: sfxLUFS})
	}
	if p.VoPath != "" {
		plan.Stems = append(plan.Stems, Stem{Kind: StemVO, Path: p.VoPath, TargetLUFS: voTargetLUFS})
	}
	return plan
}

func clampDuckFloor(db float64) float64 {
	if db == 0 {
		return -15 // midpoint default within spec.md's -12..-18 dB range
	}
	if db > -12 {
		return -12
	}
	if db < -18 {
		return -18
	}
	return db
}

// HasMusic reports whether plan carries a music stem.
func (plan Plan) HasMusic() bool {
	return plan.stemOf(StemMusic) != nil
}

// HasVO reports whether plan carries a VO stem.
func (plan Plan) HasVO() bool {
	return plan.stemOf(StemVO) != nil
}

func (plan Plan) stemOf(kind StemKind) *Stem {
	for i := range plan.Stems {
		if plan.Stems[i].Kind == kind {
			return &plan.Stems[i]
		}
	}
	return nil
}

// InputPaths returns the ordered list of stem file paths the runner must
// map as inputs.
func (plan Plan) InputPaths() []string {
	paths := make([]string, 0, len(plan.Stems))
	for _, s := range plan.Stems {
		paths = append(paths, s.Path)
	}
	return paths
}
