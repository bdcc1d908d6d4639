// Package manifest implements the Manifest Model (spec.md §4.B): the
// versioned, strictly-validated document that is the single source of
// truth for every stage downstream of narrative generation.
package manifest

// NarrativeZone is the non-chronological placement region for a clip.
type NarrativeZone string

const (
	ZoneBeginning  NarrativeZone = "BEGINNING"
	ZoneEscalation NarrativeZone = "ESCALATION"
	ZoneClimax     NarrativeZone = "CLIMAX"
)

// ZoneRank gives the ordering spec.md §4.I/§8 requires: BEGINNING=0,
// ESCALATION=1, CLIMAX=2. Unknown zones rank last and are a validation bug.
func ZoneRank(z NarrativeZone) int {
	switch z {
	case ZoneBeginning:
		return 0
	case ZoneEscalation:
		return 1
	case ZoneClimax:
		return 2
	default:
		return 3
	}
}

// Act is the derived positional label, separate from NarrativeZone.
type Act string

const (
	Act1    Act = "act1"
	Act2    Act = "act2"
	Act3    Act = "act3"
	ActBreath Act = "breath"
)

// BeatType is one of the seven classified narrative beats (spec.md §4.H).
type BeatType string

const (
	BeatBreath               BeatType = "breath"
	BeatClimax               BeatType = "climax"
	BeatMoneyShot            BeatType = "money_shot"
	BeatCharacterIntro       BeatType = "character_introduction"
	BeatIncitingIncident     BeatType = "inciting_incident"
	BeatRelationship         BeatType = "relationship_beat"
	BeatEscalation           BeatType = "escalation_beat"
)

// ClipEntry is a single assembled trailer clip.
type ClipEntry struct {
	SourceStartS float64  `json:"source_start_s"`
	SourceEndS   float64  `json:"source_end_s"`
	BeatType     BeatType `json:"beat_type"`
	NarrativeZone NarrativeZone `json:"narrative_zone"`
	Act          Act      `json:"act"`

	EmotionalSignal float64 `json:"emotional_signal"`
	MoneyShotScore  float64 `json:"money_shot_score"`

	TransitionIn  string `json:"transition_in"`
	TransitionOut string `json:"transition_out"`

	Reasoning string `json:"reasoning"`

	DialogueExcerpt string `json:"dialogue_excerpt,omitempty"`
	VisualAnalysis  string `json:"visual_analysis,omitempty"`
	SubtitleAnalysis string `json:"subtitle_analysis,omitempty"`

	BeatAlignedStartS *float64 `json:"beat_aligned_start_s,omitempty"`
}

// DurationS returns source_end_s - source_start_s.
func (c ClipEntry) DurationS() float64 {
	return c.SourceEndS - c.SourceStartS
}

// WithSourceEndS returns a copy of c with SourceEndS replaced — the
// immutable copy-with-update pattern required by spec.md §4.I's pacing-curve
// trim ("never mutate in place").
func (c ClipEntry) WithSourceEndS(endS float64) ClipEntry {
	c.SourceEndS = endS
	return c
}

// WithBeatAlignedStartS returns a copy of c with BeatAlignedStartS set.
func (c ClipEntry) WithBeatAlignedStartS(startS float64) ClipEntry {
	c.BeatAlignedStartS = &startS
	return c
}

// StructuralAnchors are the three narrative anchor timestamps produced by
// the Structural Analyzer (spec.md §4.F).
type StructuralAnchors struct {
	BeginT      float64 `json:"begin_t"`
	EscalationT float64 `json:"escalation_t"`
	ClimaxT     float64 `json:"climax_t"`
}

// BpmGrid is the detected or vibe-default beat grid (spec.md §4.J).
type BpmGrid struct {
	DetectedBPM     float64   `json:"detected_bpm"`
	BeatTimesS      []float64 `json:"beat_times_s"`
	DownbeatTimesS  []float64 `json:"downbeat_times_s"`
	Source          string    `json:"source"` // "detected" | "vibe-default"
}

// ResolvedMusicChoice persists the exact track chosen so a rerun reproduces
// the result rather than re-querying a non-deterministic external API —
// implements spec.md §9's "Open question — music selection determinism"
// recommendation.
type ResolvedMusicChoice struct {
	VibeKey string `json:"vibe_key"`
	TagHash string `json:"tag_hash"`
	TrackID string `json:"track_id"`
}

// MusicBed is the resolved royalty-free music track (spec.md §4.J).
type MusicBed struct {
	TrackPath   string  `json:"track_path"`
	VibeKey     string  `json:"vibe_key"`
	DurationS   float64 `json:"duration_s"`
	DuckFloorDB float64 `json:"duck_floor_db"`
	FadeInS     float64 `json:"fade_in_s"`
	FadeOutS    float64 `json:"fade_out_s"`

	Resolved *ResolvedMusicChoice `json:"resolved,omitempty"`
}

// SfxEvent is a cut-time synthesized sound effect (spec.md §4.K).
type SfxEvent struct {
	TriggerTimeS   float64 `json:"trigger_time_s"`
	Tier           string  `json:"tier"` // "hard-cut" | "act-boundary"
	SynthesizedPath string `json:"synthesized_path"`
}

// VoClip is a selected protagonist voice-over line (spec.md §4.K).
type VoClip struct {
	SourceStartS     float64 `json:"source_start_s"`
	SourceEndS       float64 `json:"source_end_s"`
	DialogueText     string  `json:"dialogue_text"`
	AudioPath        string  `json:"audio_path"`
	InsertAtClipIndex int    `json:"insert_at_clip_index"`
	TargetLUFS       float64 `json:"target_lufs"`
}

// SchemaVersion identifies the manifest's structural generation.
type SchemaVersion string

const (
	SchemaV1 SchemaVersion = "1.0"
	SchemaV2 SchemaVersion = "2.0"
)

// TrailerManifest is the single source of truth consumed by the mix planner
// and the conform stage (spec.md §3).
type TrailerManifest struct {
	SchemaVersion SchemaVersion `json:"schema_version"`

	SourcePath string `json:"source_path"`
	SourceMtime int64 `json:"source_mtime"`
	SourceSize  int64 `json:"source_size"`

	VibeKey string `json:"vibe_key"`

	Clips []ClipEntry `json:"clips"`

	StructuralAnchors *StructuralAnchors `json:"structural_anchors,omitempty"`
	MusicBed          *MusicBed          `json:"music_bed,omitempty"`
	BpmGrid           *BpmGrid           `json:"bpm_grid,omitempty"`

	SfxEvents []SfxEvent `json:"sfx_events"`
	VoClips   []VoClip   `json:"vo_clips"`
}
