package manifest

import (
	"encoding/json"
	"fmt"
	"os"

	"cinecut/internal/atomicfile"
)

// Load reads a manifest document from path. Accepts both schema "1.0" and
// "2.0": a v1.0 document is upgraded in memory to carry nil v2 optionals
// (structural_anchors, music_bed, bpm_grid all unset; sfx_events/vo_clips
// empty) per spec.md §4.B ("they may still be conformed — no music / SFX /
// VO").
func Load(path string) (*TrailerManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var m TrailerManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if m.SchemaVersion == SchemaV1 {
		m.StructuralAnchors = nil
		m.MusicBed = nil
		m.BpmGrid = nil
		if m.SfxEvents == nil {
			m.SfxEvents = []SfxEvent{}
		}
		if m.VoClips == nil {
			m.VoClips = []VoClip{}
		}
	}
	if err := Validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// SaveAtomic validates m and writes it to path using the tempfile+fsync+
// rename contract (spec.md §5 "Transaction discipline"). Validation
// failures on save are NOT downgraded to "absence" — they propagate, per
// spec.md §7 ("manifest validation failure on save" surfaces). Schema-2.0
// documents additionally go through RequireZones, guarding spec.md §8
// invariant 1 (zone-ordered output) on every write the orchestrator
// performs, not just against hand-built test fixtures; v1.0 documents
// never carry zones and are exempt.
func SaveAtomic(path string, m *TrailerManifest) error {
	if err := Validate(m); err != nil {
		return err
	}
	if m.SchemaVersion == SchemaV2 {
		if err := RequireZones(m); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := atomicfile.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest %s: %w", path, err)
	}
	return nil
}

// NewV2 constructs an empty schema-2.0 manifest ready to be populated by
// narrative generation.
func NewV2(sourcePath string, sourceMtime, sourceSize int64, vibeKey string) *TrailerManifest {
	return &TrailerManifest{
		SchemaVersion: SchemaV2,
		SourcePath:    sourcePath,
		SourceMtime:   sourceMtime,
		SourceSize:    sourceSize,
		VibeKey:       vibeKey,
		Clips:         []ClipEntry{},
		SfxEvents:     []SfxEvent{},
		VoClips:       []VoClip{},
	}
}
