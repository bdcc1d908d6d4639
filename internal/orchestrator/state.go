// Intermediate per-stage artifacts that precede the TrailerManifest itself
// (proxy path, structural anchors, keyframe records, zone-matched
// candidates) have nowhere else to persist across a resumed run:
// checkpoint.Checkpoint deliberately tracks only boolean stage completion
// (spec.md §4.C design note), and the manifest only gains its v2 fields at
// narrative-stage completion. This file is the lightweight side-channel
// that fills that gap, written with the same atomic-write contract as
// every other on-disk artifact in this pipeline.
package orchestrator

import (
	"encoding/json"
	"os"
	"path/filepath"

	"cinecut/internal/atomicfile"
	"cinecut/internal/manifest"
	"cinecut/internal/signals"
)

const stateFileName = "orchestrator_state.json"

// runState holds everything computed by stages proxy through zone_matching
// that a later stage, possibly in a different process invocation, needs to
// continue from.
type runState struct {
	ProxyPath       string                  `json:"proxy_path"`
	DurationS       float64                 `json:"duration_s"`
	Anchors         manifest.StructuralAnchors `json:"anchors"`
	ProtagonistName string                  `json:"protagonist_name"`
	Keyframes       []signals.KeyframeRecord `json:"keyframes"`
	Candidates      []manifest.ClipEntry    `json:"candidates"`
}

func loadRunState(workDir string) (*runState, error) {
	path := filepath.Join(workDir, stateFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return &runState{}, nil
	}
	var s runState
	if err := json.Unmarshal(data, &s); err != nil {
		return &runState{}, nil
	}
	return &s, nil
}

func (s *runState) save(workDir string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return atomicfile.WriteFile(filepath.Join(workDir, stateFileName), data, 0o644)
}
