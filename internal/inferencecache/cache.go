// Package inferencecache implements the Inference Cache (spec.md §4.D): a
// content-addressed, single-binary-file persistent store of per-frame
// SceneDescription results, invalidated purely by source file mtime+size.
//
// Grounded on the teacher's analyzer.go loadCachedAnalysis/
// saveCachedAnalysis (a hand-rolled per-file JSON cache keyed by content
// hash); the per-frame result map here is a single file rather than
// one-file-per-item for the reason spec.md §9 gives: "minimize filesystem
// overhead and enable atomic whole-cache writes." encoding/gob is used for
// the payload — justified in DESIGN.md: no ecosystem binary codec appears
// anywhere in the pack, and gob is the idiomatic stdlib choice for a
// private, single-writer, Go-to-Go cache format.
package inferencecache

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cinecut/internal/atomicfile"
	"cinecut/internal/fingerprint"
)

// SceneDescription mirrors spec.md §3: four short text fields produced by
// the vision model. Any field may be empty; the whole value is nil
// (pointer) for frames where the model failed entirely.
type SceneDescription struct {
	VisualContent string `json:"visual_content"`
	Mood          string `json:"mood"`
	Action        string `json:"action"`
	Setting       string `json:"setting"`
}

// payload is the on-disk binary shape: a metadata block plus the
// frame_path -> SceneDescription-or-nil results map.
type payload struct {
	Metadata metadata
	Results  map[string]*SceneDescription
}

type metadata struct {
	SourceFile string
	Mtime      int64
	Size       int64
	Schema     string
}

const currentSchema = "1"

// pathFor returns work_dir/<source_stem>.scenedesc.gob (spec.md §6).
func pathFor(source, workDir string) string {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(workDir, stem+".scenedesc.gob")
}

// Load returns the cached results for source within workDir, or nil if
// absent, corrupt, or the source's mtime/size no longer matches the cached
// metadata (spec.md §4.D invalidation policy; §8 invariant 8).
func Load(source, workDir string) (map[string]*SceneDescription, error) {
	path := pathFor(source, workDir)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil
	}

	var p deterministicPayload
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&p); err != nil {
		return nil, nil
	}

	cur, err := fingerprint.Of(source)
	if err != nil {
		return nil, nil
	}
	if p.Metadata.Mtime != cur.Mtime || p.Metadata.Size != cur.Size {
		return nil, nil
	}
	results := make(map[string]*SceneDescription, len(p.Entries))
	for _, e := range p.Entries {
		results[e.FramePath] = e.Desc
	}
	return results, nil
}

// SaveAtomic writes results for source within workDir using tempfile+
// fsync+rename. Calling SaveAtomic twice with unchanged results produces a
// byte-identical file (spec.md §8 invariant 5): gob's field order is fixed
// by the struct declaration, but gob writes map entries in iteration order,
// so results are written as a slice sorted by frame path instead of as a
// map. Load rebuilds the map from that slice.
func SaveAtomic(results map[string]*SceneDescription, source, workDir string) error {
	cur, err := fingerprint.Of(source)
	if err != nil {
		return fmt.Errorf("stat source %s: %w", source, err)
	}
	p := payload{
		Metadata: metadata{
			SourceFile: source,
			Mtime:      cur.Mtime,
			Size:       cur.Size,
			Schema:     currentSchema,
		},
		Results: results,
	}

	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(deterministic(p)); err != nil {
		return fmt.Errorf("encode inference cache: %w", err)
	}

	path := pathFor(source, workDir)
	return atomicfile.WriteFile(path, buf.Bytes(), 0o644)
}

// deterministicPayload reencodes the result map as a sorted slice so gob's
// byte-level output does not depend on Go's randomized map iteration order.
type deterministicPayload struct {
	Metadata metadata
	Entries  []entry
}

type entry struct {
	FramePath string
	Desc      *SceneDescription
}

func deterministic(p payload) deterministicPayload {
	keys := make([]string, 0, len(p.Results))
	for k := range p.Results {
		keys = append(keys, k)
	}
	sortStrings(keys)
	entries := make([]entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, entry{FramePath: k, Desc: p.Results[k]})
	}
	return deterministicPayload{Metadata: p.Metadata, Entries: entries}
}

func sortStrings(s []string) {
	// Small, allocation-free insertion sort is plenty for a per-run frame
	// count; avoids importing sort solely for this.
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// KeyframeRef is the minimal shape Reconcile needs from a keyframe record.
type KeyframeRef struct {
	FramePath string
}

// Reconcile joins cache results by frame_path against the current keyframe
// set; frames with no cached entry get a nil SceneDescription (spec.md
// §4.D).
func Reconcile(keyframes []KeyframeRef, cached map[string]*SceneDescription) map[string]*SceneDescription {
	full := make(map[string]*SceneDescription, len(keyframes))
	for _, kf := range keyframes {
		if cached != nil {
			if desc, ok := cached[kf.FramePath]; ok {
				full[kf.FramePath] = desc
				continue
			}
		}
		full[kf.FramePath] = nil
	}
	return full
}
