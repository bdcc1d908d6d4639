// Per-keyframe scene description via the vision model. No §4 component
// owns this by name either (spec.md's data-flow line folds it into the
// "inference" stage alongside the cache itself) — it lives here the same
// way keyframe selection does, as orchestrator glue around a named
// collaborator (external.ModelRuntime).
package orchestrator

import (
	"context"
	"encoding/json"

	"cinecut/internal/cinerr"
	"cinecut/internal/external"
	"cinecut/internal/inferencecache"
	"cinecut/internal/signals"
)

const sceneDescriptionSchema = `{"type":"object","properties":{` +
	`"visual_content":{"type":"string"},"mood":{"type":"string"},` +
	`"action":{"type":"string"},"setting":{"type":"string"}}}`

// describeMissingFrames fills in a SceneDescription for every keyframe whose
// reconciled cache entry is nil (never described, or described by a run
// whose cache was invalidated). Frames already carrying a description are
// left untouched — this is the "infer only missing frames" partial-hit
// path of the Inference Cache (spec.md §4.D).
func describeMissingFrames(ctx context.Context, runtime external.ModelRuntime, keyframes []signals.KeyframeRecord, reconciled map[string]*inferencecache.SceneDescription) (map[string]*inferencecache.SceneDescription, bool, error) {
	if runtime == nil {
		return reconciled, false, nil
	}

	out := make(map[string]*inferencecache.SceneDescription, len(reconciled))
	for k, v := range reconciled {
		out[k] = v
	}

	changed := false
	for _, kf := range keyframes {
		if out[kf.FramePath] != nil {
			continue
		}
		desc, err := describeOne(ctx, runtime, kf.FramePath)
		if err != nil {
			continue // a single failed frame degrades to "no description", never aborts the run
		}
		out[kf.FramePath] = desc
		changed = true
	}
	return out, changed, nil
}

func describeOne(ctx context.Context, runtime external.ModelRuntime, framePath string) (*inferencecache.SceneDescription, error) {
	result, err := runtime.Complete(ctx, external.CompletionRequest{
		Prompt:      "Describe this film frame in four short fields: visual_content, mood, action, setting.",
		JSONSchema:  sceneDescriptionSchema,
		ImagePath:   framePath,
		Temperature: 0.0,
		MaxTokens:   256,
		TimeoutS:    60,
	})
	if err != nil {
		return nil, cinerr.Inference("vision model scene description failed", err)
	}
	var desc inferencecache.SceneDescription
	if err := json.Unmarshal([]byte(result.Text), &desc); err != nil {
		return nil, cinerr.Inference("vision model returned malformed JSON", err)
	}
	return &desc, nil
}
