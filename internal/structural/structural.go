// Package structural implements the Structural Analyzer (spec.md §4.F):
// a chunked text-model sweep over the dialogue stream that produces the
// three narrative-anchor timestamps consumed by the Beat Classifier & Act
// Assigner. Grounded on the teacher's AnalyzeBatch chunked/batched
// processing shape (slice of work items, aggregate results), adapted here
// to sequential chunking since model calls are GPU-serialized (spec.md §5).
package structural

import (
	"context"
	"encoding/json"
	"fmt"

	"cinecut/internal/cinerr"
	"cinecut/internal/cinelog"
	"cinecut/internal/dialogue"
	"cinecut/internal/external"
	"cinecut/internal/manifest"
)

// chunkSize is the number of dialogue events submitted per completion call,
// within spec.md's 50-100 event window.
const chunkSize = 75

const jsonSchema = `{"type":"object","properties":{` +
	`"begin_t":{"type":"number"},"escalation_t":{"type":"number"},"climax_t":{"type":"number"},` +
	`"protagonist_name":{"type":"string"}},"required":["begin_t","escalation_t","climax_t"]}`

// epsilon is the minimum separation enforced between anchors by monotonic
// projection (spec.md §4.F: "raise any violating value to previous + ε").
const epsilon = 0.5

// Result is the Structural Analyzer's output: the three anchors plus
// whatever protagonist name the model volunteered (may be empty; VO
// selection falls back to speaker-frequency counting when empty).
type Result struct {
	Anchors         manifest.StructuralAnchors
	ProtagonistName string
	UsedFallback    bool
}

type chunkResponse struct {
	BeginT          float64 `json:"begin_t"`
	EscalationT     float64 `json:"escalation_t"`
	ClimaxT         float64 `json:"climax_t"`
	ProtagonistName string  `json:"protagonist_name"`
}

// Analyze chunks events into fixed-size windows, queries runtime for each,
// and aggregates plausible anchors by median. Falls back to heuristic
// anchors at 5%/45%/80% of durationS when runtime is nil or every chunk's
// response is implausible or unparsable — this function never returns an
// error for inference-availability reasons, per spec.md §4.F ("never fail
// the pipeline for structural-analysis inability").
func Analyze(ctx context.Context, events []dialogue.Event, durationS float64, runtime external.ModelRuntime) Result {
	if runtime == nil || durationS <= 0 {
		cinelog.Warn("structural analysis falling back to heuristic anchors: no text model available")
		return fallback(durationS)
	}

	var begins, escalations, climaxes []float64
	protagonist := ""

	for _, chunk := range chunkEvents(events, chunkSize) {
		resp, err := queryChunk(ctx, runtime, chunk, durationS)
		if err != nil {
			continue
		}
		if resp.ProtagonistName != "" && protagonist == "" {
			protagonist = resp.ProtagonistName
		}
		if plausible(resp.BeginT, 0.0, 0.30, durationS) {
			begins = append(begins, clampWindow(resp.BeginT, 0.0, 0.30, durationS))
		}
		if plausible(resp.EscalationT, 0.25, 0.70, durationS) {
			escalations = append(escalations, clampWindow(resp.EscalationT, 0.25, 0.70, durationS))
		}
		if plausible(resp.ClimaxT, 0.60, 0.95, durationS) {
			climaxes = append(climaxes, clampWindow(resp.ClimaxT, 0.60, 0.95, durationS))
		}
	}

	if len(begins) == 0 || len(escalations) == 0 || len(climaxes) == 0 {
		cinelog.Warn("structural analysis found no plausible anchors from any chunk; using heuristic fallback")
		fb := fallback(durationS)
		fb.ProtagonistName = protagonist
		return fb
	}

	anchors := manifest.StructuralAnchors{
		BeginT:      median(begins),
		EscalationT: median(escalations),
		ClimaxT:     median(climaxes),
	}
	anchors = project(anchors)

	return Result{Anchors: anchors, ProtagonistName: protagonist, UsedFallback: false}
}

func chunkEvents(events []dialogue.Event, size int) [][]dialogue.Event {
	var chunks [][]dialogue.Event
	for i := 0; i < len(events); i += size {
		end := i + size
		if end > len(events) {
			end = len(events)
		}
		chunks = append(chunks, events[i:end])
	}
	if len(chunks) == 0 {
		chunks = append(chunks, nil)
	}
	return chunks
}

func queryChunk(ctx context.Context, runtime external.ModelRuntime, chunk []dialogue.Event, durationS float64) (chunkResponse, error) {
	prompt := buildPrompt(chunk, durationS)
	result, err := runtime.Complete(ctx, external.CompletionRequest{
		Prompt:      prompt,
		JSONSchema:  jsonSchema,
		Temperature: 0.0,
		MaxTokens:   256,
		TimeoutS:    60,
	})
	if err != nil {
		return chunkResponse{}, cinerr.Inference("structural analysis chunk completion failed", err)
	}
	var resp chunkResponse
	if err := json.Unmarshal([]byte(result.Text), &resp); err != nil {
		return chunkResponse{}, cinerr.Inference("structural analysis chunk returned malformed JSON", err)
	}
	return resp, nil
}

func buildPrompt(chunk []dialogue.Event, durationS float64) string {
	lines := ""
	for _, ev := range chunk {
		lines += fmt.Sprintf("[%.1fs] %s\n", ev.MidpointS(), ev.Plaintext)
	}
	return fmt.Sprintf(
		"Film duration: %.1f seconds.\nDialogue excerpt:\n%s\n"+
			"Identify three narrative anchor timestamps in seconds: the inciting setup (begin_t), "+
			"the turning point into rising conflict (escalation_t), and the climax (climax_t). "+
			"Also name the protagonist if evident.",
		durationS, lines,
	)
}

func plausible(t, loFrac, hiFrac, durationS float64) bool {
	return t >= loFrac*durationS && t <= hiFrac*durationS
}

func clampWindow(t, loFrac, hiFrac, durationS float64) float64 {
	lo, hi := loFrac*durationS, hiFrac*durationS
	if t < lo {
		return lo
	}
	if t > hi {
		return hi
	}
	return t
}

// project enforces begin_t < escalation_t < climax_t by monotonic
// projection: raise any violating value to previous + epsilon.
func project(a manifest.StructuralAnchors) manifest.StructuralAnchors {
	if a.EscalationT <= a.BeginT {
		a.EscalationT = a.BeginT + epsilon
	}
	if a.ClimaxT <= a.EscalationT {
		a.ClimaxT = a.EscalationT + epsilon
	}
	return a
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2.0
}

func fallback(durationS float64) Result {
	return Result{
		Anchors: manifest.StructuralAnchors{
			BeginT:      0.05 * durationS,
			EscalationT: 0.45 * durationS,
			ClimaxT:     0.80 * durationS,
		},
		UsedFallback: true,
	}
}
