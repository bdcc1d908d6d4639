// Package external declares the four named collaborator interfaces
// (spec.md §6) that the core pipeline depends on without ever importing
// their concrete implementations: media transcoding, model inference, the
// FFmpeg filtergraph runner, and the royalty-free music API. Default
// adapters live alongside the interfaces in this package; the orchestrator
// only ever sees the interface types.
package external

import (
	"context"

	"cinecut/internal/mixplan"
)

// ProbeResult is the subset of ffprobe output the pipeline needs.
type ProbeResult struct {
	DurationS float64
	Width     int
	Height    int
	FPS       float64
}

// Transcoder produces a proxy, extracts frames/audio, and probes sources.
type Transcoder interface {
	ExtractProxy(ctx context.Context, source, workDir string) (proxyPath string, err error)
	ExtractFrame(ctx context.Context, proxyPath string, timestampS float64, outPath string) error
	ExtractAudioSegment(ctx context.Context, source string, startS, endS float64, outPath string) error
	Probe(ctx context.Context, source string) (ProbeResult, error)
}

// CompletionRequest is the structured-JSON completion payload (spec.md §6).
type CompletionRequest struct {
	Model      string
	Prompt     string
	JSONSchema string // optional, empty when unconstrained
	ImagePath  string // optional, set for vision-model calls
	Temperature float64
	MaxTokens  int
	TimeoutS   int
}

// CompletionResult is the model runtime's response.
type CompletionResult struct {
	Text       string
	TokensUsed int
}

// ModelRuntime is the HTTP completion interface shared by the vision and
// text model sessions. Only one session runs at a time (internal/gpulock).
type ModelRuntime interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}

// FiltergraphRunner executes a declarative mix plan against real media.
type FiltergraphRunner interface {
	Run(ctx context.Context, plan mixplan.Plan, inputs []string, outputPath string) error
}

// MusicAPI resolves a royalty-free track for a tag set, never raising on
// HTTP failure — graceful degradation is the caller's responsibility only
// in the sense that it must accept an empty path (spec.md §4.J).
type MusicAPI interface {
	SearchAndFetch(ctx context.Context, tags []string, cacheDir string) (path string, err error)
}
