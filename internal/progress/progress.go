// Package progress declares the injected progress-reporting interface
// (spec.md §4.M/§6) the Stage Orchestrator emits events through. The core
// pipeline never prints directly; CLI presentation is a named collaborator
// the same way external.Transcoder/ModelRuntime are, so the orchestrator
// stays testable without a terminal. Grounded on the teacher's own
// log.Printf("[stage] ...") convention (analyzer.go, renderer.go) — same
// stage-tagged event shape, just routed through an interface instead of
// straight to stdlib log.
package progress

// Status is the lifecycle state of a single pipeline stage.
type Status string

const (
	StatusStarted   Status = "started"
	StatusSkipped   Status = "skipped" // checkpoint/cache already satisfied it
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Event is one stage-lifecycle notification.
type Event struct {
	Stage   string
	Status  Status
	Detail  string // human-readable extra context, e.g. "12/40 keyframes cached"
	Err     error  // set only when Status == StatusFailed
}

// Reporter receives stage lifecycle events. The CLI's default
// implementation renders a terminal progress display; tests can inject a
// recording stub.
type Reporter interface {
	Report(Event)
}

// NullReporter discards every event. The zero value is ready to use —
// a safe default for callers (tests, library embedding) that don't want
// terminal output.
type NullReporter struct{}

func (NullReporter) Report(Event) {}

// Recorder collects every event it receives, in order. Used by tests that
// need to assert on stage sequencing without a real terminal.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Report(e Event) {
	r.Events = append(r.Events, e)
}
