package progress

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNullReporterDiscardsEvents(t *testing.T) {
	var r NullReporter
	r.Report(Event{Stage: "proxy", Status: StatusStarted})
	// no panic, nothing to assert beyond "did not crash"
}

func TestRecorderCollectsEventsInOrder(t *testing.T) {
	r := &Recorder{}
	r.Report(Event{Stage: "proxy", Status: StatusStarted})
	r.Report(Event{Stage: "proxy", Status: StatusCompleted})
	r.Report(Event{Stage: "subtitles", Status: StatusFailed, Err: errors.New("boom")})

	assert.Len(t, r.Events, 3)
	assert.Equal(t, "proxy", r.Events[0].Stage)
	assert.Equal(t, StatusCompleted, r.Events[1].Status)
	assert.Equal(t, "subtitles", r.Events[2].Stage)
	assert.EqualError(t, r.Events[2].Err, "boom")
}
