package vosfx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinecut/internal/dialogue"
	"cinecut/internal/manifest"
)

func ev(speaker, text string, startMs, endMs int64) dialogue.Event {
	return dialogue.NewEvent(startMs, endMs, text, speaker)
}

func TestIdentifyProtagonistMostFrequentSpeaker(t *testing.T) {
	events := []dialogue.Event{
		ev("Alice", "hello there", 0, 1000),
		ev("Bob", "hi", 1000, 2000),
		ev("Alice", "good to see you", 2000, 3000),
		ev("Alice", "come with me", 3000, 4000),
	}
	assert.Equal(t, "Alice", IdentifyProtagonist(events, "fallback"))
}

func TestIdentifyProtagonistFallsBackWhenNoSpeakerNames(t *testing.T) {
	events := []dialogue.Event{
		ev("", "hello there", 0, 1000),
	}
	assert.Equal(t, "Kai Reeves", IdentifyProtagonist(events, "Kai Reeves"))
}

func longLine(startMs int64, durationMs int64, act manifest.Act, beat manifest.BeatType) LineCandidate {
	return LineCandidate{
		Event:           ev("Protagonist", "this line has definitely more than six words in it", startMs, startMs+durationMs),
		Act:             act,
		NearestBeatType: beat,
	}
}

func TestSelectVOLinesRespectsPerActCaps(t *testing.T) {
	candidates := []LineCandidate{
		longLine(1000, 2000, manifest.Act1, manifest.BeatEscalation),
		longLine(5000, 2000, manifest.Act1, manifest.BeatEscalation), // second act1 line, must be dropped
		longLine(10000, 2000, manifest.Act2, manifest.BeatRelationship),
		longLine(15000, 2000, manifest.Act2, manifest.BeatEscalation),
		longLine(20000, 2000, manifest.Act2, manifest.BeatMoneyShot), // third act2 candidate, capped out
		longLine(25000, 2000, manifest.Act3, manifest.BeatClimax),    // act3 never eligible
	}
	clips := []manifest.ClipEntry{
		{SourceStartS: 0, SourceEndS: 30},
	}
	lines := SelectVOLines(candidates, clips)
	require.Len(t, lines, 3)

	act1Count, act2Count := 0, 0
	for _, l := range lines {
		switch {
		case l.SourceStartS < 10:
			act1Count++
		default:
			act2Count++
		}
	}
	assert.Equal(t, 1, act1Count)
	assert.Equal(t, 2, act2Count)
}

func TestSelectVOLinesExcludesShortOrSparseLines(t *testing.T) {
	candidates := []LineCandidate{
		{Event: ev("P", "too short", 0, 2000), Act: manifest.Act1, NearestBeatType: manifest.BeatEscalation},         // < 6 words
		{Event: ev("P", "hi there friend how are you doing", 0, 200), Act: manifest.Act1, NearestBeatType: manifest.BeatEscalation}, // < 0.8s
	}
	lines := SelectVOLines(candidates, nil)
	assert.Empty(t, lines)
}

func TestSelectVOLinesPrefersPreferredBeatTypes(t *testing.T) {
	candidates := []LineCandidate{
		longLine(1000, 2000, manifest.Act2, manifest.BeatMoneyShot),      // not preferred
		longLine(5000, 2000, manifest.Act2, manifest.BeatIncitingIncident), // preferred
	}
	lines := SelectVOLines(candidates, nil)
	require.Len(t, lines, 2)
	// preferred beat type line should sort first even though it starts later
	assert.Equal(t, 5.0, lines[0].SourceStartS)
}

func TestPlanSfxEventsTiersByZoneTransition(t *testing.T) {
	clips := []manifest.ClipEntry{
		{SourceStartS: 0, SourceEndS: 2, NarrativeZone: manifest.ZoneBeginning},
		{SourceStartS: 10, SourceEndS: 12, NarrativeZone: manifest.ZoneBeginning},
		{SourceStartS: 20, SourceEndS: 22, NarrativeZone: manifest.ZoneEscalation},
	}
	dir := t.TempDir()
	events, err := PlanSfxEvents(clips, -1, dir, "action")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "hard-cut", events[0].Tier)
	assert.Equal(t, "act-boundary", events[1].Tier)
	assert.InDelta(t, 2.0, events[0].TriggerTimeS, 1e-9)
	assert.InDelta(t, 4.0, events[1].TriggerTimeS, 1e-9)
}

func TestPlanSfxEventsMarksSilenceBoundaryAsActBoundary(t *testing.T) {
	clips := []manifest.ClipEntry{
		{SourceStartS: 0, SourceEndS: 2, NarrativeZone: manifest.ZoneBeginning},
		{SourceStartS: 10, SourceEndS: 12, NarrativeZone: manifest.ZoneBeginning},
	}
	dir := t.TempDir()
	events, err := PlanSfxEvents(clips, 1, dir, "action")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "act-boundary", events[0].Tier)
}

func TestSynthesizeSweepIsDeterministicAndCached(t *testing.T) {
	dir := t.TempDir()
	path1, err := SynthesizeSweep("hard-cut", "action", dir)
	require.NoError(t, err)
	data1, err := os.ReadFile(path1)
	require.NoError(t, err)

	os.Remove(filepath.Join(dir, "other.txt")) // no-op, just exercising dir path
	path2, err := SynthesizeSweep("hard-cut", "action", dir)
	require.NoError(t, err)
	assert.Equal(t, path1, path2)
	data2, err := os.ReadFile(path2)
	require.NoError(t, err)
	assert.Equal(t, data1, data2)
}

func TestSynthesizeSweepDiffersByTier(t *testing.T) {
	dir := t.TempDir()
	hardCutPath, err := SynthesizeSweep("hard-cut", "action", dir)
	require.NoError(t, err)
	actBoundaryPath, err := SynthesizeSweep("act-boundary", "action", dir)
	require.NoError(t, err)

	hardCutData, err := os.ReadFile(hardCutPath)
	require.NoError(t, err)
	actBoundaryData, err := os.ReadFile(actBoundaryPath)
	require.NoError(t, err)
	assert.NotEqual(t, len(hardCutData), len(actBoundaryData))
}

func TestEncodeWAVHeaderLayout(t *testing.T) {
	samples := []int16{1, 2, 3, 4}
	buf := encodeWAV(samples, sampleRateHz)
	assert.Equal(t, "RIFF", string(buf[0:4]))
	assert.Equal(t, "WAVE", string(buf[8:12]))
	assert.Equal(t, "data", string(buf[36:40]))
	assert.Len(t, buf, 44+len(samples)*2)
}
