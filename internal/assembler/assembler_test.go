package assembler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinecut/internal/manifest"
	"cinecut/internal/vibe"
)

func testProfile() vibe.Profile {
	return vibe.Profile{
		Key:                "action",
		Act1AvgCutS:        3.5,
		Act2AvgCutS:        2.2,
		Act3AvgCutS:        1.4,
		TargetClipCountMin: 3,
		TargetClipCountMax: 6,
	}
}

func clip(zone manifest.NarrativeZone, score, start, end float64) manifest.ClipEntry {
	return manifest.ClipEntry{
		SourceStartS:    start,
		SourceEndS:      end,
		NarrativeZone:   zone,
		Act:             manifest.Act2,
		EmotionalSignal: score,
	}
}

func TestAssembleOrdersZonesAscendingScoreDescending(t *testing.T) {
	candidates := []manifest.ClipEntry{
		clip(manifest.ZoneClimax, 0.9, 100, 101),
		clip(manifest.ZoneBeginning, 0.2, 1, 2),
		clip(manifest.ZoneEscalation, 0.7, 50, 51),
		clip(manifest.ZoneBeginning, 0.5, 3, 4),
	}
	result := Assemble(candidates, testProfile(), nil)

	require.Len(t, result.Clips, 4)
	// zone order non-decreasing
	for i := 1; i < len(result.Clips); i++ {
		require.GreaterOrEqual(t, manifest.ZoneRank(result.Clips[i].NarrativeZone), manifest.ZoneRank(result.Clips[i-1].NarrativeZone))
	}
	// within BEGINNING zone, score descending
	assert.Equal(t, 0.5, result.Clips[0].EmotionalSignal)
	assert.Equal(t, 0.2, result.Clips[1].EmotionalSignal)
}

func TestAssemblePacingTrimNeverBelowMinDuration(t *testing.T) {
	// target*1.5 for act2 is 3.3s; a 50s clip should trim down to 3.3s, not
	// below MinClipDurationS.
	candidates := []manifest.ClipEntry{
		clip(manifest.ZoneBeginning, 0.5, 10, 60),
	}
	profile := testProfile()
	profile.TargetClipCountMin = 1
	profile.TargetClipCountMax = 1
	result := Assemble(candidates, profile, nil)

	require.Len(t, result.Clips, 1)
	got := result.Clips[0].DurationS()
	assert.InDelta(t, profile.Act2AvgCutS*1.5, got, 1e-9)
	assert.GreaterOrEqual(t, got, MinClipDurationS)
}

func TestAssemblePacingTrimLeavesShortClipsAlone(t *testing.T) {
	candidates := []manifest.ClipEntry{
		clip(manifest.ZoneBeginning, 0.5, 10, 11),
	}
	profile := testProfile()
	profile.TargetClipCountMin = 1
	profile.TargetClipCountMax = 1
	result := Assemble(candidates, profile, nil)

	require.Len(t, result.Clips, 1)
	assert.InDelta(t, 1.0, result.Clips[0].DurationS(), 1e-9)
}

func TestSnapToBeatGridRoundsNearTwoBeats(t *testing.T) {
	// beat interval 1.0s; clip duration 1.9s -> naturalBeats=1.9, rounds to 2 beats.
	grid := &manifest.BpmGrid{BeatTimesS: []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}}
	clips := []manifest.ClipEntry{
		{SourceStartS: 2.1, SourceEndS: 4.0, NarrativeZone: manifest.ZoneBeginning},
	}
	out := snapToBeatGrid(clips, grid)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].BeatAlignedStartS)
	assert.InDelta(t, 2.0, *out[0].BeatAlignedStartS, 1e-9)
	assert.InDelta(t, 2.0, out[0].DurationS(), 1e-9)
}

func TestSnapToBeatGridDisallowsAdjustmentBelowHalfBeat(t *testing.T) {
	grid := &manifest.BpmGrid{BeatTimesS: []float64{0, 1, 2, 3, 4, 5}}
	clips := []manifest.ClipEntry{
		{SourceStartS: 2.0, SourceEndS: 2.3, NarrativeZone: manifest.ZoneBeginning},
	}
	out := snapToBeatGrid(clips, grid)
	require.Len(t, out, 1)
	assert.InDelta(t, 0.3, out[0].DurationS(), 1e-9)
}

func TestSnapToBeatGridNoGridIsNoop(t *testing.T) {
	clips := []manifest.ClipEntry{
		{SourceStartS: 2.0, SourceEndS: 2.3, NarrativeZone: manifest.ZoneBeginning},
	}
	out := snapToBeatGrid(clips, nil)
	assert.Equal(t, clips, out)
}

func TestEscalationToClimaxBoundaryFound(t *testing.T) {
	clips := []manifest.ClipEntry{
		clip(manifest.ZoneBeginning, 0.5, 1, 2),
		clip(manifest.ZoneEscalation, 0.5, 3, 4),
		clip(manifest.ZoneClimax, 0.5, 5, 6),
	}
	idx := escalationToClimaxBoundary(clips)
	assert.Equal(t, 2, idx)
}

func TestEscalationToClimaxBoundaryAbsent(t *testing.T) {
	clips := []manifest.ClipEntry{
		clip(manifest.ZoneBeginning, 0.5, 1, 2),
		clip(manifest.ZoneClimax, 0.5, 5, 6),
	}
	idx := escalationToClimaxBoundary(clips)
	assert.Equal(t, -1, idx)
}

func TestAssembleConvergesUpToMinimumByReAddingFromPool(t *testing.T) {
	// 8 candidates in one zone, target max forces a small selection, but
	// min requires re-adding from the pool.
	var candidates []manifest.ClipEntry
	for i := 0; i < 8; i++ {
		candidates = append(candidates, clip(manifest.ZoneBeginning, float64(8-i)/10.0, float64(i), float64(i)+0.5))
	}
	profile := testProfile()
	profile.TargetClipCountMin = 6
	profile.TargetClipCountMax = 6
	result := Assemble(candidates, profile, nil)
	assert.Len(t, result.Clips, 6)
}

func TestAssembleCapsAtMaximumKeepingHighestScores(t *testing.T) {
	var candidates []manifest.ClipEntry
	for i := 0; i < 10; i++ {
		candidates = append(candidates, clip(manifest.ZoneBeginning, float64(10-i)/10.0, float64(i), float64(i)+0.5))
	}
	profile := testProfile()
	profile.TargetClipCountMin = 3
	profile.TargetClipCountMax = 3
	result := Assemble(candidates, profile, nil)
	assert.Len(t, result.Clips, 3)
	// the three highest-score clips (1.0, 0.9, 0.8) should have survived.
	var scores []float64
	for _, c := range result.Clips {
		scores = append(scores, c.EmotionalSignal)
	}
	assert.ElementsMatch(t, []float64{1.0, 0.9, 0.8}, scores)
}
