package vibe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryHasEighteenVibes(t *testing.T) {
	assert.Len(t, Keys(), 18)
}

func TestGetKnownVibe(t *testing.T) {
	p, err := Get("action")
	require.NoError(t, err)
	assert.Equal(t, "action", p.Key)
	assert.Greater(t, p.BPMRangeMax, p.BPMRangeMin)
	assert.NotEmpty(t, p.MusicTagSet)
	assert.Len(t, p.ZoneAnchorSentences, 3)
}

func TestGetUnknownVibe(t *testing.T) {
	_, err := Get("nonexistent-vibe")
	require.Error(t, err)
	var uv *UnknownVibeError
	require.ErrorAs(t, err, &uv)
	assert.Equal(t, "nonexistent-vibe", uv.Key)
}

func TestAllProfilesInternallyConsistent(t *testing.T) {
	for _, key := range Keys() {
		p, err := Get(key)
		require.NoError(t, err)
		assert.Greaterf(t, p.TargetClipCountMax, p.TargetClipCountMin, "vibe %s", key)
		assert.Greaterf(t, p.BPMRangeMax, p.BPMRangeMin, "vibe %s", key)
		assert.Lessf(t, p.AudioLUFSTarget, 0.0, "vibe %s", key)
		assert.Lessf(t, p.DuckFloorDB, 0.0, "vibe %s", key)
	}
}
