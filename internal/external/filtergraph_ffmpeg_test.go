package external

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinecut/internal/mixplan"
)

func TestBuildFilterComplexRejectsMissingFilmStem(t *testing.T) {
	plan := mixplan.Plan{Stems: []mixplan.Stem{{Kind: mixplan.StemMusic, Path: "m.mp3"}}}
	_, _, err := BuildFilterComplex(plan)
	require.Error(t, err)
}

func TestBuildFilterComplexAlwaysNormalizeZero(t *testing.T) {
	plan := mixplan.Build(mixplan.Params{
		FilmAudioPath: "film.wav", FilmLUFS: -14,
		MusicPath: "music.mp3", SfxPath: "sfx.wav", VoPath: "vo.wav",
		DuckFloorDB: -14,
	})
	fc, outLabel, err := BuildFilterComplex(plan)
	require.NoError(t, err)
	assert.Contains(t, fc, "amix=inputs=4:duration=longest:normalize=0")
	assert.Equal(t, "mixout", outLabel)
}

func TestBuildFilterComplexAppliesDuckingOnlyWithMusic(t *testing.T) {
	withMusic := mixplan.Build(mixplan.Params{FilmAudioPath: "film.wav", FilmLUFS: -14, MusicPath: "m.mp3", DuckFloorDB: -14})
	fc, _, err := BuildFilterComplex(withMusic)
	require.NoError(t, err)
	assert.Contains(t, fc, "sidechaincompress")

	noMusic := mixplan.Build(mixplan.Params{FilmAudioPath: "film.wav", FilmLUFS: -14})
	fc2, _, err := BuildFilterComplex(noMusic)
	require.NoError(t, err)
	assert.NotContains(t, fc2, "sidechaincompress")
}

func TestBuildFilterComplexEveryStemLoudnormed(t *testing.T) {
	plan := mixplan.Build(mixplan.Params{
		FilmAudioPath: "film.wav", FilmLUFS: -14,
		MusicPath: "m.mp3", SfxPath: "s.wav", VoPath: "v.wav", DuckFloorDB: -14,
	})
	fc, _, err := BuildFilterComplex(plan)
	require.NoError(t, err)
	assert.Equal(t, 4, countOccurrences(fc, "loudnorm="))
}

func countOccurrences(s, sub string) int {
	count := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			count++
		}
	}
	return count
}
