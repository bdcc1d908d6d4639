// Package music implements the BPM / Music Resolver (spec.md §4.J):
// royalty-free track resolution via external.MusicAPI with permanent
// on-disk caching, and BPM/beat-grid detection. The onset-envelope FFT,
// autocorrelation, and phase-anchored beat generation are adapted directly
// from the teacher's dsp.go (computeOnsetEnvelope/estimateBPM/
// estimateBeatTimes) — the same onset-flux-then-autocorrelation shape,
// retargeted at vibe-range clamping instead of a fixed 60-200 BPM band.
package music

import (
	"context"
	"math"
	"math/cmplx"
	"sort"

	"cinecut/internal/cinelog"
	"cinecut/internal/external"
	"cinecut/internal/manifest"
	"cinecut/internal/vibe"
)

// Resolve fetches the royalty-free track for the vibe's tag set, caching
// permanently under cacheDir. Any network/HTTP failure degrades to
// ("", nil) per spec.md §4.J — the pipeline must continue with no music
// bed.
func Resolve(ctx context.Context, api external.MusicAPI, profile vibe.Profile, cacheDir string) (path string, err error) {
	path, err = api.SearchAndFetch(ctx, profile.MusicTagSet, cacheDir)
	if err != nil {
		cinelog.WithField("vibe", profile.Key).Warn("music resolution failed, continuing without a music bed: ", err)
		return "", nil
	}
	if path == "" {
		cinelog.WithField("vibe", profile.Key).Warn("no royalty-free track found, continuing without a music bed")
	}
	return path, nil
}

// minBeatsInFirst30s is the threshold below which a detection run is
// classified "non-beat-tracked" (spec.md §4.J edge cases).
const minBeatsInFirst30s = 8

// DetectBPMGrid runs onset-envelope BPM detection on a mono PCM buffer and
// produces the final BpmGrid, applying all of spec.md §4.J's edge-case and
// safety rules: non-beat-tracked fallback, octave correction, and a final
// range clamp.
func DetectBPMGrid(samples []float32, sampleRateHz int, durationS float64, profile vibe.Profile) manifest.BpmGrid {
	const frameSize = 2048
	const hopSize = 512

	onset := computeOnsetEnvelope(samples, sampleRateHz, frameSize, hopSize)
	tempo := estimateBPM(onset, sampleRateHz, hopSize, profile.DefaultBPM)
	beats := estimateBeatTimes(onset, sampleRateHz, durationS, tempo, hopSize)

	if isNonBeatTracked(tempo, beats, durationS) {
		return fixedIntervalGrid(profile, durationS)
	}

	tempo = correctOctave(tempo, profile)
	tempo = clampToRange(tempo, profile)

	return manifest.BpmGrid{
		DetectedBPM: tempo,
		BeatTimesS:  beats,
		Source:      "detected",
	}
}

func isNonBeatTracked(tempo float64, beats []float64, durationS float64) bool {
	if tempo == 0 || len(beats) == 0 {
		return true
	}
	window := math.Min(30.0, durationS)
	count := 0
	for _, b := range beats {
		if b <= window {
			count++
		}
	}
	return count < minBeatsInFirst30s
}

// fixedIntervalGrid is the non-beat-tracked fallback: a fixed-interval
// grid at 60/default_bpm spacing (spec.md §4.J).
func fixedIntervalGrid(profile vibe.Profile, durationS float64) manifest.BpmGrid {
	bpm := profile.DefaultBPM
	if bpm <= 0 {
		bpm = 120
	}
	interval := 60.0 / bpm
	var beats []float64
	for t := 0.0; t < durationS; t += interval {
		beats = append(beats, math.Round(t*1000)/1000)
	}
	return manifest.BpmGrid{
		DetectedBPM: bpm,
		BeatTimesS:  beats,
		Source:      "vibe-default",
	}
}

// correctOctave halves or doubles tempo, preferring whichever of {tempo,
// doubled, halved} lands inside the vibe's expected BPM range. If none of
// the three land strictly inside the range (spec.md §8 scenario 6: tempo
// 220 against range [120,160] — doubled 440 and halved 110 are both still
// out of range), it picks whichever candidate is closest to the range
// rather than leaving tempo untouched, so the final clampToRange clamps
// from the nearest candidate instead of from the original, often wildly
// off-range, tempo.
func correctOctave(tempo float64, profile vibe.Profile) float64 {
	if profile.BPMRangeMin <= 0 || profile.BPMRangeMax <= 0 {
		return tempo
	}
	if inRange(tempo, profile) {
		return tempo
	}
	doubled := tempo * 2
	halved := tempo / 2
	if inRange(doubled, profile) {
		return doubled
	}
	if inRange(halved, profile) {
		return halved
	}

	best := tempo
	bestDist := distanceToRange(tempo, profile)
	for _, candidate := range []float64{doubled, halved} {
		if d := distanceToRange(candidate, profile); d < bestDist {
			best = candidate
			bestDist = d
		}
	}
	return best
}

func inRange(tempo float64, profile vibe.Profile) bool {
	return tempo >= profile.BPMRangeMin && tempo <= profile.BPMRangeMax
}

// distanceToRange is 0 inside [BPMRangeMin, BPMRangeMax], otherwise the gap
// to the nearer edge.
func distanceToRange(tempo float64, profile vibe.Profile) float64 {
	if tempo < profile.BPMRangeMin {
		return profile.BPMRangeMin - tempo
	}
	if tempo > profile.BPMRangeMax {
		return tempo - profile.BPMRangeMax
	}
	return 0
}

// clampToRange is the final safety clamp (spec.md §4.J: "always clamp
// detected tempo into the vibe range as a final safety").
func clampToRange(tempo float64, profile vibe.Profile) float64 {
	if profile.BPMRangeMin <= 0 || profile.BPMRangeMax <= 0 {
		return tempo
	}
	if tempo < profile.BPMRangeMin {
		return profile.BPMRangeMin
	}
	if tempo > profile.BPMRangeMax {
		return profile.BPMRangeMax
	}
	return tempo
}

// --- FFT / onset / autocorrelation, adapted from the teacher's dsp.go ---

func nextPow2(n int) int {
	v := 1
	for v < n {
		v <<= 1
	}
	return v
}

func fft(x []complex128) []complex128 {
	n := len(x)
	out := make([]complex128, n)
	copy(out, x)
	if n <= 1 {
		return out
	}

	j := 0
	for i := 0; i < n-1; i++ {
		if i < j {
			out[i], out[j] = out[j], out[i]
		}
		m := n >> 1
		for j >= m && m > 0 {
			j -= m
			m >>= 1
		}
		j += m
	}

	for size := 2; size <= n; size <<= 1 {
		half := size >> 1
		step := -2 * math.Pi / float64(size)
		wLen := complex(math.Cos(step), math.Sin(step))
		for i := 0; i < n; i += size {
			w := complex(1, 0)
			for k := 0; k < half; k++ {
				u := out[i+k]
				v := out[i+k+half] * w
				out[i+k] = u + v
				out[i+k+half] = u - v
				w *= wLen
			}
		}
	}
	return out
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

func computeOnsetEnvelope(samples []float32, sr, frameSize, hopSize int) []float64 {
	n := len(samples)
	numFrames := (n - frameSize) / hopSize
	if numFrames <= 0 {
		return nil
	}
	fftSize := nextPow2(frameSize)
	window := hannWindow(frameSize)
	onset := make([]float64, numFrames)
	prevMag := make([]float64, fftSize/2+1)
	mag := make([]float64, fftSize/2+1)
	frame := make([]complex128, fftSize)

	for i := 0; i < numFrames; i++ {
		start := i * hopSize
		for k := range frame {
			frame[k] = 0
		}
		for j := 0; j < frameSize && start+j < n; j++ {
			frame[j] = complex(float64(samples[start+j])*window[j], 0)
		}
		spec := fft(frame)
		for j := 0; j <= fftSize/2; j++ {
			mag[j] = cmplx.Abs(spec[j])
		}
		flux := 0.0
		for j := range mag {
			if j < len(prevMag) {
				d := mag[j] - prevMag[j]
				if d > 0 {
					flux += d
				}
			}
		}
		onset[i] = flux
		copy(prevMag, mag)
	}
	return onset
}

// estimateBPM autocorrelates the onset envelope within 60-200 BPM,
// weighted toward defaultBPM to resist octave errors, then normalizes the
// raw result into 60-200 before vibe-range correction runs. An envelope
// with no onset energy at any lag (silence) yields tempo 0.
func estimateBPM(onset []float64, sr int, hopSize int, defaultBPM float64) float64 {
	if len(onset) < 100 {
		return defaultBPM
	}
	if defaultBPM <= 0 {
		defaultBPM = 120
	}

	minLag := sr * 60 / (200 * hopSize)
	maxLag := sr * 60 / (60 * hopSize)
	if maxLag >= len(onset) {
		maxLag = len(onset) - 1
	}

	bestLag := minLag
	bestCorr := -1.0
	for lag := minLag; lag <= maxLag; lag++ {
		corr := 0.0
		count := 0
		for i := 0; i+lag < len(onset); i++ {
			corr += onset[i] * onset[i+lag]
			count++
		}
		if count > 0 {
			corr /= float64(count)
		}

		bpmApprox := 60.0 / (float64(lag) * float64(hopSize) / float64(sr))
		weight := math.Exp(-0.5 * math.Pow((bpmApprox-defaultBPM)/40.0, 2))
		weightedCorr := corr * (0.8 + 0.2*weight)

		if weightedCorr > bestCorr {
			bestCorr = weightedCorr
			bestLag = lag
		}
	}
	if bestCorr <= 0 {
		return 0
	}

	beatPeriodSec := float64(bestLag) * float64(hopSize) / float64(sr)
	if beatPeriodSec <= 0 {
		return defaultBPM
	}
	bpm := 60.0 / beatPeriodSec

	for bpm > 200 {
		bpm /= 2
	}
	for bpm < 60 {
		bpm *= 2
	}
	return math.Round(bpm*10) / 10
}

// estimateBeatTimes phase-anchors the beat grid on the strongest onset
// peak in the first 5 seconds, then generates beats both directions from
// that anchor.
func estimateBeatTimes(onset []float64, sr int, duration, bpm float64, hopSize int) []float64 {
	if bpm <= 0 {
		bpm = 120
	}
	beatPeriod := 60.0 / bpm

	anchorTime := 0.0
	if len(onset) > 0 {
		searchFrames := int(5.0 * float64(sr) / float64(hopSize))
		if searchFrames > len(onset) {
			searchFrames = len(onset)
		}
		bestOnsetIdx := 0
		bestOnsetVal := 0.0
		for i := 0; i < searchFrames; i++ {
			if onset[i] > bestOnsetVal {
				bestOnsetVal = onset[i]
				bestOnsetIdx = i
			}
		}
		anchorTime = float64(bestOnsetIdx) * float64(hopSize) / float64(sr)
	}

	var beats []float64
	for t := anchorTime; t >= 0; t -= beatPeriod {
		beats = append(beats, math.Round(t*1000)/1000)
	}
	for t := anchorTime + beatPeriod; t < duration; t += beatPeriod {
		beats = append(beats, math.Round(t*1000)/1000)
	}

	sort.Float64s(beats)
	return beats
}
