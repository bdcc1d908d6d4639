// Package vosfx implements the VO Selector & SFX Planner (spec.md §4.K):
// protagonist identification, voice-over line selection under per-act
// caps, and deterministic sound-effect synthesis at every clip boundary.
// The WAV read/write shape (44-byte header, interleaved 16-bit stereo PCM)
// is grounded directly on the teacher's renderer.go (trimSilenceEnd reads
// this exact layout); SynthesizeSweep is the mirror write operation.
package vosfx

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cinecut/internal/atomicfile"
	"cinecut/internal/dialogue"
	"cinecut/internal/manifest"
)

const (
	sampleRateHz   = 48000
	bitsPerSample  = 16
	numChannels    = 2
	voMinWords     = 6
	voMinDurationS = 0.8
	voMaxDurationS = 8.0
	voTargetLUFS   = -16.0
	maxVOLines     = 3
	maxAct1Lines   = 1
	maxAct2Lines   = 2
)

// IdentifyProtagonist counts dialogue-line occurrences per speaker and
// returns the name with the highest count. When no event carries a
// speaker name, it falls back to fallbackName (the Structural Analyzer's
// protagonist_name field, spec.md §4.K).
func IdentifyProtagonist(events []dialogue.Event, fallbackName string) string {
	counts := make(map[string]int)
	var order []string
	for _, e := range events {
		if e.Speaker == "" {
			continue
		}
		if _, seen := counts[e.Speaker]; !seen {
			order = append(order, e.Speaker)
		}
		counts[e.Speaker]++
	}
	if len(order) == 0 {
		return fallbackName
	}

	best := order[0]
	bestCount := counts[best]
	for _, name := range order[1:] {
		if counts[name] > bestCount {
			best = name
			bestCount = counts[name]
		}
	}
	return best
}

// LineCandidate is one protagonist dialogue line plus the context the
// selector needs that vosfx itself doesn't derive (the line's act and the
// beat_type of its nearest clip).
type LineCandidate struct {
	Event           dialogue.Event
	Act             manifest.Act
	NearestBeatType manifest.BeatType
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func durationS(e dialogue.Event) float64 {
	return float64(e.EndMs-e.StartMs) / 1000.0
}

func isPreferredBeat(beat manifest.BeatType) bool {
	switch beat {
	case manifest.BeatIncitingIncident, manifest.BeatEscalation, manifest.BeatRelationship:
		return true
	default:
		return false
	}
}

func eligible(c LineCandidate) bool {
	d := durationS(c.Event)
	return wordCount(c.Event.Plaintext) >= voMinWords && d >= voMinDurationS && d <= voMaxDurationS
}

// SelectVOLines picks up to maxVOLines protagonist lines under the
// per-act caps (spec.md §4.K): at most 1 in Act1, up to 2 in Act2, 0 in
// Act3, preferring lines at inciting_incident/escalation_beat/
// relationship_beat clips. clips is the assembled output sequence, used to
// find each line's insert_at_clip_index by source-time containment.
func SelectVOLines(candidates []LineCandidate, clips []manifest.ClipEntry) []manifest.VoClip {
	act1 := filterAct(candidates, manifest.Act1)
	act2 := filterAct(candidates, manifest.Act2)
	// Act3 lines are never eligible (spec.md §4.K: "0 in Act 3").

	selected := append(pickBest(act1, maxAct1Lines), pickBest(act2, maxAct2Lines)...)
	if len(selected) > maxVOLines {
		selected = selected[:maxVOLines]
	}

	out := make([]manifest.VoClip, 0, len(selected))
	for _, c := range selected {
		out = append(out, manifest.VoClip{
			SourceStartS:      float64(c.Event.StartMs) / 1000.0,
			SourceEndS:        float64(c.Event.EndMs) / 1000.0,
			DialogueText:      c.Event.Plaintext,
			InsertAtClipIndex: nearestClipIndex(clips, c.Event.MidpointS()),
			TargetLUFS:        voTargetLUFS,
		})
	}
	return out
}

func filterAct(candidates []LineCandidate, act manifest.Act) []LineCandidate {
	var out []LineCandidate
	for _, c := range candidates {
		if c.Act == act && eligible(c) {
			out = append(out, c)
		}
	}
	return out
}

// pickBest sorts preferred-beat-type lines first (stable, so ties keep
// chronological order), then takes up to limit.
func pickBest(candidates []LineCandidate, limit int) []LineCandidate {
	sorted := append([]LineCandidate(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := isPreferredBeat(sorted[i].NearestBeatType), isPreferredBeat(sorted[j].NearestBeatType)
		if pi != pj {
			return pi
		}
		return sorted[i].Event.StartMs < sorted[j].Event.StartMs
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

func nearestClipIndex(clips []manifest.ClipEntry, ptsS float64) int {
	best := 0
	bestDelta := math.MaxFloat64
	for i, c := range clips {
		if ptsS >= c.SourceStartS && ptsS <= c.SourceEndS {
			return i
		}
		delta := math.Min(math.Abs(ptsS-c.SourceStartS), math.Abs(ptsS-c.SourceEndS))
		if delta < bestDelta {
			bestDelta = delta
			best = i
		}
	}
	return best
}

// PlanSfxEvents emits one SfxEvent per clip boundary on the output
// timeline (spec.md §4.K): "hard-cut" when both adjacent clips share a
// zone, "act-boundary" when the boundary crosses zones or borders the
// silence segment inserted at silenceBoundaryIndex (-1 if none).
func PlanSfxEvents(clips []manifest.ClipEntry, silenceBoundaryIndex int, cacheDir, vibeKey string) ([]manifest.SfxEvent, error) {
	var events []manifest.SfxEvent
	cumulative := 0.0
	for i, c := range clips {
		if i > 0 {
			tier := "hard-cut"
			if clips[i-1].NarrativeZone != c.NarrativeZone || i == silenceBoundaryIndex {
				tier = "act-boundary"
			}
			path, err := SynthesizeSweep(tier, vibeKey, cacheDir)
			if err != nil {
				return nil, err
			}
			events = append(events, manifest.SfxEvent{
				TriggerTimeS:    cumulative,
				Tier:            tier,
				SynthesizedPath: path,
			})
		}
		cumulative += c.DurationS()
	}
	return events, nil
}

// sweepParams are the fixed per-tier synthesis parameters (spec.md §4.K).
type sweepParams struct {
	durationS  float64
	startHz    float64
	endHz      float64
}

func paramsForTier(tier string) sweepParams {
	if tier == "act-boundary" {
		return sweepParams{durationS: 1.2, startHz: 400, endHz: 80}
	}
	return sweepParams{durationS: 0.4, startHz: 800, endHz: 200}
}

// SynthesizeSweep deterministically generates (or returns the cached path
// for) a linear-sine-sweep WAV for tier+vibe, 48kHz stereo 16-bit PCM.
// Same parameters always produce an identical file (spec.md §4.K).
func SynthesizeSweep(tier, vibeKey, cacheDir string) (string, error) {
	path := filepath.Join(cacheDir, "sfx_"+tier+"_"+vibeKey+".wav")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	p := paramsForTier(tier)
	samples := generateSweep(p.durationS, p.startHz, p.endHz, sampleRateHz)
	data := encodeWAV(samples, sampleRateHz)
	if err := atomicfile.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// generateSweep produces a linear-frequency chirp with a short fade tail,
// mono samples duplicated to both output channels.
func generateSweep(durationS, startHz, endHz float64, sampleRate int) []int16 {
	n := int(durationS * float64(sampleRate))
	mono := make([]float64, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sampleRate)
		// Linear instantaneous frequency sweep: phase = 2*pi*(f0*t + (f1-f0)/(2*T)*t^2).
		phase := 2 * math.Pi * (startHz*t + (endHz-startHz)/(2*durationS)*t*t)
		fade := 1.0
		tailStart := durationS * 0.7
		if t > tailStart {
			fade = 1.0 - (t-tailStart)/(durationS-tailStart)
		}
		mono[i] = math.Sin(phase) * fade * 0.8
	}

	out := make([]int16, n*numChannels)
	for i, v := range mono {
		s := int16(v * 32767)
		out[i*numChannels] = s
		out[i*numChannels+1] = s
	}
	return out
}

// encodeWAV writes a canonical 44-byte-header PCM WAV (the same layout
// trimSilenceEnd parses in the teacher's renderer.go).
func encodeWAV(samples []int16, sampleRate int) []byte {
	dataSize := len(samples) * 2
	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8

	buf := make([]byte, 44+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(numChannels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bitsPerSample))
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[44+i*2:46+i*2], uint16(s))
	}
	return buf
}
