// Audio stem materialization for the conform stage (spec.md §4.L/§4.M):
// mixplan.Plan models each stem as a single file path, but SFX events and
// VO clips are a set of per-event/per-clip snippets placed at specific
// trigger times. This file bridges the two by baking each set into one
// silent-buffer WAV with every snippet spliced in at its offset. The WAV
// codec (44-byte header, interleaved 16-bit stereo PCM at 48kHz) is the
// same layout internal/vosfx writes for its SFX sweeps.
package orchestrator

import (
	"encoding/binary"
	"os"
	"sort"

	"cinecut/internal/atomicfile"
	"cinecut/internal/cinerr"
	"cinecut/internal/manifest"
	"cinecut/internal/mixplan"
)

const (
	audioSampleRateHz  = mixplan.SampleRateHz
	audioNumChannels   = mixplan.Channels
	audioBitsPerSample = 16
	wavHeaderBytes     = 44
)

// readWAVSamples parses a canonical 44-byte-header PCM WAV into interleaved
// int16 samples. It assumes 16-bit stereo at audioSampleRateHz, the only
// layout anything in this package ever writes or extracts.
func readWAVSamples(path string) ([]int16, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cinerr.Media(path, "could not read wav file", err)
	}
	if len(data) < wavHeaderBytes {
		return nil, cinerr.Media(path, "wav file too short to contain a header", nil)
	}
	body := data[wavHeaderBytes:]
	samples := make([]int16, len(body)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(body[i*2 : i*2+2]))
	}
	return samples, nil
}

// writeWAVSamples writes samples as a canonical 44-byte-header PCM WAV.
func writeWAVSamples(path string, samples []int16) error {
	dataSize := len(samples) * 2
	byteRate := audioSampleRateHz * audioNumChannels * audioBitsPerSample / 8
	blockAlign := audioNumChannels * audioBitsPerSample / 8

	buf := make([]byte, wavHeaderBytes+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(audioNumChannels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(audioSampleRateHz))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(audioBitsPerSample))
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[wavHeaderBytes+i*2:wavHeaderBytes+i*2+2], uint16(s))
	}
	return atomicfile.WriteFile(path, buf, 0o644)
}

// concatWAVFiles reads each of paths in order and concatenates their
// samples into one file at outPath. Used to build film_audio.wav out of
// the per-clip segments the Transcoder extracted.
func concatWAVFiles(paths []string, outPath string) error {
	var all []int16
	for _, p := range paths {
		samples, err := readWAVSamples(p)
		if err != nil {
			return err
		}
		all = append(all, samples...)
	}
	return writeWAVSamples(outPath, all)
}

// timedSnippet is one clip of audio plus the offset (in seconds, on the
// track being built) at which it should be spliced in.
type timedSnippet struct {
	path      string
	offsetS   float64
}

// buildTimedTrack lays snippets into a silent buffer totalDurationS long,
// copying each snippet's samples starting at its offset (later snippets
// overwrite earlier ones on overlap, which only happens if two SFX sweeps
// land within each other's tail — rare and harmless for a trailer mix).
func buildTimedTrack(snippets []timedSnippet, totalDurationS float64, outPath string) error {
	totalSamples := int(totalDurationS*float64(audioSampleRateHz)) * audioNumChannels
	if totalSamples < 0 {
		totalSamples = 0
	}
	track := make([]int16, totalSamples)

	sorted := append([]timedSnippet(nil), snippets...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].offsetS < sorted[j].offsetS })

	for _, sn := range sorted {
		samples, err := readWAVSamples(sn.path)
		if err != nil {
			return err
		}
		startIdx := int(sn.offsetS*float64(audioSampleRateHz)) * audioNumChannels
		for i, s := range samples {
			idx := startIdx + i
			if idx < 0 || idx >= len(track) {
				continue
			}
			track[idx] = s
		}
	}
	return writeWAVSamples(outPath, track)
}

// sfxSnippets converts planned SfxEvent triggers into timedSnippets against
// the assembled output timeline.
func sfxSnippets(events []manifest.SfxEvent) []timedSnippet {
	out := make([]timedSnippet, 0, len(events))
	for _, e := range events {
		out = append(out, timedSnippet{path: e.SynthesizedPath, offsetS: e.TriggerTimeS})
	}
	return out
}

// voSnippets converts resolved VoClip audio (already extracted to AudioPath
// by the orchestrator) into timedSnippets, placed at the output-timeline
// position of their InsertAtClipIndex.
func voSnippets(clips []manifest.VoClip, outputOffsets []float64) []timedSnippet {
	out := make([]timedSnippet, 0, len(clips))
	for _, c := range clips {
		if c.AudioPath == "" || c.InsertAtClipIndex < 0 || c.InsertAtClipIndex >= len(outputOffsets) {
			continue
		}
		out = append(out, timedSnippet{path: c.AudioPath, offsetS: outputOffsets[c.InsertAtClipIndex]})
	}
	return out
}

// outputOffsets computes each clip's cumulative start time on the final
// output timeline, in assembled order.
func outputOffsets(clips []manifest.ClipEntry) []float64 {
	offsets := make([]float64, len(clips))
	cumulative := 0.0
	for i, c := range clips {
		offsets[i] = cumulative
		cumulative += c.DurationS()
	}
	return offsets
}

// monoSamplesFromWAV reads a stereo 16-bit PCM WAV and down-mixes it to
// mono float32 in [-1, 1], the input shape music.DetectBPMGrid expects.
func monoSamplesFromWAV(path string) ([]float32, error) {
	samples, err := readWAVSamples(path)
	if err != nil {
		return nil, err
	}
	n := len(samples) / audioNumChannels
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		l := float32(samples[i*audioNumChannels])
		r := float32(samples[i*audioNumChannels+1])
		out[i] = (l + r) / 2.0 / 32768.0
	}
	return out, nil
}
