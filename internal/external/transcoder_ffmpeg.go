package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"cinecut/internal/cinerr"
)

// FFmpegTranscoder is the default Transcoder, grounded on the teacher's
// exec.Command(ffmpegPath, ...) + hideWindow + stderr-capture idiom
// (analyzer.go's decodeToPCM, renderer.go throughout).
type FFmpegTranscoder struct {
	FFmpegPath  string
	FFprobePath string
}

// NewFFmpegTranscoder builds a transcoder using ffmpeg/ffprobe resolved
// from PATH unless overridden.
func NewFFmpegTranscoder(ffmpegPath, ffprobePath string) *FFmpegTranscoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegTranscoder{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath}
}

func (t *FFmpegTranscoder) run(ctx context.Context, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.FFmpegPath, args...)
	hideWindow(cmd)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return cinerr.Media("", "ffmpeg failed", fmt.Errorf("%w", err))
	}
	return nil
}

// ExtractProxy produces a 420p CFR 24fps H.264 proxy (spec.md §6).
func (t *FFmpegTranscoder) ExtractProxy(ctx context.Context, source, workDir string) (string, error) {
	proxyPath := workDir + "/proxy.mp4"
	err := t.run(ctx, "-y",
		"-i", source,
		"-vf", "scale=-2:420,fps=24",
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "23",
		"-c:a", "aac", "-b:a", "128k",
		proxyPath,
	)
	if err != nil {
		return "", cinerr.Media(source, "proxy extraction failed", err)
	}
	return proxyPath, nil
}

// ExtractFrame pulls a single frame at timestampS from proxyPath.
func (t *FFmpegTranscoder) ExtractFrame(ctx context.Context, proxyPath string, timestampS float64, outPath string) error {
	err := t.run(ctx, "-y",
		"-ss", fmt.Sprintf("%.3f", timestampS),
		"-i", proxyPath,
		"-frames:v", "1",
		outPath,
	)
	if err != nil {
		return cinerr.Media(proxyPath, "frame extraction failed", err)
	}
	return nil
}

// ExtractAudioSegment extracts [startS, endS) from source to a WAV file.
func (t *FFmpegTranscoder) ExtractAudioSegment(ctx context.Context, source string, startS, endS float64, outPath string) error {
	dur := endS - startS
	if dur <= 0 {
		return cinerr.Media(source, "zero-or-negative audio segment duration", fmt.Errorf("start=%.3f end=%.3f", startS, endS))
	}
	err := t.run(ctx, "-y",
		"-ss", fmt.Sprintf("%.3f", startS),
		"-i", source,
		"-t", fmt.Sprintf("%.3f", dur),
		"-ar", "48000", "-ac", "2",
		outPath,
	)
	if err != nil {
		return cinerr.Media(source, "audio segment extraction failed", err)
	}
	return nil
}

type ffprobeStream struct {
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
	CodecType string `json:"codec_type"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

// Probe reports duration/width/height/fps for source (spec.md §6). A
// zero-duration or zero-stream result is a MediaError (spec.md §7).
func (t *FFmpegTranscoder) Probe(ctx context.Context, source string) (ProbeResult, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.FFprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format", "-show_streams",
		source,
	)
	hideWindow(cmd)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return ProbeResult{}, cinerr.Media(source, "probe failed", err)
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &parsed); err != nil {
		return ProbeResult{}, cinerr.Media(source, "probe output unparsable", err)
	}

	durationS, _ := strconv.ParseFloat(parsed.Format.Duration, 64)
	if durationS <= 0 || len(parsed.Streams) == 0 {
		return ProbeResult{}, cinerr.Media(source, "probe reports 0 duration or 0 streams", nil)
	}

	var width, height int
	var fps float64
	for _, s := range parsed.Streams {
		if s.CodecType == "video" {
			width, height = s.Width, s.Height
			fps = parseFrameRate(s.RFrameRate)
			break
		}
	}
	return ProbeResult{DurationS: durationS, Width: width, Height: height, FPS: fps}, nil
}

func parseFrameRate(raw string) float64 {
	parts := strings.SplitN(raw, "/", 2)
	if len(parts) != 2 {
		v, _ := strconv.ParseFloat(raw, 64)
		return v
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}
