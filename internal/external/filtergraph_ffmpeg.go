package external

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"cinecut/internal/cinerr"
	"cinecut/internal/mixplan"
)

// FFmpegFiltergraphRunner turns a mixplan.Plan into a literal FFmpeg
// filter_complex string and runs it. Directly adapts the teacher's
// renderer.go RenderFinalMix/RenderPreview filter-string assembly
// (loudnorm, adelay, amix ... normalize=0, sidechaincompress) — the same
// FFmpeg syntax, now driven by the plan instead of ad hoc Go code.
type FFmpegFiltergraphRunner struct {
	FFmpegPath string
}

// NewFFmpegFiltergraphRunner builds a runner using ffmpeg resolved from
// PATH unless overridden.
func NewFFmpegFiltergraphRunner(ffmpegPath string) *FFmpegFiltergraphRunner {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegFiltergraphRunner{FFmpegPath: ffmpegPath}
}

// Run executes plan against inputs (one file per plan.Stems entry, same
// order) and writes outputPath.
func (r *FFmpegFiltergraphRunner) Run(ctx context.Context, plan mixplan.Plan, inputs []string, outputPath string) error {
	if len(inputs) != len(plan.Stems) {
		return cinerr.MixPlan("input count does not match plan stem count", fmt.Errorf("inputs=%d stems=%d", len(inputs), len(plan.Stems)))
	}

	filterComplex, outLabel, err := BuildFilterComplex(plan)
	if err != nil {
		return err
	}

	args := []string{"-y"}
	for _, in := range inputs {
		args = append(args, "-i", in)
	}
	args = append(args,
		"-filter_complex", filterComplex,
		"-map", "["+outLabel+"]",
		"-ar", fmt.Sprintf("%d", mixplan.SampleRateHz),
		"-ac", fmt.Sprintf("%d", mixplan.Channels),
		outputPath,
	)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.FFmpegPath, args...)
	hideWindow(cmd)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return cinerr.MixPlan("filtergraph execution failed", fmt.Errorf("%w", err))
	}
	return nil
}

// BuildFilterComplex constructs the literal filter_complex string for plan.
// Exported so it is independently unit-testable without invoking FFmpeg
// (spec.md §9: "makes the plan unit-testable independently of media").
func BuildFilterComplex(plan mixplan.Plan) (filterComplex, outLabel string, err error) {
	filmIdx := stemIndex(plan, mixplan.StemFilm)
	if filmIdx < 0 {
		return "", "", cinerr.MixPlan("film_audio stem missing", nil)
	}

	var b bytes.Buffer
	mixLabels := []string{}

	// Per-stem resample to 48kHz stereo + loudnorm at the stem's target.
	for i, stem := range plan.Stems {
		label := fmt.Sprintf("norm%d", i)
		fmt.Fprintf(&b, "[%d:a]aresample=%d,aformat=channel_layouts=stereo,loudnorm=I=%.1f:TP=-1.5:LRA=11[%s];",
			i, mixplan.SampleRateHz, stem.TargetLUFS, label)
	}

	musicIdx := stemIndex(plan, mixplan.StemMusic)
	voIdx := stemIndex(plan, mixplan.StemVO)

	for i, stem := range plan.Stems {
		label := fmt.Sprintf("norm%d", i)
		if stem.Kind == mixplan.StemMusic && plan.Ducking != nil {
			sidechainLabel, scErr := buildSidechain(&b, filmIdx, voIdx)
			if scErr != nil {
				return "", "", scErr
			}
			duckedLabel := fmt.Sprintf("ducked%d", i)
			fmt.Fprintf(&b, "[%s][%s]sidechaincompress=threshold=%.1fdB:ratio=%.1f:attack=%.0f:release=%.0f[%s];",
				label, sidechainLabel, plan.Ducking.ThresholdDB, plan.Ducking.RatioToOne,
				plan.Ducking.AttackMs, plan.Ducking.ReleaseMs, duckedLabel)
			mixLabels = append(mixLabels, duckedLabel)
			continue
		}
		mixLabels = append(mixLabels, label)
	}

	outLabel = "mixout"
	fmt.Fprintf(&b, "%samix=inputs=%d:duration=longest:normalize=0[%s]", labelRefs(mixLabels), len(mixLabels), outLabel)

	return b.String(), outLabel, nil
}

func stemIndex(plan mixplan.Plan, kind mixplan.StemKind) int {
	for i, s := range plan.Stems {
		if s.Kind == kind {
			return i
		}
	}
	return -1
}

func labelRefs(labels []string) string {
	var b bytes.Buffer
	for _, l := range labels {
		fmt.Fprintf(&b, "[%s]", l)
	}
	return b.String()
}

// buildSidechain mixes film (+ VO if present) down to a mono control
// signal driving the ducking compressor (spec.md §4.L: "sidechain input
// driven by (film_audio + vo_track)").
func buildSidechain(b *bytes.Buffer, filmIdx, voIdx int) (string, error) {
	if filmIdx < 0 {
		return "", cinerr.MixPlan("sidechain requires film_audio stem", nil)
	}
	filmLabel := fmt.Sprintf("norm%d", filmIdx)
	if voIdx < 0 {
		return filmLabel, nil
	}
	voLabel := fmt.Sprintf("norm%d", voIdx)
	sideLabel := "sidechain"
	fmt.Fprintf(b, "[%s][%s]amix=inputs=2:duration=longest:normalize=0[%s];", filmLabel, voLabel, sideLabel)
	return sideLabel, nil
}
