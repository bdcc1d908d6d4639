// cinecut is the command-line entry point (spec.md §6): a single-shot,
// resumable run of the Stage Orchestrator over one film + subtitle file.
// Grounded on the teacher's main.go wiring shape (parse flags, construct
// the managed directories, wire concrete adapters, run) but recast from an
// HTTP server's handler registration into one cobra command, since
// spec.md §6 describes a CLI, not a service.
package main

import (
	"context"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"cinecut/internal/cinelog"
	"cinecut/internal/cinerr"
	"cinecut/internal/config"
	"cinecut/internal/external"
	"cinecut/internal/gpulock"
	"cinecut/internal/manifest"
	"cinecut/internal/orchestrator"
	"cinecut/internal/progress"
	"cinecut/internal/signals"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		return cinerr.ExitCode(err)
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		subtitlePath string
		vibeKey      string
		review       bool
		manifestPath string
		textModelURL string
	)

	cmd := &cobra.Command{
		Use:   "cinecut SOURCE",
		Short: "Generate a cinematic trailer from a feature film and its subtitles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, posArgs []string) error {
			return runPipeline(cmd.Context(), posArgs[0], subtitlePath, vibeKey, review, manifestPath, textModelURL)
		},
	}

	cmd.Flags().StringVar(&subtitlePath, "subtitle", "", "Path to the .srt/.ass subtitle file (required)")
	cmd.Flags().StringVar(&vibeKey, "vibe", "", "Vibe profile key, e.g. \"action\" (required)")
	cmd.Flags().BoolVar(&review, "review", false, "Pause for manifest review before conform")
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "Manifest output path (default: <work-dir>/trailer_manifest.json)")
	cmd.Flags().StringVar(&textModelURL, "text-model", "", "Override the text model HTTP endpoint")
	_ = cmd.MarkFlagRequired("subtitle")
	_ = cmd.MarkFlagRequired("vibe")

	return cmd
}

func runPipeline(ctx context.Context, sourcePath, subtitlePath, vibeKey string, review bool, manifestPath, textModelURLOverride string) error {
	cfg, err := config.Load()
	if err != nil {
		return cinerr.Input("", "configuration load failed", err)
	}
	cinelog.Init(cfg.Log.Level, cfg.Log.Format)

	if textModelURLOverride != "" {
		cfg.TextModelURL = textModelURLOverride
	}

	workDir, err := workDirFor(sourcePath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return cinerr.Input(workDir, "could not create work directory", err)
	}
	if err := os.MkdirAll(cfg.MusicCacheDir, 0o755); err != nil {
		return cinerr.Input(cfg.MusicCacheDir, "could not create music cache directory", err)
	}

	if manifestPath == "" {
		manifestPath = filepath.Join(workDir, "trailer_manifest.json")
	}
	outputPath := filepath.Join(workDir, "cinecut_mix.wav")

	transcoder := external.NewFFmpegTranscoder(cfg.FFmpegPath, cfg.FFprobePath)
	visionRuntime := external.NewHTTPModelRuntime(cfg.VisionModelURL)
	textRuntime := external.NewHTTPModelRuntime(cfg.TextModelURL)
	filtergraphRunner := external.NewFFmpegFiltergraphRunner(cfg.FFmpegPath)
	musicAPI := external.NewHTTPMusicAPI(cfg.MusicSearchURL)
	gpu := gpulock.New(nvidiaSMIFreeVRAM)

	deps := orchestrator.Dependencies{
		Transcoder:        transcoder,
		VisionRuntime:     visionRuntime,
		TextRuntime:       textRuntime,
		FiltergraphRunner: filtergraphRunner,
		MusicAPI:          musicAPI,
		GPU:               gpu,
		FaceDetector:      signals.DefaultFaceDetector(),
		Embedder:          nil, // no embedding library in the pack; zone-matching degrades to anchor-ratio zoning
		FrameLoader:       loadImageFile,
		Reporter:          &terminalReporter{},
	}

	params := orchestrator.Params{
		SourcePath:    sourcePath,
		SubtitlePath:  subtitlePath,
		VibeKey:       vibeKey,
		WorkDir:       workDir,
		ManifestPath:  manifestPath,
		OutputPath:    outputPath,
		MusicCacheDir: cfg.MusicCacheDir,
	}
	if review {
		params.ReviewHook = confirmManifestInteractively
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, err := orchestrator.Run(runCtx, params, deps)
	if err != nil {
		return err
	}

	fmt.Printf("trailer manifest written to %s (%d clips)\n", manifestPath, len(m.Clips))
	fmt.Printf("mixed audio written to %s\n", outputPath)
	return nil
}

// workDirFor derives a stable per-source work directory under the user's
// cache home, keyed by the source file's base name (spec.md §5: one work
// directory per source, reused across resumed runs).
func workDirFor(sourcePath string) (string, error) {
	home, err := os.UserCacheDir()
	if err != nil {
		return "", cinerr.Input(sourcePath, "could not resolve cache directory", err)
	}
	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	return filepath.Join(home, "cinecut", base), nil
}

// nvidiaSMIFreeVRAM shells out to nvidia-smi for free VRAM, the same
// "invoke an external binary, parse its stdout" idiom the teacher's
// downloader.go uses for yt-dlp version checks. A missing/failing
// nvidia-smi surfaces as an error, which gpulock.Acquire then correctly
// refuses to proceed past.
func nvidiaSMIFreeVRAM(ctx context.Context) (int, error) {
	cmd := exec.CommandContext(ctx, "nvidia-smi", "--query-gpu=memory.free", "--format=csv,noheader,nounits")
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("nvidia-smi unavailable: %w", err)
	}
	line := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
	freeMiB, err := strconv.Atoi(line)
	if err != nil {
		return 0, fmt.Errorf("unexpected nvidia-smi output %q: %w", line, err)
	}
	return freeMiB, nil
}

// loadImageFile decodes a keyframe frame file for signal extraction and
// scene-change detection. PNG is the only format internal/external's
// Transcoder ever writes frames as.
func loadImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

// confirmManifestInteractively implements the --review flag (spec.md §6):
// print a short summary and block on a y/n prompt before conform proceeds.
func confirmManifestInteractively(m *manifest.TrailerManifest) bool {
	fmt.Printf("\nassembled %d clips, %d sfx events, %d vo clips — proceed to conform? [y/N] ", len(m.Clips), len(m.SfxEvents), len(m.VoClips))
	var answer string
	_, _ = fmt.Scanln(&answer)
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// terminalReporter renders stage progress to stderr, one line per
// transition — the same plain log.Printf("[stage] ...") shape as the
// teacher's analyzer.go/renderer.go progress logging, routed through the
// progress.Reporter interface instead of a direct log call.
type terminalReporter struct{}

func (terminalReporter) Report(e progress.Event) {
	switch e.Status {
	case progress.StatusStarted:
		cinelog.WithField("stage", e.Stage).Info("started")
	case progress.StatusSkipped:
		cinelog.WithField("stage", e.Stage).Info("skipped (already complete): ", e.Detail)
	case progress.StatusCompleted:
		cinelog.WithField("stage", e.Stage).Info("completed: ", e.Detail)
	case progress.StatusFailed:
		cinelog.WithField("stage", e.Stage).Error("failed: ", e.Err)
	}
}
