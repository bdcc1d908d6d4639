// Package config loads process configuration from environment variables
// (optionally via a .env file), adapted from
// sonic0214-CreativeStudioServer/config/config.go's getEnvOrDefault idiom.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything cmd/cinecut needs to wire the orchestrator.
type Config struct {
	ModelsDir string

	VisionModelURL string // HTTP completion endpoint, port 8089 by default
	TextModelURL   string // HTTP completion endpoint, port 8090 by default

	ModelHTTPTimeout   time.Duration // 120s per spec.md §5
	MusicAPIReadTimeout time.Duration // 30s per spec.md §5
	MusicDownloadTimeout time.Duration // 60s per spec.md §5

	MusicCacheDir  string // global, not per-source: <user>/.cinecut/music
	MusicSearchURL string // royalty-free track search endpoint

	FFmpegPath  string
	FFprobePath string

	Log LogConfig
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment, loading a .env file first
// if present (optional — a missing .env is not an error, matching the
// teacher's config loader).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env is optional; proceed with process environment only.
		_ = err
	}

	modelTimeout, err := parseDurationEnv("CINECUT_MODEL_TIMEOUT", "120s")
	if err != nil {
		return nil, err
	}
	musicReadTimeout, err := parseDurationEnv("CINECUT_MUSIC_READ_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	musicDownloadTimeout, err := parseDurationEnv("CINECUT_MUSIC_DOWNLOAD_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}

	homeDir, _ := os.UserHomeDir()
	defaultMusicCache := ""
	if homeDir != "" {
		defaultMusicCache = homeDir + "/.cinecut/music"
	}

	cfg := &Config{
		ModelsDir:      getEnvOrDefault("CINECUT_MODELS_DIR", "./models"),
		VisionModelURL: getEnvOrDefault("CINECUT_VISION_MODEL_URL", "http://127.0.0.1:8089"),
		TextModelURL:   getEnvOrDefault("CINECUT_TEXT_MODEL_URL", "http://127.0.0.1:8090"),

		ModelHTTPTimeout:     modelTimeout,
		MusicAPIReadTimeout:  musicReadTimeout,
		MusicDownloadTimeout: musicDownloadTimeout,

		MusicCacheDir:  getEnvOrDefault("CINECUT_MUSIC_CACHE_DIR", defaultMusicCache),
		MusicSearchURL: getEnvOrDefault("CINECUT_MUSIC_SEARCH_URL", "https://music-search.internal.example/v1/search"),

		FFmpegPath:  getEnvOrDefault("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getEnvOrDefault("FFPROBE_PATH", "ffprobe"),

		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
	}
	return cfg, nil
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnvOrDefault(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration %q: %w", key, raw, err)
	}
	return d, nil
}

