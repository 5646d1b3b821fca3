package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := (&Loader{Logger: zerolog.Nop(), Getenv: envMap(nil)}).Load()
	require.NoError(t, err)

	assert.Equal(t, ProfileQuality, cfg.Profile)
	assert.Equal(t, 60, cfg.Render.FPSLimit)
	assert.Equal(t, 60, cfg.Recording.FPS)
	assert.Zero(t, cfg.Render.FPSWarnBelow)
	assert.Equal(t, 1920, cfg.Render.Width)
	assert.Equal(t, 1080, cfg.Render.Height)
	assert.Equal(t, "user", cfg.Camera.Facing)
	assert.Equal(t, "recording.mp4", cfg.Export.Filename)
}

func TestLoadPerformanceProfile(t *testing.T) {
	cfg, err := (&Loader{
		Logger: zerolog.Nop(),
		Getenv: envMap(map[string]string{"LENS_RECORDER_PROFILE": "performance"}),
	}).Load()
	require.NoError(t, err)

	assert.Equal(t, ProfilePerformance, cfg.Profile)
	assert.Equal(t, 30, cfg.Render.FPSLimit)
	assert.Equal(t, 30, cfg.Recording.FPS)
	assert.InDelta(t, 24.0, cfg.Render.FPSWarnBelow, 0.001)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeFile(t, "studio.yaml", `
profile: performance
camera:
  facing: environment
  back_device: video2
render:
  fps_limit: 25
transcode:
  ffmpeg_bin: /opt/ffmpeg
`)
	cfg, err := (&Loader{
		Path:   path,
		Logger: zerolog.Nop(),
		Getenv: envMap(map[string]string{
			"LENS_RECORDER_FFMPEG_BIN": "/usr/bin/ffmpeg",
			"LENS_RECORDER_RECORD_FPS": "15",
		}),
	}).Load()
	require.NoError(t, err)

	assert.Equal(t, "environment", cfg.Camera.Facing)
	assert.Equal(t, "video2", cfg.Camera.BackDevice)
	assert.Equal(t, 25, cfg.Render.FPSLimit, "explicit values survive the profile")
	assert.Equal(t, 15, cfg.Recording.FPS)
	assert.Equal(t, "/usr/bin/ffmpeg", cfg.Transcode.FFmpegBin, "environment wins over the file")
}

func TestLoadRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"unknown key", "c.yaml", "camera:\n  zoom: 2\n", "strict config parse error"},
		{"json", "c.json", "{}", "unsupported config format"},
		{"two documents", "c.yaml", "profile: quality\n---\nprofile: performance\n", "multiple documents"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			_, err := (&Loader{Path: path, Logger: zerolog.Nop(), Getenv: envMap(nil)}).Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := writeFile(t, "empty.yaml", "")
	cfg, err := (&Loader{Path: path, Logger: zerolog.Nop(), Getenv: envMap(nil)}).Load()
	require.NoError(t, err)
	assert.Equal(t, ProfileQuality, cfg.Profile)
}

func TestLoadLensFromEnv(t *testing.T) {
	path := writeFile(t, "studio.yaml", "render:\n  lens: grayscale\n")

	cfg, err := (&Loader{Path: path, Logger: zerolog.Nop(), Getenv: envMap(nil)}).Load()
	require.NoError(t, err)
	assert.Equal(t, "grayscale", cfg.Render.Lens)

	cfg, err = (&Loader{
		Path:   path,
		Logger: zerolog.Nop(),
		Getenv: envMap(map[string]string{"LENS_RECORDER_LENS": "sepia"}),
	}).Load()
	require.NoError(t, err)
	assert.Equal(t, "sepia", cfg.Render.Lens)
}

func TestLoadBadEnvNumber(t *testing.T) {
	_, err := (&Loader{
		Logger: zerolog.Nop(),
		Getenv: envMap(map[string]string{"LENS_RECORDER_RENDER_WIDTH": "wide"}),
	}).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LENS_RECORDER_RENDER_WIDTH")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := Default()
		c.applyProfile()
		return c
	}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown profile", func(c *Config) { c.Profile = "turbo" }, "profile"},
		{"bad facing", func(c *Config) { c.Camera.Facing = "up" }, "camera.facing"},
		{"oversized render", func(c *Config) { c.Render.Width = 4000 }, "exceed the surface bounds"},
		{"fps limit", func(c *Config) { c.Render.FPSLimit = 500 }, "render.fps_limit"},
		{"record fps", func(c *Config) { c.Recording.FPS = 0 }, "recording.fps"},
		{"mime", func(c *Config) { c.Recording.MimeType = "audio/ogg" }, "recording.mime_type"},
		{"ffmpeg", func(c *Config) { c.Transcode.FFmpegBin = " " }, "transcode.ffmpeg_bin"},
		{"filename", func(c *Config) { c.Export.Filename = "../x.mp4" }, "export.filename"},
		{"addr", func(c *Config) { c.HTTP.Addr = "" }, "http.addr"},
	}

	c := valid()
	require.NoError(t, c.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
