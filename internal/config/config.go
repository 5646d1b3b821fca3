// Package config загружает конфигурацию студии из YAML, .env и переменных окружения.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Profile выбирает один из вариантов настройки захвата.
type Profile string

const (
	// ProfileQuality согласует до 4K и рендерит с 60 fps.
	ProfileQuality Profile = "quality"
	// ProfilePerformance ограничивается HD, рендерит с 30 fps и предупреждает о низкой частоте кадров.
	ProfilePerformance Profile = "performance"
)

// Config - полная конфигурация студии.
type Config struct {
	Profile   Profile         `yaml:"profile"`
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Camera    CameraConfig    `yaml:"camera"`
	Render    RenderConfig    `yaml:"render"`
	Recording RecordingConfig `yaml:"recording"`
	Transcode TranscodeConfig `yaml:"transcode"`
	Export    ExportConfig    `yaml:"export"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	RequestsPerMin  int           `yaml:"requests_per_minute"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type CameraConfig struct {
	// Facing - начальное направление камеры: "user" или "environment".
	Facing string `yaml:"facing"`
	// FrontDevice и BackDevice закрепляют ID устройств, если по названию направление не понять.
	FrontDevice string `yaml:"front_device"`
	BackDevice  string `yaml:"back_device"`
}

type RenderConfig struct {
	// MaxWidth и MaxHeight - физические границы поверхности рендера.
	MaxWidth  int `yaml:"max_width"`
	MaxHeight int `yaml:"max_height"`
	// Width и Height - запрошенный размер рендера; ноль означает границы поверхности.
	Width    int `yaml:"width"`
	Height   int `yaml:"height"`
	FPSLimit int `yaml:"fps_limit"`
	// FPSWarnBelow - порог, ниже которого в лог пишется предупреждение о частоте кадров. Ноль отключает.
	FPSWarnBelow float64 `yaml:"fps_warn_below"`
	// Lens - встроенный фильтр кадров: "none", "grayscale" или "sepia".
	Lens string `yaml:"lens"`
}

type RecordingConfig struct {
	FPS      int    `yaml:"fps"`
	MimeType string `yaml:"mime_type"`
}

type TranscodeConfig struct {
	FFmpegBin string `yaml:"ffmpeg_bin"`
	WorkDir   string `yaml:"work_dir"`
}

type ExportConfig struct {
	DownloadDir string `yaml:"download_dir"`
	Filename    string `yaml:"filename"`
	ShareURL    string `yaml:"share_url"`
	ShareTitle  string `yaml:"share_title"`
	ShareText   string `yaml:"share_text"`
}

// Default возвращает конфигурацию по умолчанию. Значения, зависящие от профиля,
// остаются нулевыми, пока их не заполнит applyProfile.
func Default() Config {
	return Config{
		Profile: ProfileQuality,
		HTTP: HTTPConfig{
			Addr:            "localhost:8080",
			RequestsPerMin:  600,
			ShutdownTimeout: 5 * time.Second,
		},
		Camera: CameraConfig{Facing: "user"},
		Render: RenderConfig{
			MaxWidth:  1920,
			MaxHeight: 1080,
		},
		Recording: RecordingConfig{MimeType: "video/mp4"},
		Transcode: TranscodeConfig{FFmpegBin: "ffmpeg"},
		Export: ExportConfig{
			DownloadDir: "recordings",
			Filename:    "recording.mp4",
			ShareTitle:  "Recorded Video",
			ShareText:   "Check out this recording!",
		},
	}
}

type profileDefaults struct {
	fpsLimit     int
	recordFPS    int
	fpsWarnBelow float64
}

var profiles = map[Profile]profileDefaults{
	ProfileQuality:     {fpsLimit: 60, recordFPS: 60},
	ProfilePerformance: {fpsLimit: 30, recordFPS: 30, fpsWarnBelow: 24},
}

// applyProfile заполняет поля, которые пользователь не задал.
func (c *Config) applyProfile() {
	p, ok := profiles[c.Profile]
	if !ok {
		return
	}
	if c.Render.FPSLimit == 0 {
		c.Render.FPSLimit = p.fpsLimit
	}
	if c.Recording.FPS == 0 {
		c.Recording.FPS = p.recordFPS
	}
	if c.Render.FPSWarnBelow == 0 {
		c.Render.FPSWarnBelow = p.fpsWarnBelow
	}
	if c.Render.Width == 0 {
		c.Render.Width = c.Render.MaxWidth
	}
	if c.Render.Height == 0 {
		c.Render.Height = c.Render.MaxHeight
	}
}

// Validate проверяет конфигурацию на значения, с которыми студия не запустится.
func (c *Config) Validate() error {
	var errs []error
	if _, ok := profiles[c.Profile]; !ok {
		errs = append(errs, fmt.Errorf("profile: unknown profile %q", c.Profile))
	}
	switch c.Camera.Facing {
	case "user", "environment", "front", "back":
	default:
		errs = append(errs, fmt.Errorf("camera.facing: must be user or environment, got %q", c.Camera.Facing))
	}
	if c.Render.MaxWidth <= 0 || c.Render.MaxHeight <= 0 {
		errs = append(errs, errors.New("render: max_width and max_height must be positive"))
	}
	if c.Render.Width > c.Render.MaxWidth || c.Render.Height > c.Render.MaxHeight {
		errs = append(errs, errors.New("render: width/height exceed the surface bounds"))
	}
	if c.Render.FPSLimit <= 0 || c.Render.FPSLimit > 120 {
		errs = append(errs, fmt.Errorf("render.fps_limit: must be within 1..120, got %d", c.Render.FPSLimit))
	}
	if c.Recording.FPS <= 0 || c.Recording.FPS > 120 {
		errs = append(errs, fmt.Errorf("recording.fps: must be within 1..120, got %d", c.Recording.FPS))
	}
	if !strings.HasPrefix(c.Recording.MimeType, "video/") {
		errs = append(errs, fmt.Errorf("recording.mime_type: not a video type: %q", c.Recording.MimeType))
	}
	if strings.TrimSpace(c.Transcode.FFmpegBin) == "" {
		errs = append(errs, errors.New("transcode.ffmpeg_bin: must not be empty"))
	}
	if c.Export.Filename == "" || filepath.Base(c.Export.Filename) != c.Export.Filename {
		errs = append(errs, fmt.Errorf("export.filename: must be a plain file name, got %q", c.Export.Filename))
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr: must not be empty"))
	}
	return errors.Join(errs...)
}
