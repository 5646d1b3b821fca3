package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const envPrefix = "LENS_RECORDER_"

// Loader объединяет значения по умолчанию, необязательный YAML, .env файлы и переменные окружения.
type Loader struct {
	Path     string   // YAML файл, необязательный
	EnvFiles []string // .env файлы, отсутствующие пропускаются
	Logger   zerolog.Logger
	// Getenv - это os.Getenv, если не подменен в тестах.
	Getenv func(string) string
}

// Load возвращает объединенную и проверенную конфигурацию.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.Path != "" {
		if err := l.loadFile(l.Path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := l.loadEnvFiles(); err != nil {
		return nil, err
	}
	if err := l.applyEnv(&cfg); err != nil {
		return nil, err
	}

	cfg.applyProfile()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// loadFile строго разбирает YAML: неизвестные ключи считаются ошибкой.
func (l *Loader) loadFile(path string, cfg *Config) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- путь задает оператор
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("config file contains multiple documents or trailing content")
	}

	l.Logger.Debug().Str("path", path).Msg("config file loaded")
	return nil
}

func (l *Loader) loadEnvFiles() error {
	for _, f := range l.EnvFiles {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", f, err)
		}
		l.Logger.Debug().Str("path", f).Msg("env file loaded")
	}
	return nil
}

func (l *Loader) getenv(key string) string {
	if l.Getenv != nil {
		return l.Getenv(key)
	}
	return os.Getenv(key)
}

func (l *Loader) applyEnv(cfg *Config) error {
	str := func(name string, dst *string) {
		if v := strings.TrimSpace(l.getenv(envPrefix + name)); v != "" {
			l.Logger.Debug().Str("key", envPrefix+name).Str("source", "environment").Msg("config override")
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v := strings.TrimSpace(l.getenv(envPrefix + name))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = n
		return nil
	}

	var profile string
	str("PROFILE", &profile)
	if profile != "" {
		cfg.Profile = Profile(profile)
	}
	str("HTTP_ADDR", &cfg.HTTP.Addr)
	str("CAMERA_FACING", &cfg.Camera.Facing)
	str("FRONT_DEVICE", &cfg.Camera.FrontDevice)
	str("BACK_DEVICE", &cfg.Camera.BackDevice)
	str("FFMPEG_BIN", &cfg.Transcode.FFmpegBin)
	str("WORK_DIR", &cfg.Transcode.WorkDir)
	str("DOWNLOAD_DIR", &cfg.Export.DownloadDir)
	str("SHARE_URL", &cfg.Export.ShareURL)
	str("LENS", &cfg.Render.Lens)
	if v := strings.TrimSpace(l.getenv("LOG_LEVEL")); v != "" && cfg.Log.Level == "" {
		cfg.Log.Level = v
	}

	for name, dst := range map[string]*int{
		"RENDER_FPS_LIMIT": &cfg.Render.FPSLimit,
		"RECORD_FPS":       &cfg.Recording.FPS,
		"RENDER_WIDTH":     &cfg.Render.Width,
		"RENDER_HEIGHT":    &cfg.Render.Height,
	} {
		if err := num(name, dst); err != nil {
			return err
		}
	}
	return nil
}
