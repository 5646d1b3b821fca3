package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lens-recorder/internal/domain"
	"lens-recorder/internal/infrastructure/logger"
	"lens-recorder/internal/metrics"
)

const (
	inputName  = "input.mp4"
	outputName = "output.mp4"
)

// Config - настройки движка перепаковки.
type Config struct {
	Bin     string
	WorkDir string // пусто - директория внутри os.TempDir
}

// Engine перепаковывает записи через ffmpeg, чтобы индекс был в начале файла.
// Движок загружается при первом использовании; неудачная загрузка повторяется при следующем.
type Engine struct {
	cfg    Config
	logger zerolog.Logger

	mu      sync.Mutex
	bin     string
	workDir string
	version string
}

// NewEngine создает незагруженный движок.
func NewEngine(cfg Config, log zerolog.Logger) *Engine {
	if cfg.Bin == "" {
		cfg.Bin = "ffmpeg"
	}
	return &Engine{cfg: cfg, logger: log}
}

// Load находит бинарник, проверяет его версию и готовит рабочую директорию. Повторные вызовы безопасны.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadLocked(ctx)
}

func (e *Engine) loadLocked(ctx context.Context) error {
	if e.bin != "" {
		return nil
	}

	bin, err := exec.LookPath(e.cfg.Bin)
	if err != nil {
		return fmt.Errorf("find %s: %w", e.cfg.Bin, err)
	}

	out, err := exec.CommandContext(ctx, bin, "-hide_banner", "-version").Output()
	if err != nil {
		return fmt.Errorf("check version of %s: %w", bin, err)
	}
	version, _, _ := strings.Cut(string(out), "\n")

	workDir := e.cfg.WorkDir
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "lens-recorder")
	}
	if err := os.MkdirAll(workDir, 0o750); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	e.bin, e.workDir, e.version = bin, workDir, strings.TrimSpace(version)
	e.logger.Info().Str(logger.FieldPath, bin).Str("version", e.version).Msg("transcode engine loaded")
	return nil
}

// Loaded сообщает, готов ли движок.
func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bin != ""
}

// Remux переписывает контейнер без перекодирования. Любая ошибка - ProcessingFailed,
// частичный результат не возвращается.
func (e *Engine) Remux(ctx context.Context, in domain.Blob) (domain.Blob, error) {
	start := time.Now()
	out, step, err := e.remux(ctx, in)
	if err != nil {
		metrics.TranscodeErrors.WithLabelValues(step).Inc()
		return domain.Blob{}, domain.NewError(domain.KindProcessingFailed, "transcode "+step, err)
	}
	metrics.TranscodeDuration.Observe(time.Since(start).Seconds())
	e.logger.Info().
		Int(logger.FieldBytes, in.Size()).
		Int("output_bytes", out.Size()).
		Dur("took", time.Since(start)).
		Msg("recording remuxed")
	return out, nil
}

func (e *Engine) remux(ctx context.Context, in domain.Blob) (domain.Blob, string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.loadLocked(ctx); err != nil {
		return domain.Blob{}, "load", err
	}
	if in.Size() == 0 {
		return domain.Blob{}, "write", errors.New("empty recording")
	}

	jobDir := filepath.Join(e.workDir, uuid.NewString())
	if err := os.Mkdir(jobDir, 0o750); err != nil {
		return domain.Blob{}, "write", fmt.Errorf("create job dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(jobDir); err != nil {
			e.logger.Warn().Err(err).Str(logger.FieldPath, jobDir).Msg("remove job dir")
		}
	}()

	input := filepath.Join(jobDir, inputName)
	output := filepath.Join(jobDir, outputName)
	if err := os.WriteFile(input, in.Data, 0o600); err != nil {
		return domain.Blob{}, "write", fmt.Errorf("write input: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.bin,
		"-hide_banner", "-loglevel", "error",
		"-y", "-i", input,
		"-movflags", "faststart",
		"-c", "copy",
		output,
	)
	cmd.Dir = jobDir
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return domain.Blob{}, "remux", fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	data, err := os.ReadFile(output)
	if err != nil {
		return domain.Blob{}, "read", fmt.Errorf("read output: %w", err)
	}
	if len(data) == 0 {
		return domain.Blob{}, "read", errors.New("empty output")
	}
	return domain.Blob{Data: data, MimeType: in.MimeType}, "", nil
}
