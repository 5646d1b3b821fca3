package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"

	"lens-recorder/internal/application"
	"lens-recorder/internal/domain"
	"lens-recorder/internal/infrastructure/logger"
)

const (
	defaultChunkSize   = 64 * 1024
	defaultStopTimeout = 10 * time.Second
	stderrLimit        = 4096
)

// Config - настройки процесса кодировщика ffmpeg.
type Config struct {
	Bin         string
	MimeType    string
	VideoCodec  string
	ChunkSize   int
	StopTimeout time.Duration
}

// FFmpegRecorder кодирует снимки поверхности во фрагментированный MP4 процессом ffmpeg.
// Сырые RGBA кадры идут в stdin, фрагменты контейнера читаются из stdout.
type FFmpegRecorder struct {
	cfg    Config
	logger zerolog.Logger

	mu  sync.Mutex
	run *run
}

type run struct {
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stderr   *limitedBuffer
	kill     context.CancelFunc
	stop     chan struct{}
	pumpDone chan error
	readDone chan error
	frames   int
}

// NewFFmpegRecorder создает новый экземпляр FFmpegRecorder
func NewFFmpegRecorder(cfg Config, log zerolog.Logger) *FFmpegRecorder {
	if cfg.Bin == "" {
		cfg.Bin = "ffmpeg"
	}
	if cfg.MimeType == "" {
		cfg.MimeType = "video/mp4"
	}
	if cfg.VideoCodec == "" {
		cfg.VideoCodec = "libx264"
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaultStopTimeout
	}
	return &FFmpegRecorder{cfg: cfg, logger: log}
}

// MimeType возвращает тип контейнера для фрагментов.
func (r *FFmpegRecorder) MimeType() string { return r.cfg.MimeType }

// Start запускает кодировщик и снимает surface с частотой fps до вызова Stop.
func (r *FFmpegRecorder) Start(ctx context.Context, surface application.Surface, fps int, onData func(domain.Chunk)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.run != nil {
		return domain.ErrAlreadyRecording
	}
	if fps <= 0 {
		return fmt.Errorf("invalid frame rate %d", fps)
	}
	w, h := surface.Size()
	if w <= 0 || h <= 0 {
		return fmt.Errorf("invalid surface size %dx%d", w, h)
	}

	procCtx, kill := context.WithCancel(context.WithoutCancel(ctx))
	cmd := exec.CommandContext(procCtx, r.cfg.Bin, r.args(w, h, fps)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		kill()
		return fmt.Errorf("encoder stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		kill()
		return fmt.Errorf("encoder stdout: %w", err)
	}
	stderr := &limitedBuffer{limit: stderrLimit}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		kill()
		return fmt.Errorf("start encoder: %w", err)
	}

	rn := &run{
		cmd:      cmd,
		stdin:    stdin,
		stderr:   stderr,
		kill:     kill,
		stop:     make(chan struct{}),
		pumpDone: make(chan error, 1),
		readDone: make(chan error, 1),
	}
	go func() { rn.readDone <- r.drain(stdout, onData) }()
	go func() { rn.pumpDone <- r.pump(rn, surface, w, h, fps) }()
	r.run = rn

	r.logger.Debug().
		Str(logger.FieldResolution, fmt.Sprintf("%dx%d", w, h)).
		Int(logger.FieldFPS, fps).
		Int("pid", cmd.Process.Pid).
		Msg("encoder started")
	return nil
}

// Stop закрывает вход, ждет доставки всех фрагментов и завершает процесс.
func (r *FFmpegRecorder) Stop() error {
	r.mu.Lock()
	rn := r.run
	r.run = nil
	r.mu.Unlock()

	if rn == nil {
		return domain.ErrNotRecording
	}

	timer := time.AfterFunc(r.cfg.StopTimeout, rn.kill)
	defer timer.Stop()
	defer rn.kill()

	close(rn.stop)
	pumpErr := <-rn.pumpDone
	closeErr := rn.stdin.Close()
	readErr := <-rn.readDone
	waitErr := rn.cmd.Wait()

	r.logger.Debug().Int("frames", rn.frames).Msg("encoder stopped")

	if waitErr != nil {
		return fmt.Errorf("encoder exited: %w: %s", waitErr, strings.TrimSpace(rn.stderr.String()))
	}
	if pumpErr != nil {
		return fmt.Errorf("write frames: %w", pumpErr)
	}
	if readErr != nil {
		return fmt.Errorf("read encoder output: %w", readErr)
	}
	if closeErr != nil && !errors.Is(closeErr, io.ErrClosedPipe) {
		return fmt.Errorf("close encoder input: %w", closeErr)
	}
	return nil
}

func (r *FFmpegRecorder) args(w, h, fps int) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", w, h),
		"-r", strconv.Itoa(fps),
		"-i", "pipe:0",
		"-an",
		"-c:v", r.cfg.VideoCodec,
		"-pix_fmt", "yuv420p",
		"-movflags", "frag_keyframe+empty_moov+default_base_moof",
		"-f", "mp4",
		"pipe:1",
	}
}

// pump пишет один кадр за тик. Вместо отсутствующих снимков кодируются черные кадры.
func (r *FFmpegRecorder) pump(rn *run, surface application.Surface, w, h, fps int) error {
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	frame := image.NewRGBA(image.Rect(0, 0, w, h))
	for {
		select {
		case <-rn.stop:
			return nil
		case <-ticker.C:
			fill(frame, surface.Snapshot())
			if _, err := rn.stdin.Write(frame.Pix); err != nil {
				return err
			}
			rn.frames++
		}
	}
}

func (r *FFmpegRecorder) drain(stdout io.Reader, onData func(domain.Chunk)) error {
	buf := make([]byte, r.cfg.ChunkSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			chunk := make(domain.Chunk, n)
			copy(chunk, buf[:n])
			onData(chunk)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// fill копирует src в dst, масштабируя при разных размерах.
func fill(dst *image.RGBA, src image.Image) {
	if src == nil {
		clear(dst.Pix)
		return
	}
	if rgba, ok := src.(*image.RGBA); ok && rgba.Bounds() == dst.Bounds() && rgba.Stride == dst.Stride {
		copy(dst.Pix, rgba.Pix)
		return
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
}

// limitedBuffer хранит первые limit байт stderr кодировщика.
type limitedBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
