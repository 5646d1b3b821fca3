package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
	"golang.org/x/time/rate"

	"lens-recorder/internal/domain"
	"lens-recorder/internal/infrastructure/logger"
	"lens-recorder/internal/metrics"
)

// Lens преобразует кадр камеры перед отрисовкой на поверхность.
type Lens interface {
	Apply(src image.Image) (image.Image, error)
}

// LensFunc позволяет использовать функцию как Lens.
type LensFunc func(src image.Image) (image.Image, error)

func (f LensFunc) Apply(src image.Image) (image.Image, error) { return f(src) }

// Config задает границы поверхности и настройки контроля частоты кадров.
type Config struct {
	MaxWidth     int
	MaxHeight    int
	FPSWarnBelow float64 // 0 отключает предупреждения о низкой частоте кадров
	Lens         Lens
}

// Session рисует кадры одного потока камеры на поверхность в памяти.
type Session struct {
	cfg     Config
	logger  zerolog.Logger
	limiter *rate.Limiter

	mu        sync.Mutex
	source    domain.CaptureHandle
	transform domain.Transform
	width     int
	height    int
	cancel    context.CancelFunc
	done      chan struct{}

	frameMu sync.RWMutex
	frame   *image.RGBA

	subMu  sync.Mutex
	subs   map[uint64]chan image.Image
	nextID uint64

	fps atomic.Value // float64
}

// NewSession создает сессию без источника. Поверхность начинает с максимального размера.
func NewSession(cfg Config, log zerolog.Logger) *Session {
	s := &Session{
		cfg:     cfg,
		logger:  log,
		limiter: rate.NewLimiter(rate.Inf, 1),
		width:   even(cfg.MaxWidth),
		height:  even(cfg.MaxHeight),
		subs:    make(map[uint64]chan image.Image),
	}
	s.fps.Store(float64(0))
	return s
}

// SetSource привязывает h как единственный источник, nil отвязывает. Во время воспроизведения запрещено.
func (s *Session) SetSource(h domain.CaptureHandle, transform domain.Transform) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runningLocked() {
		return domain.ErrSessionPlaying
	}
	s.source = h
	s.transform = transform
	return nil
}

// Source возвращает привязанный поток.
func (s *Session) Source() domain.CaptureHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// SetRenderSize задает размер поверхности в ее границах и возвращает примененный размер.
// Неположительные значения означают максимум.
func (s *Session) SetRenderSize(w, h int) (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width = clamp(w, s.cfg.MaxWidth)
	s.height = clamp(h, s.cfg.MaxHeight)
	return s.width, s.height
}

// SetFPSLimit задает предел частоты кадров; ноль снимает его.
func (s *Session) SetFPSLimit(fps int) {
	if fps <= 0 {
		s.limiter.SetLimit(rate.Inf)
		return
	}
	s.limiter.SetLimit(rate.Limit(fps))
}

// Play запускает цикл рендера. Повторный вызов ничего не делает.
func (s *Session) Play(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.source == nil {
		return domain.ErrNoSource
	}
	if s.runningLocked() {
		return nil
	}

	reader := s.source.Frames()
	if reader == nil {
		return fmt.Errorf("source %s has no frames", s.source.ID())
	}

	// Цикл живет дольше запроса, который его запустил.
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go s.loop(loopCtx, reader, s.transform, done)

	s.logger.Debug().
		Str(logger.FieldHandle, s.source.ID()).
		Str(logger.FieldTransform, s.transform.String()).
		Msg("render loop started")
	return nil
}

// Pause останавливает цикл рендера и ждет, пока он перестанет читать источник.
func (s *Session) Pause(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	if cancel != nil {
		cancel()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for render loop: %w", ctx.Err())
	}
}

// Playing сообщает, работает ли цикл рендера.
func (s *Session) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runningLocked()
}

func (s *Session) runningLocked() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Snapshot возвращает последний отрисованный кадр, nil до первого кадра.
// Возвращенные кадры потом не изменяются.
func (s *Session) Snapshot() image.Image {
	s.frameMu.RLock()
	defer s.frameMu.RUnlock()
	if s.frame == nil {
		return nil
	}
	return s.frame
}

// Size возвращает размер поверхности.
func (s *Session) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// FPS возвращает измеренную частоту кадров рендера.
func (s *Session) FPS() float64 {
	return s.fps.Load().(float64)
}

// Subscribe отдает отрисованные кадры до вызова cancel. Медленные подписчики пропускают кадры.
func (s *Session) Subscribe(buffer int) (<-chan image.Image, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan image.Image, buffer)

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Session) loop(ctx context.Context, reader domain.FrameReader, transform domain.Transform, done chan struct{}) {
	defer close(done)

	meter := fpsMeter{start: time.Now()}
	for {
		if ctx.Err() != nil {
			return
		}

		img, release, err := reader.Read()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn().Err(err).Msg("read frame, render loop stopped")
			}
			return
		}
		if ctx.Err() != nil {
			releaseFrame(release)
			return
		}
		if !s.limiter.Allow() {
			releaseFrame(release)
			metrics.DroppedFrames.WithLabelValues("fps_limit").Inc()
			continue
		}

		w, h := s.Size()
		out, err := s.draw(img, transform, w, h)
		releaseFrame(release)
		if err != nil {
			metrics.DroppedFrames.WithLabelValues("lens").Inc()
			s.logger.Warn().Err(err).Msg("render frame")
			continue
		}
		s.publish(out)

		if fps, ok := meter.tick(time.Now()); ok {
			s.fps.Store(fps)
			metrics.RenderFPS.Set(fps)
			if s.cfg.FPSWarnBelow > 0 && fps < s.cfg.FPSWarnBelow {
				s.logger.Warn().Float64(logger.FieldFPS, fps).Msg("low frame rate")
			}
		}
	}
}

func (s *Session) draw(img image.Image, transform domain.Transform, w, h int) (*image.RGBA, error) {
	if img == nil {
		return nil, errors.New("empty frame")
	}
	src := img
	if s.cfg.Lens != nil {
		var err error
		if src, err = s.cfg.Lens.Apply(img); err != nil {
			return nil, fmt.Errorf("lens: %w", err)
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	if transform == domain.TransformMirrorX {
		mirrorX(dst)
	}
	return dst, nil
}

func (s *Session) publish(frame *image.RGBA) {
	s.frameMu.Lock()
	s.frame = frame
	s.frameMu.Unlock()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- frame:
		default:
			metrics.DroppedFrames.WithLabelValues("subscriber").Inc()
		}
	}
}

// mirrorX отражает img по горизонтали на месте.
func mirrorX(img *image.RGBA) {
	b := img.Bounds()
	w := b.Dx()
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for l, r := 0, (w-1)*4; l < r; l, r = l+4, r-4 {
			row[l], row[r] = row[r], row[l]
			row[l+1], row[r+1] = row[r+1], row[l+1]
			row[l+2], row[r+2] = row[r+2], row[l+2]
			row[l+3], row[r+3] = row[r+3], row[l+3]
		}
	}
}

func releaseFrame(release func()) {
	if release != nil {
		release()
	}
}

func clamp(v, max int) int {
	if v <= 0 || v > max {
		v = max
	}
	if v < 2 {
		v = 2
	}
	return even(v)
}

func even(v int) int { return v &^ 1 }

type fpsMeter struct {
	start  time.Time
	frames int
}

// tick считает кадр и раз в секунду сообщает частоту.
func (m *fpsMeter) tick(now time.Time) (float64, bool) {
	m.frames++
	elapsed := now.Sub(m.start)
	if elapsed < time.Second {
		return 0, false
	}
	fps := float64(m.frames) / elapsed.Seconds()
	m.start = now
	m.frames = 0
	return fps, true
}
