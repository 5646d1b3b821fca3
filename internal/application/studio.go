package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"lens-recorder/internal/domain"
	"lens-recorder/internal/infrastructure/logger"
	"lens-recorder/internal/metrics"
)

// StudioConfig - настройки Studio.
type StudioConfig struct {
	Facing     domain.FacingMode
	Filename   string
	ShareTitle string
	ShareText  string
}

// Studio владеет всем контекстом: захват → запись → обработка → экспорт.
// Операции выполняются последовательно; обработка записи идет в фоне.
type Studio struct {
	switcher   *Switcher
	recorder   *Recorder
	transcoder Transcoder
	downloader Downloader
	sharer     Sharer
	links      ArtifactLinks
	busy       BusyIndicator
	notifier   Notifier
	cfg        StudioConfig
	logger     zerolog.Logger
	now        func() time.Time

	opMu sync.Mutex // операции пользователя по одной

	mu            sync.Mutex
	capture       CaptureState
	artifact      *domain.Artifact
	artifactRef   string
	recordEnabled bool
	switchEnabled bool
	processing    bool

	wg sync.WaitGroup
}

// StudioDeps - зависимости Studio. Sharer может быть nil.
type StudioDeps struct {
	Switcher   *Switcher
	Recorder   *Recorder
	Transcoder Transcoder
	Downloader Downloader
	Sharer     Sharer
	Links      ArtifactLinks
	Busy       BusyIndicator
	Notifier   Notifier
}

// NewStudio создает студию без привязанной камеры.
func NewStudio(deps StudioDeps, cfg StudioConfig, log zerolog.Logger) *Studio {
	return &Studio{
		switcher:   deps.Switcher,
		recorder:   deps.Recorder,
		transcoder: deps.Transcoder,
		downloader: deps.Downloader,
		sharer:     deps.Sharer,
		links:      deps.Links,
		busy:       busyOrNop(deps.Busy),
		notifier:   deps.Notifier,
		cfg:        cfg,
		logger:     log,
		now:        time.Now,
		capture:    CaptureState{Facing: cfg.Facing},
	}
}

// ArtifactView описывает готовую запись для интерфейса.
type ArtifactView struct {
	Ref       string    `json:"ref"`
	Filename  string    `json:"filename"`
	MimeType  string    `json:"mime_type"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// StudioState - снимок состояния для интерфейса.
type StudioState struct {
	Facing        string        `json:"facing"`
	RecordState   string        `json:"record_state"`
	CameraBound   bool          `json:"camera_bound"`
	Tier          string        `json:"tier,omitempty"`
	RecordEnabled bool          `json:"record_enabled"`
	SwitchEnabled bool          `json:"switch_enabled"`
	Busy          bool          `json:"busy"`
	Artifact      *ArtifactView `json:"artifact,omitempty"`
}

// Start получает начальную камеру и запускает воспроизведение. Кнопки включаются,
// даже если камеру получить не удалось: пользователь может повторить через переключение.
// Получение камеры доводится до конца, даже если ctx отменен.
func (s *Studio) Start(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	st := s.captureState()
	err := s.switcher.Acquire(context.WithoutCancel(ctx), &st)

	s.mu.Lock()
	s.capture = st
	s.recordEnabled = true
	s.switchEnabled = true
	s.mu.Unlock()

	if err != nil {
		s.notifyErr(err)
		return err
	}
	return nil
}

// ToggleRecord начинает запись в режиме ожидания и останавливает ее во время записи.
// Возвращает состояние после нажатия.
func (s *Studio) ToggleRecord(ctx context.Context) (domain.RecordState, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.recorder.State() == domain.RecordRecording {
		return domain.RecordIdle, s.stopRecording(ctx)
	}

	s.mu.Lock()
	enabled, bound := s.recordEnabled, s.capture.Handle != nil
	s.mu.Unlock()
	if !enabled {
		return domain.RecordIdle, domain.ErrRecordDisabled
	}
	if !bound {
		return domain.RecordIdle, domain.ErrNoSource
	}

	if err := s.recorder.Start(ctx); err != nil {
		s.logger.Error().Err(err).Msg("start recording")
		return domain.RecordIdle, err
	}
	s.mu.Lock()
	s.switchEnabled = false
	s.mu.Unlock()
	return domain.RecordRecording, nil
}

func (s *Studio) stopRecording(ctx context.Context) error {
	blob, stopErr := s.recorder.Stop()

	s.mu.Lock()
	s.recordEnabled = false
	s.switchEnabled = false
	s.processing = true
	s.mu.Unlock()
	s.busy.ShowBusy()

	s.wg.Add(1)
	go s.finalize(context.WithoutCancel(ctx), blob, stopErr)
	return nil
}

// finalize перепаковывает запись и публикует артефакт. Индикатор занятости
// снимается при любом исходе.
func (s *Studio) finalize(ctx context.Context, blob domain.Blob, stopErr error) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		s.processing = false
		s.mu.Unlock()
		s.busy.HideBusy()
	}()

	log := s.logger.With().Int(logger.FieldBytes, blob.Size()).Logger()

	out, err := s.process(ctx, blob, stopErr)
	if err != nil {
		metrics.Recordings.WithLabelValues("failed").Inc()
		log.Error().Err(err).Msg("recording processing failed")
		s.notify(domain.NewError(domain.KindProcessingFailed, "finalize", err).UserMessage())

		s.mu.Lock()
		s.recordEnabled = true
		s.switchEnabled = true
		s.mu.Unlock()
		return
	}

	artifact := domain.Artifact{
		Filename:  s.cfg.Filename,
		Blob:      out,
		CreatedAt: s.now(),
	}
	ref := s.links.Publish(artifact)
	artifact.ID = ref

	s.mu.Lock()
	s.artifact = &artifact
	s.artifactRef = ref
	s.mu.Unlock()

	metrics.Recordings.WithLabelValues("ok").Inc()
	log.Info().Str(logger.FieldArtifact, ref).Int("output_bytes", out.Size()).Msg("recording ready")
}

func (s *Studio) process(ctx context.Context, blob domain.Blob, stopErr error) (domain.Blob, error) {
	if stopErr != nil {
		return domain.Blob{}, stopErr
	}
	return s.transcoder.Remux(ctx, blob)
}

// SwitchCamera переключает фронтальную и основную камеры в режиме ожидания. Как и Start,
// не прерывается по ctx: брошенное переключение оставило бы студию без камеры.
func (s *Studio) SwitchCamera(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	enabled := s.switchEnabled
	s.mu.Unlock()
	if !enabled || s.recorder.State() == domain.RecordRecording {
		return domain.ErrSwitchDisabled
	}

	st := s.captureState()
	err := s.switcher.Switch(context.WithoutCancel(ctx), &st)

	s.mu.Lock()
	s.capture = st
	s.mu.Unlock()

	if err != nil {
		s.notifyErr(err)
		return err
	}
	return nil
}

// Resize следует за размером окна: поверхность меняет размер на width x height в пределах своих границ.
func (s *Studio) Resize(width, height int) (int, int, error) {
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("%w: %dx%d", domain.ErrInvalidSize, width, height)
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()

	w, h := s.switcher.Resize(width, height)
	s.logger.Debug().Str(logger.FieldResolution, fmt.Sprintf("%dx%d", w, h)).Msg("render size changed")
	return w, h, nil
}

// Download сохраняет готовую запись.
func (s *Studio) Download(ctx context.Context) (string, error) {
	artifact, ok := s.currentArtifact()
	if !ok {
		return "", domain.ErrNoArtifact
	}
	path, err := s.downloader.Download(ctx, artifact)
	if err != nil {
		metrics.Exports.WithLabelValues("download", "failed").Inc()
		s.logger.Error().Err(err).Str(logger.FieldArtifact, artifact.ID).Msg("download failed")
		return "", err
	}
	metrics.Exports.WithLabelValues("download", "ok").Inc()
	s.logger.Info().Str(logger.FieldPath, path).Msg("recording downloaded")
	return path, nil
}

// Share передает запись в меню "Поделиться". Ошибки только логируются, без уведомлений,
// и не затрагивают скачивание.
func (s *Studio) Share(ctx context.Context) error {
	artifact, ok := s.currentArtifact()
	if !ok {
		return domain.ErrNoArtifact
	}
	payload := domain.SharePayload{
		Title:    s.cfg.ShareTitle,
		Text:     s.cfg.ShareText,
		Filename: artifact.Filename,
		Blob:     artifact.Blob,
	}

	if s.sharer == nil || !s.sharer.CanShare(ctx, payload) {
		err := domain.NewError(domain.KindShareUnsupported, "share", errors.New("file sharing is not available"))
		metrics.Exports.WithLabelValues("share", "unsupported").Inc()
		s.logger.Error().Err(err).Msg("sharing files is not supported")
		return err
	}
	if err := s.sharer.Share(ctx, payload); err != nil {
		metrics.Exports.WithLabelValues("share", "failed").Inc()
		s.logger.Error().Err(err).Msg("share failed")
		return err
	}
	metrics.Exports.WithLabelValues("share", "ok").Inc()
	s.logger.Info().Str(logger.FieldArtifact, artifact.ID).Msg("recording shared")
	return nil
}

// Back отбрасывает готовую запись и возвращает к живому превью.
func (s *Studio) Back() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.artifact == nil {
		return domain.ErrNoArtifact
	}
	s.links.Revoke(s.artifactRef)
	s.artifact = nil
	s.artifactRef = ""
	s.recordEnabled = true
	s.switchEnabled = true
	return nil
}

// State возвращает снимок состояния для интерфейса.
func (s *Studio) State() StudioState {
	rec := s.recorder.State()

	s.mu.Lock()
	defer s.mu.Unlock()
	st := StudioState{
		Facing:        s.capture.Facing.String(),
		RecordState:   rec.String(),
		CameraBound:   s.capture.Handle != nil,
		RecordEnabled: s.recordEnabled && rec == domain.RecordIdle,
		SwitchEnabled: s.switchEnabled,
		Busy:          s.processing,
	}
	if rec == domain.RecordRecording {
		st.RecordEnabled = true // та же кнопка останавливает запись
	}
	if s.capture.Handle != nil {
		st.Tier = s.capture.Handle.Tier().Name
	}
	if s.artifact != nil {
		st.Artifact = &ArtifactView{
			Ref:       s.artifactRef,
			Filename:  s.artifact.Filename,
			MimeType:  s.artifact.Blob.MimeType,
			Size:      s.artifact.Blob.Size(),
			CreatedAt: s.artifact.CreatedAt,
		}
	}
	return st
}

// Wait ждет завершения фоновой обработки.
func (s *Studio) Wait() {
	s.wg.Wait()
}

// Close останавливает запись, ждет обработки и освобождает камеру.
func (s *Studio) Close(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.recorder.State() == domain.RecordRecording {
		if _, err := s.recorder.Stop(); err != nil {
			s.logger.Warn().Err(err).Msg("stop recording on close")
		}
	}
	s.wg.Wait()

	st := s.captureState()
	err := s.switcher.Release(context.WithoutCancel(ctx), &st)
	s.mu.Lock()
	s.capture = st
	s.mu.Unlock()
	return err
}

func (s *Studio) captureState() CaptureState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capture
}

func (s *Studio) currentArtifact() (domain.Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.artifact == nil {
		return domain.Artifact{}, false
	}
	return *s.artifact, true
}

func (s *Studio) notifyErr(err error) {
	var de *domain.Error
	if errors.As(err, &de) {
		s.notify(de.UserMessage())
		return
	}
	s.notify(domain.NewError(domain.KindUnknown, "", err).UserMessage())
}

func (s *Studio) notify(msg string) {
	if s.notifier != nil {
		s.notifier.Notify(msg)
	}
}

type nopBusy struct{}

func (nopBusy) ShowBusy() {}
func (nopBusy) HideBusy() {}

func busyOrNop(b BusyIndicator) BusyIndicator {
	if b == nil {
		return nopBusy{}
	}
	return b
}
