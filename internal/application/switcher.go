package application

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"lens-recorder/internal/domain"
	"lens-recorder/internal/infrastructure/logger"
	"lens-recorder/internal/metrics"
)

// CaptureState описывает захват в контексте студии: единственный привязанный поток и направление камеры.
type CaptureState struct {
	Handle domain.CaptureHandle
	Facing domain.FacingMode
}

// SwitcherConfig хранит параметры рендера, применяемые при каждой привязке.
type SwitcherConfig struct {
	Width, Height int
	FPSLimit      int
	Performance   bool
}

// Switcher получает камеру, привязывает ее к сессии рендера и переключает камеры.
type Switcher struct {
	negotiator *Negotiator
	render     RenderSession
	cfg        SwitcherConfig
	logger     zerolog.Logger
}

// NewSwitcher создает новый экземпляр Switcher
func NewSwitcher(negotiator *Negotiator, render RenderSession, cfg SwitcherConfig, log zerolog.Logger) *Switcher {
	return &Switcher{
		negotiator: negotiator,
		render:     render,
		cfg:        cfg,
		logger:     log,
	}
}

// Acquire выполняет первичное согласование для st.Facing и запускает воспроизведение.
func (s *Switcher) Acquire(ctx context.Context, st *CaptureState) error {
	res := s.negotiator.Negotiate(ctx, st.Facing, InitialTiers(s.cfg.Performance))
	if !res.OK() {
		return res.Err
	}
	if err := s.bind(ctx, res.Handle, st.Facing); err != nil {
		s.release(res.Handle)
		return err
	}
	st.Handle = res.Handle
	return nil
}

// Switch переключает на противоположную камеру. При ошибке восстанавливается прежнее направление
// и, если получится, снова привязывается прежняя камера. Освобожденный источник в сессии не остается.
func (s *Switcher) Switch(ctx context.Context, st *CaptureState) error {
	prev := st.Facing

	if st.Handle != nil {
		if err := s.render.Pause(ctx); err != nil {
			return fmt.Errorf("pause render session: %w", err)
		}
		if err := s.render.SetSource(nil, domain.TransformIdentity); err != nil {
			return fmt.Errorf("unbind source: %w", err)
		}
		s.release(st.Handle)
		st.Handle = nil
	}

	st.Facing = prev.Opposite()
	log := s.logger.With().
		Str("from", prev.String()).
		Str("to", st.Facing.String()).
		Logger()

	var switchErr *domain.Error
	res := s.negotiator.Negotiate(ctx, st.Facing, SwitchTiers(s.cfg.Performance))
	if res.OK() {
		err := s.bind(ctx, res.Handle, st.Facing)
		if err == nil {
			st.Handle = res.Handle
			metrics.CameraSwitches.WithLabelValues("ok").Inc()
			log.Info().Str(logger.FieldTier, res.Tier.Name).Msg("camera switched")
			return nil
		}
		s.release(res.Handle)
		switchErr = classify("bind", err)
	} else {
		switchErr = res.Err
	}
	switchErr = switchErr.WithFacing(st.Facing)

	st.Facing = prev
	metrics.CameraSwitches.WithLabelValues("failed").Inc()
	log.Error().Err(switchErr).Msg("camera switch failed, restoring previous camera")

	restore := s.negotiator.Negotiate(ctx, prev, InitialTiers(s.cfg.Performance))
	if restore.OK() {
		if err := s.bind(ctx, restore.Handle, prev); err != nil {
			log.Error().Err(err).Msg("rebind previous camera failed")
			s.release(restore.Handle)
		} else {
			st.Handle = restore.Handle
		}
	}
	return switchErr
}

func (s *Switcher) bind(ctx context.Context, h domain.CaptureHandle, facing domain.FacingMode) error {
	transform := domain.TransformFor(facing)
	if err := s.render.SetSource(h, transform); err != nil {
		return domain.NewError(domain.KindUnknown, "bind source", err)
	}
	w, ht := s.render.SetRenderSize(s.cfg.Width, s.cfg.Height)
	s.render.SetFPSLimit(s.cfg.FPSLimit)
	if err := s.render.Play(ctx); err != nil {
		_ = s.render.SetSource(nil, domain.TransformIdentity)
		return domain.NewError(domain.KindUnknown, "play", err)
	}
	s.logger.Debug().
		Str(logger.FieldHandle, h.ID()).
		Str(logger.FieldTransform, transform.String()).
		Str(logger.FieldResolution, fmt.Sprintf("%dx%d", w, ht)).
		Msg("source bound")
	return nil
}

func (s *Switcher) release(h domain.CaptureHandle) {
	if err := h.Close(); err != nil {
		s.logger.Warn().Err(err).Str(logger.FieldHandle, h.ID()).Msg("release capture handle")
	}
}

// Resize меняет размер рендера для текущего источника и всех последующих привязок.
// Возвращает размер, который применила сессия рендера.
func (s *Switcher) Resize(width, height int) (int, int) {
	s.cfg.Width, s.cfg.Height = width, height
	return s.render.SetRenderSize(width, height)
}

// Release останавливает воспроизведение, отвязывает источник и закрывает его треки.
func (s *Switcher) Release(ctx context.Context, st *CaptureState) error {
	if st.Handle == nil {
		return nil
	}
	if err := s.render.Pause(ctx); err != nil {
		return fmt.Errorf("pause render session: %w", err)
	}
	if err := s.render.SetSource(nil, domain.TransformIdentity); err != nil {
		return fmt.Errorf("unbind source: %w", err)
	}
	s.release(st.Handle)
	st.Handle = nil
	return nil
}
