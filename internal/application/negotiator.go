package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"lens-recorder/internal/domain"
	"lens-recorder/internal/infrastructure/logger"
	"lens-recorder/internal/metrics"
)

// Result - итог одного согласования: живой поток или классифицированная ошибка.
type Result struct {
	Handle domain.CaptureHandle
	Tier   domain.ConstraintTier
	Err    *domain.Error
}

// OK сообщает, был ли получен поток.
func (r Result) OK() bool { return r.Err == nil && r.Handle != nil }

// Negotiator получает камеру, перебирая наборы ограничений.
type Negotiator struct {
	backend CameraBackend
	pinned  map[domain.FacingMode]string
	logger  zerolog.Logger
}

// NewNegotiator создает Negotiator. pinned сопоставляет направлению ID устройства,
// которое точно так направлено; может быть nil.
func NewNegotiator(backend CameraBackend, pinned map[domain.FacingMode]string, log zerolog.Logger) *Negotiator {
	return &Negotiator{
		backend: backend,
		pinned:  pinned,
		logger:  log,
	}
}

// Negotiate перебирает наборы по порядку до первого успеха.
func (n *Negotiator) Negotiate(ctx context.Context, facing domain.FacingMode, tiers []domain.ConstraintTier) Result {
	fail := func(e *domain.Error) Result {
		metrics.NegotiationFailures.WithLabelValues(e.Kind.String()).Inc()
		n.logger.Error().
			Err(e).
			Str(logger.FieldFacing, facing.String()).
			Str(logger.FieldKind, e.Kind.String()).
			Msg("camera negotiation failed")
		return Result{Err: e}
	}

	if n.backend == nil {
		return fail(domain.NewError(domain.KindUnsupportedEnvironment, "negotiate", errors.New("no camera backend available")))
	}
	if len(tiers) == 0 {
		return fail(domain.NewError(domain.KindConstraintsUnsatisfiable, "negotiate", errors.New("no constraint tiers")))
	}

	devices, err := n.backend.ListDevices(ctx)
	if err != nil {
		return fail(classify("enumerate devices", err))
	}
	if len(devices) == 0 {
		return fail(domain.NewError(domain.KindDeviceNotFound, "enumerate devices", errors.New("no video devices found")))
	}

	var last *domain.Error
	for _, tier := range tiers {
		if err := ctx.Err(); err != nil {
			return fail(domain.NewError(domain.KindUnknown, "negotiate", err))
		}

		req := domain.CaptureRequest{
			Facing:   facing,
			Tier:     tier,
			DeviceID: n.deviceFor(devices, facing, tier.Match),
		}
		log := n.logger.With().
			Str(logger.FieldFacing, facing.String()).
			Str(logger.FieldTier, tier.Name).
			Str(logger.FieldDevice, req.DeviceID).
			Logger()

		if tier.Match == domain.FacingExact && req.DeviceID == "" {
			last = domain.NewError(domain.KindConstraintsUnsatisfiable, "open "+tier.Name,
				fmt.Errorf("no camera known to face %s", facing))
			metrics.NegotiationAttempts.WithLabelValues(tier.Name, last.Kind.String()).Inc()
			log.Warn().Err(last).Msg("tier skipped")
			continue
		}

		handle, err := n.backend.Open(ctx, req)
		if err == nil && handle != nil {
			metrics.NegotiationAttempts.WithLabelValues(tier.Name, "ok").Inc()
			log.Info().Str(logger.FieldHandle, handle.ID()).Msg("camera acquired")
			return Result{Handle: handle, Tier: tier}
		}
		if err == nil {
			err = errors.New("backend returned no stream")
		}

		last = classify("open "+tier.Name, err)
		metrics.NegotiationAttempts.WithLabelValues(tier.Name, last.Kind.String()).Inc()
		log.Warn().Err(err).Str(logger.FieldKind, last.Kind.String()).Msg("tier failed, trying next")

		if terminal(last.Kind) {
			break
		}
	}
	return fail(last)
}

// эти ошибки не исправить более мягким набором.
func terminal(k domain.ErrorKind) bool {
	return k == domain.KindPermissionDenied || k == domain.KindUnsupportedEnvironment
}

func (n *Negotiator) deviceFor(devices []domain.VideoDevice, facing domain.FacingMode, match domain.FacingMatch) string {
	if match == domain.FacingAny {
		return ""
	}
	if id, ok := n.pinned[facing]; ok && id != "" {
		for _, d := range devices {
			if d.ID == id {
				return id
			}
		}
	}
	for _, d := range devices {
		if d.Facing != nil && *d.Facing == facing {
			return d.ID
		}
	}
	return ""
}

func classify(op string, err error) *domain.Error {
	var de *domain.Error
	if errors.As(err, &de) {
		return de
	}
	return domain.NewError(domain.KindUnknown, op, err)
}
