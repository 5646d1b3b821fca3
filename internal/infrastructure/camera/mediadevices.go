package camera

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pion/mediadevices"
	_ "github.com/pion/mediadevices/pkg/driver/camera" // Регистрируем драйвер камеры
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/rs/zerolog"

	"lens-recorder/internal/domain"
	"lens-recorder/internal/infrastructure/logger"
)

// maxDimension ограничивает диапазоны; драйверы по-разному понимают ноль как "без границы".
const maxDimension = 7680

// MediaDevicesManager получает камеры через pion/mediadevices.
type MediaDevicesManager struct {
	logger zerolog.Logger

	enumerate    func() []mediadevices.MediaDeviceInfo
	getUserMedia func(mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error)
}

// NewMediaDevicesManager создает менеджер поверх зарегистрированных драйверов.
func NewMediaDevicesManager(log zerolog.Logger) *MediaDevicesManager {
	return &MediaDevicesManager{
		logger:       log,
		enumerate:    mediadevices.EnumerateDevices,
		getUserMedia: mediadevices.GetUserMedia,
	}
}

// ListDevices возвращает видеовходы с направлением, угаданным по названию.
func (m *MediaDevicesManager) ListDevices(_ context.Context) ([]domain.VideoDevice, error) {
	devices := m.enumerate()
	result := make([]domain.VideoDevice, 0, len(devices))

	for _, device := range devices {
		if device.Kind != mediadevices.VideoInput {
			continue
		}
		result = append(result, domain.VideoDevice{
			ID:     device.DeviceID,
			Label:  device.Label,
			Kind:   "videoinput",
			Facing: InferFacing(device.Label),
		})
	}
	return result, nil
}

// Open получает один видеопоток для одного набора ограничений. Аудио не запрашивается.
func (m *MediaDevicesManager) Open(_ context.Context, req domain.CaptureRequest) (domain.CaptureHandle, error) {
	op := "open " + req.Tier.Name
	constraints := mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			applyTier(c, req)
		},
	}

	stream, err := m.getUserMedia(constraints)
	if err != nil {
		return nil, Classify(op, err)
	}

	tracks := stream.GetVideoTracks()
	if len(tracks) == 0 {
		closeTracks(stream)
		return nil, domain.NewError(domain.KindDeviceNotFound, op, errors.New("stream has no video track"))
	}
	track, ok := tracks[0].(*mediadevices.VideoTrack)
	if !ok {
		closeTracks(stream)
		return nil, domain.NewError(domain.KindUnknown, op, fmt.Errorf("unexpected track type %T", tracks[0]))
	}

	m.logger.Debug().
		Str(logger.FieldHandle, track.ID()).
		Str(logger.FieldTier, req.Tier.Name).
		Str(logger.FieldFacing, req.Facing.String()).
		Msg("stream opened")

	return &Handle{
		stream: stream,
		track:  track,
		facing: req.Facing,
		tier:   req.Tier,
	}, nil
}

func applyTier(c *mediadevices.MediaTrackConstraints, req domain.CaptureRequest) {
	t := req.Tier
	if !t.Width.IsZero() {
		c.Width = prop.IntRanged{Min: t.Width.Min, Ideal: t.Width.Ideal, Max: maxDimension}
	}
	if !t.Height.IsZero() {
		c.Height = prop.IntRanged{Min: t.Height.Min, Ideal: t.Height.Ideal, Max: maxDimension}
	}
	switch t.Match {
	case domain.FacingExact:
		c.DeviceID = prop.StringExact(req.DeviceID)
	case domain.FacingIdeal:
		if req.DeviceID != "" {
			c.DeviceID = prop.String(req.DeviceID)
		}
	}
}

// Handle владеет одним потоком mediadevices.
type Handle struct {
	stream mediadevices.MediaStream
	track  *mediadevices.VideoTrack
	facing domain.FacingMode
	tier   domain.ConstraintTier

	once     sync.Once
	closeErr error
}

func (h *Handle) ID() string                  { return h.track.ID() }
func (h *Handle) Facing() domain.FacingMode   { return h.facing }
func (h *Handle) Tier() domain.ConstraintTier { return h.tier }

// Frames возвращает новый reader декодированных кадров.
func (h *Handle) Frames() domain.FrameReader { return h.track.NewReader(false) }

// Close останавливает все треки потока.
func (h *Handle) Close() error {
	h.once.Do(func() {
		h.closeErr = closeTracks(h.stream)
	})
	return h.closeErr
}

func closeTracks(stream mediadevices.MediaStream) error {
	var errs []error
	for _, t := range stream.GetTracks() {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	frontHints = []string{"front", "user", "facetime", "selfie", "integrated"}
	backHints  = []string{"back", "rear", "environment", "world"}
)

// InferFacing угадывает направление по названию устройства; nil, если неизвестно.
func InferFacing(label string) *domain.FacingMode {
	l := strings.ToLower(label)
	for _, h := range backHints {
		if strings.Contains(l, h) {
			f := domain.FacingBack
			return &f
		}
	}
	for _, h := range frontHints {
		if strings.Contains(l, h) {
			f := domain.FacingFront
			return &f
		}
	}
	return nil
}
