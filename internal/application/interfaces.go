package application

import (
	"context"
	"image"

	"lens-recorder/internal/domain"
)

// CameraBackend получает потоки с камер.
type CameraBackend interface {
	// ListDevices возвращает доступные видеовходы.
	ListDevices(ctx context.Context) ([]domain.VideoDevice, error)

	// Open получает один поток для одного набора ограничений. Ошибки должны быть *domain.Error,
	// если бэкенд умеет их классифицировать.
	Open(ctx context.Context, req domain.CaptureRequest) (domain.CaptureHandle, error)
}

// RenderSession отрисовывает привязанный источник на поверхность рендера.
type RenderSession interface {
	// SetSource привязывает поток. Во время воспроизведения возвращает ошибку; nil отвязывает.
	SetSource(handle domain.CaptureHandle, transform domain.Transform) error
	SetRenderSize(width, height int) (int, int)
	SetFPSLimit(fps int)
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Source() domain.CaptureHandle
}

// Surface - результат рендера, который можно записывать и показывать в превью.
type Surface interface {
	Snapshot() image.Image
	Size() (width, height int)
}

// MediaRecorder кодирует захваченную поверхность во фрагменты.
type MediaRecorder interface {
	// Start запускает кодирование. onData получает каждый фрагмент кодировщика, в том числе пустые.
	Start(ctx context.Context, surface Surface, fps int, onData func(domain.Chunk)) error
	// Stop сбрасывает буферы кодировщика; к возврату из Stop onData уже получил последний фрагмент.
	Stop() error
	MimeType() string
}

// Transcoder перепаковывает записанный blob в широко поддерживаемый контейнер.
type Transcoder interface {
	Remux(ctx context.Context, in domain.Blob) (domain.Blob, error)
}

// Downloader сохраняет артефакт под фиксированным именем файла.
type Downloader interface {
	Download(ctx context.Context, artifact domain.Artifact) (string, error)
}

// Sharer передает артефакт в системное меню "Поделиться".
type Sharer interface {
	CanShare(ctx context.Context, payload domain.SharePayload) bool
	Share(ctx context.Context, payload domain.SharePayload) error
}

// ArtifactLinks выдает отзываемые ссылки на готовые артефакты.
type ArtifactLinks interface {
	Publish(artifact domain.Artifact) string
	Revoke(ref string)
}

// BusyIndicator показывается, пока запись обрабатывается.
type BusyIndicator interface {
	ShowBusy()
	HideBusy()
}

// Notifier показывает пользователю блокирующие уведомления.
type Notifier interface {
	Notify(message string)
}
