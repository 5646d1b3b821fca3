package domain

import (
	"fmt"
	"image"
	"time"
)

// FacingMode - направление активной камеры.
type FacingMode int

const (
	FacingFront FacingMode = iota // на пользователя
	FacingBack                    // от пользователя
)

// String возвращает имя ограничения для бэкендов захвата.
func (f FacingMode) String() string {
	if f == FacingBack {
		return "environment"
	}
	return "user"
}

// Label - человекочитаемое имя для уведомлений.
func (f FacingMode) Label() string {
	if f == FacingBack {
		return "back"
	}
	return "front"
}

// Opposite возвращает противоположное направление.
func (f FacingMode) Opposite() FacingMode {
	if f == FacingBack {
		return FacingFront
	}
	return FacingBack
}

// ParseFacingMode принимает "user"/"front" и "environment"/"back".
func ParseFacingMode(s string) (FacingMode, error) {
	switch s {
	case "user", "front", "":
		return FacingFront, nil
	case "environment", "back", "rear":
		return FacingBack, nil
	default:
		return FacingFront, fmt.Errorf("unknown facing mode %q", s)
	}
}

// Transform применяется сессией рендера к каждому кадру источника.
type Transform int

const (
	TransformIdentity Transform = iota
	TransformMirrorX
)

func (t Transform) String() string {
	if t == TransformMirrorX {
		return "mirror_x"
	}
	return "identity"
}

// TransformFor отражает только фронтальные камеры.
func TransformFor(f FacingMode) Transform {
	if f == FacingFront {
		return TransformMirrorX
	}
	return TransformIdentity
}

// FacingMatch задает, насколько строго набор требует направление.
type FacingMatch int

const (
	FacingIdeal FacingMatch = iota // предпочесть подходящую камеру, принять любую
	FacingExact                    // только камера, которая точно подходит
	FacingAny                      // направление не запрашивается
)

func (m FacingMatch) String() string {
	switch m {
	case FacingExact:
		return "exact"
	case FacingAny:
		return "any"
	default:
		return "ideal"
	}
}

// Range - желаемое значение с нижней границей. Ноль означает без ограничений.
type Range struct {
	Ideal int
	Min   int
}

// IsZero сообщает, что диапазон ничего не ограничивает.
func (r Range) IsZero() bool { return r.Ideal == 0 && r.Min == 0 }

// ConstraintTier - один вариант параметров получения камеры.
type ConstraintTier struct {
	Name        string
	Match       FacingMatch
	Width       Range
	Height      Range
	AspectRatio float64 // желаемое width/height, 0 = без ограничений
}

// Unconstrained сообщает, что набор - это просто запрос "любое видео".
func (t ConstraintTier) Unconstrained() bool {
	return t.Match == FacingAny && t.Width.IsZero() && t.Height.IsZero()
}

// CaptureRequest передается бэкенду захвата для одной попытки.
// Аудио не запрашивается.
type CaptureRequest struct {
	Facing   FacingMode
	Tier     ConstraintTier
	DeviceID string // устройство для направления, пусто, если неизвестно
}

// VideoDevice описывает видеовход.
type VideoDevice struct {
	ID     string
	Label  string
	Kind   string
	Facing *FacingMode // nil, если бэкенд не может определить
}

// FrameReader отдает декодированные кадры. release нужно вызвать, когда кадр больше не нужен.
type FrameReader interface {
	Read() (img image.Image, release func(), err error)
}

// CaptureHandle владеет одним живым потоком камеры.
type CaptureHandle interface {
	ID() string
	Facing() FacingMode
	Tier() ConstraintTier
	Frames() FrameReader
	// Close останавливает все треки потока. Можно вызывать повторно.
	Close() error
}

// RecordState - конечный автомат записи из двух состояний.
type RecordState int

const (
	RecordIdle RecordState = iota
	RecordRecording
)

func (s RecordState) String() string {
	if s == RecordRecording {
		return "recording"
	}
	return "idle"
}

// Chunk - фрагмент закодированных данных, полученный во время записи.
type Chunk []byte

// Blob - неизменяемые двоичные данные с типом медиа.
type Blob struct {
	Data     []byte
	MimeType string
}

// Size возвращает длину данных.
func (b Blob) Size() int { return len(b.Data) }

// Artifact - готовое видео, которым можно поделиться.
type Artifact struct {
	ID        string
	Filename  string
	Blob      Blob
	CreatedAt time.Time
}

// SharePayload передается в меню "Поделиться".
type SharePayload struct {
	Title    string
	Text     string
	Filename string
	Blob     Blob
}
