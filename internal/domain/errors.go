package domain

import (
	"errors"
	"fmt"
)

// ErrorKind классифицирует ошибки, которые видит пользователь.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindPermissionDenied
	KindDeviceNotFound
	KindDeviceBusy
	KindConstraintsUnsatisfiable
	KindUnsupportedEnvironment
	KindProcessingFailed
	KindShareUnsupported
)

var kindNames = map[ErrorKind]string{
	KindUnknown:                  "unknown",
	KindPermissionDenied:         "permission_denied",
	KindDeviceNotFound:           "device_not_found",
	KindDeviceBusy:               "device_busy",
	KindConstraintsUnsatisfiable: "constraints_unsatisfiable",
	KindUnsupportedEnvironment:   "unsupported_environment",
	KindProcessingFailed:         "processing_failed",
	KindShareUnsupported:         "share_unsupported",
}

func (k ErrorKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// Error - классифицированная ошибка. Op - шаг, на котором она произошла.
type Error struct {
	Kind   ErrorKind
	Op     string
	Facing *FacingMode
	Err    error
}

// NewError создает классифицированную ошибку.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is совпадает с другим *Error того же вида, поэтому работает errors.Is(err, ErrPermissionDenied).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// WithFacing возвращает копию e с камерой, к которой относится ошибка.
// Направление есть только у ошибок переключения.
func (e *Error) WithFacing(f FacingMode) *Error {
	c := *e
	c.Facing = &f
	return &c
}

// UserMessage - текст уведомления для этой ошибки.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindPermissionDenied:
		return "Camera access was denied. Please grant camera permissions and reload the page."
	case KindDeviceNotFound:
		if e.Facing != nil {
			return fmt.Sprintf("Could not find the %s camera.", e.Facing.Label())
		}
		return "No camera found on your device."
	case KindDeviceBusy:
		return "Camera is already in use by another application."
	case KindConstraintsUnsatisfiable:
		return "Could not access camera. Please check your camera settings and reload the page."
	case KindUnsupportedEnvironment:
		return "This environment does not support accessing the camera."
	case KindProcessingFailed:
		return "Error processing video. Please try again."
	case KindShareUnsupported:
		return "Sharing files is not supported on this device."
	default:
		if e.Facing != nil {
			return "Failed to switch camera. Please check your device permissions."
		}
		return "Error accessing camera. Please make sure you have granted camera permissions."
	}
}

// KindOf возвращает вид классифицированной ошибки или KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Цели для errors.Is по виду ошибки.
var (
	ErrPermissionDenied         = &Error{Kind: KindPermissionDenied}
	ErrDeviceNotFound           = &Error{Kind: KindDeviceNotFound}
	ErrDeviceBusy               = &Error{Kind: KindDeviceBusy}
	ErrConstraintsUnsatisfiable = &Error{Kind: KindConstraintsUnsatisfiable}
	ErrUnsupportedEnvironment   = &Error{Kind: KindUnsupportedEnvironment}
	ErrProcessingFailed         = &Error{Kind: KindProcessingFailed}
	ErrShareUnsupported         = &Error{Kind: KindShareUnsupported}
)

// Отказы конечных автоматов.
var (
	ErrAlreadyRecording = errors.New("already recording")
	ErrNotRecording     = errors.New("not recording")
	ErrRecordDisabled   = errors.New("record control is disabled")
	ErrSwitchDisabled   = errors.New("camera switch is disabled")
	ErrNoArtifact       = errors.New("no finalized recording")
	ErrNoSource         = errors.New("no capture source bound")
	ErrSessionPlaying   = errors.New("render session is playing")
	ErrInvalidSize      = errors.New("invalid render size")
)
