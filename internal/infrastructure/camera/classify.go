package camera

import (
	"errors"
	"os"
	"strings"
	"syscall"

	"lens-recorder/internal/domain"
)

// Classify сопоставляет ошибку драйвера виду доменной ошибки.
func Classify(op string, err error) *domain.Error {
	var de *domain.Error
	if errors.As(err, &de) {
		return de
	}
	return domain.NewError(kindOf(err), op, err)
}

func kindOf(err error) domain.ErrorKind {
	switch {
	case errors.Is(err, os.ErrPermission), errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM):
		return domain.KindPermissionDenied
	case errors.Is(err, syscall.EBUSY):
		return domain.KindDeviceBusy
	case errors.Is(err, syscall.ENODEV), errors.Is(err, os.ErrNotExist):
		return domain.KindDeviceNotFound
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "permission denied", "not permitted", "access denied"):
		return domain.KindPermissionDenied
	case containsAny(msg, "device or resource busy", "in use"):
		return domain.KindDeviceBusy
	// mediadevices сообщает о неподходящих ограничениях как "failed to find the best driver that fits the constraints"
	case containsAny(msg, "constraint"):
		return domain.KindConstraintsUnsatisfiable
	case containsAny(msg, "no such device", "no such file", "not found", "no device"):
		return domain.KindDeviceNotFound
	case containsAny(msg, "not supported", "unsupported", "not implemented"):
		return domain.KindUnsupportedEnvironment
	}
	return domain.KindUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
