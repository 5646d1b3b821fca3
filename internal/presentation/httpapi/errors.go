package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"lens-recorder/internal/domain"
)

type errorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

// writeJSON пишет JSON ответ с заданным кодом статуса
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError сопоставляет err коду статуса. Классифицированные ошибки отдают текст для пользователя.
func writeError(w http.ResponseWriter, err error) {
	var de *domain.Error
	if errors.As(err, &de) {
		writeJSON(w, statusForKind(de.Kind), errorResponse{
			Error:   err.Error(),
			Kind:    de.Kind.String(),
			Message: de.UserMessage(),
		})
		return
	}

	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrRecordDisabled),
		errors.Is(err, domain.ErrSwitchDisabled),
		errors.Is(err, domain.ErrAlreadyRecording),
		errors.Is(err, domain.ErrNotRecording),
		errors.Is(err, domain.ErrNoSource),
		errors.Is(err, domain.ErrSessionPlaying):
		code = http.StatusConflict
	case errors.Is(err, domain.ErrNoArtifact):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidSize):
		code = http.StatusBadRequest
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func statusForKind(k domain.ErrorKind) int {
	switch k {
	case domain.KindPermissionDenied:
		return http.StatusForbidden
	case domain.KindDeviceNotFound:
		return http.StatusNotFound
	case domain.KindDeviceBusy, domain.KindConstraintsUnsatisfiable:
		return http.StatusConflict
	case domain.KindUnsupportedEnvironment, domain.KindShareUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func writeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
}
