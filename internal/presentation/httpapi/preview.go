package httpapi

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
)

const jpegQuality = 80

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *server) snapshot(w http.ResponseWriter, _ *http.Request) {
	img := s.Preview.Snapshot()
	if img == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "no frame rendered yet"})
		return
	}
	data, err := encodeJPEG(img)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}

// preview транслирует поверхность как multipart JPEG, пока клиент не отключится.
func (s *server) preview(w http.ResponseWriter, r *http.Request) {
	frames, cancel := s.Preview.Subscribe(1)
	defer cancel()

	mw := multipart.NewWriter(w)
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mw.Boundary())
	w.Header().Set("Cache-Control", "no-store")
	flusher, _ := w.(http.Flusher)

	for {
		select {
		case <-r.Context().Done():
			return
		case img := <-frames:
			data, err := encodeJPEG(img)
			if err != nil {
				s.Logger.Warn().Err(err).Msg("encode preview frame")
				continue
			}
			part, err := mw.CreatePart(textproto.MIMEHeader{
				"Content-Type":   {"image/jpeg"},
				"Content-Length": {strconv.Itoa(len(data))},
			})
			if err != nil {
				return
			}
			if _, err := part.Write(data); err != nil {
				s.Logger.Debug().Err(fmt.Errorf("write preview frame: %w", err)).Msg("preview client gone")
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}
