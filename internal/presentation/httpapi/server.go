// Package httpapi отдает интерфейс студии, API управления и живое превью.
package httpapi

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"lens-recorder/internal/application"
	"lens-recorder/internal/domain"
)

//go:embed web
var webFS embed.FS

// Controller - студия с точки зрения API.
type Controller interface {
	State() application.StudioState
	ToggleRecord(ctx context.Context) (domain.RecordState, error)
	SwitchCamera(ctx context.Context) error
	Download(ctx context.Context) (string, error)
	Share(ctx context.Context) error
	Back() error
	Resize(width, height int) (int, int, error)
}

// Preview отдает отрисованные кадры.
type Preview interface {
	Snapshot() image.Image
	Subscribe(buffer int) (<-chan image.Image, func())
}

// Artifacts открывает ссылки на артефакты.
type Artifacts interface {
	Open(ref string) (domain.Artifact, bool)
}

// Deps - зависимости HTTP API.
type Deps struct {
	Studio         Controller
	Preview        Preview
	Artifacts      Artifacts
	Board          *Board
	Logger         zerolog.Logger
	RequestsPerMin int
}

type server struct {
	Deps
}

type stateResponse struct {
	application.StudioState
	Notices []Notice `json:"notices"`
}

// NewRouter строит HTTP обработчик.
func NewRouter(d Deps) http.Handler {
	s := &server{Deps: d}
	if s.RequestsPerMin <= 0 {
		s.RequestsPerMin = 600
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	static, _ := fs.Sub(webFS, "web")
	r.Handle("/", http.FileServer(http.FS(static)))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/preview.mjpeg", s.preview)
	r.Get("/snapshot.jpg", s.snapshot)
	r.Get("/artifacts/{ref}", s.artifact)

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimit(s.RequestsPerMin, time.Minute))
		r.Get("/state", s.state)
		r.Post("/record", s.record)
		r.Post("/switch", s.switchCamera)
		r.Post("/download", s.download)
		r.Post("/share", s.share)
		r.Post("/back", s.back)
		r.Post("/render-size", s.renderSize)
	})
	return r
}

func rateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate_limit_exceeded"})
		}),
	)
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.Logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

func (s *server) state(w http.ResponseWriter, r *http.Request) {
	after, _ := strconv.ParseUint(r.URL.Query().Get("after"), 10, 64)
	st := s.Studio.State()
	st.Busy = st.Busy || s.Board.Busy()
	if st.Artifact != nil {
		st.Artifact.Ref = "/artifacts/" + st.Artifact.Ref
	}
	writeJSON(w, http.StatusOK, stateResponse{StudioState: st, Notices: s.Board.Since(after)})
}

func (s *server) record(w http.ResponseWriter, r *http.Request) {
	state, err := s.Studio.ToggleRecord(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"record_state": state.String()})
}

func (s *server) switchCamera(w http.ResponseWriter, r *http.Request) {
	if err := s.Studio.SwitchCamera(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"facing": s.Studio.State().Facing})
}

func (s *server) download(w http.ResponseWriter, r *http.Request) {
	path, err := s.Studio.Download(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

func (s *server) share(w http.ResponseWriter, r *http.Request) {
	if err := s.Studio.Share(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "shared"})
}

func (s *server) back(w http.ResponseWriter, _ *http.Request) {
	if err := s.Studio.Back(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type renderSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s *server) renderSize(w http.ResponseWriter, r *http.Request) {
	var req renderSize
	if err := json.NewDecoder(io.LimitReader(r.Body, 1024)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	width, height, err := s.Studio.Resize(req.Width, req.Height)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderSize{Width: width, Height: height})
}

func (s *server) artifact(w http.ResponseWriter, r *http.Request) {
	a, ok := s.Artifacts.Open(chi.URLParam(r, "ref"))
	if !ok {
		writeNotFound(w)
		return
	}
	w.Header().Set("Content-Type", a.Blob.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(a.Blob.Size()))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Filename))
	w.Header().Set("Last-Modified", a.CreatedAt.UTC().Format(http.TimeFormat))
	_, _ = w.Write(a.Blob.Data)
}
