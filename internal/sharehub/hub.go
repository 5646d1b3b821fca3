package sharehub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"lens-recorder/internal/infrastructure/logger"
	"lens-recorder/internal/infrastructure/sharing"
)

// Config задает, что принимает хаб.
type Config struct {
	Types       []string
	MaxBytes    int64
	ReadTimeout time.Duration
}

// Hub принимает записи по WebSocket.
type Hub struct {
	cfg      Config
	store    *Store
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// NewHub создает хаб, сохраняющий в store.
func NewHub(cfg Config, store *Store, log zerolog.Logger) *Hub {
	if len(cfg.Types) == 0 {
		cfg.Types = []string{"video/mp4"}
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = time.Minute
	}
	return &Hub{
		cfg:    cfg,
		store:  store,
		logger: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Routes возвращает HTTP обработчик хаба.
func (h *Hub) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/ws", h.serveWS)
	r.Get("/shares", h.listShares)
	return r
}

func (h *Hub) capabilities() sharing.Capabilities {
	return sharing.Capabilities{
		Type:     sharing.TypeCapabilities,
		Files:    true,
		Types:    h.cfg.Types,
		MaxBytes: h.cfg.MaxBytes,
	}
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := h.logger.With().Str("remote", conn.RemoteAddr().String()).Logger()
	if h.cfg.MaxBytes > 0 {
		// сообщение с метаданными и сам файл
		conn.SetReadLimit(h.cfg.MaxBytes + 64*1024)
	}

	if err := conn.WriteJSON(h.capabilities()); err != nil {
		log.Warn().Err(err).Msg("send capabilities")
		return
	}

	rec, err := h.receive(r.Context(), conn)
	if err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			// клиент только запросил возможности
			log.Debug().Msg("client disconnected")
			return
		}
		log.Warn().Err(err).Msg("share rejected")
		_ = conn.WriteJSON(sharing.Ack{Type: sharing.TypeError, Error: err.Error()})
		return
	}

	log.Info().
		Str(logger.FieldArtifact, rec.ID).
		Str("filename", rec.Filename).
		Int64(logger.FieldBytes, rec.Size).
		Msg("share received")
	_ = conn.WriteJSON(sharing.Ack{Type: sharing.TypeAck, ID: rec.ID})
	// ждем, пока клиент закроет соединение
	_, _, _ = conn.NextReader()
}

func (h *Hub) receive(ctx context.Context, conn *websocket.Conn) (Record, error) {
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))

	var meta sharing.ShareMeta
	if err := conn.ReadJSON(&meta); err != nil {
		return Record{}, err
	}
	if meta.Type != sharing.TypeShare {
		return Record{}, fmt.Errorf("unexpected message %q", meta.Type)
	}
	if !h.capabilities().Accepts(meta.Mime, int(meta.Size)) {
		return Record{}, fmt.Errorf("%s of %d bytes is not accepted", meta.Mime, meta.Size)
	}

	messageType, data, err := conn.ReadMessage()
	if err != nil {
		return Record{}, err
	}
	if messageType != websocket.BinaryMessage {
		return Record{}, errors.New("expected a binary payload")
	}
	if int64(len(data)) != meta.Size {
		return Record{}, fmt.Errorf("payload has %d bytes, announced %d", len(data), meta.Size)
	}

	return h.store.Save(ctx, Record{
		Title:    meta.Title,
		Text:     meta.Text,
		Filename: meta.Filename,
		Mime:     meta.Mime,
	}, data)
}

func (h *Hub) listShares(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.List(r.Context(), 50)
	if err != nil {
		h.logger.Error().Err(err).Msg("list shares")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []Record{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(records)
}
