package sharing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"lens-recorder/internal/domain"
	"lens-recorder/internal/infrastructure/logger"
)

const defaultTimeout = 30 * time.Second

// WebSocketSharer передает записи в хаб по WebSocket.
type WebSocketSharer struct {
	url     string
	dialer  *websocket.Dialer
	timeout time.Duration
	logger  zerolog.Logger
}

// NewWebSocketSharer создает отправщик для хаба по адресу rawURL. Пустой адрес отключает отправку.
func NewWebSocketSharer(rawURL string, timeout time.Duration, log zerolog.Logger) (*WebSocketSharer, error) {
	if rawURL != "" {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("parse share url: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return nil, fmt.Errorf("share url must use ws or wss, got %q", u.Scheme)
		}
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &WebSocketSharer{
		url:     rawURL,
		dialer:  websocket.DefaultDialer,
		timeout: timeout,
		logger:  log,
	}, nil
}

// CanShare спрашивает хаб, примет ли он данные. Любая ошибка означает "нет".
func (s *WebSocketSharer) CanShare(ctx context.Context, p domain.SharePayload) bool {
	if s.url == "" {
		return false
	}
	conn, caps, err := s.connect(ctx)
	if err != nil {
		s.logger.Debug().Err(err).Msg("share hub unavailable")
		return false
	}
	s.close(conn)
	return caps.Accepts(p.Blob.MimeType, p.Blob.Size())
}

// Share отправляет данные и ждет подтверждения от хаба.
func (s *WebSocketSharer) Share(ctx context.Context, p domain.SharePayload) error {
	if s.url == "" {
		return domain.NewError(domain.KindShareUnsupported, "share", errors.New("no share hub configured"))
	}
	conn, caps, err := s.connect(ctx)
	if err != nil {
		return fmt.Errorf("connect to share hub: %w", err)
	}
	defer s.close(conn)

	if !caps.Accepts(p.Blob.MimeType, p.Blob.Size()) {
		return domain.NewError(domain.KindShareUnsupported, "share",
			fmt.Errorf("hub does not accept %s of %d bytes", p.Blob.MimeType, p.Blob.Size()))
	}

	_ = conn.SetWriteDeadline(s.deadline(ctx))
	meta := ShareMeta{
		Type:     TypeShare,
		Title:    p.Title,
		Text:     p.Text,
		Filename: p.Filename,
		Mime:     p.Blob.MimeType,
		Size:     int64(p.Blob.Size()),
	}
	if err := conn.WriteJSON(meta); err != nil {
		return fmt.Errorf("send share metadata: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, p.Blob.Data); err != nil {
		return fmt.Errorf("send share payload: %w", err)
	}

	_ = conn.SetReadDeadline(s.deadline(ctx))
	var ack Ack
	if err := conn.ReadJSON(&ack); err != nil {
		return fmt.Errorf("read share ack: %w", err)
	}
	if ack.Type != TypeAck {
		return fmt.Errorf("share rejected: %s", ack.Error)
	}

	s.logger.Info().Str(logger.FieldArtifact, ack.ID).Int(logger.FieldBytes, p.Blob.Size()).Msg("shared to hub")
	return nil
}

func (s *WebSocketSharer) connect(ctx context.Context) (*websocket.Conn, Capabilities, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return nil, Capabilities{}, err
	}

	_ = conn.SetReadDeadline(s.deadline(ctx))
	var caps Capabilities
	if err := conn.ReadJSON(&caps); err != nil {
		conn.Close()
		return nil, Capabilities{}, fmt.Errorf("read capabilities: %w", err)
	}
	if caps.Type != TypeCapabilities {
		conn.Close()
		return nil, Capabilities{}, fmt.Errorf("unexpected message %q", caps.Type)
	}
	return conn, caps, nil
}

func (s *WebSocketSharer) deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(s.timeout)
}

func (s *WebSocketSharer) close(conn *websocket.Conn) {
	err := conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	if err != nil {
		s.logger.Debug().Err(err).Msg("close share connection")
	}
	conn.Close()
}
