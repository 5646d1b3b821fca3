package sharing

import "slices"

// Типы сообщений протокола отправки. Сессия выглядит так:
//
//	hub    → client  capabilities
//	client → hub     share (метаданные), затем одно бинарное сообщение с файлом
//	hub    → client  ack или error
const (
	TypeCapabilities = "capabilities"
	TypeShare        = "share"
	TypeAck          = "ack"
	TypeError        = "error"
)

// Capabilities сообщает, что принимает хаб.
type Capabilities struct {
	Type     string   `json:"type"`
	Files    bool     `json:"files"`
	Types    []string `json:"types"`
	MaxBytes int64    `json:"max_bytes"`
}

// Accepts сообщает, можно ли отправить файл такого MIME типа и размера.
func (c Capabilities) Accepts(mime string, size int) bool {
	if c.Type != TypeCapabilities || !c.Files || size <= 0 {
		return false
	}
	if c.MaxBytes > 0 && int64(size) > c.MaxBytes {
		return false
	}
	return slices.Contains(c.Types, mime)
}

// ShareMeta отправляется перед файлом.
type ShareMeta struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Text     string `json:"text"`
	Filename string `json:"filename"`
	Mime     string `json:"mime"`
	Size     int64  `json:"size"`
}

// Ack завершает сессию отправки.
type Ack struct {
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}
