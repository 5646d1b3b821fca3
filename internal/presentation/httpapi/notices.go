package httpapi

import (
	"sync"
	"time"
)

const maxNotices = 32

// Notice - блокирующее сообщение, которое интерфейс должен показать пользователю.
type Notice struct {
	ID      uint64    `json:"id"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Board собирает уведомления и состояние индикатора занятости для интерфейса.
// Реализует application.Notifier и application.BusyIndicator.
type Board struct {
	mu      sync.Mutex
	notices []Notice
	seq     uint64
	busy    int
	now     func() time.Time
}

// NewBoard создает пустую доску уведомлений.
func NewBoard() *Board {
	return &Board{now: time.Now}
}

// Notify добавляет уведомление. Хранятся только последние.
func (b *Board) Notify(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	b.notices = append(b.notices, Notice{ID: b.seq, Message: message, At: b.now()})
	if len(b.notices) > maxNotices {
		b.notices = b.notices[len(b.notices)-maxNotices:]
	}
}

// Since возвращает уведомления с ID больше after.
func (b *Board) Since(after uint64) []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []Notice{}
	for _, n := range b.notices {
		if n.ID > after {
			out = append(out, n)
		}
	}
	return out
}

// ShowBusy показывает индикатор занятости.
func (b *Board) ShowBusy() {
	b.mu.Lock()
	b.busy++
	b.mu.Unlock()
}

// HideBusy скрывает индикатор занятости. Лишние вызовы игнорируются.
func (b *Board) HideBusy() {
	b.mu.Lock()
	if b.busy > 0 {
		b.busy--
	}
	b.mu.Unlock()
}

// Busy сообщает, показан ли индикатор занятости.
func (b *Board) Busy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.busy > 0
}
