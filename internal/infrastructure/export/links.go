package export

import (
	"sync"

	"github.com/google/uuid"

	"lens-recorder/internal/domain"
)

// Links - реестр ссылок на артефакты в памяти, отдаваемых по HTTP.
// Отозванная ссылка больше никогда не открывается.
type Links struct {
	mu    sync.RWMutex
	items map[string]domain.Artifact
}

// NewLinks создает пустой реестр.
func NewLinks() *Links {
	return &Links{items: make(map[string]domain.Artifact)}
}

// Publish регистрирует a и возвращает ссылку на него.
func (l *Links) Publish(a domain.Artifact) string {
	ref := uuid.NewString()
	a.ID = ref

	l.mu.Lock()
	l.items[ref] = a
	l.mu.Unlock()
	return ref
}

// Open открывает ссылку.
func (l *Links) Open(ref string) (domain.Artifact, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.items[ref]
	return a, ok
}

// Revoke отзывает ссылку. Неизвестные ссылки игнорируются.
func (l *Links) Revoke(ref string) {
	l.mu.Lock()
	delete(l.items, ref)
	l.mu.Unlock()
}

// Len возвращает число действующих ссылок.
func (l *Links) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}
