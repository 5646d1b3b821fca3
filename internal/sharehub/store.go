package sharehub

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // драйвер на чистом Go
)

const schema = `
CREATE TABLE IF NOT EXISTS shares (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	body       TEXT NOT NULL,
	filename   TEXT NOT NULL,
	mime       TEXT NOT NULL,
	size       INTEGER NOT NULL,
	path       TEXT NOT NULL,
	created_at INTEGER NOT NULL
)`

// Record описывает один полученный файл.
type Record struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Filename  string    `json:"filename"`
	Mime      string    `json:"mime"`
	Size      int64     `json:"size"`
	Path      string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Store хранит полученные файлы на диске, а их метаданные в SQLite.
type Store struct {
	db  *sql.DB
	dir string
	now func() time.Time
}

// OpenStore открывает (или создает) хранилище в dir.
func OpenStore(ctx context.Context, dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, "files"), 0o750); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", filepath.Join(dir, "shares.db"))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return &Store{db: db, dir: dir, now: time.Now}, nil
}

// Save записывает файл и сохраняет его метаданные.
func (s *Store) Save(ctx context.Context, r Record, data []byte) (Record, error) {
	r.ID = uuid.NewString()
	r.Size = int64(len(data))
	r.CreatedAt = s.now().UTC().Truncate(time.Millisecond)
	r.Path = filepath.Join(s.dir, "files", r.ID+filepath.Ext(filepath.Base(r.Filename)))

	if err := renameio.WriteFile(r.Path, data, 0o640); err != nil {
		return Record{}, fmt.Errorf("write file: %w", err)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO shares (id, title, body, filename, mime, size, path, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Title, r.Text, r.Filename, r.Mime, r.Size, r.Path, r.CreatedAt.UnixMilli(),
	)
	if err != nil {
		_ = os.Remove(r.Path)
		return Record{}, fmt.Errorf("insert share: %w", err)
	}
	return r, nil
}

// List возвращает записи, начиная с самых новых.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, body, filename, mime, size, path, created_at FROM shares ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		var r Record
		var created int64
		if err := rows.Scan(&r.ID, &r.Title, &r.Text, &r.Filename, &r.Mime, &r.Size, &r.Path, &created); err != nil {
			return nil, err
		}
		r.CreatedAt = time.UnixMilli(created).UTC()
		result = append(result, r)
	}
	return result, rows.Err()
}

// Close закрывает базу данных.
func (s *Store) Close() error {
	return s.db.Close()
}
