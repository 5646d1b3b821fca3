package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"lens-recorder/internal/domain"
	"lens-recorder/internal/infrastructure/logger"
)

// FileDownloader сохраняет артефакты в директорию. Файл либо записан целиком, либо отсутствует.
type FileDownloader struct {
	dir    string
	logger zerolog.Logger
}

// NewFileDownloader создает загрузчик, пишущий в dir.
func NewFileDownloader(dir string, log zerolog.Logger) *FileDownloader {
	return &FileDownloader{dir: dir, logger: log}
}

// Download записывает артефакт под его именем, заменяя прежний файл.
func (d *FileDownloader) Download(ctx context.Context, a domain.Artifact) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := filepath.Base(a.Filename)
	if name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid filename %q", a.Filename)
	}
	if err := os.MkdirAll(d.dir, 0o750); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	path := filepath.Join(d.dir, name)
	pf, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return "", fmt.Errorf("create pending file: %w", err)
	}
	defer pf.Cleanup() //nolint:errcheck

	if _, err := pf.Write(a.Blob.Data); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("replace %s: %w", name, err)
	}

	d.logger.Debug().Str(logger.FieldPath, path).Int(logger.FieldBytes, a.Blob.Size()).Msg("artifact written")
	return path, nil
}
