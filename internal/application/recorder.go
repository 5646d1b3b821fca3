package application

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"lens-recorder/internal/domain"
	"lens-recorder/internal/infrastructure/logger"
	"lens-recorder/internal/metrics"
)

// Recorder записывает поверхность рендера в упорядоченный список фрагментов.
type Recorder struct {
	media   MediaRecorder
	surface Surface
	fps     int
	logger  zerolog.Logger

	mu    sync.Mutex
	state domain.RecordState

	chunkMu sync.Mutex
	chunks  []domain.Chunk
}

// NewRecorder создает Recorder в состоянии ожидания, который снимает surface с частотой fps.
func NewRecorder(media MediaRecorder, surface Surface, fps int, log zerolog.Logger) *Recorder {
	return &Recorder{
		media:   media,
		surface: surface,
		fps:     fps,
		logger:  log,
	}
}

// State возвращает текущее состояние записи.
func (r *Recorder) State() domain.RecordState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start очищает предыдущую сессию и начинает захват.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == domain.RecordRecording {
		return domain.ErrAlreadyRecording
	}

	r.chunkMu.Lock()
	r.chunks = nil
	r.chunkMu.Unlock()

	if err := r.media.Start(ctx, r.surface, r.fps, r.append); err != nil {
		return fmt.Errorf("start media recorder: %w", err)
	}
	r.state = domain.RecordRecording
	r.logger.Info().Int(logger.FieldFPS, r.fps).Msg("recording started")
	return nil
}

// Stop собирает сессию в один blob. Blob возвращается, даже если кодировщик
// вернул ошибку при остановке: решение принимает вызывающий код.
func (r *Recorder) Stop() (domain.Blob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != domain.RecordRecording {
		return domain.Blob{}, domain.ErrNotRecording
	}
	r.state = domain.RecordIdle
	stopErr := r.media.Stop()

	r.chunkMu.Lock()
	chunks := r.chunks
	r.chunks = nil
	r.chunkMu.Unlock()

	blob := domain.Blob{
		Data:     bytes.Join(toBytes(chunks), nil),
		MimeType: r.media.MimeType(),
	}
	r.logger.Info().
		Int(logger.FieldChunks, len(chunks)).
		Int(logger.FieldBytes, blob.Size()).
		Msg("recording stopped")

	if stopErr != nil {
		return blob, fmt.Errorf("stop media recorder: %w", stopErr)
	}
	return blob, nil
}

func (r *Recorder) append(c domain.Chunk) {
	if len(c) == 0 {
		metrics.DiscardedChunks.Inc()
		return
	}
	metrics.RecordedBytes.Add(float64(len(c)))
	r.chunkMu.Lock()
	r.chunks = append(r.chunks, c)
	r.chunkMu.Unlock()
}

func toBytes(chunks []domain.Chunk) [][]byte {
	out := make([][]byte, len(chunks))
	for i, c := range chunks {
		out[i] = c
	}
	return out
}
