// Package logger настраивает общий для процесса логгер zerolog.
package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config - параметры глобального логгера.
type Config struct {
	Level   string    // "debug", "info", ... пусто - берется LOG_LEVEL
	Output  io.Writer // по умолчанию os.Stdout
	Service string    // добавляется к каждой записи
	Pretty  bool      // читаемый вывод в консоль
}

var (
	once sync.Once
	base zerolog.Logger
)

// Configure настраивает глобальный логгер ровно один раз.
func Configure(cfg Config) {
	once.Do(func() {
		level := zerolog.InfoLevel
		name := cfg.Level
		if name == "" {
			name = os.Getenv("LOG_LEVEL")
		}
		if name != "" {
			if parsed, err := zerolog.ParseLevel(name); err == nil {
				level = parsed
			}
		}
		zerolog.SetGlobalLevel(level)
		zerolog.TimeFieldFormat = time.RFC3339

		writer := cfg.Output
		if writer == nil {
			writer = os.Stdout
		}
		if cfg.Pretty {
			writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.Kitchen}
		}

		service := cfg.Service
		if service == "" {
			service = "lens-recorder"
		}

		base = zerolog.New(writer).With().
			Timestamp().
			Str(FieldService, service).
			Logger()
	})
}

// Base возвращает настроенный базовый логгер.
func Base() zerolog.Logger {
	Configure(Config{})
	return base
}

// WithComponent возвращает дочерний логгер с именем компонента.
func WithComponent(component string) zerolog.Logger {
	return Base().With().Str(FieldComponent, component).Logger()
}

// Nop отбрасывает все записи. Используется по умолчанию для необязательных логгеров.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
