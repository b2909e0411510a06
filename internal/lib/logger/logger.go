package logger

import (
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/mkorlev/packshop/internal/lib/logger/handlers/slogpretty"
)

// окружения из секции env конфига
const (
	EnvLocal = "local"
	EnvDev   = "development"
	EnvProd  = "production"
)

// SetupLogger инициализирует логгер в зависимости от переданного окружения:
// локально — цветной вывод (pretty), на dev — подробный JSON, на prod — JSON
// уровня Info
func SetupLogger(env string) *slog.Logger {
	switch env {
	case EnvLocal:
		return setupPrettySlog()
	case EnvDev:
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	default:
		// production и всё неопознанное
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
}

func setupPrettySlog() *slog.Logger {
	color.NoColor = false

	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)
	return slog.New(handler)
}
