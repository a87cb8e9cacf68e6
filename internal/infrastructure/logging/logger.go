package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/hwts/hwts-core/internal/infrastructure/config"
)

// Logger is the service-wide structured logger. It embeds slog.Logger,
// so Debug/Info/Warn/Error take a message plus key-value pairs.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New creates a Logger from the loaded logging configuration.
//
// Format "text" selects the human-readable handler, anything else JSON.
// Output "stderr" selects stderr, anything else stdout. Unrecognised
// levels fall back to info.
//
// Parameters:
//   - cfg: Logging section of config.yaml
//   - version: service version, attached to every record
//
// Returns:
//   - *Logger: configured logger ready for use
func New(cfg config.LoggingConfig, version string) *Logger {
	out := io.Writer(os.Stdout)
	if strings.EqualFold(cfg.Output, "stderr") {
		out = os.Stderr
	}
	return build(out, cfg, version)
}

// Default is the logger used during early startup, before config.yaml
// has been read. JSON to stdout at info level.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}

// With returns a child Logger carrying additional default attributes,
// typically a component name.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// build constructs the handler chain onto an explicit writer. Split
// out from New so tests can capture output.
func build(out io.Writer, cfg config.LoggingConfig, version string) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "hwts"),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

// parseLevel maps a configured level name to slog.Level. Accepts
// debug, info, warn/warning and error; defaults to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
