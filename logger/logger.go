package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger represents a structured logger
type Logger struct {
	logger    zerolog.Logger
	component string
}

var (
	// Default is the default logger instance
	Default *Logger
)

// Init initializes the logger. Production logs JSON at info level unless
// LOG_LEVEL says otherwise; development logs to the console at debug level.
// Logs go to stderr so the run summary on stdout stays readable.
func Init(production bool) {
	level := getLogLevel(production)

	// Configure zerolog
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)

	var output io.Writer = os.Stderr
	if !production {
		output = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
	}

	Default = New(output)

	Default.Debug().
		Str("level", level.String()).
		Msg("Logger initialized")
}

// New creates a logger writing to w
func New(w io.Writer) *Logger {
	return &Logger{logger: zerolog.New(w).With().Timestamp().Logger()}
}

// Nop returns a logger that discards everything, for tests
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

// getLogLevel returns the log level from environment variable
func getLogLevel(production bool) zerolog.Level {
	levelStr := os.Getenv("LOG_LEVEL")
	if levelStr == "" {
		if production {
			return zerolog.InfoLevel
		}
		return zerolog.DebugLevel
	}

	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// WithContext returns the logger stored in ctx, falling back to l.
// The component of l is carried over to the context logger.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	ctxLogger := zerolog.Ctx(ctx)
	if ctxLogger.GetLevel() == zerolog.Disabled {
		return l
	}
	if l.component == "" {
		return &Logger{logger: *ctxLogger}
	}
	return &Logger{
		logger:    ctxLogger.With().Str("component", l.component).Logger(),
		component: l.component,
	}
}

// Attach stores the logger in ctx
func (l *Logger) Attach(ctx context.Context) context.Context {
	return l.logger.WithContext(ctx)
}

// WithField creates a new logger with a single field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger(), component: l.component}
}

// Debug returns a debug event
func (l *Logger) Debug() *zerolog.Event {
	return l.logger.Debug()
}

// Info returns an info event
func (l *Logger) Info() *zerolog.Event {
	return l.logger.Info()
}

// Warn returns a warn event
func (l *Logger) Warn() *zerolog.Event {
	return l.logger.Warn()
}

// Error returns an error event
func (l *Logger) Error() *zerolog.Event {
	return l.logger.Error()
}

// Info logs an info message
func Info(format string, v ...interface{}) {
	if Default == nil {
		Init(false)
	}
	Default.Info().Msgf(format, v...)
}

// ForComponent creates a logger tagged with a component name
func ForComponent(component string) *Logger {
	if Default == nil {
		Init(false)
	}
	l := Default.WithField("component", component)
	l.component = component
	return l
}

// ForRun creates an untagged logger carrying a run id, meant to be attached
// to the context of a run so component loggers pick the id up
func ForRun(runID string) *Logger {
	if Default == nil {
		Init(false)
	}
	return Default.WithField("run_id", runID)
}

// ForFetcher creates a logger for the page fetcher
func ForFetcher() *Logger {
	return ForComponent("fetcher")
}

// ForScraper creates a logger for the hierarchy scraper
func ForScraper() *Logger {
	return ForComponent("scraper")
}

// ForRefiner creates a logger for the refiner
func ForRefiner() *Logger {
	return ForComponent("refiner")
}

// ForWorker creates a logger for the worker
func ForWorker() *Logger {
	return ForComponent("worker")
}

// ForPublisher creates a logger for the publisher
func ForPublisher() *Logger {
	return ForComponent("publisher")
}

// ForCache creates a logger for the cache
func ForCache() *Logger {
	return ForComponent("cache")
}

// ForStore creates a logger for the sqlite store
func ForStore() *Logger {
	return ForComponent("store")
}
