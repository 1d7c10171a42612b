package log

// Logger is the structured logger used across the service.
// keysAndValues are alternating key-value pairs, e.g. "method", "sign".
type Logger interface {
	// Debug logs detail useful while diagnosing a single call.
	Debug(msg string, keysAndValues ...any)
	// Info logs routine lifecycle events.
	Info(msg string, keysAndValues ...any)
	// Warn logs unexpected but recoverable situations.
	Warn(msg string, keysAndValues ...any)
	// Error logs failures that need attention.
	Error(msg string, keysAndValues ...any)
	// Fatal logs an unrecoverable failure and terminates the process.
	Fatal(msg string, keysAndValues ...any)
	// WithKV returns a logger that adds the pair to every entry.
	WithKV(key string, value any) Logger
	// GetAllKV returns the pairs added with WithKV.
	GetAllKV() []any
	// WithName returns a logger with name appended to its dotted name.
	WithName(name string) Logger
	// Name returns the dotted logger name.
	Name() string
	// AddCallerSkip returns a logger that skips extra frames when reporting
	// the caller; use it from logging helpers.
	AddCallerSkip(skip int) Logger
}

// Level is the severity of a log entry.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

// Config configures a ZapLogger from the environment.
type Config struct {
	Format string `env:"LOG_FORMAT" env-default:"console"` // console, logfmt or json
	Level  Level  `env:"LOG_LEVEL" env-default:"info"`     // debug, info, warn, error, fatal
	Output string `env:"LOG_OUTPUT" env-default:"stderr"`  // stderr, stdout or a file path
}
