// Package observability provides logging capabilities for bone.
package observability

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/types"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat represents the logging format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	loggerKey
)

// RequestIDHeader is the HTTP header for request ID propagation.
const RequestIDHeader = "X-Request-ID"

// LoggerConfig holds configuration for the logger.
type LoggerConfig struct {
	Level      LogLevel  `yaml:"level"`
	Format     LogFormat `yaml:"format"`
	OutputPath string    `yaml:"output_path,omitempty"`
}

// ApplyDefaults fills unset logger settings.
func (c *LoggerConfig) ApplyDefaults() {
	if c.Level == "" {
		c.Level = LogLevelInfo
	}

	if c.Format == "" {
		c.Format = LogFormatText
	}
}

// Validate rejects unknown levels and formats.
func (c LoggerConfig) Validate() error {
	if c.Level != "" && !IsValidLogLevel(string(c.Level)) {
		return fmt.Errorf("invalid log level %q", c.Level)
	}

	if c.Format != "" && !IsValidLogFormat(string(c.Format)) {
		return fmt.Errorf("invalid log format %q", c.Format)
	}

	return nil
}

// DefaultLogger returns a logger writing text to stderr at info level.
func DefaultLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(textFormatter())

	return logger
}

// DiscardLogger returns a logger that drops everything. Useful in tests.
func DiscardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return logger
}

// ConfigureLogger builds a logger from cfg. Unknown levels fall back to info
// and unknown formats to text.
func ConfigureLogger(cfg LoggerConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(string(cfg.Level)))
	if err != nil {
		level = logrus.InfoLevel
	}

	logger.SetLevel(level)

	if LogFormat(strings.ToLower(string(cfg.Format))) == LogFormatJSON {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(textFormatter())
	}

	if cfg.OutputPath == "" {
		logger.SetOutput(os.Stderr)

		return logger, nil
	}

	file, err := os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", cfg.OutputPath, err)
	}

	logger.SetOutput(file)

	return logger, nil
}

func textFormatter() logrus.Formatter {
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	}
}

// IsValidLogLevel checks if a log level is valid.
func IsValidLogLevel(level string) bool {
	switch LogLevel(strings.ToLower(level)) {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	default:
		return false
	}
}

// IsValidLogFormat checks if a log format is valid.
func IsValidLogFormat(format string) bool {
	switch LogFormat(strings.ToLower(format)) {
	case LogFormatText, LogFormatJSON:
		return true
	default:
		return false
	}
}

// SOPFields returns the log fields identifying a SOP.
func SOPFields(sop *types.SOP) logrus.Fields {
	if sop == nil {
		return logrus.Fields{"sop_id": ""}
	}

	return logrus.Fields{
		"sop_id":     sop.ID,
		"category":   sop.Category,
		"source":     sop.Source,
		"step_count": len(sop.Steps),
	}
}

// GenerateRequestID generates a new request ID.
func GenerateRequestID() string {
	return uuid.New().String()
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}

	return ""
}

// WithLogger adds a request-scoped logger to the context.
func WithLogger(ctx context.Context, logger logrus.FieldLogger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext retrieves the request-scoped logger, or fallback.
func LoggerFromContext(ctx context.Context, fallback logrus.FieldLogger) logrus.FieldLogger {
	if ctx == nil {
		return fallback
	}

	if logger, ok := ctx.Value(loggerKey).(logrus.FieldLogger); ok {
		return logger
	}

	return fallback
}

// statusRecorder captures the status code and size of a response.
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.size += n

	return n, err
}

// RequestLogger returns middleware that tags every request with an ID,
// stores a request-scoped logger in the context and logs the outcome.
func RequestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = GenerateRequestID()
			}

			w.Header().Set(RequestIDHeader, requestID)

			reqLog := log.WithField("request_id", requestID)

			ctx := WithRequestID(r.Context(), requestID)
			ctx = WithLogger(ctx, reqLog)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			entry := reqLog.WithFields(logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rec.status,
				"size":        rec.size,
				"duration_ms": time.Since(start).Milliseconds(),
				"remote_addr": r.RemoteAddr,
			})

			switch {
			case rec.status >= 500:
				entry.Error("HTTP request error")
			case rec.status >= 400:
				entry.Warn("HTTP request warning")
			default:
				entry.Info("HTTP request completed")
			}
		})
	}
}
