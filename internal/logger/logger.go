package logger

import (
	"fmt"
	"net/http"
	"strings"

	"finanzapp-core/internal/config"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the service logger. Format "json" selects the production
// encoder; anything else the human-readable development one. Output is a
// comma-separated list of zap sinks (paths, "stdout", "stderr").
func NewLogger(cfg config.Logger) (*zap.Logger, error) {
	logLevel, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}

	zc.Level = zap.NewAtomicLevelAt(logLevel)
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.InitialFields = map[string]interface{}{"service": "finanzapp-core"}
	if sinks := splitSinks(cfg.Output); len(sinks) > 0 {
		zc.OutputPaths = sinks
	}

	log, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("could not build logger: %w", err)
	}
	return log, nil
}

func splitSinks(output string) []string {
	var sinks []string
	for _, s := range strings.Split(output, ",") {
		if s = strings.TrimSpace(s); s != "" {
			sinks = append(sinks, s)
		}
	}
	return sinks
}

// WithRequest tags log with the request id and route of r.
func WithRequest(log *zap.Logger, r *http.Request) *zap.Logger {
	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	}
	if id := middleware.GetReqID(r.Context()); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	return log.With(fields...)
}
