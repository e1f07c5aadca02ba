package observability

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type correlationIDKey struct{}

const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

type LoggerConfig struct {
	// Service is attached to every entry, e.g. "certmint-worker".
	Service string
	Level   string
	// Format is json (default) or console.
	Format string
}

func NewLogger(cfg LoggerConfig) (*zap.Logger, error) {
	parsedLevel, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var zcfg zap.Config
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", LogFormatJSON:
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.TimeKey = "timestamp"
	case LogFormatConsole:
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}
	zcfg.Level = zap.NewAtomicLevelAt(parsedLevel)
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.DisableStacktrace = true

	opts := []zap.Option{zap.AddCaller()}
	if service := strings.TrimSpace(cfg.Service); service != "" {
		opts = append(opts, zap.Fields(zap.String("service", service)))
	}

	logger, err := zcfg.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}

func parseLevel(level string) (zapcore.Level, error) {
	var parsed zapcore.Level
	normalized := strings.ToLower(strings.TrimSpace(level))
	if normalized == "" {
		normalized = "info"
	}

	if err := parsed.UnmarshalText([]byte(normalized)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	return parsed, nil
}

func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, correlationIDKey{}, correlationID)
}

func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}

	correlationID, ok := ctx.Value(correlationIDKey{}).(string)
	if !ok || correlationID == "" {
		return "", false
	}

	return correlationID, true
}

func WithContextLogger(logger *zap.Logger, ctx context.Context) *zap.Logger {
	if logger == nil {
		return nil
	}

	correlationID, ok := CorrelationIDFromContext(ctx)
	if !ok {
		return logger
	}

	return logger.With(zap.String("correlationId", correlationID))
}

// WithRecordLogger scopes a logger to one record of a batch.
func WithRecordLogger(logger *zap.Logger, batchID string, index int, row int) *zap.Logger {
	if logger == nil {
		return nil
	}

	fields := make([]zap.Field, 0, 3)
	if batchID != "" {
		fields = append(fields, zap.String("batchId", batchID))
	}
	fields = append(fields, zap.Int("recordIndex", index), zap.Int("row", row))

	return logger.With(fields...)
}
