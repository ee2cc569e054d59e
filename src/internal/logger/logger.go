package logger

import (
	"encoding/json"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Fields map[string]any

var sensitiveKeys = map[string]struct{}{
	"channelkey":    {},
	"channel_key":   {},
	"password":      {},
	"secret":        {},
	"token":         {},
	"authorization": {},
	"pin":           {},
}

var base atomic.Pointer[zap.Logger]

func init() {
	base.Store(zap.NewNop())
}

// Init replaces the process logger. Unknown levels fall back to info.
func Init(level string) error {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true

	l, err := cfg.Build()
	if err != nil {
		return err
	}

	base.Store(l)
	return nil
}

func Use(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	base.Store(l)
}

func Sync() {
	_ = base.Load().Sync()
}

func Info(message string, fields Fields) {
	base.Load().Info(message, zapFields(fields)...)
}

func Warn(message string, fields Fields) {
	base.Load().Warn(message, zapFields(fields)...)
}

func Error(message string, err error, fields Fields) {
	out := zapFields(fields)
	if err != nil {
		out = append(out, zap.String("error", err.Error()))
	}

	base.Load().Error(message, out...)
}

func SanitizePayload(payload any) any {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "<unavailable>"
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return "<unavailable>"
	}

	return sanitizeValue(data)
}

func zapFields(fields Fields) []zap.Field {
	if len(fields) == 0 {
		return nil
	}

	out := make([]zap.Field, 0, len(fields))
	for key, value := range fields {
		if isSensitiveKey(key) {
			out = append(out, zap.String(key, "******"))
			continue
		}
		switch typed := value.(type) {
		case map[string]any, []any:
			out = append(out, zap.Any(key, sanitizeValue(typed)))
		default:
			out = append(out, zap.Any(key, value))
		}
	}

	return out
}

func sanitizeValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, inner := range typed {
			if isSensitiveKey(key) {
				out[key] = "******"
				continue
			}
			out[key] = sanitizeValue(inner)
		}
		return out
	case []any:
		out := make([]any, 0, len(typed))
		for _, item := range typed {
			out = append(out, sanitizeValue(item))
		}
		return out
	default:
		return value
	}
}

func isSensitiveKey(key string) bool {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(key), "-", ""))
	_, ok := sensitiveKeys[normalized]
	return ok
}
