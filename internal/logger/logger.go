package logger

import (
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger writes structured JSON entries tagged with service, hostname, action and request id
type Logger struct {
	service  string
	hostname string
	z        *zap.Logger
}

// New creates a logger for the given service. level is one of debug, info, warn, error.
func New(service, level string) *Logger {
	hostname, _ := os.Hostname()

	lvl := zapcore.DebugLevel
	if level != "" {
		if parsed, err := zapcore.ParseLevel(level); err == nil {
			lvl = parsed
		}
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.MessageKey = "message"

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stdout),
		lvl,
	)

	return newWithCore(service, hostname, core)
}

func newWithCore(service, hostname string, core zapcore.Core) *Logger {
	return &Logger{
		service:  service,
		hostname: hostname,
		z:        zap.New(core),
	}
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return &Logger{service: "nop", z: zap.NewNop()}
}

func (l *Logger) Debug(action, message, requestID string, fields map[string]interface{}) {
	l.z.Debug(message, l.fields(action, requestID, fields)...)
}

func (l *Logger) Info(action, message, requestID string, fields map[string]interface{}) {
	l.z.Info(message, l.fields(action, requestID, fields)...)
}

func (l *Logger) Warn(action, message, requestID string, fields map[string]interface{}) {
	l.z.Warn(message, l.fields(action, requestID, fields)...)
}

func (l *Logger) Error(action, message, requestID string, err error, fields map[string]interface{}) {
	zf := l.fields(action, requestID, fields)
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	l.z.Error(message, zf...)
}

// Sync flushes buffered entries
func (l *Logger) Sync() error {
	return l.z.Sync()
}

func (l *Logger) fields(action, requestID string, extra map[string]interface{}) []zap.Field {
	zf := make([]zap.Field, 0, 4+len(extra))
	zf = append(zf,
		zap.String("service", l.service),
		zap.String("hostname", l.hostname),
		zap.String("action", action),
		zap.String("request_id", requestID),
	)
	for k, v := range extra {
		zf = append(zf, zap.Any(k, v))
	}
	return zf
}

// GenerateRequestID returns a fresh request identifier
func GenerateRequestID() string {
	return uuid.NewString()
}
