package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	ZapLogger   *zap.SugaredLogger
	atomicLevel zap.AtomicLevel

	mirrorMu sync.RWMutex
	mirror   func(text string)
}

type Config struct {
	Level       string
	Environment string

	// File enables a rotating JSON log file next to the console output.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func parseLevel(level string) (zapcore.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return zap.DebugLevel, true
	case "info":
		return zap.InfoLevel, true
	case "warn", "warning":
		return zap.WarnLevel, true
	case "error":
		return zap.ErrorLevel, true
	case "fatal":
		return zap.FatalLevel, true
	}
	return zap.InfoLevel, false
}

func NewLogger(cfg Config) (*Logger, error) {
	logLevel, ok := parseLevel(cfg.Level)
	if !ok {
		fmt.Printf("WARN: Invalid log level '%s' specified, defaulting to INFO\n", cfg.Level)
	}
	atomicLevel := zap.NewAtomicLevelAt(logLevel)

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.LevelKey = "severity"
	encoderConfig.MessageKey = "message"
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stdout), atomicLevel),
	}

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotator), atomicLevel))
	}

	// AddCallerSkip(1) so caller shows function calling logger methods, not logger methods themselves
	zapLogger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	if cfg.Environment != "" {
		zapLogger = zapLogger.With(zap.String("env", cfg.Environment))
	}

	l := &Logger{
		ZapLogger:   zapLogger.Sugar(),
		atomicLevel: atomicLevel,
	}
	l.ZapLogger.Infof("Logger initialized. Level: %s, File: %q", logLevel.String(), cfg.File)
	return l, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{
		ZapLogger:   zap.NewNop().Sugar(),
		atomicLevel: zap.NewAtomicLevelAt(zap.FatalLevel),
	}
}

func (l *Logger) Zap() *zap.SugaredLogger {
	return l.ZapLogger
}

// SetTelegramMirror forwards WARN and above to fn. Pass nil to disable.
func (l *Logger) SetTelegramMirror(fn func(text string)) {
	l.mirrorMu.Lock()
	l.mirror = fn
	l.mirrorMu.Unlock()
}

// Formats key-values as " | key=`value`" pairs for chat output.
func formatKeyValuesForTelegram(keysAndValues ...interface{}) string {
	if len(keysAndValues) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(" |")
	for i := 0; i < len(keysAndValues); i++ {
		switch kv := keysAndValues[i].(type) {
		case zap.Field:
			enc := zapcore.NewMapObjectEncoder()
			kv.AddTo(enc)
			for k, v := range enc.Fields {
				sb.WriteString(fmt.Sprintf(" %s=`%v`", k, v))
			}
		default:
			if i+1 >= len(keysAndValues) {
				sb.WriteString(fmt.Sprintf(" %v=`INVALID_ARGS`", kv))
				continue
			}
			val := keysAndValues[i+1]
			if err, ok := val.(error); ok {
				val = err.Error()
			}
			sb.WriteString(fmt.Sprintf(" %v=`%v`", kv, val))
			i++
		}
	}
	return sb.String()
}

func (l *Logger) forward(level zapcore.Level, prefix, msg string, keysAndValues ...interface{}) {
	if !l.atomicLevel.Enabled(level) {
		return
	}
	l.mirrorMu.RLock()
	fn := l.mirror
	l.mirrorMu.RUnlock()
	if fn == nil {
		return
	}
	fn(prefix + msg + formatKeyValuesForTelegram(keysAndValues...))
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.ZapLogger.Debugw(msg, keysAndValues...)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.ZapLogger.Infow(msg, keysAndValues...)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.ZapLogger.Warnw(msg, keysAndValues...)
	l.forward(zap.WarnLevel, "🟡 WARN: ", msg, keysAndValues...)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.ZapLogger.Errorw(msg, keysAndValues...)
	l.forward(zap.ErrorLevel, "🔴 ERROR: ", msg, keysAndValues...)
}

func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.forward(zap.FatalLevel, "💀 FATAL: ", msg, keysAndValues...)
	l.ZapLogger.Fatalw(msg, keysAndValues...)
}

func (l *Logger) SetLevel(level string) {
	logLevel, ok := parseLevel(level)
	if !ok || logLevel == zap.FatalLevel {
		l.ZapLogger.Warnf("Invalid log level '%s' provided to SetLevel, level unchanged.", level)
		return
	}
	l.atomicLevel.SetLevel(logLevel)
	l.ZapLogger.Infof("Logger level changed to: %s", logLevel.String())
}

func (l *Logger) Sync() {
	_ = l.ZapLogger.Sync()
}
