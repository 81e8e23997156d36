package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var (
	logLevelNames = map[LogLevel]string{
		DEBUG: "DEBUG",
		INFO:  "INFO",
		WARN:  "WARN",
		ERROR: "ERROR",
		FATAL: "FATAL",
	}

	currentLevel = INFO
	atomicLevel  = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	mu      sync.RWMutex
	console zapcore.Core
	file    zapcore.Core
	rotator *lumberjack.Logger
	base    *zap.Logger
)

func init() {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	encCfg.ConsoleSeparator = " "
	console = zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), atomicLevel)
	rebuildLocked()
}

func rebuildLocked() {
	cores := []zapcore.Core{console}
	if file != nil {
		cores = append(cores, file)
	}
	base = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(2))
}

func toZapLevel(level LogLevel) zapcore.Level {
	switch level {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case FATAL:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel maps a level name ("debug", "INFO", ...) to a LogLevel.
func ParseLevel(name string) (LogLevel, error) {
	want := strings.ToUpper(strings.TrimSpace(name))
	for lvl, n := range logLevelNames {
		if n == want {
			return lvl, nil
		}
	}
	return INFO, fmt.Errorf("unknown log level %q", name)
}

func (l LogLevel) String() string {
	return logLevelNames[l]
}

func SetLevel(level LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	currentLevel = level
	atomicLevel.SetLevel(toZapLevel(level))
}

func GetLevel() LogLevel {
	mu.RLock()
	defer mu.RUnlock()
	return currentLevel
}

func EnableFileLogging(filePath string) error {
	return EnableFileLoggingWithRotation(filePath, false, 0, 0)
}

// EnableFileLoggingWithRotation mirrors every entry as JSON into filePath.
// With rotation enabled the file is rolled at maxSizeMB and rolled files older
// than maxAgeDays are removed.
func EnableFileLoggingWithRotation(filePath string, rotationEnabled bool, maxSizeMB int, maxAgeDays int) error {
	mu.Lock()
	defer mu.Unlock()

	if strings.HasPrefix(filePath, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			filePath = filepath.Join(home, filePath[2:])
		}
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	if rotator != nil {
		rotator.Close()
	}
	rotator = &lumberjack.Logger{Filename: filePath}
	if rotationEnabled {
		rotator.MaxSize = maxSizeMB
		rotator.MaxAge = maxAgeDays
	} else {
		// lumberjack always rolls at some size; keep it out of reach.
		rotator.MaxSize = 1 << 20
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.MessageKey = "message"
	encCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	file = zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotator), atomicLevel)
	rebuildLocked()

	base.Info("File logging enabled", zap.String("path", filePath), zap.Bool("rotation", rotationEnabled))
	return nil
}

func DisableFileLogging() {
	mu.Lock()
	defer mu.Unlock()

	if rotator != nil {
		_ = base.Sync()
		rotator.Close()
		rotator = nil
		file = nil
		rebuildLocked()
	}
}

// Sync flushes buffered entries. Call before exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}

func logMessage(level LogLevel, component string, message string, fields map[string]interface{}) {
	mu.RLock()
	l := base
	lvl := currentLevel
	mu.RUnlock()

	if level < lvl {
		return
	}

	zfields := make([]zap.Field, 0, len(fields)+1)
	if component != "" {
		zfields = append(zfields, zap.String("component", component))
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		zfields = append(zfields, zap.Any(k, fields[k]))
	}

	switch level {
	case DEBUG:
		l.Debug(message, zfields...)
	case INFO:
		l.Info(message, zfields...)
	case WARN:
		l.Warn(message, zfields...)
	case ERROR:
		l.Error(message, zfields...)
	case FATAL:
		l.Fatal(message, zfields...)
	}
}

func Debug(message string) {
	logMessage(DEBUG, "", message, nil)
}

func DebugC(component string, message string) {
	logMessage(DEBUG, component, message, nil)
}

func DebugF(message string, fields map[string]interface{}) {
	logMessage(DEBUG, "", message, fields)
}

func DebugCF(component string, message string, fields map[string]interface{}) {
	logMessage(DEBUG, component, message, fields)
}

func Info(message string) {
	logMessage(INFO, "", message, nil)
}

func InfoC(component string, message string) {
	logMessage(INFO, component, message, nil)
}

func InfoF(message string, fields map[string]interface{}) {
	logMessage(INFO, "", message, fields)
}

func InfoCF(component string, message string, fields map[string]interface{}) {
	logMessage(INFO, component, message, fields)
}

func Warn(message string) {
	logMessage(WARN, "", message, nil)
}

func WarnC(component string, message string) {
	logMessage(WARN, component, message, nil)
}

func WarnF(message string, fields map[string]interface{}) {
	logMessage(WARN, "", message, fields)
}

func WarnCF(component string, message string, fields map[string]interface{}) {
	logMessage(WARN, component, message, fields)
}

func Error(message string) {
	logMessage(ERROR, "", message, nil)
}

func ErrorC(component string, message string) {
	logMessage(ERROR, component, message, nil)
}

func ErrorF(message string, fields map[string]interface{}) {
	logMessage(ERROR, "", message, fields)
}

func ErrorCF(component string, message string, fields map[string]interface{}) {
	logMessage(ERROR, component, message, fields)
}

func Fatal(message string) {
	logMessage(FATAL, "", message, nil)
}

func FatalC(component string, message string) {
	logMessage(FATAL, component, message, nil)
}

func FatalF(message string, fields map[string]interface{}) {
	logMessage(FATAL, "", message, fields)
}

func FatalCF(component string, message string, fields map[string]interface{}) {
	logMessage(FATAL, component, message, fields)
}
