package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/autonexit/FaceShield/internal/config"
)

// Log file names served by the logs handlers.
const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (info/warning/error) to files and stdout/stderr.
type Logger struct {
	zl     *zap.Logger
	sugar  *zap.SugaredLogger
	logDir string
}

// NewLogger creates a Logger and ensures the log directory exists.
func NewLogger(cfg *config.Config) (*Logger, error) {
	if err := os.MkdirAll(cfg.LogDirectory, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	minLevel, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		minLevel = zapcore.InfoLevel
	}

	l := &Logger{logDir: cfg.LogDirectory}
	core, err := l.setupCores(minLevel)
	if err != nil {
		return nil, err
	}

	l.zl = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	l.sugar = l.zl.Sugar()
	return l, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	zl := zap.NewNop()
	return &Logger{zl: zl, sugar: zl.Sugar()}
}

// setupCores builds one JSON file core per level plus a console core.
func (l *Logger) setupCores(minLevel zapcore.Level) (zapcore.Core, error) {
	fileEnc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleEnc := zapcore.NewConsoleEncoder(consoleCfg)

	only := func(lvl zapcore.Level) zap.LevelEnablerFunc {
		return func(z zapcore.Level) bool { return z == lvl && z >= minLevel }
	}
	atLeast := func(lvl zapcore.Level) zap.LevelEnablerFunc {
		return func(z zapcore.Level) bool { return z >= lvl && z >= minLevel }
	}
	below := func(lvl zapcore.Level) zap.LevelEnablerFunc {
		return func(z zapcore.Level) bool { return z < lvl && z >= minLevel }
	}

	infoFile, err := l.openLogFile(InfoFile)
	if err != nil {
		return nil, err
	}
	warningFile, err := l.openLogFile(WarningFile)
	if err != nil {
		return nil, err
	}
	errorFile, err := l.openLogFile(ErrorFile)
	if err != nil {
		return nil, err
	}

	return zapcore.NewTee(
		zapcore.NewCore(fileEnc, infoFile, below(zapcore.WarnLevel)),
		zapcore.NewCore(fileEnc, warningFile, only(zapcore.WarnLevel)),
		zapcore.NewCore(fileEnc, errorFile, atLeast(zapcore.ErrorLevel)),
		zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stdout), below(zapcore.ErrorLevel)),
		zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stderr), atLeast(zapcore.ErrorLevel)),
	), nil
}

// openLogFile opens or creates a log file for appending.
func (l *Logger) openLogFile(name string) (zapcore.WriteSyncer, error) {
	file, err := os.OpenFile(filepath.Join(l.logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", name, err)
	}
	return zapcore.Lock(file), nil
}

// Named returns a child logger tagged with the given component.
func (l *Logger) Named(component string) *Logger {
	zl := l.zl.Named(component)
	return &Logger{zl: zl, sugar: zl.Sugar(), logDir: l.logDir}
}

// With returns a child logger carrying the given structured fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	zl := l.zl.With(fields...)
	return &Logger{zl: zl, sugar: zl.Sugar(), logDir: l.logDir}
}

// Zap exposes the underlying logger.
func (l *Logger) Zap() *zap.Logger {
	return l.zl
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.sugar.Warnf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.sugar.Errorf(format, v...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() {
	_ = l.zl.Sync()
}

// Dir is the directory holding the log files, empty for Nop.
func (l *Logger) Dir() string {
	return l.logDir
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	if l.logDir == "" {
		return nil
	}
	filePath := filepath.Join(l.logDir, filepath.Base(fileName))
	if err := os.Truncate(filePath, 0); err != nil {
		l.Error("Error clearing %s: %v", fileName, err)
		return err
	}

	l.Info("File %s has been cleared.", fileName)
	return nil
}

// OrNop returns l, or a discarding logger when l is nil.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return Nop()
	}
	return l
}
