// Package logging builds the zap loggers used by both relique daemons
// and the CLI. Daemons log to the console and, when the log directory
// is writable, to a per-role JSON file under /var/log/relique.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogDir is where per-role log files are created. Overridable for
// packaging layouts that keep logs elsewhere.
var LogDir = "/var/log/relique"

// New builds the logger for the given role ("server", "client" or
// "cli"). The console core always works; the file core is best effort
// and is skipped silently when the log file cannot be opened.
func New(role string, debug bool) *zap.Logger {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if debug {
		level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level),
	}

	path := filepath.Join(LogDir, fmt.Sprintf("relique-%s.log", role))
	if file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(file), level))
	}

	return zap.New(zapcore.NewTee(cores...)).Named(role)
}
