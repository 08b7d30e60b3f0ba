package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel maps a config/flag level name to a zap level. An empty name
// means info.
func ParseLevel(level string) (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return lvl, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}

// Init replaces the global logger. Logs go to stderr so command output on
// stdout stays machine readable; logFile, if set, receives a copy.
func Init(level, logFile string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level.SetLevel(lvl)
	cfg.OutputPaths = []string{"stderr"}

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		cfg.OutputPaths = append(cfg.OutputPaths, logFile)
	}

	root, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	zap.ReplaceGlobals(root)
	zap.S().Debugf("Log level set to %s", lvl)

	return nil
}

// Logger returns the global sugared logger. Before Init it discards output.
func Logger() *zap.SugaredLogger {
	return zap.S()
}

// Sync flushes buffered log entries
func Sync() {
	_ = zap.L().Sync()
}
