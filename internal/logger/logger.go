// Package logger provides the process-wide structured logger.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// InitLog builds the service logger writing JSON lines to stderr. Unknown or empty levels fall back to info.
func InitLog(level string) *zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	Logger := zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Str("service", "maxrent").Logger()
	return &Logger
}
