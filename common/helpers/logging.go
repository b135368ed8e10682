package helpers

import (
	"os"

	"github.com/phuslu/log"
)

/**
configures the process-wide logger. console=true gives human-readable coloured output, otherwise
json lines are written to stderr
*/
func SetupLogging(level string, console bool) {
	if level == "" {
		level = "info"
	}

	logger := log.Logger{
		Level:  log.ParseLevel(level),
		Caller: 0,
	}
	if console {
		logger.Writer = &log.ConsoleWriter{ColorOutput: true, QuoteString: true}
	} else {
		logger.Writer = &log.IOWriter{Writer: os.Stderr}
	}
	log.DefaultLogger = logger
}
