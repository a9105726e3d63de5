// README: zerolog setup; one root logger tagged with the service name.
package infra

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

func NewLogger(service string) zerolog.Logger {
	return zerolog.New(os.Stderr).
		Level(zerolog.InfoLevel).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
