// Package logger builds the component-tagged zerolog loggers used across the
// service. APP_ENV=dev switches to human-readable console output.
package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

func New(component string) zerolog.Logger {
	env := strings.ToLower(os.Getenv("APP_ENV"))
	if env == "dev" {
		w := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(w).With().Timestamp().Str("component", component).Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Str("component", component).Logger()
}
