/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options select the process logger.
type Options struct {
	// Environment "development" logs to a console writer at debug level.
	// Anything else logs JSON at info level.
	Environment string
	// Level overrides the environment default when set (zerolog level names).
	Level string
	// Tee, when set, also receives every JSON line.
	Tee io.Writer
	// Out defaults to os.Stdout.
	Out io.Writer
}

// New builds the process logger and installs it as the zerolog global.
func New(opts Options) (zerolog.Logger, error) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	level := zerolog.InfoLevel
	if opts.Environment == "development" {
		level = zerolog.DebugLevel
		out = zerolog.ConsoleWriter{Out: out}
	}
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	if opts.Tee != nil {
		out = zerolog.MultiLevelWriter(out, opts.Tee)
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	log.Logger = logger
	return logger, nil
}

// Component returns a child logger tagged with the component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
