// Package logging is a thin sugar wrapper over zerolog so call sites
// read the way the rest of the codebase's logger calls do:
// logger.Infof("scanning %d candidates", n).
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

type Logger struct {
	z zerolog.Logger
}

var std = New(os.Stdout, zerolog.InfoLevel)

func New(w io.Writer, level zerolog.Level) *Logger {
	z := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &Logger{z: z}
}

func Default() *Logger { return std }

func SetDefault(l *Logger) { std = l }

func (l *Logger) With(fields map[string]any) *Logger {
	ctx := l.z.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{z: ctx.Logger()}
}

func (l *Logger) Debugf(format string, args ...any) { l.z.Debug().Msgf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.z.Info().Msgf(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.z.Warn().Msgf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.z.Error().Msgf(format, args...) }

func Debugf(format string, args ...any) { std.Debugf(format, args...) }
func Infof(format string, args ...any)  { std.Infof(format, args...) }
func Warnf(format string, args ...any)  { std.Warnf(format, args...) }
func Errorf(format string, args ...any) { std.Errorf(format, args...) }
