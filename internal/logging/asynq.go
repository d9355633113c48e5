package logging

import (
	"fmt"

	"github.com/rs/zerolog"
)

// AsynqLogger adapts a zerolog logger to the worker server's Logger interface.
type AsynqLogger struct {
	logger zerolog.Logger
}

// NewAsynqLogger returns a worker logger that writes through zl.
func NewAsynqLogger(zl zerolog.Logger) *AsynqLogger {
	return &AsynqLogger{logger: zl}
}

func (l *AsynqLogger) Debug(args ...interface{}) { l.logger.Debug().Msg(fmt.Sprint(args...)) }
func (l *AsynqLogger) Info(args ...interface{})  { l.logger.Info().Msg(fmt.Sprint(args...)) }
func (l *AsynqLogger) Warn(args ...interface{})  { l.logger.Warn().Msg(fmt.Sprint(args...)) }
func (l *AsynqLogger) Error(args ...interface{}) { l.logger.Error().Msg(fmt.Sprint(args...)) }

// Fatal logs at fatal level, which exits the process.
func (l *AsynqLogger) Fatal(args ...interface{}) { l.logger.Fatal().Msg(fmt.Sprint(args...)) }
