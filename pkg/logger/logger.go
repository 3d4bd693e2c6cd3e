// Package logger builds the zerolog logger used by the revision hook.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

const (
	permission = 0664
)

type LogBuild struct {
	writer io.Writer
	path   string
	level  zerolog.Level
	fields map[string]any
}

type LogData struct {
	LogFile *os.File
	Logger  zerolog.Logger
}

func New() *LogBuild {
	return &LogBuild{level: zerolog.InfoLevel}
}

// FromPath appends log lines to the file at path, creating it if needed.
// It takes precedence over FromBuffer.
func (build *LogBuild) FromPath(path string) *LogBuild {
	build.path = path
	return build
}

func (build *LogBuild) FromBuffer(w io.Writer) *LogBuild {
	build.writer = w
	return build
}

func (build *LogBuild) WithLevel(level zerolog.Level) *LogBuild {
	build.level = level
	return build
}

// With attaches a static field to every line, e.g. the service name.
func (build *LogBuild) With(key string, value any) *LogBuild {
	if build.fields == nil {
		build.fields = make(map[string]any)
	}
	build.fields[key] = value
	return build
}

func (build *LogBuild) Make() (logData *LogData, err error) {
	logData = new(LogData)
	writer := build.writer
	if writer == nil {
		writer = os.Stdout
	}
	if build.path != "" {
		logData.LogFile, err = os.OpenFile(build.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		writer = zerolog.SyncWriter(logData.LogFile)
	}

	ctx := zerolog.New(writer).Level(build.level).With().Timestamp()
	if len(build.fields) > 0 {
		ctx = ctx.Fields(build.fields)
	}
	logData.Logger = ctx.Logger()
	return logData, nil
}

// Close releases the log file opened by FromPath, if any.
func (logData *LogData) Close() error {
	if logData.LogFile == nil {
		return nil
	}
	return logData.LogFile.Close()
}
