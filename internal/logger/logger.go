package logger

import (
	"io"
	"os"
	"time"

	"github.com/Wyydra/callcore/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds a logger writing human readable lines to console and, when
// cfg.File is set, JSON lines to a rotated file. The returned closer owns the
// file.
func New(cfg config.LogConfig, console io.Writer) (zerolog.Logger, io.Closer, error) {
	level, err := cfg.ParseLevel()
	if err != nil {
		return zerolog.Nop(), nil, err
	}

	var w io.Writer = zerolog.ConsoleWriter{Out: console, TimeFormat: time.TimeOnly}
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		w = zerolog.MultiLevelWriter(w, file)
		closer = file
	}

	l := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return l, closer, nil
}

// Setup installs the logger as the global one used through zerolog/log.
func Setup(cfg config.LogConfig) (io.Closer, error) {
	l, closer, err := New(cfg, os.Stdout)
	if err != nil {
		return nil, err
	}
	level, _ := cfg.ParseLevel()
	zerolog.SetGlobalLevel(level)
	log.Logger = l
	return closer, nil
}
