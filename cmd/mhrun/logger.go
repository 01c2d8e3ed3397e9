package main

import (
	"os"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/mh-runtime/config"
)

// newLogger builds a console logger on stderr at the configured level.
// Levels are colored when stderr is a terminal.
func newLogger(cfg *config.File) (*zap.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	if cfg.Log.Development {
		encCfg = zap.NewDevelopmentEncoderConfig()
	}
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if fd := os.Stderr.Fd(); isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		zap.NewAtomicLevelAt(level),
	)
	opts := []zap.Option{zap.AddCaller()}
	if cfg.Log.Development {
		opts = append(opts, zap.Development())
	}
	return zap.New(core, opts...), nil
}
