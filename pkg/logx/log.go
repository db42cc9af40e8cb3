// Package logx adapts the teacher's single global zap logger
// (pkg/util/log.go) into a per-component constructor, since the slab,
// router, and host each want their own "component" field rather than
// sharing one unnamed logger.
package logx

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production zap logger at Info level with ISO8601
// timestamps, the same construction the teacher's util.NewLogger uses,
// tagged with a component field so slab/router/host log lines are
// distinguishable in one process.
func New(component string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.With(zap.String("component", component)), nil
}

// Nop returns a no-op logger, for tests and any caller that hasn't
// wired one in yet.
func Nop() *zap.Logger { return zap.NewNop() }
