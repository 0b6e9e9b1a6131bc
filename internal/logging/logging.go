// Package logging builds the process logger. Logs go to stderr as
// JSON: stdout belongs to the MCP stdio transport and must stay clean.
package logging

import (
	"fmt"
	"os"
	"regexp"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/planloop/planloop/internal/config"
)

// New constructs the logger from the logging section of the process
// configuration.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logging: invalid level %q: %w", cfg.Level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		level,
	)

	if len(cfg.Suppress) > 0 {
		core, err = WithSuppression(core, cfg.Suppress)
		if err != nil {
			return nil, err
		}
	}

	return zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// WithSuppression wraps a core so entries whose message matches any of
// the given regular expressions are dropped. Used to silence known-noisy
// messages from dependencies without lowering the level globally.
func WithSuppression(core zapcore.Core, patterns []string) (zapcore.Core, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("logging: invalid suppression pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return &suppressCore{Core: core, rules: compiled}, nil
}

// suppressCore drops entries by message pattern before they reach the
// wrapped core.
type suppressCore struct {
	zapcore.Core
	rules []*regexp.Regexp
}

func (c *suppressCore) suppressed(msg string) bool {
	for _, re := range c.rules {
		if re.MatchString(msg) {
			return true
		}
	}
	return false
}

func (c *suppressCore) With(fields []zapcore.Field) zapcore.Core {
	return &suppressCore{Core: c.Core.With(fields), rules: c.rules}
}

func (c *suppressCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.suppressed(entry.Message) {
		return ce
	}
	return c.Core.Check(entry, ce)
}
