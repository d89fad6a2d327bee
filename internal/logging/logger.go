// Package logging builds zap loggers and adapts them to apicore.Logger.
package logging

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fivetwenty-io/apicore/pkg/apicore"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a JSON production logger at level.
func New(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"

	var lvl zapcore.Level

	err := lvl.UnmarshalText([]byte(strings.ToLower(level)))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

// Adapter implements apicore.Logger on top of zap.
type Adapter struct {
	logger *zap.Logger
}

var _ apicore.Logger = (*Adapter)(nil)

// NewAdapter wraps logger; nil yields a no-op logger.
func NewAdapter(logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Adapter{logger: logger}
}

// Debug implements apicore.Logger.
func (a *Adapter) Debug(msg string, fields map[string]interface{}) {
	a.logger.Debug(msg, toFields(fields)...)
}

// Info implements apicore.Logger.
func (a *Adapter) Info(msg string, fields map[string]interface{}) {
	a.logger.Info(msg, toFields(fields)...)
}

// Warn implements apicore.Logger.
func (a *Adapter) Warn(msg string, fields map[string]interface{}) {
	a.logger.Warn(msg, toFields(fields)...)
}

// Error implements apicore.Logger.
func (a *Adapter) Error(msg string, fields map[string]interface{}) {
	a.logger.Error(msg, toFields(fields)...)
}

// Sync flushes buffered entries.
func (a *Adapter) Sync() error {
	return a.logger.Sync()
}

func toFields(fields map[string]interface{}) []zap.Field {
	if len(fields) == 0 {
		return nil
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	result := make([]zap.Field, 0, len(fields))

	for _, key := range keys {
		value := fields[key]
		if err, ok := value.(error); ok {
			result = append(result, zap.NamedError(key, err))

			continue
		}

		result = append(result, zap.Any(key, value))
	}

	return result
}
