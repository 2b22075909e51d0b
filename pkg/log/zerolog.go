package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	cyerrors "github.com/YuminosukeSato/cropyield/pkg/errors"
)

// ZerologProvider is a LoggerProvider backed by rs/zerolog. All loggers it hands
// out share the provider's writer and level; SetLevel applies to them immediately.
type ZerologProvider struct {
	base  zerolog.Logger
	level *atomic.Int64
}

// ProviderOption configures a ZerologProvider.
type ProviderOption func(*providerConfig)

type providerConfig struct {
	out     io.Writer
	console bool
}

// WithOutput sets the destination writer (default os.Stderr).
func WithOutput(w io.Writer) ProviderOption {
	return func(c *providerConfig) { c.out = w }
}

// WithConsole switches from JSON lines to zerolog's human-readable console format.
func WithConsole() ProviderOption {
	return func(c *providerConfig) { c.console = true }
}

// NewZerologProvider creates a provider that emits records at level and above.
func NewZerologProvider(level Level, opts ...ProviderOption) *ZerologProvider {
	cfg := providerConfig{out: os.Stderr}
	for _, opt := range opts {
		opt(&cfg)
	}
	out := cfg.out
	if cfg.console {
		out = zerolog.ConsoleWriter{Out: cfg.out, TimeFormat: time.RFC3339}
	}
	lvl := &atomic.Int64{}
	lvl.Store(int64(level))
	return &ZerologProvider{
		base:  zerolog.New(out).With().Timestamp().Logger(),
		level: lvl,
	}
}

// GetLogger implements LoggerProvider.
func (p *ZerologProvider) GetLogger() Logger {
	return &zerologLogger{zl: p.base, level: p.level}
}

// GetLoggerWithName implements LoggerProvider.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	return &zerologLogger{zl: p.base.With().Str(ComponentKey, name).Logger(), level: p.level}
}

// SetLevel implements LoggerProvider.
func (p *ZerologProvider) SetLevel(level Level) {
	p.level.Store(int64(level))
}

func (p *ZerologProvider) warn(w error) {
	if Level(p.level.Load()) > LevelWarn {
		return
	}
	ev := p.base.Warn().Str(ComponentKey, "warnings")
	var m zerolog.LogObjectMarshaler
	if errors.As(w, &m) {
		ev = ev.Object("warning", m)
	}
	ev.Msg(w.Error())
}

type zerologLogger struct {
	zl    zerolog.Logger
	level *atomic.Int64
}

func (l *zerologLogger) Debug(msg string, fields ...any) {
	l.emit(LevelDebug, l.zl.Debug(), msg, fields)
}

func (l *zerologLogger) Info(msg string, fields ...any) {
	l.emit(LevelInfo, l.zl.Info(), msg, fields)
}

func (l *zerologLogger) Warn(msg string, fields ...any) {
	l.emit(LevelWarn, l.zl.Warn(), msg, fields)
}

func (l *zerologLogger) Error(msg string, fields ...any) {
	l.emit(LevelError, l.zl.Error(), msg, fields)
}

func (l *zerologLogger) With(fields ...any) Logger {
	return &zerologLogger{zl: l.zl.With().Fields(normalizeFields(fields)).Logger(), level: l.level}
}

func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return level >= Level(l.level.Load())
}

func (l *zerologLogger) emit(level Level, ev *zerolog.Event, msg string, fields []any) {
	if !l.Enabled(context.Background(), level) {
		return
	}
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			ev = ev.Err(err)
			if st := extractStacktrace(err); st != "" {
				ev = ev.Str(StacktraceAttrKey, st)
			}
			var m zerolog.LogObjectMarshaler
			if errors.As(err, &m) {
				ev = ev.Object(ErrorDetailKey, m)
			}
			fields = fields[1:]
		}
	}
	if len(fields) > 0 {
		ev = ev.Fields(normalizeFields(fields))
	}
	ev.Msg(msg)
}

// normalizeFields turns key-value pairs into a zerolog field list. Keys are
// stringified and a trailing key without value is dropped.
func normalizeFields(fields []any) []interface{} {
	out := make([]interface{}, 0, len(fields))
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", fields[i])
		}
		out = append(out, key, fields[i+1])
	}
	return out
}

func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}

var (
	providerMu     sync.RWMutex
	globalProvider LoggerProvider
)

func init() {
	SetProvider(NewZerologProvider(LevelInfo))
}

// SetProvider replaces the process-wide provider and routes pkg/errors warnings to it.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	globalProvider = p
	providerMu.Unlock()

	if zp, ok := p.(*ZerologProvider); ok {
		cyerrors.SetZerologWarnFunc(zp.warn)
		return
	}
	cyerrors.SetZerologWarnFunc(func(w error) {
		p.GetLoggerWithName("warnings").Warn(w.Error())
	})
}

// Provider returns the process-wide provider.
func Provider() LoggerProvider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return globalProvider
}

// GetLogger returns a logger from the process-wide provider.
func GetLogger() Logger {
	return Provider().GetLogger()
}

// GetLoggerWithName returns a named logger from the process-wide provider.
func GetLoggerWithName(name string) Logger {
	return Provider().GetLoggerWithName(name)
}
