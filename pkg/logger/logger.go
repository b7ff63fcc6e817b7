package logger

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var (
	Log             *slog.Logger
	defaultLevel    slog.Level
	componentLevels map[string]slog.Level
	levelsMu        sync.RWMutex
	format          string
	output          io.Writer
	pid             int
	loggerCache     sync.Map
)

func init() {
	defaultLevel = slog.LevelInfo
	componentLevels = make(map[string]slog.Level)
	format = "text"
	output = os.Stdout
	pid = os.Getpid()

	Log = slog.New(NewTextHandler(output, ""))
}

// Configure resets the default level, the per-component overrides and the
// output format. Loggers handed out by Get before the call are discarded.
func Configure(logFormat string, level LogLevel, components map[string]LogLevel) {
	levelsMu.Lock()
	defaultLevel = parseLevel(string(level))
	format = strings.ToLower(logFormat)
	componentLevels = make(map[string]slog.Level)
	for name, lvl := range components {
		componentLevels[name] = parseLevel(string(lvl))
	}
	w := output
	levelsMu.Unlock()

	loggerCache.Range(func(key, _ any) bool {
		loggerCache.Delete(key)
		return true
	})

	Log = slog.New(newHandler(w, ""))
}

// SetOutput redirects every logger created afterwards.
func SetOutput(w io.Writer) {
	levelsMu.Lock()
	output = w
	levelsMu.Unlock()

	loggerCache.Range(func(key, _ any) bool {
		loggerCache.Delete(key)
		return true
	})
	Log = slog.New(newHandler(w, ""))
}

func newHandler(w io.Writer, component string) slog.Handler {
	levelsMu.RLock()
	f := format
	levelsMu.RUnlock()

	if f == "json" {
		return newJSONHandler(w, component)
	}
	return NewTextHandler(w, component)
}

type TextHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	attrs     []slog.Attr
	component string
}

func NewTextHandler(w io.Writer, component string) *TextHandler {
	return &TextHandler{
		mu:        &sync.Mutex{},
		w:         w,
		component: component,
	}
}

func (h *TextHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= getEffectiveLevel(h.component)
}

func (h *TextHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)
	buf = append(buf, r.Time.Format("2006/01/02 15:04:05.000")...)
	buf = append(buf, fmt.Sprintf(" [%d]", pid)...)
	buf = append(buf, ' ')
	buf = append(buf, r.Level.String()...)

	if h.component != "" {
		buf = append(buf, fmt.Sprintf(" [%s]", h.component)...)
	}

	buf = append(buf, ' ')
	buf = append(buf, r.Message...)

	for _, a := range h.attrs {
		buf = appendAttr(buf, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		buf = appendAttr(buf, a)
		return true
	})

	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

func appendAttr(buf []byte, a slog.Attr) []byte {
	if a.Equal(slog.Attr{}) {
		return buf
	}
	v := a.Value.Resolve()
	switch val := v.Any().(type) {
	case []byte:
		return append(buf, fmt.Sprintf(" %s=%s", a.Key, hex.EncodeToString(val))...)
	default:
		return append(buf, fmt.Sprintf(" %s=%v", a.Key, val)...)
	}
}

func (h *TextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &TextHandler{
		mu:        h.mu,
		w:         h.w,
		attrs:     merged,
		component: h.component,
	}
}

func (h *TextHandler) WithGroup(name string) slog.Handler {
	return &TextHandler{
		mu:        h.mu,
		w:         h.w,
		attrs:     h.attrs,
		component: subComponent(h.component, name),
	}
}

type JSONHandler struct {
	inner     slog.Handler
	component string
}

func newJSONHandler(w io.Writer, component string) *JSONHandler {
	return &JSONHandler{
		inner: slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}),
		component: component,
	}
}

func (h *JSONHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= getEffectiveLevel(h.component)
}

func (h *JSONHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.component != "" {
		r.AddAttrs(slog.String("component", h.component))
	}
	return h.inner.Handle(ctx, r)
}

func (h *JSONHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &JSONHandler{
		inner:     h.inner.WithAttrs(attrs),
		component: h.component,
	}
}

func (h *JSONHandler) WithGroup(name string) slog.Handler {
	return &JSONHandler{
		inner:     h.inner,
		component: subComponent(h.component, name),
	}
}

func subComponent(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidLevel reports whether level is one of the names Configure understands.
func ValidLevel(level string) bool {
	switch strings.ToLower(level) {
	case "", "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// getEffectiveLevel walks dotted component names up to the closest
// configured ancestor, so "dhcp6" covers "dhcp6.codec".
func getEffectiveLevel(component string) slog.Level {
	levelsMu.RLock()
	defer levelsMu.RUnlock()

	if level, ok := componentLevels[component]; ok {
		return level
	}

	path := component
	for {
		idx := strings.LastIndex(path, ".")
		if idx < 0 {
			break
		}
		path = path[:idx]
		if level, ok := componentLevels[path]; ok {
			return level
		}
	}

	return defaultLevel
}

func Get(name string) *slog.Logger {
	if l, ok := loggerCache.Load(name); ok {
		return l.(*slog.Logger)
	}

	levelsMu.RLock()
	w := output
	levelsMu.RUnlock()

	l := slog.New(newHandler(w, name))
	actual, _ := loggerCache.LoadOrStore(name, l)
	return actual.(*slog.Logger)
}

func SetComponentLevel(name string, level LogLevel) {
	levelsMu.Lock()
	componentLevels[name] = parseLevel(string(level))
	levelsMu.Unlock()
}

func ClearComponentLevel(name string) {
	levelsMu.Lock()
	delete(componentLevels, name)
	levelsMu.Unlock()
}

func GetComponentLevels() map[string]LogLevel {
	levelsMu.RLock()
	defer levelsMu.RUnlock()
	result := make(map[string]LogLevel)
	for name, level := range componentLevels {
		result[name] = levelToLogLevel(level)
	}
	return result
}

func GetDefaultLevel() LogLevel {
	levelsMu.RLock()
	defer levelsMu.RUnlock()
	return levelToLogLevel(defaultLevel)
}

func levelToLogLevel(level slog.Level) LogLevel {
	switch level {
	case slog.LevelDebug:
		return LogLevelDebug
	case slog.LevelInfo:
		return LogLevelInfo
	case slog.LevelWarn:
		return LogLevelWarn
	case slog.LevelError:
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

type TransactionAttrs struct {
	TransactionID []byte
	MessageType   string
	LinkAddress   string
	Peer          string
	Relayed       bool
	Marks         []string
}

func WithTransaction(logger *slog.Logger, attrs TransactionAttrs) *slog.Logger {
	args := make([]any, 0, 12)

	if len(attrs.TransactionID) > 0 {
		args = append(args, "transaction_id", hex.EncodeToString(attrs.TransactionID))
	}
	if attrs.MessageType != "" {
		args = append(args, "message_type", attrs.MessageType)
	}
	if attrs.LinkAddress != "" {
		args = append(args, "link_addr", attrs.LinkAddress)
	}
	if attrs.Peer != "" {
		args = append(args, "peer", attrs.Peer)
	}
	if attrs.Relayed {
		args = append(args, "relayed", true)
	}
	if len(attrs.Marks) > 0 {
		args = append(args, "marks", strings.Join(attrs.Marks, ","))
	}

	return logger.With(args...)
}
