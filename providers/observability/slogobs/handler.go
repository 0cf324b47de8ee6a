package slogobs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Handler is a slog.Handler with the three Format layouts. Handlers derived
// with WithAttrs and WithGroup share the writer lock of their parent.
type Handler struct {
	format Format
	level  slog.Leveler
	output io.Writer
	colors bool
	mu     *sync.Mutex
	attrs  []field
	prefix string
}

type HandlerOptions struct {
	Format Format
	// Level is the minimum level written. Nil means Info.
	Level  slog.Leveler
	Output io.Writer
	Colors bool
}

// field is an attribute with its group prefix already applied.
type field struct {
	key   string
	value any
}

func NewHandler(opts *HandlerOptions) *Handler {
	if opts == nil {
		opts = &HandlerOptions{}
	}
	handler := &Handler{
		format: opts.Format,
		level:  opts.Level,
		output: opts.Output,
		colors: opts.Colors,
		mu:     &sync.Mutex{},
	}
	if handler.output == nil {
		handler.output = os.Stderr
	}
	if handler.format == "" {
		handler.format = FormatCompact
	}
	if handler.level == nil {
		handler.level = slog.LevelInfo
	}
	if !handler.colors && handler.format != FormatJSON {
		if file, ok := handler.output.(*os.File); ok {
			handler.colors = isTerminal(file)
		}
	}
	return handler
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, record slog.Record) error {
	fields := append([]field(nil), h.attrs...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendAttr(fields, h.prefix, attr)
		return true
	})

	var buf []byte
	switch h.format {
	case FormatPretty:
		buf = h.pretty(record, fields)
	case FormatJSON:
		buf = h.json(record, fields)
	default:
		buf = h.compact(record, fields)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.output.Write(buf)
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append([]field(nil), h.attrs...)
	for _, attr := range attrs {
		clone.attrs = appendAttr(clone.attrs, h.prefix, attr)
	}
	return &clone
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

// appendAttr flattens groups into dotted keys and drops empty attributes.
func appendAttr(fields []field, prefix string, attr slog.Attr) []field {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return fields
	}
	if attr.Value.Kind() == slog.KindGroup {
		groupPrefix := prefix
		if attr.Key != "" {
			groupPrefix += attr.Key + "."
		}
		for _, member := range attr.Value.Group() {
			fields = appendAttr(fields, groupPrefix, member)
		}
		return fields
	}
	return append(fields, field{key: prefix + attr.Key, value: jsonValue(attr.Value)})
}

func jsonValue(value slog.Value) any {
	switch value.Kind() {
	case slog.KindDuration:
		return value.Duration().String()
	case slog.KindTime:
		return value.Time().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := value.Any().(error); ok {
			return err.Error()
		}
	}
	return value.Any()
}

// compact: "2006-01-02 15:04:05  INFO message → {"key":"value"}"
func (h *Handler) compact(record slog.Record, fields []field) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, record.Time.Format(time.DateTime)...)
	buf = append(buf, ' ')
	buf = h.appendLevel(buf, fmt.Sprintf("%5s", levelString(record.Level)), record.Level)
	buf = append(buf, ' ')
	buf = append(buf, record.Message...)

	if len(fields) > 0 {
		buf = append(buf, " → "...)
		buf = appendObject(buf, fields)
	}
	return append(buf, '\n')
}

// pretty: header line followed by one "├─ key: value" line per attribute.
func (h *Handler) pretty(record slog.Record, fields []field) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, record.Time.Format(time.DateTime)...)
	buf = append(buf, ' ')
	level := levelString(record.Level)
	buf = h.appendLevel(buf, level, record.Level)
	buf = append(buf, strings.Repeat(" ", 7-len(level))...)
	buf = append(buf, record.Message...)
	buf = append(buf, '\n')

	indent := strings.Repeat(" ", len(time.DateTime)+1)
	for i, f := range fields {
		branch := "├─ "
		if i == len(fields)-1 {
			branch = "└─ "
		}
		buf = append(buf, indent...)
		buf = append(buf, branch...)
		buf = append(buf, f.key...)
		buf = append(buf, ": "...)
		buf = append(buf, fmt.Sprintf("%v", f.value)...)
		buf = append(buf, '\n')
	}
	return buf
}

func (h *Handler) json(record slog.Record, fields []field) []byte {
	all := make([]field, 0, len(fields)+3)
	all = append(all,
		field{key: slog.TimeKey, value: record.Time.Format(time.RFC3339)},
		field{key: slog.LevelKey, value: levelString(record.Level)},
		field{key: slog.MessageKey, value: record.Message},
	)
	all = append(all, fields...)

	buf := appendObject(make([]byte, 0, 256), all)
	return append(buf, '\n')
}

func (h *Handler) appendLevel(buf []byte, text string, level slog.Level) []byte {
	if !h.colors {
		return append(buf, text...)
	}
	buf = append(buf, colorForLevel(level)...)
	buf = append(buf, text...)
	return append(buf, colorReset...)
}

// appendObject encodes fields as a JSON object in insertion order. Values that
// cannot be marshaled are written as their %v string.
func appendObject(buf []byte, fields []field) []byte {
	buf = append(buf, '{')
	for i, f := range fields {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, _ := json.Marshal(f.key)
		buf = append(buf, key...)
		buf = append(buf, ':')

		value, err := json.Marshal(f.value)
		if err != nil {
			value, _ = json.Marshal(fmt.Sprintf("%v", f.value))
		}
		buf = append(buf, value...)
	}
	return append(buf, '}')
}

func isTerminal(file *os.File) bool {
	info, err := file.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
