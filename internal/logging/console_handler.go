package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler writes one human-readable line per record:
//
//	2024-03-01 10:00:00 INFO reconcile: [update rg_s2_c3] rows moved moved=4
//
// The component, stage and camera site attributes are lifted into the line
// prefix; everything else follows as key=value pairs.
type consoleHandler struct {
	mu        *sync.Mutex
	out       io.Writer
	level     *slog.LevelVar
	preset    fieldSet
	group     string
	addSource bool
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{mu: &sync.Mutex{}, out: w, level: lvl, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	if !h.Enabled(context.Background(), record.Level) {
		return nil
	}

	fields := h.preset.clone()
	record.Attrs(func(attr slog.Attr) bool {
		fields.add(h.group, attr)
		return true
	})
	component := fields.take(FieldComponent)
	subject := joinNonEmpty(" ", fields.take(FieldStage), fields.take(FieldCameraSite))

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var buf bytes.Buffer
	buf.WriteString(recordTime(ts))
	buf.WriteString(" " + levelLabel(record.Level) + " ")
	if component != "" {
		buf.WriteString(component + ": ")
	}
	if subject != "" {
		buf.WriteString("[" + subject + "] ")
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	buf.WriteString(msg)
	if src := record.Source(); h.addSource && src != nil {
		buf.WriteString(" [" + filepath.Base(src.File) + ":" + strconv.Itoa(src.Line) + "]")
	}
	for _, key := range fields.order {
		if value, ok := fields.values[key]; ok {
			buf.WriteString(" " + key + "=" + quotedValue(value))
		}
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.preset = h.preset.clone()
	for _, attr := range attrs {
		clone.preset.add(h.group, attr)
	}
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.group = qualify(h.group, name)
	return &clone
}

// fieldSet keeps the last value per dotted key in first-seen order.
type fieldSet struct {
	order  []string
	values map[string]slog.Value
}

func (f *fieldSet) clone() fieldSet {
	out := fieldSet{
		order:  append([]string(nil), f.order...),
		values: make(map[string]slog.Value, len(f.values)),
	}
	for k, v := range f.values {
		out.values[k] = v
	}
	return out
}

func (f *fieldSet) add(group string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	value := attr.Value.Resolve()
	if value.Kind() == slog.KindGroup {
		inner := group
		if attr.Key != "" {
			inner = qualify(group, attr.Key)
		}
		for _, member := range value.Group() {
			f.add(inner, member)
		}
		return
	}
	key := qualify(group, attr.Key)
	if key == "" {
		return
	}
	if f.values == nil {
		f.values = make(map[string]slog.Value)
	}
	if _, seen := f.values[key]; !seen {
		f.order = append(f.order, key)
	}
	f.values[key] = value
}

// take removes key and returns its rendered value, or "" when absent.
func (f *fieldSet) take(key string) string {
	value, ok := f.values[key]
	if !ok {
		return ""
	}
	delete(f.values, key)
	return strings.TrimSpace(rawValue(value))
}

func qualify(group, key string) string {
	switch {
	case group == "":
		return key
	case key == "":
		return group
	default:
		return group + "." + key
	}
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
