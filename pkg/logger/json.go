package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// LogEntry is one line of JSON log output. Component and request id are
// lifted out of the field map so log processors can index them directly.
type LogEntry struct {
	Level     string         `json:"level"`
	Timestamp string         `json:"timestamp"`
	Component string         `json:"component,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
	Caller    string         `json:"caller,omitempty"`
}

type jsonHandler struct {
	out       *lockedWriter
	level     slog.Level
	addSource bool
	prefix    string
	attrs     []slog.Attr
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) writeLine(line []byte) error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	_, err := lw.w.Write(append(line, '\n'))
	return err
}

func newJSONHandler(w io.Writer, level slog.Level, addSource bool) *jsonHandler {
	return &jsonHandler{out: &lockedWriter{w: w}, level: level, addSource: addSource}
}

func (h *jsonHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *jsonHandler) Handle(_ context.Context, r slog.Record) error {
	if r.Time.IsZero() {
		r.Time = time.Now()
	}

	entry := LogEntry{
		Level:     strings.ToLower(r.Level.String()),
		Timestamp: r.Time.UTC().Format(time.RFC3339Nano),
		Message:   r.Message,
		Fields:    map[string]any{},
	}
	// Handler attrs were qualified when they were bound.
	for _, a := range h.attrs {
		entry.add("", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		entry.add(h.prefix, a)
		return true
	})
	if len(entry.Fields) == 0 {
		entry.Fields = nil
	}
	if h.addSource && r.PC != 0 {
		if frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next(); frame.File != "" {
			entry.Caller = fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)
		}
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return h.out.writeLine(line)
}

func (h *jsonHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		if a.Key != "" {
			a.Key = h.prefix + a.Key
		}
		next.attrs = append(next.attrs, a)
	}
	return &next
}

func (h *jsonHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func (e *LogEntry) add(prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if a.Key == "" {
		// Empty-key groups are inlined, other empty keys are dropped.
		if v.Kind() == slog.KindGroup {
			for _, member := range v.Group() {
				e.add(prefix, member)
			}
		}
		return
	}
	key := prefix + a.Key
	if s, ok := v.Any().(string); ok {
		switch key {
		case "component":
			e.Component = s
			return
		case "request_id":
			e.RequestID = s
			return
		}
	}
	e.Fields[key] = jsonValue(v)
}

func jsonValue(v slog.Value) any {
	switch v.Kind() {
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339Nano)
	case slog.KindGroup:
		group := make(map[string]any, len(v.Group()))
		for _, a := range v.Group() {
			group[a.Key] = jsonValue(a.Value.Resolve())
		}
		return group
	}
	if err, ok := v.Any().(error); ok {
		return err.Error()
	}
	return v.Any()
}
