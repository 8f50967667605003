// Package logging provides a zerolog root logger with request-scoped children.
package logging

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Options configures the logger
type Options struct {
	Level   string
	Format  string // "console" or "json"
	Service string
	Writer  io.Writer
}

var (
	once   sync.Once
	root   atomic.Pointer[zerolog.Logger]
	inited atomic.Bool
)

// Logger is the project-wide logging type.
type Logger = zerolog.Logger

// Get returns the process-wide root logger, initializing defaults on first use.
func Get() *Logger {
	if !inited.Load() {
		Init(Options{Level: "info", Format: "console"})
	}
	return root.Load()
}

// Init builds the root logger. Only the first call has an effect.
func Init(opt Options) {
	once.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339Nano

		var w io.Writer = os.Stdout
		if opt.Writer != nil {
			w = opt.Writer
		}
		if opt.Format != "json" {
			w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
		}

		ctx := zerolog.New(w).Level(parseLevel(opt.Level)).With().Timestamp()
		if opt.Service != "" {
			ctx = ctx.Str("service", opt.Service)
		}
		log := ctx.Logger()

		root.Store(&log)
		inited.Store(true)
	})
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

type ctxKey struct{}

// WithRequestID annotates ctx with the request id.
func WithRequestID(ctx context.Context, reqID string) context.Context {
	if reqID == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, reqID)
}

// C returns a child logger enriched from ctx.
func C(ctx context.Context) *Logger {
	l := Get()
	if ctx == nil {
		return l
	}
	if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
		child := l.With().Str("req_id", id).Logger()
		return &child
	}
	return l
}

// AccessLog logs one line per request. It must run after chi's RequestID.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		ev := C(ctx).Info()
		if status >= http.StatusInternalServerError {
			ev = C(ctx).Error()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
