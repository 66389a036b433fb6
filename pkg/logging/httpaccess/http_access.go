// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package httpaccess logs served HTTP requests of the debug API.
package httpaccess

import (
	"bufio"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tabcat/zzzync/pkg/logging"
	"github.com/tabcat/zzzync/pkg/tracing"
)

// NewHTTPAccessLogHandler creates a handler that logs message at level after
// a request has been served. Requests carrying tracing headers are logged
// with their trace id.
func NewHTTPAccessLogHandler(logger logging.Logger, level logrus.Level, tracer *tracing.Tracer, message string) func(h http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rl := &responseLogger{w: w, level: level}

			h.ServeHTTP(rl, r)

			if rl.level == 0 {
				return
			}

			ctx, _ := tracer.WithContextFromHTTPHeaders(r.Context(), r.Header)
			tracing.NewLoggerWithTraceID(ctx, logger).WithFields(fields(r, rl, time.Since(start))).Log(rl.level, message)
		})
	}
}

func fields(r *http.Request, rl *responseLogger, d time.Duration) logrus.Fields {
	status := rl.status
	if status == 0 {
		status = http.StatusOK
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	f := logrus.Fields{
		"ip":       ip,
		"method":   r.Method,
		"uri":      r.RequestURI,
		"proto":    r.Proto,
		"status":   status,
		"size":     rl.size,
		"duration": d.Seconds(),
	}
	for key, v := range map[string]string{
		"referrer":        r.Referer(),
		"user-agent":      r.UserAgent(),
		"x-forwarded-for": r.Header.Get("X-Forwarded-For"),
	} {
		if v != "" {
			f[key] = v
		}
	}
	return f
}

// SetAccessLogLevelHandler overrides the level given to
// NewHTTPAccessLogHandler for the wrapped endpoint. Level 0 suppresses the
// log line.
func SetAccessLogLevelHandler(level logrus.Level) func(h http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl, ok := w.(*responseLogger); ok {
				rl.level = level
			}
			h.ServeHTTP(w, r)
		})
	}
}

type responseLogger struct {
	w      http.ResponseWriter
	status int
	size   int
	level  logrus.Level
}

func (l *responseLogger) Header() http.Header {
	return l.w.Header()
}

func (l *responseLogger) Flush() {
	if f, ok := l.w.(http.Flusher); ok {
		f.Flush()
	}
}

func (l *responseLogger) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(l.w).Hijack()
}

func (l *responseLogger) Write(b []byte) (int, error) {
	n, err := l.w.Write(b)
	l.size += n
	return n, err
}

func (l *responseLogger) WriteHeader(s int) {
	l.w.WriteHeader(s)
	if l.status == 0 {
		l.status = s
	}
}
