// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logging provides the logger interface abstraction
// and implementation for zzzync. It uses logrus under the hood.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type Logger interface {
	Tracef(format string, args ...interface{})
	Trace(args ...interface{})
	Debugf(format string, args ...interface{})
	Debug(args ...interface{})
	Infof(format string, args ...interface{})
	Info(args ...interface{})
	Warningf(format string, args ...interface{})
	Warning(args ...interface{})
	Errorf(format string, args ...interface{})
	Error(args ...interface{})
	WithField(key string, value interface{}) *logrus.Entry
	WithFields(fields logrus.Fields) *logrus.Entry
	WriterLevel(logrus.Level) *io.PipeWriter
	NewEntry() *logrus.Entry
	Metrics() []prometheus.Collector
}

type logger struct {
	*logrus.Logger
	metrics metrics
}

func New(w io.Writer, level logrus.Level) Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.Formatter = &logrus.TextFormatter{
		FullTimestamp: true,
	}
	metrics := newMetrics()
	l.AddHook(metrics)
	return &logger{
		Logger:  l,
		metrics: metrics,
	}
}

func (l *logger) NewEntry() *logrus.Entry {
	return logrus.NewEntry(l.Logger)
}

// ParseVerbosity maps the command line verbosity value to a logrus level.
// Both numeric (0-5) and named levels are accepted.
func ParseVerbosity(v string) (logrus.Level, error) {
	switch v = strings.ToLower(v); v {
	case "0", "silent":
		return 0, nil
	case "1", "error":
		return logrus.ErrorLevel, nil
	case "2", "warn", "warning":
		return logrus.WarnLevel, nil
	case "3", "info":
		return logrus.InfoLevel, nil
	case "4", "debug":
		return logrus.DebugLevel, nil
	case "5", "trace":
		return logrus.TraceLevel, nil
	}
	return 0, fmt.Errorf("unknown verbosity level %q", v)
}
