// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package allowlist authorizes names listed in a YAML file. The file is
// reloaded when its modification time changes, a missing file allows no
// name.
//
//	names:
//	  - k51qzi5uqu5dl...
package allowlist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/spf13/afero"
	"github.com/tabcat/zzzync/pkg/logging"
	"github.com/tabcat/zzzync/pkg/names"
	"gopkg.in/yaml.v2"
)

// DefaultInterval is the default period of modification checks.
const DefaultInterval = 500 * time.Millisecond

type file struct {
	Names []string `yaml:"names"`
}

type List struct {
	fs     afero.Fs
	path   string
	logger logging.Logger

	mu      sync.RWMutex
	names   map[string]struct{}
	modTime time.Time
}

// New loads the list from the file at path.
func New(fsys afero.Fs, path string, logger logging.Logger) (*List, error) {
	l := &List{
		fs:     fsys,
		path:   path,
		logger: logger,
		names:  make(map[string]struct{}),
	}
	if _, err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Authorize reports whether the name is listed.
func (l *List) Authorize(_ context.Context, n names.Name) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.names[n.String()]
	return ok, nil
}

// Len returns the number of listed names.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.names)
}

// Reload reads the file again if its modification time changed and
// reports whether the list was replaced.
func (l *List) Reload() (bool, error) {
	info, err := l.fs.Stat(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		l.mu.Lock()
		defer l.mu.Unlock()

		changed := len(l.names) > 0
		l.names = make(map[string]struct{})
		l.modTime = time.Time{}
		return changed, nil
	}
	if err != nil {
		return false, err
	}

	l.mu.RLock()
	same := info.ModTime().Equal(l.modTime)
	l.mu.RUnlock()
	if same {
		return false, nil
	}

	b, err := afero.ReadFile(l.fs, l.path)
	if err != nil {
		return false, err
	}
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return false, fmt.Errorf("allow list %s: %w", l.path, err)
	}
	set := make(map[string]struct{}, len(f.Names))
	for _, s := range f.Names {
		n, err := names.Parse(s)
		if err != nil {
			return false, fmt.Errorf("allow list %s: name %q: %w", l.path, s, err)
		}
		set[n.String()] = struct{}{}
	}

	l.mu.Lock()
	l.names = set
	l.modTime = info.ModTime()
	l.mu.Unlock()
	return true, nil
}

// Watch reloads the list every interval until the context is done. A file
// that fails to load keeps the previous list.
func (l *List) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		changed, err := l.Reload()
		if err != nil {
			l.logger.Errorf("allow list: %v", err)
			continue
		}
		if changed {
			l.logger.Infof("allow list: reloaded %d names", l.Len())
		}
	}
}

// Write stores the names in the file at path, creating it if needed.
func Write(fsys afero.Fs, path string, ns ...names.Name) error {
	f := file{Names: make([]string, 0, len(ns))}
	for _, n := range ns {
		f.Names = append(f.Names, n.String())
	}
	b, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	return afero.WriteFile(fsys, path, b, 0o644)
}
