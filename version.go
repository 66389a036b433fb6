// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package zzzync holds the build version of the zzzync daemon and CLI.
package zzzync

import "runtime/debug"

var (
	version    = "0.1.0" // manually set semantic version number
	commitHash string    // set with -ldflags, read from the build info otherwise

	// Version is the semantic version with the commit hash of the build.
	// Builds from a modified tree are suffixed with "-dirty", builds without
	// vcs information with "-dev".
	Version = func() string {
		hash, dirty := commitHash, false
		if hash == "" {
			hash, dirty = vcsRevision()
		}
		switch {
		case hash == "":
			return version + "-dev"
		case dirty:
			return version + "-" + hash + "-dirty"
		}
		return version + "-" + hash
	}()
)

func vcsRevision() (hash string, dirty bool) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", false
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if len(s.Value) > 8 {
				hash = s.Value[:8]
			} else {
				hash = s.Value
			}
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	return hash, dirty
}
