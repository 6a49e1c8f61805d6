// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build !darwin && !linux

package grimoire

import "os"

// openBacking on platforms without the unix mmap syscalls falls back to
// plain positional reads; WithMmapBacking is accepted but has no effect.
func openBacking(path string, useMmap bool) (readerBacking, error) {
	return os.Open(path)
}
