// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build darwin || linux

package grimoire

import (
	"os"
	"runtime/debug"

	"go.chromium.org/luci/common/errors"
	"golang.org/x/sys/unix"
)

// mmapBacking maps an entire file read-only into memory, the way
// bureau-foundation-bureau's artifactstore.CacheDevice backs its random
// reads. SIGBUS protection matters here because a container can be
// truncated or replaced out from under an open mmap by another process.
type mmapBacking struct {
	file *os.File
	data []byte
}

func newMmapBacking(f *os.File) (readerBacking, error) {
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Annotate(err).Reason("stat for mmap").Err()
	}
	if info.Size() == 0 {
		f.Close()
		return nil, errors.Reason("cannot mmap an empty file").Err()
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, errors.Annotate(err).Reason("mmap failed").Err()
	}

	debug.SetPanicOnFault(true)
	return &mmapBacking{file: f, data: data}, nil
}

func (b *mmapBacking) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(b.data)) {
		return 0, errors.Reason("mmap read out of range: offset=%(offset)d size=%(size)d").
			D("offset", off).D("size", len(b.data)).Err()
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, errors.Reason("short mmap read: got %(got)d want %(want)d").
			D("got", n).D("want", len(p)).Err()
	}
	return n, nil
}

func (b *mmapBacking) Close() error {
	err := unix.Munmap(b.data)
	if closeErr := b.file.Close(); err == nil {
		err = closeErr
	}
	return err
}

func openBacking(path string, useMmap bool) (readerBacking, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !useMmap {
		return f, nil
	}
	return newMmapBacking(f)
}
