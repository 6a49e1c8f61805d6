// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package grimoire

import "fmt"

// Sentinel errors for the Writer/Reader-level failure conditions spec.md
// §6-7 describes. Lower-level structural failures (bad magic, corrupt
// header, unknown algo_id, ...) surface from the container package and
// are not re-declared here; callers checking for those compare against
// container.Err*.
var (
	// ErrDuplicatePath is returned when a Writer is asked to add a second,
	// different source for a vfs-path that's already staged.
	ErrDuplicatePath = fmt.Errorf("grimoire: duplicate vfs-path")

	// ErrHashCollision is returned when two distinct vfs-paths staged into
	// the same Writer hash to the same path_hash. The on-disk format
	// tolerates this (readers disambiguate by full path), but the
	// Writer's in-memory staging index uses path_hash as an interning key
	// and cannot.
	ErrHashCollision = fmt.Errorf("grimoire: path_hash collision between distinct vfs-paths")

	// ErrNotFound is returned when a lookup by vfs-path or path_hash
	// matches no entry.
	ErrNotFound = fmt.Errorf("grimoire: entry not found")

	// ErrIndexNotDecrypted is returned by any Reader operation that needs
	// full path information (ListAll, ReadPath, ...) on a container whose
	// index is encrypted and was opened without a matching
	// IndexCryptoHook. ListHashes still works, per spec.md §4.6.
	ErrIndexNotDecrypted = fmt.Errorf("grimoire: index is encrypted and was not decrypted")

	// ErrBatchAborted is returned from a batch operation using the
	// OnErrorAbort policy once any single file fails.
	ErrBatchAborted = fmt.Errorf("grimoire: batch operation aborted after a file error")

	// ErrClosed is returned by any operation attempted on a Writer or
	// Reader after Close.
	ErrClosed = fmt.Errorf("grimoire: use of closed writer or reader")

	// ErrWriterModeMismatch is returned when a WriterOption incompatible
	// with the Writer's Mode is supplied (e.g. WithCompression on a
	// Manifest writer, which carries no payload data to compress).
	ErrWriterModeMismatch = fmt.Errorf("grimoire: writer option incompatible with container mode")
)
