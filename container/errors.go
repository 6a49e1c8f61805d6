// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package container

import (
	"fmt"

	"go.chromium.org/luci/common/errors"
)

// Sentinel error values for the structural and per-entry failure tiers
// described in spec.md §6-7. Callers compare with errors.Unwrap / errors.Is
// against these values; the luci-go errors.Annotate wrapping used
// throughout this package preserves them for that purpose.
var (
	// ErrBadMagic is returned when a container's magic bytes don't match
	// what the opener expects.
	ErrBadMagic = fmt.Errorf("container: bad magic")

	// ErrHeaderCorrupt is returned when the FileHeader CRC does not match
	// its contents.
	ErrHeaderCorrupt = fmt.Errorf("container: header checksum mismatch")

	// ErrUnsupportedVersion is returned when a container's format version
	// is newer than this implementation understands.
	ErrUnsupportedVersion = fmt.Errorf("container: unsupported format version")

	// ErrModeMismatch is returned when a Manifest container is opened with
	// WithExpectedMode(ModeArchive) or vice versa, and by any Reader
	// operation (ReadPath, ExtractAll, VerifyAll, the cross-mode
	// converters) that requires a specific Mode the open container isn't
	// in.
	ErrModeMismatch = fmt.Errorf("container: mode mismatch")

	// ErrIndexDecryptError is returned when a supplied IndexCryptoHook
	// fails to decrypt the index region.
	ErrIndexDecryptError = fmt.Errorf("container: index decrypt failed")

	// ErrUnknownAlgoID is returned when an entry references a checksum or
	// compression algo_id with no registered hook.
	ErrUnknownAlgoID = fmt.Errorf("container: unknown algorithm id")

	// ErrChecksumMismatch is returned by the read pipeline when a
	// computed checksum doesn't match the stored one.
	ErrChecksumMismatch = fmt.Errorf("container: checksum mismatch")

	// ErrDecompressError is returned when a CompressionHook fails to
	// produce exactly raw_size bytes.
	ErrDecompressError = fmt.Errorf("container: decompress failed")

	// ErrDuplicateAlgoID is returned by Registry construction when two
	// hooks of the same kind share an algo_id.
	ErrDuplicateAlgoID = fmt.Errorf("container: duplicate algorithm id")
)

// Annotatef wraps err with a formatted reason, preserving err for
// errors.Is/errors.Unwrap the way the rest of this package expects.
// It exists so callers outside this package (the grimoire package) can
// produce the same annotation shape without importing luci-go directly
// in every file.
func Annotatef(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Annotate(err).Reason(fmt.Sprintf(format, args...)).Err()
}
