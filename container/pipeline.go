// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package container

import (
	"bytes"

	"go.chromium.org/luci/common/errors"
)

// Pipeline is the per-entry transform a Writer/Reader runs payload bytes
// through. On write, the checksum is computed over the raw, uncompressed
// bytes and only then is compression applied; on read, the stored bytes
// are decompressed first and the checksum (if any) is verified against
// the decompressed result. This ordering means checksums always describe
// the content a caller actually gets back, independent of which
// compression hook (or none) produced the bytes on disk.
type Pipeline struct {
	Checksum    ChecksumHook    // nil: no checksum verification
	Compression CompressionHook // nil: stored, no compression
}

// PackResult is what PackEntry produces: the bytes to write to the data
// region plus the metadata an EntryRecord needs to describe them.
type PackResult struct {
	Packed     []byte
	Checksum   []byte
	RawSize    uint64
	PackedSize uint64
}

// PackEntry runs raw through the pipeline's checksum and compression
// hooks, in that order, per the write-side half of the ordering this
// type's doc comment describes.
func (p Pipeline) PackEntry(raw []byte) (PackResult, error) {
	var checksum []byte
	if p.Checksum != nil {
		var err error
		checksum, err = p.Checksum.Compute(raw)
		if err != nil {
			return PackResult{}, errors.Annotate(err).Reason("computing entry checksum").Err()
		}
	}

	packed := raw
	if p.Compression != nil {
		compressed, err := p.Compression.Compress(raw)
		if err != nil {
			return PackResult{}, errors.Annotate(err).Reason("compressing entry payload").Err()
		}
		packed = compressed
	}

	return PackResult{
		Packed:     packed,
		Checksum:   checksum,
		RawSize:    uint64(len(raw)),
		PackedSize: uint64(len(packed)),
	}, nil
}

// UnpackEntry runs packed through the pipeline's compression and checksum
// hooks, in that order, per the read-side half of the ordering this
// type's doc comment describes. rawSize is required to decompress (most
// CompressionHook implementations need it to preallocate or bound the
// decode); wantChecksum is the digest recorded in the EntryRecord, ignored
// if p.Checksum is nil. verify controls whether the checksum is actually
// checked: a caller that passes false gets the decompressed bytes back
// unconditionally, trading integrity verification for speed.
func (p Pipeline) UnpackEntry(packed []byte, rawSize uint64, wantChecksum []byte, verify bool) ([]byte, error) {
	raw := packed
	if p.Compression != nil {
		decompressed, err := p.Compression.Decompress(packed, rawSize)
		if err != nil {
			return nil, errors.Annotate(err).Reason("decompressing entry payload").Err()
		}
		if uint64(len(decompressed)) != rawSize {
			return nil, errors.Annotate(ErrDecompressError).Reason(
				"decompressed payload is %(got)d bytes, want %(want)d").D("got", len(decompressed)).D("want", rawSize).Err()
		}
		raw = decompressed
	} else if uint64(len(raw)) != rawSize {
		return nil, errors.Annotate(ErrDecompressError).Reason(
			"stored payload is %(got)d bytes, want %(want)d").D("got", len(raw)).D("want", rawSize).Err()
	}

	if verify && p.Checksum != nil {
		got, err := p.Checksum.Compute(raw)
		if err != nil {
			return nil, errors.Annotate(err).Reason("recomputing entry checksum").Err()
		}
		if !bytes.Equal(got, wantChecksum) {
			return nil, errors.Annotate(ErrChecksumMismatch).Reason(
				"entry checksum mismatch: got %(got)x want %(want)x").D("got", got).D("want", wantChecksum).Err()
		}
	}

	return raw, nil
}
