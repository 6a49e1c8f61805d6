// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package container

import (
	"go.chromium.org/luci/common/errors"
)

// Mode identifies whether a container is a Manifest (metadata only) or an
// Archive (metadata plus payload data region).
type Mode uint8

const (
	// ModeManifest containers carry only entry metadata and checksums.
	ModeManifest Mode = 0
	// ModeArchive containers additionally carry a data region.
	ModeArchive Mode = 1
)

func (m Mode) String() string {
	switch m {
	case ModeManifest:
		return "manifest"
	case ModeArchive:
		return "archive"
	default:
		return "unknown"
	}
}

// FileHeaderSize is the fixed on-disk size of FileHeader. See
// SPEC_FULL.md's byte-layout resolution for how the field list was fitted
// to this width.
const FileHeaderSize = 48

// FileHeader is the first FileHeaderSize bytes of every GrimoireVFS
// container.
type FileHeader struct {
	Magic          [4]byte
	Version        uint8
	Mode           Mode
	IndexCryptoID  uint16
	ChecksumAlgoID uint16
	PathHashAlgoID uint16
	IndexOffset    uint64
	IndexLength    uint64
	DataOffset     uint64
	DataLength     uint64
	HeaderChecksum uint32
}

// Pack serializes h into a new FileHeaderSize-byte slice, computing and
// filling in HeaderChecksum as it goes.
func (h FileHeader) Pack() []byte {
	buf := make([]byte, FileHeaderSize)
	copy(buf[0:4], h.Magic[:])
	buf[4] = h.Version
	buf[5] = uint8(h.Mode)
	byteOrder.PutUint16(buf[6:8], h.IndexCryptoID)
	byteOrder.PutUint16(buf[8:10], h.ChecksumAlgoID)
	byteOrder.PutUint16(buf[10:12], h.PathHashAlgoID)
	byteOrder.PutUint64(buf[12:20], h.IndexOffset)
	byteOrder.PutUint64(buf[20:28], h.IndexLength)
	byteOrder.PutUint64(buf[28:36], h.DataOffset)
	byteOrder.PutUint64(buf[36:44], h.DataLength)
	byteOrder.PutUint32(buf[44:48], CRC32(buf[:44]))
	return buf
}

// UnpackFileHeader parses a FileHeaderSize-byte buffer, verifying the
// embedded CRC before returning.
func UnpackFileHeader(buf []byte) (FileHeader, error) {
	if len(buf) != FileHeaderSize {
		return FileHeader{}, errors.Reason(
			"file header must be %(want)d bytes, got %(got)d").
			D("want", FileHeaderSize).D("got", len(buf)).Err()
	}

	var h FileHeader
	copy(h.Magic[:], buf[0:4])
	h.Version = buf[4]
	h.Mode = Mode(buf[5])
	h.IndexCryptoID = byteOrder.Uint16(buf[6:8])
	h.ChecksumAlgoID = byteOrder.Uint16(buf[8:10])
	h.PathHashAlgoID = byteOrder.Uint16(buf[10:12])
	h.IndexOffset = byteOrder.Uint64(buf[12:20])
	h.IndexLength = byteOrder.Uint64(buf[20:28])
	h.DataOffset = byteOrder.Uint64(buf[28:36])
	h.DataLength = byteOrder.Uint64(buf[36:44])
	h.HeaderChecksum = byteOrder.Uint32(buf[44:48])

	if got := CRC32(buf[:44]); got != h.HeaderChecksum {
		return FileHeader{}, errors.Annotate(ErrHeaderCorrupt).Reason(
			"header CRC mismatch: stored %(stored)#x computed %(computed)#x").
			D("stored", h.HeaderChecksum).D("computed", got).Err()
	}
	if h.Version > Version {
		return FileHeader{}, errors.Annotate(ErrUnsupportedVersion).Reason(
			"container is format version %(got)d, this build understands up to %(want)d").
			D("got", h.Version).D("want", Version).Err()
	}

	return h, nil
}
