// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package container

import (
	"go.chromium.org/luci/common/errors"
)

// IndexHeaderSize is the fixed on-disk size of IndexHeader, the first
// bytes of the index region before any index-crypto is applied.
const IndexHeaderSize = 24

// IndexHeader describes the shape of the index region that follows it:
// how many entries, how big the string tables are, and how wide each
// entry record is (which varies with the active checksum hook's digest
// size).
type IndexHeader struct {
	EntryCount      uint32
	ChecksumSize    uint16
	DirTableLength  uint32
	NameTableLength uint32
	ExtTableLength  uint32
	EntryRecordSize uint16
}

// Pack serializes h into a new IndexHeaderSize-byte slice.
func (h IndexHeader) Pack() []byte {
	buf := make([]byte, IndexHeaderSize)
	byteOrder.PutUint32(buf[0:4], h.EntryCount)
	byteOrder.PutUint16(buf[4:6], h.ChecksumSize)
	byteOrder.PutUint32(buf[6:10], h.DirTableLength)
	byteOrder.PutUint32(buf[10:14], h.NameTableLength)
	byteOrder.PutUint32(buf[14:18], h.ExtTableLength)
	byteOrder.PutUint16(buf[18:20], h.EntryRecordSize)
	// buf[20:24] reserved, left zero.
	return buf
}

// UnpackIndexHeader parses an IndexHeaderSize-byte buffer.
func UnpackIndexHeader(buf []byte) (IndexHeader, error) {
	if len(buf) != IndexHeaderSize {
		return IndexHeader{}, errors.Reason(
			"index header must be %(want)d bytes, got %(got)d").
			D("want", IndexHeaderSize).D("got", len(buf)).Err()
	}
	var h IndexHeader
	h.EntryCount = byteOrder.Uint32(buf[0:4])
	h.ChecksumSize = byteOrder.Uint16(buf[4:6])
	h.DirTableLength = byteOrder.Uint32(buf[6:10])
	h.NameTableLength = byteOrder.Uint32(buf[10:14])
	h.ExtTableLength = byteOrder.Uint32(buf[14:18])
	h.EntryRecordSize = byteOrder.Uint16(buf[18:20])
	return h, nil
}

// DataHeaderSize is the fixed on-disk size of DataHeader, the 16 bytes
// immediately preceding the packed payload data in an Archive.
const DataHeaderSize = 16

// DataHeader precedes the concatenated packed payloads in an Archive
// container's data region.
type DataHeader struct {
	TotalRawSize    uint64
	TotalPackedSize uint64
}

// Pack serializes h into a new DataHeaderSize-byte slice.
func (h DataHeader) Pack() []byte {
	buf := make([]byte, DataHeaderSize)
	byteOrder.PutUint64(buf[0:8], h.TotalRawSize)
	byteOrder.PutUint64(buf[8:16], h.TotalPackedSize)
	return buf
}

// UnpackDataHeader parses a DataHeaderSize-byte buffer.
func UnpackDataHeader(buf []byte) (DataHeader, error) {
	if len(buf) != DataHeaderSize {
		return DataHeader{}, errors.Reason(
			"data header must be %(want)d bytes, got %(got)d").
			D("want", DataHeaderSize).D("got", len(buf)).Err()
	}
	return DataHeader{
		TotalRawSize:    byteOrder.Uint64(buf[0:8]),
		TotalPackedSize: byteOrder.Uint64(buf[8:16]),
	}, nil
}
