// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package container

import (
	"encoding/binary"
	"hash/crc32"

	"go.chromium.org/luci/common/errors"
)

// byteOrder is the wire byte order for every multi-byte integer in the
// GrimoireVFS format (spec.md §6: "all multi-byte integers are
// little-endian").
var byteOrder = binary.LittleEndian

// CRC32 returns the IEEE CRC32 of data, used as the FileHeader's
// header-checksum field.
func CRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// boundedSlice returns data[offset:offset+length], failing instead of
// panicking when the requested range doesn't fit — this is the "bounded
// reads" primitive spec.md §4.2 asks for, so a corrupt or truncated index
// can never walk off the end of a buffer.
func boundedSlice(data []byte, offset, length int) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > len(data) {
		return nil, errors.Reason(
			"bounded read out of range: offset=%(offset)d length=%(length)d buffer=%(buf)d").
			D("offset", offset).D("length", length).D("buf", len(data)).Err()
	}
	return data[offset : offset+length], nil
}

// putUint16String writes a length-prefixed UTF-8 string (u16 length, then the
// bytes) to dst starting at offset, returning the number of bytes written.
func putUint16String(dst []byte, offset int, s string) int {
	byteOrder.PutUint16(dst[offset:], uint16(len(s)))
	copy(dst[offset+2:], s)
	return 2 + len(s)
}

// readUint16String reads a length-prefixed UTF-8 string from data at
// offset, returning the string and the number of bytes consumed.
func readUint16String(data []byte, offset int) (string, int, error) {
	header, err := boundedSlice(data, offset, 2)
	if err != nil {
		return "", 0, errors.Annotate(err).Reason("reading string length").Err()
	}
	length := int(byteOrder.Uint16(header))
	body, err := boundedSlice(data, offset+2, length)
	if err != nil {
		return "", 0, errors.Annotate(err).Reason("reading string body").Err()
	}
	return string(body), 2 + length, nil
}
