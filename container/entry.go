// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package container

import (
	"sort"

	"go.chromium.org/luci/common/errors"
)

// EntryFixedSize is the size of an EntryRecord excluding its trailing,
// variable-width (but fixed per-container) checksum field.
const EntryFixedSize = 48

// EntryFlag bits live in an EntryRecord's Flags field. None are defined by
// the core format today; the field exists so hooks built on top of this
// package (quota marking, dedup hints, ...) have somewhere to put state
// without a format revision.
type EntryFlag uint16

// Entry is the logical, in-memory counterpart of an on-disk EntryRecord:
// a single catalogued file, independent of the string-table ids used to
// store its path compactly.
type Entry struct {
	VfsPath    string
	PathHash   uint64
	RawSize    uint64
	PackedSize uint64
	DataOffset uint64
	AlgoID     uint16
	Flags      EntryFlag
	Checksum   []byte

	// DirID/NameID/ExtID are populated once an Entry has been interned
	// into a PathDictionary; they are what actually gets serialized.
	DirID  uint32
	NameID uint32
	ExtID  uint32
}

// EntryRecordSize returns the on-disk size of an entry record given the
// active checksum hook's digest size.
func EntryRecordSize(checksumSize int) int {
	return EntryFixedSize + checksumSize
}

// Pack serializes e into a new EntryRecordSize(checksumSize)-byte slice.
// e.Checksum must be exactly checksumSize bytes (callers pad with zeros
// when no checksum hook is active, per spec.md invariant 5).
func (e Entry) Pack(checksumSize int) ([]byte, error) {
	if len(e.Checksum) != checksumSize {
		return nil, errors.Reason(
			"entry checksum is %(got)d bytes, want %(want)d").
			D("got", len(e.Checksum)).D("want", checksumSize).Err()
	}
	buf := make([]byte, EntryRecordSize(checksumSize))
	byteOrder.PutUint64(buf[0:8], e.PathHash)
	byteOrder.PutUint32(buf[8:12], e.DirID)
	byteOrder.PutUint32(buf[12:16], e.NameID)
	byteOrder.PutUint32(buf[16:20], e.ExtID)
	byteOrder.PutUint64(buf[20:28], e.RawSize)
	byteOrder.PutUint64(buf[28:36], e.PackedSize)
	byteOrder.PutUint64(buf[36:44], e.DataOffset)
	byteOrder.PutUint16(buf[44:46], e.AlgoID)
	byteOrder.PutUint16(buf[46:48], uint16(e.Flags))
	copy(buf[48:], e.Checksum)
	return buf, nil
}

// UnpackEntry parses a single EntryRecordSize(checksumSize)-byte record.
// The returned Entry's VfsPath is left empty; callers reconstruct it from
// the PathDictionary using DirID/NameID/ExtID once string tables are
// available.
func UnpackEntry(buf []byte, checksumSize int) (Entry, error) {
	want := EntryRecordSize(checksumSize)
	if len(buf) != want {
		return Entry{}, errors.Reason(
			"entry record must be %(want)d bytes, got %(got)d").
			D("want", want).D("got", len(buf)).Err()
	}
	checksum := make([]byte, checksumSize)
	copy(checksum, buf[48:])
	return Entry{
		PathHash:   byteOrder.Uint64(buf[0:8]),
		DirID:      byteOrder.Uint32(buf[8:12]),
		NameID:     byteOrder.Uint32(buf[12:16]),
		ExtID:      byteOrder.Uint32(buf[16:20]),
		RawSize:    byteOrder.Uint64(buf[20:28]),
		PackedSize: byteOrder.Uint64(buf[28:36]),
		DataOffset: byteOrder.Uint64(buf[36:44]),
		AlgoID:     byteOrder.Uint16(buf[44:46]),
		Flags:      EntryFlag(byteOrder.Uint16(buf[46:48])),
		Checksum:   checksum,
	}, nil
}

// SortEntries sorts entries ascending by PathHash, breaking ties by
// insertion order (a stable sort preserves the caller's original order
// among equal hashes, satisfying spec.md invariant 1's "ties resolvable by
// full-path comparison" on the read side while keeping the write side
// simple: whichever entry was staged first sorts first).
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].PathHash < entries[j].PathHash
	})
}

// UnpackEntryTable parses count consecutive entry records from buf.
func UnpackEntryTable(buf []byte, count int, checksumSize int) ([]Entry, error) {
	recordSize := EntryRecordSize(checksumSize)
	entries := make([]Entry, count)
	for i := 0; i < count; i++ {
		record, err := boundedSlice(buf, i*recordSize, recordSize)
		if err != nil {
			return nil, errors.Annotate(err).Reason("reading entry record %(i)d").D("i", i).Err()
		}
		entry, err := UnpackEntry(record, checksumSize)
		if err != nil {
			return nil, errors.Annotate(err).Reason("unpacking entry record %(i)d").D("i", i).Err()
		}
		entries[i] = entry
	}
	return entries, nil
}
