// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package container

import (
	"go.chromium.org/luci/common/errors"
)

// StringTable interns strings by first-seen insertion order and hands
// back a 0-based id for each, per spec.md §3's StringTables definition.
// It is the building block for the three-level path dictionary (dir,
// name, ext).
type StringTable struct {
	strings []string
	index   map[string]uint32
}

// NewStringTable returns an empty StringTable.
func NewStringTable() *StringTable {
	return &StringTable{
		index: make(map[string]uint32),
	}
}

// Add interns s, returning its id. Re-adding an already-seen string
// returns the id it was first assigned.
func (t *StringTable) Add(s string) uint32 {
	if id, ok := t.index[s]; ok {
		return id
	}
	id := uint32(len(t.strings))
	t.strings = append(t.strings, s)
	t.index[s] = id
	return id
}

// Get returns the string at id.
func (t *StringTable) Get(id uint32) (string, error) {
	if int(id) >= len(t.strings) {
		return "", errors.Reason("string table id %(id)d out of range (%(n)d entries)").
			D("id", id).D("n", len(t.strings)).Err()
	}
	return t.strings[id], nil
}

// Len returns the number of interned strings.
func (t *StringTable) Len() int { return len(t.strings) }

// Pack serializes the table as repeated (u16 length, UTF-8 bytes) records,
// in insertion order, per spec.md §3.
func (t *StringTable) Pack() []byte {
	size := 0
	for _, s := range t.strings {
		size += 2 + len(s)
	}
	buf := make([]byte, size)
	offset := 0
	for _, s := range t.strings {
		offset += putUint16String(buf, offset, s)
	}
	return buf
}

// UnpackStringTable parses count consecutive length-prefixed strings out
// of buf, returning the populated table and the number of bytes consumed.
func UnpackStringTable(buf []byte, count int) (*StringTable, int, error) {
	t := NewStringTable()
	offset := 0
	for i := 0; i < count; i++ {
		s, consumed, err := readUint16String(buf, offset)
		if err != nil {
			return nil, 0, errors.Annotate(err).Reason("reading string table entry %(i)d").D("i", i).Err()
		}
		t.Add(s)
		offset += consumed
	}
	return t, offset, nil
}

// UnpackStringTableBytes parses consecutive length-prefixed strings out of
// buf until it is fully consumed, for callers that know a table's total
// byte length (an IndexHeader's *TableLength fields) but not its string
// count.
func UnpackStringTableBytes(buf []byte) (*StringTable, error) {
	t := NewStringTable()
	offset := 0
	for offset < len(buf) {
		s, consumed, err := readUint16String(buf, offset)
		if err != nil {
			return nil, errors.Annotate(err).Reason("reading string table entry at offset %(offset)d").D("offset", offset).Err()
		}
		t.Add(s)
		offset += consumed
	}
	return t, nil
}

// PathDictionary manages the three independent string tables (dir, name,
// ext) that together let an EntryRecord reference a full vfs-path with
// three small integer ids instead of repeating the path text, per
// spec.md §4.3.
type PathDictionary struct {
	Dirs  *StringTable
	Names *StringTable
	Exts  *StringTable
}

// NewPathDictionary returns an empty PathDictionary.
func NewPathDictionary() *PathDictionary {
	return &PathDictionary{
		Dirs:  NewStringTable(),
		Names: NewStringTable(),
		Exts:  NewStringTable(),
	}
}

// AddPath interns the (dir, name, ext) triple, returning the three ids to
// store in an EntryRecord.
func (d *PathDictionary) AddPath(dir, name, ext string) (dirID, nameID, extID uint32) {
	return d.Dirs.Add(dir), d.Names.Add(name), d.Exts.Add(ext)
}

// Path reconstructs the full vfs-path for the given ids by concatenation,
// per spec.md §4.3's "materializes (dir, name, ext) -> path".
func (d *PathDictionary) Path(dirID, nameID, extID uint32) (string, error) {
	dir, err := d.Dirs.Get(dirID)
	if err != nil {
		return "", errors.Annotate(err).Reason("resolving dir id").Err()
	}
	name, err := d.Names.Get(nameID)
	if err != nil {
		return "", errors.Annotate(err).Reason("resolving name id").Err()
	}
	ext, err := d.Exts.Get(extID)
	if err != nil {
		return "", errors.Annotate(err).Reason("resolving ext id").Err()
	}
	if dir == "/" {
		return "/" + name + ext, nil
	}
	return dir + "/" + name + ext, nil
}

// Stats reports per-table and total interned string counts, as in
// original_source/grimoire/core/string_table.py's PathDictionary.stats.
type Stats struct {
	Dirs  int
	Names int
	Exts  int
}

// Total returns the sum of all three table sizes.
func (s Stats) Total() int { return s.Dirs + s.Names + s.Exts }

// Stats reports the dictionary's current size.
func (d *PathDictionary) Stats() Stats {
	return Stats{Dirs: d.Dirs.Len(), Names: d.Names.Len(), Exts: d.Exts.Len()}
}
