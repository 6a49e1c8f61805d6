// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package container

import (
	"testing"

	. "go.chromium.org/luci/common/testing/assertions"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEntry(t *testing.T) {
	t.Parallel()

	Convey("Entry", t, func() {
		e := Entry{
			PathHash:   0x1122334455667788,
			DirID:      1,
			NameID:     2,
			ExtID:      3,
			RawSize:    100,
			PackedSize: 60,
			DataOffset: 4096,
			AlgoID:     2,
			Flags:      0,
			Checksum:   []byte{1, 2, 3, 4},
		}

		Convey("round trip", func() {
			buf, err := e.Pack(4)
			So(err, ShouldBeNil)
			So(len(buf), ShouldEqual, EntryRecordSize(4))

			got, err := UnpackEntry(buf, 4)
			So(err, ShouldBeNil)
			got.VfsPath = e.VfsPath // Unpack never sets VfsPath
			So(got, ShouldResemble, e)
		})

		Convey("wrong checksum size", func() {
			_, err := e.Pack(8)
			So(err, ShouldErrLike, "entry checksum is")
		})

		Convey("zero-length checksum is fine", func() {
			e.Checksum = []byte{}
			buf, err := e.Pack(0)
			So(err, ShouldBeNil)
			got, err := UnpackEntry(buf, 0)
			So(err, ShouldBeNil)
			So(got.Checksum, ShouldResemble, []byte{})
		})
	})

	Convey("SortEntries", t, func() {
		entries := []Entry{
			{VfsPath: "/b", PathHash: 2},
			{VfsPath: "/a", PathHash: 1},
			{VfsPath: "/c", PathHash: 1},
		}
		SortEntries(entries)
		So(entries[0].PathHash, ShouldEqual, uint64(1))
		So(entries[1].PathHash, ShouldEqual, uint64(1))
		So(entries[2].PathHash, ShouldEqual, uint64(2))
		// stable: /a stays before /c among equal hashes.
		So(entries[0].VfsPath, ShouldEqual, "/a")
		So(entries[1].VfsPath, ShouldEqual, "/c")
	})

	Convey("UnpackEntryTable", t, func() {
		a := Entry{PathHash: 1, Checksum: []byte{0xAA}}
		b := Entry{PathHash: 2, Checksum: []byte{0xBB}}
		recA, err := a.Pack(1)
		So(err, ShouldBeNil)
		recB, err := b.Pack(1)
		So(err, ShouldBeNil)

		buf := append(append([]byte{}, recA...), recB...)
		entries, err := UnpackEntryTable(buf, 2, 1)
		So(err, ShouldBeNil)
		So(len(entries), ShouldEqual, 2)
		So(entries[0].PathHash, ShouldEqual, uint64(1))
		So(entries[1].PathHash, ShouldEqual, uint64(2))

		Convey("truncated buffer", func() {
			_, err := UnpackEntryTable(buf[:len(buf)-1], 2, 1)
			So(err, ShouldErrLike, "reading entry record")
		})
	})
}
