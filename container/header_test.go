// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package container

import (
	"testing"

	. "go.chromium.org/luci/common/testing/assertions"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFileHeader(t *testing.T) {
	t.Parallel()

	Convey("FileHeader", t, func() {
		h := FileHeader{
			Magic:          DefaultMagic,
			Version:        Version,
			Mode:           ModeArchive,
			ChecksumAlgoID: ChecksumSHA256,
			IndexOffset:    FileHeaderSize,
			IndexLength:    100,
			DataOffset:     FileHeaderSize + 100,
			DataLength:     16 + 42,
		}

		Convey("round trip", func() {
			buf := h.Pack()
			So(len(buf), ShouldEqual, FileHeaderSize)

			got, err := UnpackFileHeader(buf)
			So(err, ShouldBeNil)
			So(got, ShouldResemble, h)
		})

		Convey("corrupted CRC", func() {
			buf := h.Pack()
			buf[0] ^= 0xff
			_, err := UnpackFileHeader(buf)
			So(err, ShouldErrLike, ErrHeaderCorrupt)
		})

		Convey("unsupported version", func() {
			h.Version = Version + 1
			buf := h.Pack()
			_, err := UnpackFileHeader(buf)
			So(err, ShouldErrLike, ErrUnsupportedVersion)
		})

		Convey("wrong size", func() {
			_, err := UnpackFileHeader(make([]byte, FileHeaderSize-1))
			So(err, ShouldErrLike, "file header must be")
		})
	})
}

func TestCheckMagic(t *testing.T) {
	t.Parallel()

	Convey("CheckMagic", t, func() {
		So(CheckMagic(DefaultMagic, DefaultMagic), ShouldBeNil)

		other := [4]byte{'X', 'X', 'X', 'X'}
		err := CheckMagic(DefaultMagic, other)
		So(err, ShouldErrLike, ErrBadMagic)
	})
}
