// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package container

import (
	"testing"

	. "go.chromium.org/luci/common/testing/assertions"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPipeline(t *testing.T) {
	t.Parallel()

	Convey("Pipeline", t, func() {
		raw := []byte("the quick brown fox jumps over the lazy dog")

		Convey("no checksum, no compression: stored as-is", func() {
			p := Pipeline{}
			packed, err := p.PackEntry(raw)
			So(err, ShouldBeNil)
			So(packed.Packed, ShouldResemble, raw)
			So(packed.Checksum, ShouldBeNil)

			out, err := p.UnpackEntry(packed.Packed, packed.RawSize, nil, true)
			So(err, ShouldBeNil)
			So(out, ShouldResemble, raw)
		})

		Convey("checksum only", func() {
			p := Pipeline{Checksum: NewSHA256ChecksumHook()}
			packed, err := p.PackEntry(raw)
			So(err, ShouldBeNil)
			So(len(packed.Checksum), ShouldEqual, 32)

			out, err := p.UnpackEntry(packed.Packed, packed.RawSize, packed.Checksum, true)
			So(err, ShouldBeNil)
			So(out, ShouldResemble, raw)

			Convey("tampered checksum is caught when verify is true", func() {
				badChecksum := append([]byte{}, packed.Checksum...)
				badChecksum[0] ^= 0xff
				_, err := p.UnpackEntry(packed.Packed, packed.RawSize, badChecksum, true)
				So(err, ShouldErrLike, ErrChecksumMismatch)
			})

			Convey("tampered checksum is ignored when verify is false", func() {
				badChecksum := append([]byte{}, packed.Checksum...)
				badChecksum[0] ^= 0xff
				out, err := p.UnpackEntry(packed.Packed, packed.RawSize, badChecksum, false)
				So(err, ShouldBeNil)
				So(out, ShouldResemble, raw)
			})
		})

		Convey("compression only", func() {
			p := Pipeline{Compression: NewFlateCompressionHook(-1)}
			packed, err := p.PackEntry(raw)
			So(err, ShouldBeNil)

			out, err := p.UnpackEntry(packed.Packed, packed.RawSize, nil, true)
			So(err, ShouldBeNil)
			So(out, ShouldResemble, raw)
		})

		Convey("checksum covers the raw bytes, independent of compression", func() {
			checksumHook := NewSHA256ChecksumHook()
			uncompressed := Pipeline{Checksum: checksumHook}
			compressed := Pipeline{Checksum: checksumHook, Compression: NewFlateCompressionHook(-1)}

			a, err := uncompressed.PackEntry(raw)
			So(err, ShouldBeNil)
			b, err := compressed.PackEntry(raw)
			So(err, ShouldBeNil)

			So(a.Checksum, ShouldResemble, b.Checksum)
			So(a.Packed, ShouldNotResemble, b.Packed)
		})

		Convey("stored payload wrong size without a compression hook", func() {
			p := Pipeline{}
			_, err := p.UnpackEntry(raw, uint64(len(raw))+1, nil, true)
			So(err, ShouldErrLike, ErrDecompressError)
		})
	})
}
