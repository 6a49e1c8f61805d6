// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package grimoire

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	. "go.chromium.org/luci/common/testing/assertions"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/grimoirevfs/grimoire/container"
)

func TestExtractAll(t *testing.T) {
	t.Parallel()

	Convey("ExtractAll", t, func() {
		dir := t.TempDir()
		archivePath := filepath.Join(dir, "archive.grim")

		w, err := NewWriter(container.ModeArchive, WithChecksum(container.NewSHA256ChecksumHook()))
		So(err, ShouldBeNil)
		So(w.AddBytes("/dir/one.txt", []byte("one")), ShouldBeNil)
		So(w.AddBytes("/dir/sub/two.txt", []byte("two")), ShouldBeNil)
		So(w.WriteTo(archivePath), ShouldBeNil)

		reader, err := Open(archivePath, testRegistry(t))
		So(err, ShouldBeNil)
		defer reader.Close()

		Convey("extracts into a not-yet-existing directory", func() {
			root := filepath.Join(dir, "out")
			result, err := reader.ExtractAll(context.Background(), root, true, OnErrorRaise, nil)
			So(err, ShouldBeNil)
			So(result.SuccessCount, ShouldEqual, 2)

			data, err := os.ReadFile(filepath.Join(root, "dir", "one.txt"))
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, "one")

			data, err = os.ReadFile(filepath.Join(root, "dir", "sub", "two.txt"))
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, "two")
		})

		Convey("refuses a non-empty root", func() {
			root := filepath.Join(dir, "occupied")
			So(os.MkdirAll(root, 0755), ShouldBeNil)
			So(os.WriteFile(filepath.Join(root, "existing"), []byte("x"), 0644), ShouldBeNil)

			_, err := reader.ExtractAll(context.Background(), root, true, OnErrorRaise, nil)
			So(err, ShouldNotBeNil)
		})
	})

	Convey("verify=false skips checksum verification on extract", t, func() {
		dir := t.TempDir()
		archivePath := filepath.Join(dir, "archive.grim")

		w, err := NewWriter(container.ModeArchive, WithChecksum(container.NewSHA256ChecksumHook()))
		So(err, ShouldBeNil)
		So(w.AddBytes("/a.txt", []byte("original content")), ShouldBeNil)
		So(w.WriteTo(archivePath), ShouldBeNil)

		reader, err := Open(archivePath, testRegistry(t))
		So(err, ShouldBeNil)
		defer reader.Close()

		entry, err := reader.lookup("/a.txt")
		So(err, ShouldBeNil)
		entry.Checksum[0] ^= 0xff

		Convey("verify=true surfaces the mismatch", func() {
			_, err := reader.readEntry(entry, true)
			So(err, ShouldErrLike, container.ErrChecksumMismatch)
		})

		Convey("verify=false returns the bytes anyway", func() {
			data, err := reader.readEntry(entry, false)
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, "original content")
		})
	})
}

func TestVerifyAll(t *testing.T) {
	t.Parallel()

	Convey("VerifyAll", t, func() {
		dir := t.TempDir()
		archivePath := filepath.Join(dir, "archive.grim")

		w, err := NewWriter(container.ModeArchive, WithChecksum(container.NewSHA256ChecksumHook()))
		So(err, ShouldBeNil)
		So(w.AddBytes("/a", []byte("aaa")), ShouldBeNil)
		So(w.AddBytes("/b", []byte("bbb")), ShouldBeNil)
		So(w.WriteTo(archivePath), ShouldBeNil)

		reader, err := Open(archivePath, testRegistry(t))
		So(err, ShouldBeNil)
		defer reader.Close()

		result, err := reader.VerifyAll(context.Background(), OnErrorRaise, nil)
		So(err, ShouldBeNil)
		So(result.SuccessCount, ShouldEqual, 2)
		So(result.FailedCount, ShouldEqual, 0)
	})

	Convey("VerifyAll rejects a Manifest container", t, func() {
		w, err := NewWriter(container.ModeManifest)
		So(err, ShouldBeNil)
		dir := t.TempDir()
		path := filepath.Join(dir, "m.grim")
		So(w.WriteTo(path), ShouldBeNil)

		reader, err := Open(path, testRegistry(t))
		So(err, ShouldBeNil)
		defer reader.Close()

		_, err = reader.VerifyAll(context.Background(), OnErrorRaise, nil)
		So(err, ShouldErrLike, container.ErrModeMismatch)
	})
}
