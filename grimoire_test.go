// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package grimoire

import (
	"os"
	"path/filepath"
	"testing"

	. "go.chromium.org/luci/common/testing/assertions"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/grimoirevfs/grimoire/container"
)

func testRegistry(t *testing.T) *container.Registry {
	compressionHooks, err := container.BuiltinCompressionHooks()
	if err != nil {
		t.Fatal(err)
	}
	reg, err := container.NewRegistry(container.BuiltinChecksumHooks(), compressionHooks, nil)
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func TestWriterReaderArchiveRoundTrip(t *testing.T) {
	t.Parallel()

	Convey("Writer/Reader, Archive mode", t, func() {
		dir := t.TempDir()
		out := filepath.Join(dir, "out.grim")

		w, err := NewWriter(container.ModeArchive,
			WithChecksum(container.NewSHA256ChecksumHook()),
			WithCompression(container.NewFlateCompressionHook(-1)))
		So(err, ShouldBeNil)

		So(w.AddBytes("/usr/local/bin/grimoire", []byte("binary contents")), ShouldBeNil)
		So(w.AddBytes("/etc/hosts", []byte("127.0.0.1 localhost")), ShouldBeNil)
		So(w.AddBytes("/var/empty", []byte{}), ShouldBeNil)
		So(w.Len(), ShouldEqual, 3)

		So(w.WriteTo(out), ShouldBeNil)

		reader, err := Open(out, testRegistry(t))
		So(err, ShouldBeNil)
		defer reader.Close()

		So(reader.Mode(), ShouldEqual, container.ModeArchive)
		So(reader.IndexDecrypted(), ShouldBeTrue)

		paths, err := reader.ListAll()
		So(err, ShouldBeNil)
		So(len(paths), ShouldEqual, 3)

		data, err := reader.ReadPath("/usr/local/bin/grimoire", true)
		So(err, ShouldBeNil)
		So(string(data), ShouldEqual, "binary contents")

		data, err = reader.ReadPath("/var/empty", true)
		So(err, ShouldBeNil)
		So(len(data), ShouldEqual, 0)

		info, err := reader.Stat("/etc/hosts")
		So(err, ShouldBeNil)
		So(info.RawSize, ShouldEqual, uint64(len("127.0.0.1 localhost")))

		_, err = reader.ReadPath("/does/not/exist", true)
		So(err, ShouldErrLike, ErrNotFound)

		hashes := reader.ListHashes()
		So(len(hashes), ShouldEqual, 3)
	})
}

func TestOpenWithExpectedMode(t *testing.T) {
	t.Parallel()

	Convey("WithExpectedMode", t, func() {
		dir := t.TempDir()
		out := filepath.Join(dir, "out.grim")

		w, err := NewWriter(container.ModeManifest)
		So(err, ShouldBeNil)
		So(w.AddBytes("/a", []byte("1")), ShouldBeNil)
		So(w.WriteTo(out), ShouldBeNil)

		Convey("matching mode opens fine", func() {
			reader, err := Open(out, testRegistry(t), WithExpectedMode(container.ModeManifest))
			So(err, ShouldBeNil)
			defer reader.Close()
		})

		Convey("mismatched mode fails at Open", func() {
			_, err := Open(out, testRegistry(t), WithExpectedMode(container.ModeArchive))
			So(err, ShouldErrLike, container.ErrModeMismatch)
		})
	})
}

func TestWriterReaderManifestRoundTrip(t *testing.T) {
	t.Parallel()

	Convey("Writer/Reader, Manifest mode", t, func() {
		dir := t.TempDir()
		out := filepath.Join(dir, "out.grim")
		localFile := filepath.Join(dir, "source.txt")
		So(os.WriteFile(localFile, []byte("manifest source data"), 0644), ShouldBeNil)

		w, err := NewWriter(container.ModeManifest, WithChecksum(container.NewSHA256ChecksumHook()))
		So(err, ShouldBeNil)
		So(w.AddFile("/src/source.txt", localFile), ShouldBeNil)
		So(w.WriteTo(out), ShouldBeNil)

		reader, err := Open(out, testRegistry(t))
		So(err, ShouldBeNil)
		defer reader.Close()

		So(reader.Mode(), ShouldEqual, container.ModeManifest)

		_, err = reader.ReadPath("/src/source.txt", true)
		So(err, ShouldErrLike, container.ErrModeMismatch)

		So(reader.VerifyFile(localFile, "/src/source.txt"), ShouldBeNil)

		tamperedFile := filepath.Join(dir, "tampered.txt")
		So(os.WriteFile(tamperedFile, []byte("not the same data"), 0644), ShouldBeNil)
		err = reader.VerifyFile(tamperedFile, "/src/source.txt")
		So(err, ShouldErrLike, container.ErrChecksumMismatch)
	})
}

func TestWriterReaderIndexCrypto(t *testing.T) {
	t.Parallel()

	Convey("encrypted index", t, func() {
		dir := t.TempDir()
		out := filepath.Join(dir, "out.grim")

		key := []byte("01234567890123456789012345678901")
		writeHook, err := container.NewXorIndexCryptoHook(key)
		So(err, ShouldBeNil)

		w, err := NewWriter(container.ModeArchive, WithIndexCrypto(writeHook))
		So(err, ShouldBeNil)
		So(w.AddBytes("/secret/plan.txt", []byte("the treasure is buried here")), ShouldBeNil)
		So(w.WriteTo(out), ShouldBeNil)

		Convey("without a matching hook, only hash enumeration works", func() {
			reader, err := Open(out, testRegistry(t))
			So(err, ShouldBeNil)
			defer reader.Close()

			So(reader.IndexDecrypted(), ShouldBeFalse)
			So(len(reader.ListHashes()), ShouldEqual, 1)

			_, err = reader.ListAll()
			So(err, ShouldErrLike, ErrIndexNotDecrypted)
		})

		Convey("with a matching hook, paths resolve", func() {
			readHook, err := container.NewXorIndexCryptoHook(key)
			So(err, ShouldBeNil)
			reader, err := Open(out, testRegistry(t), WithReaderIndexCrypto(readHook))
			So(err, ShouldBeNil)
			defer reader.Close()

			So(reader.IndexDecrypted(), ShouldBeTrue)
			data, err := reader.ReadPath("/secret/plan.txt", true)
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, "the treasure is buried here")
		})
	})
}

func TestWriterDuplicatePath(t *testing.T) {
	t.Parallel()

	Convey("duplicate paths", t, func() {
		w, err := NewWriter(container.ModeManifest)
		So(err, ShouldBeNil)

		So(w.AddBytes("/a", []byte("1")), ShouldBeNil)
		err = w.AddBytes("/a", []byte("2"))
		So(err, ShouldErrLike, ErrDuplicatePath)

		Convey("AddFile re-adding the identical source is a no-op", func() {
			dir := t.TempDir()
			local := filepath.Join(dir, "f.txt")
			So(os.WriteFile(local, []byte("data"), 0644), ShouldBeNil)

			w2, err := NewWriter(container.ModeManifest)
			So(err, ShouldBeNil)
			So(w2.AddFile("/f", local), ShouldBeNil)
			So(w2.AddFile("/f", local), ShouldBeNil)
			So(w2.Len(), ShouldEqual, 1)
		})
	})
}

func TestClosedWriter(t *testing.T) {
	t.Parallel()

	Convey("Close prevents further staging", t, func() {
		w, err := NewWriter(container.ModeManifest)
		So(err, ShouldBeNil)
		So(w.Close(), ShouldBeNil)
		err = w.AddBytes("/a", []byte("1"))
		So(err, ShouldErrLike, ErrClosed)
	})
}
