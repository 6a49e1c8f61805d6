// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package container

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	Convey("NormalizePath", t, func() {
		So(NormalizePath("usr/local/bin"), ShouldEqual, "/usr/local/bin")
		So(NormalizePath(`usr\local\bin`), ShouldEqual, "/usr/local/bin")
		So(NormalizePath("//usr//local//"), ShouldEqual, "/usr/local")
		So(NormalizePath("/"), ShouldEqual, "/")
		So(NormalizePath(""), ShouldEqual, "/")
	})
}

func TestSplitJoinPath(t *testing.T) {
	t.Parallel()

	Convey("SplitPath / JoinPath", t, func() {
		Convey("regular file with extension", func() {
			dir, name, ext := SplitPath("/usr/local/grimoire.bin")
			So(dir, ShouldEqual, "/usr/local")
			So(name, ShouldEqual, "grimoire")
			So(ext, ShouldEqual, ".bin")
			So(JoinPath(dir, name, ext), ShouldEqual, "/usr/local/grimoire.bin")
		})

		Convey("no extension", func() {
			dir, name, ext := SplitPath("/usr/local/README")
			So(dir, ShouldEqual, "/usr/local")
			So(name, ShouldEqual, "README")
			So(ext, ShouldEqual, "")
		})

		Convey("dotfile has no extension", func() {
			_, name, ext := SplitPath("/home/.bashrc")
			So(name, ShouldEqual, ".bashrc")
			So(ext, ShouldEqual, "")
		})

		Convey("root-level file", func() {
			dir, name, ext := SplitPath("/grimoire.bin")
			So(dir, ShouldEqual, "/")
			So(name, ShouldEqual, "grimoire")
			So(ext, ShouldEqual, ".bin")
			So(JoinPath(dir, name, ext), ShouldEqual, "/grimoire.bin")
		})
	})
}

func TestDefaultPathHash(t *testing.T) {
	t.Parallel()

	Convey("DefaultPathHash", t, func() {
		So(DefaultPathHash("/a/b"), ShouldEqual, DefaultPathHash("a/b"))
		So(DefaultPathHash("/a/b"), ShouldNotEqual, DefaultPathHash("/a/c"))
	})

	Convey("CaseFoldedPathHash ignores case, DefaultPathHash doesn't", t, func() {
		So(CaseFoldedPathHash("/A/B"), ShouldEqual, CaseFoldedPathHash("/a/b"))
		So(DefaultPathHash("/A/B"), ShouldNotEqual, DefaultPathHash("/a/b"))
	})
}
