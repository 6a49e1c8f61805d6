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

func writeFixtureTree(t *testing.T, dir string) {
	t.Helper()
	So(os.MkdirAll(filepath.Join(dir, "sub"), 0755), ShouldBeNil)
	So(os.WriteFile(filepath.Join(dir, "a.txt"), []byte("aaa"), 0644), ShouldBeNil)
	So(os.WriteFile(filepath.Join(dir, "b.log"), []byte("bbb"), 0644), ShouldBeNil)
	So(os.WriteFile(filepath.Join(dir, "sub", "c.txt"), []byte("ccc"), 0644), ShouldBeNil)
}

func TestAddFilesBatch(t *testing.T) {
	t.Parallel()

	Convey("AddFilesBatch", t, func() {
		dir := t.TempDir()
		writeFixtureTree(t, dir)

		items := []BatchItem{
			{LocalPath: filepath.Join(dir, "a.txt"), VfsPath: "/a.txt"},
			{LocalPath: filepath.Join(dir, "missing.txt"), VfsPath: "/missing.txt"},
			{LocalPath: filepath.Join(dir, "b.log"), VfsPath: "/b.log"},
		}

		Convey("OnErrorSkip records the failure and continues", func() {
			w, err := NewWriter(container.ModeManifest)
			So(err, ShouldBeNil)
			var lastProgress ProgressInfo
			result, err := w.AddFilesBatch(context.Background(), items, OnErrorSkip, func(p ProgressInfo) {
				lastProgress = p
			})
			So(err, ShouldBeNil)
			So(result.SuccessCount, ShouldEqual, 2)
			So(result.FailedCount, ShouldEqual, 1)
			So(result.FailedFiles[0].VfsPath, ShouldEqual, "/missing.txt")
			So(lastProgress.Total, ShouldEqual, 3)
		})

		Convey("OnErrorRaise stops on the first failure", func() {
			w, err := NewWriter(container.ModeManifest)
			So(err, ShouldBeNil)
			result, err := w.AddFilesBatch(context.Background(), items, OnErrorRaise, nil)
			So(err, ShouldNotBeNil)
			So(result.SuccessCount, ShouldEqual, 1)
		})

		Convey("OnErrorAbort stops but reports ErrBatchAborted", func() {
			w, err := NewWriter(container.ModeManifest)
			So(err, ShouldBeNil)
			result, err := w.AddFilesBatch(context.Background(), items, OnErrorAbort, nil)
			So(err, ShouldErrLike, ErrBatchAborted)
			So(result.SuccessCount, ShouldEqual, 1)
			So(result.FailedCount, ShouldEqual, 1)
		})

		Convey("a cancelled context stops the batch", func() {
			w, err := NewWriter(container.ModeManifest)
			So(err, ShouldBeNil)
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err = w.AddFilesBatch(ctx, items, OnErrorSkip, nil)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestAddDirBatch(t *testing.T) {
	t.Parallel()

	Convey("AddDirBatch", t, func() {
		dir := t.TempDir()
		writeFixtureTree(t, dir)

		Convey("recursive, no excludes", func() {
			w, err := NewWriter(container.ModeManifest)
			So(err, ShouldBeNil)
			result, err := w.AddDirBatch(context.Background(), dir, "/mnt", true, nil, OnErrorRaise, nil)
			So(err, ShouldBeNil)
			So(result.SuccessCount, ShouldEqual, 3)
			So(w.Len(), ShouldEqual, 3)
		})

		Convey("non-recursive skips the subdirectory", func() {
			w, err := NewWriter(container.ModeManifest)
			So(err, ShouldBeNil)
			result, err := w.AddDirBatch(context.Background(), dir, "/mnt", false, nil, OnErrorRaise, nil)
			So(err, ShouldBeNil)
			So(result.SuccessCount, ShouldEqual, 2)
		})

		Convey("excludePatterns filters by base name", func() {
			w, err := NewWriter(container.ModeManifest)
			So(err, ShouldBeNil)
			result, err := w.AddDirBatch(context.Background(), dir, "/mnt", true, []string{"*.log"}, OnErrorRaise, nil)
			So(err, ShouldBeNil)
			So(result.SuccessCount, ShouldEqual, 2)
		})
	})
}
