// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package container

import (
	"bytes"
	"fmt"
	"testing"

	. "go.chromium.org/luci/common/testing/assertions"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBuiltinCompressionHooks(t *testing.T) {
	t.Parallel()

	Convey("BuiltinCompressionHooks", t, func() {
		hooks, err := BuiltinCompressionHooks()
		So(err, ShouldBeNil)

		payload := bytes.Repeat([]byte("hello grimoire "), 64)

		for _, hook := range hooks {
			hook := hook
			Convey(fmt.Sprintf("algo_id %d", hook.AlgoID()), func() {
				compressed, err := hook.Compress(payload)
				So(err, ShouldBeNil)

				out, err := hook.Decompress(compressed, uint64(len(payload)))
				So(err, ShouldBeNil)
				So(out, ShouldResemble, payload)
			})
		}
	})

	Convey("flate decompress rejects mismatched raw size", t, func() {
		hook := NewFlateCompressionHook(-1)
		compressed, err := hook.Compress([]byte("abc"))
		So(err, ShouldBeNil)
		_, err = hook.Decompress(compressed, 100)
		So(err, ShouldErrLike, ErrDecompressError)
	})
}
