// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package container

import (
	"go.chromium.org/luci/common/errors"
)

// DefaultMagic is the four ASCII bytes every GrimoireVFS container starts
// with unless the caller supplies a domain-specific magic.
var DefaultMagic = [4]byte{'G', 'R', 'I', 'M'}

// Version is the format version written by this implementation.
const Version uint8 = 1

// CheckMagic reports whether got matches want, returning ErrBadMagic
// (annotated with both values) if not.
func CheckMagic(want, got [4]byte) error {
	if want != got {
		return errors.Annotate(ErrBadMagic).Reason("got %(got)q want %(want)q").
			D("got", string(got[:])).D("want", string(want[:])).Err()
	}
	return nil
}
