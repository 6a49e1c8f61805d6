// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package container implements the low-level pieces of the GrimoireVFS
// binary format: the fixed-width headers, the three-level path dictionary,
// the pluggable checksum/compression/index-crypto hooks, and the
// per-entry pipeline that ties them together. Nothing in this package
// knows how to walk a filesystem or lay out a whole file; that lives one
// level up, in the grimoire package.
package container
