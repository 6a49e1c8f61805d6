// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package grimoire implements the GrimoireVFS container format: a
// random-access, hash-indexed catalog of virtual filesystem paths,
// optionally paired with the file data those paths name.
//
// A container comes in one of two modes. A Manifest carries only entry
// metadata (size, checksum) with no payload data, useful for describing
// or auditing a tree without shipping its contents. An Archive carries
// the same metadata plus a data region holding each entry's (optionally
// compressed) bytes.
//
// Every container starts with a fixed FileHeader naming the active
// checksum, index-encryption, and path-hash algorithms by a small integer
// id, while each entry record names its own compression algorithm the
// same way; the container package resolves those ids against
// a caller-supplied Registry of hook implementations rather than fixing
// any one algorithm into the format itself. The index that follows is a
// path_hash-sorted entry table plus three independently encryptable
// string tables (directory, name, extension) that a Reader reconstructs
// full vfs-paths from.
//
// Writer stages entries in memory and lays out a complete container in
// one pass; Reader opens a container for random-access lookup by path
// or by path_hash, and can extract an Archive's payload data back out
// to a directory tree.
package grimoire
