// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package container

import (
	"hash/fnv"
	"path"
	"strings"
)

// PathHashFunc computes the u64 lookup key for a canonicalized vfs-path.
// It must be pure and deterministic across processes, per spec.md §4.1.
type PathHashFunc func(vfsPath string) uint64

// NormalizePath canonicalizes a vfs-path: backslashes become slashes,
// runs of slashes collapse, a leading slash is added if missing, and any
// trailing slash (other than the root path itself) is stripped. Mirrors
// original_source/grimoire/utils.py's normalize_path.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// SplitPath splits a normalized vfs-path into (dir, name, ext) per
// spec.md §3's VfsPath definition: dir is everything up to and including
// the last slash... except the dictionary stores dir *without* a
// trailing slash (the root is the literal string "/"), name is the
// basename without its final extension, and ext is the final ".xxx"
// (dot included) or empty.
func SplitPath(vfsPath string) (dir, name, ext string) {
	normalized := NormalizePath(vfsPath)

	dir = path.Dir(normalized)
	base := path.Base(normalized)

	if dotIndex := strings.LastIndex(base, "."); dotIndex > 0 {
		name, ext = base[:dotIndex], base[dotIndex:]
	} else {
		name, ext = base, ""
	}
	return dir, name, ext
}

// JoinPath is the inverse of SplitPath.
func JoinPath(dir, name, ext string) string {
	if dir == "/" {
		return "/" + name + ext
	}
	return dir + "/" + name + ext
}

// DefaultPathHash is the PathHashFunc recorded as id 0 in a FileHeader's
// PathHashAlgoID field. It FNV-1a-64 hashes the normalized, UTF-8 encoded
// path, matching spec.md §6's recommendation (the Python prototype used
// a truncated MD5 instead; FNV-1a64 is the stdlib-native, non-cryptographic
// choice the spec explicitly calls out as the default).
func DefaultPathHash(vfsPath string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(NormalizePath(vfsPath)))
	return h.Sum64()
}

// CaseFoldedPathHash lower-cases the normalized path before hashing, for
// callers building case-insensitive containers (spec.md §6 mentions this
// as a reader/writer-selectable mode). It is not assigned a reserved id;
// a caller using it must record a non-zero PathHashAlgoID and use the
// same function consistently on both write and read.
func CaseFoldedPathHash(vfsPath string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(strings.ToLower(NormalizePath(vfsPath))))
	return h.Sum64()
}
