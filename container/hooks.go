// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package container

import (
	"go.chromium.org/luci/common/errors"
)

// ChecksumHook computes a fixed-size digest used for integrity
// verification. algo_id 0 is reserved for "none". Per spec.md §4.1, a
// ChecksumHook is pure: no shared mutable state across calls.
type ChecksumHook interface {
	AlgoID() uint16
	OutputSize() uint16
	Compute(data []byte) ([]byte, error)
}

// BatchChecksumHook is an optional extension a ChecksumHook can implement
// to compute several files' digests more efficiently than one-by-one —
// the hook for spec.md §4.1's "opaque batch digest provider" for external
// tools, or simply a hook that pipelines local I/O.
type BatchChecksumHook interface {
	ChecksumHook
	ComputeFilesBatch(paths []string) (map[string][]byte, error)
}

// CompressionHook compresses and decompresses entry payloads. algo_id 0
// is reserved for "stored" (no compression); that id is never looked up
// through a CompressionHook, it's handled directly by the pipeline.
type CompressionHook interface {
	AlgoID() uint16
	Compress(data []byte) ([]byte, error)
	// Decompress must return exactly rawSize bytes or fail; a hook that
	// returns a different length is a hook bug and the pipeline treats
	// it as ErrDecompressError.
	Decompress(data []byte, rawSize uint64) ([]byte, error)
}

// IndexCryptoHook encrypts and decrypts the three path-string tables
// (dir, name, ext), each independently, leaving the EntryRecord table
// itself always in the clear. This is what lets a Reader enumerate
// path_hash values and entry metadata without decrypting anything, while
// reconstructing full vfs-paths requires a matching hook. Exactly one
// IndexCryptoHook may be active per container (recorded as a single
// non-zero id in the FileHeader).
type IndexCryptoHook interface {
	AlgoID() uint16
	Encrypt(data []byte) ([]byte, error)
	Decrypt(data []byte) ([]byte, error)
}

// Registry indexes a caller-supplied set of hooks by algo_id, failing at
// construction if two hooks of the same kind collide, per spec.md §4.1.
type Registry struct {
	checksum map[uint16]ChecksumHook
	compress map[uint16]CompressionHook
	crypto   map[uint16]IndexCryptoHook
}

// NewRegistry builds a Registry from the given hook lists. An empty or
// nil list for any kind is fine; lookups for that kind simply always
// fail with ErrUnknownAlgoID.
func NewRegistry(checksums []ChecksumHook, compressors []CompressionHook, cryptos []IndexCryptoHook) (*Registry, error) {
	r := &Registry{
		checksum: make(map[uint16]ChecksumHook, len(checksums)),
		compress: make(map[uint16]CompressionHook, len(compressors)),
		crypto:   make(map[uint16]IndexCryptoHook, len(cryptos)),
	}
	for _, h := range checksums {
		if _, exists := r.checksum[h.AlgoID()]; exists {
			return nil, errors.Annotate(ErrDuplicateAlgoID).Reason(
				"duplicate checksum algo_id %(id)d").D("id", h.AlgoID()).Err()
		}
		r.checksum[h.AlgoID()] = h
	}
	for _, h := range compressors {
		if _, exists := r.compress[h.AlgoID()]; exists {
			return nil, errors.Annotate(ErrDuplicateAlgoID).Reason(
				"duplicate compression algo_id %(id)d").D("id", h.AlgoID()).Err()
		}
		r.compress[h.AlgoID()] = h
	}
	for _, h := range cryptos {
		if _, exists := r.crypto[h.AlgoID()]; exists {
			return nil, errors.Annotate(ErrDuplicateAlgoID).Reason(
				"duplicate index-crypto algo_id %(id)d").D("id", h.AlgoID()).Err()
		}
		r.crypto[h.AlgoID()] = h
	}
	return r, nil
}

// Checksum returns the registered ChecksumHook for id, or ErrUnknownAlgoID.
func (r *Registry) Checksum(id uint16) (ChecksumHook, error) {
	if id == 0 {
		return nil, nil
	}
	h, ok := r.checksum[id]
	if !ok {
		return nil, errors.Annotate(ErrUnknownAlgoID).Reason(
			"no checksum hook for algo_id %(id)d").D("id", id).Err()
	}
	return h, nil
}

// Compression returns the registered CompressionHook for id, or
// ErrUnknownAlgoID. id 0 ("stored") never has a hook; callers must treat
// it specially before calling this.
func (r *Registry) Compression(id uint16) (CompressionHook, error) {
	h, ok := r.compress[id]
	if !ok {
		return nil, errors.Annotate(ErrUnknownAlgoID).Reason(
			"no compression hook for algo_id %(id)d").D("id", id).Err()
	}
	return h, nil
}

// Crypto returns the registered IndexCryptoHook for id, or
// ErrUnknownAlgoID.
func (r *Registry) Crypto(id uint16) (IndexCryptoHook, error) {
	h, ok := r.crypto[id]
	if !ok {
		return nil, errors.Annotate(ErrUnknownAlgoID).Reason(
			"no index-crypto hook for algo_id %(id)d").D("id", id).Err()
	}
	return h, nil
}
