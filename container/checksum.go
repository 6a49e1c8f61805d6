// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package container

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"hash/crc32"

	"go.chromium.org/luci/common/errors"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/sha3"
)

// Reserved checksum algo_id values, per spec.md §6. 0 means "no checksum".
const (
	ChecksumCRC32    uint16 = 1
	ChecksumMD5      uint16 = 2
	ChecksumSHA1     uint16 = 3
	ChecksumSHA256   uint16 = 4
	ChecksumSHA512   uint16 = 5
	ChecksumBLAKE3   uint16 = 6
	ChecksumBLAKE2b  uint16 = 7
	ChecksumBLAKE2s  uint16 = 8
	ChecksumSHA3_256 uint16 = 9
)

// hashChecksumHook adapts a stdlib-shaped hash.Hash constructor into a
// ChecksumHook, mirroring how sar/sardata/checksum.go's ChecksumScheme.Hash
// dispatches to a fresh hash.Hash per call.
type hashChecksumHook struct {
	id   uint16
	size uint16
	new  func() hash.Hash
}

func (h hashChecksumHook) AlgoID() uint16    { return h.id }
func (h hashChecksumHook) OutputSize() uint16 { return h.size }

func (h hashChecksumHook) Compute(data []byte) ([]byte, error) {
	sum := h.new()
	if _, err := sum.Write(data); err != nil {
		return nil, errors.Annotate(err).Reason("writing to checksum hash").Err()
	}
	return sum.Sum(nil), nil
}

// crc32ChecksumHook is handled separately from hashChecksumHook because
// hash/crc32.NewIEEE satisfies hash.Hash32, not the generic constructor
// shape, and its 4-byte digest is narrower than anything else here.
type crc32ChecksumHook struct{}

func (crc32ChecksumHook) AlgoID() uint16     { return ChecksumCRC32 }
func (crc32ChecksumHook) OutputSize() uint16 { return 4 }
func (crc32ChecksumHook) Compute(data []byte) ([]byte, error) {
	buf := make([]byte, 4)
	byteOrder.PutUint32(buf, crc32.ChecksumIEEE(data))
	return buf, nil
}

// NewCRC32ChecksumHook returns the built-in CRC32 (IEEE) checksum hook.
func NewCRC32ChecksumHook() ChecksumHook { return crc32ChecksumHook{} }

// NewMD5ChecksumHook returns the built-in MD5 checksum hook. MD5 is kept
// only for interoperability with tooling that expects it; it carries no
// integrity guarantee against a deliberate adversary.
func NewMD5ChecksumHook() ChecksumHook {
	return hashChecksumHook{ChecksumMD5, md5.Size, md5.New}
}

// NewSHA1ChecksumHook returns the built-in SHA-1 checksum hook.
func NewSHA1ChecksumHook() ChecksumHook {
	return hashChecksumHook{ChecksumSHA1, sha1.Size, sha1.New}
}

// NewSHA256ChecksumHook returns the built-in SHA-256 checksum hook.
func NewSHA256ChecksumHook() ChecksumHook {
	return hashChecksumHook{ChecksumSHA256, sha256.Size, sha256.New}
}

// NewSHA512ChecksumHook returns the built-in SHA-512 checksum hook.
func NewSHA512ChecksumHook() ChecksumHook {
	return hashChecksumHook{ChecksumSHA512, sha512.Size, sha512.New}
}

// NewBLAKE3ChecksumHook returns the built-in BLAKE3 (256-bit) checksum hook.
func NewBLAKE3ChecksumHook() ChecksumHook {
	return hashChecksumHook{ChecksumBLAKE3, 32, func() hash.Hash { return blake3.New() }}
}

// NewBLAKE2bChecksumHook returns the built-in BLAKE2b-512 checksum hook.
func NewBLAKE2bChecksumHook() ChecksumHook {
	return hashChecksumHook{ChecksumBLAKE2b, 64, func() hash.Hash {
		h, _ := blake2b.New512(nil)
		return h
	}}
}

// NewBLAKE2sChecksumHook returns the built-in BLAKE2s-256 checksum hook.
func NewBLAKE2sChecksumHook() ChecksumHook {
	return hashChecksumHook{ChecksumBLAKE2s, 32, func() hash.Hash {
		h, _ := blake2s.New256(nil)
		return h
	}}
}

// NewSHA3_256ChecksumHook returns the built-in SHA3-256 checksum hook.
func NewSHA3_256ChecksumHook() ChecksumHook {
	return hashChecksumHook{ChecksumSHA3_256, 32, sha3.New256}
}

// BuiltinChecksumHooks returns every reserved-id checksum hook, ready to
// hand to NewRegistry.
func BuiltinChecksumHooks() []ChecksumHook {
	return []ChecksumHook{
		NewCRC32ChecksumHook(),
		NewMD5ChecksumHook(),
		NewSHA1ChecksumHook(),
		NewSHA256ChecksumHook(),
		NewSHA512ChecksumHook(),
		NewBLAKE3ChecksumHook(),
		NewBLAKE2bChecksumHook(),
		NewBLAKE2sChecksumHook(),
		NewSHA3_256ChecksumHook(),
	}
}
