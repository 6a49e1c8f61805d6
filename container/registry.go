// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package container

import "go.chromium.org/luci/common/errors"

// AlgorithmInfo is one row of the AlgorithmRegistry: the stable numeric id
// and expected digest size for a named checksum algorithm.
type AlgorithmInfo struct {
	ID   uint16
	Size uint16
}

// AlgorithmRegistry maps checksum algorithm names to their stable
// (algo_id, digest_size) pair. It is the single source of truth every
// ChecksumHook and BatchChecksumHook implementation — built-in or
// external-tool-backed — must agree with, so that a container built with
// one implementation of "sha256" can always be read by another.
var AlgorithmRegistry = map[string]AlgorithmInfo{
	"none":     {0, 0},
	"crc32":    {ChecksumCRC32, 4},
	"md5":      {ChecksumMD5, 16},
	"sha1":     {ChecksumSHA1, 20},
	"sha256":   {ChecksumSHA256, 32},
	"sha512":   {ChecksumSHA512, 64},
	"blake3":   {ChecksumBLAKE3, 32},
	"blake2b":  {ChecksumBLAKE2b, 64},
	"blake2s":  {ChecksumBLAKE2s, 32},
	"sha3-256": {ChecksumSHA3_256, 32},
}

// algorithmNames is the reverse of AlgorithmRegistry, built once.
var algorithmNames = func() map[uint16]string {
	m := make(map[uint16]string, len(AlgorithmRegistry))
	for name, info := range AlgorithmRegistry {
		m[info.ID] = name
	}
	return m
}()

// AlgorithmName returns the registered name for algo_id, or an error if
// the id isn't in AlgorithmRegistry.
func AlgorithmName(id uint16) (string, error) {
	name, ok := algorithmNames[id]
	if !ok {
		return "", errors.Annotate(ErrUnknownAlgoID).Reason("no algorithm name registered for id %(id)d").D("id", id).Err()
	}
	return name, nil
}

// AlgorithmByName looks up a checksum algorithm's registry entry by name.
func AlgorithmByName(name string) (AlgorithmInfo, error) {
	info, ok := AlgorithmRegistry[name]
	if !ok {
		return AlgorithmInfo{}, errors.Reason("unknown algorithm name %(name)q").D("name", name).Err()
	}
	return info, nil
}
