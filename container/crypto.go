// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package container

import (
	"bytes"
	"compress/flate"
	"io"

	"filippo.io/age"
	"go.chromium.org/luci/common/errors"
)

// Reserved index-crypto algo_id values, per spec.md §6. 0 means the index
// is stored in the clear.
const (
	IndexCryptoXor       uint16 = 1
	IndexCryptoFlateXor  uint16 = 2
	IndexCryptoAgeScrypt uint16 = 3
)

// xorStream XORs data with a repeating key, in place on a copy, matching
// original_source/grimoire/hooks/crypto.py's XorObfuscateHook: cheap
// obfuscation against casual inspection, no cryptographic integrity.
func xorStream(data, key []byte) []byte {
	out := make([]byte, len(data))
	for i := range data {
		out[i] = data[i] ^ key[i%len(key)]
	}
	return out
}

// xorIndexCryptoHook is the cheapest available index-crypto hook: a
// repeating-key XOR. It exists for callers who want the index unreadable
// to a text editor but have no real confidentiality requirement.
type xorIndexCryptoHook struct{ key []byte }

// NewXorIndexCryptoHook returns an IndexCryptoHook that XOR-obfuscates the
// index with key. key must be non-empty.
func NewXorIndexCryptoHook(key []byte) (IndexCryptoHook, error) {
	if len(key) == 0 {
		return nil, errors.Reason("xor index-crypto hook requires a non-empty key").Err()
	}
	return xorIndexCryptoHook{key: key}, nil
}

func (xorIndexCryptoHook) AlgoID() uint16 { return IndexCryptoXor }
func (h xorIndexCryptoHook) Encrypt(data []byte) ([]byte, error) { return xorStream(data, h.key), nil }
func (h xorIndexCryptoHook) Decrypt(data []byte) ([]byte, error) { return xorStream(data, h.key), nil }

// flateXorIndexCryptoHook compresses the index and then XORs it, matching
// original_source/grimoire/hooks/crypto.py's ZlibXorHook: smaller on disk
// than plain XOR, still no real confidentiality.
type flateXorIndexCryptoHook struct{ key []byte }

// NewFlateXorIndexCryptoHook returns an IndexCryptoHook that DEFLATEs the
// index and then XOR-obfuscates the compressed bytes.
func NewFlateXorIndexCryptoHook(key []byte) (IndexCryptoHook, error) {
	if len(key) == 0 {
		return nil, errors.Reason("flate+xor index-crypto hook requires a non-empty key").Err()
	}
	return flateXorIndexCryptoHook{key: key}, nil
}

func (flateXorIndexCryptoHook) AlgoID() uint16 { return IndexCryptoFlateXor }

func (h flateXorIndexCryptoHook) Encrypt(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, errors.Annotate(err).Reason("constructing flate writer for index").Err()
	}
	if _, err := w.Write(data); err != nil {
		return nil, errors.Annotate(err).Reason("flate-compressing index").Err()
	}
	if err := w.Close(); err != nil {
		return nil, errors.Annotate(err).Reason("closing flate writer for index").Err()
	}
	return xorStream(buf.Bytes(), h.key), nil
}

func (h flateXorIndexCryptoHook) Decrypt(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(xorStream(data, h.key)))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Annotate(ErrIndexDecryptError).Reason("flate-decompressing index: %(err)s").D("err", err.Error()).Err()
	}
	return out, nil
}

// ageScryptIndexCryptoHook encrypts the index to a single age passphrase
// identity, adapted from age's normal multi-recipient public-key mode: an
// IndexCryptoHook has exactly one caller-held secret (a passphrase), not a
// list of recipient public keys, so scrypt-based symmetric age encryption
// is the natural fit rather than X25519 key exchange.
type ageScryptIndexCryptoHook struct {
	recipient *age.ScryptRecipient
	identity  *age.ScryptIdentity
}

// NewAgeScryptIndexCryptoHook returns an IndexCryptoHook that encrypts the
// index with age's scrypt-based passphrase mode.
func NewAgeScryptIndexCryptoHook(passphrase string) (IndexCryptoHook, error) {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, errors.Annotate(err).Reason("constructing age scrypt recipient").Err()
	}
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, errors.Annotate(err).Reason("constructing age scrypt identity").Err()
	}
	return &ageScryptIndexCryptoHook{recipient: recipient, identity: identity}, nil
}

func (*ageScryptIndexCryptoHook) AlgoID() uint16 { return IndexCryptoAgeScrypt }

func (h *ageScryptIndexCryptoHook) Encrypt(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, h.recipient)
	if err != nil {
		return nil, errors.Annotate(err).Reason("constructing age encryptor for index").Err()
	}
	if _, err := w.Write(data); err != nil {
		return nil, errors.Annotate(err).Reason("encrypting index").Err()
	}
	if err := w.Close(); err != nil {
		return nil, errors.Annotate(err).Reason("finalizing index encryption").Err()
	}
	return buf.Bytes(), nil
}

func (h *ageScryptIndexCryptoHook) Decrypt(data []byte) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(data), h.identity)
	if err != nil {
		return nil, errors.Annotate(ErrIndexDecryptError).Reason("opening age-encrypted index: %(err)s").D("err", err.Error()).Err()
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Annotate(ErrIndexDecryptError).Reason("reading age-encrypted index: %(err)s").D("err", err.Error()).Err()
	}
	return out, nil
}
