// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package container

import (
	"bytes"
	"compress/flate"
	"io"

	"github.com/klauspost/compress/zstd"
	"go.chromium.org/luci/common/errors"
	"github.com/pierrec/lz4/v4"
)

// Reserved compression algo_id values, per spec.md §6. 0 ("stored", no
// compression) is handled directly by the pipeline and never looked up
// through the registry.
const (
	CompressionFlate uint16 = 1
	CompressionLZ4   uint16 = 2
	CompressionZstd  uint16 = 3
)

// flateCompressionHook wraps stdlib DEFLATE, the same scheme
// sar/sardata/compression.go offers as CompressionFlate.
type flateCompressionHook struct{ level int }

func (flateCompressionHook) AlgoID() uint16 { return CompressionFlate }

func (h flateCompressionHook) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, h.level)
	if err != nil {
		return nil, errors.Annotate(err).Reason("constructing flate writer").Err()
	}
	if _, err := w.Write(data); err != nil {
		return nil, errors.Annotate(err).Reason("flate-compressing payload").Err()
	}
	if err := w.Close(); err != nil {
		return nil, errors.Annotate(err).Reason("closing flate writer").Err()
	}
	return buf.Bytes(), nil
}

func (flateCompressionHook) Decompress(data []byte, rawSize uint64) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	out, err := io.ReadAll(io.LimitReader(r, int64(rawSize)+1))
	if err != nil {
		return nil, errors.Annotate(ErrDecompressError).Reason("flate-decompressing payload: %(err)s").D("err", err.Error()).Err()
	}
	if uint64(len(out)) != rawSize {
		return nil, errors.Annotate(ErrDecompressError).Reason(
			"flate output is %(got)d bytes, want %(want)d").D("got", len(out)).D("want", rawSize).Err()
	}
	return out, nil
}

// NewFlateCompressionHook returns the built-in DEFLATE compression hook at
// the given level (flate.DefaultCompression is a sane default).
func NewFlateCompressionHook(level int) CompressionHook {
	return flateCompressionHook{level}
}

// lz4CompressionHook wraps github.com/pierrec/lz4/v4, the fast/low-latency
// option in the domain stack.
type lz4CompressionHook struct{}

func (lz4CompressionHook) AlgoID() uint16 { return CompressionLZ4 }

func (lz4CompressionHook) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, errors.Annotate(err).Reason("lz4-compressing payload").Err()
	}
	if err := w.Close(); err != nil {
		return nil, errors.Annotate(err).Reason("closing lz4 writer").Err()
	}
	return buf.Bytes(), nil
}

func (lz4CompressionHook) Decompress(data []byte, rawSize uint64) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(io.LimitReader(r, int64(rawSize)+1))
	if err != nil {
		return nil, errors.Annotate(ErrDecompressError).Reason("lz4-decompressing payload: %(err)s").D("err", err.Error()).Err()
	}
	if uint64(len(out)) != rawSize {
		return nil, errors.Annotate(ErrDecompressError).Reason(
			"lz4 output is %(got)d bytes, want %(want)d").D("got", len(out)).D("want", rawSize).Err()
	}
	return out, nil
}

// NewLZ4CompressionHook returns the built-in LZ4 compression hook.
func NewLZ4CompressionHook() CompressionHook { return lz4CompressionHook{} }

// zstdCompressionHook wraps github.com/klauspost/compress/zstd, the
// high-ratio option in the domain stack.
type zstdCompressionHook struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func (*zstdCompressionHook) AlgoID() uint16 { return CompressionZstd }

func (h *zstdCompressionHook) Compress(data []byte) ([]byte, error) {
	return h.encoder.EncodeAll(data, nil), nil
}

func (h *zstdCompressionHook) Decompress(data []byte, rawSize uint64) ([]byte, error) {
	out, err := h.decoder.DecodeAll(data, make([]byte, 0, rawSize))
	if err != nil {
		return nil, errors.Annotate(ErrDecompressError).Reason("zstd-decompressing payload: %(err)s").D("err", err.Error()).Err()
	}
	if uint64(len(out)) != rawSize {
		return nil, errors.Annotate(ErrDecompressError).Reason(
			"zstd output is %(got)d bytes, want %(want)d").D("got", len(out)).D("want", rawSize).Err()
	}
	return out, nil
}

// NewZstdCompressionHook returns the built-in Zstandard compression hook.
// The returned hook owns a persistent encoder/decoder pair; it is safe for
// concurrent use, matching zstd.Encoder/Decoder's own guarantees.
func NewZstdCompressionHook() (CompressionHook, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, errors.Annotate(err).Reason("constructing zstd encoder").Err()
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.Annotate(err).Reason("constructing zstd decoder").Err()
	}
	return &zstdCompressionHook{encoder: enc, decoder: dec}, nil
}

// BuiltinCompressionHooks returns every reserved-id compression hook ready
// to hand to NewRegistry. It can fail because constructing the zstd hook
// allocates real encoder/decoder state.
func BuiltinCompressionHooks() ([]CompressionHook, error) {
	zstdHook, err := NewZstdCompressionHook()
	if err != nil {
		return nil, err
	}
	return []CompressionHook{
		NewFlateCompressionHook(flate.DefaultCompression),
		NewLZ4CompressionHook(),
		zstdHook,
	}, nil
}
