/*
Copyright (c) 2025-present, Nudibranches Technologies SAS.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package gotrino

import (
	"bytes"
	"encoding/base64"
	"io"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// Encoding is the compression applied to spooled row payloads.
type Encoding int

const (
	// EncodingJSON is uncompressed JSON.
	EncodingJSON Encoding = iota
	// EncodingJSONZstd is JSON with Zstandard compression.
	EncodingJSONZstd
	// EncodingJSONLz4 is JSON with LZ4 compression.
	EncodingJSONLz4
)

// DefaultEncoding is what the builder falls back to when asked for an
// encoding it does not recognize.
const DefaultEncoding = EncodingJSONZstd

func (e Encoding) String() string {
	switch e {
	case EncodingJSONZstd:
		return "json+zstd"
	case EncodingJSONLz4:
		return "json+lz4"
	default:
		return "json"
	}
}

// ParseEncoding resolves a spooling encoding name.
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "json":
		return EncodingJSON, nil
	case "json+zstd":
		return EncodingJSONZstd, nil
	case "json+lz4":
		return EncodingJSONLz4, nil
	default:
		return 0, internalErrorf("unsupported spooling encoding: %s. Supported values: json, json+zstd, json+lz4", s)
	}
}

var zstdReader, _ = zstd.NewReader(nil,
	zstd.WithDecoderConcurrency(1), zstd.IgnoreChecksum(true))

// Decompress decodes segment bytes into their JSON text. Some servers
// report a compressed encoding but spool small segments plain, so a
// failed zstd or lz4 decode falls back to interpreting the bytes as
// UTF-8 JSON; only when both fail is the combined error reported.
func Decompress(data []byte, encoding Encoding) (string, error) {
	switch encoding {
	case EncodingJSONZstd:
		out, err := zstdReader.DecodeAll(data, nil)
		if err != nil {
			return fallbackPlain(data, "zstd", err)
		}
		return string(out), nil
	case EncodingJSONLz4:
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		if err != nil {
			return fallbackPlain(data, "lz4", err)
		}
		return string(out), nil
	default:
		if !utf8.Valid(data) {
			return "", internalErrorf("failed to convert uncompressed data to UTF-8")
		}
		return string(data), nil
	}
}

func fallbackPlain(data []byte, codec string, decodeErr error) (string, error) {
	if !utf8.Valid(data) {
		return "", internalErrorf("failed to decompress %s and plain JSON fallback also failed: %s", codec, decodeErr)
	}
	return string(data), nil
}

// base64Decode decodes standard padded base64, the form inline segment
// data arrives in.
func base64Decode(data string) ([]byte, error) {
	out, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, errors.Wrap(err, "base64 decode failed")
	}
	return out, nil
}

// gunzip undoes transport-level gzip on remote segment responses.
func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decompress gzip data")
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decompress gzip data")
	}
	return out, nil
}
