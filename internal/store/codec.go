package store

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/gridcube/gridcube/pkg/safeconv"
)

// lz4CodecID is the compressor id written into array metadata.
const lz4CodecID = "lz4"

// sizeHeaderBytes is the little-endian uncompressed-size prefix on each
// compressed chunk, needed to size the decompression buffer.
const sizeHeaderBytes = 4

// compressChunk compresses a raw chunk payload with LZ4 block compression,
// prefixed with the uncompressed size.
func compressChunk(raw []byte) ([]byte, error) {
	out := make([]byte, sizeHeaderBytes+lz4.CompressBlockBound(len(raw)))
	binary.LittleEndian.PutUint32(out[:sizeHeaderBytes], safeconv.MustIntToUint32(len(raw)))

	written, err := lz4.CompressBlock(raw, out[sizeHeaderBytes:], nil)
	if err != nil {
		return nil, fmt.Errorf("compressing chunk: %w", err)
	}

	if written == 0 {
		// Incompressible payload: store it verbatim, flagged by a zero
		// compressed length.
		return append(out[:sizeHeaderBytes], raw...), nil
	}

	return out[:sizeHeaderBytes+written], nil
}

// decompressChunk reverses compressChunk.
func decompressChunk(data []byte) ([]byte, error) {
	if len(data) < sizeHeaderBytes {
		return nil, fmt.Errorf("chunk payload too short: %d bytes", len(data))
	}

	rawLen := int(binary.LittleEndian.Uint32(data[:sizeHeaderBytes]))
	body := data[sizeHeaderBytes:]

	if len(body) == rawLen {
		// Stored verbatim.
		out := make([]byte, rawLen)
		copy(out, body)

		return out, nil
	}

	out := make([]byte, rawLen)

	n, err := lz4.UncompressBlock(body, out)
	if err != nil {
		return nil, fmt.Errorf("decompressing chunk: %w", err)
	}

	if n != rawLen {
		return nil, fmt.Errorf("decompressed %d bytes, expected %d", n, rawLen)
	}

	return out, nil
}
