package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// ErrCorruptBlock is returned when compressed data cannot be decoded.
var ErrCorruptBlock = errors.New("corrupt compressed block")

// Compression transforms an encoded payload. Implementations must be safe for
// concurrent use.
type Compression interface {
	Name() string
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
}

// Built-in compressions.
var (
	None Compression = noCompression{}
	Zstd Compression = zstdCompression{}
	LZ4  Compression = lz4Compression{}
)

// CompressionByName returns a built-in compression by its stable name. The
// empty name is "none".
func CompressionByName(name string) (Compression, bool) {
	switch name {
	case "", "none":
		return None, true
	case "zstd":
		return Zstd, true
	case "lz4":
		return LZ4, true
	default:
		return nil, false
	}
}

type noCompression struct{}

func (noCompression) Name() string                          { return "none" }
func (noCompression) Compress(src []byte) ([]byte, error)   { return src, nil }
func (noCompression) Decompress(src []byte) ([]byte, error) { return src, nil }

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

type zstdCompression struct{}

func (zstdCompression) Name() string { return "zstd" }

func (zstdCompression) Compress(src []byte) ([]byte, error) {
	enc, err := getZstdEncoder()
	if err != nil {
		return nil, err
	}
	defer zstdEncoderPool.Put(enc)
	return enc.EncodeAll(src, nil), nil
}

func (zstdCompression) Decompress(src []byte) ([]byte, error) {
	dec, err := getZstdDecoder()
	if err != nil {
		return nil, err
	}
	defer zstdDecoderPool.Put(dec)
	out, err := dec.DecodeAll(src, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %v", ErrCorruptBlock, err)
	}
	return out, nil
}

// lz4 blocks carry a header: [uncompressed size uint32][compressed size uint32].
// A compressed size of 0 marks an incompressible block stored as is.
const lz4HeaderSize = 8

type lz4Compression struct{}

func (lz4Compression) Name() string { return "lz4" }

func (lz4Compression) Compress(src []byte) ([]byte, error) {
	out := make([]byte, lz4HeaderSize+lz4.CompressBlockBound(len(src)))
	n, err := lz4.CompressBlock(src, out[lz4HeaderSize:], nil)
	if err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint32(out[0:], uint32(len(src)))
	if n == 0 || n >= len(src) {
		binary.LittleEndian.PutUint32(out[4:], 0)
		out = append(out[:lz4HeaderSize], src...)
		return out, nil
	}
	binary.LittleEndian.PutUint32(out[4:], uint32(n))
	return out[:lz4HeaderSize+n], nil
}

func (lz4Compression) Decompress(src []byte) ([]byte, error) {
	if len(src) < lz4HeaderSize {
		return nil, fmt.Errorf("%w: lz4 block too small", ErrCorruptBlock)
	}
	size := binary.LittleEndian.Uint32(src[0:])
	csize := binary.LittleEndian.Uint32(src[4:])
	body := src[lz4HeaderSize:]
	if csize == 0 {
		if uint32(len(body)) != size {
			return nil, fmt.Errorf("%w: lz4 stored block size mismatch", ErrCorruptBlock)
		}
		return append([]byte(nil), body...), nil
	}
	if uint32(len(body)) < csize {
		return nil, fmt.Errorf("%w: lz4 block truncated", ErrCorruptBlock)
	}
	out := make([]byte, size)
	n, err := lz4.UncompressBlock(body[:csize], out)
	if err != nil {
		return nil, fmt.Errorf("%w: lz4: %v", ErrCorruptBlock, err)
	}
	if uint32(n) != size {
		return nil, fmt.Errorf("%w: lz4 decompressed size mismatch", ErrCorruptBlock)
	}
	return out, nil
}
