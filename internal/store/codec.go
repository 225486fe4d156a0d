package store

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Archived values are stored zstd-compressed; the other tiers stay raw so
// they remain readable with the sqlite shell.
const (
	encodingRaw  = "raw"
	encodingZstd = "zstd"
)

var (
	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecErr  error
)

func initCodec() error {
	codecOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if codecErr != nil {
			return
		}
		decoder, codecErr = zstd.NewReader(nil)
	})
	return codecErr
}

func compress(b []byte) ([]byte, error) {
	if err := initCodec(); err != nil {
		return nil, fmt.Errorf("init zstd: %w", err)
	}
	return encoder.EncodeAll(b, make([]byte, 0, len(b))), nil
}

func decompress(b []byte) ([]byte, error) {
	if err := initCodec(); err != nil {
		return nil, fmt.Errorf("init zstd: %w", err)
	}
	out, err := decoder.DecodeAll(b, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}

func encodeValue(encoding string, b []byte) ([]byte, error) {
	if encoding == encodingZstd {
		return compress(b)
	}
	return b, nil
}

func decodeValue(encoding string, b []byte) ([]byte, error) {
	switch encoding {
	case encodingRaw:
		return b, nil
	case encodingZstd:
		return decompress(b)
	}
	return nil, fmt.Errorf("unknown value encoding %q", encoding)
}
