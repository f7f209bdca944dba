package tracker

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"katabatic/internal/types"
)

// zstdPrefix marks a blob that holds base64-encoded zstd-compressed JSON.
// Blobs without the prefix are plain JSON arrays.
const zstdPrefix = "zstd:"

// Codec serializes the prediction collection to the single string blob kept
// under the storage key. Dates are written as ISO-8601 strings.
type Codec struct {
	compress bool

	encoderOnce sync.Once
	encoder     *zstd.Encoder
	encoderErr  error

	decoderPool sync.Pool
}

// NewCodec returns a codec. With compress set, written blobs are zstd
// compressed; both forms are always readable.
func NewCodec(compress bool) *Codec {
	return &Codec{
		compress: compress,
		decoderPool: sync.Pool{
			New: func() any {
				d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
				if err != nil {
					return nil
				}
				return d
			},
		},
	}
}

// Encode serializes entries.
func (c *Codec) Encode(entries []types.PredictionEntry) (string, error) {
	if entries == nil {
		entries = []types.PredictionEntry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("marshal prediction entries: %w", err)
	}
	if !c.compress {
		return string(raw), nil
	}

	c.encoderOnce.Do(func() {
		c.encoder, c.encoderErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	if c.encoderErr != nil {
		return "", fmt.Errorf("create zstd encoder: %w", c.encoderErr)
	}
	compressed := c.encoder.EncodeAll(raw, nil)
	return zstdPrefix + base64.StdEncoding.EncodeToString(compressed), nil
}

// Decode parses a blob written by Encode, compressed or not.
func (c *Codec) Decode(blob string) ([]types.PredictionEntry, error) {
	blob = strings.TrimSpace(blob)
	if blob == "" {
		return nil, nil
	}

	raw := []byte(blob)
	if strings.HasPrefix(blob, zstdPrefix) {
		compressed, err := base64.StdEncoding.DecodeString(blob[len(zstdPrefix):])
		if err != nil {
			return nil, fmt.Errorf("decode base64 blob: %w", err)
		}
		d, ok := c.decoderPool.Get().(*zstd.Decoder)
		if !ok || d == nil {
			return nil, fmt.Errorf("zstd decoder unavailable")
		}
		raw, err = d.DecodeAll(compressed, nil)
		c.decoderPool.Put(d)
		if err != nil {
			return nil, fmt.Errorf("decompress blob: %w", err)
		}
	}

	var entries []types.PredictionEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("unmarshal prediction entries: %w", err)
	}
	return entries, nil
}
