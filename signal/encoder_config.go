package signal

import (
	"fmt"

	"github.com/arloliu/wavemem/compress"
	"github.com/arloliu/wavemem/errs"
	"github.com/arloliu/wavemem/format"
	"github.com/arloliu/wavemem/internal/options"
)

// Block limits.
const (
	// DefaultMaxBlockEntries is the default number of changes per block.
	DefaultMaxBlockEntries = 4096

	// DefaultMaxBlockBytes is the default raw size of a block.
	DefaultMaxBlockBytes = 64 * 1024

	// MaxBlockEntriesLimit is the largest accepted MaxBlockEntries.
	MaxBlockEntriesLimit = 1 << 20

	// MinBlockBytes and MaxBlockBytesLimit bound MaxBlockBytes.
	MinBlockBytes      = 64
	MaxBlockBytesLimit = 64 * 1024 * 1024

	// DefaultCompression favours encode speed.
	DefaultCompression = format.CompressionS2
)

// EncoderConfig holds the settings shared by every signal encoder of a load.
//
// A config is immutable once built and may be shared by encoders running on
// different goroutines.
type EncoderConfig struct {
	compression     format.CompressionType
	codec           compress.Codec
	maxBlockEntries int
	maxBlockBytes   int
	abort           func() bool
}

// EncoderOption represents a functional option for configuring the EncoderConfig.
type EncoderOption = options.Option[*EncoderConfig]

// NewEncoderConfig creates a config with the defaults applied before opts.
//
// Returns ErrInvalidOption when an option is out of range.
func NewEncoderConfig(opts ...EncoderOption) (*EncoderConfig, error) {
	c := &EncoderConfig{
		compression:     DefaultCompression,
		maxBlockEntries: DefaultMaxBlockEntries,
		maxBlockBytes:   DefaultMaxBlockBytes,
	}

	if err := options.Apply(c, opts...); err != nil {
		return nil, err
	}

	codec, err := compress.GetCodec(c.compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidOption, err)
	}
	c.codec = codec

	return c, nil
}

// Compression returns the block compression algorithm.
func (c *EncoderConfig) Compression() format.CompressionType {
	return c.compression
}

// MaxBlockEntries returns the change limit per block.
func (c *EncoderConfig) MaxBlockEntries() int {
	return c.maxBlockEntries
}

// MaxBlockBytes returns the raw size limit per block.
func (c *EncoderConfig) MaxBlockBytes() int {
	return c.maxBlockBytes
}

func (c *EncoderConfig) aborted() bool {
	return c.abort != nil && c.abort()
}

// WithCompression sets the block compression algorithm.
func WithCompression(comp format.CompressionType) EncoderOption {
	return options.New(func(c *EncoderConfig) error {
		switch comp {
		case format.CompressionNone, format.CompressionZstd, format.CompressionS2, format.CompressionLZ4:
			c.compression = comp
			return nil
		default:
			return fmt.Errorf("%w: invalid block compression: %v", errs.ErrInvalidOption, comp)
		}
	})
}

// WithMaxBlockEntries sets the maximum number of changes per block.
func WithMaxBlockEntries(n int) EncoderOption {
	return options.New(func(c *EncoderConfig) error {
		if err := options.InRange("max block entries", n, 1, MaxBlockEntriesLimit); err != nil {
			return err
		}
		c.maxBlockEntries = n

		return nil
	})
}

// WithMaxBlockBytes sets the maximum raw size of a block.
// A single change larger than the limit still gets a block of its own.
func WithMaxBlockBytes(n int) EncoderOption {
	return options.New(func(c *EncoderConfig) error {
		if err := options.InRange("max block bytes", n, MinBlockBytes, MaxBlockBytesLimit); err != nil {
			return err
		}
		c.maxBlockBytes = n

		return nil
	})
}

// WithAbortCheck installs a cooperative cancellation check, polled between blocks.
// When it returns true the encoder fails with ErrIngestionAborted.
// Several checks may be installed; all of them are polled in order.
func WithAbortCheck(fn func() bool) EncoderOption {
	return options.NoError(func(c *EncoderConfig) {
		if fn == nil {
			return
		}
		prev := c.abort
		if prev == nil {
			c.abort = fn
			return
		}
		c.abort = func() bool {
			stop := prev()
			return fn() || stop
		}
	})
}
