package loader

import (
	"fmt"
	"runtime"

	"github.com/arloliu/wavemem/errs"
	"github.com/arloliu/wavemem/format"
	"github.com/arloliu/wavemem/internal/options"
	"github.com/arloliu/wavemem/mmap"
	"github.com/arloliu/wavemem/signal"
	"go.uber.org/zap"
)

// MaxWorkers is the largest accepted worker pool size.
const MaxWorkers = 1024

// Config holds the loader settings.
type Config struct {
	workers            int
	policy             format.FailurePolicy
	encoderOpts        []signal.EncoderOption
	logger             *zap.Logger
	progress           *Progress
	region             *mmap.Region
	flattenEmptyScopes bool
}

// Option represents a functional option for configuring the loader.
type Option = options.Option[*Config]

func defaultConfig() *Config {
	return &Config{
		workers: runtime.GOMAXPROCS(0),
		policy:  format.FailAbort,
	}
}

// WithWorkers sets the number of encode workers. Defaults to GOMAXPROCS.
func WithWorkers(n int) Option {
	return options.New(func(c *Config) error {
		if err := options.InRange("workers", n, 1, MaxWorkers); err != nil {
			return err
		}
		c.workers = n

		return nil
	})
}

// WithFailurePolicy selects how malformed signals are handled.
//
// FailAbort (the default) fails the whole load. FailIsolate replaces the
// signal with a degraded placeholder whose queries return the error.
func WithFailurePolicy(policy format.FailurePolicy) Option {
	return options.New(func(c *Config) error {
		switch policy {
		case format.FailAbort, format.FailIsolate:
			c.policy = policy
			return nil
		default:
			return fmt.Errorf("%w: invalid failure policy: %v", errs.ErrInvalidOption, policy)
		}
	})
}

// WithEncoderOptions passes options to every signal encoder.
func WithEncoderOptions(opts ...signal.EncoderOption) Option {
	return options.NoError(func(c *Config) {
		c.encoderOpts = append(c.encoderOpts, opts...)
	})
}

// WithCompression is shorthand for WithEncoderOptions(signal.WithCompression(comp)).
func WithCompression(comp format.CompressionType) Option {
	return WithEncoderOptions(signal.WithCompression(comp))
}

// WithLogger overrides the package logger for one loader.
func WithLogger(l *zap.Logger) Option {
	return options.NoError(func(c *Config) {
		c.logger = l
	})
}

// WithProgress reports load progress into p.
func WithProgress(p *Progress) Option {
	return options.NoError(func(c *Config) {
		c.progress = p
	})
}

// WithMappedRegion hands a mapped trace file to the load result, which then
// owns it and unmaps it when released. On a failed load the region stays with
// the caller.
func WithMappedRegion(r *mmap.Region) Option {
	return options.NoError(func(c *Config) {
		c.region = r
	})
}

// WithFlattenEmptyScopes hoists the members of unnamed scopes into their parent.
func WithFlattenEmptyScopes(enabled bool) Option {
	return options.NoError(func(c *Config) {
		c.flattenEmptyScopes = enabled
	})
}
