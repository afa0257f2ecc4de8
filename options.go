package wavemem

import (
	"github.com/arloliu/wavemem/internal/options"
	"github.com/arloliu/wavemem/loader"
)

// DefaultCacheSize is the default number of decoded blocks kept in memory.
const DefaultCacheSize = 1024

// MaxCacheSize is the largest accepted cache size.
const MaxCacheSize = 1 << 24

// Config holds the waveform settings.
type Config struct {
	loaderOpts []loader.Option
	cacheSize  int
}

// Option represents a functional option for configuring a Waveform.
type Option = options.Option[*Config]

func newConfig(opts ...Option) (*Config, error) {
	c := &Config{cacheSize: DefaultCacheSize}
	if err := options.Apply(c, opts...); err != nil {
		return nil, err
	}

	return c, nil
}

// WithCacheSize sets the number of decoded blocks kept by the query cache.
// Zero disables caching; queries then decode blocks on every access.
func WithCacheSize(blocks int) Option {
	return options.New(func(c *Config) error {
		if err := options.InRange("cache size", blocks, 0, MaxCacheSize); err != nil {
			return err
		}
		c.cacheSize = blocks

		return nil
	})
}

// WithLoaderOptions passes options to the loader used by Load.
func WithLoaderOptions(opts ...loader.Option) Option {
	return options.NoError(func(c *Config) {
		c.loaderOpts = append(c.loaderOpts, opts...)
	})
}
