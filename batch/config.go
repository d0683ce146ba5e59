package batch

import (
	"errors"

	"go.uber.org/zap"
)

// ErrConfigInvalid is returned by New when a parameter is outside its
// documented range.
var ErrConfigInvalid = errors.New("batch: invalid configuration")

// Config holds the parameters of a Batcher.
type Config struct {
	BatchSize      int
	SeqLen         int
	BucketPoolSize int

	// Seed, if non-zero, makes the batcher's random bucket/offset choices
	// reproducible. Zero means an entropy-derived seed (spec.md §5).
	Seed int64

	Logger *zap.Logger
}

// Option is a functional option for configuring a Batcher.
type Option func(*Config)

// WithBatchSize sets B, the number of rows per batch.
func WithBatchSize(b int) Option { return func(c *Config) { c.BatchSize = b } }

// WithSeqLen sets L, the width of a batch row in tokens.
func WithSeqLen(l int) Option { return func(c *Config) { c.SeqLen = l } }

// WithBucketPoolSize sets M, the minimum number of buckets held before a
// batch is produced. Must be >= B; the typical choice is 2*B.
func WithBucketPoolSize(m int) Option { return func(c *Config) { c.BucketPoolSize = m } }

// WithSeed makes the batcher's RNG deterministic.
func WithSeed(seed int64) Option { return func(c *Config) { c.Seed = seed } }

// WithLogger injects a structured logger. Defaults to zap.NewNop().
func WithLogger(l *zap.Logger) Option { return func(c *Config) { c.Logger = l } }

func (c *Config) validate() error {
	if c.BatchSize <= 0 {
		return errors.Join(ErrConfigInvalid, errors.New("batch size must be positive"))
	}
	if c.SeqLen <= 0 {
		return errors.Join(ErrConfigInvalid, errors.New("seq len must be positive"))
	}
	if c.BucketPoolSize < c.BatchSize {
		return errors.Join(ErrConfigInvalid, errors.New("bucket pool size must be >= batch size"))
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return nil
}
