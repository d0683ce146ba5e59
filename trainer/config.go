package trainer

import (
	"errors"
	"io"
	"math"

	"go.uber.org/zap"

	"github.com/tokpipe/tokpipe/vocab"
)

// ErrConfigInvalid is returned by New when a parameter is outside its
// documented range.
var ErrConfigInvalid = errors.New("trainer: invalid configuration")

// Config holds the parameters of one training run.
type Config struct {
	VMax                int
	DropsMax            int
	ThresholdCount      uint32
	ThresholdSamples    uint32
	ThresholdDropFactor float64
	CountDecay          float64

	Logger *zap.Logger
	Debug  io.Writer
}

// Option is a functional option for configuring a Trainer.
type Option func(*Config)

// WithVMax sets the maximum vocabulary size.
func WithVMax(v int) Option { return func(c *Config) { c.VMax = v } }

// WithDropsMax sets the maximum number of token evictions over the run.
func WithDropsMax(n int) Option { return func(c *Config) { c.DropsMax = n } }

// WithThresholdCount sets the minimum bigram count that triggers a merge.
func WithThresholdCount(n uint32) Option { return func(c *Config) { c.ThresholdCount = n } }

// WithThresholdSamples sets the minimum number of samples between merges.
func WithThresholdSamples(n uint32) Option { return func(c *Config) { c.ThresholdSamples = n } }

// WithThresholdDropFactor sets the margin a token must lose by before being
// evicted while the vocabulary is full.
func WithThresholdDropFactor(f float64) Option {
	return func(c *Config) { c.ThresholdDropFactor = f }
}

// WithCountDecay sets the per-epoch decay factor applied to bigram/unigram
// counts, in [0, 1).
func WithCountDecay(f float64) Option { return func(c *Config) { c.CountDecay = f } }

// WithLogger injects a structured logger. Defaults to zap.NewNop().
func WithLogger(l *zap.Logger) Option { return func(c *Config) { c.Logger = l } }

// WithDebugSink enables the human-readable debug dump described in
// spec.md §6, written to w when training completes.
func WithDebugSink(w io.Writer) Option { return func(c *Config) { c.Debug = w } }

func defaultConfig() Config {
	return Config{
		VMax:                1024,
		DropsMax:            1024,
		ThresholdCount:      10000,
		ThresholdSamples:    100,
		ThresholdDropFactor: 2.0,
		CountDecay:          0.99,
	}
}

func (c *Config) validate() error {
	if c.CountDecay < 0 || c.CountDecay >= 1 {
		return errors.Join(ErrConfigInvalid, errors.New("count decay must be in [0, 1)"))
	}
	if uint64(c.ThresholdCount) >= math.MaxUint32 {
		return errors.Join(ErrConfigInvalid, errors.New("threshold count too close to counter max"))
	}
	if c.VMax <= vocab.ForcedTokenCount {
		return errors.Join(ErrConfigInvalid, errors.New("max vocabulary size must exceed the forced alphabet"))
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return nil
}
