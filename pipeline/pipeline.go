// Package pipeline wraps a Batcher for cross-thread delivery: a dedicated
// producer goroutine feeds samples from a list of corpus paths into a
// Batcher and forwards ready batches through a bounded channel to a
// foreign-language (or in-process Go) consumer.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/tokpipe/tokpipe/batch"
	"github.com/tokpipe/tokpipe/corpus"
)

// Result is one value delivered to the consumer: either a ready Batch, a
// propagated error, or, once Done is true, the signal that the queue has
// been closed and fully drained.
type Result struct {
	Batch batch.Batch
	Err   error
	Done  bool
}

// Config configures a Pipeline.
type Config struct {
	BatchSize      int
	SeqLen         int
	BucketPoolSize int
	QueueCapacity  int
	RemoveRTL      bool
	Normalize      bool
	Seed           int64
	Logger         *zap.Logger
}

// Option is a functional option for New.
type Option func(*Config)

func WithBatchSize(b int) Option      { return func(c *Config) { c.BatchSize = b } }
func WithSeqLen(l int) Option         { return func(c *Config) { c.SeqLen = l } }
func WithBucketPoolSize(m int) Option { return func(c *Config) { c.BucketPoolSize = m } }
func WithQueueCapacity(n int) Option  { return func(c *Config) { c.QueueCapacity = n } }
func WithRemoveRTL(b bool) Option     { return func(c *Config) { c.RemoveRTL = b } }
func WithNormalize(b bool) Option     { return func(c *Config) { c.Normalize = b } }
func WithSeed(seed int64) Option      { return func(c *Config) { c.Seed = seed } }
func WithLogger(l *zap.Logger) Option { return func(c *Config) { c.Logger = l } }

func defaultConfig() Config {
	return Config{QueueCapacity: 4}
}

// Pipeline owns a Batcher, a bounded queue of Results, and the producer
// goroutine feeding it. It implements the single-producer/single-consumer
// model of spec.md §5: no lock is needed beyond the channel's own.
type Pipeline struct {
	queue  chan Result
	cancel chan struct{}
	once   sync.Once
}

// New validates that every path in paths exists, then spawns the producer
// goroutine. Construction fails immediately if any path is missing.
func New(tokens [][]byte, paths []string, opts ...Option) (*Pipeline, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if len(paths) == 0 {
		return nil, errors.New("pipeline: at least one input path is required")
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("pipeline: input path %s: %w", p, err)
		}
	}

	b, err := batch.New(tokens,
		batch.WithBatchSize(cfg.BatchSize),
		batch.WithSeqLen(cfg.SeqLen),
		batch.WithBucketPoolSize(cfg.BucketPoolSize),
		batch.WithSeed(cfg.Seed),
		batch.WithLogger(cfg.Logger),
	)
	if err != nil {
		return nil, fmt.Errorf("pipeline: building batcher: %w", err)
	}

	p := &Pipeline{
		queue:  make(chan Result, cfg.QueueCapacity),
		cancel: make(chan struct{}),
	}
	go p.produce(b, paths, cfg)
	return p, nil
}

// Next blocks until a Batch is ready, an error is reported, or the pipeline
// is done (every path produced zero samples on the last pass).
func (p *Pipeline) Next() Result {
	r, ok := <-p.queue
	if !ok {
		return Result{Done: true}
	}
	return r
}

// Close signals the producer to stop on its next send attempt. The
// producer observes this cooperatively; there is no forced cancellation.
func (p *Pipeline) Close() {
	p.once.Do(func() { close(p.cancel) })
}

func (p *Pipeline) send(r Result) bool {
	select {
	case p.queue <- r:
		return true
	case <-p.cancel:
		return false
	}
}

// pathOutcome distinguishes why drainPath returned, since "the path ran out
// of lines" and "the path was aborted after a corrupt line" must never be
// treated the same way by produce.
type pathOutcome int

const (
	pathExhausted pathOutcome = iota // clean io.EOF; proceed to the next path
	pathCancelled                    // consumer is gone; producer should stop
	pathFatal                        // non-EOF read/parse error; producer must abort entirely
)

func (p *Pipeline) produce(b *batch.Batcher, paths []string, cfg Config) {
	defer close(p.queue)

	corpusOpts := []corpus.Option{
		corpus.WithRemoveRTL(cfg.RemoveRTL),
		corpus.WithNormalize(cfg.Normalize),
	}

	for {
		allEmpty := true

		for _, path := range paths {
			src, err := corpus.Open(path, corpusOpts...)
			if err != nil {
				cfg.Logger.Error("opening corpus path", zap.String("path", path), zap.Error(err))
				p.send(Result{Err: err})
				return
			}
			cfg.Logger.Info("opened corpus path", zap.String("path", path))

			outcome := p.drainPath(b, src, path, cfg, &allEmpty)
			src.Close()

			switch outcome {
			case pathCancelled:
				return
			case pathFatal:
				// A malformed line already aborts training per spec; do not
				// fall through to the next path or rewind as if nothing
				// happened, and do not stream this path's remaining lines.
				cfg.Logger.Error("aborting producer after corpus error", zap.String("path", path))
				return
			case pathExhausted:
				cfg.Logger.Info("corpus path exhausted, closed", zap.String("path", path))
			}
		}

		if allEmpty {
			cfg.Logger.Info("all inputs exhausted with zero samples, stopping")
			return
		}
		cfg.Logger.Info("rewinding over input paths", zap.Int("path_count", len(paths)))
	}
}

// drainPath streams every sample from src into the batcher, flushing ready
// batches as they become available.
func (p *Pipeline) drainPath(b *batch.Batcher, src *corpus.Source, path string, cfg Config, allEmpty *bool) pathOutcome {
	for {
		s, err := src.Next()
		if err == io.EOF {
			return pathExhausted
		}
		if err != nil {
			cfg.Logger.Error("reading corpus path", zap.String("path", path), zap.Error(err))
			p.send(Result{Err: err})
			return pathFatal
		}

		if b.PushSample(s.Text) {
			*allEmpty = false
		}

		for {
			batchValue, ok := b.PopBatch()
			if !ok {
				break
			}
			if !p.send(Result{Batch: batchValue}) {
				return pathCancelled
			}
		}
	}
}
