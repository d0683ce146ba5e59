// Package batch implements Batcher: a bucketed, randomized, stateful
// batcher that turns a stream of variable-length tokenized samples into
// fixed-shape [B x L] integer matrices.
package batch

import (
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/tokpipe/tokpipe/matcher"
)

// Sentinel marks an unfilled cell in a Batch's tokens matrix.
const Sentinel int32 = -1

// Stats holds the monotone counters tracked by a Batcher.
type Stats struct {
	SampleCount int
	TokenCount  int
	BatchCount  int
}

// Batch is an immutable B x L matrix of token indices, plus the originating
// sample id and in-sample start index for each row.
type Batch struct {
	Tokens       [][]int32 // len(Tokens) == B, len(Tokens[i]) == L
	Samples      []int
	StartIndices []int
}

type bucket struct {
	sampleID   int
	startIndex int
	tokens     []int32
}

// Batcher owns a bucket pool, a free list of recycled token buffers, its
// matcher and its RNG. It is not safe for concurrent use: spec.md §5
// assigns it exclusively to one producer thread.
type Batcher struct {
	cfg     Config
	matcher *matcher.Matcher
	rng     *rand.Rand

	stats       Stats
	buckets     []*bucket
	freeBuffers [][]int32
}

// New builds a Batcher over the given frozen token list.
func New(tokens [][]byte, opts ...Option) (*Batcher, error) {
	cfg := Config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	m, err := matcher.New(tokens)
	if err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Batcher{
		cfg:     cfg,
		matcher: m,
		rng:     rand.New(rand.NewSource(seed)),
	}, nil
}

// Stats returns the current counters.
func (b *Batcher) Stats() Stats { return b.stats }

// PushSample tokenizes text and installs it as a new bucket. It returns
// true if a non-empty bucket was produced, false if tokenization yielded no
// tokens (an empty sample, or one consisting solely of byte value 255).
func (b *Batcher) PushSample(text string) bool {
	if text == "" {
		return false
	}

	buf := b.takeBuffer()
	buf = b.matcher.AppendTokenize(buf, []byte(text))
	if len(buf) == 0 {
		b.freeBuffers = append(b.freeBuffers, buf[:0])
		return false
	}

	parsedCount := len(buf)

	offset := 0
	if len(buf) > b.cfg.SeqLen {
		offset = b.rng.Intn(b.cfg.SeqLen)
		buf = buf[offset:]
	}

	buk := &bucket{
		sampleID:   b.stats.SampleCount,
		startIndex: offset,
		tokens:     buf,
	}
	b.buckets = append(b.buckets, buk)

	b.stats.SampleCount++
	b.stats.TokenCount += parsedCount

	b.cfg.Logger.Debug("installed bucket",
		zap.Int("sample_id", buk.sampleID),
		zap.Int("tokens", len(buf)),
		zap.Int("offset", offset),
	)
	return true
}

// PopBatch returns a ready Batch, or ok=false if fewer than BucketPoolSize
// buckets are currently held.
func (b *Batcher) PopBatch() (Batch, bool) {
	if len(b.buckets) < b.cfg.BucketPoolSize {
		return Batch{}, false
	}

	tokens := make([][]int32, b.cfg.BatchSize)
	samples := make([]int, b.cfg.BatchSize)
	startIndices := make([]int, b.cfg.BatchSize)

	for i := 0; i < b.cfg.BatchSize; i++ {
		row := make([]int32, b.cfg.SeqLen)
		for j := range row {
			row[j] = Sentinel
		}

		k := b.rng.Intn(len(b.buckets))
		buk := b.buckets[k]

		samples[i] = buk.sampleID
		startIndices[i] = buk.startIndex

		w := b.cfg.SeqLen
		if len(buk.tokens) < w {
			w = len(buk.tokens)
		}
		copy(row[:w], buk.tokens[:w])
		buk.tokens = buk.tokens[w:]
		buk.startIndex += w

		tokens[i] = row

		if len(buk.tokens) < b.cfg.SeqLen {
			b.evictBucket(k)
		}
	}

	b.stats.BatchCount++
	return Batch{Tokens: tokens, Samples: samples, StartIndices: startIndices}, true
}

// evictBucket swap-removes the bucket at index k and returns its buffer to
// the free list.
func (b *Batcher) evictBucket(k int) {
	buk := b.buckets[k]
	buk.tokens = buk.tokens[:0]
	b.freeBuffers = append(b.freeBuffers, buk.tokens)

	last := len(b.buckets) - 1
	b.buckets[k] = b.buckets[last]
	b.buckets = b.buckets[:last]
}

func (b *Batcher) takeBuffer() []int32 {
	if n := len(b.freeBuffers); n > 0 {
		buf := b.freeBuffers[n-1]
		b.freeBuffers = b.freeBuffers[:n-1]
		return buf[:0]
	}
	return nil
}
