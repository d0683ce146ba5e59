// Package trainer implements VocabularyTrainer: an online, streaming
// byte-pair-like procedure that grows a vocabulary from a single-byte
// alphabet by repeatedly merging the most frequent adjacent-token bigram,
// with aging, whitespace-boundary constraints, and optional eviction of
// dead tokens.
package trainer

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/tokpipe/tokpipe/matcher"
	"github.com/tokpipe/tokpipe/sample"
	"github.com/tokpipe/tokpipe/vocab"
)

// DroppedToken records a token evicted during training, along with the
// unigram count it carried at the moment of eviction.
type DroppedToken struct {
	Bytes []byte
	Count uint32
}

// Trainer owns the vocabulary and all counting state for a single training
// run. It is not safe for concurrent use; training is strictly
// single-threaded per spec.md §5.
type Trainer struct {
	cfg Config

	vocabulary *vocab.Vocabulary
	matcher    *matcher.Matcher

	bigram   []uint32 // VMax*VMax flat, row-major
	unigram  []uint32
	hasMerged []bool

	tokensSinceAdd  int
	samplesSinceAdd uint32
	dropsApplied    int
	topCount        uint32
	topA, topB      int32
	hasTop          bool

	dropped          []DroppedToken
	templateClusters *templateMiner
}

// New builds a Trainer. It fails if cfg is outside its documented ranges.
func New(opts ...Option) (*Trainer, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	v := vocab.NewForced()
	m, err := matcher.New(v.Bytes())
	if err != nil {
		return nil, fmt.Errorf("trainer: building initial matcher: %w", err)
	}

	t := &Trainer{
		cfg:        cfg,
		vocabulary: v,
		matcher:    m,
		bigram:     make([]uint32, cfg.VMax*cfg.VMax),
		unigram:    make([]uint32, vocab.ForcedTokenCount, cfg.VMax),
		hasMerged:  make([]bool, vocab.ForcedTokenCount, cfg.VMax),
	}
	if cfg.Debug != nil {
		t.templateClusters = newTemplateMiner()
	}
	return t, nil
}

func (t *Trainer) bigramAt(a, b int32) uint32 { return t.bigram[int(a)*t.cfg.VMax+int(b)] }

func (t *Trainer) setBigram(a, b int32, v uint32) { t.bigram[int(a)*t.cfg.VMax+int(b)] = v }

func saturatingAdd(c uint32, n uint32) uint32 {
	if uint64(c)+uint64(n) > uint64(^uint32(0)) {
		return ^uint32(0)
	}
	return c + n
}

func saturatingSub(c, n uint32) uint32 {
	if n > c {
		return 0
	}
	return c - n
}

// Train consumes the sample stream produced (and, on exhaustion, re-produced)
// by factory until the vocabulary reaches VMax tokens with no drop in the
// terminating epoch, and returns the final vocabulary.
func (t *Trainer) Train(factory sample.Factory) (*vocab.Vocabulary, error) {
	src := sample.NewRewinder(factory)

	for {
		s, err := src.Next()
		if err != nil {
			return nil, fmt.Errorf("trainer: reading sample: %w", err)
		}

		droppedThisEpoch, err := t.ingest(s.Text)
		if err != nil {
			return nil, err
		}

		if t.vocabulary.Len() >= t.cfg.VMax && !droppedThisEpoch {
			t.cfg.Logger.Info("training complete",
				zap.Int("vocab_size", t.vocabulary.Len()),
				zap.Int("drops_applied", t.dropsApplied),
			)
			if t.cfg.Debug != nil {
				if err := t.writeDebug(t.cfg.Debug); err != nil {
					return nil, fmt.Errorf("trainer: writing debug sink: %w", err)
				}
			}
			return t.vocabulary, nil
		}
	}
}

// ingest tokenizes one sample, updates bigram/unigram counts and the
// running argmax, and performs a merge epoch if the thresholds are met. It
// reports whether a token was dropped as part of that epoch.
func (t *Trainer) ingest(text string) (droppedThisEpoch bool, err error) {
	t.samplesSinceAdd++
	t.templateClusters.add(text)

	var prev int32
	hasPrev := false

	for _, cur := range t.matcher.Tokenize([]byte(text)) {
		t.tokensSinceAdd++
		t.unigram[cur] = saturatingAdd(t.unigram[cur], 1)

		if hasPrev && t.vocabulary.Token(int(prev)).IsWhitespace == t.vocabulary.Token(int(cur)).IsWhitespace {
			count := saturatingAdd(t.bigramAt(prev, cur), 1)
			t.setBigram(prev, cur, count)
			if count > t.topCount {
				t.topCount = count
				t.topA, t.topB = prev, cur
				t.hasTop = true
			}
		}
		prev, hasPrev = cur, true
	}

	if t.hasTop && t.topCount >= t.cfg.ThresholdCount && t.samplesSinceAdd >= t.cfg.ThresholdSamples {
		droppedThisEpoch = t.mergeEpoch()
	}
	return droppedThisEpoch, nil
}

// mergeEpoch performs one atomic merge-epoch: add one new token, optionally
// drop one stale token, rebuild the matcher, and decay counts.
func (t *Trainer) mergeEpoch() (dropped bool) {
	a, b := t.topA, t.topB
	topCount := t.topCount

	newIdx := t.vocabulary.Append(a, b)
	t.hasMerged[a] = true
	t.hasMerged[b] = true
	t.hasMerged = append(t.hasMerged, false)
	t.setBigram(a, b, 0)

	t.unigram = append(t.unigram, topCount)
	t.unigram[a] = saturatingSub(t.unigram[a], topCount)
	t.unigram[b] = saturatingSub(t.unigram[b], topCount)

	t.cfg.Logger.Info("merged token",
		zap.Int("index", newIdx),
		zap.ByteString("bytes", t.vocabulary.Token(newIdx).Bytes),
		zap.Uint32("count", topCount),
	)

	dropped = t.maybeEvict(newIdx, topCount)

	t.topCount = 0
	t.hasTop = false
	t.tokensSinceAdd = 0
	t.samplesSinceAdd = 0

	m, err := matcher.New(t.vocabulary.Bytes())
	if err == nil {
		t.matcher = m
	}

	t.decay()

	return dropped
}

// maybeEvict runs the eviction check from spec.md §4.2 step (b) and, if
// warranted, swap-removes the least-used merged token.
func (t *Trainer) maybeEvict(justAdded int, topCount uint32) bool {
	leastIdx := -1
	var leastCount uint32

	for i := vocab.ForcedTokenCount; i < t.vocabulary.Len()-1; i++ {
		if i == justAdded || !t.hasMerged[i] {
			continue
		}
		if leastIdx == -1 || t.unigram[i] < leastCount {
			leastIdx = i
			leastCount = t.unigram[i]
		}
	}
	if leastIdx == -1 {
		return false
	}

	shouldDrop := leastCount == 0 ||
		(t.vocabulary.Len() == t.cfg.VMax &&
			t.dropsApplied < t.cfg.DropsMax &&
			float64(leastCount)*t.cfg.ThresholdDropFactor < float64(topCount))
	if !shouldDrop {
		return false
	}

	removed := t.vocabulary.SwapRemove(leastIdx)
	last := len(t.unigram) - 1
	t.unigram[leastIdx] = t.unigram[last]
	t.unigram = t.unigram[:last]
	t.hasMerged[leastIdx] = t.hasMerged[last]
	t.hasMerged = t.hasMerged[:last]
	t.swapBigramRowCol(leastIdx, last)

	t.dropped = append(t.dropped, DroppedToken{Bytes: removed.Bytes, Count: leastCount})
	t.dropsApplied++

	t.cfg.Logger.Info("dropped token",
		zap.ByteString("bytes", removed.Bytes),
		zap.Uint32("count", leastCount),
		zap.Int("drops_applied", t.dropsApplied),
	)
	return true
}

// swapBigramRowCol swaps row a<->row b and column a<->column b in the live
// VMax x VMax matrix.
func (t *Trainer) swapBigramRowCol(a, b int) {
	for col := 0; col < t.cfg.VMax; col++ {
		ai, bi := a*t.cfg.VMax+col, b*t.cfg.VMax+col
		t.bigram[ai], t.bigram[bi] = t.bigram[bi], t.bigram[ai]
	}
	for row := 0; row < t.cfg.VMax; row++ {
		ai, bi := row*t.cfg.VMax+a, row*t.cfg.VMax+b
		t.bigram[ai], t.bigram[bi] = t.bigram[bi], t.bigram[ai]
	}
}

// decay clips then scales every live bigram cell, and scales (without
// clipping) every unigram count, per spec.md §4.2 step (d).
func (t *Trainer) decay() {
	decayNum := uint64(t.cfg.CountDecay*1000 + 0.5)
	const decayDenom = uint64(1000)

	n := t.vocabulary.Len()
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			c := t.bigram[row*t.cfg.VMax+col]
			if uint64(c) > uint64(t.cfg.ThresholdCount) {
				c = t.cfg.ThresholdCount
			}
			t.bigram[row*t.cfg.VMax+col] = uint32(uint64(c) * decayNum / decayDenom)
		}
	}
	for i := range t.unigram {
		t.unigram[i] = uint32(uint64(t.unigram[i]) * decayNum / decayDenom)
	}
}
