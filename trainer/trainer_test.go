package trainer

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/tokpipe/tokpipe/sample"
	"github.com/tokpipe/tokpipe/vocab"
)

func TestNewRejectsVMaxBelowForcedAlphabet(t *testing.T) {
	_, err := New(WithVMax(10))
	if !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("New() error = %v, want ErrConfigInvalid", err)
	}
}

func TestNewRejectsBadCountDecay(t *testing.T) {
	_, err := New(WithVMax(300), WithCountDecay(1.5))
	if !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("New() error = %v, want ErrConfigInvalid", err)
	}
}

// repeatingSource yields the same text forever (io.EOF after one pass),
// exercising the trainer's rewind path via sample.Rewinder.
type repeatingSource struct {
	text string
	done bool
}

func (s *repeatingSource) Next() (sample.Sample, error) {
	if s.done {
		return sample.Sample{}, io.EOF
	}
	s.done = true
	return sample.Sample{Text: s.text}, nil
}

func TestTrainMergesFrequentBigram(t *testing.T) {
	tr, err := New(
		WithVMax(vocab.ForcedTokenCount+1),
		WithThresholdCount(3),
		WithThresholdSamples(1),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	factory := func() (sample.Source, error) {
		return &repeatingSource{text: "abababababab"}, nil
	}

	v, err := tr.Train(factory)
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if v.Len() != vocab.ForcedTokenCount+1 {
		t.Fatalf("Len() = %d, want %d", v.Len(), vocab.ForcedTokenCount+1)
	}
	merged := v.Token(vocab.ForcedTokenCount)
	if string(merged.Bytes) != "ab" {
		t.Fatalf("merged token = %q, want %q", merged.Bytes, "ab")
	}
}

// TestWhitespaceBoundaryNeverMerged is spec.md §8 end-to-end scenario 5:
// with samples containing only "x x x x …", the trainer never merges "x"
// with " " because their whitespace classes differ; since that is the only
// adjacent pair in this input, no bigram should ever qualify for a merge.
func TestWhitespaceBoundaryNeverMerged(t *testing.T) {
	tr, err := New(
		WithVMax(vocab.ForcedTokenCount+50),
		WithThresholdCount(1),
		WithThresholdSamples(1),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	text := "x x x x x x x x x x"
	for i := 0; i < 20; i++ {
		if _, err := tr.ingest(text); err != nil {
			t.Fatalf("ingest() error = %v", err)
		}
	}

	if tr.vocabulary.Len() != vocab.ForcedTokenCount {
		t.Fatalf("vocabulary grew to %d tokens; a whitespace-crossing bigram must never be merged", tr.vocabulary.Len())
	}
	if tr.hasTop {
		t.Fatalf("hasTop = true; no bigram should ever qualify when \"x\" and \" \" are the only adjacent pair and their whitespace classes differ")
	}
}

// repeatableTextSource replays a fixed slice of sample texts once per
// factory invocation, for exercising sample.Rewinder-driven training.
type repeatableTextSource struct {
	texts []string
	pos   int
}

func (s *repeatableTextSource) Next() (sample.Sample, error) {
	if s.pos >= len(s.texts) {
		return sample.Sample{}, io.EOF
	}
	text := s.texts[s.pos]
	s.pos++
	return sample.Sample{Text: text}, nil
}

// TestTrainTerminatesWithRewind is spec.md §8 end-to-end scenario 6:
// training with V_max=300 on a corpus of 10 samples must terminate, with
// the sample factory invoked multiple times and no deadlock.
func TestTrainTerminatesWithRewind(t *testing.T) {
	tr, err := New(
		WithVMax(300),
		WithThresholdCount(2),
		WithThresholdSamples(1),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	pairs := []string{"ab", "cd", "ef", "gh", "ij", "kl", "mn", "op", "qr", "st"}
	texts := make([]string, len(pairs))
	for i, pair := range pairs {
		texts[i] = strings.Repeat(pair, 1000)
	}

	factoryCalls := 0
	factory := func() (sample.Source, error) {
		factoryCalls++
		return &repeatableTextSource{texts: texts}, nil
	}

	v, err := tr.Train(factory)
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if v.Len() != 300 {
		t.Fatalf("Len() = %d, want 300", v.Len())
	}
	if factoryCalls < 2 {
		t.Fatalf("factory invoked %d times, want at least 2 (proof the corpus was rewound)", factoryCalls)
	}
}

func TestSaturatingArithmetic(t *testing.T) {
	max := ^uint32(0)
	if got := saturatingAdd(max, 10); got != max {
		t.Fatalf("saturatingAdd(max, 10) = %d, want %d", got, max)
	}
	if got := saturatingSub(5, 10); got != 0 {
		t.Fatalf("saturatingSub(5, 10) = %d, want 0", got)
	}
	if got := saturatingSub(10, 5); got != 5 {
		t.Fatalf("saturatingSub(10, 5) = %d, want 5", got)
	}
}
