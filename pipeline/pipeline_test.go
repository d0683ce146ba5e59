package pipeline

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/tokpipe/tokpipe/vocab"
)

func writeZstFixture(t *testing.T, lines []string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.zst")

	var raw bytes.Buffer
	for _, l := range lines {
		raw.WriteString(l)
		raw.WriteByte('\n')
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating fixture: %v", err)
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		t.Fatalf("creating zstd writer: %v", err)
	}
	if _, err := zw.Write(raw.Bytes()); err != nil {
		t.Fatalf("writing compressed fixture: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zstd writer: %v", err)
	}
	return path
}

func TestNewRejectsMissingPath(t *testing.T) {
	tokens := vocab.NewForced().Bytes()
	_, err := New(tokens, []string{"/nonexistent/path.zst"}, WithBatchSize(1), WithSeqLen(4), WithBucketPoolSize(1))
	if err == nil {
		t.Fatalf("New() error = nil, want failure for a missing input path")
	}
}

func TestPipelineDeliversBatchesAndRewinds(t *testing.T) {
	path := writeZstFixture(t, []string{
		`{"text": "hello world", "meta": {}}`,
		`{"text": "goodbye world", "meta": {}}`,
	})
	tokens := vocab.NewForced().Bytes()

	p, err := New(tokens, []string{path},
		WithBatchSize(1),
		WithSeqLen(4),
		WithBucketPoolSize(1),
		WithSeed(1),
		WithQueueCapacity(8),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close()

	// Non-empty input is never exhausted (the producer rewinds forever), so
	// a well-behaved consumer only ever sees a stream of batches.
	sawBatch := false
	for i := 0; i < 20; i++ {
		r := p.Next()
		if r.Err != nil {
			t.Fatalf("Next() returned error = %v", r.Err)
		}
		if r.Done {
			t.Fatalf("pipeline signaled Done on a non-empty, rewinding input")
		}
		if len(r.Batch.Tokens) > 0 {
			sawBatch = true
		}
	}
	if !sawBatch {
		t.Fatalf("never received a non-empty batch")
	}
}

func TestPipelineStopsWhenAllInputsAreEmpty(t *testing.T) {
	path := writeZstFixture(t, nil)
	tokens := vocab.NewForced().Bytes()

	p, err := New(tokens, []string{path}, WithBatchSize(1), WithSeqLen(4), WithBucketPoolSize(1))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close()

	r := p.Next()
	if !r.Done {
		t.Fatalf("Next() = %+v, want Done after the only input produced zero samples", r)
	}
}

func TestPipelineAbortsEntirelyOnMalformedLine(t *testing.T) {
	// Path A has a malformed line followed by an otherwise-valid one; path B
	// is entirely well-formed. The malformed line must abort the whole
	// producer: path A's trailing valid line and path B must never surface
	// as if the corpus were healthy.
	pathA := writeZstFixture(t, []string{
		`not valid json`,
		`{"text": "valid after bad", "meta": {}}`,
	})
	pathB := writeZstFixture(t, []string{
		`{"text": "from b", "meta": {}}`,
	})
	tokens := vocab.NewForced().Bytes()

	p, err := New(tokens, []string{pathA, pathB},
		WithBatchSize(1),
		WithSeqLen(4),
		WithBucketPoolSize(1),
		WithQueueCapacity(8),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close()

	var sawErr, sawBatchAfterErr bool
	for i := 0; i < 10; i++ {
		r := p.Next()
		if r.Done {
			break
		}
		if r.Err != nil {
			sawErr = true
			continue
		}
		if sawErr && len(r.Batch.Tokens) > 0 {
			sawBatchAfterErr = true
		}
	}
	if !sawErr {
		t.Fatalf("never received the malformed-line error")
	}
	if sawBatchAfterErr {
		t.Fatalf("producer kept streaming (path A's remainder or path B) after a fatal corpus error")
	}
}

func TestPipelineCloseStopsProducer(t *testing.T) {
	path := writeZstFixture(t, []string{`{"text": "hello world", "meta": {}}`})
	tokens := vocab.NewForced().Bytes()

	p, err := New(tokens, []string{path}, WithBatchSize(1), WithSeqLen(4), WithBucketPoolSize(1))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	p.Close()
	// Draining after Close must terminate rather than hang.
	for i := 0; i < 1000; i++ {
		r := p.Next()
		if r.Done {
			return
		}
	}
}
