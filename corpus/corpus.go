// Package corpus is the SampleSource collaborator: it decodes zstd-
// compressed JSON-lines corpus files into sample.Sample values, optionally
// filtering non-LTR text and NFC-normalizing the rest. Compressed-file
// decoding, JSON parsing, and Unicode normalization/bidi detection are all
// treated as external collaborators per spec.md §1 — this package is the
// thin adapter that wires them together.
package corpus

import (
	"bufio"
	"fmt"
	"io"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/valyala/fastjson"
	"golang.org/x/text/unicode/norm"

	"github.com/tokpipe/tokpipe/sample"
)

// dedupWindow bounds how many recent raw lines are remembered to skip
// byte-identical repeats within a rewind window (ambient corpus hygiene;
// see DESIGN.md).
const dedupWindow = 4096

const maxLineBytes = 64 * 1024 * 1024

// Options configures how a Source reads a corpus file.
type Options struct {
	RemoveRTL bool
	Normalize bool
}

// Option is a functional option for Open.
type Option func(*Options)

// WithRemoveRTL enables skipping samples whose text fails the LTR
// predicate.
func WithRemoveRTL(remove bool) Option { return func(o *Options) { o.RemoveRTL = remove } }

// WithNormalize enables NFC normalization of sample text.
func WithNormalize(normalize bool) Option { return func(o *Options) { o.Normalize = normalize } }

var _ sample.Source = (*Source)(nil)

// Source reads Samples from one zstd-compressed JSON-lines file.
type Source struct {
	file   *os.File
	zr     *zstd.Decoder
	reader *bufio.Reader
	parser fastjson.Parser
	opts   Options
	seen   *lru.Cache[string, struct{}]
}

// Open opens path and prepares it for streaming. The returned Source must
// be closed by the caller once exhausted.
func Open(path string, opts ...Option) (*Source, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("corpus: opening %s: %w", path, err)
	}
	zr, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("corpus: initializing zstd decoder for %s: %w", path, err)
	}

	seen, _ := lru.New[string, struct{}](dedupWindow)

	return &Source{
		file:   f,
		zr:     zr,
		reader: bufio.NewReaderSize(zr.IOReadCloser(), 1<<20),
		opts:   o,
		seen:   seen,
	}, nil
}

// Close releases the underlying file and decoder.
func (s *Source) Close() error {
	s.zr.Close()
	return s.file.Close()
}

// Next returns the next sample that survives the RTL filter, or io.EOF once
// the file is exhausted.
func (s *Source) Next() (sample.Sample, error) {
	for {
		line, err := s.readLine()
		if err != nil {
			return sample.Sample{}, err
		}
		if len(line) == 0 {
			continue
		}

		if _, dup := s.seen.Get(string(line)); dup {
			continue
		}
		s.seen.Add(string(line), struct{}{})

		v, err := s.parser.ParseBytes(line)
		if err != nil {
			return sample.Sample{}, fmt.Errorf("corpus: parsing JSON line: %w", err)
		}
		text := string(v.GetStringBytes("text"))
		var pileSet string
		if meta := v.Get("meta"); meta != nil {
			pileSet = string(meta.GetStringBytes("pile_set_name"))
		}

		if s.opts.RemoveRTL && !textIsLTR(text) {
			continue
		}
		if s.opts.Normalize {
			text = norm.NFC.String(text)
		}

		return sample.Sample{Text: text, Meta: sample.Meta{PileSetName: pileSet}}, nil
	}
}

// readLine reads one line, trimming the trailing newline, growing past
// bufio.Reader's default token size for unusually long corpus lines.
func (s *Source) readLine() ([]byte, error) {
	line, err := s.reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("corpus: reading line: %w", err)
	}
	if len(line) == 0 && err == io.EOF {
		return nil, io.EOF
	}
	if len(line) > maxLineBytes {
		return nil, fmt.Errorf("corpus: line exceeds %d bytes", maxLineBytes)
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	if err == io.EOF {
		if len(line) == 0 {
			return nil, io.EOF
		}
		// Last line without a trailing newline: return it, then EOF next.
		return line, nil
	}
	return line, nil
}

// OpenFactory builds a sample.Factory that reopens path from the start each
// time it is invoked, for use with sample.Rewinder (trainer.Train).
func OpenFactory(path string, opts ...Option) sample.Factory {
	return func() (sample.Source, error) {
		return Open(path, opts...)
	}
}
