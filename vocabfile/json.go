// Package vocabfile reads and writes the vocabulary file format described
// in spec.md §6: a JSON document echoing the training arguments alongside
// the ordered token list, where the array index is the token index. It
// also offers an optional compact binary archive format for very large
// vocabularies, adapted from the teacher's stage-framed archive wire
// format (see binary.go).
package vocabfile

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/tokpipe/tokpipe/vocab"
)

// TrainingArgs mirrors the CLI flags of train-vocab, echoed verbatim into
// the output vocabulary file for reproducibility.
type TrainingArgs struct {
	Input               string  `json:"input"`
	Output              string  `json:"output"`
	DebugPath           string  `json:"debug_path,omitempty"`
	MaxTokens           int     `json:"max_tokens"`
	MaxDrops            int     `json:"max_drops"`
	ThresholdDropFactor float64 `json:"threshold_drop_factor"`
	ThresholdCount      uint32  `json:"threshold_count"`
	ThresholdSamples    uint32  `json:"threshold_samples"`
	CountDecay          float64 `json:"count_decay"`
}

// tokenBytes marshals as a JSON array of integers (spec.md §6: "tokens" is
// an array of byte-sequences), rather than encoding/json's default base64
// string for []byte.
type tokenBytes []byte

func (t tokenBytes) MarshalJSON() ([]byte, error) {
	ints := make([]int, len(t))
	for i, b := range t {
		ints[i] = int(b)
	}
	return json.Marshal(ints)
}

func (t *tokenBytes) UnmarshalJSON(data []byte) error {
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return err
	}
	out := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return fmt.Errorf("vocabfile: token byte %d out of range", v)
		}
		out[i] = byte(v)
	}
	*t = out
	return nil
}

type document struct {
	Args   TrainingArgs `json:"args"`
	Tokens []tokenBytes `json:"tokens"`
}

// WriteJSON writes v in the spec.md §6 vocabulary file format.
func WriteJSON(w io.Writer, args TrainingArgs, v *vocab.Vocabulary) error {
	doc := document{Args: args}
	for _, t := range v.Tokens() {
		doc.Tokens = append(doc.Tokens, tokenBytes(t.Bytes))
	}
	enc := json.NewEncoder(w)
	return enc.Encode(doc)
}

// ReadJSON parses the spec.md §6 vocabulary file format into a Vocabulary
// and the echoed training arguments.
func ReadJSON(r io.Reader) (*vocab.Vocabulary, TrainingArgs, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, TrainingArgs{}, fmt.Errorf("vocabfile: decoding: %w", err)
	}

	v := vocab.NewFromTokens(tokensAsBytes(doc.Tokens))
	if err := v.Validate(); err != nil {
		return nil, TrainingArgs{}, fmt.Errorf("vocabfile: %w", err)
	}
	return v, doc.Args, nil
}

func tokensAsBytes(tokens []tokenBytes) [][]byte {
	out := make([][]byte, len(tokens))
	for i, t := range tokens {
		out[i] = []byte(t)
	}
	return out
}
