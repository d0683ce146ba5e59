// Package vocab holds the shared token/vocabulary data model used by the
// matcher, trainer and batcher.
package vocab

import (
	"bytes"
	"fmt"
	"unicode"
)

// ForcedTokenCount is the number of single-byte tokens present in every
// vocabulary from the start. Byte value 255 is deliberately excluded: it
// never becomes a token, matching the leftmost-longest matcher's "advance
// one byte without emitting" behavior for that single value.
const ForcedTokenCount = 255

// Token is an ordered sequence of bytes identified by its index within a
// Vocabulary.
type Token struct {
	Bytes        []byte
	IsWhitespace bool
}

// Vocabulary is an ordered, append-mostly list of Tokens.
//
// Indices [0, ForcedTokenCount) are always the forced single-byte tokens in
// ascending byte order. Everything after that is a merged token, created as
// the concatenation of two earlier tokens.
type Vocabulary struct {
	tokens []Token
}

// NewForced builds a Vocabulary containing only the forced single-byte
// tokens, in ascending byte order.
func NewForced() *Vocabulary {
	v := &Vocabulary{tokens: make([]Token, 0, ForcedTokenCount)}
	for b := 0; b < ForcedTokenCount; b++ {
		v.tokens = append(v.tokens, Token{
			Bytes:        []byte{byte(b)},
			IsWhitespace: unicode.IsSpace(rune(byte(b))),
		})
	}
	return v
}

// NewFromTokens builds a Vocabulary from an explicit, already-ordered list
// of token byte sequences, such as one loaded from a vocabulary file. Each
// token's IsWhitespace flag is recomputed from its first byte.
func NewFromTokens(tokens [][]byte) *Vocabulary {
	v := &Vocabulary{tokens: make([]Token, len(tokens))}
	for i, b := range tokens {
		isWS := false
		if len(b) > 0 {
			isWS = unicode.IsSpace(rune(b[0]))
		}
		v.tokens[i] = Token{Bytes: b, IsWhitespace: isWS}
	}
	return v
}

// Len reports the current number of tokens.
func (v *Vocabulary) Len() int { return len(v.tokens) }

// Token returns the token at index i.
func (v *Vocabulary) Token(i int) Token { return v.tokens[i] }

// Tokens returns the live tokens in index order. The returned slice must
// not be retained across a mutation (Append/SwapRemove) of v.
func (v *Vocabulary) Tokens() []Token { return v.tokens }

// Bytes returns the byte patterns of every token in index order, suitable
// for feeding directly into matcher.New.
func (v *Vocabulary) Bytes() [][]byte {
	out := make([][]byte, len(v.tokens))
	for i, t := range v.tokens {
		out[i] = t.Bytes
	}
	return out
}

// Append adds a new merged token built from the concatenation of the bytes
// of tokens a and b, and returns its index.
func (v *Vocabulary) Append(a, b int) int {
	bytesNew := make([]byte, 0, len(v.tokens[a].Bytes)+len(v.tokens[b].Bytes))
	bytesNew = append(bytesNew, v.tokens[a].Bytes...)
	bytesNew = append(bytesNew, v.tokens[b].Bytes...)
	v.tokens = append(v.tokens, Token{
		Bytes:        bytesNew,
		IsWhitespace: v.tokens[a].IsWhitespace,
	})
	return len(v.tokens) - 1
}

// SwapRemove removes the token at index i by swapping it with the last
// token and truncating, matching the O(1) eviction semantics used
// throughout training. Callers must not assume index stability across this
// call. i must be >= ForcedTokenCount.
func (v *Vocabulary) SwapRemove(i int) Token {
	removed := v.tokens[i]
	last := len(v.tokens) - 1
	v.tokens[i] = v.tokens[last]
	v.tokens = v.tokens[:last]
	return removed
}

// Validate checks the invariants from the data model: forced tokens occupy
// [0, ForcedTokenCount) in ascending byte order, and no two tokens share
// byte content.
func (v *Vocabulary) Validate() error {
	if len(v.tokens) < ForcedTokenCount {
		return fmt.Errorf("vocab: fewer than %d forced tokens", ForcedTokenCount)
	}
	for b := 0; b < ForcedTokenCount; b++ {
		t := v.tokens[b]
		if len(t.Bytes) != 1 || t.Bytes[0] != byte(b) {
			return fmt.Errorf("vocab: forced token %d has unexpected bytes %v", b, t.Bytes)
		}
	}
	seen := make(map[string]int, len(v.tokens))
	for i, t := range v.tokens {
		key := string(t.Bytes)
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("vocab: duplicate token bytes %q at indices %d and %d", t.Bytes, prev, i)
		}
		seen[key] = i
	}
	return nil
}

// Equal reports whether two tokens carry identical bytes.
func Equal(a, b Token) bool { return bytes.Equal(a.Bytes, b.Bytes) }
