// Package matcher implements a leftmost-longest multi-pattern byte matcher.
//
// It is the common substrate shared by VocabularyTrainer and Batcher: given
// a frozen token list, it finds the leftmost-longest non-overlapping
// matches over any input byte string. It is immutable once built;
// rebuilding from an updated token list is the only way to reflect
// vocabulary changes. The implementation is a hybrid of a direct hash
// lookup for short patterns and an 8-byte-prefix-bucketed suffix search for
// long patterns, kept longest-first per bucket for greedy longest-match
// lookup.
package matcher

import (
	"bytes"
	"encoding/binary"
	"errors"
	"iter"
	"unsafe"
)

// ErrEmptyPatterns is returned by New when given zero patterns.
var ErrEmptyPatterns = errors.New("matcher: at least one pattern is required")

// masks extracts little-endian prefixes of length 0..8 bytes.
var masks = [9]uint64{
	0x0000000000000000,
	0x00000000000000FF,
	0x000000000000FFFF,
	0x0000000000FFFFFF,
	0x00000000FFFFFFFF,
	0x000000FFFFFFFFFF,
	0x0000FFFFFFFFFFFF,
	0x00FFFFFFFFFFFFFF,
	0xFFFFFFFFFFFFFFFF,
}

const minMatch = 8

// Match is one non-overlapping match produced while scanning an input.
type Match struct {
	Offset  int
	Pattern int
}

// Matcher is an immutable leftmost-longest multi-pattern matcher.
type Matcher struct {
	longBuckets map[uint64][]int32  // 8-byte prefix -> candidate pattern indices, longest-first
	shortLookup [9]map[uint64]int32 // length -> (prefix -> pattern index), lengths 2..8
	singleByte  [256]bool           // byte value -> has a length-1 pattern
	dictionary  []byte              // suffix storage for long patterns
	endPos      []uint32            // boundary positions into dictionary, indexed by pattern id
}

// New builds a matcher over the given patterns. Pattern i is reported as
// Match.Pattern == i. Patterns must be distinct; New does not itself check
// for duplicates (the caller's Vocabulary invariant already guarantees it).
func New(patterns [][]byte) (*Matcher, error) {
	if len(patterns) == 0 {
		return nil, ErrEmptyPatterns
	}

	m := &Matcher{endPos: make([]uint32, 1, len(patterns)+1)}
	for id, p := range patterns {
		m.insert(p, int32(id))
	}
	return m, nil
}

func (m *Matcher) insert(entry []byte, id int32) {
	switch {
	case len(entry) == 1:
		m.singleByte[entry[0]] = true
		m.endPos = append(m.endPos, uint32(len(m.dictionary)))
	case len(entry) > minMatch:
		prefix := bytesToU64LE(entry, minMatch)
		if m.longBuckets == nil {
			m.longBuckets = make(map[uint64][]int32)
		}
		m.dictionary = append(m.dictionary, entry[minMatch:]...)
		m.endPos = append(m.endPos, uint32(len(m.dictionary)))

		bucket := append(m.longBuckets[prefix], id)
		for i := len(bucket) - 1; i > 0; i-- {
			id1, id2 := bucket[i], bucket[i-1]
			len1 := int(m.endPos[id1+1]) - int(m.endPos[id1])
			len2 := int(m.endPos[id2+1]) - int(m.endPos[id2])
			if len1 > len2 {
				bucket[i], bucket[i-1] = bucket[i-1], bucket[i]
			} else {
				break
			}
		}
		m.longBuckets[prefix] = bucket
	default:
		prefix := bytesToU64LE(entry, len(entry))
		lookup := m.shortLookup[len(entry)]
		if lookup == nil {
			lookup = make(map[uint64]int32)
			m.shortLookup[len(entry)] = lookup
		}
		lookup[prefix] = id
		m.endPos = append(m.endPos, uint32(len(m.dictionary)))
	}
}

// find returns the longest pattern matching the start of data, or ok=false
// if no pattern matches at all (which only happens for byte value 255, the
// single value deliberately excluded from the forced alphabet).
func (m *Matcher) find(data []byte) (id int32, length int, ok bool) {
	if len(data) > minMatch {
		prefix := bytesToU64LE(data, minMatch)
		suffix := data[minMatch:]
		if bucket, found := m.longBuckets[prefix]; found {
			for _, candidate := range bucket {
				if int(candidate)+1 >= len(m.endPos) {
					continue
				}
				start, end := int(m.endPos[candidate]), int(m.endPos[candidate+1])
				if start < 0 || end > len(m.dictionary) || start > end {
					continue
				}
				l := end - start
				if len(suffix) >= l && bytes.HasPrefix(suffix, m.dictionary[start:end]) {
					return candidate, minMatch + l, true
				}
			}
		}
	}

	maxLen := minMatch
	if len(data) < maxLen {
		maxLen = len(data)
	}
	prefix := bytesToU64LE(data, maxLen)
	for length := maxLen; length >= 2; length-- {
		if id, found := m.shortLookup[length][prefix&masks[length]]; found {
			return id, length, true
		}
	}
	if len(data) > 0 && m.singleByte[data[0]] {
		return int32(data[0]), 1, true
	}
	return 0, 0, false
}

// Matches returns a lazy, leftmost-longest sequence of non-overlapping
// matches over input. A byte for which no pattern matches (only possible
// for byte value 255) is skipped without producing a Match.
func (m *Matcher) Matches(input []byte) iter.Seq[Match] {
	return func(yield func(Match) bool) {
		pos := 0
		for pos < len(input) {
			id, length, ok := m.find(input[pos:])
			if !ok {
				pos++
				continue
			}
			if !yield(Match{Offset: pos, Pattern: int(id)}) {
				return
			}
			pos += length
		}
	}
}

// Tokenize eagerly collects the pattern indices of Matches(input), in
// order. This is the common case used by the trainer and batcher.
func (m *Matcher) Tokenize(input []byte) []int32 {
	return m.AppendTokenize(nil, input)
}

// AppendTokenize appends the pattern indices of Matches(input) to dst and
// returns the extended slice, letting callers reuse a recycled buffer
// instead of allocating on every call.
func (m *Matcher) AppendTokenize(dst []int32, input []byte) []int32 {
	for match := range m.Matches(input) {
		dst = append(dst, int32(match.Pattern))
	}
	return dst
}

func bytesToU64LE(b []byte, length int) uint64 {
	if length > 8 {
		length = 8
	}
	if length < 0 {
		length = 0
	}
	if len(b) < 8 {
		var buf [8]byte
		copy(buf[:], b)
		return binary.LittleEndian.Uint64(buf[:]) & masks[length]
	}
	ptr := unsafe.Pointer(&b[0])
	return *(*uint64)(ptr) & masks[length]
}
