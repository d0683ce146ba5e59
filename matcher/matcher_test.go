package matcher

import (
	"bytes"
	"testing"
)

func forcedPatterns() [][]byte {
	out := make([][]byte, 0, 255)
	for b := 0; b < 255; b++ {
		out = append(out, []byte{byte(b)})
	}
	return out
}

func TestNewRejectsEmptyPatterns(t *testing.T) {
	if _, err := New(nil); err != ErrEmptyPatterns {
		t.Fatalf("New(nil) error = %v, want ErrEmptyPatterns", err)
	}
}

func TestTokenizeForcedAlphabetIsIdentity(t *testing.T) {
	patterns := forcedPatterns()
	m, err := New(patterns)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	input := []byte("hello, world")
	ids := m.Tokenize(input)
	if len(ids) != len(input) {
		t.Fatalf("len(ids) = %d, want %d", len(ids), len(input))
	}
	for i, id := range ids {
		if int(id) != int(input[i]) {
			t.Fatalf("ids[%d] = %d, want %d", i, id, input[i])
		}
	}
}

func TestByte255NeverMatches(t *testing.T) {
	patterns := forcedPatterns()
	m, err := New(patterns)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	input := []byte{255, 'a', 255}
	ids := m.Tokenize(input)
	if len(ids) != 1 || int(ids[0]) != int('a') {
		t.Fatalf("Tokenize(%v) = %v, want [%d] (byte 255 skipped entirely)", input, ids, 'a')
	}
}

func TestLeftmostLongestPrefersLongerPattern(t *testing.T) {
	patterns := forcedPatterns()
	patterns = append(patterns, []byte("he"), []byte("hello"))
	m, err := New(patterns)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	matches := make([]Match, 0)
	for match := range m.Matches([]byte("hello")) {
		matches = append(matches, match)
	}
	if len(matches) != 1 {
		t.Fatalf("matches = %v, want exactly one match spanning the whole word", matches)
	}
	if matches[0].Pattern != 256 { // index of "hello" (255 forced + "he" at 255)
		t.Fatalf("matched pattern index = %d, want the 'hello' pattern", matches[0].Pattern)
	}
}

func TestMatchesNonOverlappingAndExact(t *testing.T) {
	patterns := forcedPatterns()
	patterns = append(patterns, []byte("ab"), []byte("cd"))
	m, err := New(patterns)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	input := []byte("abcdx")
	prevEnd := 0
	for match := range m.Matches(input) {
		if match.Offset < prevEnd {
			t.Fatalf("match at %d overlaps previous match ending at %d", match.Offset, prevEnd)
		}
		pattern := patterns[match.Pattern]
		got := input[match.Offset : match.Offset+len(pattern)]
		if !bytes.Equal(got, pattern) {
			t.Fatalf("input[%d:%d] = %q, want %q", match.Offset, match.Offset+len(pattern), got, pattern)
		}
		prevEnd = match.Offset + len(pattern)
	}
}

func TestAppendTokenizeReusesBuffer(t *testing.T) {
	patterns := forcedPatterns()
	m, err := New(patterns)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	buf := make([]int32, 0, 16)
	buf = m.AppendTokenize(buf, []byte("ab"))
	if len(buf) != 2 {
		t.Fatalf("len(buf) = %d, want 2", len(buf))
	}
	buf = m.AppendTokenize(buf[:0], []byte("xyz"))
	if len(buf) != 3 {
		t.Fatalf("len(buf) = %d, want 3", len(buf))
	}
}

func TestLongPatternMatch(t *testing.T) {
	patterns := forcedPatterns()
	long := []byte("this is a moderately long merged token")
	patterns = append(patterns, long)
	m, err := New(patterns)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	input := append(append([]byte{}, long...), []byte("!")...)
	matches := make([]Match, 0)
	for match := range m.Matches(input) {
		matches = append(matches, match)
	}
	if len(matches) == 0 || matches[0].Offset != 0 || matches[0].Pattern != 255 {
		t.Fatalf("matches = %v, want first match to be the long pattern at offset 0", matches)
	}
}

func FuzzTokenizeStaysWithinBounds(f *testing.F) {
	patterns := forcedPatterns()
	patterns = append(patterns, []byte("th"), []byte("the"), []byte("there"))
	m, err := New(patterns)
	if err != nil {
		f.Fatalf("New() error = %v", err)
	}

	f.Add([]byte("there the th"))
	f.Add([]byte{255, 255, 0, 1})
	f.Fuzz(func(t *testing.T, data []byte) {
		prevEnd := 0
		for match := range m.Matches(data) {
			if match.Offset < prevEnd {
				t.Fatalf("overlapping match at %d, previous ended at %d", match.Offset, prevEnd)
			}
			if match.Pattern < 0 || match.Pattern >= len(patterns) {
				t.Fatalf("pattern index %d out of range", match.Pattern)
			}
			pattern := patterns[match.Pattern]
			if match.Offset+len(pattern) > len(data) {
				t.Fatalf("match at %d with length %d runs past input of length %d", match.Offset, len(pattern), len(data))
			}
			if !bytes.Equal(data[match.Offset:match.Offset+len(pattern)], pattern) {
				t.Fatalf("match content mismatch at offset %d", match.Offset)
			}
			prevEnd = match.Offset + len(pattern)
		}
	})
}
