package trainer

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"unicode/utf8"
)

// writeDebug renders the human-readable dump described in spec.md §6: a
// token-by-unigram-count section followed by a dropped-tokens section, plus
// an additional template-cluster section contributed by the go-drain3
// integration (see debug_templates.go).
func (t *Trainer) writeDebug(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, `Token: (token: count forced)`)
	indices := make([]int, t.vocabulary.Len())
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(i, j int) bool {
		return t.unigram[indices[i]] > t.unigram[indices[j]]
	})
	for _, i := range indices {
		fmt.Fprintf(bw, "  %s: %d %t\n",
			byteRepr(t.vocabulary.Token(i).Bytes),
			t.unigram[i],
			i < forcedTokenCount(t),
		)
	}

	fmt.Fprintln(bw, "\nDropped tokens:")
	for _, d := range t.dropped {
		fmt.Fprintf(bw, "  %s: %d\n", byteRepr(d.Bytes), d.Count)
	}

	if clusters := t.templateClusters.topClusters(20); len(clusters) > 0 {
		fmt.Fprintln(bw, "\nTemplate clusters:")
		for _, c := range clusters {
			fmt.Fprintf(bw, "  %d: %q\n", c.size, c.template)
		}
	}

	return bw.Flush()
}

func forcedTokenCount(_ *Trainer) int { return 255 }

// byteRepr mirrors the original tool's ByteString debug helper: render as a
// quoted Go string when the bytes are valid UTF-8, otherwise fall back to
// the raw byte slice representation.
func byteRepr(b []byte) string {
	if utf8.Valid(b) {
		return fmt.Sprintf("%q", string(b))
	}
	return fmt.Sprintf("%v", b)
}
