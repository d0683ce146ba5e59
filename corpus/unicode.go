package corpus

import "golang.org/x/text/unicode/bidi"

// lowestRTLRune is the first code point that can possibly carry an RTL or
// explicit-formatting bidi class; everything below it is trivially LTR.
const lowestRTLRune = rune(0x590)

// textIsLTR reports whether every character of s carries a bidi class
// compatible with left-to-right text, per spec.md §6's LTR predicate.
func textIsLTR(s string) bool {
	for _, r := range s {
		if !runeIsLTR(r) {
			return false
		}
	}
	return true
}

func runeIsLTR(r rune) bool {
	if r < lowestRTLRune {
		return true
	}
	props, _ := bidi.LookupRune(r)
	return classIsLTR(props.Class())
}

func classIsLTR(class bidi.Class) bool {
	switch class {
	case bidi.L, bidi.EN, bidi.ES, bidi.ET, bidi.CS, bidi.NSM, bidi.BN, bidi.B, bidi.S, bidi.WS, bidi.ON:
		return true
	default:
		// AL, AN, R, and every explicit-formatting class (LRE, LRO, RLE,
		// RLO, PDF, LRI, RLI, FSI, PDI) are non-LTR.
		return false
	}
}
