// Command inspect-vocab reports a size breakdown of a trained vocabulary
// file: how much of it is the forced single-byte alphabet versus merged
// multi-byte tokens, and what a binary archive would cost by comparison.
package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/tokpipe/tokpipe/vocab"
	"github.com/tokpipe/tokpipe/vocabfile"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: inspect-vocab <vocab.json>")
		os.Exit(1)
	}
	if err := run(os.Args[1]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("inspect-vocab: %w", err)
	}
	defer f.Close()

	v, args, err := vocabfile.ReadJSON(f)
	if err != nil {
		return fmt.Errorf("inspect-vocab: %w", err)
	}

	forcedBytes := 0
	mergedBytes := 0
	mergedTokens := 0
	for i, tok := range v.Tokens() {
		if i < vocab.ForcedTokenCount {
			forcedBytes += len(tok.Bytes)
			continue
		}
		mergedTokens++
		mergedBytes += len(tok.Bytes)
	}

	var binBuf bytes.Buffer
	if err := vocabfile.WriteBinary(&binBuf, v); err != nil {
		return fmt.Errorf("inspect-vocab: %w", err)
	}

	fmt.Printf("trained with: max_tokens=%d max_drops=%d threshold_count=%d threshold_samples=%d count_decay=%.4f\n",
		args.MaxTokens, args.MaxDrops, args.ThresholdCount, args.ThresholdSamples, args.CountDecay)
	fmt.Printf("tokens: %d forced + %d merged = %d total\n", vocab.ForcedTokenCount, mergedTokens, v.Len())
	fmt.Printf("dictionary bytes: %d forced + %d merged = %d total\n", forcedBytes, mergedBytes, forcedBytes+mergedBytes)
	fmt.Printf("binary archive size: %d bytes\n", binBuf.Len())
	return nil
}
