// Command decompress concatenates the sample texts of a zstd-compressed
// corpus file into a plain-text output file (spec.md §6).
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tokpipe/tokpipe/corpus"
)

func main() {
	var maxSamples int64
	var maxBytes int64

	cmd := &cobra.Command{
		Use:   "decompress <input.zst> <output.txt>",
		Short: "Concatenate a compressed corpus' sample texts into a plain-text file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], args[1], maxSamples, maxBytes)
		},
	}

	cmd.Flags().Int64Var(&maxSamples, "max-samples", 0, "stop after this many samples (0 = unlimited)")
	cmd.Flags().Int64Var(&maxBytes, "max-bytes", 0, "stop after writing this many bytes (0 = unlimited)")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(input, output string, maxSamples, maxBytes int64) error {
	if ext := filepath.Ext(input); ext != ".zst" {
		return fmt.Errorf("decompress: input must have a .zst extension, got %q", ext)
	}

	src, err := corpus.Open(input)
	if err != nil {
		return fmt.Errorf("decompress: %w", err)
	}
	defer src.Close()

	outFile, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("decompress: creating output file: %w", err)
	}
	defer outFile.Close()
	w := bufio.NewWriterSize(outFile, 1<<20)
	defer w.Flush()

	// max-samples/max-bytes are checked only as a before-the-next-sample
	// guard: once a sample is read it is written out in full, never sliced
	// mid-sample.
	var samples, written int64
	for {
		if maxSamples > 0 && samples >= maxSamples {
			break
		}
		if maxBytes > 0 && written >= maxBytes {
			break
		}
		s, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("decompress: %w", err)
		}
		samples++

		n, err := w.WriteString(s.Text)
		if err != nil {
			return fmt.Errorf("decompress: writing output: %w", err)
		}
		written += int64(n)
	}

	return w.Flush()
}
