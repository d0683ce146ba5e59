// Command train-vocab grows a byte-pair vocabulary from a zstd-compressed
// JSON-lines corpus and writes it out as a vocabulary file (spec.md §6).
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tokpipe/tokpipe/corpus"
	"github.com/tokpipe/tokpipe/sample"
	"github.com/tokpipe/tokpipe/trainer"
	"github.com/tokpipe/tokpipe/vocabfile"
)

type flags struct {
	maxTokens           int
	maxDrops            int
	thresholdDropFactor float64
	thresholdCount      uint32
	thresholdSamples    uint32
	countDecay          float64
	binaryOutput        string
	logLevel            string
}

func main() {
	var f flags

	cmd := &cobra.Command{
		Use:   "train-vocab <input.zst> <output.json> [debug.txt]",
		Short: "Train a byte-pair vocabulary from a compressed corpus",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, output := args[0], args[1]
			debugPath := ""
			if len(args) == 3 {
				debugPath = args[2]
			}
			return run(input, output, debugPath, f)
		},
	}

	cmd.Flags().IntVar(&f.maxTokens, "max-tokens", 1024, "maximum vocabulary size")
	cmd.Flags().IntVar(&f.maxDrops, "max-drops", 1024, "maximum number of token evictions")
	cmd.Flags().Float64Var(&f.thresholdDropFactor, "threshold-drop-factor", 2.0, "margin required to evict a token while the vocabulary is full")
	cmd.Flags().Uint32Var(&f.thresholdCount, "threshold-count", 10000, "minimum bigram count that triggers a merge")
	cmd.Flags().Uint32Var(&f.thresholdSamples, "threshold-samples", 100, "minimum samples between merges")
	cmd.Flags().Float64Var(&f.countDecay, "count-decay", 0.99, "per-epoch decay factor applied to counts, in [0,1)")
	cmd.Flags().StringVar(&f.binaryOutput, "binary-output", "", "also write a compact binary vocabulary archive to this path")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(input, output, debugPath string, f flags) error {
	if ext := filepath.Ext(input); ext != ".zst" {
		return fmt.Errorf("train-vocab: input must have a .zst extension, got %q", ext)
	}
	if ext := filepath.Ext(output); ext != ".json" {
		return fmt.Errorf("train-vocab: output must have a .json extension, got %q", ext)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("train-vocab: creating output directory: %w", err)
	}

	logger, err := newLogger(f.logLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	var debugFile *os.File
	if debugPath != "" {
		debugFile, err = os.Create(debugPath)
		if err != nil {
			return fmt.Errorf("train-vocab: creating debug file: %w", err)
		}
		defer debugFile.Close()
	}

	opts := []trainer.Option{
		trainer.WithVMax(f.maxTokens),
		trainer.WithDropsMax(f.maxDrops),
		trainer.WithThresholdDropFactor(f.thresholdDropFactor),
		trainer.WithThresholdCount(f.thresholdCount),
		trainer.WithThresholdSamples(f.thresholdSamples),
		trainer.WithCountDecay(f.countDecay),
		trainer.WithLogger(logger),
	}
	if debugFile != nil {
		opts = append(opts, trainer.WithDebugSink(debugFile))
	}

	tr, err := trainer.New(opts...)
	if err != nil {
		return fmt.Errorf("train-vocab: %w", err)
	}

	factory := sample.Factory(corpus.OpenFactory(input, corpus.WithRemoveRTL(true), corpus.WithNormalize(true)))
	finalVocab, err := tr.Train(factory)
	if err != nil {
		return fmt.Errorf("train-vocab: %w", err)
	}

	outFile, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("train-vocab: creating output file: %w", err)
	}
	defer outFile.Close()

	args := vocabfile.TrainingArgs{
		Input:               input,
		Output:              output,
		DebugPath:           debugPath,
		MaxTokens:           f.maxTokens,
		MaxDrops:            f.maxDrops,
		ThresholdDropFactor: f.thresholdDropFactor,
		ThresholdCount:      f.thresholdCount,
		ThresholdSamples:    f.thresholdSamples,
		CountDecay:          f.countDecay,
	}
	if err := vocabfile.WriteJSON(outFile, args, finalVocab); err != nil {
		return fmt.Errorf("train-vocab: %w", err)
	}

	if f.binaryOutput != "" {
		binFile, err := os.Create(f.binaryOutput)
		if err != nil {
			return fmt.Errorf("train-vocab: creating binary output file: %w", err)
		}
		defer binFile.Close()
		if err := vocabfile.WriteBinary(binFile, finalVocab); err != nil {
			return fmt.Errorf("train-vocab: writing binary archive: %w", err)
		}
	}

	logger.Info("wrote vocabulary file",
		zap.String("path", output),
		zap.Int("tokens", finalVocab.Len()),
	)
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return nil, fmt.Errorf("train-vocab: invalid --log-level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	return cfg.Build()
}
