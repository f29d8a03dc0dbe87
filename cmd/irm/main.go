package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/chriscow/irmcodec/internal/worker"
	"github.com/chriscow/irmcodec/pkg/codec"
	"github.com/chriscow/irmcodec/pkg/version"
	"github.com/spf13/cobra"
)

const (
	containerExt = ".irm"
	wavExt       = ".wav"
)

var rootCmd = &cobra.Command{
	Use:   "irm",
	Short: "IRM - a lossy PCM audio codec",
	Long: `irm compresses PCM WAV files into IRM containers and back.

The pipeline folds near-identical stereo to mono, halves the sample rate,
quantizes to 8 bits and entropy-codes the run-length encoded deltas.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.GetVersionInfo())
	},
}

var compressCmd = &cobra.Command{
	Use:   "compress <file.wav>...",
	Short: "Compress WAV files into IRM containers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		levelName, _ := cmd.Flags().GetString("table-level")

		opts := codec.DefaultOptions()
		opts.EnergyThreshold = threshold
		level, err := codec.ParseTableLevel(levelName)
		if err != nil {
			return err
		}
		opts.TableLevel = level
		if err := opts.Validate(); err != nil {
			return err
		}

		return runBatch(cmd, worker.JobCompress, containerExt, args, opts)
	},
}

var decompressCmd = &cobra.Command{
	Use:   "decompress <file.irm>...",
	Short: "Decompress IRM containers into WAV files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, worker.JobDecompress, wavExt, args, codec.DefaultOptions())
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.irm>...",
	Short: "Print container metadata without decoding audio",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			data, err := codec.ReadFile(path)
			if err != nil {
				return err
			}
			info, err := codec.Inspect(data)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			printInfo(cmd.OutOrStdout(), path, info)
		}
		return nil
	},
}

func runBatch(cmd *cobra.Command, kind, ext string, inputs []string, opts codec.Options) error {
	output, _ := cmd.Flags().GetString("output")
	force, _ := cmd.Flags().GetBool("force")
	jobs, _ := cmd.Flags().GetInt("jobs")
	failFast, _ := cmd.Flags().GetBool("fail-fast")

	planned, err := planJobs(kind, ext, inputs, output, force)
	if err != nil {
		return err
	}

	logger := setupLogger()
	logger.Info("Starting irm",
		slog.String("version", version.Version),
		slog.String("kind", kind))

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	w := worker.New(worker.Config{Jobs: jobs, FailFast: failFast, Options: opts}, logger)
	results, err := w.Run(ctx, planned)
	for _, res := range results {
		if res.Err == nil {
			printResult(cmd.OutOrStdout(), res)
		}
	}
	if err != nil {
		return fmt.Errorf("%d of %d files failed: %w", countFailed(results), len(results), err)
	}
	return nil
}

// planJobs pairs every input with its output path. An explicit output is
// only allowed for a single input; otherwise the input extension is
// replaced by ext.
func planJobs(kind, ext string, inputs []string, output string, force bool) ([]worker.Job, error) {
	if output != "" && len(inputs) > 1 {
		return nil, fmt.Errorf("--output needs exactly one input, got %d", len(inputs))
	}

	seen := make(map[string]string, len(inputs))
	jobs := make([]worker.Job, 0, len(inputs))
	for _, in := range inputs {
		out := output
		if out == "" {
			out = outputPath(in, ext)
		}
		if prev, ok := seen[out]; ok {
			return nil, fmt.Errorf("%s and %s would both write %s", prev, in, out)
		}
		seen[out] = in

		if !force {
			if _, err := os.Stat(out); err == nil {
				return nil, fmt.Errorf("%s already exists (use --force to overwrite)", out)
			}
		}
		jobs = append(jobs, worker.Job{Kind: kind, Input: in, Output: out})
	}
	return jobs, nil
}

// outputPath swaps the extension of path for ext.
func outputPath(path, ext string) string {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	if base+ext == path {
		return path + ext
	}
	return base + ext
}

func countFailed(results []worker.Result) int {
	n := 0
	for _, res := range results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

func printResult(w io.Writer, res worker.Result) {
	fmt.Fprintf(w, "%s -> %s: %s -> %s (%.1f%% smaller)",
		res.Job.Input, res.Job.Output,
		codec.FormatSize(res.InputBytes), codec.FormatSize(res.OutputBytes),
		codec.ReductionRate(res.InputBytes, res.OutputBytes))
	if res.Stats != nil {
		fmt.Fprintf(w, ", %s, %d pairs, %d table entries", res.Stats.Mode, res.Stats.Pairs, res.Stats.TableEntries)
	}
	fmt.Fprintln(w)
}

func printInfo(w io.Writer, path string, info *codec.Info) {
	fmt.Fprintf(w, "%s\n", path)
	fmt.Fprintf(w, "  format:      %d Hz, %d ch, %d-bit (frame width %d)\n",
		info.SampleRate, info.Channels, info.BitDepth, info.FrameWidth)
	fmt.Fprintf(w, "  stereo mode: %s\n", info.Mode)
	fmt.Fprintf(w, "  duration:    %s (%d frames)\n", info.Duration(), info.Frames)
	fmt.Fprintf(w, "  samples:     %d retained, %d RLE pairs\n", info.SubsampledLength, info.PairCount)
	fmt.Fprintf(w, "  normalize:   mean %g, max %g\n", info.Mean, info.MaxAmplitude)
	fmt.Fprintf(w, "  table:       %d entries\n", info.TableEntries)
	fmt.Fprintf(w, "  size:        %s (bitstream %s)\n",
		codec.FormatSize(int64(info.ContainerBytes)), codec.FormatSize(int64(info.BitstreamBytes)))
}

// setupLogger configures the global logger based on environment variables.
// Logs go to stderr so stdout carries only command output.
func setupLogger() *slog.Logger {
	logFormat := os.Getenv("IRM_LOG_FORMAT")
	logLevel := os.Getenv("IRM_LOG_LEVEL")

	var handler slog.Handler
	opts := &slog.HandlerOptions{}

	switch logLevel {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if logFormat == "console" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		// Default to JSON
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func init() {
	for _, cmd := range []*cobra.Command{compressCmd, decompressCmd} {
		cmd.Flags().StringP("output", "o", "", "Output path (single input only)")
		cmd.Flags().Bool("force", false, "Overwrite existing outputs")
		cmd.Flags().Int("jobs", 0, "Files processed concurrently (0 = GOMAXPROCS)")
		cmd.Flags().Bool("fail-fast", false, "Stop starting new files after the first failure")
	}

	compressCmd.Flags().Float64("threshold", codec.DefaultOptions().EnergyThreshold,
		"Stereo energy ratio below which channels are folded to mono")
	compressCmd.Flags().String("table-level", "default", "zstd level for the code table (fastest|default|better|best)")

	rootCmd.AddCommand(versionCmd, compressCmd, decompressCmd, inspectCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
