package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/workflowcards/interview-transcriber/cmd/transcriber/chunk"
	"github.com/workflowcards/interview-transcriber/cmd/transcriber/config"
	"github.com/workflowcards/interview-transcriber/cmd/transcriber/job"
	"github.com/workflowcards/interview-transcriber/cmd/transcriber/media"
	"github.com/workflowcards/interview-transcriber/cmd/transcriber/publish"
	"github.com/workflowcards/interview-transcriber/cmd/transcriber/transcribe"
)

const (
	startTimeout = 30 * time.Second
	stopTimeout  = time.Minute
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "transcriber",
		Short:         "Transcribe long interview recordings chunk by chunk",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Int("chunk-duration", 0, "Chunk duration in seconds (CHUNK_DURATION_SEC)")
	rootCmd.PersistentFlags().Int("chunk-overlap", 0, "Overlap between chunks in seconds (CHUNK_OVERLAP_SEC)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (LOG_LEVEL)")
	rootCmd.PersistentFlags().Int("merge-tolerance", 0, "Overlap dedup tolerance in seconds (MERGE_TOLERANCE_SEC)")
	rootCmd.PersistentFlags().Int("completeness-tolerance", 0, "Allowed shortfall of the merged transcript in seconds (COMPLETENESS_TOLERANCE_SEC)")

	rootCmd.AddCommand(newRunCmd(), newPlanCmd(), newMergeCmd(), newConfigCmd())

	return rootCmd
}

// loadConfig reads the env file and environment, fills in defaults, then
// applies the flags that were explicitly set on the command line. Flags come
// last so that an explicit zero is kept.
func loadConfig(cmd *cobra.Command) (config.TranscriberConfig, error) {
	if err := config.LoadEnvFile(os.Getenv("ENV_FILE")); err != nil {
		return config.TranscriberConfig{}, err
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.SetDefaults()

	flags := cmd.Flags()
	if flags.Changed("chunk-duration") {
		cfg.ChunkDurationSec, _ = flags.GetInt("chunk-duration")
	}
	if flags.Changed("chunk-overlap") {
		cfg.ChunkOverlapSec, _ = flags.GetInt("chunk-overlap")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("merge-tolerance") {
		cfg.MergeToleranceSec, _ = flags.GetInt("merge-tolerance")
	}
	if flags.Changed("completeness-tolerance") {
		cfg.CompletenessToleranceSec, _ = flags.GetInt("completeness-tolerance")
	}
	if flags.Changed("input") {
		cfg.InputPath, _ = flags.GetString("input")
	}
	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("max-concurrent") {
		cfg.MaxConcurrent, _ = flags.GetInt("max-concurrent")
	}
	if flags.Changed("keep-chunks") {
		cfg.KeepChunks, _ = flags.GetBool("keep-chunks")
	}
	if flags.Changed("clipboard") {
		cfg.CopyToClipboard, _ = flags.GetBool("clipboard")
	}

	setLogLevel(cfg.LogLevel)

	return cfg, nil
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline on an audio file",
		Args:  cobra.NoArgs,
		RunE:  runTranscriber,
	}

	cmd.Flags().StringP("input", "i", "", "Path of the audio file (INPUT_PATH)")
	cmd.Flags().String("data-dir", "", "Directory for job files (DATA_DIR)")
	cmd.Flags().Int("max-concurrent", 0, "Maximum concurrent chunk transcriptions (MAX_CONCURRENT)")
	cmd.Flags().Bool("keep-chunks", false, "Keep extracted audio chunks (KEEP_CHUNKS)")
	cmd.Flags().Bool("clipboard", false, "Copy the final transcript to the clipboard (COPY_TO_CLIPBOARD)")

	return cmd
}

func runTranscriber(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.IsValid(); err != nil {
		return fmt.Errorf("failed to validate config: %w", err)
	}

	slog.Debug("loaded config", slog.Any("cfg", cfg.Redacted().ToMap()))

	transcriber, err := job.NewTranscriber(cfg, job.Deps{})
	if err != nil {
		return fmt.Errorf("failed to create transcriber: %w", err)
	}

	slog.Info("starting transcriber", slog.String("jobID", transcriber.ID()))

	ctx, cancel := context.WithTimeout(cmd.Context(), startTimeout)
	defer cancel()
	if err := transcriber.Start(ctx); err != nil {
		return fmt.Errorf("failed to start transcriber: %w", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case <-transcriber.Done():
		if err := transcriber.Err(); err != nil {
			return fmt.Errorf("transcriber failed: %w", err)
		}
	case <-sig:
		slog.Info("received signal, stopping transcriber")
		stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
		defer stopCancel()
		if err := transcriber.Stop(stopCtx); err != nil && !errors.Is(err, job.ErrStopped) {
			return fmt.Errorf("failed to stop transcriber: %w", err)
		}
		slog.Info("transcriber stopped", slog.String("workDir", transcriber.WorkDir()))
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(transcriber.WorkDir(), publish.FinalTranscriptFilename))

	slog.Info("transcriber has finished, exiting")

	return nil
}

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the chunk windows for an audio file or duration",
		Args:  cobra.NoArgs,
		RunE:  planChunks,
	}

	cmd.Flags().Int("duration", 0, "Total duration in seconds")
	cmd.Flags().StringP("input", "i", "", "Path of the audio file to probe")
	cmd.MarkFlagsOneRequired("duration", "input")
	cmd.MarkFlagsMutuallyExclusive("duration", "input")

	return cmd
}

func planChunks(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	duration, _ := cmd.Flags().GetInt("duration")
	if cfg.InputPath != "" && !cmd.Flags().Changed("duration") {
		extractor := media.NewExtractor(
			media.WithFFmpegPath(cfg.FFmpegPath),
			media.WithFFprobePath(cfg.FFprobePath),
		)
		duration, err = extractor.ProbeDuration(cmd.Context(), cfg.InputPath)
		if err != nil {
			return fmt.Errorf("failed to probe duration: %w", err)
		}
	}

	windows, err := chunk.Plan(duration, cfg.ChunkDurationSec, cfg.ChunkOverlapSec)
	if err != nil {
		return fmt.Errorf("failed to plan chunks: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, w := range windows {
		fmt.Fprintf(out, "%s\t%ds\n", w, w.Duration())
	}

	return nil
}

func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge <chunks-dir>",
		Short: "Merge previously saved chunk transcripts",
		Args:  cobra.ExactArgs(1),
		RunE:  mergeChunks,
	}

	cmd.Flags().Int("duration", 0, "Total duration of the recording in seconds")
	cmd.Flags().StringP("output", "o", "", "Output directory (defaults to the parent of chunks-dir)")
	cmd.Flags().String("name", "transcript", "Base name of the rendered files")
	_ = cmd.MarkFlagRequired("duration")

	return cmd
}

func mergeChunks(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	duration, _ := cmd.Flags().GetInt("duration")
	outDir, _ := cmd.Flags().GetString("output")
	name, _ := cmd.Flags().GetString("name")

	chunksDir := args[0]
	if outDir == "" {
		outDir = filepath.Dir(filepath.Clean(chunksDir))
	}

	windows, err := chunk.Plan(duration, cfg.ChunkDurationSec, cfg.ChunkOverlapSec)
	if err != nil {
		return fmt.Errorf("failed to plan chunks: %w", err)
	}

	transcripts, err := job.LoadChunkTranscripts(chunksDir, windows)
	if err != nil {
		return err
	}

	merged, err := transcribe.Merge(transcripts, duration, transcribe.MergeOptions{
		Tolerance:             cfg.MergeToleranceSec,
		CompletenessTolerance: cfg.CompletenessToleranceSec,
	})
	if err != nil {
		return fmt.Errorf("failed to merge transcripts: %w", err)
	}

	sink := publish.FileSink{Dir: outDir, Outputs: cfg.OutputOptions}
	res := publish.Result{
		Name:       publish.SanitizeFilename(name),
		Transcript: merged,
		Duration:   duration,
	}
	if err := sink.Publish(cmd.Context(), res); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(outDir, publish.FinalTranscriptFilename))

	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as environment variables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, v := range cfg.Redacted().ToEnv() {
				fmt.Fprintln(out, v)
			}

			return nil
		},
	}
}
