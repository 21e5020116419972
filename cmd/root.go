package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"rangefetch/downloader"
	"rangefetch/internal"
	"rangefetch/utils"
)

var (
	hashFlag         string
	retriesFlag      int
	chaosFlag        bool
	keepSegmentsFlag bool
	verifyFlag       bool
	quietFlag        bool
	logLevelFlag     string
	logFileFlag      string
)

var rootCmd = &cobra.Command{
	Use:     "rangefetch <url> <threads> <output>",
	Short:   "Parallel segmented downloader for range-servable HTTP resources",
	Version: "v1.0.0",
	Long: `rangefetch partitions a large file served over HTTP range requests into
N byte-range segments, fetches them concurrently with retry and backoff,
reassembles them on disk in index order, and optionally verifies the
merged file against a published SHA-256 digest.

Examples:
  rangefetch https://example.com/disk.img 8 disk.img
  rangefetch --hash=<sha256> https://example.com/disk.img 16 disk.img
  rangefetch --retries=6 --chaos https://example.com/disk.img 4 disk.img

Environment Variables:
  RANGEFETCH_PARALLELISM  Engine default parallelism (unused here: threads is required)
  RANGEFETCH_RETRIES      Default retry budget
  RANGEFETCH_LOG_LEVEL    Default log level (debug, info, warn, error)
  RANGEFETCH_LOG_FILE     Default log file path
  RANGEFETCH_QUIET        Default quiet mode (true/1)`,
	Args: cobra.ExactArgs(3),
	RunE: runDownload,
}

func init() {
	rootCmd.Flags().StringVar(&hashFlag, "hash", "", "expected SHA-256 digest of the merged file (hex); implies --verify")
	rootCmd.Flags().IntVar(&retriesFlag, "retries", 0, "maximum fetch attempts per segment (env RANGEFETCH_RETRIES, default 3)")
	rootCmd.Flags().BoolVar(&chaosFlag, "chaos", false, "inject deterministic test faults into segments 0 and 1")
	rootCmd.Flags().BoolVar(&keepSegmentsFlag, "keep-segments", false, "keep the staging directory and segment files after a successful merge")
	rootCmd.Flags().BoolVar(&verifyFlag, "verify", false, "verify the merged file against the expected digest")
	rootCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "suppress the live heatmap; the final summary still prints")
	rootCmd.Flags().StringVar(&logLevelFlag, "log-level", "", "log level: debug, info, warn, error (env RANGEFETCH_LOG_LEVEL)")
	rootCmd.Flags().StringVar(&logFileFlag, "log-file", "", "write logs to file instead of stderr (env RANGEFETCH_LOG_FILE)")
}

// Execute runs the root command. It is the sole entry point called by main.
func Execute() error {
	return rootCmd.Execute()
}

func runDownload(cmd *cobra.Command, args []string) error {
	url := args[0]
	threads, err := strconv.Atoi(args[1])
	if err != nil || threads < 1 {
		return fmt.Errorf("threads must be a positive integer, got %q", args[1])
	}
	outputPath := args[2]

	config := internal.DefaultConfig()
	config.LoadFromEnv()
	if logLevelFlag != "" {
		config.LogLevel = logLevelFlag
	}
	if logFileFlag != "" {
		config.LogFile = logFileFlag
	}
	if quietFlag {
		config.QuietMode = true
	}
	if retriesFlag == 0 {
		retriesFlag = config.DefaultMaxRetries
	}

	if err := config.ValidateConfig(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := internal.InitLogger(config); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	internal.LogInfo("starting download url=%s threads=%d output=%s", url, threads, outputPath)
	internal.LogDebug("flags: retries=%d chaos=%v keep-segments=%v verify=%v", retriesFlag, chaosFlag, keepSegmentsFlag, verifyFlag)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig, ok := <-sigCh
		if !ok {
			return
		}
		internal.LogInfo("received signal %v, cancelling download", sig)
		if !config.QuietMode {
			fmt.Fprintf(os.Stderr, "\nreceived %v, cancelling...\n", sig)
		}
		cancel()
	}()

	expectedDigest := strings.ToLower(strings.TrimSpace(hashFlag))
	verify := verifyFlag || expectedDigest != ""

	if verify && expectedDigest == "" {
		client := utils.NewHTTPClient()
		if digest, ok := utils.FetchSidecarDigest(ctx, client, url); ok {
			expectedDigest = digest
			internal.LogDebug("discovered sidecar digest: %s", digest)
		} else {
			internal.LogDebug("no sidecar digest found at %s.sha256, proceeding without verification", url)
		}
	}

	req := &internal.DownloadRequest{
		URL:            url,
		OutputPath:     outputPath,
		Parallelism:    threads,
		MaxRetries:     retriesFlag,
		ExpectedDigest: expectedDigest,
		Verify:         verify && expectedDigest != "",
		KeepSegments:   keepSegmentsFlag,
		Chaos:          chaosFlag,
	}

	var engine internal.DownloadEngine = downloader.NewEngine(config)
	result, runErr := engine.Run(ctx, req)

	printSummary(result, runErr, config.QuietMode)

	if runErr != nil {
		switch e := runErr.(type) {
		case *internal.EngineError:
			internal.LogEngineError(e)
		case *internal.ValidationError:
			internal.LogValidationError(e)
		default:
			internal.LogError("download failed: %v", runErr)
		}
		return runErr
	}
	internal.LogInfo("download completed successfully: %s", outputPath)
	return nil
}

// printSummary renders the final stage-timing/verification report required
// by spec section 7 ("a final summary table of stage timings and per-segment
// final state; on failure, the offending segments and their last error
// strings"). Printed in both quiet and non-quiet mode: --quiet suppresses the
// Aggregator's live heatmap and non-error log lines, not this closing report.
func printSummary(result *internal.Result, runErr error, quiet bool) {
	if result == nil {
		return
	}

	fmt.Println()
	fmt.Println("=== Summary ===")
	fmt.Printf("URL:         %s\n", result.URL)
	fmt.Printf("Output:      %s\n", result.OutputPath)
	fmt.Printf("Parallelism: %d\n", result.Parallelism)
	for _, t := range result.Timings {
		fmt.Printf("  %-8s %s\n", t.Stage, t.Duration().Round(time.Millisecond))
	}
	if result.Verified != nil {
		fmt.Printf("Verified:    %v\n", *result.Verified)
		fmt.Printf("Digest:      %s\n", result.LocalDigest)
	}

	if len(result.Segments) > 0 {
		fmt.Println("Segments:")
		for _, seg := range result.Segments {
			line := fmt.Sprintf("  %3d  %-9s retries=%d", seg.Index, seg.State, seg.Retries)
			if seg.LastError != "" && seg.State != internal.StateSucceeded {
				line += "  " + seg.LastError
			}
			fmt.Println(line)
		}
	}

	if runErr == nil {
		fmt.Println("Status:      success")
		return
	}

	if engErr, ok := runErr.(*internal.EngineError); ok {
		fmt.Printf("Status:      FAILED (%s)\n", engErr.Type)
		fmt.Printf("Reason:      %s\n", engErr.Message)
		if len(engErr.Segments) > 0 {
			fmt.Printf("Failed:      %v\n", engErr.Segments)
		}
		if engErr.Suggestion != "" {
			fmt.Printf("Suggestion:  %s\n", engErr.Suggestion)
		}
		return
	}
	fmt.Printf("Status:      FAILED (%v)\n", runErr)
}
