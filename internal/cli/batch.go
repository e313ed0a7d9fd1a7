package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
	"unicode"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/veritas/internal/metrics"
	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/pipeline"
	"github.com/ppiankov/veritas/internal/worker"
)

var (
	concurrency   int
	outputDir     string
	batchTimeout  time.Duration
	promptTimeout time.Duration
	metricsAddr   string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Verify many texts from a file in parallel",
	Long: `Batch verifies one text per line of the input file:
- Blank lines and lines starting with # are skipped, duplicates are dropped
- Lines are verified in parallel with a configurable worker count
- All workers share one classifier rate limit and one cache
- Each line gets its own JSON and Markdown report

Example:
  veritas batch posts.txt
  veritas batch posts.txt --concurrency 4 --output-dir ./reports
  veritas batch posts.txt --metrics-addr :9090`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	// Concurrency flags
	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./veritas-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().DurationVar(&promptTimeout, "prompt-timeout", 2*time.Minute, "timeout for each line")
	batchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the batch runs (e.g. :9090)")

	// Shared with verify
	batchCmd.Flags().IntVar(&maxClaims, "max-claims", 0, "claims to classify per line (default from config: 3)")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the search and page cache")
	batchCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
	batchCmd.Flags().BoolVar(&includeText, "include-text", false, "include the analysed text in reports")
	batchCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "LLM provider (groq, openai, anthropic, ollama, gemini)")
	batchCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyVerifyFlags(cmd, cfg)

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Veritas Batch Verification\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v (%v per line)\n", batchTimeout, promptTimeout)
	if cfg.LLM.Provider != "" {
		fmt.Fprintf(os.Stderr, "  LLM:          %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	}
	fmt.Fprintf(os.Stderr, "\n")

	if metricsAddr != "" {
		metrics.Register()
		srv := serveMetrics(metricsAddr)
		defer shutdownMetrics(srv)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	built, err := pipeline.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "  Classifiers:  %d active, %d skipped\n\n", len(built.Ensemble.Adapters), len(built.Ensemble.Skipped))

	processor := worker.NewBatchProcessor(built.Pipeline, concurrency, promptTimeout, logger)

	fmt.Fprintf(os.Stderr, "⚙️  Verifying lines with %d workers...\n", concurrency)
	fmt.Fprintf(os.Stderr, "\n")
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	renderer := pipeline.NewRenderer(cfg.Output)
	successCount := 0
	failureCount := 0
	verdicts := make(map[model.Label]int)

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ #%d %s: %v\n", result.Index+1, preview(result.Prompt), result.Error)
			continue
		}

		slug := fmt.Sprintf("%03d-%s", result.Index+1, sanitizeFilename(result.Prompt))
		jsonPath := filepath.Join(outputDir, slug+".json")
		mdPath := filepath.Join(outputDir, slug+".md")

		if err := renderer.Render(result.Result, jsonPath, mdPath, io.Discard, false); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ #%d %s: %v\n", result.Index+1, preview(result.Prompt), err)
			continue
		}

		successCount++
		verdicts[result.Result.Verdict]++
		fmt.Fprintf(os.Stderr, "✓ #%d %s: %s\n", result.Index+1, preview(result.Prompt), result.Result.Verdict)
	}

	drainClassifiers(built.Pipeline)

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:      %d lines\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:    %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:   %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Verdicts:   FACT=%d MYTH=%d SCAM=%d UNCERTAIN=%d\n",
		verdicts[model.LabelFact], verdicts[model.LabelMyth], verdicts[model.LabelScam], verdicts[model.LabelUncertain])
	fmt.Fprintf(os.Stderr, "  Output:     %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 && successCount == 0 {
		return fmt.Errorf("all %d lines failed", failureCount)
	}
	return nil
}

// serveMetrics starts a Prometheus scrape endpoint in the background
func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return srv
}

func shutdownMetrics(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("metrics server shutdown", zap.Error(err))
	}
}

const maxSlugLen = 60

// sanitizeFilename turns free text into a short lowercase file slug
func sanitizeFilename(s string) string {
	var b []rune
	dash := false
	for _, r := range strings.ToLower(s) {
		if len(b) >= maxSlugLen {
			break
		}
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b = append(b, r)
			dash = false
		case !dash && len(b) > 0:
			b = append(b, '-')
			dash = true
		}
	}

	slug := strings.Trim(string(b), "-")
	if slug == "" {
		slug = "untitled"
	}
	return slug
}

// preview shortens a prompt for progress lines
func preview(s string) string {
	r := []rune(s)
	if len(r) <= 50 {
		return s
	}
	return string(r[:50]) + "..."
}
