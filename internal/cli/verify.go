package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/pipeline"
)

var (
	files       []string
	sourceLang  string
	outJSON     string
	outMD       string
	timeout     time.Duration
	maxClaims   int
	noCache     bool
	noFooter    bool
	includeText bool
	llmProvider string
	llmModel    string
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify [text...]",
	Short: "Verify the claims in a piece of text",
	Long: `Verify extracts up to --max-claims checkable claims from the text and any
attached files, gathers web evidence for each, and lets the classifier
ensemble vote on every claim.

Text can be given as arguments, or as "-" to read standard input. Files may be
plain text, HTML, or (with a converter service configured) audio and images.

Example:
  veritas verify "Drinking bleach cures the flu"
  veritas verify --file post.txt --lang fr --json report.json --md report.md
  echo "The Great Wall is visible from space" | veritas verify -`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	// Input flags
	verifyCmd.Flags().StringSliceVarP(&files, "file", "f", nil, "file to include in the submission (repeatable)")
	verifyCmd.Flags().StringVar(&sourceLang, "lang", "", "source language code (e.g. fr, ar, tunisian_ar); empty or en skips translation")

	// Output flags
	verifyCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (optional)")
	verifyCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	verifyCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
	verifyCmd.Flags().BoolVar(&includeText, "include-text", false, "include the analysed text in reports")

	// Pipeline flags
	verifyCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall verification timeout")
	verifyCmd.Flags().IntVar(&maxClaims, "max-claims", 0, "claims to classify (default from config: 3)")
	verifyCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the search and page cache")

	// LLM flags
	verifyCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "LLM provider (groq, openai, anthropic, ollama, gemini)")
	verifyCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name")
}

func runVerify(cmd *cobra.Command, args []string) error {
	prompt, err := readPrompt(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	req := pipeline.Request{Prompt: prompt, SourceLanguage: sourceLang}
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		req.Files = append(req.Files, pipeline.File{Name: filepath.Base(path), Data: data})
	}
	if strings.TrimSpace(req.Prompt) == "" && len(req.Files) == 0 {
		return fmt.Errorf("nothing to verify: pass text, \"-\" for stdin, or --file")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyVerifyFlags(cmd, cfg)

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	built, err := pipeline.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Classifiers: %d active, %d skipped\n", len(built.Ensemble.Adapters), len(built.Ensemble.Skipped))
		fmt.Fprintf(os.Stderr, "Timeout: %v\n\n", timeout)
	}

	res := built.Pipeline.Verify(ctx, req)

	renderer := pipeline.NewRenderer(cfg.Output)
	if err := renderer.Render(res, outJSON, outMD, cmd.OutOrStdout(), verbose); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	drainClassifiers(built.Pipeline)

	if res.Stage == model.StageFailed {
		return fmt.Errorf("verification failed: %s", res.Error)
	}
	return nil
}

// readPrompt joins the arguments; a lone "-" reads stdin
func readPrompt(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	return strings.Join(args, " "), nil
}

func applyVerifyFlags(cmd *cobra.Command, cfg *model.Config) {
	flags := cmd.Flags()
	if flags.Changed("max-claims") {
		cfg.Pipeline.MaxClaims = maxClaims
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if noFooter {
		cfg.Output.IncludeFooter = false
	}
	if includeText {
		cfg.Output.IncludeText = true
	}
	cfg.Output.Verbose = verbose

	if llmProvider != "" && !strings.EqualFold(llmProvider, cfg.LLM.Provider) {
		cfg.LLM.Provider = llmProvider
		cfg.LLM.APIKey = ""
		cfg.LLM.BaseURL = ""
		applyEnvKeys(cfg, os.Getenv)
	}
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}
}

// drainClassifiers gives classifiers that outlived their timeout a moment to finish
func drainClassifiers(p *pipeline.Pipeline) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Wait(ctx); err != nil {
		logger.Debug("detached classifiers still running at exit", zap.Error(err))
	}
}
