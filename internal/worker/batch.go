package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/veritas/internal/logging"
	"github.com/ppiankov/veritas/internal/model"
)

// Verifier verifies one free-text prompt
type Verifier interface {
	VerifyPrompt(ctx context.Context, prompt string) *model.Result
}

// PromptJob verifies one line of a batch
type PromptJob struct {
	Index    int
	Prompt   string
	Verifier Verifier
	Timeout  time.Duration // per prompt; 0 = none
}

// Execute executes the prompt job
func (j *PromptJob) Execute(ctx context.Context) Result {
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	res := &PromptResult{Index: j.Index, Prompt: j.Prompt}
	res.Result = j.Verifier.VerifyPrompt(ctx, j.Prompt)
	if res.Result == nil {
		res.Error = fmt.Errorf("no result")
	} else if res.Result.Stage == model.StageFailed {
		res.Error = fmt.Errorf("verification failed: %s", res.Result.Error)
	}
	return res
}

// PromptResult represents the outcome of a prompt job
type PromptResult struct {
	Index  int
	Prompt string
	Result *model.Result
	Error  error
}

// GetError returns the error from the prompt result
func (r *PromptResult) GetError() error {
	return r.Error
}

// BatchProcessor verifies many prompts with a worker pool
type BatchProcessor struct {
	verifier    Verifier
	concurrency int
	timeout     time.Duration
	logger      *zap.Logger
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(verifier Verifier, concurrency int, timeout time.Duration, logger *zap.Logger) *BatchProcessor {
	return &BatchProcessor{
		verifier:    verifier,
		concurrency: concurrency,
		timeout:     timeout,
		logger:      logging.OrNop(logger),
	}
}

// ProcessPrompts verifies prompts concurrently and returns results in input order
func (b *BatchProcessor) ProcessPrompts(ctx context.Context, prompts []string) []*PromptResult {
	if len(prompts) == 0 {
		return []*PromptResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	// Submit from a goroutine so results can be drained while the queue is full
	go func() {
		defer pool.Close()
		for i, p := range prompts {
			job := &PromptJob{Index: i, Prompt: p, Verifier: b.verifier, Timeout: b.timeout}
			if !pool.Submit(job) {
				return
			}
		}
	}()

	out := make([]*PromptResult, len(prompts))
	for r := range pool.Results() {
		pr := r.(*PromptResult)
		if pr.Error != nil {
			b.logger.Warn("prompt failed", zap.Int("index", pr.Index), zap.Error(pr.Error))
		} else {
			b.logger.Info("prompt verified", zap.Int("index", pr.Index), zap.String("verdict", string(pr.Result.Verdict)))
		}
		out[pr.Index] = pr
	}

	// Prompts the pool never ran (batch deadline, cancellation) still get a result
	for i, pr := range out {
		if pr != nil {
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = errors.New("prompt was not processed")
		}
		out[i] = &PromptResult{Index: i, Prompt: prompts[i], Error: fmt.Errorf("not verified: %w", err)}
		b.logger.Warn("prompt not verified", zap.Int("index", i), zap.Error(err))
	}

	return out
}

// ProcessFile reads prompts from a file and verifies them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*PromptResult, error) {
	prompts, err := ReadPromptsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}

	return b.ProcessPrompts(ctx, prompts), nil
}

// ReadPromptsFromFile reads prompts from a file, one per line.
// Blank lines and '#' comments are skipped; duplicates are dropped.
func ReadPromptsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var prompts []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			prompts = append(prompts, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return prompts, nil
}
