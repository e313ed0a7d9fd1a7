package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/veritas/internal/model"
)

// mockVerifier implements Verifier
type mockVerifier struct {
	fail  string // prompts containing this fail
	calls atomic.Int32
}

func (m *mockVerifier) VerifyPrompt(ctx context.Context, prompt string) *model.Result {
	m.calls.Add(1)
	time.Sleep(10 * time.Millisecond) // Simulate work

	if m.fail != "" && strings.Contains(prompt, m.fail) {
		return &model.Result{Verdict: model.LabelUncertain, Stage: model.StageFailed, Error: "boom"}
	}
	return &model.Result{Verdict: model.LabelFact, Stage: model.StageDone, Text: prompt}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp(t.TempDir(), "prompts")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}
	return tmpfile.Name()
}

func TestBatchProcessor_ProcessPrompts(t *testing.T) {
	verifier := &mockVerifier{}
	processor := NewBatchProcessor(verifier, 2, 0, nil)

	prompts := []string{"The Earth is round", "Water boils at 100C", "Vaccines cause autism", "The moon is cheese", "Bats are blind"}
	results := processor.ProcessPrompts(context.Background(), prompts)

	if len(results) != len(prompts) {
		t.Fatalf("expected %d results, got %d", len(prompts), len(results))
	}
	for i, res := range results {
		if res.Index != i || res.Prompt != prompts[i] {
			t.Errorf("result %d out of order: index %d prompt %q", i, res.Index, res.Prompt)
		}
		if res.Error != nil {
			t.Errorf("unexpected error for %q: %v", res.Prompt, res.Error)
		}
		if res.Result == nil || res.Result.Verdict != model.LabelFact {
			t.Errorf("expected FACT result for %q", res.Prompt)
		}
	}
	if n := verifier.calls.Load(); n != int32(len(prompts)) {
		t.Errorf("expected %d verifications, got %d", len(prompts), n)
	}
}

func TestBatchProcessor_FailedResultIsError(t *testing.T) {
	processor := NewBatchProcessor(&mockVerifier{fail: "bad"}, 2, 0, nil)

	results := processor.ProcessPrompts(context.Background(), []string{"good claim", "bad claim"})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].GetError() != nil {
		t.Errorf("expected no error for good claim, got %v", results[0].GetError())
	}
	if results[1].GetError() == nil || !strings.Contains(results[1].GetError().Error(), "boom") {
		t.Errorf("expected failure carrying boom, got %v", results[1].GetError())
	}
	if results[1].Result == nil {
		t.Error("expected the FAILED result to be kept for reporting")
	}
}

func TestBatchProcessor_ProcessPrompts_Empty(t *testing.T) {
	processor := NewBatchProcessor(&mockVerifier{}, 2, 0, nil)

	results := processor.ProcessPrompts(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

// deadlineVerifier reports whether it saw a deadline
type deadlineVerifier struct {
	sawDeadline atomic.Bool
}

func (d *deadlineVerifier) VerifyPrompt(ctx context.Context, prompt string) *model.Result {
	_, ok := ctx.Deadline()
	d.sawDeadline.Store(ok)
	return &model.Result{Verdict: model.LabelUncertain, Stage: model.StageDone}
}

func TestBatchProcessor_PerPromptTimeout(t *testing.T) {
	verifier := &deadlineVerifier{}
	processor := NewBatchProcessor(verifier, 1, time.Minute, nil)

	processor.ProcessPrompts(context.Background(), []string{"x"})
	if !verifier.sawDeadline.Load() {
		t.Error("expected the prompt context to carry the per-prompt deadline")
	}
}

// slowVerifier takes a fixed time per prompt and honours cancellation
type slowVerifier struct {
	delay time.Duration
}

func (v *slowVerifier) VerifyPrompt(ctx context.Context, prompt string) *model.Result {
	select {
	case <-time.After(v.delay):
		return &model.Result{Verdict: model.LabelFact, Stage: model.StageDone, Text: prompt}
	case <-ctx.Done():
		return &model.Result{Verdict: model.LabelUncertain, Stage: model.StageFailed, Error: ctx.Err().Error()}
	}
}

func TestBatchProcessor_DeadlineKeepsEveryPrompt(t *testing.T) {
	prompts := make([]string, 10)
	for i := range prompts {
		prompts[i] = fmt.Sprintf("claim %d", i)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	bp := NewBatchProcessor(&slowVerifier{delay: 30 * time.Millisecond}, 1, 0, nil)
	results := bp.ProcessPrompts(ctx, prompts)

	if len(results) != len(prompts) {
		t.Fatalf("expected %d results, got %d", len(prompts), len(results))
	}

	failed := 0
	for i, r := range results {
		if r == nil {
			t.Fatalf("result %d missing", i)
		}
		if r.Index != i || r.Prompt != prompts[i] {
			t.Errorf("result %d: expected index %d prompt %q, got %d %q", i, i, prompts[i], r.Index, r.Prompt)
		}
		if r.Error != nil {
			failed++
		}
	}
	if failed < 5 {
		t.Errorf("expected most prompts to miss the deadline, only %d failed", failed)
	}

	last := results[len(results)-1]
	if !errors.Is(last.Error, context.DeadlineExceeded) && !strings.Contains(fmt.Sprint(last.Error), "deadline") {
		t.Errorf("expected the last prompt to fail with the deadline, got %v", last.Error)
	}
}

func TestReadPromptsFromFile(t *testing.T) {
	content := `The Earth is flat
# comment
Drinking bleach cures COVID

   Bats are blind   `

	prompts, err := ReadPromptsFromFile(writeTemp(t, content))
	if err != nil {
		t.Fatalf("ReadPromptsFromFile failed: %v", err)
	}

	expected := []string{"The Earth is flat", "Drinking bleach cures COVID", "Bats are blind"}
	if len(prompts) != len(expected) {
		t.Fatalf("expected %d prompts, got %d", len(expected), len(prompts))
	}
	for i, p := range prompts {
		if p != expected[i] {
			t.Errorf("expected prompt %q at index %d, got %q", expected[i], i, p)
		}
	}
}

func TestReadPromptsFromFile_Deduplication(t *testing.T) {
	prompts, err := ReadPromptsFromFile(writeTemp(t, "same claim\nsame claim\n"))
	if err != nil {
		t.Fatalf("ReadPromptsFromFile failed: %v", err)
	}
	if len(prompts) != 1 {
		t.Errorf("expected 1 prompt after deduplication, got %d", len(prompts))
	}
}

func TestReadPromptsFromFile_NonExistent(t *testing.T) {
	if _, err := ReadPromptsFromFile("non_existent_file.txt"); err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	path := writeTemp(t, "claim one\nclaim two\n# comment\n\nclaim three\n")
	processor := NewBatchProcessor(&mockVerifier{}, 2, 0, nil)

	results, err := processor.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}

	if _, err := processor.ProcessFile(context.Background(), "no_such_file.txt"); err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestPromptResult_GetError(t *testing.T) {
	r := &PromptResult{Prompt: "x"}
	if r.GetError() != nil {
		t.Errorf("expected nil error, got %v", r.GetError())
	}
}
