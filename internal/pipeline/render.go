package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/veritas/internal/ensemble"
	"github.com/ppiankov/veritas/internal/model"
)

// Renderer writes verification results as JSON, Markdown and terminal summaries
type Renderer struct {
	includeFooter bool
	includeText   bool
}

// NewRenderer creates a renderer from the output settings
func NewRenderer(cfg model.OutputConfig) *Renderer {
	return &Renderer{
		includeFooter: cfg.IncludeFooter,
		includeText:   cfg.IncludeText,
	}
}

// Render writes the requested report files and prints a summary to w
func (r *Renderer) Render(res *model.Result, jsonPath, mdPath string, w io.Writer, verbose bool) error {
	if jsonPath != "" {
		if err := r.RenderJSON(res, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			fmt.Fprintf(w, "✓ Wrote JSON: %s\n", jsonPath)
		}
	}

	if mdPath != "" {
		if err := writeFile(mdPath, []byte(r.Markdown(res))); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			fmt.Fprintf(w, "✓ Wrote Markdown: %s\n", mdPath)
		}
	}

	r.RenderSummary(w, res)
	return nil
}

// RenderJSON writes the result as indented JSON
func (r *Renderer) RenderJSON(res *model.Result, path string) error {
	out := *res
	if !r.includeText {
		out.Text = ""
	}
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(path, append(data, '\n'))
}

// Markdown renders the result as a Markdown report
func (r *Renderer) Markdown(res *model.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Verification Report: %s\n\n", res.Verdict)
	fmt.Fprintf(&b, "- Request: `%s`\n", res.RequestID)
	fmt.Fprintf(&b, "- Checked: %s\n", res.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- Duration: %s\n", res.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "- Stage: %s\n\n", res.Stage)

	b.WriteString("## Explanation\n\n")
	b.WriteString(res.Explanation)
	b.WriteString("\n\n")

	if res.Error != "" {
		fmt.Fprintf(&b, "**Error:** %s\n\n", res.Error)
	}

	if len(res.Claims) > 0 {
		b.WriteString("## Claims\n\n")
	}
	for i, cv := range res.Claims {
		fmt.Fprintf(&b, "### %d. %s\n\n", i+1, cv.Label)
		fmt.Fprintf(&b, "> %s\n\n", cv.Claim.Text)

		if cv.Skipped {
			b.WriteString("_Skipped: the request deadline was reached before this claim was classified._\n\n")
			continue
		}

		fmt.Fprintf(&b, "Tally: %s (confidence %.2f)\n\n", ensemble.Summary(cv.Tally), cv.Confidence)

		if len(cv.Votes) > 0 {
			b.WriteString("| Classifier | Vote | Weight | Confidence | Note |\n")
			b.WriteString("|---|---|---|---|---|\n")
			for _, v := range cv.Votes {
				note := v.Error
				if note == "" {
					note = v.Reason
				}
				fmt.Fprintf(&b, "| %s | %s | %d | %.2f | %s |\n", v.Source, v.Label, v.Weight, v.Confidence, escapeCell(note))
			}
			b.WriteString("\n")
		}

		if len(cv.Evidence) > 0 {
			b.WriteString("Evidence:\n\n")
			for _, ev := range cv.Evidence {
				switch {
				case ev.URL == "":
					fmt.Fprintf(&b, "- %s\n", truncateText(ev.Text, 240))
				default:
					fmt.Fprintf(&b, "- [%s](%s) (%s, %s): %s\n", hostOrURL(ev), ev.URL, ev.Origin, ev.Authority, truncateText(ev.Text, 240))
				}
			}
			b.WriteString("\n")
		}
	}

	if len(res.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range res.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("\n")
	}

	if r.includeText && res.Text != "" {
		b.WriteString("## Analysed Text\n\n```\n")
		b.WriteString(res.Text)
		b.WriteString("\n```\n\n")
	}

	if r.includeFooter {
		b.WriteString("---\n\n")
		b.WriteString("_Verdicts are a weighted vote of automated classifiers over web evidence. They can be wrong; check the sources._\n")
	}

	return b.String()
}

// RenderSummary prints a short overview of the result
func (r *Renderer) RenderSummary(w io.Writer, res *model.Result) {
	fmt.Fprintf(w, "\nVerdict: %s\n", res.Verdict)
	if res.Explanation != "" {
		fmt.Fprintf(w, "%s\n", res.Explanation)
	}

	if len(res.Claims) > 0 {
		fmt.Fprintln(w)
		for i, cv := range res.Claims {
			fmt.Fprintf(w, "  %d. [%s] %s\n", i+1, cv.Label, truncateText(cv.Claim.Text, 100))
		}
	}

	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "⚠ %s\n", warn)
	}
	if res.Error != "" {
		fmt.Fprintf(w, "✗ %s\n", res.Error)
	}
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func hostOrURL(ev model.Evidence) string {
	if ev.Host != "" {
		return ev.Host
	}
	return ev.URL
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return truncateText(s, 120)
}

func truncateText(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
