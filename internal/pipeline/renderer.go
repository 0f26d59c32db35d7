package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/ppiankov/surveyfill/internal/model"
)

// Renderer writes fill reports and filled pages
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// SummaryLine is the one-line result shown in the terminal and the browser banner
func SummaryLine(s model.Summary) string {
	return fmt.Sprintf("Auto-selected %d/%d questions", s.Changed, s.Total)
}

// RenderJSON writes the report as indented JSON
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes a human-readable report
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeFile(path, []byte(r.Markdown(report)))
}

// Markdown formats the report as Markdown
func (r *Renderer) Markdown(report *model.Report) string {
	var b strings.Builder

	title := report.Subject
	if title == "" {
		title = report.Source
	}
	fmt.Fprintf(&b, "# Survey fill: %s\n\n", title)
	fmt.Fprintf(&b, "- **Source:** %s\n", report.Source)
	fmt.Fprintf(&b, "- **Run:** `%s`\n", report.RunID)
	if report.Trigger != "" {
		fmt.Fprintf(&b, "- **Trigger:** %s\n", report.Trigger)
	}
	fmt.Fprintf(&b, "- **Filled at:** %s\n", report.FilledAt.Format("2006-01-02 15:04:05 MST"))
	if report.FetchMeta != nil {
		fmt.Fprintf(&b, "- **HTTP status:** %d", report.FetchMeta.StatusCode)
		if report.FetchMeta.FromCache {
			b.WriteString(" (cached)")
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\n**%s**", SummaryLine(report.Summary))
	if report.Summary.Fallbacks > 0 {
		fmt.Fprintf(&b, ", %d by fallback", report.Summary.Fallbacks)
	}
	if report.Summary.Skipped > 0 {
		fmt.Fprintf(&b, ", %d skipped", report.Summary.Skipped)
	}
	b.WriteString("\n\n")

	if len(report.Questions) == 0 {
		b.WriteString("No radio questions found on the page.\n")
	}

	for i, q := range report.Questions {
		fmt.Fprintf(&b, "## %d. `%s`\n\n", i+1, q.ID)
		if q.Skipped {
			b.WriteString("Skipped: no options.\n\n")
			continue
		}

		b.WriteString("| | Option | Score | Matched | Vetoed |\n")
		b.WriteString("|---|---|---:|---|---|\n")
		for j, o := range q.Options {
			mark := ""
			if j == q.Winner {
				mark = "✓"
			}
			text := o.Text
			if text == "" {
				text = "_(no text)_"
			}
			score := fmt.Sprintf("%d", o.Score)
			if o.Bonus {
				score += " (+bonus)"
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				mark, escapeCell(text), score,
				escapeCell(strings.Join(o.Matched, ", ")),
				escapeCell(strings.Join(o.Vetoed, ", ")))
		}
		b.WriteString("\n")

		switch {
		case q.Fallback:
			b.WriteString("Every option was vetoed; the first option was chosen.\n\n")
		case !q.Changed:
			b.WriteString("Already selected.\n\n")
		}
	}

	if r.includeFooter {
		b.WriteString("---\n\n")
		b.WriteString("_Generated by surveyfill. Scores are keyword weights; a vetoed option scores -999._\n")
	}

	return b.String()
}

// RenderSummary prints a per-question table followed by the summary line
func (r *Renderer) RenderSummary(w io.Writer, report *model.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Question", "Selected", "Score", "Status"})

	for i, q := range report.Questions {
		status := "unchanged"
		switch {
		case q.Skipped:
			status = "skipped"
		case q.Fallback && q.Changed:
			status = "fallback"
		case q.Changed:
			status = "changed"
		}
		t.AppendRow(table.Row{i + 1, q.ID, truncate(q.WinnerText, 48), q.Score, status})
	}

	t.AppendFooter(table.Row{"", "", SummaryLine(report.Summary), "", ""})
	t.Render()
}

// WriteHTML writes a filled page
func (r *Renderer) WriteHTML(path string, content string) error {
	return writeFile(path, []byte(content))
}

// writeFile writes via a temporary file in the same directory and renames it into place
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
