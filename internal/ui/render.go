package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

// RepoRow is one line of `amanhub repo list`.
type RepoRow struct {
	Alias   string
	Branch  string
	Status  string
	LastRun time.Time
	NextRun time.Time
}

// RunRow is one line of refresh run history.
type RunRow struct {
	StartedAt time.Time
	Duration  time.Duration
	Changed   bool
	Error     string
}

// Renderer writes CLI output with optional color.
type Renderer struct {
	out    io.Writer
	styles Styles
}

// NewRenderer creates a renderer. Color is disabled when noColor is set,
// NO_COLOR is present, or out is not a terminal.
func NewRenderer(out io.Writer, noColor bool) *Renderer {
	plain := noColor || DetectNoColor() || !IsTTY(out)
	return &Renderer{out: out, styles: GetStyles(plain)}
}

// RepoTable renders the tracked-repository overview.
func (r *Renderer) RepoTable(rows []RepoRow) {
	if len(rows) == 0 {
		fmt.Fprintln(r.out, r.styles.Dim.Render("no repositories tracked"))
		return
	}

	fmt.Fprintln(r.out, r.styles.Header.Render(
		fmt.Sprintf("%-20s %-16s %-10s %-20s %-20s", "ALIAS", "BRANCH", "STATUS", "LAST REFRESH", "NEXT REFRESH")))
	for _, row := range rows {
		fmt.Fprintf(r.out, "%-20s %-16s %s %-20s %-20s\n",
			row.Alias, row.Branch,
			r.renderStatus(row.Status),
			formatTime(row.LastRun), formatTime(row.NextRun))
	}
}

// StatusDetail renders one repository's state plus its recent runs.
func (r *Renderer) StatusDetail(row RepoRow, commitHashes map[string]string, runs []RunRow) {
	label := r.styles.Label.Render
	fmt.Fprintf(r.out, "%s %s\n", label("alias:"), row.Alias)
	fmt.Fprintf(r.out, "%s %s\n", label("branch:"), row.Branch)
	fmt.Fprintf(r.out, "%s %s\n", label("status:"), r.renderStatus(row.Status))
	fmt.Fprintf(r.out, "%s %s\n", label("last refresh:"), formatTime(row.LastRun))
	fmt.Fprintf(r.out, "%s %s\n", label("next refresh:"), formatTime(row.NextRun))
	for repo, hash := range commitHashes {
		short := hash
		if len(short) > 12 {
			short = short[:12]
		}
		fmt.Fprintf(r.out, "%s %s @ %s\n", label("commit:"), repo, short)
	}

	if len(runs) == 0 {
		return
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, r.styles.Header.Render("recent runs"))
	for _, run := range runs {
		outcome := r.styles.Success.Render("ok")
		if run.Error != "" {
			outcome = r.styles.Error.Render("failed: " + run.Error)
		}
		changed := ""
		if run.Changed {
			changed = " changed"
		}
		fmt.Fprintf(r.out, "  %s  %-8s%s  %s\n",
			formatTime(run.StartedAt), run.Duration.Round(time.Millisecond), changed, outcome)
	}
}

// Success prints a success line.
func (r *Renderer) Success(format string, args ...interface{}) {
	fmt.Fprintln(r.out, r.styles.Success.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error line.
func (r *Renderer) Error(format string, args ...interface{}) {
	fmt.Fprintln(r.out, r.styles.Error.Render(fmt.Sprintf(format, args...)))
}

func (r *Renderer) renderStatus(status string) string {
	padded := fmt.Sprintf("%-10s", status)
	switch strings.ToLower(status) {
	case "completed":
		return r.styles.Success.Render(padded)
	case "failed":
		return r.styles.Error.Render(padded)
	case "running":
		return r.styles.Warning.Render(padded)
	default:
		return r.styles.Dim.Render(padded)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// IsTTY reports whether the writer is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor reports whether NO_COLOR is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI reports whether we are running under a CI system.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
