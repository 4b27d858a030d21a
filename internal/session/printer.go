package session

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"

	"github.com/shakram02/go-chatdb/internal/catalog"
	"github.com/shakram02/go-chatdb/internal/config"
	chatdberrors "github.com/shakram02/go-chatdb/internal/errors"
)

const spinnerDelay = 100 * time.Millisecond

// Printer writes everything the session shows to the user.
type Printer struct {
	out      io.Writer
	progress io.Writer
	bold     *color.Color
	spinner  bool
}

// NewPrinter returns a printer writing to out. Progress spinners go to
// progress, which may be nil to disable them.
func NewPrinter(out, progress io.Writer, cfg config.TerminalConfig) *Printer {
	bold := color.New(color.Bold)
	if !cfg.Color {
		bold.DisableColor()
	}
	return &Printer{
		out:      out,
		progress: progress,
		bold:     bold,
		spinner:  cfg.Spinner && progress != nil,
	}
}

// Heading prints a bold line preceded by a blank line.
func (p *Printer) Heading(format string, args ...any) {
	fmt.Fprintln(p.out)
	p.bold.Fprintln(p.out, fmt.Sprintf(format, args...))
}

// Info prints one line.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Block prints preformatted text, ending it with a newline.
func (p *Printer) Block(text string) {
	fmt.Fprint(p.out, text)
	if !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(p.out)
	}
}

// List prints items as a dashed list.
func (p *Printer) List(items []string) {
	for _, item := range items {
		fmt.Fprintf(p.out, " - %s\n", item)
	}
}

// Error prints an error with its suggestions.
func (p *Printer) Error(err error) {
	fmt.Fprintf(p.out, "Error: %v\n", err)
	for _, s := range chatdberrors.Suggestions(err) {
		fmt.Fprintf(p.out, "  %s\n", s)
	}
}

// Query prints a generated query.
func (p *Printer) Query(n int, q catalog.Query) {
	if n > 0 {
		p.bold.Fprintln(p.out, fmt.Sprintf("%d. %s:", n, q.Title))
	} else {
		p.bold.Fprintln(p.out, q.Title+":")
	}
	fmt.Fprintln(p.out, q.Description)
	if q.Store == catalog.StoreDocument {
		fmt.Fprintf(p.out, "Query (%s on %s):\n%s\n", q.Op, q.Target, q.Statement)
	} else {
		fmt.Fprintf(p.out, "Query:\n%s\n", q.Statement)
	}
	if len(q.Args) > 0 {
		args := make([]string, len(q.Args))
		for i, a := range q.Args {
			args[i] = FormatValue(a)
		}
		fmt.Fprintf(p.out, "Parameters: %s\n", strings.Join(args, ", "))
	}
	fmt.Fprintln(p.out)
}

// Result prints rows as an aligned table.
func (p *Printer) Result(res *catalog.Result) {
	if res.Empty() {
		p.Info("The query executed successfully but returned no results.")
		return
	}

	p.Heading("Query Results:")
	tw := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(res.Columns, "\t"))
	rule := make([]string, len(res.Columns))
	for i, c := range res.Columns {
		rule[i] = strings.Repeat("-", len(c))
	}
	fmt.Fprintln(tw, strings.Join(rule, "\t"))
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = FormatValue(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
	p.Info("(%d %s)", len(res.Rows), plural(len(res.Rows), "row", "rows"))
}

// Spin starts a progress spinner and returns the function stopping it.
func (p *Printer) Spin(message string) func() {
	if !p.spinner {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], spinnerDelay, spinner.WithWriter(p.progress))
	s.Suffix = " " + message
	s.Start()
	return s.Stop
}

// FormatValue renders one result cell.
func FormatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case string:
		return v
	case []byte:
		return string(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
