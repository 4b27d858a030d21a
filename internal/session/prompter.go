package session

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
)

// Prompter reads one line of user input per call. It returns io.EOF when
// there is no more input.
type Prompter interface {
	Prompt(label string) (string, error)
	PromptPassword(label string) (string, error)
	AppendHistory(line string)
	Close() error
}

// NewPrompter picks a line editor when stdin is a capable terminal, and a
// plain line reader otherwise. Piped input is echoed so transcripts stay
// readable.
func NewPrompter(in *os.File, out io.Writer) Prompter {
	if !isatty.IsTerminal(in.Fd()) {
		return NewLinePrompter(in, out, true)
	}
	if !liner.TerminalSupported() {
		return NewLinePrompter(in, out, false)
	}
	return NewInteractivePrompter()
}

// interactive prompts with history and line editing.
type interactive struct {
	line *liner.State
}

// NewInteractivePrompter returns a liner backed prompter. Ctrl-C aborts the
// current prompt and ends input.
func NewInteractivePrompter() Prompter {
	i := &interactive{line: liner.NewLiner()}
	i.line.SetCtrlCAborts(true)
	return i
}

func (i *interactive) Prompt(label string) (string, error) {
	s, err := i.line.Prompt(label)
	return s, linerError(err)
}

func (i *interactive) PromptPassword(label string) (string, error) {
	s, err := i.line.PasswordPrompt(label)
	return s, linerError(err)
}

func (i *interactive) AppendHistory(line string) {
	if strings.TrimSpace(line) != "" {
		i.line.AppendHistory(line)
	}
}

func (i *interactive) Close() error {
	return i.line.Close()
}

func linerError(err error) error {
	if errors.Is(err, liner.ErrPromptAborted) {
		return io.EOF
	}
	return err
}

// lineReader blindly reads newline terminated input.
type lineReader struct {
	in   *bufio.Reader
	out  io.Writer
	echo bool
}

// NewLinePrompter returns a prompter reading lines from r and writing labels
// to w. With echo set, every answer is written back after its label; password
// answers are replaced by an empty line.
func NewLinePrompter(r io.Reader, w io.Writer, echo bool) Prompter {
	return &lineReader{in: bufio.NewReader(r), out: w, echo: echo}
}

func (l *lineReader) Prompt(label string) (string, error) {
	line, err := l.read(label)
	if err != nil {
		return "", err
	}
	if l.echo {
		fmt.Fprintln(l.out, line)
	}
	return line, nil
}

func (l *lineReader) PromptPassword(label string) (string, error) {
	line, err := l.read(label)
	if err != nil {
		return "", err
	}
	if l.echo {
		fmt.Fprintln(l.out)
	}
	return line, nil
}

func (l *lineReader) read(label string) (string, error) {
	fmt.Fprint(l.out, label)
	line, err := l.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		if l.echo {
			fmt.Fprintln(l.out)
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (l *lineReader) AppendHistory(string) {}

func (l *lineReader) Close() error { return nil }
