package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lexlapax/recall/pkg/log"
	"github.com/peterh/liner"
)

// historyFile is the file where command history is stored, in the user's
// home directory.
const historyFile = ".recall_history"

// errAborted is returned when the user presses Ctrl-C at a prompt.
var errAborted = errors.New("input aborted")

// lineReader reads one line of user input at a time.
type lineReader interface {
	// ReadLine shows prompt and returns the next line. io.EOF ends input.
	ReadLine(prompt string) (string, error)

	// Remember adds a line to the history.
	Remember(line string)

	// Interactive reports whether a person is typing.
	Interactive() bool

	Close() error
}

func newInput(stdin bool) lineReader {
	if stdin {
		return newScannerInput(os.Stdin, os.Stdout)
	}
	return newLinerInput()
}

// linerInput is the interactive prompt with history and tab completion.
type linerInput struct {
	line        *liner.State
	historyPath string
}

func newLinerInput() *linerInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetMultiLineMode(false)
	line.SetCompleter(completeCommand)

	in := &linerInput{line: line}
	if home, err := os.UserHomeDir(); err == nil {
		in.historyPath = filepath.Join(home, historyFile)
		if f, err := os.Open(in.historyPath); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
	}
	return in
}

func (l *linerInput) ReadLine(prompt string) (string, error) {
	input, err := l.line.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", errAborted
	}
	return input, err
}

func (l *linerInput) Remember(line string) {
	l.line.AppendHistory(line)
}

func (l *linerInput) Interactive() bool {
	return true
}

func (l *linerInput) Close() error {
	if l.historyPath != "" {
		if f, err := os.Create(l.historyPath); err == nil {
			if _, err := l.line.WriteHistory(f); err != nil {
				log.Warn("Failed to save command history", "error", err)
			}
			f.Close()
		}
	}
	return l.line.Close()
}

// scannerInput reads commands from a pipe or file and echoes them so the
// transcript reads like an interactive session.
type scannerInput struct {
	scanner *bufio.Scanner
	echo    io.Writer
}

func newScannerInput(r io.Reader, echo io.Writer) *scannerInput {
	return &scannerInput{scanner: bufio.NewScanner(r), echo: echo}
}

func (s *scannerInput) ReadLine(prompt string) (string, error) {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	line := s.scanner.Text()
	fmt.Fprintf(s.echo, "%s%s\n", prompt, line)
	return line, nil
}

func (s *scannerInput) Remember(string) {}

func (s *scannerInput) Interactive() bool {
	return false
}

func (s *scannerInput) Close() error {
	return nil
}

// completeCommand offers every command that starts with the typed text.
func completeCommand(line string) (c []string) {
	for _, cmd := range commandNames {
		if strings.HasPrefix(cmd, line) {
			c = append(c, cmd)
		}
	}
	return
}
