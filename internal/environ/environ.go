// Package environ isolates the interactive and filesystem side effects the
// commands need, so the orchestration can run against a fake in tests.
package environ

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/meyer/rwb/internal/errors"
)

// Environment is the capability set handed to the commands.
type Environment interface {
	// Confirm asks a yes/no question. An empty answer selects def.
	Confirm(prompt string, def bool) (bool, error)
	// ScopedTempDir creates a fresh directory. Calling release removes it;
	// release is safe to call more than once.
	ScopedTempDir(prefix string) (dir string, release func() error, err error)
}

// Terminal is the real Environment backed by the process's stdio.
type Terminal struct {
	In  io.Reader
	Out io.Writer
	// AssumeYes answers every prompt with yes without reading input.
	AssumeYes bool
	// TempRoot is the parent for scoped temp dirs; empty uses os.TempDir.
	TempRoot string
}

// Confirm prompts with an interactive form on a TTY, otherwise it reads a
// single line.
func (t *Terminal) Confirm(prompt string, def bool) (bool, error) {
	if t.AssumeYes {
		fmt.Fprintf(t.Out, "%s %s\n", prompt, "y")
		return true, nil
	}

	if IsTerminal(t.In) && IsTerminal(t.Out) {
		answer := def
		err := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(prompt).
					Affirmative("Yes").
					Negative("No").
					Value(&answer),
			),
		).WithInput(t.In).WithOutput(t.Out).Run()
		if err != nil {
			return false, err
		}
		return answer, nil
	}

	fmt.Fprint(t.Out, prompt+" ")
	line, err := bufio.NewReader(t.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	return ParseAnswer(line, def), nil
}

// ParseAnswer interprets a typed answer. Anything but an empty line or a
// form of yes counts as no.
func ParseAnswer(line string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
		return def
	case "y", "yes":
		return true
	default:
		return false
	}
}

// ScopedTempDir creates a temp directory under TempRoot.
func (t *Terminal) ScopedTempDir(prefix string) (string, func() error, error) {
	return scopedTempDir(t.TempRoot, prefix)
}

func scopedTempDir(root, prefix string) (string, func() error, error) {
	dir, err := os.MkdirTemp(root, prefix+"*")
	if err != nil {
		return "", nil, errors.WrapRuntime(err, errors.ErrCodeTempDir, "cannot create temporary directory")
	}

	var once sync.Once
	var rerr error
	release := func() error {
		once.Do(func() { rerr = os.RemoveAll(dir) })
		return rerr
	}
	return dir, release, nil
}

// IsTerminal reports whether v is an *os.File attached to a terminal.
func IsTerminal(v interface{}) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Fake is an Environment with canned answers that records its prompts.
type Fake struct {
	Answer   bool
	Err      error
	TempRoot string

	mu       sync.Mutex
	Prompts  []string
	Released []string
}

// Confirm records prompt and returns the canned answer.
func (f *Fake) Confirm(prompt string, def bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Prompts = append(f.Prompts, prompt)
	return f.Answer, f.Err
}

// ScopedTempDir creates a real directory and records its release.
func (f *Fake) ScopedTempDir(prefix string) (string, func() error, error) {
	dir, release, err := scopedTempDir(f.TempRoot, prefix)
	if err != nil {
		return "", nil, err
	}
	return dir, func() error {
		f.mu.Lock()
		f.Released = append(f.Released, dir)
		f.mu.Unlock()
		return release()
	}, nil
}
