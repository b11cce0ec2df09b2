// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"nickandperla.net/tagx/internal/eval"
)

const (
	prompt     = ">>> "
	contPrompt = "... "
)

func newReplCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Render lines interactively in one persistent request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, _, err := g.runtime(cmd)
			if err != nil {
				return err
			}
			defer r.Close()
			session, err := r.NewSession(cmd.Context())
			if err != nil {
				return err
			}
			if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
				return runRawREPL(f, cmd.OutOrStdout(), session)
			}
			return runBasicREPL(cmd.InOrStdin(), cmd.OutOrStdout(), session)
		},
	}
}

// lineReader yields one logical input per call. A line ending in a
// backslash continues on the next line.
type lineReader interface {
	ReadLine() (string, error)
	SetPrompt(string)
}

func readInput(lr lineReader) (string, error) {
	var buf strings.Builder
	lr.SetPrompt(prompt)
	for {
		line, err := lr.ReadLine()
		if err != nil {
			return "", err
		}
		line = strings.TrimRight(line, "\r\n")
		if strings.HasSuffix(line, "\\") {
			buf.WriteString(strings.TrimSuffix(line, "\\"))
			buf.WriteString("\n")
			lr.SetPrompt(contPrompt)
			continue
		}
		buf.WriteString(line)
		return buf.String(), nil
	}
}

// evalLine renders input in the session and writes the output or error.
func evalLine(w io.Writer, session *eval.Request, input string) {
	if strings.TrimSpace(input) == "" {
		return
	}
	out, err := session.Render(input)
	if out != "" {
		fmt.Fprintln(w, out)
	}
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
	}
}

// basicReader reads lines from a non-terminal input, echoing the prompt.
type basicReader struct {
	r      *bufio.Reader
	w      io.Writer
	prompt string
}

func (b *basicReader) SetPrompt(p string) { b.prompt = p }

func (b *basicReader) ReadLine() (string, error) {
	fmt.Fprint(b.w, b.prompt)
	line, err := b.r.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return line, nil
}

// runBasicREPL handles piped input.
func runBasicREPL(in io.Reader, out io.Writer, session *eval.Request) error {
	lr := &basicReader{r: bufio.NewReader(in), w: out}
	for {
		input, err := readInput(lr)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return err
		}
		evalLine(out, session, input)
	}
}

// runRawREPL puts the terminal in raw mode and uses its line editor.
func runRawREPL(in *os.File, out io.Writer, session *eval.Request) error {
	fd := int(in.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set raw mode: %v\n", err)
		return runBasicREPL(in, out, session)
	}
	defer term.Restore(fd, oldState)

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{in, out}, prompt)
	if width, height, err := term.GetSize(fd); err == nil {
		_ = t.SetSize(width, height)
	}
	fmt.Fprintln(t, "tagx REPL (Ctrl+D to exit, end a line with \\ to continue)")
	for {
		input, err := readInput(t)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(t)
			return nil
		}
		if err != nil {
			return err
		}
		evalLine(t, session, input)
	}
}
