package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// replPrompt is printed before every line read.
const replPrompt = "> "

// RunREPL reads utterances from in, one per line, and writes each reply to
// out. A single slot-filling session spans the whole conversation. It
// returns when in is exhausted, the user types "exit" or "quit", or ctx is
// done.
func (a *App) RunREPL(ctx context.Context, in io.Reader, out io.Writer) error {
	sess := a.exec.NewSession()
	sc := bufio.NewScanner(in)

	for {
		if _, err := io.WriteString(out, replPrompt); err != nil {
			return fmt.Errorf("app: repl: %w", err)
		}
		if !sc.Scan() {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil
		}

		line := strings.TrimSpace(sc.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		reply := sess.Handle(ctx, line)
		if _, err := fmt.Fprintln(out, reply.Text()); err != nil {
			return fmt.Errorf("app: repl: %w", err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("app: repl: read input: %w", err)
	}
	return nil
}
