package punch

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/klhsieh/punchd/internal/core/domain"
)

// Prompter asks the operator a question and returns the raw answer.
type Prompter interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// StdinPrompter reads answers from standard input.
type StdinPrompter struct {
	in *bufio.Reader
}

func NewStdinPrompter() *StdinPrompter {
	return &StdinPrompter{in: bufio.NewReader(os.Stdin)}
}

func (p *StdinPrompter) Ask(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		ch <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return "", r.err
		}
		return strings.TrimSpace(r.line), nil
	}
}

// Gate decides whether a real, irreversible punch may proceed. The default
// answer is always no: a real click happens only on an explicit upfront
// confirmation or an exact "yes" typed at the prompt.
type Gate struct {
	prompter Prompter
	log      *slog.Logger
}

func NewGate(prompter Prompter, log *slog.Logger) *Gate {
	return &Gate{prompter: prompter, log: log}
}

// Authorize returns whether the action may run for real. A "q" or "quit"
// answer returns domain.ErrUserCancelled so the caller can distinguish an
// aborted run from a downgraded one.
func (g *Gate) Authorize(ctx context.Context, action domain.Action, interactive bool) (bool, error) {
	if !interactive {
		g.log.Warn("No operator available to confirm, refusing real action", "action", action.Label())
		return false, nil
	}

	prompt := fmt.Sprintf("About to perform a REAL %s. Type 'yes' to confirm, 'q' to abort: ", action.Label())
	answer, err := g.prompter.Ask(ctx, prompt)
	if err != nil {
		return false, fmt.Errorf("confirmation prompt: %w", err)
	}

	switch strings.ToLower(answer) {
	case "yes":
		g.log.Info("Operator confirmed real action", "action", action.Label())
		return true, nil
	case "q", "quit":
		g.log.Info("Operator aborted the run", "action", action.Label())
		return false, domain.ErrUserCancelled
	default:
		g.log.Info("Operator declined, downgrading to simulation", "action", action.Label(), "answer", answer)
		return false, nil
	}
}
