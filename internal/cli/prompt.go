package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
)

// LinerPrompter asks confirmation questions on the terminal.
type LinerPrompter struct {
	state *liner.State
	owned bool
	out   io.Writer
}

// NewLinerPrompter creates a prompter that opens the terminal on the first
// question. Close releases it.
func NewLinerPrompter(out io.Writer) *LinerPrompter {
	return &LinerPrompter{out: out, owned: true}
}

// sharedPrompter asks questions through a liner state owned by the shell.
func sharedPrompter(state *liner.State, out io.Writer) *LinerPrompter {
	return &LinerPrompter{state: state, out: out}
}

// Confirm implements store.Prompter. An aborted prompt or end of input
// counts as no.
func (p *LinerPrompter) Confirm(ctx context.Context, question string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if p.state == nil {
		p.state = liner.NewLiner()
		p.state.SetCtrlCAborts(true)
	}

	answer, err := p.state.Prompt(question + " (yes/no): ")
	if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
		fmt.Fprintln(p.out)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading answer: %w", err)
	}
	return IsYes(answer), nil
}

// Close restores the terminal if this prompter opened it.
func (p *LinerPrompter) Close() {
	if p.owned && p.state != nil {
		_ = p.state.Close()
		p.state = nil
	}
}

// IsYes reports whether an answer means yes. Spanish answers are accepted.
func IsYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes", "s", "si", "sí":
		return true
	}
	return false
}
