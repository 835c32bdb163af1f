package login

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
)

// Signal is an operator confirmation the state machine blocks on, such as
// "2FA done" or "I signed in by hand". Wait returns nil once confirmed and
// the context error when cancelled first.
type Signal interface {
	Wait(ctx context.Context) error
}

// SignalFunc adapts a function to Signal
type SignalFunc func(ctx context.Context) error

func (f SignalFunc) Wait(ctx context.Context) error { return f(ctx) }

// Signals groups the confirmations the machine may need
type Signals struct {
	TwoFactor Signal
	Manual    Signal
}

// ChannelSignal is confirmed programmatically through Fire. A Fire that
// happens before Wait is remembered.
type ChannelSignal struct {
	ch chan struct{}
}

func NewChannelSignal() *ChannelSignal {
	return &ChannelSignal{ch: make(chan struct{}, 1)}
}

// Fire confirms the signal. It never blocks; repeated fires collapse into one.
func (s *ChannelSignal) Fire() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Reset forgets a confirmation nobody waited for.
func (s *ChannelSignal) Reset() {
	select {
	case <-s.ch:
	default:
	}
}

func (s *ChannelSignal) Wait(ctx context.Context) error {
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PromptSignal prints a prompt and waits for the operator to press Enter.
// A closed input counts as confirmation, so non-interactive runs do not hang.
type PromptSignal struct {
	in     io.Reader
	out    io.Writer
	prompt string

	once  sync.Once
	lines chan struct{}
}

func NewPromptSignal(in io.Reader, out io.Writer, prompt string) *PromptSignal {
	return &PromptSignal{in: in, out: out, prompt: prompt, lines: make(chan struct{})}
}

func (s *PromptSignal) read() {
	r := bufio.NewReader(s.in)
	for {
		_, err := r.ReadString('\n')
		if err != nil {
			close(s.lines)
			return
		}
		s.lines <- struct{}{}
	}
}

func (s *PromptSignal) Wait(ctx context.Context) error {
	s.once.Do(func() { go s.read() })

	if s.prompt != "" {
		fmt.Fprint(s.out, s.prompt)
	}

	select {
	case <-s.lines:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
