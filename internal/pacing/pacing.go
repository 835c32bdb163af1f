package pacing

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Range is a closed [Min, Max] interval a pause is drawn from.
type Range struct {
	Min time.Duration
	Max time.Duration
}

func Between(min, max time.Duration) Range {
	return Range{Min: min, Max: max}
}

func (r Range) Validate() error {
	if r.Min < 0 {
		return fmt.Errorf("min %v is negative", r.Min)
	}
	if r.Min > r.Max {
		return fmt.Errorf("min %v cannot be greater than max %v", r.Min, r.Max)
	}
	return nil
}

// Delays names every pause the scraper takes. It is built once from config
// and passed by value; nothing mutates it afterwards.
type Delays struct {
	PageLoad      Range
	Interaction   Range
	Transition    Range
	Login         Range
	LoginComplete Range
	TwoFactor     Range
	Retry         Range
	Typing        Range
}

func DefaultDelays() Delays {
	return Delays{
		PageLoad:      Between(3*time.Second, 6*time.Second),
		Interaction:   Between(1*time.Second, 2*time.Second),
		Transition:    Between(3*time.Second, 7*time.Second),
		Login:         Between(2*time.Second, 4*time.Second),
		LoginComplete: Between(3*time.Second, 6*time.Second),
		TwoFactor:     Between(8*time.Second, 15*time.Second),
		Retry:         Between(5*time.Second, 10*time.Second),
		Typing:        Between(50*time.Millisecond, 150*time.Millisecond),
	}
}

func (d Delays) Validate() error {
	named := []struct {
		name string
		r    Range
	}{
		{"page_load", d.PageLoad},
		{"interaction", d.Interaction},
		{"transition", d.Transition},
		{"login", d.Login},
		{"login_complete", d.LoginComplete},
		{"two_factor", d.TwoFactor},
		{"retry", d.Retry},
		{"typing", d.Typing},
	}
	for _, n := range named {
		if err := n.r.Validate(); err != nil {
			return fmt.Errorf("delay %s: %w", n.name, err)
		}
	}
	return nil
}

// Pacer blocks for a duration drawn from a range. Pause returns early with
// the context error when ctx is done.
type Pacer interface {
	Pause(ctx context.Context, r Range) error
}

type RandomPacer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomPacer() *RandomPacer {
	return &RandomPacer{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *RandomPacer) Pause(ctx context.Context, r Range) error {
	delay := p.Sample(r)
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Sample draws a uniformly distributed delay from r.
func (p *RandomPacer) Sample(r Range) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	delta := r.Max - r.Min
	return r.Min + time.Duration(p.rng.Int63n(int64(delta)+1))
}

type instant struct{}

func (instant) Pause(ctx context.Context, _ Range) error {
	return ctx.Err()
}

// Instant never sleeps. Tests and offline replays use it.
var Instant Pacer = instant{}

// Recorder is an instant Pacer that remembers every requested range.
type Recorder struct {
	mu     sync.Mutex
	Pauses []Range
}

func (r *Recorder) Pause(ctx context.Context, rng Range) error {
	r.mu.Lock()
	r.Pauses = append(r.Pauses, rng)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *Recorder) Count(rng Range) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.Pauses {
		if p == rng {
			n++
		}
	}
	return n
}
