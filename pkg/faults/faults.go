// Package faults contains panics raised by background work.
//
// Request handlers are protected by the pipeline's Recover stage. Work that
// runs outside a request (store sweeps, file watchers, cleanup loops) runs
// through a Guard instead, which logs the panic and then applies the
// configured Policy: keep the process running, or exit so a supervisor can
// restart it.
package faults

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Policy decides what happens after a background panic is logged.
type Policy int

const (
	// Continue logs the fault and keeps the process running.
	Continue Policy = iota
	// Exit logs the fault and terminates the process with status 1.
	Exit
)

func (p Policy) String() string {
	if p == Exit {
		return "exit"
	}
	return "continue"
}

// ParsePolicy maps "continue" or "exit" to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "continue":
		return Continue, nil
	case "exit":
		return Exit, nil
	default:
		return Continue, fmt.Errorf("faults: unknown policy %q", s)
	}
}

// Guard runs background work and contains its panics.
type Guard struct {
	policy  Policy
	logger  zerolog.Logger
	onFault func(name string)
	exit    func(code int)
	wg      sync.WaitGroup
}

// Option configures a Guard.
type Option func(*Guard)

// WithFaultHook is called with the task name after every recovered panic.
func WithFaultHook(fn func(name string)) Option {
	return func(g *Guard) {
		g.onFault = fn
	}
}

// WithExitFunc replaces os.Exit. Used by tests.
func WithExitFunc(fn func(code int)) Option {
	return func(g *Guard) {
		g.exit = fn
	}
}

// NewGuard creates a Guard applying policy.
func NewGuard(policy Policy, logger zerolog.Logger, opts ...Option) *Guard {
	g := &Guard{
		policy:  policy,
		logger:  logger,
		onFault: func(string) {},
		exit:    os.Exit,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Policy returns the configured policy.
func (g *Guard) Policy() Policy {
	return g.policy
}

// Go runs fn in a new goroutine under the guard.
func (g *Guard) Go(name string, fn func()) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.Do(name, fn)
	}()
}

// Do runs fn under the guard in the calling goroutine.
func (g *Guard) Do(name string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			g.fault(name, rec)
		}
	}()
	fn()
}

// Wait blocks until every goroutine started with Go has returned.
func (g *Guard) Wait() {
	g.wg.Wait()
}

func (g *Guard) fault(name string, rec any) {
	ev := g.logger.Error()
	if err, ok := rec.(error); ok {
		ev = ev.Err(err)
	} else {
		ev = ev.Interface("panic", rec)
	}
	ev.Str("task", name).
		Str("policy", g.policy.String()).
		Bytes("stack", debug.Stack()).
		Msg("background task panicked")

	g.onFault(name)

	if g.policy == Exit {
		g.exit(1)
	}
}
