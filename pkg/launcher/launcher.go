// Package launcher drives a browser to the udTest page, waits for the
// in-page test run to finish and turns its result into a process exit
// status.
//
// A run is strictly linear:
//
//	Idle → Navigating → Waiting → {Succeeded, TimedOut, Faulted} → TornDown → Exited
//
// Every path passes through TornDown: the browser session is closed before
// the status is returned, whichever way the wait ended.
package launcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

// FailureStatus is the exit status for every launcher-detected failure.
const FailureStatus = -1

// State is a step of a launcher run.
type State int

const (
	StateIdle State = iota
	StateNavigating
	StateWaiting
	StateSucceeded
	StateTimedOut
	StateFaulted
	StateTornDown
	StateExited
)

var stateNames = [...]string{
	StateIdle:       "idle",
	StateNavigating: "navigating",
	StateWaiting:    "waiting",
	StateSucceeded:  "succeeded",
	StateTimedOut:   "timed out",
	StateFaulted:    "faulted",
	StateTornDown:   "torn down",
	StateExited:     "exited",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Result is the outcome of a launcher run.
type Result struct {
	// Status is the process exit status to propagate.
	Status int
	// Output is the page log read after a successful wait.
	Output string
	// Trace lists every state entered, in order.
	Trace []State
}

// Final returns the last state entered.
func (r Result) Final() State {
	if len(r.Trace) == 0 {
		return StateIdle
	}
	return r.Trace[len(r.Trace)-1]
}

// Opener creates the Session for a selection.
type Opener func(ctx context.Context, sel Selection, cfg Config) (Session, error)

// Launcher runs the completion handshake against a page.
type Launcher struct {
	cfg    Config
	out    io.Writer
	logger *slog.Logger
	open   Opener
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithOutput sets where the page log and diagnostics are printed.
func WithOutput(w io.Writer) Option {
	return func(l *Launcher) {
		if w != nil {
			l.out = w
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Launcher) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithOpener replaces the backend factory used by Launch.
func WithOpener(open Opener) Option {
	return func(l *Launcher) {
		if open != nil {
			l.open = open
		}
	}
}

// New creates a Launcher for cfg.
func New(cfg Config, opts ...Option) *Launcher {
	l := &Launcher{
		cfg:    cfg,
		out:    os.Stdout,
		logger: slog.New(slog.NewTextHandler(os.Stderr, nil)),
		open:   Open,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Launch opens a session for sel and runs the handshake on it.
// A session that cannot be opened yields FailureStatus.
func (l *Launcher) Launch(ctx context.Context, sel Selection) Result {
	logger := l.logger.With("session", uuid.NewString(), "backend", string(sel.Backend))

	sess, err := l.open(ctx, sel, l.cfg)
	if err != nil {
		logger.Error("Failed to open browser session", "error", err)
		fmt.Fprintf(l.out, "Could not start %s: %v\n", sel.Backend, err)
		return Result{Status: FailureStatus, Trace: []State{StateIdle, StateExited}}
	}
	return l.run(ctx, sess, logger)
}

// Run executes the handshake on an already open session and closes it.
func (l *Launcher) Run(ctx context.Context, sess Session) Result {
	return l.run(ctx, sess, l.logger.With("session", uuid.NewString()))
}

func (l *Launcher) run(ctx context.Context, sess Session, logger *slog.Logger) (res Result) {
	res.Status = FailureStatus
	enter := func(s State) {
		res.Trace = append(res.Trace, s)
		logger.Debug("State changed", "state", s.String())
	}
	enter(StateIdle)

	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("Failed to close browser session", "error", err)
		}
		enter(StateTornDown)
		enter(StateExited)
		logger.Info("Run finished", "status", res.Status)
	}()

	url := l.cfg.URL()
	enter(StateNavigating)
	logger.Info("Navigating", "url", url)
	navCtx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	err := sess.Navigate(navCtx, url)
	cancel()
	if err != nil {
		// Surfaces as a timeout or fault in the wait below.
		logger.Warn("Navigation failed", "url", url, "error", err)
	}

	enter(StateWaiting)
	wr := sess.WaitForValue(ctx, l.cfg.OutputID, Contains(l.cfg.DoneMarker), l.cfg.Timeout)
	switch wr.Outcome {
	case WaitTimedOut:
		enter(StateTimedOut)
		fmt.Fprintln(l.out, "Loading took too much time!")
		logger.Error("Timed out waiting for test completion", "timeout", l.cfg.Timeout, "partial", wr.Text)
		return res
	case WaitFaulted:
		enter(StateFaulted)
		fmt.Fprintln(l.out, "Something went wrong!", wr.Err)
		logger.Error("Wait for test completion failed", "error", wr.Err)
		return res
	}
	enter(StateSucceeded)

	output, err := sess.Value(ctx, l.cfg.OutputID)
	if err != nil {
		logger.Error("Failed to read test output", "error", err)
		return res
	}
	res.Output = output
	fmt.Fprintln(l.out, output)

	res.Status = l.decide(ctx, sess, output, logger)
	return res
}

// decide maps the page log and exit variable onto a status. The failure
// marker wins over whatever the page reports.
func (l *Launcher) decide(ctx context.Context, sess Session, output string, logger *slog.Logger) int {
	if l.cfg.FailureMarker != "" && strings.Contains(output, l.cfg.FailureMarker) {
		logger.Info("Failure marker found in test output", "marker", l.cfg.FailureMarker)
		return FailureStatus
	}
	v, err := sess.Eval(ctx, l.cfg.ExitVar)
	if err != nil {
		logger.Error("Failed to read exit status", "var", l.cfg.ExitVar, "error", err)
		return FailureStatus
	}
	status, err := ExitStatusFrom(v)
	if err != nil {
		logger.Error("Invalid exit status", "var", l.cfg.ExitVar, "error", err)
		return FailureStatus
	}
	return status
}
