package launcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/thesyncim/webtest/pkg/launcher/internal"
)

// ErrElementNotFound is returned by Session.Value when the page has no
// element with the requested identifier (yet). Waits treat it as transient.
var ErrElementNotFound = errors.New("element not found")

// Outcome classifies how a wait on the page ended.
type Outcome int

const (
	// WaitSucceeded means the predicate accepted the element value.
	WaitSucceeded Outcome = iota
	// WaitTimedOut means the timeout elapsed before the predicate held.
	WaitTimedOut
	// WaitFaulted means reading the element failed for a reason other
	// than the element being absent.
	WaitFaulted
)

func (o Outcome) String() string {
	switch o {
	case WaitSucceeded:
		return "succeeded"
	case WaitTimedOut:
		return "timed out"
	case WaitFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// WaitResult is the value returned by Session.WaitForValue.
//
// Text holds the last value read. On WaitSucceeded it is the value that
// satisfied the predicate. Err is set only on WaitFaulted.
type WaitResult struct {
	Outcome Outcome
	Text    string
	Err     error
}

// Contains returns a predicate matching values that contain substr.
func Contains(substr string) func(string) bool {
	return func(v string) bool {
		return strings.Contains(v, substr)
	}
}

// poller repeatedly reads an element value until a predicate accepts it.
// Both session families delegate WaitForValue to it so that timeouts and
// faults are classified in one place.
type poller struct {
	clock    internal.Clock
	interval time.Duration
}

func newPoller(clock internal.Clock, interval time.Duration) poller {
	if clock == nil {
		clock = internal.SystemClock{}
	}
	return poller{clock: clock, interval: interval}
}

func (p poller) poll(
	ctx context.Context,
	timeout time.Duration,
	read func(context.Context) (string, error),
	pred func(string) bool,
) WaitResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	deadline := p.clock.Now().Add(timeout)
	var last string
	for {
		text, err := read(ctx)
		switch {
		case err == nil:
			last = text
			if pred(text) {
				return WaitResult{Outcome: WaitSucceeded, Text: text}
			}
		case errors.Is(err, context.DeadlineExceeded):
			return WaitResult{Outcome: WaitTimedOut, Text: last}
		case !errors.Is(err, ErrElementNotFound):
			return WaitResult{Outcome: WaitFaulted, Text: last, Err: err}
		}

		if internal.Expired(p.clock, deadline) {
			return WaitResult{Outcome: WaitTimedOut, Text: last}
		}

		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return WaitResult{Outcome: WaitTimedOut, Text: last}
			}
			return WaitResult{Outcome: WaitFaulted, Text: last, Err: ctx.Err()}
		case <-timer.C:
		}
	}
}
