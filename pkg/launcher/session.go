package launcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrNoPage is returned by session operations invoked before Navigate.
var ErrNoPage = errors.New("no page open, call Navigate first")

// Session is one live browser controlled by the launcher. Implementations
// exist per backend family; callers must Close every Session they open.
type Session interface {
	// Navigate loads url in the session's page.
	Navigate(ctx context.Context, url string) error
	// WaitForValue polls the value of the element with the given DOM id
	// until pred accepts it or timeout elapses.
	WaitForValue(ctx context.Context, id string, pred func(string) bool, timeout time.Duration) WaitResult
	// Value reads the current value of the element with the given DOM id.
	// It returns ErrElementNotFound when no such element exists.
	Value(ctx context.Context, id string) (string, error)
	// Eval evaluates a JavaScript expression in the page and returns its
	// JSON-decoded result.
	Eval(ctx context.Context, expr string) (any, error)
	// Close ends the browser session and releases its processes.
	Close() error
}

// valueScript reads an element value by id, yielding null when absent.
const valueScript = `(id) => {
	const el = document.getElementById(id);
	return el === null ? null : String(el.value);
}`

// ExitStatusFrom converts a value read from the page into a process exit
// status. Only integral numbers are accepted.
func ExitStatusFrom(v any) (int, error) {
	switch n := v.(type) {
	case nil:
		return 0, errors.New("exit status is undefined")
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return 0, fmt.Errorf("exit status %v is not an integer", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("exit status %q is not an integer: %w", n, err)
		}
		return int(i), nil
	default:
		return 0, fmt.Errorf("exit status has type %T, want number", v)
	}
}
