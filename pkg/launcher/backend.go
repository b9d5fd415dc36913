package launcher

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Backend names a browser automation configuration selectable from the
// command line.
type Backend string

const (
	Chrome   Backend = "chrome"
	Firefox  Backend = "firefox"
	Edge     Backend = "edge"
	Safari   Backend = "safari"
	SafariTP Backend = "safaritp"
	Remote   Backend = "remote"
)

// Backends lists every selectable backend in usage order.
var Backends = []Backend{Chrome, Firefox, Edge, Safari, SafariTP, Remote}

var (
	// ErrUsage wraps every command-line selection error.
	ErrUsage = errors.New("usage")
	// ErrUnknownBackend is returned for a backend name not in Backends.
	ErrUnknownBackend = fmt.Errorf("%w: unknown backend", ErrUsage)
	// ErrMissingAddress is returned when remote is selected without an address.
	ErrMissingAddress = fmt.Errorf("%w: remote backend requires an address", ErrUsage)
)

// ParseBackend maps a command-line name to a Backend.
func ParseBackend(name string) (Backend, error) {
	for _, b := range Backends {
		if string(b) == name {
			return b, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownBackend, name)
}

// Selection is the parsed launcher command line.
type Selection struct {
	Backend Backend
	// RemoteAddr is the WebDriver endpoint, set only for Remote.
	RemoteAddr string
}

// ParseArgs parses the positional launcher arguments: a backend name,
// followed by an address when the backend is remote. Extra arguments are
// ignored.
func ParseArgs(args []string) (Selection, error) {
	if len(args) == 0 {
		return Selection{}, fmt.Errorf("%w: no backend selected", ErrUsage)
	}
	b, err := ParseBackend(args[0])
	if err != nil {
		return Selection{}, err
	}
	sel := Selection{Backend: b}
	if b == Remote {
		if len(args) < 2 || strings.TrimSpace(args[1]) == "" {
			return Selection{}, ErrMissingAddress
		}
		sel.RemoteAddr = strings.TrimSpace(args[1])
	}
	return sel, nil
}

// Usage writes the list of valid invocations of prog to w.
func Usage(w io.Writer, prog string) {
	fmt.Fprintln(w, "Usage:")
	for _, b := range Backends {
		if b == Remote {
			fmt.Fprintf(w, "  %s %s <address>\n", prog, b)
			continue
		}
		fmt.Fprintf(w, "  %s %s\n", prog, b)
	}
}
