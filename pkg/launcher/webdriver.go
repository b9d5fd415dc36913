package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os/exec"
	"strings"
	"time"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"github.com/tebeka/selenium/firefox"
)

// webDriverSession drives a browser through the W3C WebDriver protocol,
// either via a driver binary started here or via a remote endpoint.
//
// The selenium client has no context support: ctx is only honoured between
// protocol calls, by the poller.
type webDriverSession struct {
	wd      selenium.WebDriver
	service *selenium.Service // nil for remote sessions
	poller  poller
}

// capabilities builds the session request for a WebDriver browser name.
func capabilities(name string, cfg Config) selenium.Capabilities {
	caps := selenium.Capabilities{"browserName": name}
	chromiumArgs := []string{"--no-sandbox", "--disable-gpu"}
	if cfg.Headless {
		chromiumArgs = append(chromiumArgs, "--headless")
	}

	switch name {
	case "chrome":
		caps.AddChrome(chrome.Capabilities{Args: chromiumArgs, W3C: true})
	case "MicrosoftEdge":
		caps["ms:edgeOptions"] = map[string]any{"args": chromiumArgs}
	case "firefox":
		var f firefox.Capabilities
		if cfg.Headless {
			f.Args = append(f.Args, "-headless")
		}
		caps.AddFirefox(f)
	}
	return caps
}

// browserName maps a local backend to its WebDriver browserName.
func browserName(b Backend) string {
	switch b {
	case Firefox:
		return "firefox"
	case Edge:
		return "MicrosoftEdge"
	case Safari, SafariTP:
		return "safari"
	default:
		return "chrome"
	}
}

// openLocalWebDriver starts the driver binary for b on a free port and opens
// a session on it.
func openLocalWebDriver(b Backend, driver string, cfg Config) (*webDriverSession, error) {
	path, err := exec.LookPath(driver)
	if err != nil {
		return nil, fmt.Errorf("%s driver not found: %w", b, err)
	}
	port, err := freePort()
	if err != nil {
		return nil, err
	}

	var (
		service *selenium.Service
		prefix  string
	)
	switch b {
	case Chrome, Edge:
		// msedgedriver takes chromedriver's flags.
		service, err = selenium.NewChromeDriverService(path, port, selenium.Output(io.Discard))
		prefix = fmt.Sprintf("http://127.0.0.1:%d/wd/hub", port)
	default:
		// geckodriver and safaridriver both accept --port N.
		service, err = selenium.NewGeckoDriverService(path, port, selenium.Output(io.Discard))
		prefix = fmt.Sprintf("http://127.0.0.1:%d", port)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", path, err)
	}

	wd, err := selenium.NewRemote(capabilities(browserName(b), cfg), prefix)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create %s session: %w", b, err), service.Stop())
	}
	if err := setTimeouts(wd, cfg.Timeout); err != nil {
		return nil, errors.Join(err, wd.Quit(), service.Stop())
	}
	return &webDriverSession{
		wd:      wd,
		service: service,
		poller:  newPoller(nil, cfg.PollInterval),
	}, nil
}

// openRemoteWebDriver opens a session on an existing WebDriver endpoint,
// such as a Selenium grid.
func openRemoteWebDriver(addr string, cfg Config) (*webDriverSession, error) {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	wd, err := selenium.NewRemote(capabilities(cfg.RemoteBrowser, cfg), addr)
	if err != nil {
		return nil, fmt.Errorf("failed to create remote session at %s: %w", addr, err)
	}
	if err := setTimeouts(wd, cfg.Timeout); err != nil {
		return nil, errors.Join(err, wd.Quit())
	}
	return &webDriverSession{
		wd:     wd,
		poller: newPoller(nil, cfg.PollInterval),
	}, nil
}

// setTimeouts bounds page loads and scripts by the handshake timeout. The
// drivers default to 300s for page loads, and Get takes no context.
func setTimeouts(wd selenium.WebDriver, d time.Duration) error {
	if err := wd.SetPageLoadTimeout(d); err != nil {
		return fmt.Errorf("failed to set page load timeout: %w", err)
	}
	if err := wd.SetAsyncScriptTimeout(d); err != nil {
		return fmt.Errorf("failed to set script timeout: %w", err)
	}
	return nil
}

func freePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to pick a driver port: %w", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}

func (s *webDriverSession) Navigate(_ context.Context, url string) error {
	if err := s.wd.Get(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (s *webDriverSession) WaitForValue(ctx context.Context, id string, pred func(string) bool, timeout time.Duration) WaitResult {
	return s.poller.poll(ctx, timeout, func(ctx context.Context) (string, error) {
		return s.Value(ctx, id)
	}, pred)
}

func (s *webDriverSession) Value(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := s.wd.ExecuteScript("return ("+valueScript+")(arguments[0]);", []interface{}{id})
	if err != nil {
		return "", fmt.Errorf("read #%s: %w", id, err)
	}
	switch v := v.(type) {
	case nil:
		return "", fmt.Errorf("%w: #%s", ErrElementNotFound, id)
	case string:
		return v, nil
	default:
		return fmt.Sprint(v), nil
	}
}

func (s *webDriverSession) Eval(ctx context.Context, expr string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, err := s.wd.ExecuteScript("return ("+expr+");", []interface{}{})
	if err != nil {
		return nil, fmt.Errorf("eval failed: %w", err)
	}
	return v, nil
}

// Close quits the browser and stops the driver process, if one was started.
func (s *webDriverSession) Close() error {
	err := s.wd.Quit()
	if s.service != nil {
		err = errors.Join(err, s.service.Stop())
	}
	return err
}
