package launcher

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	rodlauncher "github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// rodSession drives Chrome over the DevTools protocol. It is the default
// chrome backend; Rod downloads a Chromium build when none is installed.
type rodSession struct {
	launcher *rodlauncher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	poller   poller
}

// openRod launches a local Chrome configured for unattended test runs.
func openRod(ctx context.Context, cfg Config) (*rodSession, error) {
	l := rodlauncher.New().
		Context(ctx).
		Headless(cfg.Headless).
		Set("no-sandbox").
		Set("disable-gpu")

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch Chrome: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to Chrome: %w", err)
	}

	return &rodSession{
		launcher: l,
		browser:  browser,
		poller:   newPoller(nil, cfg.PollInterval),
	}, nil
}

func (s *rodSession) Navigate(ctx context.Context, url string) error {
	if s.page == nil {
		page, err := s.browser.Page(proto.TargetCreateTarget{})
		if err != nil {
			return fmt.Errorf("failed to open page: %w", err)
		}
		s.page = page
	}
	if err := s.page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (s *rodSession) WaitForValue(ctx context.Context, id string, pred func(string) bool, timeout time.Duration) WaitResult {
	return s.poller.poll(ctx, timeout, func(ctx context.Context) (string, error) {
		return s.Value(ctx, id)
	}, pred)
}

func (s *rodSession) Value(ctx context.Context, id string) (string, error) {
	if s.page == nil {
		return "", ErrNoPage
	}
	res, err := s.page.Context(ctx).Eval(valueScript, id)
	if err != nil {
		return "", fmt.Errorf("read #%s: %w", id, err)
	}
	if res.Value.Nil() {
		return "", fmt.Errorf("%w: #%s", ErrElementNotFound, id)
	}
	return res.Value.Str(), nil
}

func (s *rodSession) Eval(ctx context.Context, expr string) (any, error) {
	if s.page == nil {
		return nil, ErrNoPage
	}
	res, err := s.page.Context(ctx).Eval(`() => (` + expr + `)`)
	if err != nil {
		return nil, fmt.Errorf("eval failed: %w", err)
	}
	return res.Value.Val(), nil
}

// Close shuts the browser down and removes its profile directory.
func (s *rodSession) Close() error {
	err := s.browser.Close()
	if err != nil {
		s.launcher.Kill()
	}
	s.launcher.Cleanup()
	return err
}
