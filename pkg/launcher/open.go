package launcher

import (
	"context"
	"fmt"
	"os"
)

var (
	_ Session = (*rodSession)(nil)
	_ Session = (*webDriverSession)(nil)
)

// Open is the default Opener. It maps each Backend to its session family:
//
//	chrome              Rod (DevTools), or chromedriver when CHROMEWEBDRIVER is set
//	firefox             geckodriver
//	edge                msedgedriver
//	safari, safaritp    safaridriver
//	remote              WebDriver endpoint at sel.RemoteAddr
func Open(ctx context.Context, sel Selection, cfg Config) (Session, error) {
	return openWith(ctx, sel, cfg, os.Getenv)
}

func openWith(ctx context.Context, sel Selection, cfg Config, getenv func(string) string) (Session, error) {
	switch sel.Backend {
	case Chrome:
		if getenv(ChromeDriverEnv) != "" {
			return localWebDriver(sel.Backend, cfg, getenv)
		}
		s, err := openRod(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case Firefox, Edge, Safari, SafariTP:
		return localWebDriver(sel.Backend, cfg, getenv)
	case Remote:
		if sel.RemoteAddr == "" {
			return nil, ErrMissingAddress
		}
		s, err := openRemoteWebDriver(sel.RemoteAddr, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownBackend, sel.Backend)
	}
}

func localWebDriver(b Backend, cfg Config, getenv func(string) string) (Session, error) {
	s, err := openLocalWebDriver(b, hostDriverPath(b, getenv), cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}
