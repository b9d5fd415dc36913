package launcher

import (
	"path/filepath"
	"runtime"
)

// Environment variables naming directories that hold WebDriver binaries.
// CI runner images export them; when unset the binary is looked up on PATH.
const (
	GeckoDriverEnv  = "GECKOWEBDRIVER"
	ChromeDriverEnv = "CHROMEWEBDRIVER"
	EdgeDriverEnv   = "EDGEWEBDRIVER"
)

const (
	safariDriverPath   = "/usr/bin/safaridriver"
	safariTPDriverPath = "/Applications/Safari Technology Preview.app/Contents/MacOS/safaridriver"
)

// DriverPath returns the WebDriver executable for b. getenv is consulted
// for the directory prefixes; goos selects the executable suffix. Remote
// has no local driver and returns "".
func DriverPath(b Backend, getenv func(string) string, goos string) string {
	exe := func(env, name string) string {
		if goos == "windows" {
			name += ".exe"
		}
		if dir := getenv(env); dir != "" {
			return filepath.Join(dir, name)
		}
		return name
	}

	switch b {
	case Chrome:
		return exe(ChromeDriverEnv, "chromedriver")
	case Firefox:
		return exe(GeckoDriverEnv, "geckodriver")
	case Edge:
		return exe(EdgeDriverEnv, "msedgedriver")
	case Safari:
		return safariDriverPath
	case SafariTP:
		return safariTPDriverPath
	default:
		return ""
	}
}

func hostDriverPath(b Backend, getenv func(string) string) string {
	return DriverPath(b, getenv, runtime.GOOS)
}
