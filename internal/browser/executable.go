package browser

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

var execNames = []string{
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"headless-shell",
}

var execLocations = []string{
	"/usr/bin/chromium",
	"/usr/bin/chromium-browser",
	"/usr/bin/google-chrome",
	"/headless-shell/headless-shell",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
}

// execFinder resolves a browser binary. The lookups are fields so tests can
// run without touching the host filesystem.
type execFinder struct {
	lookPath func(string) (string, error)
	isFile   func(string) bool
}

func defaultExecFinder() execFinder {
	return execFinder{
		lookPath: exec.LookPath,
		isFile: func(path string) bool {
			info, err := os.Stat(path)
			return err == nil && !info.IsDir()
		},
	}
}

// resolve tries the configured path, then PATH, then well-known locations.
func (f execFinder) resolve(requested string) (string, error) {
	if path := strings.TrimSpace(requested); path != "" {
		if f.isFile(path) {
			return path, nil
		}
		return "", fmt.Errorf("configured browser executable %s does not exist", path)
	}
	for _, name := range execNames {
		if path, err := f.lookPath(name); err == nil {
			return path, nil
		}
	}
	for _, path := range execLocations {
		if f.isFile(path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("no browser executable found; tried %s and %s",
		strings.Join(execNames, ", "), strings.Join(execLocations, ", "))
}

// ResolveExecPath returns a usable Chrome or Chromium binary.
func ResolveExecPath(requested string) (string, error) {
	return defaultExecFinder().resolve(requested)
}
