package browser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeFinder(onPath map[string]string, files map[string]bool) execFinder {
	return execFinder{
		lookPath: func(name string) (string, error) {
			if p, ok := onPath[name]; ok {
				return p, nil
			}
			return "", errors.New("executable file not found in $PATH")
		},
		isFile: func(path string) bool { return files[path] },
	}
}

func TestExecFinder_Configured(t *testing.T) {
	f := fakeFinder(map[string]string{"chromium": "/usr/bin/chromium"}, map[string]bool{"/opt/chrome/chrome": true})

	path, err := f.resolve("/opt/chrome/chrome")
	require.NoError(t, err)
	assert.Equal(t, "/opt/chrome/chrome", path)

	// A configured path that does not exist is an error, not a fallback.
	_, err = f.resolve("/opt/missing")
	assert.Error(t, err)
}

func TestExecFinder_PathOrder(t *testing.T) {
	f := fakeFinder(map[string]string{
		"google-chrome":    "/usr/local/bin/google-chrome",
		"chromium-browser": "/usr/bin/chromium-browser",
	}, nil)

	path, err := f.resolve("")
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/chromium-browser", path)
}

func TestExecFinder_WellKnownLocations(t *testing.T) {
	f := fakeFinder(nil, map[string]bool{"/headless-shell/headless-shell": true})

	path, err := f.resolve("  ")
	require.NoError(t, err)
	assert.Equal(t, "/headless-shell/headless-shell", path)
}

func TestExecFinder_NothingFound(t *testing.T) {
	_, err := fakeFinder(nil, nil).resolve("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no browser executable found")
}
