package dom

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginPage = `<!DOCTYPE html>
<html>
<head><title>Log in</title><script>window.tracking = true;</script><style>.x{}</style></head>
<body>
  <!-- flow -->
  <main class="css-1dbjc4n r-13awgt0">
    <form>
      <input autocomplete="username" name="text" class="r-30o5oe" style="color:red">
      <div role="button" data-testid="ocfEnterTextNextButton"><span>Next</span></div>
      <button type="button" onclick="go()">Forgot password?</button>
      <svg><path d="M0"/></svg>
    </form>
    <div data-testid="error-detail">Wrong password!</div>
  </main>
</body>
</html>`

func TestGetSimplifiedDOM(t *testing.T) {
	out, err := GetSimplifiedDOM(loginPage)
	require.NoError(t, err)

	assert.Contains(t, out, `<title>Log in </title>`)
	assert.Contains(t, out, `<input autocomplete="username" name="text">`)
	assert.Contains(t, out, `<div role="button" data-testid="ocfEnterTextNextButton"><span>Next </span></div>`)
	assert.Contains(t, out, `<button type="button">Forgot password? </button>`)
	assert.Contains(t, out, `<div data-testid="error-detail">Wrong password! </div>`)

	assert.NotContains(t, out, "tracking")
	assert.NotContains(t, out, "flow")
	assert.NotContains(t, out, "class=")
	assert.NotContains(t, out, "style=")
	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "<svg")
	assert.NotContains(t, out, "<main")
	assert.NotContains(t, out, "</input>")
}

func TestGetSimplifiedDOM_Empty(t *testing.T) {
	out, err := GetSimplifiedDOM("")
	require.NoError(t, err)
	assert.Equal(t, "<html><head></head><body></body></html>", out)
}

func findChrome() string {
	for _, name := range []string{"chromium", "chromium-browser", "google-chrome", "google-chrome-stable", "headless-shell"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// TestActionsAgainstChrome exercises the action builders against a real
// browser on a data URL.
func TestActionsAgainstChrome(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping chromedp test in short mode")
	}
	execPath := findChrome()
	if execPath == "" {
		t.Skip("Skipping chromedp test: no Chrome executable on PATH")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(execPath),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	allocatorCtx, cancelAllocator := chromedp.NewExecAllocator(context.Background(), opts...)
	defer cancelAllocator()

	ctx, cancelBrowser := chromedp.NewContext(allocatorCtx, chromedp.WithLogf(t.Logf))
	defer cancelBrowser()

	timeout := 30 * time.Second
	if os.Getenv("CI") == "true" {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page := `data:text/html,<html><body><button>Back</button><button>Next step</button><input id="q"></body></html>`
	require.NoError(t, chromedp.Run(ctx, NavigateAction(page)))

	var buttons []*cdp.Node
	require.NoError(t, chromedp.Run(ctx, QueryNodesAction("button", &buttons)))
	require.Len(t, buttons, 2)

	var label string
	require.NoError(t, chromedp.Run(ctx, NodeTextAction(buttons[1], &label)))
	assert.Equal(t, "Next step", label)

	var none []*cdp.Node
	require.NoError(t, chromedp.Run(ctx, QueryNodesAction("textarea", &none)))
	assert.Empty(t, none)

	var inputs []*cdp.Node
	require.NoError(t, chromedp.Run(ctx, WaitVisibleNodeAction("#q", &inputs)))
	require.NotEmpty(t, inputs)
	require.NoError(t, chromedp.Run(ctx, SendKeysNodeAction(inputs[0], "abc")))

	var value string
	require.NoError(t, chromedp.Run(ctx, chromedp.Value("#q", &value, chromedp.ByQuery)))
	assert.Equal(t, "abc", value)

	var fp Fingerprint
	require.NoError(t, chromedp.Run(ctx, FingerprintAction(&fp)))
	assert.NotEmpty(t, fp.UserAgent)
}
