package dom

import (
	"bytes"
	"io"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"golang.org/x/net/html"
)

func GetFullHTMLAction(res *string) chromedp.Action {
	return chromedp.Evaluate(`document.documentElement.outerHTML`, res)
}

func NavigateAction(url string) chromedp.Action {
	return chromedp.Navigate(url)
}

func LocationAction(url *string) chromedp.Action {
	return chromedp.Location(url)
}

// QueryNodesAction collects every node matching selector without waiting;
// an empty result is not an error.
func QueryNodesAction(selector string, nodes *[]*cdp.Node) chromedp.Action {
	return chromedp.Nodes(selector, nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))
}

// WaitVisibleNodeAction blocks until the first node matching selector is
// visible. Bound it with a context deadline.
func WaitVisibleNodeAction(selector string, nodes *[]*cdp.Node) chromedp.Action {
	return chromedp.Nodes(selector, nodes, chromedp.ByQuery, chromedp.NodeVisible)
}

func ClickNodeAction(node *cdp.Node) chromedp.Action {
	return chromedp.MouseClickNode(node)
}

func SendKeysNodeAction(node *cdp.Node, keys string) chromedp.Action {
	return chromedp.SendKeys([]cdp.NodeID{node.NodeID}, keys, chromedp.ByNodeID)
}

func NodeTextAction(node *cdp.Node, res *string) chromedp.Action {
	return chromedp.Text([]cdp.NodeID{node.NodeID}, res, chromedp.ByNodeID)
}

// KeyboardAction types keys into whatever element holds focus.
func KeyboardAction(keys string) chromedp.Action {
	return chromedp.KeyEvent(keys)
}

// LocalStorageAction reads the current origin and its localStorage as a JSON
// object string.
func LocalStorageAction(origin *string, entries *string) chromedp.Action {
	return chromedp.Tasks{
		chromedp.Evaluate(`window.location.origin`, origin),
		chromedp.Evaluate(`JSON.stringify(Object.fromEntries(Object.keys(localStorage).map(k => [k, localStorage.getItem(k)])))`, entries),
	}
}

// Fingerprint is what automation detectors look at first.
type Fingerprint struct {
	Webdriver      bool     `json:"webdriver"`
	UserAgent      string   `json:"userAgent"`
	Languages      []string `json:"languages"`
	ViewportWidth  int64    `json:"viewportWidth"`
	ViewportHeight int64    `json:"viewportHeight"`
	Timezone       string   `json:"timezone"`
}

func FingerprintAction(res *Fingerprint) chromedp.Action {
	return chromedp.Evaluate(`({
		webdriver: !!navigator.webdriver,
		userAgent: navigator.userAgent,
		languages: Array.from(navigator.languages || []),
		viewportWidth: window.innerWidth,
		viewportHeight: window.innerHeight,
		timezone: Intl.DateTimeFormat().resolvedOptions().timeZone
	})`, res)
}

var keptTags = map[string]bool{
	"html": true, "head": true, "body": true, "title": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"p": true, "div": true, "span": true, "br": true, "hr": true,
	"ul": true, "ol": true, "li": true,
	"a": true, "button": true, "input": true, "textarea": true, "select": true, "option": true, "label": true,
	"form": true, "img": true, "strong": true, "em": true, "b": true, "i": true,
}

// Void elements never get a closing tag.
var voidTags = map[string]bool{"br": true, "hr": true, "input": true, "img": true}

var keptAttrs = map[string]bool{
	"href": true, "id": true, "type": true, "name": true, "placeholder": true,
	"autocomplete": true, "data-testid": true, "role": true,
	"aria-label": true, "aria-hidden": true, "disabled": true,
}

var droppedTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "meta": true, "link": true, "svg": true,
}

// GetSimplifiedDOM strips scripts, styling and most attributes, keeping the
// structure and the test ids that selectors depend on. Used to log what a
// page actually rendered when a step did not find its element.
func GetSimplifiedDOM(htmlContent string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err = simplifyNode(&buf, doc)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func simplifyNode(w io.Writer, n *html.Node) error {
	switch n.Type {
	case html.ErrorNode, html.CommentNode, html.DoctypeNode:
		return nil
	case html.TextNode:
		trimmed := strings.TrimSpace(n.Data)
		if trimmed != "" {
			if _, err := io.WriteString(w, html.EscapeString(trimmed)+" "); err != nil {
				return err
			}
		}
		return nil
	case html.ElementNode:
		if droppedTags[n.Data] {
			return nil
		}
		if !keptTags[n.Data] {
			return simplifyChildren(w, n)
		}

		if _, err := io.WriteString(w, "<"+n.Data); err != nil {
			return err
		}
		for _, a := range n.Attr {
			if !keptAttrs[a.Key] {
				continue
			}
			val := strings.TrimSpace(a.Val)
			if _, err := io.WriteString(w, " "+a.Key+"=\""+html.EscapeString(val)+"\""); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, ">"); err != nil {
			return err
		}
		if err := simplifyChildren(w, n); err != nil {
			return err
		}
		if !voidTags[n.Data] {
			if _, err := io.WriteString(w, "</"+n.Data+">"); err != nil {
				return err
			}
		}
		return nil
	}

	return simplifyChildren(w, n)
}

func simplifyChildren(w io.Writer, n *html.Node) error {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := simplifyNode(w, c); err != nil {
			return err
		}
	}
	return nil
}
