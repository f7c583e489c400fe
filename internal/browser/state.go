package browser

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
)

// StorageState is the persisted session: cookies plus per-origin
// localStorage. The layout is the one Playwright's storage_state writes, so
// files produced by earlier tooling load unchanged.
type StorageState struct {
	Cookies []StateCookie `json:"cookies"`
	Origins []StateOrigin `json:"origins"`
}

type StateCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"` // unix seconds, -1 for session cookies
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite"` // Strict, Lax or None
}

type StateOrigin struct {
	Origin       string           `json:"origin"`
	LocalStorage []StateNameValue `json:"localStorage"`
}

type StateNameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ReadState loads the state file. A missing file yields (nil, nil): the
// context simply starts unauthenticated.
func ReadState(path string) (*StorageState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session state: %w", err)
	}
	var st StorageState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode session state %s: %w", path, err)
	}
	return &st, nil
}

// WriteState replaces the state file wholesale. The write goes through a
// temp file in the same directory so a crash never leaves a truncated file.
func WriteState(path string, st *StorageState) error {
	if st == nil {
		st = &StorageState{}
	}
	if st.Cookies == nil {
		st.Cookies = []StateCookie{}
	}
	if st.Origins == nil {
		st.Origins = []StateOrigin{}
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("create session state temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session state: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod session state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session state: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace session state: %w", err)
	}
	return nil
}

// CookieParams converts persisted cookies into CDP parameters. Expired
// cookies are dropped.
func (st *StorageState) CookieParams(now time.Time) []*network.CookieParam {
	if st == nil {
		return nil
	}
	params := make([]*network.CookieParam, 0, len(st.Cookies))
	for _, c := range st.Cookies {
		if c.Name == "" || c.Domain == "" {
			continue
		}
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if p.Path == "" {
			p.Path = "/"
		}
		if ss, ok := sameSiteToCDP[c.SameSite]; ok {
			p.SameSite = ss
		}
		if c.Expires > 0 {
			sec, frac := math.Modf(c.Expires)
			exp := time.Unix(int64(sec), int64(frac*1e9))
			if !exp.After(now) {
				continue
			}
			ts := cdp.TimeSinceEpoch(exp)
			p.Expires = &ts
		}
		params = append(params, p)
	}
	return params
}

// LocalStorageByOrigin flattens origins into origin → key → value.
func (st *StorageState) LocalStorageByOrigin() map[string]map[string]string {
	out := map[string]map[string]string{}
	if st == nil {
		return out
	}
	for _, o := range st.Origins {
		if o.Origin == "" || len(o.LocalStorage) == 0 {
			continue
		}
		items := map[string]string{}
		for _, kv := range o.LocalStorage {
			items[kv.Name] = kv.Value
		}
		out[o.Origin] = items
	}
	return out
}

// StateFromBrowser assembles a StorageState from what the browser reports.
func StateFromBrowser(cookies []*network.Cookie, origin string, local map[string]string) *StorageState {
	st := &StorageState{
		Cookies: make([]StateCookie, 0, len(cookies)),
		Origins: []StateOrigin{},
	}
	for _, c := range cookies {
		if c == nil {
			continue
		}
		expires := c.Expires
		if c.Session {
			expires = -1
		}
		sameSite := "Lax"
		if c.SameSite != "" {
			sameSite = c.SameSite.String()
		}
		st.Cookies = append(st.Cookies, StateCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: sameSite,
		})
	}

	if origin != "" && origin != "null" && len(local) > 0 {
		keys := make([]string, 0, len(local))
		for k := range local {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		o := StateOrigin{Origin: origin}
		for _, k := range keys {
			o.LocalStorage = append(o.LocalStorage, StateNameValue{Name: k, Value: local[k]})
		}
		st.Origins = append(st.Origins, o)
	}
	return st
}

var sameSiteToCDP = map[string]network.CookieSameSite{
	"Strict": network.CookieSameSiteStrict,
	"Lax":    network.CookieSameSiteLax,
	"None":   network.CookieSameSiteNone,
}

// localStorageSeedScript returns a script, evaluated on every new document,
// that restores persisted localStorage for the document's origin once per tab.
func localStorageSeedScript(byOrigin map[string]map[string]string) (string, error) {
	if len(byOrigin) == 0 {
		return "", nil
	}
	payload, err := json.Marshal(byOrigin)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`(function () {
  var state = %s;
  var items = state[window.location.origin];
  if (!items) { return; }
  try {
    if (window.sessionStorage.getItem("__xsession_seeded") === "1") { return; }
    Object.keys(items).forEach(function (k) { window.localStorage.setItem(k, items[k]); });
    window.sessionStorage.setItem("__xsession_seeded", "1");
  } catch (e) {}
})();`, payload), nil
}
