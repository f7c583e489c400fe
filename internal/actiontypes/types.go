package actiontypes

import (
	"strings"
	"time"
)

// Action name constants
type ActionName string

const (
	ActionLogin ActionName = "login"
	ActionTweet ActionName = "tweet"
	ActionReply ActionName = "reply"
)

// Title is the capitalized name used in failure messages ("Tweet failed: ...").
func (n ActionName) Title() string {
	if n == "" {
		return "Action"
	}
	return strings.ToUpper(string(n[:1])) + string(n[1:])
}

// Login outcome sources
type Source string

const (
	SourceCookies        Source = "cookies"
	SourceFreshLogin     Source = "fresh_login"
	SourceLoginAttempted Source = "login_attempted"
)

// TimestampLayout is the UTC layout used in action outcomes.
const TimestampLayout = "2006-01-02T15:04:05Z"

// Request is one invocation: an action name and its positional arguments.
type Request struct {
	Name ActionName `json:"action"`
	Args []string   `json:"args,omitempty"`
}

// NewRequest builds a request from raw command-line style input.
func NewRequest(name string, args ...string) Request {
	return Request{Name: ActionName(name), Args: args}
}

// Credentials for the credential-based login flow. Never persisted.
type Credentials struct {
	Username string `json:"-"`
	Email    string `json:"-"` // optional secondary identifier
	Password string `json:"-"`
}

// Validate reports a CredentialsMissing error when the primary identifier or
// the secret is empty.
func (c Credentials) Validate() error {
	if c.Username == "" || c.Password == "" {
		return Newf(KindCredentialsMissing, nil, "Missing TWITTER_USERNAME or TWITTER_PASSWORD")
	}
	return nil
}

// Outcome is the single result contract of a run. Field order matches the
// JSON shapes callers already parse.
type Outcome struct {
	Success   bool   `json:"success"`
	Source    Source `json:"source,omitempty"`
	URL       string `json:"url,omitempty"`
	Username  string `json:"username,omitempty"`
	ReplyTo   string `json:"reply_to,omitempty"`
	Text      string `json:"text,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Failure converts an error into a failed outcome.
func Failure(err error) Outcome {
	if err == nil {
		return Outcome{Success: false, Error: "unknown error"}
	}
	return Outcome{Success: false, Error: err.Error()}
}

// Timestamp formats t in the outcome layout.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
