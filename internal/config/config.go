package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

type Config struct {
	Browser     BrowserConfig    `mapstructure:"browser"`
	Session     SessionConfig    `mapstructure:"session"`
	Target      TargetConfig     `mapstructure:"target"`
	Selectors   SelectorConfig   `mapstructure:"selectors"`
	Timing      TimingConfig     `mapstructure:"timing"`
	Credentials CredentialConfig `mapstructure:"credentials"`
	Log         LogConfig        `mapstructure:"log"`
	Server      ServerConfig     `mapstructure:"server"`
}

type BrowserConfig struct {
	ExecutablePath string `mapstructure:"executablePath"`
	Headless       bool   `mapstructure:"headless"`
	// NoSandbox disables Chrome's sandbox. The hosts this runs on (containers,
	// nix shells) cannot provide the namespaces the sandbox needs.
	NoSandbox       bool          `mapstructure:"noSandbox"`
	UserAgent       string        `mapstructure:"userAgent"`
	ViewportWidth   int64         `mapstructure:"viewportWidth"`
	ViewportHeight  int64         `mapstructure:"viewportHeight"`
	Locale          string        `mapstructure:"locale"`
	Timezone        string        `mapstructure:"timezone"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

type SessionConfig struct {
	StatePath string `mapstructure:"statePath"`
}

type TargetConfig struct {
	BaseURL     string `mapstructure:"baseURL"`
	HomePath    string `mapstructure:"homePath"`
	LoginPath   string `mapstructure:"loginPath"`
	StatusPath  string `mapstructure:"statusPath"`
	LoginMarker string `mapstructure:"loginMarker"`
}

// HomeURL is the authenticated landing surface.
func (t TargetConfig) HomeURL() string { return strings.TrimRight(t.BaseURL, "/") + t.HomePath }

// LoginURL is the entry point of the credential flow.
func (t TargetConfig) LoginURL() string { return strings.TrimRight(t.BaseURL, "/") + t.LoginPath }

// StatusURL expands a bare message identifier into its canonical address.
func (t TargetConfig) StatusURL(id string) string {
	return strings.TrimRight(t.BaseURL, "/") + t.StatusPath + id
}

// SelectorConfig holds every selector the login flow and composer depend on.
// The target front end changes its markup without notice; update these when
// a step starts timing out.
type SelectorConfig struct {
	HomeSignature   string `mapstructure:"homeSignature"`
	IdentifierInput string `mapstructure:"identifierInput"`
	SecondaryInput  string `mapstructure:"secondaryInput"`
	SecondaryNext   string `mapstructure:"secondaryNext"`
	PasswordInput   string `mapstructure:"passwordInput"`
	LoginSubmit     string `mapstructure:"loginSubmit"`
	LoginError      string `mapstructure:"loginError"`
	Button          string `mapstructure:"button"`
	NextLabel       string `mapstructure:"nextLabel"`
	Composer        string `mapstructure:"composer"`
	ComposerSubmit  string `mapstructure:"composerSubmit"`
}

type DelayRange struct {
	Min time.Duration `mapstructure:"min"`
	Max time.Duration `mapstructure:"max"`
}

type TimingConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigationTimeout"`
	PageSettle        time.Duration `mapstructure:"pageSettle"`
	StepSettle        time.Duration `mapstructure:"stepSettle"`
	LoginSettle       time.Duration `mapstructure:"loginSettle"`
	FocusSettle       time.Duration `mapstructure:"focusSettle"`
	ComposeSettle     time.Duration `mapstructure:"composeSettle"`

	AuthCheckTimeout  time.Duration `mapstructure:"authCheckTimeout"`
	IdentifierTimeout time.Duration `mapstructure:"identifierTimeout"`
	PasswordTimeout   time.Duration `mapstructure:"passwordTimeout"`
	ComposerTimeout   time.Duration `mapstructure:"composerTimeout"`
	SubmitTimeout     time.Duration `mapstructure:"submitTimeout"`

	PreTypeDelay    DelayRange `mapstructure:"preTypeDelay"`
	PostTypeDelay   DelayRange `mapstructure:"postTypeDelay"`
	LoginKeyDelay   DelayRange `mapstructure:"loginKeyDelay"`
	ComposeKeyDelay DelayRange `mapstructure:"composeKeyDelay"`
}

type CredentialConfig struct {
	Username string `mapstructure:"username"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // console, json
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"maxSize"` // megabytes
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAge     int    `mapstructure:"maxAge"` // days
	Compress   bool   `mapstructure:"compress"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout    time.Duration `mapstructure:"idleTimeout"`
	AllowedOrigins []string      `mapstructure:"allowedOrigins"`
	ApiKey         string        `mapstructure:"apiKey"`
	PostInterval   time.Duration `mapstructure:"postInterval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("browser.executablePath", "") // Discover if empty
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.noSandbox", true)
	v.SetDefault("browser.userAgent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	v.SetDefault("browser.viewportWidth", 1920)
	v.SetDefault("browser.viewportHeight", 1080)
	v.SetDefault("browser.locale", "en-US")
	v.SetDefault("browser.timezone", "")
	v.SetDefault("browser.shutdownTimeout", "10s")

	v.SetDefault("session.statePath", "/tmp/twitter_session.json")

	v.SetDefault("target.baseURL", "https://x.com")
	v.SetDefault("target.homePath", "/home")
	v.SetDefault("target.loginPath", "/i/flow/login")
	v.SetDefault("target.statusPath", "/i/status/")
	v.SetDefault("target.loginMarker", "login")

	v.SetDefault("selectors.homeSignature", `[data-testid="primaryColumn"]`)
	v.SetDefault("selectors.identifierInput", `input[autocomplete="username"]`)
	v.SetDefault("selectors.secondaryInput", `input[data-testid="ocfEnterTextTextInput"]`)
	v.SetDefault("selectors.secondaryNext", `[data-testid="ocfEnterTextNextButton"]`)
	v.SetDefault("selectors.passwordInput", `input[type="password"]`)
	v.SetDefault("selectors.loginSubmit", `[data-testid="LoginForm_Login_Button"]`)
	v.SetDefault("selectors.loginError", `[data-testid="error-detail"]`)
	v.SetDefault("selectors.button", "button")
	v.SetDefault("selectors.nextLabel", "next")
	v.SetDefault("selectors.composer", `[data-testid="tweetTextarea_0"]`)
	v.SetDefault("selectors.composerSubmit", `[data-testid="tweetButtonInline"]`)

	v.SetDefault("timing.navigationTimeout", "30s")
	v.SetDefault("timing.pageSettle", "3s")
	v.SetDefault("timing.stepSettle", "2s")
	v.SetDefault("timing.loginSettle", "5s")
	v.SetDefault("timing.focusSettle", "500ms")
	v.SetDefault("timing.composeSettle", "1s")
	v.SetDefault("timing.authCheckTimeout", "5s")
	v.SetDefault("timing.identifierTimeout", "15s")
	v.SetDefault("timing.passwordTimeout", "10s")
	v.SetDefault("timing.composerTimeout", "10s")
	v.SetDefault("timing.submitTimeout", "5s")
	v.SetDefault("timing.preTypeDelay.min", "500ms")
	v.SetDefault("timing.preTypeDelay.max", "1500ms")
	v.SetDefault("timing.postTypeDelay.min", "500ms")
	v.SetDefault("timing.postTypeDelay.max", "1s")
	v.SetDefault("timing.loginKeyDelay.min", "50ms")
	v.SetDefault("timing.loginKeyDelay.max", "150ms")
	v.SetDefault("timing.composeKeyDelay.min", "30ms")
	v.SetDefault("timing.composeKeyDelay.max", "80ms")

	v.SetDefault("credentials.username", "")
	v.SetDefault("credentials.email", "")
	v.SetDefault("credentials.password", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("log.maxSize", 10)
	v.SetDefault("log.maxBackups", 3)
	v.SetDefault("log.maxAge", 28)
	v.SetDefault("log.compress", false)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", "15s")
	v.SetDefault("server.writeTimeout", "5m") // a run with a fresh login can take a while
	v.SetDefault("server.idleTimeout", "60s")
	v.SetDefault("server.allowedOrigins", []string{"*"})
	v.SetDefault("server.apiKey", "")
	v.SetDefault("server.postInterval", "0s")
}

// Default returns the built-in configuration without reading files or the
// environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic("config: invalid built-in defaults: " + err.Error())
	}
	return &cfg
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.xsession")
		v.AddConfigPath("/etc/xsession")
	}

	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("XSESSION")

	// Credentials keep the variable names operators already export.
	_ = v.BindEnv("credentials.username", "TWITTER_USERNAME")
	_ = v.BindEnv("credentials.email", "TWITTER_EMAIL")
	_ = v.BindEnv("credentials.password", "TWITTER_PASSWORD")

	err := v.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	err = v.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandPaths resolves a leading "~" in the file paths operators configure.
func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Session.StatePath, &c.Log.File, &c.Browser.ExecutablePath} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}
