package profilescrape

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/linkscrape/profilescrape/internal/authn"
	"github.com/hazyhaar/linkscrape/profilescrape/internal/browser"
	"github.com/hazyhaar/linkscrape/profilescrape/internal/extract"
	"github.com/hazyhaar/linkscrape/profilescrape/internal/navigator"
	"github.com/hazyhaar/linkscrape/profilescrape/internal/session"
)

// Credentials are the login identifier and secret. They are never logged.
type Credentials = authn.Credentials

// FieldConfig and StrategyConfig describe one extracted field in YAML.
type (
	FieldConfig    = extract.FieldConfig
	StrategyConfig = extract.StrategyConfig
)

// Config is the full scraper configuration.
type Config struct {
	Browser    BrowserConfig    `yaml:"browser"`
	Cookies    CookieConfig     `yaml:"cookies"`
	Login      LoginConfig      `yaml:"login"`
	Navigation NavigationConfig `yaml:"navigation"`
	Session    SessionConfig    `yaml:"session"`
	Extract    ExtractConfig    `yaml:"extract"`
	Server     ServerConfig     `yaml:"server"`

	MaxConcurrent int           `yaml:"max_concurrent"` // default 2
	CallTimeout   time.Duration `yaml:"call_timeout"`   // default 3m
	AllowedHosts  []string      `yaml:"allowed_hosts"`  // empty allows any host
	BlockPrivate  bool          `yaml:"block_private"`
	LogLevel      string        `yaml:"log_level"`

	// Credentials come from the environment only.
	Credentials Credentials `yaml:"-"`
}

// BrowserConfig controls the Chromium process.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	Bin              string        `yaml:"bin"`
	NoHeadless       bool          `yaml:"no_headless"`
	NoSandbox        bool          `yaml:"no_sandbox"`
	Stealth          *bool         `yaml:"stealth"` // default true
	ResourceBlocking []string      `yaml:"resource_blocking"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	MemoryLimit      int64         `yaml:"memory_limit"`
}

// CookieConfig selects the cookie jar backend.
type CookieConfig struct {
	Backend string `yaml:"backend"` // file | sqlite, default file
	Path    string `yaml:"path"`    // default cookies.json (file) or cookies.db (sqlite)
	JarName string `yaml:"jar_name"`
}

// LoginConfig drives the login form.
type LoginConfig struct {
	URL                   string        `yaml:"url"`
	IdentifierSelector    string        `yaml:"identifier_selector"`
	SecretSelector        string        `yaml:"secret_selector"`
	SubmitSelector        string        `yaml:"submit_selector"`
	FormTimeout           time.Duration `yaml:"form_timeout"`
	KeyDelay              time.Duration `yaml:"key_delay"`
	SettleTimeout         time.Duration `yaml:"settle_timeout"`
	SettleSelector        string        `yaml:"settle_selector"` // default #global-nav
	SettleSelectorTimeout time.Duration `yaml:"settle_selector_timeout"`
	MinInterval           time.Duration `yaml:"min_interval"`
}

// NavigationConfig bounds page loads.
type NavigationConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Timeout     time.Duration `yaml:"timeout"`
	Backoff     time.Duration `yaml:"backoff"`
}

// SessionConfig classifies pages and names the placeholder-name markers
// that trigger one forced re-authentication.
type SessionConfig struct {
	LoginPaths     []string `yaml:"login_paths"`
	ChallengePaths []string `yaml:"challenge_paths"`
	TitleMarkers   []string `yaml:"title_markers"`
	// NameMarkers default to "join" and "sign in" and match whole words.
	// An explicit empty list disables the re-authentication.
	NameMarkers []string `yaml:"name_markers"`
}

// ExtractConfig controls page preparation and field resolution.
type ExtractConfig struct {
	MaxScrolls  int           `yaml:"max_scrolls"`
	ScrollStep  int           `yaml:"scroll_step"`
	ScrollPause time.Duration `yaml:"scroll_pause"`
	WaitFor     []string      `yaml:"wait_for"`
	WaitTimeout time.Duration `yaml:"wait_timeout"`
	Separator   string        `yaml:"separator"`
	Fields      []FieldConfig `yaml:"fields"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr          string `yaml:"addr"` // default :4000
	BasicAuthUser string `yaml:"basic_auth_user"`
	BasicAuthHash string `yaml:"basic_auth_hash"` // bcrypt
	MaxBodyBytes  int64  `yaml:"max_body_bytes"`  // default 64 KiB
}

// DefaultNameMarkers flag a profile name that is really a sign-up prompt.
var DefaultNameMarkers = []string{"join", "sign in"}

func (c *Config) defaults() {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 2
	}
	if c.CallTimeout == 0 {
		c.CallTimeout = 3 * time.Minute
	}
	if c.Cookies.Backend == "" {
		c.Cookies.Backend = "file"
	}
	if c.Cookies.Path == "" {
		if c.Cookies.Backend == "sqlite" {
			c.Cookies.Path = "cookies.db"
		} else {
			c.Cookies.Path = "cookies.json"
		}
	}
	if c.Session.NameMarkers == nil {
		c.Session.NameMarkers = DefaultNameMarkers
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":4000"
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = 64 << 10
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate rejects settings the scraper cannot run with.
func (c *Config) Validate() error {
	switch c.Cookies.Backend {
	case "", "file", "sqlite":
	default:
		return fmt.Errorf("profilescrape: config: unknown cookies.backend %q (use file or sqlite)", c.Cookies.Backend)
	}
	if err := browser.ValidateResourceTypes(c.Browser.ResourceBlocking); err != nil {
		return fmt.Errorf("profilescrape: config: browser.resource_blocking: %w", err)
	}
	if (c.Server.BasicAuthUser == "") != (c.Server.BasicAuthHash == "") {
		return fmt.Errorf("profilescrape: config: server.basic_auth_user and server.basic_auth_hash go together")
	}
	return nil
}

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig() Config {
	var c Config
	c.defaults()
	return c
}

// LoadConfigFile reads a YAML file over the defaults.
func LoadConfigFile(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("profilescrape: read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("profilescrape: parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	cfg.defaults()
	return cfg, nil
}

// ApplyEnv overlays the environment on c. Credentials are read from
// SCRAPE_IDENTIFIER/SCRAPE_SECRET, falling back to LINKEDIN_EMAIL and
// LINKEDIN_PASSWORD.
func (c *Config) ApplyEnv() {
	c.Credentials.Identifier = firstEnv("SCRAPE_IDENTIFIER", "LINKEDIN_EMAIL")
	c.Credentials.Secret = firstEnv("SCRAPE_SECRET", "LINKEDIN_PASSWORD")
	if v := os.Getenv("CHROME_PATH"); v != "" {
		c.Browser.Bin = v
	}
	if v := os.Getenv("COOKIE_PATH"); v != "" {
		c.Cookies.Path = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if !strings.Contains(v, ":") {
			v = ":" + v
		}
		c.Server.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func (b BrowserConfig) stealth() bool {
	return b.Stealth == nil || *b.Stealth
}

func (b BrowserConfig) manager() browser.Config {
	return browser.Config{
		RemoteURL:        b.Remote,
		Bin:              b.Bin,
		NoHeadless:       b.NoHeadless,
		NoSandbox:        b.NoSandbox,
		Stealth:          b.stealth(),
		ResourceBlocking: b.ResourceBlocking,
		RecycleInterval:  b.RecycleInterval,
		MemoryLimit:      b.MemoryLimit,
	}
}

func (l LoginConfig) authn() authn.Config {
	return authn.Config{
		LoginURL:              l.URL,
		IdentifierSelector:    l.IdentifierSelector,
		SecretSelector:        l.SecretSelector,
		SubmitSelector:        l.SubmitSelector,
		FormTimeout:           l.FormTimeout,
		KeyDelay:              l.KeyDelay,
		SettleTimeout:         l.SettleTimeout,
		SettleSelector:        l.SettleSelector,
		SettleSelectorTimeout: l.SettleSelectorTimeout,
		MinInterval:           l.MinInterval,
	}
}

func (n NavigationConfig) navigator() navigator.Config {
	return navigator.Config{MaxAttempts: n.MaxAttempts, Timeout: n.Timeout, Backoff: n.Backoff}
}

func (s SessionConfig) guard() session.Config {
	return session.Config{LoginPaths: s.LoginPaths, ChallengePaths: s.ChallengePaths, TitleMarkers: s.TitleMarkers}
}

func (e ExtractConfig) extractor() extract.Config {
	return extract.Config{
		MaxScrolls:  e.MaxScrolls,
		ScrollStep:  e.ScrollStep,
		ScrollPause: e.ScrollPause,
		WaitFor:     e.WaitFor,
		WaitTimeout: e.WaitTimeout,
	}
}

func (e ExtractConfig) fields() ([]extract.FieldSpec, error) {
	fields := e.Fields
	if len(fields) == 0 {
		fields = extract.DefaultFields()
	}
	return extract.Build(fields, e.Separator)
}
