package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// ErrClosed is returned by Open after Close.
var ErrClosed = errors.New("browser: manager is closed")

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of an already running Chromium.
	// Empty launches a local one.
	RemoteURL string

	// Bin is the Chromium executable. Empty uses /usr/bin/chromium when it
	// exists, else the launcher's managed download.
	Bin string

	// Headless defaults to true; set NoHeadless to show the window.
	NoHeadless bool

	// NoSandbox disables the Chromium sandbox (containers running as root).
	NoSandbox bool

	// Stealth creates pages through go-rod/stealth.
	Stealth bool

	// ResourceBlocking lists resource types to block (images, fonts, media, stylesheets).
	ResourceBlocking []string

	// RecycleInterval is the maximum lifetime of a Chromium process. The
	// process is only recycled while no context is open. Default: 4h.
	RecycleInterval time.Duration

	// MemoryLimit in bytes of JS heap. Recycle when exceeded and idle. Default: 1GB.
	MemoryLimit int64

	Logger *slog.Logger
}

const defaultChromePath = "/usr/bin/chromium"

func (c *Config) defaults() {
	if c.RecycleInterval <= 0 {
		c.RecycleInterval = 4 * time.Hour
	}
	if c.MemoryLimit <= 0 {
		c.MemoryLimit = 1 << 30
	}
	if c.Bin == "" && c.RemoteURL == "" {
		if _, err := os.Stat(defaultChromePath); err == nil {
			c.Bin = defaultChromePath
		}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns one Chromium process and hands out incognito contexts on it.
// It relaunches the process once when opening a context fails on a dead
// connection, and recycles it periodically while idle.
type Manager struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	startAt time.Time
	active  int
	closed  bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewManager creates a Manager. Chromium is launched lazily by the first
// Open, or eagerly by Start.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg, done: make(chan struct{})}
}

// Start launches Chromium and the recycle monitor.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.browser == nil {
		if err := m.launchLocked(); err != nil {
			return err
		}
	}
	m.wg.Add(1)
	go m.monitorLoop(ctx)
	return nil
}

// Open creates a fresh incognito browsing context.
func (m *Manager) Open(ctx context.Context) (Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if m.browser == nil {
		if err := m.launchLocked(); err != nil {
			return nil, err
		}
	}

	inc, err := m.browser.Incognito()
	if err != nil {
		m.cfg.Logger.Warn("browser: incognito failed, relaunching", "error", err)
		if m.active > 0 {
			return nil, fmt.Errorf("browser: incognito: %w", err)
		}
		m.cleanupLocked()
		if err := m.launchLocked(); err != nil {
			return nil, err
		}
		if inc, err = m.browser.Incognito(); err != nil {
			return nil, fmt.Errorf("browser: incognito after relaunch: %w", err)
		}
	}
	m.active++
	return &rodContext{mgr: m, b: inc}, nil
}

func (m *Manager) release() {
	m.mu.Lock()
	m.active--
	m.mu.Unlock()
}

// Close shuts Chromium down and stops the monitor.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.done)
	m.cleanupLocked()
	m.mu.Unlock()
	m.wg.Wait()
	return nil
}

func (m *Manager) launchLocked() error {
	log := m.cfg.Logger
	wsURL := m.cfg.RemoteURL

	if wsURL != "" {
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().Headless(!m.cfg.NoHeadless)
		if m.cfg.Bin != "" {
			l = l.Bin(m.cfg.Bin)
		}
		if m.cfg.NoSandbox {
			l = l.NoSandbox(true)
		}
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("browser: launched local chromium", "bin", m.cfg.Bin, "stealth", m.cfg.Stealth)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if m.lnch != nil {
			m.lnch.Cleanup()
			m.lnch = nil
		}
		return fmt.Errorf("browser: connect: %w", err)
	}
	m.browser = b
	m.startAt = time.Now()
	return nil
}

func (m *Manager) cleanupLocked() {
	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			m.cfg.Logger.Debug("browser: close", "error", err)
		}
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
}

func (m *Manager) monitorLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
			m.maybeRecycle()
		}
	}
}

// maybeRecycle restarts Chromium when it has outlived RecycleInterval or its
// JS heap exceeds MemoryLimit, but only while no context is open.
func (m *Manager) maybeRecycle() {
	log := m.cfg.Logger
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.browser == nil || m.active > 0 || m.cfg.RemoteURL != "" {
		return
	}

	reason := ""
	if time.Since(m.startAt) > m.cfg.RecycleInterval {
		reason = "interval"
	} else if used, err := jsHeapUsage(m.browser); err == nil && used > m.cfg.MemoryLimit {
		reason = "memory"
	}
	if reason == "" {
		return
	}

	log.Info("browser: recycling", "reason", reason, "uptime", time.Since(m.startAt))
	m.cleanupLocked()
	if err := m.launchLocked(); err != nil {
		log.Error("browser: relaunch failed", "error", err)
	}
}

// jsHeapUsage reads the JS heap of the first open page as a proxy for the
// process footprint.
func jsHeapUsage(b *rod.Browser) (int64, error) {
	pages, err := b.Pages()
	if err != nil || len(pages) == 0 {
		return 0, fmt.Errorf("browser: no pages for heap check")
	}
	res, err := pages[0].Eval(`() => performance.memory ? performance.memory.usedJSHeapSize : 0`)
	if err != nil {
		return 0, err
	}
	return int64(res.Value.Int()), nil
}
