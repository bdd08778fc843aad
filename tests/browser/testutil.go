// Package browser provides shared test utilities for Playwright browser tests
// against the todo frontend. Every page's backend is a mockroute.Router, so
// the suites need only FRONTEND_BASE_URL pointing at a running frontend.
//
// Suites live in subpackages and call SetupBrowserTestEnv(t).
package browser

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/todo-e2e/internal/artifacts"
	"github.com/kuitang/todo-e2e/internal/config"
	"github.com/kuitang/todo-e2e/internal/fixtures"
	"github.com/kuitang/todo-e2e/internal/mockroute"
	"github.com/kuitang/todo-e2e/internal/obs"
	"github.com/kuitang/todo-e2e/internal/pwmock"
	"github.com/kuitang/todo-e2e/internal/snapshot"
)

const (
	// CODING AGENT RULE: Always use these timeout constants for browser tests.
	// Never introduce a larger timeout value anywhere in tests/browser.
	browserMaxTimeoutMS = 5000
	browserMaxTimeout   = browserMaxTimeoutMS * time.Millisecond

	BrowserMaxTimeoutMS = browserMaxTimeoutMS
)

// shared holds the one environment of a suite process. Each suite package
// runs as its own test binary, so Chromium is launched once per package.
var shared struct {
	mu  sync.Mutex
	env *BrowserTestEnv
}

// BrowserTestEnv is the shared environment for all browser tests: config,
// one Chromium instance and the snapshot matcher. Routers are per test.
type BrowserTestEnv struct {
	Config    *config.Config
	BaseURL   string
	Snapshots *snapshot.Matcher

	// timeoutMS is BROWSER_TIMEOUT capped at browserMaxTimeout.
	timeoutMS float64

	pw      *playwright.Playwright
	browser playwright.Browser
}

// SetupBrowserTestEnv returns the shared environment with a running
// browser. It skips in -short mode, when FRONTEND_BASE_URL is unset and when
// Playwright is not installed.
func SetupBrowserTestEnv(t *testing.T) *BrowserTestEnv {
	t.Helper()

	if testing.Short() {
		t.Skip("browser suites need a frontend and Chromium; skipped in -short mode")
	}

	shared.mu.Lock()
	defer shared.mu.Unlock()
	if shared.env == nil {
		shared.env = newBrowserTestEnv(t)
	}
	shared.env.launch(t)
	return shared.env
}

func newBrowserTestEnv(t *testing.T) *BrowserTestEnv {
	t.Helper()

	cfg, err := config.LoadConfig(config.Flags{})
	if err != nil {
		t.Fatalf("Failed to load browser test config: %v", err)
	}
	if !cfg.BrowserSuitesEnabled() {
		t.Skip("FRONTEND_BASE_URL not set; start the frontend (npm run preview) and export it")
	}

	obs.Init()
	obs.SetLevel(obs.ParseLevel(cfg.LogLevel))

	return &BrowserTestEnv{
		Config:    cfg,
		BaseURL:   cfg.FrontendBaseURL,
		Snapshots: newSnapshotMatcher(t, cfg),
		timeoutMS: float64(min(cfg.BrowserTimeout, browserMaxTimeout).Milliseconds()),
	}
}

func newSnapshotMatcher(t *testing.T, cfg *config.Config) *snapshot.Matcher {
	t.Helper()

	m := &snapshot.Matcher{
		Dir:    snapshotDir(cfg.SnapshotDir),
		Update: cfg.UpdateSnapshots,
	}
	if !cfg.ArtifactsEnabled() {
		return m
	}

	store, err := artifacts.New(context.Background(), artifacts.Config{
		Endpoint:        cfg.AWSEndpointS3,
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		Bucket:          cfg.ArtifactBucket,
		Run:             cfg.RunID,
		PublicURL:       cfg.ArtifactPublicURL,
	})
	if err != nil {
		t.Fatalf("Failed to create artifact store: %v", err)
	}
	m.Store = store
	return m
}

// snapshotDir resolves a relative SNAPSHOT_DIR against tests/browser so
// every suite package shares one golden tree.
func snapshotDir(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	_, self, _, ok := runtime.Caller(0)
	if !ok {
		panic("browser: cannot locate tests/browser")
	}
	return filepath.Join(filepath.Dir(self), dir)
}

// RunSuite runs a suite package's tests and shuts the shared browser down.
// Suite packages call it from TestMain.
func RunSuite(m *testing.M) {
	code := m.Run()

	shared.mu.Lock()
	if env := shared.env; env != nil {
		if env.browser != nil {
			_ = env.browser.Close()
		}
		if env.pw != nil {
			_ = env.pw.Stop()
		}
		shared.env = nil
	}
	shared.mu.Unlock()

	os.Exit(code)
}

// launch starts Playwright and a headless Chromium once. A missing driver
// or browser skips the test rather than failing it.
func (env *BrowserTestEnv) launch(t *testing.T) {
	t.Helper()

	if env.browser != nil {
		return
	}
	pw, err := playwright.Run()
	if err != nil {
		t.Skip("Playwright not available:", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{Headless: playwright.Bool(true)})
	if err != nil {
		_ = pw.Stop()
		t.Skip("Chromium did not launch:", err)
	}
	env.pw, env.browser = pw, browser
}

// contextOptions pins the time zone so rendered timestamps are stable, and
// sets the base URL relative navigations resolve against.
func (env *BrowserTestEnv) contextOptions() playwright.BrowserNewContextOptions {
	return playwright.BrowserNewContextOptions{
		BaseURL:    playwright.String(env.BaseURL),
		TimezoneId: playwright.String(env.Config.Timezone),
		Viewport: &playwright.Size{
			Width:  1280,
			Height: 800,
		},
	}
}

// NewContext creates a browser context with the env's base URL and time
// zone. It is closed when the test ends.
func (env *BrowserTestEnv) NewContext(t *testing.T) playwright.BrowserContext {
	t.Helper()

	ctx, err := env.browser.NewContext(env.contextOptions())
	if err != nil {
		t.Fatalf("could not create browser context: %v", err)
	}
	ctx.SetDefaultTimeout(env.timeoutMS)
	ctx.SetDefaultNavigationTimeout(env.timeoutMS)
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx
}

// MockedPage is a page whose /api/ traffic is served by Router.
type MockedPage struct {
	Page    playwright.Page
	Context playwright.BrowserContext
	Router  *mockroute.Router
}

// NewMockedPage creates a fresh router and a page routed through it. The
// router is built before the context so no request can reach the real
// backend, and it is closed (reporting unmatched requests) when the test
// ends. The CSRF cookie is preset the way the Django backend would set it.
func (env *BrowserTestEnv) NewMockedPage(t *testing.T) *MockedPage {
	t.Helper()

	router := mockroute.NewForTest(t, mockroute.WithBaseURL(env.BaseURL))
	bctx := env.NewContext(t)

	if err := pwmock.InstallOnContext(bctx, router); err != nil {
		t.Fatalf("Failed to install mock routes: %v", err)
	}
	if err := pwmock.AddCookie(bctx, env.BaseURL, fixtures.CSRFCookieName, fixtures.CSRFToken); err != nil {
		t.Fatalf("Failed to set CSRF cookie: %v", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		t.Fatalf("could not create page: %v", err)
	}
	return &MockedPage{Page: page, Context: bctx, Router: router}
}

// Navigate navigates to a path on the frontend and waits for DOMContentLoaded.
func Navigate(t *testing.T, page playwright.Page, baseURL, path string) {
	t.Helper()

	_, err := page.Goto(baseURL+path, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(browserMaxTimeoutMS),
	})
	if err != nil {
		t.Fatalf("Failed to navigate to %s: %v", path, err)
	}
}

// WaitForSelector waits for an element to be visible and returns its locator.
func WaitForSelector(t *testing.T, page playwright.Page, selector string) playwright.Locator {
	t.Helper()

	first := page.Locator(selector).First()
	err := first.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(browserMaxTimeoutMS),
	})
	if err != nil {
		logPageState(t, page)
		t.Fatalf("Failed to wait for selector %s: %v", selector, err)
	}
	return first
}

// WaitForHidden waits until no element matching selector is visible.
func WaitForHidden(t *testing.T, page playwright.Page, selector string) {
	t.Helper()

	err := page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateHidden,
		Timeout: playwright.Float(browserMaxTimeoutMS),
	})
	if err != nil {
		logPageState(t, page)
		t.Fatalf("Selector %s still visible: %v", selector, err)
	}
}

// ExpectText waits for selector and checks its rendered text contains want.
func ExpectText(t *testing.T, page playwright.Page, selector, want string) {
	t.Helper()

	text, err := WaitForSelector(t, page, selector).InnerText()
	if err != nil {
		t.Fatalf("Failed to read text of %s: %v", selector, err)
	}
	if !strings.Contains(text, want) {
		t.Errorf("%s text = %q, want it to contain %q", selector, text, want)
	}
}

// ExpectValue waits for an input and checks its value.
func ExpectValue(t *testing.T, page playwright.Page, selector, want string) {
	t.Helper()

	got, err := WaitForSelector(t, page, selector).InputValue()
	if err != nil {
		t.Fatalf("Failed to read value of %s: %v", selector, err)
	}
	if got != want {
		t.Errorf("%s value = %q, want %q", selector, got, want)
	}
}

// ExpectPath waits for the page to land on path (under the base URL), with
// or without a trailing slash.
func ExpectPath(t *testing.T, page playwright.Page, path string) {
	t.Helper()

	err := page.WaitForURL(pathPattern(path), playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(browserMaxTimeoutMS),
	})
	if err != nil {
		t.Fatalf("Expected to land on %s, at %s: %v", path, page.URL(), err)
	}
}

// pathPattern matches any absolute URL whose path is path, trailing slash
// optional, with any query string.
func pathPattern(path string) *regexp.Regexp {
	trimmed := strings.TrimSuffix(path, "/")
	return regexp.MustCompile(`^[a-z]+://[^/]+` + regexp.QuoteMeta(trimmed) + `/?(\?.*)?$`)
}

// Click clicks the first element matching selector.
func Click(t *testing.T, page playwright.Page, selector string) {
	t.Helper()

	if err := WaitForSelector(t, page, selector).Click(); err != nil {
		t.Fatalf("Failed to click %s: %v", selector, err)
	}
}

// Fill replaces the value of the input matching selector.
func Fill(t *testing.T, page playwright.Page, selector, value string) {
	t.Helper()

	if err := WaitForSelector(t, page, selector).Fill(value); err != nil {
		t.Fatalf("Failed to fill %s: %v", selector, err)
	}
}

func logPageState(t *testing.T, page playwright.Page) {
	t.Helper()

	title, _ := page.Title()
	content, _ := page.Content()
	if len(content) > 500 {
		content = content[:500] + "..."
	}
	t.Logf("Current URL: %s", page.URL())
	t.Logf("Current title: %s", title)
	t.Logf("Content preview: %s", content)
}

// MatchHTMLSnapshot compares the inner HTML of selector with a golden file.
func (env *BrowserTestEnv) MatchHTMLSnapshot(t *testing.T, page playwright.Page, selector, name string) {
	t.Helper()

	html, err := WaitForSelector(t, page, selector).InnerHTML()
	if err != nil {
		t.Fatalf("Failed to read HTML of %s: %v", selector, err)
	}
	env.Snapshots.MatchHTML(t, name, html)
}

// MatchScreenshot compares a full-page screenshot with a golden PNG.
func (env *BrowserTestEnv) MatchScreenshot(t *testing.T, page playwright.Page, name string) {
	t.Helper()

	png, err := page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		t.Fatalf("Failed to take screenshot %s: %v", name, err)
	}
	env.Snapshots.MatchScreenshot(t, name, png)
}

// CaptureCSRF registers a rule on pattern that records the CSRF header of
// each mutating request and then falls through to the rules registered
// before it. Register it after the rules that answer.
func CaptureCSRF(router *mockroute.Router, pattern string) func() []string {
	var mu sync.Mutex
	var tokens []string
	router.Register(pattern, func(req *mockroute.Request) (mockroute.ResponseSpec, error) {
		mu.Lock()
		tokens = append(tokens, req.Header.Get(fixtures.CSRFHeaderName))
		mu.Unlock()
		return mockroute.ResponseSpec{}, mockroute.ErrFallThrough
	}, mockroute.Methods("POST", "PUT", "PATCH", "DELETE"), mockroute.Named("csrf capture"))

	return func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), tokens...)
	}
}

// ExpectCSRFHeader checks that at least one mutating request was captured
// and that each carried the token from the CSRF cookie.
func ExpectCSRFHeader(t *testing.T, tokens []string) {
	t.Helper()

	if len(tokens) == 0 {
		t.Fatalf("no mutating request reached the mock backend")
	}
	for i, tok := range tokens {
		if tok != fixtures.CSRFToken {
			t.Errorf("mutating request %d sent %s=%q, want %q", i, fixtures.CSRFHeaderName, tok, fixtures.CSRFToken)
		}
	}
}
