package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// ErrNoTimesheetTab is returned when no open tab shows a timesheet and no
// timesheet URL is configured to open one.
var ErrNoTimesheetTab = errors.New("no timesheet tab open and no timesheet_url configured")

// timesheetTab matches the location of a timesheet grid tab.
const timesheetTab = `timesheet\.pl`

// submitFormJS posts fields from inside the page: a POST form of hidden
// inputs is appended to the body and submitted. Nothing waits for the result.
const submitFormJS = `(action, fields) => {
	const form = document.createElement("form");
	form.setAttribute("method", "post");
	form.setAttribute("action", action);
	for (const [name, value] of Object.entries(fields)) {
		const input = document.createElement("input");
		input.setAttribute("type", "hidden");
		input.setAttribute("name", name);
		input.setAttribute("value", value);
		form.appendChild(input);
	}
	document.body.appendChild(form);
	form.submit();
}`

// LiveBrowser drives a Chrome instance over the DevTools protocol, either an
// already running one (so the user's signed in session is reused) or one it
// launches itself.
type LiveBrowser struct {
	cfg      BrowserConfig
	log      *zap.Logger
	browser  *rod.Browser
	launcher *launcher.Launcher // set when Chrome was launched here
}

func NewLiveBrowser(cfg BrowserConfig, log *zap.Logger) *LiveBrowser {
	if log == nil {
		log = zap.NewNop()
	}
	return &LiveBrowser{cfg: cfg, log: log}
}

// Connect attaches to debugger_url, or launches Chrome when it is empty.
func (b *LiveBrowser) Connect(ctx context.Context) error {
	controlURL := b.cfg.DebuggerURL
	if controlURL == "" {
		l := launcher.New().Headless(b.cfg.Headless)
		if b.cfg.Bin != "" {
			l = l.Bin(b.cfg.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
		b.launcher = l
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		if b.launcher != nil {
			b.launcher.Kill()
			b.launcher = nil
		}
		return fmt.Errorf("connect to chrome: %w", err)
	}
	b.browser = browser
	b.log.Debug("connected to chrome", zap.String("control_url", controlURL), zap.Bool("launched", b.launcher != nil))
	return nil
}

// SeedCookies installs session cookies for host, for a freshly launched
// browser that has never signed in.
func (b *LiveBrowser) SeedCookies(host string, cookies []*http.Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:   c.Name,
			Value:  c.Value,
			Domain: host,
			Path:   "/",
		})
	}
	return b.browser.SetCookies(params)
}

// TimesheetPage returns the open timesheet tab, opening timesheetURL when
// there is none.
func (b *LiveBrowser) TimesheetPage(ctx context.Context, timesheetURL string) (*rod.Page, error) {
	pages, err := b.browser.Pages()
	if err != nil {
		b.log.Debug("listing tabs failed", zap.Error(err))
		pages = nil
	}
	return b.timesheetPage(ctx, pages, timesheetURL)
}

func (b *LiveBrowser) timesheetPage(ctx context.Context, pages rod.Pages, timesheetURL string) (*rod.Page, error) {
	if page, err := pages.FindByURL(timesheetTab); err == nil {
		b.log.Debug("using open timesheet tab", zap.String("target", string(page.TargetID)))
		return page.Context(ctx), nil
	}
	if timesheetURL == "" {
		return nil, ErrNoTimesheetTab
	}

	timeout, err := b.cfg.Timeout()
	if err != nil {
		return nil, err
	}
	page, err := b.browser.Page(proto.TargetCreateTarget{URL: timesheetURL})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", timesheetURL, err)
	}
	if err := page.Context(ctx).Timeout(timeout).WaitLoad(); err != nil {
		return nil, fmt.Errorf("load %s: %w", timesheetURL, err)
	}
	return page.Context(ctx), nil
}

// ReadLivePage parses the page's current DOM, so disabled flags reflect what
// the user sees right now.
func ReadLivePage(page *rod.Page) (*Page, error) {
	markup, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read dom: %w", err)
	}
	return ParsePage(strings.NewReader(markup))
}

// SubmitLive posts fields to postURL from within page.
func SubmitLive(page *rod.Page, postURL string, fields Fields) error {
	if _, err := page.Eval(submitFormJS, postURL, fields.Strings()); err != nil {
		return fmt.Errorf("submit form: %w", err)
	}
	return nil
}

// Close shuts Chrome down if this process launched it. An attached browser
// is left running.
func (b *LiveBrowser) Close() error {
	if b.browser == nil || b.launcher == nil {
		return nil
	}
	err := b.browser.Close()
	b.launcher.Kill()
	b.browser, b.launcher = nil, nil
	return err
}
