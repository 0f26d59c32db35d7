// Package browser fills surveys in a live Chromium page driven by go-rod.
//
// Text resolution, applying and the notification banner run as embedded
// page scripts; decisions are made in Go by the selector. A session runs
// once after the page loads, then again whenever the page gains radio
// inputs or the injected Auto-Answer button is clicked.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ppiankov/surveyfill/internal/model"
	"github.com/ppiankov/surveyfill/internal/pipeline"
	"github.com/ppiankov/surveyfill/internal/selector"
	"github.com/ppiankov/surveyfill/internal/watch"
	"go.uber.org/zap"
)

// maxPollFailures bounds consecutive poll errors before Run gives up on the page
const maxPollFailures = 20

// ErrNoPage is returned by page operations before Open
var ErrNoPage = errors.New("no page open")

// Config holds live session settings
type Config struct {
	Headless          bool
	Bin               string
	DebuggerURL       string
	NavigationTimeout time.Duration
	InitialDelay      time.Duration
	Debounce          time.Duration
	PollInterval      time.Duration
	BannerDuration    time.Duration
	ManualButton      bool
	Strategies        []string
	AnswerClass       string
}

// DefaultConfig returns the default session settings
func DefaultConfig() Config {
	return ConfigFromModel(model.DefaultConfig())
}

// ConfigFromModel extracts session settings from the application config
func ConfigFromModel(cfg *model.Config) Config {
	return Config{
		Headless:          cfg.Browser.Headless,
		Bin:               cfg.Browser.Bin,
		DebuggerURL:       cfg.Browser.DebuggerURL,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		InitialDelay:      cfg.Browser.InitialDelay,
		Debounce:          cfg.Browser.Debounce,
		PollInterval:      cfg.Browser.PollInterval,
		BannerDuration:    cfg.Browser.BannerDuration,
		ManualButton:      cfg.Browser.ManualButton,
		Strategies:        append([]string(nil), cfg.Resolve.Strategies...),
		AnswerClass:       cfg.Resolve.AnswerClass,
	}
}

// RunFunc receives every run's report
type RunFunc func(report *model.Report, err error)

// Session is one browser with one survey page
type Session struct {
	cfg      Config
	selector *selector.Selector
	observer pipeline.Observer
	logger   *zap.Logger

	mu       sync.Mutex
	browser  *rod.Browser
	page     *rod.Page
	launched *launcher.Launcher

	runMu sync.Mutex
}

// NewSession creates a session. A nil logger disables logging.
func NewSession(cfg Config, sel *selector.Selector, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sel == nil {
		sel = selector.New(nil, logger)
	}
	return &Session{cfg: cfg, selector: sel, logger: logger}
}

// SetObserver registers a run observer such as the metrics collector
func (s *Session) SetObserver(o pipeline.Observer) {
	s.observer = o
}

// Start connects to the configured debugger URL or launches a browser
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser != nil {
		return nil
	}

	controlURL := s.cfg.DebuggerURL
	if controlURL == "" {
		l := launcher.New().Headless(s.cfg.Headless)
		if s.cfg.Bin != "" {
			l = l.Bin(s.cfg.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
		s.launched = l
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}
	s.browser = b

	s.logger.Info("browser connected", zap.Bool("launched", s.launched != nil))
	return nil
}

// Open navigates a new tab to url and waits for the load event
func (s *Session) Open(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser == nil {
		return fmt.Errorf("open %s: browser not started", url)
	}

	page, err := s.browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return fmt.Errorf("open %s: %w", url, err)
	}
	waiter := page.Context(ctx)
	if s.cfg.NavigationTimeout > 0 {
		waiter = waiter.Timeout(s.cfg.NavigationTimeout)
	}
	if err := waiter.WaitLoad(); err != nil {
		return fmt.Errorf("wait for load: %w", err)
	}
	s.page = page

	s.logger.Info("page opened", zap.String("url", url))
	return nil
}

func (s *Session) currentPage() (*rod.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil {
		return nil, ErrNoPage
	}
	return s.page, nil
}

// eval runs a page script and returns its JSON result
func (s *Session) eval(ctx context.Context, js string, args ...interface{}) ([]byte, error) {
	page, err := s.currentPage()
	if err != nil {
		return nil, err
	}

	res, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           js,
		JSArgs:       args,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errors.New("empty evaluation result")
	}
	return res.Value.MarshalJSON()
}

// Snapshot reads the page's radio groups with their resolved texts
func (s *Session) Snapshot(ctx context.Context) ([]selector.Question, error) {
	raw, err := s.eval(ctx, snapshotJS, s.cfg.Strategies, s.cfg.AnswerClass)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return decodeSnapshot(raw)
}

// Apply checks each changed winner and fires its input events
func (s *Session) Apply(ctx context.Context, decisions []selector.Decision) (int, error) {
	choices := choicesFor(decisions)
	if len(choices) == 0 {
		return 0, nil
	}

	raw, err := s.eval(ctx, applyJS, choices)
	if err != nil {
		return 0, fmt.Errorf("apply: %w", err)
	}

	var applied int
	if err := decodeJSON(raw, &applied); err != nil {
		return 0, fmt.Errorf("apply: %w", err)
	}
	return applied, nil
}

// Notify shows the summary banner
func (s *Session) Notify(ctx context.Context, summary model.Summary) error {
	if _, err := s.eval(ctx, bannerJS, pipeline.SummaryLine(summary), s.cfg.BannerDuration.Milliseconds()); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

// InstallTriggers adds the mutation observer and, if configured, the Auto-Answer button.
// Installing twice on the same document is a no-op.
func (s *Session) InstallTriggers(ctx context.Context) error {
	if _, err := s.eval(ctx, triggersJS, s.cfg.ManualButton); err != nil {
		return fmt.Errorf("install triggers: %w", err)
	}
	return nil
}

func (s *Session) poll(ctx context.Context) (triggerState, error) {
	var state triggerState
	raw, err := s.eval(ctx, pollJS)
	if err != nil {
		return state, fmt.Errorf("poll: %w", err)
	}
	if err := decodeJSON(raw, &state); err != nil {
		return state, fmt.Errorf("poll: %w", err)
	}
	return state, nil
}

// RunOnce snapshots, decides, applies and notifies. Runs are serialized.
func (s *Session) RunOnce(ctx context.Context, trigger string) (*model.Report, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	questions, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	decisions, summary := s.selector.DecideAll(questions)
	report := pipeline.BuildReport(questions, decisions, summary)
	report.Trigger = trigger
	if page, err := s.currentPage(); err == nil {
		if info, err := page.Info(); err == nil {
			report.Source = info.URL
			report.Subject = info.Title
		}
	}

	applied, err := s.Apply(ctx, decisions)
	if err != nil {
		return report, err
	}
	if applied != summary.Changed {
		s.logger.Warn("page changed during run",
			zap.Int("expected", summary.Changed), zap.Int("applied", applied))
	}

	if err := s.Notify(ctx, summary); err != nil {
		s.logger.Warn("banner failed", zap.Error(err))
	}

	if s.observer != nil {
		s.observer.Observe(trigger, summary)
	}

	s.logger.Info("page filled",
		zap.String("run_id", report.RunID),
		zap.String("trigger", trigger),
		zap.Int("total", summary.Total),
		zap.Int("changed", summary.Changed),
		zap.Int("fallbacks", summary.Fallbacks))

	return report, nil
}

// Run fills the page after the initial delay, then keeps re-filling on
// DOM additions (debounced) and button clicks until ctx ends
func (s *Session) Run(ctx context.Context, onRun RunFunc) error {
	select {
	case <-ctx.Done():
		return nil
	case <-time.After(s.cfg.InitialDelay):
	}

	run := func(trigger string) {
		report, err := s.RunOnce(ctx, trigger)
		if onRun != nil && ctx.Err() == nil {
			onRun(report, err)
		}
	}

	run(pipeline.TriggerReady)
	if err := s.InstallTriggers(ctx); err != nil {
		return err
	}

	debouncer := watch.NewDebouncer(s.cfg.Debounce, func() { run(pipeline.TriggerMutation) })
	defer debouncer.Stop()

	interval := s.cfg.PollInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		state, err := s.poll(ctx)
		if err != nil {
			failures++
			if failures >= maxPollFailures {
				return fmt.Errorf("page unavailable: %w", err)
			}
			continue
		}
		failures = 0

		// A navigation drops the page state; the new document needs triggers and a run
		if !state.Installed {
			if err := s.InstallTriggers(ctx); err != nil {
				s.logger.Warn("reinstall triggers", zap.Error(err))
				continue
			}
			debouncer.Trigger()
			continue
		}
		if state.Manual {
			run(pipeline.TriggerManual)
		}
		if state.Mutation {
			debouncer.Trigger()
		}
	}
}

// Close releases the session. A launched browser is shut down; a browser
// reached through DebuggerURL only loses the session's tab.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch {
	case s.launched != nil && s.browser != nil:
		err = s.browser.Close()
		s.launched.Cleanup()
	case s.page != nil:
		err = s.page.Close()
	}

	s.browser = nil
	s.page = nil
	s.launched = nil
	return err
}
