package linkedin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/dossier/pkg/accounts"
	"github.com/codeGROOVE-dev/dossier/pkg/auth"
	"github.com/codeGROOVE-dev/dossier/pkg/portfolio"
	"github.com/codeGROOVE-dev/dossier/pkg/session"
	"github.com/codeGROOVE-dev/dossier/pkg/totp"
)

// State names a position in the scrape lifecycle. Terminal states are Done,
// PartialDone and Aborted; everything else is passed through.
type State string

// Scrape lifecycle states.
const (
	StateInit                 State = "init"
	StateSessionCheck         State = "session_check"
	StateLoginRequired        State = "login_required"
	StateCredentialsSubmitted State = "credentials_submitted"
	StateTwoFactorRequired    State = "two_factor_required"
	StateCodeSubmitted        State = "code_submitted"
	StateSecurityChallenge    State = "security_challenge"
	StateAuthenticated        State = "authenticated"
	StateNavigating           State = "navigating"
	StateExtracting           State = "extracting"
	StateDone                 State = "done"
	StatePartialDone          State = "partial_done"
	StateAborted              State = "aborted"
)

// DefaultChallengeWait bounds how long a security challenge may hold the
// scrape before the account is declared blocked.
const DefaultChallengeWait = 15 * time.Second

// Pause ranges mirror human pacing on the login and profile pages.
const (
	settleMin = 2 * time.Second
	settleMax = 3 * time.Second
	fieldMin  = 500 * time.Millisecond
	fieldMax  = 1500 * time.Millisecond
	keyMin    = 50 * time.Millisecond
	keyMax    = 150 * time.Millisecond
	submitMin = 5 * time.Second
	submitMax = 7 * time.Second
	scrollMin = 500 * time.Millisecond
	scrollMax = 1200 * time.Millisecond
)

// Section caps keep a scrape's footprint small and its duration bounded.
const (
	maxExperience   = 5
	maxSkills       = 10
	maxEducation    = 5
	maxCertificates = 5
)

// Login page selectors.
const (
	usernameField = "#username"
	passwordField = "#password"
	submitButton  = "button[type='submit']"
)

// Profile page selectors. LinkedIn renders most text twice, once
// aria-hidden; cleanLines collapses the duplicates.
const (
	nameSelector      = "h1"
	headlineSelector  = "div.text-body-medium"
	aboutSelector     = `section:has(div#about) span[aria-hidden="true"]`
	aboutShowMore     = `section:has(div#about) button.inline-show-more-text__button`
	experienceItems   = `section:has(div#experience) li.artdeco-list__item`
	skillItems        = `section:has(div#skills) li.artdeco-list__item`
	skillsShowAll     = `a[href*="/details/skills"]`
	skillsDetailItems = `main li.pvs-list__paged-list-item`
	educationItems    = `section:has(div#education) li.artdeco-list__item`
	certificateItems  = `section:has(div#licenses_and_certifications) li.artdeco-list__item`
)

// twoFactorInputs locate the verification-code field across the checkpoint
// variants LinkedIn serves.
var twoFactorInputs = []string{
	"input#input__phone_verification_pin",
	"input[name='pin']",
	"input[type='tel']",
	"input[aria-label*='verification']",
	"input[placeholder*='code']",
}

var twoFactorSubmits = []string{
	"button#two-step-submit-button",
	"button[type='submit']",
}

var loginErrorSelectors = []string{
	"#error-for-username",
	"#error-for-password",
	"div.form__label--error",
}

// Rotator hands out the next eligible account.
type Rotator interface {
	Acquire(ctx context.Context) (accounts.Account, error)
}

// SessionStore persists login sessions between scrapes.
type SessionStore interface {
	Load(ctx context.Context, email string) (*session.State, error)
	Save(ctx context.Context, email string, cookies []session.Cookie) error
	Delete(ctx context.Context, email string) error
}

// Ledger records that an account was spent on an attempt.
type Ledger interface {
	RecordAttempt(ctx context.Context, email string, success bool) error
}

// Outcome reports how a scrape ended and what it recovered.
type Outcome struct {
	Record *portfolio.PartialRecord
	// Account is the email of the pool account the attempt consumed.
	Account string
	State   State
}

// Option configures a Scraper.
type Option func(*config)

type config struct {
	logger        *slog.Logger
	seed          auth.Source
	newDriver     func(ctx context.Context) (Driver, error)
	now           func() time.Time
	delayScale    float64
	challengeWait time.Duration
	headful       bool
	chromePath    string
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithCookieSeed sets a cookie source used to bootstrap a session when the
// store has none for the account, typically auth.NewBrowserSource.
func WithCookieSeed(src auth.Source) Option {
	return func(c *config) { c.seed = src }
}

// WithDriver replaces the browser factory. Each scrape asks the factory for
// a fresh driver and closes it when the attempt ends.
func WithDriver(newDriver func(ctx context.Context) (Driver, error)) Option {
	return func(c *config) { c.newDriver = newDriver }
}

// WithClock overrides the time source, used for two-factor codes.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithDelayScale scales every humanized pause. 1 is real pacing; 0 disables
// waiting entirely and is meant for tests.
func WithDelayScale(scale float64) Option {
	return func(c *config) { c.delayScale = max(scale, 0) }
}

// WithChallengeWait overrides how long a security challenge is waited out
// before the attempt is abandoned.
func WithChallengeWait(d time.Duration) Option {
	return func(c *config) { c.challengeWait = d }
}

// WithHeadful makes the default browser factory launch a visible browser.
func WithHeadful() Option {
	return func(c *config) { c.headful = true }
}

// WithChromePath points the default browser factory at an explicit binary.
func WithChromePath(path string) Option {
	return func(c *config) { c.chromePath = path }
}

// Scraper fetches LinkedIn profiles through a browser, reusing stored
// sessions when it can and logging in like a person when it cannot.
type Scraper struct {
	rotator  Rotator
	sessions SessionStore
	ledger   Ledger
	seed     auth.Source
	logger   *slog.Logger
	now      func() time.Time

	newDriver     func(ctx context.Context) (Driver, error)
	delayScale    float64
	challengeWait time.Duration
}

// New assembles a Scraper around an account pool, a session store and the
// usage ledger. All three are required: a scrape always spends an account.
func New(rotator Rotator, sessions SessionStore, usage Ledger, opts ...Option) (*Scraper, error) {
	if rotator == nil || sessions == nil || usage == nil {
		return nil, errors.New("rotator, session store and ledger are required")
	}

	cfg := &config{
		logger:        slog.Default(),
		now:           time.Now,
		delayScale:    1,
		challengeWait: DefaultChallengeWait,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.newDriver == nil {
		cfg.newDriver = func(ctx context.Context) (Driver, error) {
			return NewChrome(ctx, ChromeConfig{
				Logger:   cfg.logger,
				Headful:  cfg.headful,
				ExecPath: cfg.chromePath,
			})
		}
	}

	return &Scraper{
		rotator:       rotator,
		sessions:      sessions,
		ledger:        usage,
		seed:          cfg.seed,
		logger:        cfg.logger,
		now:           cfg.now,
		newDriver:     cfg.newDriver,
		delayScale:    cfg.delayScale,
		challengeWait: cfg.challengeWait,
	}, nil
}

// Scrape fetches one profile. It acquires an account, walks the login state
// machine and extracts the profile sections. The returned Outcome is non-nil
// whenever an attempt ran, even on error, so callers can see which account
// was spent and how far the walk got.
func (s *Scraper) Scrape(ctx context.Context, profileURL string) (*Outcome, error) {
	target := ProfileURL(profileURL)
	if target == "" {
		return nil, fmt.Errorf("not a linkedin profile reference: %q", profileURL)
	}

	account, err := s.rotator.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire account: %w", err)
	}
	s.logger.InfoContext(ctx, "scraping linkedin profile",
		"profile", publicID(target), "account", account.Email)

	drv, err := s.newDriver(ctx)
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	r := &run{s: s, drv: drv, account: account, target: target, state: StateInit}
	err = r.execute(ctx)

	// From here on the attempt already happened: session and ledger writes
	// go through regardless of the caller's context.
	bctx := context.WithoutCancel(ctx)

	if r.state == StateDone || r.state == StatePartialDone {
		if cookies, cerr := drv.Cookies(bctx); cerr != nil {
			s.logger.WarnContext(ctx, "reading session cookies failed",
				"account", account.Email, "error", cerr)
		} else if serr := s.sessions.Save(bctx, account.Email, cookies); serr != nil {
			s.logger.WarnContext(ctx, "saving session failed",
				"account", account.Email, "error", serr)
		}
	}

	if cerr := drv.Close(bctx); cerr != nil {
		s.logger.DebugContext(ctx, "browser close failed", "error", cerr)
	}

	success := r.state != StateAborted
	if lerr := s.ledger.RecordAttempt(bctx, account.Email, success); lerr != nil {
		// An unrecorded attempt must not look like a clean result.
		err = errors.Join(err, fmt.Errorf("record attempt: %w", lerr))
	}

	return &Outcome{State: r.state, Record: r.record, Account: account.Email}, err
}

// run is the per-attempt state of one scrape.
type run struct {
	s       *Scraper
	drv     Driver
	account accounts.Account
	target  string
	state   State
	record  *portfolio.PartialRecord
	err     error
}

// execute walks the state machine and normalizes every failure into Aborted.
func (r *run) execute(ctx context.Context) error {
	err := r.walk(ctx)
	if err == nil {
		return nil
	}
	failedIn := r.state
	r.to(ctx, StateAborted)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("scrape in state %q: %w", string(failedIn), portfolio.ErrTimeout)
	}
	return fmt.Errorf("scrape in state %q: %w", string(failedIn), err)
}

func (r *run) walk(ctx context.Context) error {
	authenticated, err := r.checkSession(ctx)
	if err != nil {
		return err
	}
	if !authenticated {
		if err := r.login(ctx); err != nil {
			return err
		}
	}
	if err := r.openProfile(ctx); err != nil {
		return err
	}
	return r.extract(ctx)
}

func (r *run) to(ctx context.Context, next State) {
	r.s.logger.DebugContext(ctx, "scrape state",
		"account", r.account.Email, "from", string(r.state), "to", string(next))
	r.state = next
}

// checkSession tries to skip the login flow with a stored or seeded session.
// It returns true with the browser already on the target profile.
func (r *run) checkSession(ctx context.Context) (bool, error) {
	r.to(ctx, StateSessionCheck)

	var cookies []session.Cookie
	fromStore := false
	stored, err := r.s.sessions.Load(ctx, r.account.Email)
	switch {
	case err != nil:
		r.s.logger.WarnContext(ctx, "session load failed, treating as absent",
			"account", r.account.Email, "error", err)
	case stored != nil:
		cookies = stored.Cookies
		fromStore = true
	}

	if len(cookies) == 0 && r.s.seed != nil {
		seeded, serr := r.s.seed.Cookies(ctx)
		switch {
		case serr != nil:
			r.s.logger.WarnContext(ctx, "cookie seed failed", "error", serr)
		case seeded["li_at"] != "":
			cookies = auth.SessionCookies(seeded)
			r.s.logger.InfoContext(ctx, "seeding session from ambient cookies",
				"account", r.account.Email, "cookies", len(cookies))
		}
	}

	if len(cookies) == 0 {
		return false, nil
	}

	if err := r.drv.SetCookies(ctx, cookies); err != nil {
		return false, fmt.Errorf("install session cookies: %w", err)
	}
	if err := r.drv.Navigate(ctx, r.target); err != nil {
		return false, fmt.Errorf("open profile: %w", err)
	}
	if err := r.s.pause(ctx, settleMin, settleMax); err != nil {
		return false, err
	}

	loc, err := r.drv.Location(ctx)
	if err != nil {
		return false, err
	}
	if challengeURL(loc) || !loggedInURL(loc) {
		r.s.logger.InfoContext(ctx, "stored session rejected, falling back to login",
			"account", r.account.Email, "location", loc)
		if fromStore {
			if derr := r.s.sessions.Delete(ctx, r.account.Email); derr != nil {
				r.s.logger.WarnContext(ctx, "deleting dead session failed",
					"account", r.account.Email, "error", derr)
			}
		}
		return false, nil
	}

	r.to(ctx, StateAuthenticated)
	return true, nil
}

// login performs the credential flow and whatever checkpoint LinkedIn
// raises after it, ending in Authenticated or an error.
func (r *run) login(ctx context.Context) error {
	r.to(ctx, StateLoginRequired)

	if err := r.drv.Navigate(ctx, loginURL); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	if err := r.s.pause(ctx, settleMin, settleMax); err != nil {
		return err
	}
	if err := r.typeField(ctx, usernameField, r.account.Email); err != nil {
		return fmt.Errorf("type username: %w", err)
	}
	if err := r.s.pause(ctx, fieldMin, fieldMax); err != nil {
		return err
	}
	if err := r.typeField(ctx, passwordField, r.account.Password); err != nil {
		return fmt.Errorf("type password: %w", err)
	}
	if err := r.s.pause(ctx, fieldMin, fieldMax); err != nil {
		return err
	}
	if err := r.drv.Click(ctx, submitButton); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}
	r.to(ctx, StateCredentialsSubmitted)
	if err := r.s.pause(ctx, submitMin, submitMax); err != nil {
		return err
	}

	// Credentials can settle on the feed, a two-factor prompt, a challenge
	// wall, or back on the login form. A cleared wall is classified again,
	// so two passes through the wall handling can precede success.
	for range 3 {
		loc, err := r.drv.Location(ctx)
		if err != nil {
			return err
		}
		if loggedInURL(loc) {
			r.to(ctx, StateAuthenticated)
			return nil
		}
		prompt, err := r.firstPresent(ctx, twoFactorInputs)
		if err != nil {
			return err
		}
		switch {
		case prompt != "":
			return r.submitTwoFactor(ctx, prompt)
		case challengeURL(loc):
			if err := r.waitOutChallenge(ctx); err != nil {
				return err
			}
		default:
			return r.loginFailure(ctx)
		}
	}
	return fmt.Errorf("login for %s did not settle: %w", r.account.Email, portfolio.ErrLoginFailed)
}

// submitTwoFactor types the TOTP code into the verification prompt. Without
// a seed there is nothing to type and a person has to intervene.
func (r *run) submitTwoFactor(ctx context.Context, inputSel string) error {
	r.to(ctx, StateTwoFactorRequired)

	if r.account.TOTPSeed == "" {
		return fmt.Errorf("account %s hit a verification prompt and has no totp seed: %w",
			r.account.Email, portfolio.ErrManualAction)
	}
	code, err := totp.Code(r.account.TOTPSeed, r.s.now())
	if err != nil {
		return fmt.Errorf("totp code: %w", err)
	}

	if err := r.typeField(ctx, inputSel, code); err != nil {
		return fmt.Errorf("type verification code: %w", err)
	}
	submit, err := r.firstPresent(ctx, twoFactorSubmits)
	if err != nil {
		return err
	}
	if submit != "" {
		if err := r.drv.Click(ctx, submit); err != nil {
			return fmt.Errorf("submit verification code: %w", err)
		}
	}
	r.to(ctx, StateCodeSubmitted)
	if err := r.s.pause(ctx, submitMin, submitMax); err != nil {
		return err
	}

	loc, err := r.drv.Location(ctx)
	if err != nil {
		return err
	}
	if !loggedInURL(loc) {
		return fmt.Errorf("verification code rejected for %s: %w",
			r.account.Email, portfolio.ErrLoginFailed)
	}
	r.to(ctx, StateAuthenticated)
	return nil
}

// waitOutChallenge gives a challenge wall one bounded chance to clear.
// CAPTCHAs are never solved; a wall that persists blocks the account.
func (r *run) waitOutChallenge(ctx context.Context) error {
	r.to(ctx, StateSecurityChallenge)
	r.s.logger.WarnContext(ctx, "security challenge encountered", "account", r.account.Email)

	if err := r.s.pause(ctx, r.s.challengeWait, r.s.challengeWait); err != nil {
		return err
	}
	loc, err := r.drv.Location(ctx)
	if err != nil {
		return err
	}
	if challengeURL(loc) {
		return fmt.Errorf("account %s held at %s: %w",
			r.account.Email, loc, portfolio.ErrChallengeBlocked)
	}
	return nil
}

// loginFailure reads the form's error banner, if any, into the error.
func (r *run) loginFailure(ctx context.Context) error {
	for _, sel := range loginErrorSelectors {
		ok, err := r.drv.Exists(ctx, sel)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		msg, err := r.drv.Text(ctx, sel)
		if err != nil {
			return err
		}
		if msg = strings.TrimSpace(msg); msg != "" {
			return fmt.Errorf("linkedin rejected %s: %s: %w",
				r.account.Email, msg, portfolio.ErrLoginFailed)
		}
	}
	return fmt.Errorf("linkedin rejected credentials for %s: %w",
		r.account.Email, portfolio.ErrLoginFailed)
}

// openProfile lands the authenticated browser on the target profile and
// scrolls the lazy sections into existence.
func (r *run) openProfile(ctx context.Context) error {
	r.to(ctx, StateNavigating)

	loc, err := r.drv.Location(ctx)
	if err != nil {
		return err
	}
	if !strings.EqualFold(strings.TrimSuffix(loc, "/"), strings.TrimSuffix(r.target, "/")) {
		if err := r.drv.Navigate(ctx, r.target); err != nil {
			return fmt.Errorf("open profile: %w", err)
		}
		if err := r.s.pause(ctx, settleMin, settleMax); err != nil {
			return err
		}
		loc, err = r.drv.Location(ctx)
		if err != nil {
			return err
		}
	}

	// Profile navigation can raise its own wall even on a valid session.
	if challengeURL(loc) {
		if err := r.waitOutChallenge(ctx); err != nil {
			return err
		}
		r.to(ctx, StateNavigating)
		if err := r.drv.Navigate(ctx, r.target); err != nil {
			return fmt.Errorf("open profile: %w", err)
		}
		if err := r.s.pause(ctx, settleMin, settleMax); err != nil {
			return err
		}
	}

	for range 3 {
		if err := r.drv.Scroll(ctx, 500+rand.IntN(400)); err != nil {
			return err
		}
		if err := r.s.pause(ctx, scrollMin, scrollMax); err != nil {
			return err
		}
	}

	body, err := r.drv.Text(ctx, "body")
	if err != nil {
		return err
	}
	if profileUnavailable(body) {
		return fmt.Errorf("profile %q: %w", publicID(r.target), portfolio.ErrProfileNotFound)
	}
	return nil
}

// extract reads the profile sections in a fixed order. A missing section is
// a warning and an empty field, never a failure; only the driver breaking
// aborts. The walk ends Done when a name was recovered, PartialDone
// otherwise.
func (r *run) extract(ctx context.Context) error {
	r.to(ctx, StateExtracting)
	rec := &portfolio.PartialRecord{Source: portfolio.SourceSocial}

	rec.Name = r.textField(ctx, "name", nameSelector)
	rec.Headline = r.textField(ctx, "headline", headlineSelector)
	rec.Summary = r.aboutText(ctx)

	for _, item := range r.sectionItems(ctx, "experience", experienceItems, maxExperience) {
		if e := parseExperience(item); e != (portfolio.Experience{}) {
			rec.Experience = append(rec.Experience, e)
		}
	}
	rec.Skills = r.skills(ctx)
	for _, item := range r.sectionItems(ctx, "education", educationItems, maxEducation) {
		if ed := parseEducation(item); ed != (portfolio.Education{}) {
			rec.Education = append(rec.Education, ed)
		}
	}
	for _, item := range r.sectionItems(ctx, "certificates", certificateItems, maxCertificates) {
		if c := parseCertificate(item); c != (portfolio.Certificate{}) {
			rec.Certificates = append(rec.Certificates, c)
		}
	}

	if r.err != nil {
		return r.err
	}

	r.record = rec
	r.s.logger.InfoContext(ctx, "profile extracted",
		"profile", publicID(r.target),
		"name", rec.Name != "",
		"experience", len(rec.Experience),
		"skills", len(rec.Skills),
		"education", len(rec.Education),
		"certificates", len(rec.Certificates))

	if rec.Name == "" {
		r.to(ctx, StatePartialDone)
	} else {
		r.to(ctx, StateDone)
	}
	return nil
}

// textField reads one selector's text; a miss logs and yields "".
// Driver failures stick in r.err and short-circuit later reads.
func (r *run) textField(ctx context.Context, field, selector string) string {
	if r.err != nil {
		return ""
	}
	ok, err := r.drv.Exists(ctx, selector)
	if err != nil {
		r.err = err
		return ""
	}
	if !ok {
		r.s.logger.WarnContext(ctx, "profile section missing", "field", field, "selector", selector)
		return ""
	}
	text, err := r.drv.Text(ctx, selector)
	if err != nil {
		r.err = err
		return ""
	}
	return strings.TrimSpace(text)
}

// sectionItems reads a repeated section's items, capped.
func (r *run) sectionItems(ctx context.Context, field, selector string, limit int) []string {
	if r.err != nil {
		return nil
	}
	items, err := r.drv.Texts(ctx, selector)
	if err != nil {
		r.err = err
		return nil
	}
	if len(items) == 0 {
		r.s.logger.WarnContext(ctx, "profile section missing", "field", field, "selector", selector)
		return nil
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

// aboutText expands the About section's inline "see more" before reading it.
func (r *run) aboutText(ctx context.Context) string {
	if r.err != nil {
		return ""
	}
	ok, err := r.drv.Exists(ctx, aboutShowMore)
	if err != nil {
		r.err = err
		return ""
	}
	if ok {
		if cerr := r.drv.Click(ctx, aboutShowMore); cerr != nil {
			r.s.logger.WarnContext(ctx, "about expansion failed", "error", cerr)
		} else if perr := r.s.pause(ctx, scrollMin, scrollMax); perr != nil {
			r.err = perr
			return ""
		}
	}
	return r.textField(ctx, "summary", aboutSelector)
}

// skills reads the skill list, following the "show all" page when LinkedIn
// offers one and returning to the profile afterwards so the remaining
// sections still resolve.
func (r *run) skills(ctx context.Context) []string {
	items := r.expandedSkills(ctx)
	if items == nil {
		items = r.sectionItems(ctx, "skills", skillItems, maxSkills)
	}

	var out []string
	seen := make(map[string]bool)
	for _, item := range items {
		lines := cleanLines(item)
		if len(lines) == 0 {
			continue
		}
		skill := beforeDot(lines[0])
		key := strings.ToLower(skill)
		if skill == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, skill)
		if len(out) == maxSkills {
			break
		}
	}
	return out
}

// expandedSkills follows the skills detail page. It returns nil when there
// is no expansion link or the detour yielded nothing, leaving the caller on
// the profile page either way.
func (r *run) expandedSkills(ctx context.Context) []string {
	if r.err != nil {
		return nil
	}
	ok, err := r.drv.Exists(ctx, skillsShowAll)
	if err != nil {
		r.err = err
		return nil
	}
	if !ok {
		return nil
	}
	if err := r.drv.Click(ctx, skillsShowAll); err != nil {
		r.s.logger.WarnContext(ctx, "skills expansion failed", "error", err)
		return nil
	}
	if err := r.s.pause(ctx, settleMin, settleMax); err != nil {
		r.err = err
		return nil
	}
	items, err := r.drv.Texts(ctx, skillsDetailItems)
	if err != nil {
		r.err = err
		return nil
	}

	// Back to the profile before the remaining sections are read.
	if err := r.drv.Navigate(ctx, r.target); err != nil {
		r.err = err
		return nil
	}
	if err := r.s.pause(ctx, settleMin, settleMax); err != nil {
		r.err = err
		return nil
	}
	if err := r.drv.Scroll(ctx, 900); err != nil {
		r.err = err
		return nil
	}

	if len(items) == 0 {
		r.s.logger.WarnContext(ctx, "skills detail page yielded nothing")
		return nil
	}
	return items
}

// typeField types text one keystroke at a time with humanized spacing.
func (r *run) typeField(ctx context.Context, selector, text string) error {
	for _, ch := range text {
		if err := r.drv.SendKeys(ctx, selector, string(ch)); err != nil {
			return err
		}
		if err := r.s.pause(ctx, keyMin, keyMax); err != nil {
			return err
		}
	}
	return nil
}

// firstPresent returns the first selector that matches the current page.
func (r *run) firstPresent(ctx context.Context, selectors []string) (string, error) {
	for _, sel := range selectors {
		ok, err := r.drv.Exists(ctx, sel)
		if err != nil {
			return "", err
		}
		if ok {
			return sel, nil
		}
	}
	return "", nil
}

// pause sleeps a humanized duration drawn from [lo, hi), scaled by the
// configured delay scale, honoring cancellation.
func (s *Scraper) pause(ctx context.Context, lo, hi time.Duration) error {
	d := lo
	if hi > lo {
		d += rand.N(hi - lo)
	}
	d = time.Duration(float64(d) * s.delayScale)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// durationRe recognizes employment date ranges like "Jan 2020 - Present"
// and "2019 - 2021".
var durationRe = regexp.MustCompile(`^([A-Z][a-z]{2} )?\d{4} [-–] `)

// yearRe recognizes a line carrying a graduation year or range.
var yearRe = regexp.MustCompile(`\b(19|20)\d{2}\b`)

func parseExperience(item string) portfolio.Experience {
	lines := cleanLines(item)
	if len(lines) == 0 {
		return portfolio.Experience{}
	}
	e := portfolio.Experience{Title: lines[0]}
	rest := lines[1:]
	if len(rest) > 0 && !durationRe.MatchString(rest[0]) {
		e.Organization = beforeDot(rest[0])
		rest = rest[1:]
	}
	if len(rest) > 0 && durationRe.MatchString(rest[0]) {
		e.Duration = beforeDot(rest[0])
		rest = rest[1:]
	}
	if len(rest) > 0 {
		e.Description = strings.Join(rest, " ")
	}
	return e
}

func parseEducation(item string) portfolio.Education {
	lines := cleanLines(item)
	if len(lines) == 0 {
		return portfolio.Education{}
	}
	ed := portfolio.Education{Institution: lines[0]}
	for _, line := range lines[1:] {
		switch {
		case ed.Year == "" && yearRe.MatchString(line):
			ed.Year = line
		case ed.Degree == "":
			degree, field, found := strings.Cut(line, " - ")
			if !found {
				degree, field, _ = strings.Cut(line, ", ")
			}
			ed.Degree = strings.TrimSpace(degree)
			ed.Field = strings.TrimSpace(field)
		}
	}
	return ed
}

func parseCertificate(item string) portfolio.Certificate {
	lines := cleanLines(item)
	if len(lines) == 0 {
		return portfolio.Certificate{}
	}
	c := portfolio.Certificate{Name: lines[0]}
	if len(lines) > 1 {
		c.Issuer = lines[1]
	}
	for _, line := range lines[2:] {
		if strings.HasPrefix(line, "Issued ") {
			c.Date = strings.TrimPrefix(line, "Issued ")
			break
		}
	}
	return c
}

// cleanLines splits rendered text into trimmed lines, dropping blanks and
// the consecutive duplicates LinkedIn's aria-hidden rendering produces.
func cleanLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if n := len(lines); n > 0 && lines[n-1] == line {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// beforeDot returns the text before LinkedIn's "·" separator, so
// "Acme · Full-time" becomes "Acme".
func beforeDot(s string) string {
	head, _, _ := strings.Cut(s, "·")
	return strings.TrimSpace(head)
}
