package governor

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plx/internal/shared"
	"golang.org/x/time/rate"
)

// Kind classifies a cooldown window by its length.
type Kind string

const (
	None          Kind = "none"
	LocalCooldown Kind = "local_cooldown" // ordinary throttle, at most LockThreshold long
	Lock          Kind = "lock"           // the remote suspended the credential
)

const (
	DefaultLockThreshold = 120 * time.Second
	DefaultRetryAfter    = 60 * time.Second
	maxBackoff           = 30 * time.Second
)

// Classify labels a retry-after duration. A window of exactly threshold is still a local cooldown.
func Classify(retryAfter, threshold time.Duration) Kind {
	switch {
	case retryAfter <= 0:
		return None
	case retryAfter <= threshold:
		return LocalCooldown
	default:
		return Lock
	}
}

// Status describes the gate's current cooldown window.
type Status struct {
	Kind       Kind
	RetryAfter time.Duration
	DetectedAt time.Time
	Until      time.Time
	Trips      int // rate limits seen since the gate was created
}

// Active reports whether the window is still open at now.
func (s Status) Active(now time.Time) bool {
	return s.Kind != None && now.Before(s.Until)
}

// Remaining returns the time left in the window at now.
func (s Status) Remaining(now time.Time) time.Duration {
	if !s.Active(now) {
		return 0
	}
	return s.Until.Sub(now)
}

// StateStore persists the cooldown window so every process sharing it waits out the same window.
type StateStore interface {
	// LoadStatus returns the stored window. Trips counts every rate limit recorded.
	LoadStatus() (Status, error)
	// RecordTrip stores st as the open window and counts one rate limit.
	RecordTrip(st Status) error
	// ClearStatus closes the stored window.
	ClearStatus() error
}

// Options configures a [Gate]. Zero values fall back to package defaults.
type Options struct {
	RequestsPerSecond   float64
	Burst               int
	LockThreshold       time.Duration
	DefaultRetryAfter   time.Duration
	MaxTransientRetries int

	// OnCooldown is called each time a rate limit opens or extends a window.
	OnCooldown func(Status)
	// State shares the window with other processes. Optional.
	State  StateStore
	Logger *log.Logger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// Gate serializes access to the catalog across every run in the process. With a [StateStore] the
// cooldown window is also shared with other processes.
type Gate struct {
	opts    Options
	limiter *rate.Limiter

	mu     sync.Mutex
	status Status
	// released is closed when the current window ends; nil when no window is open.
	released chan struct{}
}

// New builds a gate.
func New(opts Options) *Gate {
	if opts.LockThreshold <= 0 {
		opts.LockThreshold = DefaultLockThreshold
	}
	if opts.DefaultRetryAfter <= 0 {
		opts.DefaultRetryAfter = DefaultRetryAfter
	}
	if opts.MaxTransientRetries < 0 {
		opts.MaxTransientRetries = 0
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	if opts.after == nil {
		opts.after = time.After
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := max(opts.Burst, 1)

	g := &Gate{
		opts:    opts,
		limiter: rate.NewLimiter(limit, burst),
		status:  Status{Kind: None},
	}
	g.mu.Lock()
	g.refresh()
	g.mu.Unlock()
	return g
}

// FromConfig builds a gate from the [governor] config table. state and onCooldown may be nil.
func FromConfig(cfg shared.GovernorConfig, logger *log.Logger, state StateStore, onCooldown func(Status)) *Gate {
	return New(Options{
		RequestsPerSecond:   cfg.RequestsPerSecond,
		Burst:               cfg.Burst,
		LockThreshold:       cfg.LockThreshold(),
		DefaultRetryAfter:   cfg.DefaultRetryAfter(),
		MaxTransientRetries: cfg.MaxTransientRetries,
		OnCooldown:          onCooldown,
		State:               state,
		Logger:              logger,
	})
}

// Status returns a copy of the current window, including one opened by another process.
func (g *Gate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refresh()
	return g.status
}

// refresh adopts a stored window that ends later than the local one. Callers hold g.mu.
func (g *Gate) refresh() {
	if g.opts.State == nil {
		return
	}
	stored, err := g.opts.State.LoadStatus()
	if err != nil {
		g.opts.Logger.Warn("failed to load governor state", "error", err)
		return
	}
	g.status.Trips = max(g.status.Trips, stored.Trips)
	if !stored.Active(g.opts.now()) || !stored.Until.After(g.status.Until) {
		return
	}
	g.status.Kind = stored.Kind
	g.status.RetryAfter = stored.RetryAfter
	g.status.DetectedAt = stored.DetectedAt
	g.status.Until = stored.Until
	if g.released == nil {
		g.released = make(chan struct{})
	}
}

func (g *Gate) persist(st Status) {
	if g.opts.State == nil {
		return
	}
	if err := g.opts.State.RecordTrip(st); err != nil {
		g.opts.Logger.Warn("failed to store governor state", "error", err)
	}
}

// LockThreshold returns the classification boundary in use.
func (g *Gate) LockThreshold() time.Duration {
	return g.opts.LockThreshold
}

// Trip opens (or extends) a cooldown window for retryAfter. A non-positive retryAfter uses the
// configured default. The window never shrinks while open.
func (g *Gate) Trip(retryAfter time.Duration) Status {
	if retryAfter <= 0 {
		retryAfter = g.opts.DefaultRetryAfter
	}

	g.mu.Lock()
	g.refresh()
	now := g.opts.now()
	until := now.Add(retryAfter)
	g.status.Trips++
	if g.status.Active(now) && !until.After(g.status.Until) {
		st := g.status
		g.mu.Unlock()
		g.persist(st)
		return st
	}

	g.status.Kind = Classify(retryAfter, g.opts.LockThreshold)
	g.status.RetryAfter = retryAfter
	g.status.DetectedAt = now
	g.status.Until = until
	if g.released == nil {
		g.released = make(chan struct{})
	}
	st := g.status
	g.mu.Unlock()

	g.persist(st)
	g.opts.Logger.Warn("catalog rate limited", "kind", st.Kind, "retry_after", retryAfter, "until", until.Format(time.RFC3339))
	if g.opts.OnCooldown != nil {
		g.opts.OnCooldown(st)
	}
	return st
}

// Clear closes any open window, here and in the shared state, and releases blocked callers.
func (g *Gate) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status.Kind = None
	g.status.Until = time.Time{}
	if g.released != nil {
		close(g.released)
		g.released = nil
	}
	if g.opts.State != nil {
		if err := g.opts.State.ClearStatus(); err != nil {
			g.opts.Logger.Warn("failed to clear governor state", "error", err)
		}
	}
}

// Wait blocks until no cooldown is open and the limiter grants a token. Only ctx aborts the wait.
func (g *Gate) Wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		g.refresh()
		now := g.opts.now()
		if !g.status.Active(now) {
			if g.released != nil {
				close(g.released)
				g.released = nil
			}
			g.mu.Unlock()
			break
		}
		remaining := g.status.Until.Sub(now)
		released := g.released
		g.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-released:
		case <-g.opts.after(remaining):
		}
	}
	return g.limiter.Wait(ctx)
}

// Do runs fn behind the gate.
//
// A [RateLimitError] from fn opens a window and fn is attempted again once it closes, for as long as
// ctx allows. Transient network errors are retried up to MaxTransientRetries times with exponential
// backoff. Every other error is returned as-is.
func (g *Gate) Do(ctx context.Context, fn func(context.Context) error) error {
	transient := 0
	for {
		if err := g.Wait(ctx); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		if rl, ok := AsRateLimit(err); ok {
			st := g.Trip(rl.RetryAfter)
			rl.Kind = st.Kind
			continue
		}

		if Retryable(err) && transient < g.opts.MaxTransientRetries {
			delay := backoff(transient)
			transient++
			g.opts.Logger.Debug("retrying transient failure", "attempt", transient, "delay", delay, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-g.opts.after(delay):
			}
			continue
		}
		return err
	}
}

func backoff(attempt int) time.Duration {
	d := 500 * time.Millisecond << attempt
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}
