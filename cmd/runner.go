package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/plx/internal/formatter"
	"github.com/desertthunder/plx/internal/governor"
	"github.com/desertthunder/plx/internal/repositories"
	"github.com/desertthunder/plx/internal/scheduler"
	"github.com/desertthunder/plx/internal/services"
	"github.com/desertthunder/plx/internal/shared"
	"github.com/desertthunder/plx/internal/tasks"
	"github.com/desertthunder/plx/internal/ui"
	"github.com/urfave/cli/v3"
)

// ConfirmFunc asks the user a yes/no question.
type ConfirmFunc func(title, description string) (bool, error)

// SpinFunc runs action while showing title.
type SpinFunc func(ctx context.Context, title string, action func(context.Context) error) error

// ReviewFunc runs the change set review until the user confirms or quits.
type ReviewFunc func(ctx context.Context, m *ui.Model) (*ui.Model, error)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Dependencies left nil are built on first use from the loaded configuration, so commands that only touch
// the local database never need credentials.
type Runner struct {
	config     *shared.Config
	configPath string
	loaded     bool
	catalog    services.Catalog
	oauth      services.OAuthService
	gate       *governor.Gate
	db         *sql.DB
	store      *repositories.Store
	engine     *tasks.PlaylistEngine
	logger     *log.Logger
	output     io.Writer
	notices    io.Writer
	confirm    ConfirmFunc
	spin       SpinFunc
	review     ReviewFunc
	now        func() time.Time
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Catalog    services.Catalog
	OAuth      services.OAuthService
	Gate       *governor.Gate
	Store      *repositories.Store
	Logger     *log.Logger
	Output     io.Writer
	Notices    io.Writer // rate limit guidance, defaults to stderr
	Confirm    ConfirmFunc
	Spin       SpinFunc
	Review     ReviewFunc
	Now        func() time.Time
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Notices == nil {
		opts.Notices = os.Stderr
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = "config.toml"
	}
	if opts.Confirm == nil {
		opts.Confirm = confirmPrompt
	}
	if opts.Spin == nil {
		opts.Spin = spinAction
	}
	if opts.Review == nil {
		opts.Review = func(ctx context.Context, m *ui.Model) (*ui.Model, error) { return ui.Review(ctx, m) }
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	loaded := opts.Config != nil
	if !loaded {
		opts.Config = shared.DefaultConfig()
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		loaded:     loaded,
		catalog:    opts.Catalog,
		oauth:      opts.OAuth,
		gate:       opts.Gate,
		store:      opts.Store,
		logger:     opts.Logger,
		output:     opts.Output,
		notices:    opts.Notices,
		confirm:    opts.Confirm,
		spin:       opts.Spin,
		review:     opts.Review,
		now:        opts.Now,
	}
	if r.catalog != nil && r.store != nil {
		r.engine = r.newEngine()
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, configsCommand, runCommand, previewCommand, approveCommand, cancelCommand,
		restoreCommand, snapshotsCommand, schedulesCommand, historyCommand, ignoresCommand, scanCommand,
		daemonCommand, governorCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before loads configuration and applies --verbose. It runs ahead of every command.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}
	if r.loaded {
		return ctx, nil
	}
	r.loaded = true

	if err := shared.LoadEnv(); err != nil {
		r.logger.Warn("failed to load .env", "error", err)
	}

	r.config = shared.DefaultConfig()
	if _, err := os.Stat(r.configPath); err == nil {
		cfg, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = cfg
	} else {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	}
	r.config.ApplyEnv()
	return ctx, nil
}

// after persists a refreshed token and closes the database.
func (r *Runner) after(ctx context.Context, cmd *cli.Command) error {
	r.persistToken()
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			r.logger.Warn("failed to close database", "error", err)
		}
		r.db = nil
	}
	return nil
}

func (r *Runner) persistToken() {
	if r.oauth == nil {
		return
	}
	token, err := r.oauth.Token()
	if err != nil || token == nil || token.AccessToken == r.config.Credentials.Spotify.AccessToken {
		return
	}
	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		r.logger.Warn("failed to save refreshed token", "error", err)
		return
	}
	r.logger.Debug("refreshed token saved", "path", r.configPath)
}

// requireStore opens the database and runs migrations on first use.
func (r *Runner) requireStore() (*repositories.Store, error) {
	if r.store != nil {
		return r.store, nil
	}

	path, err := r.config.DatabasePath()
	if err != nil {
		return nil, err
	}
	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	r.logger.Debug("database ready", "path", path)
	r.db = db
	r.store = repositories.NewStore(db)
	return r.store, nil
}

// requireGate returns the shared governor, building it from config when needed.
//
// The window is kept in the database when one can be opened, so every plx process waits out the
// same cooldown. Each new window prints guidance for its kind.
func (r *Runner) requireGate() *governor.Gate {
	if r.gate != nil {
		return r.gate
	}
	var state governor.StateStore
	if store, err := r.requireStore(); err != nil {
		r.logger.Warn("rate limit state is local to this process", "error", err)
	} else {
		state = store.Governor
	}
	r.gate = governor.FromConfig(r.config.Governor, r.logger, state, r.cooldownNotice)
	return r.gate
}

func (r *Runner) cooldownNotice(st governor.Status) {
	if msg := formatter.CooldownNotice(st, r.now()); msg != "" {
		fmt.Fprintln(r.notices, msg)
	}
}

// requireOAuth returns the Spotify client used for the authorization flow, which needs credentials but no token.
func (r *Runner) requireOAuth() (services.OAuthService, error) {
	if r.oauth != nil {
		return r.oauth, nil
	}
	svc, err := services.NewSpotifyService(r.config.Credentials.Spotify.Map(),
		services.WithGovernor(r.requireGate()), services.WithLogger(r.logger))
	if err != nil {
		return nil, err
	}
	r.oauth = svc
	if r.catalog == nil {
		r.catalog = svc
	}
	return svc, nil
}

// requireCatalog builds the authenticated Spotify client on first use.
func (r *Runner) requireCatalog(ctx context.Context) (services.Catalog, error) {
	if r.catalog != nil {
		return r.catalog, nil
	}

	token := r.config.Credentials.Spotify.Token()
	if token == nil {
		return nil, fmt.Errorf("%w: run 'plx auth' first", shared.ErrNotAuthenticated)
	}
	svc, err := services.NewSpotifyService(r.config.Credentials.Spotify.Map(),
		services.WithGovernor(r.requireGate()), services.WithLogger(r.logger))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceNotReady, err)
	}
	if err := svc.OAuthenticate(ctx, token); err != nil {
		return nil, err
	}
	if st := r.requireGate().Status(); st.Active(r.now()) {
		r.cooldownNotice(st)
	}

	r.catalog = svc
	r.oauth = svc
	return svc, nil
}

// requireEngine wires the engine over the store and catalog.
func (r *Runner) requireEngine(ctx context.Context) (*tasks.PlaylistEngine, error) {
	if r.engine != nil {
		return r.engine, nil
	}
	if _, err := r.requireStore(); err != nil {
		return nil, err
	}
	if _, err := r.requireCatalog(ctx); err != nil {
		return nil, err
	}
	r.engine = r.newEngine()
	return r.engine, nil
}

func (r *Runner) newEngine() *tasks.PlaylistEngine {
	return tasks.NewPlaylistEngine(r.catalog, r.store,
		tasks.WithLogger(r.logger), tasks.WithStaleAfter(r.config.Scheduler.StaleAfter()), tasks.WithClock(r.now))
}

// scheduler returns a scheduler over the store. runner may be nil for commands that only edit schedules.
func (r *Runner) scheduler(runner scheduler.Runner) *scheduler.Scheduler {
	return scheduler.New(runner, r.store,
		scheduler.WithLogger(r.logger), scheduler.WithTick(r.config.Scheduler.Tick()), scheduler.WithClock(r.now))
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeBytes(b []byte) error {
	if _, err := r.output.Write(b); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func confirmPrompt(title, description string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	return ok, err
}

func spinAction(ctx context.Context, title string, action func(context.Context) error) error {
	return spinner.New().Title(title).Context(ctx).ActionWithErr(action).Run()
}

// drain logs progress updates at debug level until the channel is closed.
func (r *Runner) drain(progress <-chan tasks.ProgressUpdate, done chan<- struct{}) {
	defer close(done)
	for update := range progress {
		if update.Message != "" {
			r.logger.Debug(update.Message, "phase", update.Phase)
		}
	}
}

// withProgress runs fn with a progress channel whose updates are logged.
func (r *Runner) withProgress(fn func(progress chan<- tasks.ProgressUpdate) error) error {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go r.drain(progress, done)
	err := fn(progress)
	close(progress)
	<-done
	return err
}
