package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mtx/internal/repositories"
	"github.com/desertthunder/mtx/internal/services"
	"github.com/desertthunder/mtx/internal/shared"
	"github.com/desertthunder/mtx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	storage    *services.StorageService
	materials  *services.MaterialsService
	api        *services.APIService
	history    *repositories.UploadRepository
	db         *sql.DB
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Services left nil are built from Config.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Storage    *services.StorageService
	Materials  *services.MaterialsService
	API        *services.APIService
	History    *repositories.UploadRepository
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		storage:    opts.Storage,
		materials:  opts.Materials,
		api:        opts.API,
		history:    opts.History,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
	r.buildServices()
	return r
}

// buildServices fills in any service that was not injected.
func (r *Runner) buildServices() {
	client := services.NewAuthClient(context.Background(), r.config.API.AccessToken, r.httpClient)

	if r.storage == nil {
		r.storage = services.NewStorageService(r.config.Storage, client)
	}
	if r.materials == nil {
		r.materials = services.NewMaterialsService(r.config.API.BaseURL, client, services.NewLimiter(r.config.API.RateLimit))
	}
	if r.api == nil {
		r.api = services.NewAPIService(r.config.API.BaseURL, client)
	}
}

// before loads the configuration named by --config and rebuilds the services from it.
//
// A missing file is only an error when --config was given explicitly.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")

	config := shared.DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		if config, err = shared.LoadConfig(path); err != nil {
			return ctx, err
		}
	} else if cmd.IsSet("config") {
		return ctx, fmt.Errorf("%w: %s", shared.ErrMissingConfig, path)
	}
	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return ctx, err
	}

	r.config = config
	r.configPath = path
	r.storage, r.materials, r.api = nil, nil, nil
	r.buildServices()

	level := shared.ParseLogLevel(config.Log.Level)
	if cmd.Bool("verbose") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)

	r.logger.Debug("configuration loaded", "path", path, "api", config.API.BaseURL, "storage", config.Storage.URL)
	return ctx, nil
}

// SetLogger replaces the runner's logger, keeping the current level.
func (r *Runner) SetLogger(l *log.Logger) {
	l.SetLevel(r.logger.GetLevel())
	r.logger = l
}

// uploadHistory opens the history database on first use.
func (r *Runner) uploadHistory() (*repositories.UploadRepository, error) {
	if r.history != nil {
		return r.history, nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	r.db = db
	r.history = repositories.NewUploadRepository(db)
	return r.history, nil
}

// Close releases the history database, if it was opened.
func (r *Runner) Close() {
	if r.db == nil {
		return
	}
	if err := r.db.Close(); err != nil {
		r.logger.Warn("failed to close database", "error", err)
	}
	r.db = nil
	r.history = nil
}

// owner returns the storage folder for this user, asking the auth endpoint when none is configured.
func (r *Runner) owner(ctx context.Context) (string, error) {
	if r.config.Storage.OwnerID != "" {
		return r.config.Storage.OwnerID, nil
	}
	if r.config.API.AccessToken == "" {
		return "", fmt.Errorf("%w: set storage.owner_id or an access token", shared.ErrMissingCredentials)
	}

	id, err := r.storage.Owner(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to resolve storage owner: %w", err)
	}
	r.logger.Debug("resolved storage owner", "owner", id)
	return id, nil
}

// coordinatorOptions maps the [upload] section onto [tasks.Options].
func (r *Runner) coordinatorOptions(owner string, logger *log.Logger) tasks.Options {
	up := r.config.Upload
	opts := tasks.Options{
		OwnerID:       owner,
		CacheControl:  r.config.Storage.CacheControl,
		PollInterval:  up.PollInterval.Duration,
		MaxAttempts:   up.MaxPollAttempts,
		EvictionDelay: up.EvictionDelay.Duration,
		Validator:     tasks.NewValidator(up),
		Logger:        logger,
	}

	if repo, err := r.uploadHistory(); err != nil {
		logger.Warn("upload history disabled", "error", err)
	} else {
		opts.Recorder = repositories.NewUploadRecorder(repo)
	}
	return opts
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, uploadCommand, statusCommand, materialsCommand, historyCommand, apiCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
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

func (r *Runner) writeRaw(data []byte) error {
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// writeBody prints a raw API response, indenting JSON bodies when pretty is set.
func (r *Runner) writeBody(resp *services.APIResponse, pretty bool) error {
	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, pretty)
	}
	if err := r.writeRaw(resp.Body); err != nil {
		return err
	}
	return r.writeRaw([]byte("\n"))
}

// isJSON reports whether data parses as a JSON document.
func isJSON(data string) bool {
	var v any
	return json.Unmarshal([]byte(data), &v) == nil
}

// since parses a --older-than style duration ("72h") into a cutoff before now.
func since(now time.Time, d string) (time.Time, error) {
	dur, err := time.ParseDuration(d)
	if err != nil || dur <= 0 {
		return time.Time{}, errors.Join(shared.ErrInvalidArgument, fmt.Errorf("invalid duration %q", d))
	}
	return now.Add(-dur), nil
}
