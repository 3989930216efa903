package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc/collab"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/command"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/form"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/store"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverFile   = "file"
)

// Store defaults.
const (
	DefaultStoreDriver   = DriverFile
	DefaultStoreDSN      = "flowdoc-data"
	DefaultPruneSchedule = "@daily"
	DefaultKeepRevisions = 20
)

// Settings is the engine configuration.
type Settings struct {
	AutosaveDelay time.Duration
	HistoryLimit  int
	Collab        CollabSettings
	Store         StoreSettings
}

// CollabSettings configures collab clients.
type CollabSettings struct {
	Mode          collab.Mode
	BaseURL       string
	PollInterval  time.Duration
	PingInterval  time.Duration
	MaxReconnects int
	BackoffMin    time.Duration
	BackoffMax    time.Duration
}

// StoreSettings selects and configures the document store.
type StoreSettings struct {
	Driver string
	// DSN is a database path for sqlite and a directory for file.
	DSN           string
	PruneSchedule string
	KeepRevisions int
}

// DefaultSettings returns the settings used for missing keys.
func DefaultSettings() Settings {
	return Settings{
		AutosaveDelay: form.DefaultAutosaveDelay,
		HistoryLimit:  command.DefaultHistoryLimit,
		Collab: CollabSettings{
			Mode:          collab.ModePush,
			PollInterval:  collab.DefaultPollInterval,
			PingInterval:  collab.DefaultPingInterval,
			MaxReconnects: collab.DefaultMaxReconnects,
			BackoffMin:    collab.DefaultBackoffMin,
			BackoffMax:    collab.DefaultBackoffMax,
		},
		Store: StoreSettings{
			Driver:        DefaultStoreDriver,
			DSN:           DefaultStoreDSN,
			PruneSchedule: DefaultPruneSchedule,
			KeepRevisions: DefaultKeepRevisions,
		},
	}
}

// LoadSettings reads Settings from cfg:
//
//	autosaveDelay: 2s
//	historyLimit: 40
//	collab:
//	  mode: pull
//	  baseURL: http://localhost:8080
//	  pollInterval: 1s
//	store:
//	  driver: sqlite
//	  dsn: ./flowdoc.db
//	  pruneSchedule: "@hourly"
//	  keepRevisions: 10
func LoadSettings(cfg Config) (Settings, error) {
	d := DefaultSettings()
	s := Settings{
		AutosaveDelay: cfg.Duration("autosaveDelay", d.AutosaveDelay),
		HistoryLimit:  cfg.Int("historyLimit", d.HistoryLimit),
		Collab: CollabSettings{
			Mode:          collab.Mode(cfg.String("collab.mode", string(d.Collab.Mode))),
			BaseURL:       cfg.String("collab.baseURL", d.Collab.BaseURL),
			PollInterval:  cfg.Duration("collab.pollInterval", d.Collab.PollInterval),
			PingInterval:  cfg.Duration("collab.pingInterval", d.Collab.PingInterval),
			MaxReconnects: cfg.Int("collab.maxReconnects", d.Collab.MaxReconnects),
			BackoffMin:    cfg.Duration("collab.backoffMin", d.Collab.BackoffMin),
			BackoffMax:    cfg.Duration("collab.backoffMax", d.Collab.BackoffMax),
		},
		Store: StoreSettings{
			Driver:        cfg.String("store.driver", d.Store.Driver),
			DSN:           cfg.String("store.dsn", d.Store.DSN),
			PruneSchedule: cfg.String("store.pruneSchedule", d.Store.PruneSchedule),
			KeepRevisions: cfg.Int("store.keepRevisions", d.Store.KeepRevisions),
		},
	}
	return s, s.Validate()
}

// Validate reports every invalid field.
func (s Settings) Validate() error {
	var errs []error
	if s.AutosaveDelay < 0 {
		errs = append(errs, fmt.Errorf("autosaveDelay: must not be negative, got %s", s.AutosaveDelay))
	}
	if s.HistoryLimit < 1 {
		errs = append(errs, fmt.Errorf("historyLimit: must be at least 1, got %d", s.HistoryLimit))
	}
	if s.Collab.Mode != collab.ModePush && s.Collab.Mode != collab.ModePull {
		errs = append(errs, fmt.Errorf("collab.mode: want push or pull, got %q", s.Collab.Mode))
	}
	if s.Collab.PollInterval <= 0 || s.Collab.PingInterval <= 0 {
		errs = append(errs, errors.New("collab: intervals must be positive"))
	}
	if s.Collab.MaxReconnects < 0 {
		errs = append(errs, fmt.Errorf("collab.maxReconnects: must not be negative, got %d", s.Collab.MaxReconnects))
	}
	if s.Collab.BackoffMin > s.Collab.BackoffMax {
		errs = append(errs, fmt.Errorf("collab: backoffMin %s exceeds backoffMax %s", s.Collab.BackoffMin, s.Collab.BackoffMax))
	}
	switch s.Store.Driver {
	case DriverMemory, DriverSQLite, DriverFile:
	default:
		errs = append(errs, fmt.Errorf("store.driver: unknown driver %q", s.Store.Driver))
	}
	if s.Store.KeepRevisions < 1 {
		errs = append(errs, fmt.Errorf("store.keepRevisions: must be at least 1, got %d", s.Store.KeepRevisions))
	}
	return errors.Join(errs...)
}

// CollabOptions returns the collab client options for these settings.
func (s Settings) CollabOptions(logger *slog.Logger) []collab.Option {
	return []collab.Option{
		collab.WithMode(s.Collab.Mode),
		collab.WithPollInterval(s.Collab.PollInterval),
		collab.WithPingInterval(s.Collab.PingInterval),
		collab.WithReconnect(s.Collab.MaxReconnects, s.Collab.BackoffMin, s.Collab.BackoffMax),
		collab.WithLogger(logger),
	}
}

// FormOptions returns the form options for these settings. saver may be
// nil to disable autosave.
func (s Settings) FormOptions(saver form.Saver, logger *slog.Logger) []form.Option {
	opts := []form.Option{
		form.WithHistoryLimit(s.HistoryLimit),
		form.WithLogger(logger),
	}
	if saver != nil {
		opts = append(opts, form.WithAutoSave(saver, s.AutosaveDelay))
	}
	return opts
}

// OpenStore opens the configured document store.
func (s Settings) OpenStore() (store.Store, error) {
	switch s.Store.Driver {
	case DriverMemory:
		return store.NewMemoryStore(), nil
	case DriverSQLite:
		return store.NewSQLiteStore(s.Store.DSN)
	case DriverFile:
		return store.NewFileStore(s.Store.DSN)
	}
	return nil, fmt.Errorf("store.driver: unknown driver %q", s.Store.Driver)
}

// OpenPruner schedules revision pruning for st.
func (s Settings) OpenPruner(st store.Store, logger *slog.Logger) (*store.Pruner, error) {
	return store.NewPruner(st, s.Store.PruneSchedule, s.Store.KeepRevisions, logger)
}
