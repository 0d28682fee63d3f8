// Package app is the composition root. It owns construction order for the
// client: storage first, then the gateway, then the session manager and the
// domain stores, all passed explicitly so tests can substitute any layer.
package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/weighthabit/habitsync/checkin"
	"github.com/weighthabit/habitsync/gateway"
	"github.com/weighthabit/habitsync/session"
	"github.com/weighthabit/habitsync/social"
	"github.com/weighthabit/habitsync/storage"
	boltstore "github.com/weighthabit/habitsync/storage/bbolt"
	"github.com/weighthabit/habitsync/tasks"
)

// Config holds everything the client needs to come up.
type Config struct {
	// BaseURL is the API root.
	BaseURL string
	// Timeout is the per-request timeout. Zero means the gateway default.
	Timeout time.Duration
	// DataDir is where the bbolt database lives. Ignored when Store is set.
	DataDir string
	// Store overrides the persistent store, e.g. an in-memory one for tests.
	Store storage.Store
	// HTTPClient overrides the gateway's HTTP client.
	HTTPClient *http.Client
	// Logger receives structured logs from every layer. Nil disables them.
	Logger *slog.Logger
	// Rollback enables optimistic-mutation rollback in the domain stores.
	Rollback bool
}

// App is the assembled client.
type App struct {
	Store   storage.Store
	Gateway *gateway.Client
	Session *session.Manager
	Tasks   *tasks.Store
	CheckIn *checkin.Store
	Social  *social.Store
	closeDB func() error
}

// New assembles the client. The gateway's unauthorized hook is bound to the
// session manager's ForceLogout, so any 401 anywhere tears the session down;
// the hook is late-bound because the gateway exists before the session does.
func New(cfg Config) (*App, error) {
	store := cfg.Store
	var closeDB func() error
	if store == nil {
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("either Store or DataDir is required")
		}
		bs, err := boltstore.NewStoreFromFile(filepath.Join(cfg.DataDir, "habitsync.db"), nil)
		if err != nil {
			return nil, fmt.Errorf("opening data store: %w", err)
		}
		store = bs
		closeDB = bs.Close
	}

	var sess *session.Manager
	gw, err := gateway.New(gateway.Config{
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout,
		HTTPClient: cfg.HTTPClient,
		OnUnauthorized: func() {
			if sess != nil {
				sess.ForceLogout()
			}
		},
		Logger: cfg.Logger,
	})
	if err != nil {
		if closeDB != nil {
			closeDB()
		}
		return nil, err
	}

	var sessionOpts []session.Option
	var taskOpts []tasks.Option
	var checkinOpts []checkin.Option
	var socialOpts []social.Option
	if cfg.Logger != nil {
		sessionOpts = append(sessionOpts, session.WithLogger(cfg.Logger))
		taskOpts = append(taskOpts, tasks.WithLogger(cfg.Logger))
		checkinOpts = append(checkinOpts, checkin.WithLogger(cfg.Logger))
		socialOpts = append(socialOpts, social.WithLogger(cfg.Logger))
	}
	if cfg.Rollback {
		taskOpts = append(taskOpts, tasks.WithRollback(true))
		checkinOpts = append(checkinOpts, checkin.WithRollback(true))
		socialOpts = append(socialOpts, social.WithRollback(true))
	}

	// The task store's day cache is scoped by user, so every session
	// transition, including the restore inside session.New, flows into it.
	taskStore := tasks.New(gw, store, taskOpts...)
	sessionOpts = append(sessionOpts, session.WithUserChangeHook(taskStore.SetUser))
	sess = session.New(gw, store, sessionOpts...)

	return &App{
		Store:   store,
		Gateway: gw,
		Session: sess,
		Tasks:   taskStore,
		CheckIn: checkin.New(gw, taskStore, checkinOpts...),
		Social:  social.New(gw, socialOpts...),
		closeDB: closeDB,
	}, nil
}

// Close releases the persistent store, when this App opened it.
func (a *App) Close() error {
	if a.closeDB != nil {
		return a.closeDB()
	}
	return nil
}
