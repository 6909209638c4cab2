package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/paydesk/remitsheet/internal/artifact"
	"github.com/paydesk/remitsheet/internal/batch"
	"github.com/paydesk/remitsheet/internal/config"
	"github.com/paydesk/remitsheet/internal/history"
	"github.com/paydesk/remitsheet/internal/logging"
	"github.com/paydesk/remitsheet/internal/metrics"
	"github.com/paydesk/remitsheet/internal/model"
	"github.com/paydesk/remitsheet/internal/session"
	"github.com/paydesk/remitsheet/internal/sheets"
)

// resultsKey names the stored results of the latest vendor search.
const resultsKey = "searchResults"

// newHTTPClient builds the client used for script calls.
var newHTTPClient = func(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// app is the wiring shared by the subcommands.
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	metrics   *metrics.Metrics
	client    *sheets.Client
	store     session.Store
	sessionID string
	nav       session.Navigation
}

func newApp(flags *globalFlags) (*app, error) {
	cfg, err := config.LoadOrDefault(flags.configPath)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(cfg, ".env"); err != nil {
		return nil, err
	}

	log, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, err
	}

	sessionID, err := session.Current(cfg.Session.StateDir)
	if err != nil {
		return nil, err
	}

	var store session.Store
	switch cfg.Session.Backend {
	case "", "file":
		store = session.NewFileStore(cfg.Session.StateDir)
	case "redis":
		store = session.NewRedisStore(
			session.NewRedisClient(cfg.Session.RedisAddr, cfg.Session.RedisPassword, cfg.Session.RedisDB),
			cfg.Session.TTL)
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}

	m := metrics.New()
	client := sheets.New(sheets.Options{
		ScriptURL:         cfg.Directory.ScriptURL,
		HTTPClient:        newHTTPClient(cfg.Directory.Timeout),
		RequestsPerSecond: cfg.Directory.RequestsPerSecond,
		Burst:             cfg.Directory.Burst,
		BankCacheTTL:      cfg.Directory.BankCacheTTL,
		Logger:            log,
		Metrics:           m,
	})

	nav := session.Navigate
	if flags.fresh {
		nav = session.Reload
	}

	log.Debug("session ready", zap.String("session", sessionID), zap.String("backend", cfg.Session.Backend))
	return &app{
		cfg:       cfg,
		log:       log,
		metrics:   m,
		client:    client,
		store:     store,
		sessionID: sessionID,
		nav:       nav,
	}, nil
}

func (a *app) key(name string) string {
	return session.Key(a.sessionID, name)
}

// openEngine restores the session's batch.
func (a *app) openEngine(ctx context.Context) (*batch.Engine, error) {
	return batch.Open(ctx, batch.Options{
		Store:      a.store,
		Key:        a.key(session.BatchKey),
		Generator:  a.client,
		Downloader: a.client,
		Sink:       artifact.Dir{Path: a.cfg.Batch.DownloadDir},
		FileSuffix: a.cfg.Batch.FileSuffix,
		Logger:     a.log,
		Metrics:    a.metrics,
	}, a.nav)
}

func (a *app) recorder() history.Recorder {
	return history.Recorder{StateDir: a.cfg.Session.StateDir, SessionID: a.sessionID}
}

func (a *app) saveResults(ctx context.Context, vendors []model.Vendor) {
	data, err := json.Marshal(vendors)
	if err != nil {
		a.log.Warn("encoding search results", zap.Error(err))
		return
	}
	if err := a.store.Save(ctx, a.key(resultsKey), data); err != nil {
		a.log.Warn("saving search results", zap.Error(err))
	}
}

func (a *app) lastResults(ctx context.Context) ([]model.Vendor, error) {
	data, ok, err := a.store.Load(ctx, a.key(resultsKey))
	if err != nil || !ok {
		return nil, err
	}
	var vendors []model.Vendor
	if err := json.Unmarshal(data, &vendors); err != nil {
		return nil, fmt.Errorf("decoding search results: %w", err)
	}
	return vendors, nil
}

func (a *app) close() {
	_ = a.log.Sync()
}
