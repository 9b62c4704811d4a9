package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"flexify/config"
	sessionRepo "flexify/database/repository/session"
	"flexify/models"
	"flexify/services/api"
	"flexify/services/booking"
	"flexify/services/session"
	"flexify/services/tasks"
	"flexify/utils"

	"go.uber.org/zap"
)

var errNotSignedIn = errors.New("not signed in; run `flexify login` first")

// app holds the client side wiring shared by the commands.
type app struct {
	logger  *zap.Logger
	api     *api.Client
	store   *session.Store
	closers []func() error
}

func newApp(logger *zap.Logger) *app {
	cfg := config.AppConfig
	a := &app{logger: logger}
	a.api = api.NewClient(api.Options{
		BaseURL:           cfg.APIBase,
		Timeout:           cfg.RequestTimeout(),
		MaxRequestsPerSec: cfg.MaxRequestsPerSec,
		Logger:            logger.Named("api"),
	})
	a.store = session.NewStore(session.StoreOptions{
		API:     a.api,
		Storage: a.sessionStorage(),
		Navigator: session.NavigatorFunc(func(path string) {
			if strings.HasPrefix(path, "/login/") {
				logger.Warn("Session expired, sign in again", zap.String("login", path))
				return
			}
			logger.Debug("Navigate", zap.String("path", path))
		}),
		Logger: logger.Named("session"),
	})
	return a
}

// sessionStorage picks Redis when configured, else a per-namespace file.
func (a *app) sessionStorage() sessionRepo.SessionStorage {
	cfg := config.AppConfig
	if utils.RedisEnabled() {
		client, err := utils.GetSessionClient()
		if err == nil {
			a.closers = append(a.closers, client.Close)
			return sessionRepo.NewRedisSessionStorage(client, cfg.SessionNamespace)
		}
		a.logger.Warn("Redis unavailable, keeping the session in a file", zap.Error(err))
	}
	path := cfg.SessionFile
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = os.TempDir()
		}
		path = filepath.Join(dir, "flexify", "session-"+cfg.SessionNamespace+".json")
	}
	return sessionRepo.NewFileSessionStorage(path)
}

// restore adopts the persisted session or fails with errNotSignedIn.
func (a *app) restore(ctx context.Context) (*models.Session, error) {
	if err := a.store.Restore(ctx); err != nil {
		return nil, err
	}
	sess := a.store.Current()
	if sess == nil {
		return nil, errNotSignedIn
	}
	return sess, nil
}

// searcher is the nearby search, cached in Redis when available.
func (a *app) searcher() booking.Searcher {
	var s booking.Searcher = &booking.APISearcher{Client: a.store.Client()}
	if !utils.RedisEnabled() {
		return s
	}
	cache, err := utils.GetCacheClient()
	if err != nil {
		a.logger.Warn("Search cache disabled", zap.Error(err))
		return s
	}
	a.closers = append(a.closers, cache.Close)
	return &booking.CachedSearcher{
		Next:   s,
		Cache:  cache,
		TTL:    config.AppConfig.SearchCacheTTL(),
		Logger: a.logger.Named("search"),
	}
}

// reminders returns the reminder queue, or nil without Redis.
func (a *app) reminders() booking.ReminderScheduler {
	if !utils.RedisEnabled() {
		return nil
	}
	s := tasks.NewScheduler(tasks.RedisOpt(), a.logger.Named("reminders"))
	a.closers = append(a.closers, s.Close)
	return s
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Debug("Close failed", zap.Error(err))
		}
	}
}
