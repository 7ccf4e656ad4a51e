package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"reel/internal/catalog"
	"reel/internal/config"
	"reel/internal/hooks"
	"reel/internal/logging"
)

// commandContext lazily wires the shared runtime pieces every subcommand
// needs. Config, logger, store, and dispatcher are built once on first use
// and torn down by the root command's post-run.
type commandContext struct {
	configFlag  *string
	noHooksFlag *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	runtimeOnce sync.Once
	logger      *slog.Logger
	store       *catalog.Store
	dispatcher  *hooks.Dispatcher
	runtimeErr  error

	lockMu sync.Mutex
	lock   *flock.Flock
}

func newCommandContext(configFlag *string, noHooksFlag *bool) *commandContext {
	return &commandContext{configFlag: configFlag, noHooksFlag: noHooksFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureRuntime opens the catalog store and builds the logger and hook
// dispatcher. Dispatch is suppressed when the config disables it, when the
// catalog carries a persisted `hooks disable`, or when --no-hooks is given;
// the flag and the stored toggle only ever disable, never re-enable.
func (c *commandContext) ensureRuntime() error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	c.runtimeOnce.Do(func() {
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.runtimeErr = err
			return
		}
		store, err := catalog.Open(cfg)
		if err != nil {
			c.runtimeErr = err
			return
		}
		dispatcher := hooks.NewDispatcher(logger)
		hooks.LoadExtensions(cfg, logger, dispatcher)
		if stored, err := store.Setting(context.Background(), catalog.SettingHooksDisabled); err == nil && stored == "true" {
			dispatcher.SetDisabled(true)
		}
		if c.noHooksFlag != nil && *c.noHooksFlag {
			dispatcher.SetDisabled(true)
		}
		c.logger = logger
		c.store = store
		c.dispatcher = dispatcher
	})
	return c.runtimeErr
}

// acquireLock takes the library-wide advisory lock guarding batch operations
// (sync and download passes). Non-blocking: a held lock fails fast.
func (c *commandContext) acquireLock() error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	if c.lock != nil {
		return nil
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire library lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another reel process holds %s", cfg.LockPath())
	}
	c.lock = lock
	return nil
}

func (c *commandContext) close() error {
	c.lockMu.Lock()
	if c.lock != nil {
		_ = c.lock.Unlock()
		c.lock = nil
	}
	c.lockMu.Unlock()

	if c.store != nil {
		return c.store.Close()
	}
	return nil
}
