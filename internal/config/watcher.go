package config

import (
	"context"
	"os"
	"sync"
	"time"

	"commrouter/internal/models"

	"github.com/sirupsen/logrus"
)

const defaultWatchInterval = 5 * time.Second

// fileState fingerprints the config file between polls. Size is compared as
// well as mtime because editors that save twice within one second keep the
// same mtime on coarse file systems.
type fileState struct {
	modTime time.Time
	size    int64
}

func statFile(path string) (fileState, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileState{}, err
	}
	return fileState{modTime: info.ModTime(), size: info.Size()}, nil
}

func (s fileState) changedSince(prev fileState) bool {
	return s.modTime.After(prev.modTime) || s.size != prev.size
}

// ConfigWatcher polls the config file and hands every successfully loaded
// revision to the registered callbacks. Settings wired at startup (storage,
// dedup backend, HTTP middleware) still need a restart; callbacks only
// receive the new value.
type ConfigWatcher struct {
	configPath string
	interval   time.Duration
	logger     *logrus.Logger

	mu        sync.RWMutex
	config    *models.Config
	callbacks []func(*models.Config)
}

func NewConfigWatcher(configPath string, logger *logrus.Logger) *ConfigWatcher {
	return &ConfigWatcher{
		configPath: configPath,
		interval:   defaultWatchInterval,
		logger:     logger,
	}
}

// Start loads the file once and then polls it until ctx is done. A file that
// fails to load at start is an error; later failures keep the last good
// revision.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	config, err := LoadConfig(cw.configPath)
	if err != nil {
		return err
	}
	last, err := statFile(cw.configPath)
	if err != nil {
		return err
	}
	cw.mu.Lock()
	cw.config = config
	cw.mu.Unlock()

	logger := cw.logger.WithField("path", cw.configPath)
	logger.Info("Configuration watcher started")

	ticker := time.NewTicker(cw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Configuration watcher stopping")
			return nil
		case <-ticker.C:
			current, err := statFile(cw.configPath)
			if err != nil {
				logger.WithError(err).Error("Failed to stat configuration file")
				continue
			}
			if current.changedSince(last) {
				last = current
				cw.reloadConfig()
			}
		}
	}
}

func (cw *ConfigWatcher) GetConfig() *models.Config {
	cw.mu.RLock()
	defer cw.mu.RUnlock()
	return cw.config
}

func (cw *ConfigWatcher) OnConfigChange(callback func(*models.Config)) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.callbacks = append(cw.callbacks, callback)
}

func (cw *ConfigWatcher) reloadConfig() {
	next, err := LoadConfig(cw.configPath)
	if err != nil {
		cw.logger.WithError(err).Error("Failed to reload configuration, keeping previous revision")
		return
	}

	cw.mu.Lock()
	prev := cw.config
	cw.config = next
	callbacks := append([]func(*models.Config){}, cw.callbacks...)
	cw.mu.Unlock()

	cw.logger.Info("Configuration reloaded")
	cw.logRestartRequired(prev, next)

	for _, callback := range callbacks {
		cw.runCallback(callback, next)
	}
}

func (cw *ConfigWatcher) runCallback(callback func(*models.Config), next *models.Config) {
	defer func() {
		if r := recover(); r != nil {
			cw.logger.WithField("panic", r).Error("Config change callback panicked")
		}
	}()
	callback(next)
}

// logRestartRequired warns about changed sections that are only read at startup.
func (cw *ConfigWatcher) logRestartRequired(prev, next *models.Config) {
	if prev == nil {
		return
	}
	changed := map[string]bool{
		"server":   prev.Server != next.Server,
		"database": prev.Database != next.Database,
		"routing":  prev.Routing != next.Routing,
		"dedup":    prev.Dedup != next.Dedup,
		"events":   prev.Events != next.Events,
		"outbound": prev.Outbound != next.Outbound,
	}
	for section, diff := range changed {
		if diff {
			cw.logger.WithField("section", section).Warn("Configuration section changed, restart to apply")
		}
	}
}
