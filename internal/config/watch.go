package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Editors save in bursts; coalesce change events before reloading.
const reloadDebounce = 200 * time.Millisecond

// Watch hot-reloads the daemon config whenever the file at Path changes.
// Blocks until ctx is cancelled; run it in its own goroutine. A successful
// reload swaps the in-memory config and fires the registered callbacks, so
// port changes and the like still need a restart but secrets and tunables
// pick up live.
func Watch(ctx context.Context) {
	path := Path()
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		slog.Warn("config watch disabled", "path", path, "error", err)
		return
	}

	var debounce *time.Timer
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Op.Has(fsnotify.Write) && !e.Op.Has(fsnotify.Create) {
			return
		}
		if filepath.Clean(e.Name) != filepath.Clean(path) {
			return
		}
		if debounce != nil {
			debounce.Stop()
		}
		debounce = time.AfterFunc(reloadDebounce, func() { reload(path) })
	})
	v.WatchConfig()

	<-ctx.Done()
}

func reload(path string) {
	cfg, err := Load(path)
	if err != nil {
		slog.Warn("config reload rejected", "path", path, "error", err)
		return
	}
	Set(cfg)
	notifyReload(cfg)
	slog.Info("config reloaded", "path", path)
}
