package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// OnChange re-reads the config file whenever it changes on disk (viper's
// fsnotify-backed watcher) and calls fn with the reloaded, validated
// NodeConfig. A validation failure on reload is dropped — the node
// keeps running on its last-good configuration, consistent with
// paramUpdate's "reject with BAD_PARAM on type/range error" contract.
func OnChange(v *viper.Viper, fn func(NodeConfig)) {
	v.OnConfigChange(func(_ fsnotify.Event) {
		if cfg, err := Load(v); err == nil {
			fn(cfg)
		}
	})
	v.WatchConfig()
}
