// This file implements file watching with Viper and fsnotify.
//
// 本文件使用Viper和fsnotify实现配置文件监视。
package configs

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Watcher keeps the current configuration of a file and notifies subscribers
// when the file changes to a different valid configuration. Invalid edits are
// logged and ignored, the previous configuration stays current.
//
// Watcher 保存配置文件的当前配置，并在文件变为不同的有效配置时通知订阅者。
// 无效的修改会被记录并忽略，之前的配置保持不变。
type Watcher struct {
	path        string          // Path to the configuration file / 配置文件路径
	viper       *viper.Viper    // Viper instance owning the fsnotify watch / 持有fsnotify监视的Viper实例
	logger      zerolog.Logger  // Logger for reload failures / 记录重载失败的日志器
	mu          sync.RWMutex    // Guards current and subscribers / 保护current和subscribers
	current     *Config         // Last valid configuration / 最后一个有效配置
	subscribers []func(*Config) // Notified on change / 配置变化时通知
}

// Watch loads the configuration at path and starts watching the file.
//
// Watch 加载path处的配置并开始监视文件。
//
// Parameters:
//   - path: Path to the configuration file
//   - logger: Logger used to report reload failures
//
// Returns:
//   - *Watcher: A watcher holding the loaded configuration
//   - error: An error if the initial load fails
func Watch(path string, logger zerolog.Logger) (*Watcher, error) {
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	w := &Watcher{
		path:    path,
		viper:   v,
		logger:  logger.With().Str("config", path).Logger(),
		current: config,
	}
	v.OnConfigChange(w.onChange)
	v.WatchConfig()
	return w, nil
}

func (w *Watcher) onChange(e fsnotify.Event) {
	w.logger.Debug().Str("op", e.Op.String()).Msg("config file event")

	config, err := LoadFromFile(w.path)
	if err != nil {
		w.logger.Warn().Err(err).Msg("ignoring config change")
		return
	}

	w.mu.Lock()
	if configsEqual(w.current, config) {
		w.mu.Unlock()
		return
	}
	w.current = config
	subscribers := make([]func(*Config), len(w.subscribers))
	copy(subscribers, w.subscribers)
	w.mu.Unlock()

	w.logger.Info().Msg("config file changed")
	for _, subscriber := range subscribers {
		subscriber(config)
	}
}

// Subscribe adds a function called with every new configuration.
//
// Subscribe 添加一个在每次配置变化时调用的函数。
func (w *Watcher) Subscribe(subscriber func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subscribers = append(w.subscribers, subscriber)
}

// Get returns the current configuration.
//
// Get 返回当前配置。
func (w *Watcher) Get() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func configsEqual(c1, c2 *Config) bool {
	return reflect.DeepEqual(c1, c2)
}
