// This file contains tests for the file watcher.
//
// 本文件包含配置文件监视器的测试。
package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// TestWatch rewrites a watched file and waits for subscribers to see the new
// configuration. An invalid edit in between must not be delivered.
//
// TestWatch 重写被监视的文件，等待订阅者收到新配置。中间的无效修改不能被传递。
func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guardcache.yaml")
	if err := os.WriteFile(path, []byte("cache:\n  max_entries: 100\n"), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	w, err := Watch(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Watch() failed: %v", err)
	}
	if got := w.Get().Cache.MaxEntries; got != 100 {
		t.Fatalf("Expected initial MaxEntries to be 100, got %d", got)
	}

	changes := make(chan *Config, 16)
	w.Subscribe(func(c *Config) { changes <- c })

	if err := os.WriteFile(path, []byte("log:\n  level: loud\n"), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if err := os.WriteFile(path, []byte("cache:\n  max_entries: 777\n"), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changes:
			if c.Log.Level == "loud" {
				t.Fatal("Invalid configuration was delivered to subscribers")
			}
			if c.Cache.MaxEntries == 777 {
				if got := w.Get().Cache.MaxEntries; got != 777 {
					t.Errorf("Expected Get() to return the new configuration, got %d", got)
				}
				return
			}
		case <-deadline:
			t.Fatal("Timed out waiting for the configuration change")
		}
	}
}

// TestWatchMissingFile checks that the initial load error is returned.
//
// TestWatchMissingFile 检查初始加载错误会被返回。
func TestWatchMissingFile(t *testing.T) {
	if _, err := Watch(filepath.Join(t.TempDir(), "missing.yaml"), zerolog.Nop()); err == nil {
		t.Error("Watch() expected an error for a missing file")
	}
}

// TestConfigsEqual tests the configsEqual helper.
//
// TestConfigsEqual 测试configsEqual辅助函数。
func TestConfigsEqual(t *testing.T) {
	config1 := DefaultConfig()
	config2 := DefaultConfig()

	if !configsEqual(config1, config2) {
		t.Error("configsEqual() returned false for identical configs")
	}

	config2.Cache.MaxEntries = 1
	if configsEqual(config1, config2) {
		t.Error("configsEqual() returned true for different configs")
	}
}
