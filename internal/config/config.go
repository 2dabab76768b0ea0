// Package config wraps the process-wide viper configuration.
//
// Values resolve in the usual viper order: explicit Set, TICKETPORT_* env
// vars, config file, defaults. The config file is the first of:
//   - the path given to SetConfigFile (the --config flag)
//   - .ticketport/config.yaml in the working directory or any parent
//   - $XDG_CONFIG_HOME/ticketport/config.yaml
//   - $HOME/.config/ticketport/config.yaml
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// DirName is the per-project directory holding config and the SQLite database.
const DirName = ".ticketport"

var (
	v              *viper.Viper
	mu             sync.RWMutex
	explicitConfig string
)

// SetConfigFile pins the config file path used by the next Initialize.
func SetConfigFile(path string) {
	mu.Lock()
	explicitConfig = path
	mu.Unlock()
}

// Initialize builds a fresh viper instance. It is safe to call more than once;
// each call re-reads env and the config file.
func Initialize() error {
	mu.Lock()
	defer mu.Unlock()

	nv := viper.New()
	nv.SetConfigType("yaml")
	nv.SetEnvPrefix("TICKETPORT")
	nv.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	nv.AutomaticEnv()
	setDefaults(nv)

	path := explicitConfig
	if path == "" {
		path = discoverConfigFile()
	}
	if path != "" {
		nv.SetConfigFile(path)
		if err := nv.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if explicitConfig != "" || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
				return fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	v = nv
	return nil
}

func setDefaults(nv *viper.Viper) {
	nv.SetDefault("backend", "sqlite")
	nv.SetDefault("db", filepath.Join(DirName, "ticketport.db"))
	nv.SetDefault("mysql.dsn", "")
	nv.SetDefault("json", false)

	nv.SetDefault("server.addr", "127.0.0.1:8484")
	nv.SetDefault("server.allow-remote", false)
	nv.SetDefault("server.import-timeout", 10*time.Minute)
	nv.SetDefault("server.read-timeout", 2*time.Minute)
	nv.SetDefault("server.admin-tokens", map[string]string{})

	nv.SetDefault("import.max-upload-bytes", int64(50<<20))
	nv.SetDefault("import.submitter-implies-agent", false)
	nv.SetDefault("import.mapping-file", "")
	nv.SetDefault("import.admin", "")
}

// discoverConfigFile walks up from the working directory looking for
// .ticketport/config.yaml, then falls back to the user config dirs.
func discoverConfigFile() string {
	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; ; {
			candidate := filepath.Join(dir, DirName, "config.yaml")
			if fileExists(candidate) {
				return candidate
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		candidate := filepath.Join(xdg, "ticketport", "config.yaml")
		if fileExists(candidate) {
			return candidate
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, ".config", "ticketport", "config.yaml")
		if fileExists(candidate) {
			return candidate
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func instance() *viper.Viper {
	mu.RLock()
	cur := v
	mu.RUnlock()
	if cur != nil {
		return cur
	}
	if err := Initialize(); err != nil {
		// Fall back to defaults only; the caller sees the error on its own Initialize.
		nv := viper.New()
		setDefaults(nv)
		return nv
	}
	mu.RLock()
	defer mu.RUnlock()
	return v
}

// ResetForTesting drops the current instance and any pinned config path.
func ResetForTesting() {
	mu.Lock()
	v = nil
	explicitConfig = ""
	mu.Unlock()
}

// ConfigFileUsed returns the path of the loaded config file, or "".
func ConfigFileUsed() string {
	return instance().ConfigFileUsed()
}

// GetString returns the string value of key.
func GetString(key string) string {
	return instance().GetString(key)
}

// GetBool returns the boolean value of key.
func GetBool(key string) bool {
	return instance().GetBool(key)
}

func GetInt(key string) int {
	return instance().GetInt(key)
}

func GetInt64(key string) int64 {
	return instance().GetInt64(key)
}

// GetDuration parses values such as "10m" or "90s".
func GetDuration(key string) time.Duration {
	return instance().GetDuration(key)
}

func GetStringSlice(key string) []string {
	return instance().GetStringSlice(key)
}

// GetStringMapString returns a nested map such as server.admin-tokens.
func GetStringMapString(key string) map[string]string {
	return instance().GetStringMapString(key)
}

// Set overrides a value for the lifetime of the current instance.
func Set(key string, value interface{}) {
	instance().Set(key, value)
}

// AllSettings returns the merged settings map.
func AllSettings() map[string]interface{} {
	return instance().AllSettings()
}

// WatchConfig calls fn after the config file changes on disk. It is a no-op
// when no config file was loaded.
func WatchConfig(fn func(fsnotify.Event)) bool {
	cur := instance()
	if cur.ConfigFileUsed() == "" {
		return false
	}
	cur.OnConfigChange(fn)
	cur.WatchConfig()
	return true
}
