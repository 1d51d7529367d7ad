// Package config loads launcher settings from config.yaml in the
// application support directory, RUNNER_* environment variables and
// command-line flags, in increasing order of precedence.
package config

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"runner-launcher/internal/handoff"
	"runner-launcher/internal/paths"
)

const (
	KeyBundleID           = "bundle_id"
	KeySupportRoot        = "support_root"
	KeyLogLevel           = "log_level"
	KeyConnectTimeout     = "connect_timeout"
	KeyConnectRetryWindow = "connect_retry_window"
	KeyRebindOnRemove     = "rebind_on_remove"
	KeyWatchInterval      = "watch_interval"
	KeyStartHidden        = "start_hidden"

	EnvPrefix = "RUNNER"
)

var (
	instance *viper.Viper
	loadErr  error
	once     sync.Once
	configMu sync.RWMutex
)

// knownKeys restricts which keys `config set` may write.
var knownKeys = map[string]bool{
	KeyBundleID:           true,
	KeySupportRoot:        true,
	KeyLogLevel:           true,
	KeyConnectTimeout:     true,
	KeyConnectRetryWindow: true,
	KeyRebindOnRemove:     true,
	KeyWatchInterval:      true,
	KeyStartHidden:        true,
}

// Get returns the process-wide configuration, loading it on first use.
// A missing file is not an error; a broken one is reported by LoadError
// and defaults apply.
func Get() *viper.Viper {
	once.Do(func() {
		instance, loadErr = New(GetConfigDir())
	})
	return instance
}

// LoadError returns the error from reading the config file in Get, if
// any.
func LoadError() error {
	Get()
	return loadErr
}

// New builds a configuration rooted at dir. The returned viper is
// usable even when err is non-nil.
func New(dir string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault(KeyBundleID, paths.DefaultBundleID)
	v.SetDefault(KeySupportRoot, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyConnectTimeout, handoff.DefaultConnectTimeout)
	v.SetDefault(KeyConnectRetryWindow, handoff.DefaultRetryWindow)
	v.SetDefault(KeyRebindOnRemove, true)
	v.SetDefault(KeyWatchInterval, handoff.DefaultWatchInterval)
	v.SetDefault(KeyStartHidden, false)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return v, err
	}
	return v, nil
}

// Save writes the process-wide configuration to dir/config.yaml,
// creating the directory if needed.
func Save(dir string) error {
	configMu.Lock()
	defer configMu.Unlock()

	if instance == nil {
		return nil
	}
	return SaveTo(instance, dir)
}

// Use points v at dir/config.yaml once flags have settled where the
// support directory is. Values from that file replace those read at
// startup; a missing file leaves defaults, env and flags in effect.
func Use(v *viper.Viper, dir string) error {
	v.SetConfigFile(filepath.Join(dir, paths.ConfigFileName))
	err := v.ReadInConfig()
	if errors.Is(err, fs.ErrNotExist) {
		// Drop whatever the startup file set.
		return v.ReadConfig(bytes.NewReader(nil))
	}
	return err
}

// SaveTo writes v to dir/config.yaml.
func SaveTo(v *viper.Viper, dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	return v.WriteConfigAs(filepath.Join(dir, paths.ConfigFileName))
}

func NormalizeKey(key string) string {
	return strings.ReplaceAll(strings.TrimSpace(key), "-", "_")
}

// IsKnownKey reports whether key (after normalization) is a setting the
// launcher reads.
func IsKnownKey(key string) bool {
	return knownKeys[NormalizeKey(key)]
}

// KnownKeys returns the settable keys in sorted order.
func KnownKeys() []string {
	keys := make([]string, 0, len(knownKeys))
	for k := range knownKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetConfigDir returns the directory holding config.yaml before flags
// are parsed. It follows RUNNER_SUPPORT_ROOT and RUNNER_BUNDLE_ID so the
// file sits next to the lock and socket it configures; the CLI calls Use
// once --support-root and --bundle-id are known.
func GetConfigDir() string {
	root := os.Getenv(EnvPrefix + "_SUPPORT_ROOT")
	if root == "" {
		r, err := paths.SupportRoot()
		if err != nil {
			return "."
		}
		root = r
	}
	return paths.Resolve(root, os.Getenv(EnvPrefix+"_BUNDLE_ID")).Dir
}

// Settings is the typed view of the keys the launcher uses.
type Settings struct {
	BundleID           string
	SupportRoot        string
	LogLevel           string
	ConnectTimeout     time.Duration
	ConnectRetryWindow time.Duration
	RebindOnRemove     bool
	WatchInterval      time.Duration
	StartHidden        bool
}

// Load reads Settings from v.
func Load(v *viper.Viper) Settings {
	return Settings{
		BundleID:           v.GetString(KeyBundleID),
		SupportRoot:        v.GetString(KeySupportRoot),
		LogLevel:           v.GetString(KeyLogLevel),
		ConnectTimeout:     v.GetDuration(KeyConnectTimeout),
		ConnectRetryWindow: v.GetDuration(KeyConnectRetryWindow),
		RebindOnRemove:     v.GetBool(KeyRebindOnRemove),
		WatchInterval:      v.GetDuration(KeyWatchInterval),
		StartHidden:        v.GetBool(KeyStartHidden),
	}
}

// Paths resolves the on-disk layout these settings point at.
func (s Settings) Paths() (paths.Paths, error) {
	if s.SupportRoot != "" {
		return paths.Resolve(s.SupportRoot, s.BundleID), nil
	}
	return paths.Default(s.BundleID)
}

// NotifyOptions returns the secondary's connect settings.
func (s Settings) NotifyOptions() handoff.NotifyOptions {
	return handoff.NotifyOptions{
		Timeout:     s.ConnectTimeout,
		RetryWindow: s.ConnectRetryWindow,
	}
}
