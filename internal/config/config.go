package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/spf13/viper"

	"github.com/olehkaliuzhnyi/wallet-cache/internal/cachefile"
)

const (
	// PollIntervalKey is how often a cached object checks for its real counterpart.
	PollIntervalKey = "POLL_INTERVAL"
	// WaitTimeoutKey bounds how long a cached call waits for the real object.
	WaitTimeoutKey = "WAIT_TIMEOUT"
	// SaveThrottleKey is the minimum gap between two cache writes.
	SaveThrottleKey = "SAVE_THROTTLE"
	// DatadirKey is the directory holding the cache file.
	DatadirKey = "DATADIR"
	// CacheFileKey overrides the cache file name inside the data directory.
	CacheFileKey = "CACHE_FILE"
	// PauseWalletsKey starts every wallet paused.
	PauseWalletsKey = "PAUSE_WALLETS"
	// OtherMethodsKey lists the other methods exposed on cached wallets,
	// as "pluginId:method,pluginId:method".
	OtherMethodsKey = "OTHER_METHODS"
	// LogLevelKey is one of debug, info, warn, error.
	LogLevelKey = "LOG_LEVEL"

	envPrefix = "WALLETCACHE"
)

var defaultDatadir = btcutil.AppDataDir("walletcache", false)

// Config holds all configurable parameters of the wallet cache.
type Config struct {
	// Real-object polling
	PollInterval time.Duration
	WaitTimeout  time.Duration

	// Cache saving
	SaveThrottle time.Duration
	Datadir      string
	CacheFile    string

	// Login options
	PauseWallets bool
	OtherMethods map[string][]string

	LogLevel string
}

// Default returns a Config populated with default values.
func Default() Config {
	return Config{
		PollInterval: 300 * time.Millisecond,
		WaitTimeout:  60 * time.Second,
		SaveThrottle: 5 * time.Second,
		Datadir:      defaultDatadir,
		CacheFile:    cachefile.FileName,
		OtherMethods: map[string][]string{},
		LogLevel:     "info",
	}
}

// FromEnv returns a Config populated from WALLETCACHE_* environment
// variables, falling back to defaults for unset values.
func FromEnv() Config {
	def := Default()
	vip := viper.New()
	vip.SetEnvPrefix(envPrefix)
	vip.AutomaticEnv()

	vip.SetDefault(PollIntervalKey, def.PollInterval)
	vip.SetDefault(WaitTimeoutKey, def.WaitTimeout)
	vip.SetDefault(SaveThrottleKey, def.SaveThrottle)
	vip.SetDefault(DatadirKey, def.Datadir)
	vip.SetDefault(CacheFileKey, def.CacheFile)
	vip.SetDefault(PauseWalletsKey, false)
	vip.SetDefault(OtherMethodsKey, "")
	vip.SetDefault(LogLevelKey, def.LogLevel)

	return Config{
		PollInterval: vip.GetDuration(PollIntervalKey),
		WaitTimeout:  vip.GetDuration(WaitTimeoutKey),
		SaveThrottle: vip.GetDuration(SaveThrottleKey),
		Datadir:      vip.GetString(DatadirKey),
		CacheFile:    vip.GetString(CacheFileKey),
		PauseWallets: vip.GetBool(PauseWalletsKey),
		OtherMethods: ParseOtherMethods(vip.GetString(OtherMethodsKey)),
		LogLevel:     strings.ToLower(vip.GetString(LogLevelKey)),
	}
}

// Validate reports the first invalid value.
func (c Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("%s must be positive", PollIntervalKey)
	}
	if c.WaitTimeout < c.PollInterval {
		return fmt.Errorf("%s must not be shorter than %s", WaitTimeoutKey, PollIntervalKey)
	}
	if c.SaveThrottle <= 0 {
		return fmt.Errorf("%s must be positive", SaveThrottleKey)
	}
	if c.Datadir == "" {
		return errors.New("missing datadir")
	}
	if c.CacheFile == "" || filepath.Base(c.CacheFile) != c.CacheFile {
		return fmt.Errorf("%s must be a plain file name", CacheFileKey)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// CachePath returns the full path of the cache file.
func (c Config) CachePath() string {
	return filepath.Join(c.Datadir, c.CacheFile)
}

// Level maps LogLevel to a slog level.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%s: %w", LogLevelKey, err)
	}
	return level, nil
}

// ParseOtherMethods parses "pluginId:method,pluginId:method". Malformed
// entries are skipped.
func ParseOtherMethods(s string) map[string][]string {
	out := map[string][]string{}
	for _, entry := range strings.Split(s, ",") {
		plugin, method, ok := strings.Cut(strings.TrimSpace(entry), ":")
		plugin, method = strings.TrimSpace(plugin), strings.TrimSpace(method)
		if !ok || plugin == "" || method == "" {
			continue
		}
		out[plugin] = append(out[plugin], method)
	}
	return out
}
