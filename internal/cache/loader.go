package cache

import (
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/olehkaliuzhnyi/wallet-cache/internal/cachefile"
	"github.com/olehkaliuzhnyi/wallet-cache/internal/currency"
	"github.com/olehkaliuzhnyi/wallet-cache/pkg/models"
)

// LoadOptions configures Load.
type LoadOptions struct {
	GetRealWallet func(walletID string) currency.Wallet
	GetRealConfig func(pluginID string) currency.Config
	// OtherMethodNames lists, per plugin id, the other methods to expose on
	// cached wallets of that plugin.
	OtherMethodNames map[string][]string
	Paused           bool
	PollInterval     time.Duration
	WaitTimeout      time.Duration
	Logger           *slog.Logger
}

// LoadResult is everything a login needs to show wallets before any engine runs.
type LoadResult struct {
	WalletsByID map[string]*CachedWallet
	// ActiveWalletIDs keeps the order of the cache file.
	ActiveWalletIDs    []string
	CachedBalancesByID map[string]map[string]string
	ConfigsByPluginID  map[string]*CachedConfig

	cleanup sync.Once
}

// Cleanup closes every real-object handle of the result. Safe to call more
// than once.
func (r *LoadResult) Cleanup() {
	r.cleanup.Do(func() {
		for _, w := range r.WalletsByID {
			w.Close()
		}
		for _, c := range r.ConfigsByPluginID {
			c.Close()
		}
	})
}

// Wallets returns the cached wallets as currency wallets, keyed by id.
func (r *LoadResult) Wallets() map[string]currency.Wallet {
	out := make(map[string]currency.Wallet, len(r.WalletsByID))
	for id, w := range r.WalletsByID {
		out[id] = w
	}
	return out
}

// Load parses a cache file and builds cached configs and wallets from it.
// Configs are built only for plugins a cached wallet uses. Wallets of plugins
// missing from currencyInfos are skipped. A file that fails
// to parse yields a *cachefile.ParseError and no result.
func Load(data []byte, currencyInfos map[string]models.CurrencyInfo, opts LoadOptions) (*LoadResult, error) {
	file, err := cachefile.Parse(data)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "cache_loader")

	res := &LoadResult{
		WalletsByID:        map[string]*CachedWallet{},
		ActiveWalletIDs:    []string{},
		CachedBalancesByID: map[string]map[string]string{},
		ConfigsByPluginID:  map[string]*CachedConfig{},
	}

	failed := map[string]bool{}
	configFor := func(pluginID string) (*CachedConfig, bool) {
		if cfg, ok := res.ConfigsByPluginID[pluginID]; ok {
			return cfg, true
		}
		info, ok := currencyInfos[pluginID]
		if !ok || failed[pluginID] {
			return nil, false
		}
		if info.PluginID == "" {
			info.PluginID = pluginID
		}
		cfg, err := NewCachedConfig(info, file.Tokens[pluginID], ConfigOptions{
			GetRealConfig: opts.GetRealConfig,
			PollInterval:  opts.PollInterval,
			WaitTimeout:   opts.WaitTimeout,
			Logger:        logger,
		})
		if err != nil {
			log.Debug("skipping currency config", "plugin", pluginID, "err", err)
			failed[pluginID] = true
			return nil, false
		}
		res.ConfigsByPluginID[pluginID] = cfg
		return cfg, true
	}

	for _, rec := range file.Wallets {
		cfg, ok := configFor(rec.PluginID)
		if !ok {
			log.Debug("skipping wallet of unknown plugin", "wallet_id", rec.ID, "plugin", rec.PluginID)
			continue
		}
		if _, dup := res.WalletsByID[rec.ID]; dup {
			log.Debug("skipping duplicate wallet", "wallet_id", rec.ID)
			continue
		}
		w := NewCachedWallet(rec, cfg, WalletOptions{
			GetRealWallet:    opts.GetRealWallet,
			OtherMethodNames: opts.OtherMethodNames[rec.PluginID],
			Paused:           opts.Paused,
			PollInterval:     opts.PollInterval,
			WaitTimeout:      opts.WaitTimeout,
			Logger:           logger,
		})
		res.WalletsByID[rec.ID] = w
		res.ActiveWalletIDs = append(res.ActiveWalletIDs, rec.ID)
		res.CachedBalancesByID[rec.ID] = maps.Clone(w.balanceMap)
	}

	log.Info("wallet cache loaded", "wallets", len(res.WalletsByID), "configs", len(res.ConfigsByPluginID))
	return res, nil
}
