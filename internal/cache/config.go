package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/olehkaliuzhnyi/wallet-cache/internal/currency"
	"github.com/olehkaliuzhnyi/wallet-cache/internal/poller"
	"github.com/olehkaliuzhnyi/wallet-cache/pkg/models"
)

// ConfigOptions wires a CachedConfig to its real counterpart.
type ConfigOptions struct {
	// GetRealConfig returns the loaded config for a plugin, or nil.
	GetRealConfig func(pluginID string) currency.Config
	PollInterval  time.Duration
	WaitTimeout   time.Duration
	Logger        *slog.Logger
}

// CachedConfig stands in for a plugin's currency config until the plugin
// loads. Token lookups are answered from the cache. Mutations go to the real
// config only when it is already available; this type never waits for it.
// While the real config is missing, token mutators return
// ErrNotSupportedWhileCached and settings mutators are ignored.
type CachedConfig struct {
	info    models.CurrencyInfo
	tokens  map[string]models.Token
	getReal func(pluginID string) currency.Config
	real    *poller.Handle[currency.Config]
	logger  *slog.Logger
}

var _ currency.Config = (*CachedConfig)(nil)

// NewCachedConfig builds a config over the cached tokens of one plugin.
func NewCachedConfig(info models.CurrencyInfo, tokens map[string]models.Token, opts ConfigOptions) (*CachedConfig, error) {
	if info.PluginID == "" {
		return nil, errors.New("cached config: missing plugin id")
	}
	for id, token := range tokens {
		if token.CurrencyCode == "" {
			return nil, fmt.Errorf("cached config %s: token %q has no currency code", info.PluginID, id)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &CachedConfig{
		info:    info,
		tokens:  maps.Clone(tokens),
		getReal: opts.GetRealConfig,
		logger:  logger.With("component", "cached_config", "plugin", info.PluginID),
	}
	if c.tokens == nil {
		c.tokens = map[string]models.Token{}
	}
	c.real = poller.New[currency.Config]("currency config "+info.PluginID, c.lookupReal,
		poller.WithInterval(opts.PollInterval),
		poller.WithTimeout(opts.WaitTimeout),
		poller.WithLogger(logger),
	)
	return c, nil
}

func (c *CachedConfig) lookupReal() (currency.Config, bool) {
	if c.getReal == nil {
		return nil, false
	}
	real := c.getReal(c.info.PluginID)
	if real == nil {
		return nil, false
	}
	if _, cached := real.(*CachedConfig); cached {
		return nil, false
	}
	return real, true
}

// Real returns the handle of the real config.
func (c *CachedConfig) Real() *poller.Handle[currency.Config] { return c.real }

// Close releases the real-config handle.
func (c *CachedConfig) Close() { c.real.Close() }

func (c *CachedConfig) PluginID() string { return c.info.PluginID }
func (c *CachedConfig) CurrencyInfo() models.CurrencyInfo { return c.info }

func (c *CachedConfig) AllTokens() map[string]models.Token { return maps.Clone(c.tokens) }
func (c *CachedConfig) BuiltinTokens() map[string]models.Token { return maps.Clone(c.tokens) }
func (c *CachedConfig) CustomTokens() map[string]models.Token { return map[string]models.Token{} }
func (c *CachedConfig) AlwaysEnabledTokenIDs() []string { return []string{} }
func (c *CachedConfig) UserSettings() map[string]any { return map[string]any{} }
func (c *CachedConfig) OtherMethods() currency.OtherMethods { return currency.OtherMethods{} }

// TokenIDFor derives a token id from its network location: the lowercased
// contract address when there is one, otherwise the lowercased currency code.
// Real plugins use the same rule, so enabled-token lists survive the switch
// from cached to real config.
func TokenIDFor(token models.Token) string {
	if addr, ok := token.ContractAddress(); ok {
		return strings.ToLower(addr)
	}
	return strings.ToLower(token.CurrencyCode)
}

func (c *CachedConfig) GetTokenID(ctx context.Context, token models.Token) (string, error) {
	return TokenIDFor(token), nil
}

func (c *CachedConfig) AddCustomToken(ctx context.Context, token models.Token) (string, error) {
	if real, ok := c.real.TryGet(); ok {
		return real.AddCustomToken(ctx, token)
	}
	return "", fmt.Errorf("add custom token: %w", ErrNotSupportedWhileCached)
}

func (c *CachedConfig) ChangeCustomToken(ctx context.Context, tokenID string, token models.Token) error {
	if real, ok := c.real.TryGet(); ok {
		return real.ChangeCustomToken(ctx, tokenID, token)
	}
	return fmt.Errorf("change custom token: %w", ErrNotSupportedWhileCached)
}

func (c *CachedConfig) RemoveCustomToken(ctx context.Context, tokenID string) error {
	if real, ok := c.real.TryGet(); ok {
		return real.RemoveCustomToken(ctx, tokenID)
	}
	return fmt.Errorf("remove custom token: %w", ErrNotSupportedWhileCached)
}

func (c *CachedConfig) ImportKey(ctx context.Context, userInput string) (map[string]any, error) {
	if real, ok := c.real.TryGet(); ok {
		return real.ImportKey(ctx, userInput)
	}
	return nil, fmt.Errorf("import key: %w", ErrNotSupportedWhileCached)
}

func (c *CachedConfig) ChangeAlwaysEnabledTokenIDs(ctx context.Context, tokenIDs []string) error {
	if real, ok := c.real.TryGet(); ok {
		return real.ChangeAlwaysEnabledTokenIDs(ctx, tokenIDs)
	}
	c.logger.Warn("ignoring always-enabled token change on cached config", "tokens", len(tokenIDs))
	return nil
}

func (c *CachedConfig) ChangeUserSettings(ctx context.Context, settings map[string]any) error {
	if real, ok := c.real.TryGet(); ok {
		return real.ChangeUserSettings(ctx, settings)
	}
	c.logger.Warn("ignoring user settings change on cached config")
	return nil
}
