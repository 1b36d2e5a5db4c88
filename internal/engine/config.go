package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/tyler-smith/go-bip39"

	"github.com/olehkaliuzhnyi/wallet-cache/internal/currency"
	"github.com/olehkaliuzhnyi/wallet-cache/pkg/models"
)

var (
	ErrTokenExists   = errors.New("engine: token already exists")
	ErrUnknownToken  = errors.New("engine: unknown token")
	ErrInvalidToken  = errors.New("engine: invalid token")
	ErrInvalidKey    = errors.New("engine: invalid key")
	ErrBuiltinToken  = errors.New("engine: builtin tokens cannot be changed")
	ErrPluginUnknown = errors.New("engine: unknown plugin")
)

// Config is the live currency config of one plugin.
type Config struct {
	plugin *Plugin

	mu            sync.RWMutex
	custom        map[string]models.Token
	alwaysEnabled []string
	settings      map[string]any
}

var _ currency.Config = (*Config)(nil)

// NewConfig returns the config of a plugin with no custom tokens.
func NewConfig(p *Plugin) *Config {
	return &Config{
		plugin:   p,
		custom:   map[string]models.Token{},
		settings: map[string]any{},
	}
}

func (c *Config) Plugin() *Plugin { return c.plugin }

func (c *Config) PluginID() string { return c.plugin.Info.PluginID }

func (c *Config) CurrencyInfo() models.CurrencyInfo { return c.plugin.Info }

func (c *Config) BuiltinTokens() map[string]models.Token { return maps.Clone(c.plugin.Tokens) }

func (c *Config) CustomTokens() map[string]models.Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.custom)
}

// AllTokens merges builtin and custom tokens.
func (c *Config) AllTokens() map[string]models.Token {
	out := c.BuiltinTokens()
	c.mu.RLock()
	defer c.mu.RUnlock()
	maps.Copy(out, c.custom)
	return out
}

func (c *Config) AlwaysEnabledTokenIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.alwaysEnabled)
}

func (c *Config) UserSettings() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.settings)
}

func (c *Config) OtherMethods() currency.OtherMethods {
	return currency.OtherMethods{
		"validateAddress": func(ctx context.Context, args ...any) (any, error) {
			if len(args) != 1 {
				return nil, errors.New("validateAddress: want one address")
			}
			addr, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("validateAddress: address is %T", args[0])
			}
			return c.plugin.ValidateAddress(addr) == nil, nil
		},
	}
}

func (c *Config) GetTokenID(ctx context.Context, token models.Token) (string, error) {
	if err := validateToken(token); err != nil {
		return "", err
	}
	return tokenIDFor(token), nil
}

func (c *Config) AddCustomToken(ctx context.Context, token models.Token) (string, error) {
	if err := validateToken(token); err != nil {
		return "", err
	}
	id := tokenIDFor(token)
	if _, ok := c.plugin.Tokens[id]; ok {
		return "", fmt.Errorf("%w: %s", ErrTokenExists, id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.custom[id]; ok {
		return "", fmt.Errorf("%w: %s", ErrTokenExists, id)
	}
	c.custom[id] = token
	return id, nil
}

func (c *Config) ChangeCustomToken(ctx context.Context, tokenID string, token models.Token) error {
	if err := validateToken(token); err != nil {
		return err
	}
	if _, ok := c.plugin.Tokens[tokenID]; ok {
		return fmt.Errorf("%w: %s", ErrBuiltinToken, tokenID)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.custom[tokenID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, tokenID)
	}
	newID := tokenIDFor(token)
	if newID != tokenID {
		if _, taken := c.custom[newID]; taken {
			return fmt.Errorf("%w: %s", ErrTokenExists, newID)
		}
		delete(c.custom, tokenID)
	}
	c.custom[newID] = token
	return nil
}

func (c *Config) RemoveCustomToken(ctx context.Context, tokenID string) error {
	if _, ok := c.plugin.Tokens[tokenID]; ok {
		return fmt.Errorf("%w: %s", ErrBuiltinToken, tokenID)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.custom[tokenID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, tokenID)
	}
	delete(c.custom, tokenID)
	return nil
}

func (c *Config) ChangeAlwaysEnabledTokenIDs(ctx context.Context, tokenIDs []string) error {
	all := c.AllTokens()
	for _, id := range tokenIDs {
		if _, ok := all[id]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownToken, id)
		}
	}
	c.mu.Lock()
	c.alwaysEnabled = slices.Clone(tokenIDs)
	c.mu.Unlock()
	return nil
}

func (c *Config) ChangeUserSettings(ctx context.Context, settings map[string]any) error {
	c.mu.Lock()
	c.settings = maps.Clone(settings)
	if c.settings == nil {
		c.settings = map[string]any{}
	}
	c.mu.Unlock()
	return nil
}

// ImportKey accepts a BIP-39 mnemonic and returns the wallet keys built from it.
func (c *Config) ImportKey(ctx context.Context, userInput string) (map[string]any, error) {
	mnemonic := strings.Join(strings.Fields(strings.ToLower(userInput)), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidKey
	}
	first, err := deriveAddress(c.plugin, bip39.NewSeed(mnemonic, ""), 0)
	if err != nil {
		return nil, fmt.Errorf("import key: %w", err)
	}
	return map[string]any{
		"mnemonic":  mnemonic,
		"publicKey": first.PublicKey,
	}, nil
}

func validateToken(t models.Token) error {
	if t.CurrencyCode == "" {
		return fmt.Errorf("%w: missing currency code", ErrInvalidToken)
	}
	if len(t.Denominations) == 0 {
		return fmt.Errorf("%w: %s has no denominations", ErrInvalidToken, t.CurrencyCode)
	}
	for _, d := range t.Denominations {
		m, err := decimal.NewFromString(d.Multiplier)
		if err != nil || !m.IsPositive() {
			return fmt.Errorf("%w: %s multiplier %q", ErrInvalidToken, d.Name, d.Multiplier)
		}
	}
	return nil
}
