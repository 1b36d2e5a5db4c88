// Package session ties a login to the wallet cache: it shows cached wallets
// right away, swaps in real engine objects as they register, and keeps the
// cache file current.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/olehkaliuzhnyi/wallet-cache/internal/cache"
	"github.com/olehkaliuzhnyi/wallet-cache/internal/cachefile"
	"github.com/olehkaliuzhnyi/wallet-cache/internal/currency"
	"github.com/olehkaliuzhnyi/wallet-cache/pkg/models"
)

// ErrClosed is returned by a session after Close.
var ErrClosed = errors.New("session: closed")

// Options configures Open.
type Options struct {
	Store            cachefile.ReadWriter
	CurrencyInfos    map[string]models.CurrencyInfo
	OtherMethodNames map[string][]string
	Paused           bool
	PollInterval     time.Duration
	WaitTimeout      time.Duration
	SaveThrottle     time.Duration
	Logger           *slog.Logger
}

// Session is one logged-in account.
type Session struct {
	logger *slog.Logger
	saver  *cache.Saver
	cached *cache.LoadResult

	mu          sync.RWMutex
	activeIDs   []string
	realWallets map[string]currency.Wallet
	realConfigs map[string]currency.Config
	closed      bool

	closeOnce sync.Once
	closeErr  error
}

var _ currency.Account = (*Session)(nil)

// Open starts a session. A missing or unreadable cache is not an error: the
// session starts empty and real wallets fill it as they register.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.Store == nil {
		return nil, errors.New("session: no cache store")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		logger:      logger.With("component", "session"),
		activeIDs:   []string{},
		realWallets: map[string]currency.Wallet{},
		realConfigs: map[string]currency.Config{},
	}

	data, err := opts.Store.Read(ctx)
	switch {
	case errors.Is(err, cachefile.ErrNoCache):
		s.logger.Info("no wallet cache, starting cold")
	case err != nil:
		s.logger.Warn("cannot read wallet cache, starting cold", "err", err)
	default:
		res, err := cache.Load(data, opts.CurrencyInfos, cache.LoadOptions{
			GetRealWallet:    s.realWallet,
			GetRealConfig:    s.realConfig,
			OtherMethodNames: opts.OtherMethodNames,
			Paused:           opts.Paused,
			PollInterval:     opts.PollInterval,
			WaitTimeout:      opts.WaitTimeout,
			Logger:           logger,
		})
		if err != nil {
			s.logger.Warn("invalid wallet cache, starting cold", "err", err)
			break
		}
		s.cached = res
		s.activeIDs = slices.Clone(res.ActiveWalletIDs)
	}

	s.saver = cache.NewSaver(s, opts.Store, cache.SaverOptions{
		Throttle: opts.SaveThrottle,
		Logger:   logger,
	})
	s.saver.Start()
	return s, nil
}

func (s *Session) realWallet(id string) currency.Wallet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.realWallets[id]
}

func (s *Session) realConfig(pluginID string) currency.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.realConfigs[pluginID]
}

// RegisterWallet records a loaded engine wallet. Cached calls waiting for it
// resume immediately.
func (s *Session) RegisterWallet(w currency.Wallet) error {
	if _, cached := w.(*cache.CachedWallet); cached {
		return fmt.Errorf("session: wallet %s is a cached wallet", w.ID())
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	id := w.ID()
	s.realWallets[id] = w
	if !slices.Contains(s.activeIDs, id) {
		s.activeIDs = append(s.activeIDs, id)
	}
	s.mu.Unlock()

	if cw := s.cachedWallet(id); cw != nil {
		cw.Real().Notify()
	}
	s.logger.Debug("wallet registered", "wallet_id", id)
	s.saver.MarkDirty()
	return nil
}

// RegisterConfig records a loaded currency config.
func (s *Session) RegisterConfig(c currency.Config) error {
	if _, cached := c.(*cache.CachedConfig); cached {
		return fmt.Errorf("session: config %s is a cached config", c.PluginID())
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	pluginID := c.PluginID()
	s.realConfigs[pluginID] = c
	s.mu.Unlock()

	if s.cached != nil {
		if cc, ok := s.cached.ConfigsByPluginID[pluginID]; ok {
			cc.Real().Notify()
		}
	}
	s.saver.MarkDirty()
	return nil
}

// SetActiveWalletIDs replaces the list of wallets the account shows.
func (s *Session) SetActiveWalletIDs(ids []string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.activeIDs = slices.Clone(ids)
	s.mu.Unlock()
	s.saver.MarkDirty()
	return nil
}

// WalletChanged tells the session that something the cache keeps changed,
// such as a balance or the enabled tokens.
func (s *Session) WalletChanged(walletID string) {
	s.logger.Debug("wallet changed", "wallet_id", walletID)
	s.saver.MarkDirty()
}

func (s *Session) cachedWallet(id string) *cache.CachedWallet {
	if s.cached == nil {
		return nil
	}
	return s.cached.WalletsByID[id]
}

// Wallet returns the real wallet when loaded, else the cached one.
func (s *Session) Wallet(id string) (currency.Wallet, bool) {
	if w := s.realWallet(id); w != nil {
		return w, true
	}
	if cw := s.cachedWallet(id); cw != nil {
		return cw, true
	}
	return nil, false
}

// CachedBalances returns the balances the cache held for a wallet at login.
func (s *Session) CachedBalances(walletID string) (map[string]string, bool) {
	if s.cached == nil {
		return nil, false
	}
	b, ok := s.cached.CachedBalancesByID[walletID]
	return b, ok
}

// ActiveWalletIDs returns the shown wallets in display order.
func (s *Session) ActiveWalletIDs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return slices.Clone(s.activeIDs), nil
}

// CurrencyWallets returns every known wallet; real wallets replace cached ones.
func (s *Session) CurrencyWallets() (map[string]currency.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := map[string]currency.Wallet{}
	if s.cached != nil {
		for id, w := range s.cached.WalletsByID {
			out[id] = w
		}
	}
	for id, w := range s.realWallets {
		out[id] = w
	}
	return out, nil
}

// CurrencyConfigs returns every known config; real configs replace cached ones.
func (s *Session) CurrencyConfigs() (map[string]currency.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := map[string]currency.Config{}
	if s.cached != nil {
		for id, c := range s.cached.ConfigsByPluginID {
			out[id] = c
		}
	}
	for id, c := range s.realConfigs {
		out[id] = c
	}
	return out, nil
}

// WaitReady blocks until every cached wallet has a real wallet, or the first
// wait fails.
func (s *Session) WaitReady(ctx context.Context) error {
	if s.cached == nil {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range s.cached.WalletsByID {
		w := w
		g.Go(func() error {
			_, err := w.Real().WaitFor(gctx)
			return err
		})
	}
	return g.Wait()
}

// Close writes pending changes, stops saving and releases the cached objects.
// Later calls return the first result.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		if err := s.saver.Flush(ctx); err != nil {
			s.closeErr = fmt.Errorf("session: final save: %w", err)
		}
		s.saver.Stop()

		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		if s.cached != nil {
			s.cached.Cleanup()
		}
		s.logger.Info("session closed")
	})
	return s.closeErr
}
