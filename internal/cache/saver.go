package cache

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/olehkaliuzhnyi/wallet-cache/internal/cachefile"
	"github.com/olehkaliuzhnyi/wallet-cache/internal/currency"
	"github.com/olehkaliuzhnyi/wallet-cache/internal/periodic"
	"github.com/olehkaliuzhnyi/wallet-cache/pkg/models"
)

// DefaultSaveThrottle is the minimum gap between two cache writes.
const DefaultSaveThrottle = 5 * time.Second

// SaverOptions configures a Saver.
type SaverOptions struct {
	Throttle time.Duration
	Logger   *slog.Logger
}

// Saver writes the account's wallet state to the cache, at most once per
// throttle interval and only after something changed.
type Saver struct {
	account currency.Account
	store   cachefile.Writer
	task    *periodic.Task
	logger  *slog.Logger

	mu      sync.Mutex
	dirty   bool
	stopped bool

	// held for the whole of a write
	writeMu sync.Mutex
}

// NewSaver returns a stopped saver.
func NewSaver(account currency.Account, store cachefile.Writer, opts SaverOptions) *Saver {
	throttle := opts.Throttle
	if throttle <= 0 {
		throttle = DefaultSaveThrottle
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Saver{
		account: account,
		store:   store,
		logger:  logger.With("component", "cache_saver"),
	}
	s.task = periodic.New(s.tick, throttle,
		periodic.WithLogger(s.logger),
		periodic.OnError(func(err error) {
			s.logger.Warn("wallet cache save failed", "err", err)
		}),
	)
	return s
}

// Start begins checking for changes. The first check happens one throttle
// interval from now.
func (s *Saver) Start() {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return
	}
	s.task.StartDelayed()
}

// MarkDirty records that the cached state changed.
func (s *Saver) MarkDirty() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// Dirty reports whether a change is waiting to be written.
func (s *Saver) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Stop cancels future saves. A write already in progress finishes.
func (s *Saver) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.task.Stop()
}

// Flush writes the current state now if anything changed, waiting for a
// write in progress first. It does nothing once the saver is stopped.
func (s *Saver) Flush(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.isStopped() || !s.takeDirty() {
		return nil
	}
	if err := s.save(ctx); err != nil {
		s.MarkDirty()
		return err
	}
	return nil
}

func (s *Saver) tick() error {
	if !s.writeMu.TryLock() {
		return nil
	}
	defer s.writeMu.Unlock()
	if s.isStopped() || !s.takeDirty() {
		return nil
	}
	if err := s.save(context.Background()); err != nil {
		s.MarkDirty()
		return err
	}
	return nil
}

func (s *Saver) takeDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.dirty
	s.dirty = false
	return was
}

func (s *Saver) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *Saver) save(ctx context.Context) error {
	file, err := Snapshot(s.account)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	data, err := cachefile.Marshal(file)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := s.store.Write(ctx, data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	s.logger.Debug("wallet cache saved", "wallets", len(file.Wallets), "bytes", len(data))
	return nil
}

// Snapshot builds a cache file from the account's active wallets. Only tokens
// enabled on at least one wallet of a plugin are kept for that plugin.
// Active ids without a wallet object are left out.
func Snapshot(account currency.Account) (*cachefile.File, error) {
	ids, err := account.ActiveWalletIDs()
	if err != nil {
		return nil, err
	}
	wallets, err := account.CurrencyWallets()
	if err != nil {
		return nil, err
	}
	configs, err := account.CurrencyConfigs()
	if err != nil {
		return nil, err
	}

	enabled := map[string]map[string]struct{}{}
	file := &cachefile.File{
		Version: cachefile.Version,
		Tokens:  map[string]map[string]models.Token{},
		Wallets: make([]cachefile.CachedWallet, 0, len(ids)),
	}
	for _, id := range ids {
		w, ok := wallets[id]
		if !ok || w == nil {
			continue
		}
		rec := walletRecord(w)
		set, ok := enabled[rec.PluginID]
		if !ok {
			set = map[string]struct{}{}
			enabled[rec.PluginID] = set
		}
		for _, tokenID := range rec.EnabledTokenIDs {
			set[tokenID] = struct{}{}
		}
		file.Wallets = append(file.Wallets, rec)
	}

	for pluginID, tokenIDs := range enabled {
		cfg, ok := configs[pluginID]
		if !ok || cfg == nil {
			continue
		}
		all := cfg.AllTokens()
		kept := make(map[string]models.Token, len(tokenIDs))
		for tokenID := range tokenIDs {
			if token, ok := all[tokenID]; ok {
				kept[tokenID] = token
			}
		}
		file.Tokens[pluginID] = kept
	}
	return file, nil
}

func walletRecord(w currency.Wallet) cachefile.CachedWallet {
	balances := map[string]string{}
	for tokenID, amount := range w.BalanceMap() {
		balances[cachefile.BalanceKeyFromTokenID(tokenID)] = amount
	}
	rec := cachefile.CachedWallet{
		ID:               w.ID(),
		Type:             w.Type(),
		PluginID:         w.CurrencyInfo().PluginID,
		FiatCurrencyCode: w.FiatCurrencyCode(),
		Balances:         balances,
		EnabledTokenIDs:  slices.Clone(w.EnabledTokenIDs()),
		OtherMethodNames: w.OtherMethods().Names(),
	}
	if cached, ok := w.(*CachedWallet); ok {
		rec.Name = cached.record.Name
	} else if name := w.Name(); name != "" {
		rec.Name = &name
	}
	if rec.EnabledTokenIDs == nil {
		rec.EnabledTokenIDs = []string{}
	}
	if len(rec.OtherMethodNames) == 0 {
		rec.OtherMethodNames = nil
	}
	return rec
}
