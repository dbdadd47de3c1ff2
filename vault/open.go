package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bitfsorg/filevault-go/config"
	"github.com/bitfsorg/filevault-go/ledger"
	"github.com/bitfsorg/filevault-go/network"
	"github.com/bitfsorg/filevault-go/seal"
	"github.com/bitfsorg/filevault-go/storage"
	"github.com/bitfsorg/filevault-go/storage/grpcstore"
	"github.com/bitfsorg/filevault-go/wallet"
)

// Files created under the data directory by Open.
const (
	LockFileName    = "filevault.lock"
	BlobDirName     = "blobs"
	LedgerFileName  = "ledger.db"
	IndexFileName   = "index.db"
	IntentsFileName = "intents.db"
)

// closers closes in reverse order of acquisition.
type closers []func() error

func (c closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		errs = append(errs, c[i]())
	}
	return errors.Join(errs...)
}

// Open builds a Vault from cfg: blob store, ledger, cipher, logger and the
// optional intent log. The returned Closer releases everything Open acquired,
// including the data directory lock. opts are applied after the ones derived
// from cfg.
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*Vault, io.Closer, error) {
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, nil, fmt.Errorf("vault: create data directory: %w", err)
	}

	var cs closers
	fail := func(err error) (*Vault, io.Closer, error) {
		_ = cs.Close()
		return nil, nil, err
	}

	lock, err := lockDataDir(filepath.Join(cfg.DataDir, LockFileName))
	if err != nil {
		return nil, nil, fmt.Errorf("vault: %w", err)
	}
	cs = append(cs, func() error { return unlockDataDir(lock) })

	logger, closeLog, err := openLogger(cfg)
	if err != nil {
		return fail(err)
	}
	if closeLog != nil {
		cs = append(cs, closeLog)
	}

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return fail(err)
	}
	if closeStore != nil {
		cs = append(cs, closeStore)
	}

	records, closeLedger, err := openLedger(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	if closeLedger != nil {
		cs = append(cs, closeLedger)
	}

	var cipher seal.Cipher = seal.Legacy{}
	if cfg.Cipher == config.CipherSealed {
		cipher = seal.Sealed{Secret: []byte(cfg.SealSecret)}
	}

	base := []Option{
		WithCipher(cipher),
		WithLogger(logger),
		WithCallTimeout(cfg.CallTimeout),
	}
	if cfg.Intents {
		intents, err := OpenIntentLog(filepath.Join(cfg.DataDir, IntentsFileName))
		if err != nil {
			return fail(err)
		}
		cs = append(cs, intents.Close)
		base = append(base, WithIntentLog(intents))
	}

	v := New(store, records, append(base, opts...)...)
	logger.Info("vault opened",
		"datadir", cfg.DataDir,
		"blobstore", cfg.BlobStore,
		"ledger", cfg.Ledger,
		"cipher", cfg.Cipher,
		"intents", cfg.Intents,
	)
	return v, cs, nil
}

func openLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	if cfg.LogFile == "" {
		return config.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr), nil, nil
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("vault: open log file: %w", err)
	}
	return config.NewLogger(cfg.LogLevel, cfg.LogFormat, f), f.Close, nil
}

// openStore builds the configured blob store wrapped in retries and, when
// blob_cache is set, an LRU cache.
func openStore(cfg config.Config, logger *slog.Logger) (storage.Store, func() error, error) {
	var (
		store   storage.Store
		closeFn func() error
	)
	switch cfg.BlobStore {
	case config.BlobStoreFile:
		fs, err := storage.NewFileStore(filepath.Join(cfg.DataDir, BlobDirName))
		if err != nil {
			return nil, nil, fmt.Errorf("vault: open file store: %w", err)
		}
		store, closeFn = fs, fs.Close

		// Remote stores named alongside a file store serve reads the local
		// store misses.
		var fallbacks []storage.Store
		if cfg.KuboURL != "" {
			fallbacks = append(fallbacks, storage.NewKuboStore(cfg.KuboURL, nil))
		}
		if cfg.GRPCTarget != "" {
			c, err := grpcstore.Dial(cfg.GRPCTarget, grpcstore.DialOptions{Timeout: cfg.CallTimeout, MaxMsgBytes: cfg.GRPCMaxMsg})
			if err != nil {
				_ = fs.Close()
				return nil, nil, fmt.Errorf("vault: dial blob store: %w", err)
			}
			fallbacks = append(fallbacks, c)
			closeFn = func() error { return errors.Join(c.Close(), fs.Close()) }
		}
		if len(fallbacks) > 0 {
			store = storage.NewTieredStore(fs, fallbacks...)
		}
	case config.BlobStoreKubo:
		store = storage.NewKuboStore(cfg.KuboURL, nil)
	case config.BlobStoreGRPC:
		c, err := grpcstore.Dial(cfg.GRPCTarget, grpcstore.DialOptions{Timeout: cfg.CallTimeout, MaxMsgBytes: cfg.GRPCMaxMsg})
		if err != nil {
			return nil, nil, fmt.Errorf("vault: dial blob store: %w", err)
		}
		store, closeFn = c, c.Close
	case config.BlobStoreMemory:
		store = storage.NewMemStore()
	default:
		return nil, nil, fmt.Errorf("%w: blobstore %q", config.ErrInvalidBackend, cfg.BlobStore)
	}

	r := storage.NewRetrying(store, uint64(cfg.BlobRetries))
	r.OnRetry = func(op string, err error, wait time.Duration) {
		logger.Warn("blob store retry", "op", op, "wait", wait, "error", err)
	}
	if cfg.BlobCache > 0 {
		return storage.NewCachingStore(r, cfg.BlobCache, 0), closeFn, nil
	}
	return r, closeFn, nil
}

// openLedger builds the configured ledger client.
func openLedger(ctx context.Context, cfg config.Config, logger *slog.Logger) (ledger.Client, func() error, error) {
	switch cfg.Ledger {
	case config.LedgerMemory:
		return ledger.NewMemLedger(), nil, nil

	case config.LedgerBolt:
		b, err := ledger.OpenBoltLedger(filepath.Join(cfg.DataDir, LedgerFileName))
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil

	case config.LedgerAnchored:
		seed, err := wallet.LoadSeedFile(filepath.Join(cfg.DataDir, wallet.SeedFileName), cfg.SeedPassword)
		if err != nil {
			return nil, nil, fmt.Errorf("vault: load seed: %w", err)
		}
		w, err := wallet.NewWallet(seed, cfg.Network)
		if err != nil {
			return nil, nil, fmt.Errorf("vault: wallet: %w", err)
		}
		kp, err := w.FundingKey()
		if err != nil {
			return nil, nil, fmt.Errorf("vault: funding key: %w", err)
		}

		explicit := &network.RPCConfig{URL: cfg.RPCURL, User: cfg.RPCUser, Password: cfg.RPCPass}
		rpcCfg, err := network.ResolveConfig(explicit, config.Environ(), cfg.Network)
		if err != nil {
			return nil, nil, fmt.Errorf("vault: rpc config: %w", err)
		}

		index, err := ledger.OpenBoltLedger(filepath.Join(cfg.DataDir, IndexFileName))
		if err != nil {
			return nil, nil, err
		}
		a, err := ledger.NewAnchoredLedger(network.NewRPCClient(*rpcCfg), index, kp.PrivateKey, ledger.AnchoredOptions{
			FeeRate: cfg.FeeRate,
			Mainnet: w.Mainnet(),
		})
		if err != nil {
			_ = index.Close()
			return nil, nil, err
		}
		if err := a.Init(ctx); err != nil {
			_ = index.Close()
			return nil, nil, fmt.Errorf("vault: %w", err)
		}
		logger.Info("anchored ledger ready", "address", a.Address(), "rpc", rpcCfg.URL)
		return a, index.Close, nil

	default:
		return nil, nil, fmt.Errorf("%w: ledger %q", config.ErrInvalidBackend, cfg.Ledger)
	}
}
