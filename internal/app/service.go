package app

import (
	"sync"
	"time"

	"resolvemap/internal/adapters"
	"resolvemap/internal/core"
	"resolvemap/internal/policies"
	"resolvemap/internal/ports"
	"resolvemap/internal/types"
)

const (
	defaultKeyPrefix = "assets"
	defaultMaxDepth  = 2
	defaultWorkers   = 4
)

// Config carries the settings shared by every use case.
type Config struct {
	// KeyPrefix anchors the container key of a scanned root when the
	// request does not name one.
	KeyPrefix   string
	MaxDepth    int
	Workers     int
	Providers   []types.ProviderRule
	Format      types.SnapshotFormat
	Compression types.Compression
}

func DefaultConfig() Config {
	return Config{
		KeyPrefix:   defaultKeyPrefix,
		MaxDepth:    defaultMaxDepth,
		Workers:     defaultWorkers,
		Providers:   types.DefaultProviderRules(),
		Format:      types.SnapshotFormatCBOR,
		Compression: types.CompressionZstd,
	}
}

type Service struct {
	Opener      ports.ResourceOpenerPort
	Store       ports.MapStorePort
	Fingerprint ports.FingerprintPort
	Watcher     ports.PackageWatcherPort
	Scanner     core.Scanner
	Cache       *core.ResolveMapCache
	Config      Config
	Clock       func() time.Time

	scanned *scannedProviders
}

// scannedProviders remembers the provider that built each cached map so
// cache hits do not reopen the root to select it again.
type scannedProviders struct {
	mu        sync.RWMutex
	providers map[string]types.ProviderName
}

func newScannedProviders() *scannedProviders {
	return &scannedProviders{providers: map[string]types.ProviderName{}}
}

func (p *scannedProviders) set(id string, provider types.ProviderName) {
	p.mu.Lock()
	p.providers[id] = provider
	p.mu.Unlock()
}

func (p *scannedProviders) get(id string) (types.ProviderName, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	provider, ok := p.providers[id]
	return provider, ok
}

func NewService(cfg Config) Service {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.MaxDepth < 0 {
		cfg.MaxDepth = 0
	}
	if cfg.Format == "" {
		cfg.Format = types.SnapshotFormatCBOR
	}
	opener := adapters.NewResourceOpenerAdapter()
	store := adapters.NewMapStoreAdapter()
	providers := []ports.ResolveMapProviderPort{
		adapters.NewZipProvider(opener),
		adapters.NewGLBProvider(opener),
		adapters.NewUSDZProvider(opener),
		adapters.NewFileProvider(opener),
		adapters.NewSnapshotProvider(opener, store),
	}
	policy := policies.NewProviderPolicy(cfg.Providers)
	return Service{
		Opener:      opener,
		Store:       store,
		Fingerprint: adapters.NewFingerprintAdapter(opener),
		Watcher:     adapters.NewPackageWatcherAdapter(),
		Scanner:     core.NewScanner(opener, adapters.NewContentSnifferAdapter(), policy, providers, cfg.MaxDepth),
		Cache:       core.NewResolveMapCache(),
		Config:      cfg,
		Clock:       time.Now,
		scanned:     newScannedProviders(),
	}
}
