// Package settings resolves the library's configuration snapshot from the
// document store, falling back to built-in defaults when no override
// document was ever written.
package settings

import (
	"context"
	"errors"
	"sync"

	"github.com/openshelf/lending-engine-go/docstore"
	"github.com/openshelf/lending-engine-go/lending/core"
	"github.com/openshelf/lending-engine-go/lending/shell"
)

// SettingsDocumentID is the fixed identity of the single settings document.
const SettingsDocumentID = "library"

// ErrNilStore is returned when a nil document store is supplied.
var ErrNilStore = errors.New("document store must not be nil")

// Provider serves the current LibrarySettings. With a change feed attached
// it caches the snapshot and invalidates on committed settings writes;
// without one every call refetches from the store.
type Provider struct {
	store  docstore.Store
	clock  shell.Clock
	logger docstore.Logger

	mu      sync.RWMutex
	cached  *core.LibrarySettings
	cancel  func()
	caching bool
}

// Option configures a Provider using the functional options pattern.
type Option func(*Provider) error

// WithChangeFeed attaches a feed whose committed settings documents keep the
// cached snapshot coherent.
func WithChangeFeed(feed docstore.ChangeFeed) Option {
	return func(p *Provider) error {
		if feed == nil {
			return errors.New("change feed must not be nil")
		}

		p.caching = true
		p.cancel = feed.Subscribe(shell.SettingsCollection, p.applyChange)

		return nil
	}
}

// WithClock overrides the clock used to stamp settings writes.
func WithClock(clock shell.Clock) Option {
	return func(p *Provider) error {
		if clock == nil {
			return errors.New("clock must not be nil")
		}

		p.clock = clock

		return nil
	}
}

// WithLogger enables logging.
func WithLogger(logger docstore.Logger) Option {
	return func(p *Provider) error {
		p.logger = logger

		return nil
	}
}

// BuildProvider creates a Provider backed by the given store.
func BuildProvider(store docstore.Store, options ...Option) (*Provider, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	provider := &Provider{
		store: store,
		clock: shell.SystemClock,
	}

	for _, option := range options {
		if err := option(provider); err != nil {
			return nil, err
		}
	}

	return provider, nil
}

// Current returns the settings snapshot in effect right now.
// A missing settings document yields the defaults, not an error.
func (p *Provider) Current(ctx context.Context) (core.LibrarySettings, error) {
	if p.caching {
		p.mu.RLock()
		cached := p.cached
		p.mu.RUnlock()

		if cached != nil {
			return *cached, nil
		}
	}

	doc, err := p.store.Load(ctx, shell.SettingsCollection, SettingsDocumentID)
	if errors.Is(err, docstore.ErrNotFound) {
		return p.remember(core.DefaultLibrarySettings()), nil
	}

	if err != nil {
		return core.LibrarySettings{}, err
	}

	snapshot, err := shell.EntityFrom[core.LibrarySettings](doc)
	if err != nil {
		return core.LibrarySettings{}, err
	}

	return p.remember(snapshot), nil
}

// Update persists a new settings snapshot. Existing loans and fines keep the
// amounts and due dates computed from the snapshot they were created under.
func (p *Provider) Update(ctx context.Context, snapshot core.LibrarySettings) error {
	return shell.RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		current, err := p.store.Load(ctx, shell.SettingsCollection, SettingsDocumentID)

		var version docstore.VersionUint
		switch {
		case errors.Is(err, docstore.ErrNotFound):
			version = 0
		case err != nil:
			return err
		default:
			version = current.Version
		}

		doc, err := shell.DocumentFor(shell.SettingsCollection, SettingsDocumentID, version, snapshot, p.clock())
		if err != nil {
			return err
		}

		write := docstore.UpdateOf(doc)
		if version == 0 {
			write = docstore.InsertOf(doc)
		}

		commitErr := p.store.Commit(ctx, write)
		if errors.Is(commitErr, docstore.ErrDuplicateDocument) {
			// Lost the race creating the first snapshot; reload and CAS.
			return errors.Join(docstore.ErrConcurrencyConflict, commitErr)
		}

		return commitErr
	})
}

// Close cancels the change feed subscription, if any.
func (p *Provider) Close() {
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *Provider) remember(snapshot core.LibrarySettings) core.LibrarySettings {
	if p.caching {
		p.mu.Lock()
		p.cached = &snapshot
		p.mu.Unlock()
	}

	return snapshot
}

func (p *Provider) applyChange(doc docstore.Document) {
	snapshot, err := shell.EntityFrom[core.LibrarySettings](doc)
	if err != nil {
		if p.logger != nil {
			p.logger.Warn("discarding settings change with malformed payload", "error", err)
		}

		p.mu.Lock()
		p.cached = nil
		p.mu.Unlock()

		return
	}

	p.mu.Lock()
	p.cached = &snapshot
	p.mu.Unlock()
}
