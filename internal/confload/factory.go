package confload

import (
	"context"
	"reflect"
	"sync"

	"go.uber.org/zap"
)

type cacheKey struct {
	reader Reader
	loader Loader
	target reflect.Type
}

type cacheEntry struct {
	done  chan struct{}
	value any
	err   error
}

// Factory builds typed configurations and memoizes them by the identity of
// the reader, the loader and the target type. A Factory is safe for
// concurrent use; concurrent loads of the same key share one execution.
type Factory struct {
	logger *zap.Logger

	mu      sync.Mutex
	entries map[cacheKey]*cacheEntry
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithLogger sets the logger used to report construction failures.
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFactory returns an empty Factory.
func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{
		logger:  zap.NewNop(),
		entries: make(map[cacheKey]*cacheEntry),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

var defaultFactory = NewFactory()

// Default returns the process-wide Factory used by GetConfig.
func Default() *Factory {
	return defaultFactory
}

// GetConfig loads T through the process-wide Factory.
func GetConfig[T Config](ctx context.Context, r Reader, l Loader) (*T, error) {
	return Load[T](ctx, defaultFactory, r, l)
}

// Load reads raw text with r, parses it with l and binds the mapping to a new
// T. Reader and loader errors are returned unchanged; binding failures are
// returned as *ConfigError.
//
// The result is memoized: calling Load again with the same reader and loader
// values and the same T returns the identical pointer without reading again.
// Callers needing a fresh read must pass a new reader. Failed loads are not
// memoized.
func Load[T Config](ctx context.Context, f *Factory, r Reader, l Loader) (*T, error) {
	v, err := f.get(ctx, r, l, reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return nil, err
	}
	return v.(*T), nil
}

func (f *Factory) get(ctx context.Context, r Reader, l Loader, target reflect.Type) (any, error) {
	if r == nil || l == nil {
		return nil, &ConfigError{Op: "load " + target.String() + ": reader and loader are required"}
	}

	if !reflect.ValueOf(r).Comparable() || !reflect.ValueOf(l).Comparable() {
		f.logger.Debug("reader or loader is not comparable, skipping memoization",
			zap.Stringer("type", target),
		)
		return f.build(ctx, r, l, target)
	}

	key := cacheKey{reader: r, loader: l, target: target}

	f.mu.Lock()
	entry, ok := f.entries[key]
	if ok {
		f.mu.Unlock()
		select {
		case <-entry.done:
			return entry.value, entry.err
		case <-ctx.Done():
			return nil, &ConfigError{Op: "wait for " + target.String(), Err: ctx.Err()}
		}
	}
	entry = &cacheEntry{done: make(chan struct{})}
	f.entries[key] = entry
	f.mu.Unlock()

	completed := false
	defer func() {
		// A panic in Read, Load or bind must not leave waiters blocked on
		// an entry that will never finish.
		if !completed {
			entry.err = &ConfigError{Op: "load " + target.String() + ": panicked"}
		}
		if entry.err != nil {
			f.mu.Lock()
			delete(f.entries, key)
			f.mu.Unlock()
		}
		close(entry.done)
	}()

	entry.value, entry.err = f.build(ctx, r, l, target)
	completed = true

	return entry.value, entry.err
}

func (f *Factory) build(ctx context.Context, r Reader, l Loader, target reflect.Type) (any, error) {
	raw, err := r.Read(ctx)
	if err != nil {
		return nil, err
	}

	m, err := l.Load(raw)
	if err != nil {
		return nil, err
	}

	v, err := bind(target, m)
	if err != nil {
		f.logger.Error("failed to construct config", zap.Stringer("type", target), zap.Error(err))
		return nil, err
	}

	f.logger.Debug("config constructed", zap.Stringer("type", target))
	return v, nil
}
