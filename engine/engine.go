package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/nativecoll/config"
	"github.com/wippyai/nativecoll/memory"
	"github.com/wippyai/nativecoll/native"
	"github.com/wippyai/nativecoll/pool"
)

// moduleName is the name the memory-only module is instantiated under.
const moduleName = "nativecoll"

// Engine owns the wazero runtime, the native memory and everything
// allocated from it.
type Engine struct {
	runtime   wazero.Runtime
	module    api.Module
	mem       *memory.Wrapper
	alloc     *pool.Allocator
	native    *native.Runtime
	metrics   *pool.Metrics
	log       *zap.Logger
	closeOnce sync.Once
	closeErr  error
}

type options struct {
	logger     *zap.Logger
	registerer prometheus.Registerer
	location   *time.Location
}

// Option configures engine creation.
type Option func(*options)

// WithLogger overrides the logger built from the configuration.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer sets where allocator metrics are registered.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

// WithLocation sets the zone used for human-readable dates.
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.location = loc }
}

// New creates an engine from cfg. A nil cfg means config.Default().
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}

	log := o.logger
	if log == nil {
		if cfg.Log.Disabled {
			log = Logger()
		} else {
			built, err := cfg.Log.Build()
			if err != nil {
				return nil, fmt.Errorf("build logger: %w", err)
			}
			log = built
		}
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.Memory.MaxPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.Memory.MaxPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	mod, err := rt.InstantiateWithConfig(ctx,
		memory.Module(cfg.Memory.InitialPages, cfg.Memory.MaxPages),
		wazero.NewModuleConfig().WithName(moduleName))
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("instantiate memory module: %w", err)
	}
	mem := memory.WrapMemory(mod.ExportedMemory(memory.ExportName))
	if mem == nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("memory module exports no %q", memory.ExportName)
	}

	var metrics *pool.Metrics
	if cfg.Metrics.Enabled {
		metrics, err = pool.NewMetrics(cfg.Metrics.Namespace, o.registerer)
		if err != nil {
			_ = rt.Close(ctx)
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	alloc := pool.NewAllocator(mem,
		pool.WithMinBlockSize(cfg.Pool.MinBlockSize),
		pool.WithLogger(log.Named("pool")),
		pool.WithMetrics(metrics))

	nativeOpts := []native.Option{native.WithLogger(log.Named("native"))}
	if o.location != nil {
		nativeOpts = append(nativeOpts, native.WithLocation(o.location))
	}

	e := &Engine{
		runtime: rt,
		module:  mod,
		mem:     mem,
		alloc:   alloc,
		native:  native.New(alloc, nativeOpts...),
		metrics: metrics,
		log:     log,
	}
	if metrics != nil {
		e.native.Batons().Subscribe(metrics)
	}

	log.Debug("engine started",
		zap.Uint32("initial_pages", cfg.Memory.InitialPages),
		zap.Uint32("max_pages", cfg.Memory.MaxPages),
		zap.Bool("metrics", metrics != nil))
	return e, nil
}

// Native returns the runtime adapters are created against.
func (e *Engine) Native() *native.Runtime { return e.native }

// Allocator returns the pool allocator.
func (e *Engine) Allocator() *pool.Allocator { return e.alloc }

// Memory returns the native linear memory.
func (e *Engine) Memory() *memory.Wrapper { return e.mem }

// Logger returns the engine's logger.
func (e *Engine) Logger() *zap.Logger { return e.log }

// Stats returns the allocator's current usage.
func (e *Engine) Stats() pool.Stats { return e.alloc.Stats() }

// Close destroys every pool, drops every stream baton and closes the wazero
// runtime. Adapters must not be used afterwards. Closing twice returns the
// first result.
func (e *Engine) Close(ctx context.Context) error {
	e.closeOnce.Do(func() {
		stats := e.alloc.Stats()
		e.alloc.Close()
		if err := e.native.Close(); err != nil {
			e.closeErr = fmt.Errorf("close native runtime: %w", err)
		}
		if err := e.runtime.Close(ctx); err != nil && e.closeErr == nil {
			e.closeErr = fmt.Errorf("close wazero runtime: %w", err)
		}
		e.log.Debug("engine closed",
			zap.Uint64("live_pools", stats.LivePools),
			zap.Uint32("memory_size", stats.MemorySize))
	})
	return e.closeErr
}
